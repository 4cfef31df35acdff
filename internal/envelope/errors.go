package envelope

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Error represents a structured error from the envelope package.
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeTransport indicates a non-2xx response or a failed round trip.
	// This is the only kind a caller may retry.
	ErrCodeTransport ErrorCode = "transport"

	// ErrCodeSigning indicates the request could not be signed (local key or canonicalization problem).
	ErrCodeSigning ErrorCode = "signing"

	// ErrCodeEncryption indicates the request payload could not be encrypted.
	ErrCodeEncryption ErrorCode = "encryption"

	// ErrCodeSignatureVerification indicates the response signature is missing or invalid.
	// Treat as tampering or a key mismatch: never retry and always surface to an operator.
	ErrCodeSignatureVerification ErrorCode = "signature_verification"

	// ErrCodeDecryption indicates the response bizContent could not be decrypted.
	ErrCodeDecryption ErrorCode = "decryption"

	// ErrCodeMalformedResponse indicates the response body or the decrypted payload is not valid.
	ErrCodeMalformedResponse ErrorCode = "malformed_response"

	// ErrCodeCancelled indicates the context was done before the request was sent.
	ErrCodeCancelled ErrorCode = "cancelled"
)

// maxErrorBody is the number of response body bytes kept on an error.
const maxErrorBody = 512

// EnvelopeError is the error type returned by Codec.
//
// Messages never contain key material or decrypted payloads.
type EnvelopeError struct {
	// code is the error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// status, header and body describe the response, when there was one
	status int
	header http.Header
	body   string

	// response is the decoded error body, set when a non-2xx body was itself a valid envelope
	response *DecodedResponse

	// wrapped is the optional underlying error
	wrapped error
}

func (e *EnvelopeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.code, e.message)
	if e.status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.status)
	}
	if e.wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.wrapped)
	}
	if e.code == ErrCodeTransport && e.body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.body)
	}
	return msg
}

func (e *EnvelopeError) Code() ErrorCode { return e.code }
func (e *EnvelopeError) Unwrap() error   { return e.wrapped }

// Status returns the HTTP status of the response, or 0 when no response was received.
func (e *EnvelopeError) Status() int { return e.status }

// Header returns the response headers, if any.
func (e *EnvelopeError) Header() http.Header { return e.header }

// Body returns the response body truncated to 512 bytes. Only transport errors carry a body.
func (e *EnvelopeError) Body() string { return e.body }

// Response returns the decoded error body, when a non-2xx response carried a valid envelope.
func (e *EnvelopeError) Response() *DecodedResponse { return e.response }

// Retryable reports whether a retry with a fresh request context may succeed:
// network failures, 408, 429 and 5xx responses.
func (e *EnvelopeError) Retryable() bool {
	if e.code != ErrCodeTransport {
		return false
	}
	switch {
	case e.status == 0:
		return true
	case e.status == http.StatusRequestTimeout, e.status == http.StatusTooManyRequests:
		return true
	case e.status >= 500:
		return true
	default:
		return false
	}
}

// NewTransportError creates an error for a non-2xx response.
func NewTransportError(status int, header http.Header, body []byte) *EnvelopeError {
	return &EnvelopeError{
		code:    ErrCodeTransport,
		message: "gateway returned an error status",
		status:  status,
		header:  header,
		body:    truncate(body),
	}
}

// WrapTransportError wraps a failed round trip (no response received).
func WrapTransportError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeTransport, message: msg, wrapped: err}
}

// WrapSigningError wraps a failure to build or sign the signing input.
func WrapSigningError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeSigning, message: msg, wrapped: err}
}

// WrapEncryptionError wraps a failure to serialise or encrypt the request payload.
func WrapEncryptionError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeEncryption, message: msg, wrapped: err}
}

// NewSignatureVerificationError creates a signature verification error for a response.
func NewSignatureVerificationError(msg string, status int, header http.Header) error {
	return &EnvelopeError{code: ErrCodeSignatureVerification, message: msg, status: status, header: header}
}

// WrapDecryptionError wraps a failure to decrypt bizContent.
func WrapDecryptionError(err error, msg string, status int, header http.Header) error {
	return &EnvelopeError{code: ErrCodeDecryption, message: msg, status: status, header: header, wrapped: err}
}

// NewMalformedResponseError creates an error for a response that is not a valid envelope.
func NewMalformedResponseError(msg string, status int, header http.Header) error {
	return &EnvelopeError{code: ErrCodeMalformedResponse, message: msg, status: status, header: header}
}

// WrapMalformedResponseError is NewMalformedResponseError with an underlying cause.
func WrapMalformedResponseError(err error, msg string, status int, header http.Header) error {
	return &EnvelopeError{code: ErrCodeMalformedResponse, message: msg, status: status, header: header, wrapped: err}
}

// WrapCancelledError wraps the context error when a call is abandoned before it is sent.
func WrapCancelledError(err error) error {
	return &EnvelopeError{code: ErrCodeCancelled, message: "request cancelled before it was sent", wrapped: err}
}

// CodeOf returns the envelope error code of err, or "" if err is not an envelope error.
func CodeOf(err error) ErrorCode {
	var envErr *EnvelopeError
	if errors.As(err, &envErr) {
		return envErr.code
	}
	return ""
}

// HasCode reports whether any envelope error in err's chain has code. Unlike CodeOf it
// finds a verification failure wrapped inside a transport error.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if envErr, ok := err.(*EnvelopeError); ok && envErr.code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable reports whether err is an envelope error that may be retried.
func IsRetryable(err error) bool {
	var envErr *EnvelopeError
	return errors.As(err, &envErr) && envErr.Retryable()
}

func truncate(body []byte) string {
	if len(body) <= maxErrorBody {
		return strings.ToValidUTF8(string(body), "")
	}
	cut := maxErrorBody
	// do not split a multi-byte character
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), "") + "..."
}
