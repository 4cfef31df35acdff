package sandbox

// errors.go defines the errors the sandbox gateway returns before a response can be sealed.

import "fmt"

// GatewayError is a request the gateway refuses to process.
type GatewayError struct {
	// code is the gateway error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *GatewayError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *GatewayError) Code() ErrorCode { return e.code }
func (e *GatewayError) Unwrap() error   { return e.wrapped }

// ErrorCode is returned in the dealCode of an unsigned error response.
type ErrorCode string

const (
	// ErrCodeMalformedRequest is used when the body is not an envelope, the
	// identity headers are missing or bizContent cannot be decrypted
	ErrCodeMalformedRequest ErrorCode = "E0400"

	// ErrCodeBadSignature is used when x-aob-signature does not verify
	ErrCodeBadSignature ErrorCode = "E0401"

	// ErrCodeUnknownApp is used when x-aob-appID or x-aob-bankID does not match the sandbox
	ErrCodeUnknownApp ErrorCode = "E0403"

	// ErrCodeNotFound is used for paths that are not V{n}/P{service}/S{scenario}/{operation}
	ErrCodeNotFound ErrorCode = "E0404"

	// ErrCodeMethodNotAllowed is used for anything but POST
	ErrCodeMethodNotAllowed ErrorCode = "E0405"

	// ErrCodeRequestTooLarge is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = "E0413"

	// ErrCodeRateLimitExceeded is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = "E0429"

	// ErrCodeInternalError is used when the response cannot be produced or sealed
	ErrCodeInternalError ErrorCode = "E0500"
)

// NewMalformedRequestError creates an error for malformed requests.
func NewMalformedRequestError(msg string) error {
	return &GatewayError{code: ErrCodeMalformedRequest, message: msg}
}

// WrapMalformedRequestError wraps an error for malformed requests.
func WrapMalformedRequestError(err error, msg string) error {
	return &GatewayError{code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// WrapBadSignatureError wraps a signature verification failure.
func WrapBadSignatureError(err error, msg string) error {
	return &GatewayError{code: ErrCodeBadSignature, message: msg, wrapped: err}
}

// NewUnknownAppError creates an error for an app or bank id the sandbox does not serve.
func NewUnknownAppError(msg string) error {
	return &GatewayError{code: ErrCodeUnknownApp, message: msg}
}

// NewNotFoundError creates an error for an unknown path.
func NewNotFoundError(msg string) error {
	return &GatewayError{code: ErrCodeNotFound, message: msg}
}

// NewMethodNotAllowedError creates an error for non-POST requests.
func NewMethodNotAllowedError(msg string) error {
	return &GatewayError{code: ErrCodeMethodNotAllowed, message: msg}
}

// NewRateLimitError creates an error for rate limit violations.
func NewRateLimitError(msg string) error {
	return &GatewayError{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates an error for oversized requests.
func NewRequestTooLargeError(msg string) error {
	return &GatewayError{code: ErrCodeRequestTooLarge, message: msg}
}

// WrapInternalError wraps an internal error.
func WrapInternalError(err error, msg string) error {
	return &GatewayError{code: ErrCodeInternalError, message: msg, wrapped: err}
}
