package crypto

import "fmt"

// Error represents a structured error from the crypto package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeValidation    ErrorCode = "validation"
	ErrCodeKeyManagement ErrorCode = "key_management"
	ErrCodeEncryption    ErrorCode = "encryption"
	ErrCodeDecryption    ErrorCode = "decryption"
	ErrCodeSignature     ErrorCode = "signature"
)

// CryptoError represents a structured error from the crypto package.
//
// Messages must never include key material or plaintext.
type CryptoError struct {

	// code is the cryptoerror code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *CryptoError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CryptoError) Code() ErrorCode { return e.code }
func (e *CryptoError) Unwrap() error   { return e.wrapped }

// NewValidationError creates a validation error for invalid input.
// Use this for empty messages, bad hex, or inputs of the wrong length.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
//
// The returned error will have code ErrCodeValidation.
func WrapValidationError(err error, msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewKeyManagementError creates a key management error.
// Use this for errors related to absent keys, malformed key encodings,
// or key files that cannot be read.
//
// The returned error will have code ErrCodeKeyManagement.
func NewKeyManagementError(msg string) error {
	return &CryptoError{code: ErrCodeKeyManagement, message: msg}
}

// WrapKeyManagementError wraps an existing error as a key management error.
//
// The returned error will have code ErrCodeKeyManagement.
func WrapKeyManagementError(err error, msg string) error {
	return &CryptoError{code: ErrCodeKeyManagement, message: msg, wrapped: err}
}

// NewEncryptionError creates an encryption error.
//
// The returned error will have code ErrCodeEncryption.
func NewEncryptionError(msg string) error {
	return &CryptoError{code: ErrCodeEncryption, message: msg}
}

// WrapEncryptionError wraps an existing error as an encryption error.
//
// The returned error will have code ErrCodeEncryption.
func WrapEncryptionError(err error, msg string) error {
	return &CryptoError{code: ErrCodeEncryption, message: msg, wrapped: err}
}

// NewDecryptionError creates a decryption error.
// Use this for truncated ciphertext, block misalignment or a padding mismatch.
//
// The returned error will have code ErrCodeDecryption.
func NewDecryptionError(msg string) error {
	return &CryptoError{code: ErrCodeDecryption, message: msg}
}

// WrapDecryptionError wraps an existing error as a decryption error.
//
// The returned error will have code ErrCodeDecryption.
func WrapDecryptionError(err error, msg string) error {
	return &CryptoError{code: ErrCodeDecryption, message: msg, wrapped: err}
}

// NewSignatureError creates a signing error.
//
// The returned error will have code ErrCodeSignature.
func NewSignatureError(msg string) error {
	return &CryptoError{code: ErrCodeSignature, message: msg}
}

// WrapSignatureError wraps an existing error as a signing error.
//
// The returned error will have code ErrCodeSignature.
func WrapSignatureError(err error, msg string) error {
	return &CryptoError{code: ErrCodeSignature, message: msg, wrapped: err}
}
