package crypto

import (
	"errors"
	"testing"
)

// check to ensure error code handling has not been broken
func TestCryptoError_Code(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"validation", NewValidationError("test"), ErrCodeValidation},
		{"key_management", NewKeyManagementError("test"), ErrCodeKeyManagement},
		{"encryption", NewEncryptionError("test"), ErrCodeEncryption},
		{"decryption", NewDecryptionError("test"), ErrCodeDecryption},
		{"signature", NewSignatureError("test"), ErrCodeSignature},
		{"wrapped decryption", WrapDecryptionError(errors.New("inner"), "test"), ErrCodeDecryption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cryptoErr *CryptoError
			if !errors.As(tt.err, &cryptoErr) {
				t.Fatal("error is not a CryptoError")
			}
			if cryptoErr.Code() != tt.wantCode {
				t.Errorf("Code() = %q, want %q", cryptoErr.Code(), tt.wantCode)
			}
		})
	}
}

func TestCryptoError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := WrapKeyManagementError(inner, "outer")

	if !errors.Is(err, inner) {
		t.Errorf("errors.Is() = false, want true")
	}
	if got, want := err.Error(), "outer: inner"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
