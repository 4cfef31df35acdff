package crypto

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fixed test vector keys (from the bank's integration guide)
const (
	testPrivateKeyHex = "bf5e4387c88b536c203d3893a2f7fceeb2badcb6eb9e1e331197caf9372a335e"
	testSM4KeyHex     = "2ABDBED2A873B983148F922CFA238205"
	testSM4IVHex      = "F336C87E2373A3C792E59DBF23771BCD"
)

// newLoopbackProvider returns a provider that verifies its own signatures
func newLoopbackProvider(t *testing.T) *SMProvider {
	t.Helper()

	privateKey, err := ParsePrivateKey(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("could not parse private key: %v", err)
	}
	keys, err := ParseKeyMaterial(testPrivateKeyHex, PublicKeyToHex(&privateKey.PublicKey), testSM4KeyHex, testSM4IVHex)
	if err != nil {
		t.Fatalf("could not create key material: %v", err)
	}
	provider, err := NewSMProvider(keys)
	if err != nil {
		t.Fatalf("could not create provider: %v", err)
	}
	return provider
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	provider := newLoopbackProvider(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"one byte", []byte("x")},
		{"exactly one block", []byte("0123456789abcdef")},
		{"business payload", []byte(`{"payAcctNo":"733000120190056868","mesgId":"318e8a918a184db9838f6700ad42f701","mesgDate":"20251202","mesgTime":"110608000"}`)},
		{"utf-8", []byte(`{"payAcctName":"瓯江实验室"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := provider.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			if len(ciphertext)%16 != 0 || len(ciphertext) <= len(tt.plaintext) {
				t.Errorf("ciphertext length %d is not padded correctly for %d plaintext bytes", len(ciphertext), len(tt.plaintext))
			}

			plaintext, err := provider.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if !bytes.Equal(plaintext, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", plaintext, tt.plaintext)
			}
		})
	}
}

func TestEncryptIsDeterministic(t *testing.T) {
	// fixed key and IV, so the same plaintext must give the same ciphertext
	provider := newLoopbackProvider(t)
	plaintext := []byte(`{"payAcctNo":"1234567890123456"}`)

	a, err := provider.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := provider.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Encrypt() is not deterministic for a fixed key and IV")
	}
}

func TestDecryptRejectsMalformedCiphertext(t *testing.T) {
	provider := newLoopbackProvider(t)

	valid, err := provider.Encrypt([]byte(`{"a":"b"}`))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	tampered := bytes.Clone(valid)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name       string
		ciphertext []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-1]},
		{"not block aligned", append(bytes.Clone(valid), 0x01)},
		{"padding mismatch", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Decrypt(tt.ciphertext)
			if err == nil {
				t.Fatal("Decrypt() expected error, got nil")
			}
			var cryptoErr *CryptoError
			if !errors.As(err, &cryptoErr) || cryptoErr.Code() != ErrCodeDecryption {
				t.Errorf("Decrypt() error = %v, want code %q", err, ErrCodeDecryption)
			}
		})
	}
}

func TestSignAndVerify(t *testing.T) {
	provider := newLoopbackProvider(t)
	message := []byte(`{"x-aob-appID":"A1","x-aob-bankID":"WZB","bizContent":"00FF"}`)

	signature, err := provider.Sign(message)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !provider.Verify(message, signature) {
		t.Fatal("Verify() = false for a valid signature")
	}

	// mutating any single byte of the message must break verification
	for i := range message {
		mutated := bytes.Clone(message)
		mutated[i] ^= 0x01
		if provider.Verify(mutated, signature) {
			t.Fatalf("Verify() = true after mutating message byte %d", i)
		}
	}

	// mutating any single byte of the signature must break verification
	for i := range signature {
		mutated := bytes.Clone(signature)
		mutated[i] ^= 0x01
		if provider.Verify(message, mutated) {
			t.Fatalf("Verify() = true after mutating signature byte %d", i)
		}
	}

	// prefix matching is not allowed
	if provider.Verify(message[:len(message)-1], signature) {
		t.Error("Verify() = true for a message prefix")
	}
	if provider.Verify(message, append(bytes.Clone(signature), 0x00)) {
		t.Error("Verify() = true for a signature with trailing bytes")
	}
	if provider.Verify(message, nil) {
		t.Error("Verify() = true for an empty signature")
	}
}

func TestVerifyWithWrongKey(t *testing.T) {
	signer := newLoopbackProvider(t)

	otherKey, err := GenerateSM2KeyPair()
	if err != nil {
		t.Fatalf("could not create SM2 key: %v", err)
	}
	keys, err := ParseKeyMaterial(testPrivateKeyHex, PublicKeyToHex(&otherKey.PublicKey), testSM4KeyHex, testSM4IVHex)
	if err != nil {
		t.Fatalf("could not create key material: %v", err)
	}
	verifier, err := NewSMProvider(keys)
	if err != nil {
		t.Fatalf("could not create provider: %v", err)
	}

	message := []byte("message")
	signature, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if verifier.Verify(message, signature) {
		t.Error("Verify() = true with the wrong counterparty key")
	}
}

func TestZeroProviderFailsClosed(t *testing.T) {
	var provider *SMProvider

	if _, err := provider.Sign([]byte("m")); err == nil {
		t.Error("Sign() expected error for an unconfigured provider")
	}
	if provider.Verify([]byte("m"), []byte("s")) {
		t.Error("Verify() = true for an unconfigured provider")
	}
	if _, err := provider.Encrypt([]byte("m")); err == nil {
		t.Error("Encrypt() expected error for an unconfigured provider")
	}
	if _, err := provider.Decrypt(make([]byte, 16)); err == nil {
		t.Error("Decrypt() expected error for an unconfigured provider")
	}
}

func TestProviderConcurrentUse(t *testing.T) {
	provider := newLoopbackProvider(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plaintext := []byte(strings.Repeat("x", i*7))
			ciphertext, err := provider.Encrypt(plaintext)
			if err != nil {
				errs <- err
				return
			}
			got, err := provider.Decrypt(ciphertext)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, plaintext) {
				errs <- errors.New("round trip mismatch")
				return
			}
			signature, err := provider.Sign(ciphertext)
			if err != nil {
				errs <- err
				return
			}
			if !provider.Verify(ciphertext, signature) {
				errs <- errors.New("signature did not verify")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestKeyMaterialIsRedacted(t *testing.T) {
	provider := newLoopbackProvider(t)
	keys := provider.Keys()

	for _, s := range []string{keys.String(), keys.GoString(), keys.LogValue().String()} {
		if strings.Contains(strings.ToLower(s), testPrivateKeyHex) || strings.Contains(strings.ToUpper(s), testSM4KeyHex) {
			t.Errorf("key material leaked in %q", s)
		}
	}
}
