package crypto

import (
	"bytes"
	"log/slog"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm4"
)

// Provider is the capability boundary between the envelope and the cryptographic backend.
//
// Implementations must be safe for concurrent use: the envelope calls them from
// any number of in-flight requests without locking.
type Provider interface {
	// Sign returns a signature over message that the counterparty can verify
	// with the public key matching the configured signing key.
	Sign(message []byte) ([]byte, error)

	// Verify reports whether signature is valid for exactly message under the
	// counterparty public key.
	Verify(message, signature []byte) bool

	// Encrypt encrypts plaintext under the shared symmetric key and IV.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt. It fails on truncated ciphertext or a padding mismatch.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// symmetricSize is the SM4 key and IV length in bytes (128 bits).
const symmetricSize = sm4.BlockSize

// KeyMaterial is the immutable key set owned by a Provider for the lifetime of a client.
//
// It is never logged or serialised: String and LogValue redact everything except
// public key fingerprints.
type KeyMaterial struct {
	signingKey      *sm2.PrivateKey
	counterpartyKey *sm2.PublicKey
	symmetricKey    []byte
	symmetricIV     []byte
}

// NewKeyMaterial validates and copies the supplied keys.
//
// signingKey signs outbound messages, counterpartyKey verifies inbound ones.
// symmetricKey and symmetricIV must both be 16 bytes.
func NewKeyMaterial(signingKey *sm2.PrivateKey, counterpartyKey *sm2.PublicKey, symmetricKey, symmetricIV []byte) (KeyMaterial, error) {
	if signingKey == nil || signingKey.D == nil {
		return KeyMaterial{}, NewKeyManagementError("SM2 signing key is required")
	}
	if counterpartyKey == nil || counterpartyKey.X == nil || counterpartyKey.Y == nil {
		return KeyMaterial{}, NewKeyManagementError("SM2 counterparty public key is required")
	}
	if len(symmetricKey) != symmetricSize {
		return KeyMaterial{}, NewKeyManagementError("SM4 key must be 16 bytes")
	}
	if len(symmetricIV) != symmetricSize {
		return KeyMaterial{}, NewKeyManagementError("SM4 IV must be 16 bytes")
	}

	return KeyMaterial{
		signingKey:      signingKey,
		counterpartyKey: counterpartyKey,
		symmetricKey:    bytes.Clone(symmetricKey),
		symmetricIV:     bytes.Clone(symmetricIV),
	}, nil
}

// ParseKeyMaterial builds KeyMaterial from the textual encodings used in configuration.
//
// The SM2 keys may be hex or PEM (see ParsePrivateKey and ParsePublicKey);
// the SM4 key and IV are 32 character hex strings.
func ParseKeyMaterial(signingKey, counterpartyKey, symmetricKeyHex, symmetricIVHex string) (KeyMaterial, error) {
	priv, err := ParsePrivateKey(signingKey)
	if err != nil {
		return KeyMaterial{}, err
	}
	pub, err := ParsePublicKey(counterpartyKey)
	if err != nil {
		return KeyMaterial{}, err
	}
	key, err := decodeSymmetric(symmetricKeyHex, "SM4 key")
	if err != nil {
		return KeyMaterial{}, err
	}
	iv, err := decodeSymmetric(symmetricIVHex, "SM4 IV")
	if err != nil {
		return KeyMaterial{}, err
	}
	return NewKeyMaterial(priv, pub, key, iv)
}

// SigningPublicKey returns the public half of the signing key, i.e. the key the
// counterparty must hold to verify our signatures.
func (k KeyMaterial) SigningPublicKey() *sm2.PublicKey {
	if k.signingKey == nil {
		return nil
	}
	return &k.signingKey.PublicKey
}

// CounterpartyPublicKey returns the key used to verify inbound signatures.
func (k KeyMaterial) CounterpartyPublicKey() *sm2.PublicKey {
	return k.counterpartyKey
}

func (k KeyMaterial) String() string {
	return "KeyMaterial{redacted}"
}

func (k KeyMaterial) GoString() string {
	return k.String()
}

// LogValue implements slog.LogValuer. Only public key fingerprints are emitted.
func (k KeyMaterial) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("signing_key_fingerprint", Fingerprint(k.SigningPublicKey())),
		slog.String("counterparty_key_fingerprint", Fingerprint(k.counterpartyKey)),
	)
}
