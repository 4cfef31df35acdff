// this file contains functions to generate, parse and store SM2/SM4 key material
//
// The bank distributes keys as hex strings: the SM2 private key is the 32 byte scalar D and
// the public key is the uncompressed point (64 bytes, optionally prefixed with 04).
// The SM4 key and IV are 16 bytes each.
//
// For local tooling the SM2 keys can also be stored as PEM files
// (PKCS#8 private keys and SubjectPublicKeyInfo public keys, as written by gmsm/x509).

package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/x509"
)

const pemPrefix = "-----BEGIN"

// GenerateSM2KeyPair generates a new SM2 private key
func GenerateSM2KeyPair() (*sm2.PrivateKey, error) {
	privateKey, err := sm2.GenerateKey(rand.Reader)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to generate SM2 key pair")
	}
	return privateKey, nil
}

// GenerateSM4Key generates a random SM4 key and IV
func GenerateSM4Key() (key []byte, iv []byte, err error) {
	key = make([]byte, symmetricSize)
	iv = make([]byte, symmetricSize)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, WrapKeyManagementError(err, "failed to generate SM4 key")
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, WrapKeyManagementError(err, "failed to generate SM4 IV")
	}
	return key, iv, nil
}

// ParsePrivateKey parses an SM2 private key from a hex encoded scalar or PEM (PKCS#8, unencrypted).
func ParsePrivateKey(s string) (*sm2.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewKeyManagementError("SM2 private key is empty")
	}

	if strings.HasPrefix(s, pemPrefix) {
		privateKey, err := x509.ReadPrivateKeyFromPem([]byte(s), nil)
		if err != nil {
			return nil, WrapKeyManagementError(err, "failed to parse SM2 private key PEM")
		}
		return privateKey, nil
	}

	if len(s) != 64 {
		return nil, NewKeyManagementError(fmt.Sprintf("SM2 private key must be 64 hex characters, got %d", len(s)))
	}
	privateKey, err := x509.ReadPrivateKeyFromHex(s)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to parse SM2 private key hex")
	}
	return privateKey, nil
}

// ParsePublicKey parses an SM2 public key from a hex encoded uncompressed point (with or without
// the 04 prefix) or from PEM (SubjectPublicKeyInfo).
func ParsePublicKey(s string) (*sm2.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewKeyManagementError("SM2 public key is empty")
	}

	if strings.HasPrefix(s, pemPrefix) {
		publicKey, err := x509.ReadPublicKeyFromPem([]byte(s))
		if err != nil {
			return nil, WrapKeyManagementError(err, "failed to parse SM2 public key PEM")
		}
		return publicKey, nil
	}

	if len(s) != 128 && len(s) != 130 {
		return nil, NewKeyManagementError(fmt.Sprintf("SM2 public key must be 128 or 130 hex characters, got %d", len(s)))
	}
	publicKey, err := x509.ReadPublicKeyFromHex(s)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to parse SM2 public key hex")
	}
	if !publicKey.Curve.IsOnCurve(publicKey.X, publicKey.Y) {
		return nil, NewKeyManagementError("SM2 public key is not on the curve")
	}
	return publicKey, nil
}

// PrivateKeyToHex returns the hex encoding of the private scalar, zero padded to 64 characters.
func PrivateKeyToHex(privateKey *sm2.PrivateKey) string {
	return hex.EncodeToString(leftPad(privateKey.D.Bytes(), 32))
}

// PublicKeyToHex returns the hex encoding of the uncompressed point, 04 prefixed.
func PublicKeyToHex(publicKey *sm2.PublicKey) string {
	return x509.WritePublicKeyToHex(publicKey)
}

func decodeSymmetric(s, name string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, WrapKeyManagementError(err, fmt.Sprintf("%s is not valid hex", name))
	}
	if len(b) != symmetricSize {
		return nil, NewKeyManagementError(fmt.Sprintf("%s must be %d bytes, got %d", name, symmetricSize, len(b)))
	}
	return b, nil
}

// SaveSM2PrivateKeyToPEMFile saves an SM2 private key to a PEM file in PKCS#8 format
// note the key is not encrypted
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "client.private.pem")
func SaveSM2PrivateKeyToPEMFile(privateKey *sm2.PrivateKey, baseDir, filename string) error {
	pemBytes, err := x509.WritePrivateKeyToPem(privateKey, nil)
	if err != nil {
		return WrapKeyManagementError(err, "failed to encode private key")
	}
	return writeScopedFile(baseDir, filename, pemBytes, 0600)
}

// SaveSM2PublicKeyToPEMFile saves an SM2 public key to a PEM file in SubjectPublicKeyInfo format
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "client.public.pem")
func SaveSM2PublicKeyToPEMFile(publicKey *sm2.PublicKey, baseDir, filename string) error {
	pemBytes, err := x509.WritePublicKeyToPem(publicKey)
	if err != nil {
		return WrapKeyManagementError(err, "failed to encode public key")
	}
	return writeScopedFile(baseDir, filename, pemBytes, 0644)
}

// ReadKeyFile reads a key file (hex or PEM) scoped to baseDir.
func ReadKeyFile(baseDir, filename string) (string, error) {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return "", WrapKeyManagementError(err, fmt.Sprintf("failed to open root directory %s", baseDir))
	}
	defer root.Close()

	data, err := root.ReadFile(filename)
	if err != nil {
		return "", WrapKeyManagementError(err, "failed to read key file")
	}
	return strings.TrimSpace(string(data)), nil
}

func writeScopedFile(baseDir, filename string, data []byte, perm os.FileMode) error {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open root directory %s: %w", baseDir, err)
	}
	defer root.Close()

	if err := root.WriteFile(filename, data, perm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
