// this file implements Provider with the Chinese national algorithms required by the bank gateway:
//
//   - SM2 (with SM3 digest and the default user ID 1234567812345678) for signatures, ASN.1 DER encoded
//   - SM4 in CBC mode with PKCS#7 padding for bizContent confidentiality
//
// The algorithm implementations come from github.com/tjfoc/gmsm.

package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/tjfoc/gmsm/sm4"
)

// SMProvider is the SM2/SM4 Provider.
type SMProvider struct {
	keys KeyMaterial
}

// compile time check
var _ Provider = (*SMProvider)(nil)

// NewSMProvider returns a Provider backed by keys.
func NewSMProvider(keys KeyMaterial) (*SMProvider, error) {
	if keys.signingKey == nil || keys.counterpartyKey == nil {
		return nil, NewKeyManagementError("key material is incomplete")
	}
	if len(keys.symmetricKey) != symmetricSize || len(keys.symmetricIV) != symmetricSize {
		return nil, NewKeyManagementError("SM4 key and IV must be 16 bytes")
	}
	return &SMProvider{keys: keys}, nil
}

// Keys returns the provider's key material.
func (p *SMProvider) Keys() KeyMaterial {
	return p.keys
}

// Sign returns the DER encoded SM2 signature of message.
func (p *SMProvider) Sign(message []byte) ([]byte, error) {
	if p == nil || p.keys.signingKey == nil {
		return nil, NewKeyManagementError("SM2 signing key is not configured")
	}

	signature, err := p.keys.signingKey.Sign(rand.Reader, message, nil)
	if err != nil {
		return nil, WrapSignatureError(err, "SM2 signing failed")
	}
	return signature, nil
}

// sm2Signature is the ASN.1 structure of an SM2 signature.
type sm2Signature struct {
	R, S *big.Int
}

// Verify reports whether signature is a valid DER encoded SM2 signature over message.
// Signatures with trailing bytes after the DER structure are rejected.
func (p *SMProvider) Verify(message, signature []byte) bool {
	if p == nil || p.keys.counterpartyKey == nil || len(signature) == 0 {
		return false
	}

	var sig sm2Signature
	rest, err := asn1.Unmarshal(signature, &sig)
	if err != nil || len(rest) != 0 || sig.R == nil || sig.S == nil {
		return false
	}

	return p.keys.counterpartyKey.Verify(message, signature)
}

// Encrypt pads plaintext (PKCS#7) and encrypts it with SM4-CBC.
func (p *SMProvider) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := p.newBlock()
	if err != nil {
		return nil, WrapEncryptionError(err, "SM4 encryption failed")
	}

	padded := pkcs7Pad(plaintext, sm4.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, p.keys.symmetricIV).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// Decrypt decrypts SM4-CBC ciphertext and removes the PKCS#7 padding.
func (p *SMProvider) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%sm4.BlockSize != 0 {
		return nil, NewDecryptionError(fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(ciphertext), sm4.BlockSize))
	}

	block, err := p.newBlock()
	if err != nil {
		return nil, WrapDecryptionError(err, "SM4 decryption failed")
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, p.keys.symmetricIV).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, sm4.BlockSize)
	if err != nil {
		return nil, WrapDecryptionError(err, "SM4 decryption failed")
	}
	return plaintext, nil
}

// newBlock creates a fresh SM4 block for each operation: the gmsm cipher keeps
// scratch buffers and must not be shared between goroutines.
func (p *SMProvider) newBlock() (cipher.Block, error) {
	if p == nil || len(p.keys.symmetricKey) != symmetricSize || len(p.keys.symmetricIV) != symmetricSize {
		return nil, NewKeyManagementError("SM4 key is not configured")
	}
	block, err := sm4.NewCipher(p.keys.symmetricKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "invalid SM4 key")
	}
	return block, nil
}
