// this file provides SM3 fingerprints for SM2 public keys.
//
// Fingerprints identify a key in logs and CLI output without revealing anything secret.

package crypto

import (
	"encoding/hex"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"
)

// fingerprintSize is the number of digest bytes kept in a fingerprint.
const fingerprintSize = 8

// Fingerprint returns the first 8 bytes of the SM3 digest of the uncompressed public key, hex encoded.
// It returns "" for a nil key.
func Fingerprint(publicKey *sm2.PublicKey) string {
	if publicKey == nil || publicKey.X == nil || publicKey.Y == nil {
		return ""
	}

	point := make([]byte, 0, 65)
	point = append(point, 0x04)
	point = append(point, leftPad(publicKey.X.Bytes(), 32)...)
	point = append(point, leftPad(publicKey.Y.Bytes(), 32)...)

	digest := sm3.Sm3Sum(point)
	return hex.EncodeToString(digest[:fingerprintSize])
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
