// Package cryptotest provides SM2/SM4 key material for tests.
package cryptotest

import (
	"testing"

	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/tjfoc/gmsm/sm2"
)

// Pair holds a client and a bank provider that can verify each other's signatures
// and share one SM4 key.
type Pair struct {
	ClientKey *sm2.PrivateKey
	BankKey   *sm2.PrivateKey
	SM4Key    []byte
	SM4IV     []byte

	// Client signs with ClientKey and verifies with the bank public key.
	Client *crypto.SMProvider

	// Bank signs with BankKey and verifies with the client public key.
	Bank *crypto.SMProvider
}

// NewPair generates fresh keys for a client/bank pair.
func NewPair(t testing.TB) *Pair {
	t.Helper()

	clientKey, err := crypto.GenerateSM2KeyPair()
	if err != nil {
		t.Fatalf("could not create client SM2 key: %v", err)
	}
	bankKey, err := crypto.GenerateSM2KeyPair()
	if err != nil {
		t.Fatalf("could not create bank SM2 key: %v", err)
	}
	key, iv, err := crypto.GenerateSM4Key()
	if err != nil {
		t.Fatalf("could not create SM4 key: %v", err)
	}

	return &Pair{
		ClientKey: clientKey,
		BankKey:   bankKey,
		SM4Key:    key,
		SM4IV:     iv,
		Client:    newProvider(t, clientKey, &bankKey.PublicKey, key, iv),
		Bank:      newProvider(t, bankKey, &clientKey.PublicKey, key, iv),
	}
}

// NewLoopback returns a provider that verifies its own signatures, for tests where
// a response is the request envelope sent straight back.
func NewLoopback(t testing.TB) *crypto.SMProvider {
	t.Helper()

	signingKey, err := crypto.GenerateSM2KeyPair()
	if err != nil {
		t.Fatalf("could not create SM2 key: %v", err)
	}
	key, iv, err := crypto.GenerateSM4Key()
	if err != nil {
		t.Fatalf("could not create SM4 key: %v", err)
	}
	return newProvider(t, signingKey, &signingKey.PublicKey, key, iv)
}

func newProvider(t testing.TB, signingKey *sm2.PrivateKey, counterparty *sm2.PublicKey, key, iv []byte) *crypto.SMProvider {
	t.Helper()

	keys, err := crypto.NewKeyMaterial(signingKey, counterparty, key, iv)
	if err != nil {
		t.Fatalf("could not create key material: %v", err)
	}
	provider, err := crypto.NewSMProvider(keys)
	if err != nil {
		t.Fatalf("could not create provider: %v", err)
	}
	return provider
}
