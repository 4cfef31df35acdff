// Package sandbox is a local stand-in for the bank gateway.
//
// It verifies request signatures with the client's public key, decrypts bizContent, answers a
// handful of operations from an in-memory ledger and seals the reply with the bank key.
// Operations without a handler echo the business fields back.
//
// Single transfers are replayed on x-idempotency-key: a repeated key returns the stored reply
// and the ledger is debited once.
//
// The sandbox is for interop tests and local development, not a model of the bank's
// business rules.
package sandbox
