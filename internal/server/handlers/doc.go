// Package handlers provides general infrastructure HTTP handlers
// (health, version, the sandbox public key).
package handlers
