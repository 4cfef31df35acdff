// Package server provides the HTTP server for the sandbox gateway.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// The package mounts
//   - the sandbox gateway under /prdApiGW/ (and at the root, for clients configured without the prefix)
//   - common infrastructure handlers (health, version, public key)
//
// middleware is in internal/server/middleware
package server
