// crypto package provides the SM2/SM4 primitives used by the gateway envelope.
//
// these are low level functions - for standard usage (sealing requests, opening responses) you will not need to call these functions directly.
// See the envelope package for high level functions.
package crypto
