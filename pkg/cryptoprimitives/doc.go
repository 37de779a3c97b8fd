// Package cryptoprimitives defines the boundary to the out-of-scope
// OpenPGP/SRP/bcrypt cryptographic primitives library: key generation,
// armored encrypt/decrypt, and signature verification. Provider is an
// external collaborator interface; production callers inject a real
// OpenPGP binding. pkg/cryptoprimitives/sealedref supplies a
// golang.org/x/crypto-backed implementation (nacl/secretbox + hkdf) used
// by this module's own tests.
package cryptoprimitives
