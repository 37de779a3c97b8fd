// Package cryptoservice is the high-level, per-node encryption/decryption
// layer: it orchestrates cryptoprimitives.Provider calls, applies the
// signature verification policy that downgrades authorship to a
// types.Result instead of raising, and deduplicates decryption/
// verification telemetry per node UID per process lifetime.
package cryptoservice
