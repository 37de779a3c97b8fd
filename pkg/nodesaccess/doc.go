// Package nodesaccess is the fetch-decrypt-parse-cache pipeline sitting
// between the raw API/crypto layers and everything that wants a
// DecryptedNode: it resolves a node's parent key chain, asks the crypto
// service to decrypt, hands the result to nodesparse, and writes the
// outcome into the node and crypto caches before returning it.
//
// Batch fetches are bounded: callers accumulate UIDs and this package
// flushes them in chunks of BatchLoadingSize, fanning the per-chunk
// decryption out across DecryptionConcurrency workers.
package nodesaccess
