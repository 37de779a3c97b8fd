// Package nodecache is the in-memory + durable wrapper around a node's
// decrypted metadata: it tracks staleness, per-folder child-listing
// completeness, and tag-indexed lookups (by parent, by share, by trash
// state, by volume) over an injected entitystore.Store.
//
// Only public metadata and flags are durable; node keys and content-key
// packets never pass through this package — they live in the crypto
// cache instead.
package nodecache
