// Package entitystore defines the durable tag-indexed entity store
// boundary the node cache and sharing cache are built on: a persisted KV
// store that can answer both "by id" and "by tag value" lookups.
//
// Store is an external collaborator — this package only defines the
// interface and the result shapes; pkg/entitystore/boltstore provides a
// concrete bbolt-backed implementation for tests and single-process use.
package entitystore
