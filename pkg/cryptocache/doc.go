// Package cryptocache is the process-local, never-persisted cache of
// decrypted node key material. Unlike nodecache, nothing here ever
// touches a durable entitystore.Store — it exists only in process memory
// and is gone on process exit or explicit eviction.
package cryptocache
