package entitystore

import "context"

// Tags is the set of tag-key/value pairs an entity is indexed under.
// Keys must be one of the tag keys declared at store construction;
// writing an undeclared key is an error.
type Tags map[string]string

// EntityResult is one element of a batch read, paired with its
// originating id so results can be matched back up after an unordered or
// partially-failed fetch.
type EntityResult struct {
	UID  string
	OK   bool
	Data []byte
	Err  error
}

// Store is the durable, tag-indexed document store the node cache and
// sharing cache persist to. Implementations must treat each method call
// as atomic; callers rely on that for the cache's single-op consistency
// guarantees.
type Store interface {
	// SetEntity upserts data under uid, replacing its prior tag
	// assignment with tags.
	SetEntity(ctx context.Context, uid string, data []byte, tags Tags) error

	// GetEntity returns the stored blob for uid, or OK=false if absent.
	GetEntity(ctx context.Context, uid string) (data []byte, ok bool, err error)

	// IterateEntities returns a result per requested uid, preserving the
	// input order.
	IterateEntities(ctx context.Context, uids []string) ([]EntityResult, error)

	// IterateEntitiesByTag returns every entity currently indexed under
	// tagKey=tagValue.
	IterateEntitiesByTag(ctx context.Context, tagKey, tagValue string) ([]EntityResult, error)

	// RemoveEntities deletes the given uids and their tag index entries.
	// Removing an absent uid is not an error.
	RemoveEntities(ctx context.Context, uids []string) error

	// Purge deletes every entity and index entry.
	Purge(ctx context.Context) error

	// Close releases underlying resources (file handles, connections).
	Close() error
}
