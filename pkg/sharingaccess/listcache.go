package sharingaccess

import (
	"sync"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// Tag names a cached collection.
type Tag string

const (
	TagSharedByMe   Tag = "sharedByMe"
	TagSharedWithMe Tag = "sharedWithMe"
)

// listCache holds, per tag, a full ordered list of node UIDs once one has
// been set by a completed backend walk. Add/Remove operate in place on an
// already-set list and reject a tag that was never set, since a partial
// list mutated by add/remove would silently diverge from the backend.
type listCache struct {
	mu   sync.Mutex
	tags map[Tag][]types.NodeUID
}

func newListCache() *listCache {
	return &listCache{tags: make(map[Tag][]types.NodeUID)}
}

// Get returns the cached list for tag, or ok=false if it was never set.
func (c *listCache) Get(tag Tag) ([]types.NodeUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	uids, ok := c.tags[tag]
	if !ok {
		return nil, false
	}
	out := make([]types.NodeUID, len(uids))
	copy(out, uids)
	return out, true
}

// Set replaces tag's list wholesale, marking it as fully populated.
func (c *listCache) Set(tag Tag, uids []types.NodeUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]types.NodeUID, len(uids))
	copy(stored, uids)
	c.tags[tag] = stored
}

// Add appends uid to tag's list, preserving insertion order. It is an
// error to add to a tag that has not been Set yet.
func (c *listCache) Add(tag Tag, uid types.NodeUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.tags[tag]
	if !ok {
		return apperror.NewInternal("sharingaccess: add to unset list %q", tag)
	}
	for _, existing := range list {
		if existing == uid {
			return nil
		}
	}
	c.tags[tag] = append(list, uid)
	return nil
}

// Remove drops uid from tag's list, if present. It is an error to remove
// from a tag that has not been Set yet.
func (c *listCache) Remove(tag Tag, uid types.NodeUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.tags[tag]
	if !ok {
		return apperror.NewInternal("sharingaccess: remove from unset list %q", tag)
	}
	for i, existing := range list {
		if existing == uid {
			c.tags[tag] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Invalidate clears tag's list, forcing the next iteration back to the API.
func (c *listCache) Invalidate(tag Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tags, tag)
}
