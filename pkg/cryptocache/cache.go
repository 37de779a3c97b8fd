package cryptocache

import (
	"sync"

	"github.com/protonmail/drive-node-core/pkg/types"
)

// Cache is a process-local map from node UID to its decrypted key
// material. It is safe for concurrent use.
type Cache struct {
	mu   sync.RWMutex
	keys map[types.NodeUID]*types.DecryptedNodeKeys
}

// New builds an empty Cache.
func New() *Cache {
	return &Cache{keys: make(map[types.NodeUID]*types.DecryptedNodeKeys)}
}

// Set stores keys for uid, replacing any prior entry.
func (c *Cache) Set(uid types.NodeUID, keys *types.DecryptedNodeKeys) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[uid] = keys
}

// Get returns the cached keys for uid, or ok=false on a miss.
func (c *Cache) Get(uid types.NodeUID) (*types.DecryptedNodeKeys, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys, ok := c.keys[uid]
	return keys, ok
}

// Remove evicts uid, if present.
func (c *Cache) Remove(uid types.NodeUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, uid)
}

// Purge evicts every entry, e.g. on logout.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[types.NodeUID]*types.DecryptedNodeKeys)
}
