package nodecache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/protonmail/drive-node-core/pkg/entitystore"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// Tag keys the durable store must be constructed with for this cache to
// work. See entitystore.Store and §6 of the node metadata design.
const (
	TagParentUID = "parentUid"
	TagIsShared  = "isShared"
	TagIsTrashed = "isTrashed"
	TagVolumeID  = "volumeId"
)

// TagKeys is the fixed tag-key set nodecache.New requires the underlying
// entitystore.Store to have been opened with.
var TagKeys = []string{TagParentUID, TagIsShared, TagIsTrashed, TagVolumeID}

// NodeResult is one element of a batch cache read.
type NodeResult struct {
	UID  types.NodeUID
	OK   bool
	Node *types.DecryptedNode
	Err  error
}

// Cache is the node metadata cache: durable storage for node content,
// in-memory bookkeeping for each folder's child-listing completeness.
type Cache struct {
	store entitystore.Store

	mu             sync.RWMutex
	childrenLoaded map[types.NodeUID]bool
}

// New builds a Cache over store, which must have been opened with
// TagKeys as its declared tag keys.
func New(store entitystore.Store) *Cache {
	return &Cache{
		store:          store,
		childrenLoaded: make(map[types.NodeUID]bool),
	}
}

func tagsFor(node *types.DecryptedNode) entitystore.Tags {
	parent := ""
	if node.ParentUID != nil {
		parent = string(*node.ParentUID)
	}
	return entitystore.Tags{
		TagParentUID: parent,
		TagIsShared:  strconv.FormatBool(node.IsShared),
		TagIsTrashed: strconv.FormatBool(node.TrashTime != nil),
		TagVolumeID:  string(node.TreeEventScopeID),
	}
}

// GetNode returns the cached node for uid, or ok=false if absent or if
// the stored entry failed to deserialize (in which case it is removed
// silently and reported as a miss, per the durable-cache contract).
func (c *Cache) GetNode(ctx context.Context, uid types.NodeUID) (*types.DecryptedNode, bool, error) {
	raw, ok, err := c.store.GetEntity(ctx, string(uid))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	node, err := decodeNode(raw)
	if err != nil {
		logging.Logger.Warn().Str("node_uid", string(uid)).Err(err).Msg("cached node failed to deserialize, evicting")
		_ = c.store.RemoveEntities(ctx, []string{string(uid)})
		return nil, false, nil
	}
	return node, true, nil
}

// SetNode upserts node. Writes are idempotent.
func (c *Cache) SetNode(ctx context.Context, node *types.DecryptedNode) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return c.store.SetEntity(ctx, string(node.UID), raw, tagsFor(node))
}

// RemoveNodes deletes uids from the cache. Removing an absent uid is not
// an error. Each removed node's parent has its children-loaded bit reset,
// per the "deletion on a child's parent resets it" invariant.
func (c *Cache) RemoveNodes(ctx context.Context, uids []types.NodeUID) error {
	strUIDs := make([]string, len(uids))
	for i, u := range uids {
		strUIDs[i] = string(u)
		if node, ok, _ := c.GetNode(ctx, u); ok && node.ParentUID != nil {
			c.ResetFolderChildrenLoaded(*node.ParentUID)
		}
	}
	return c.store.RemoveEntities(ctx, strUIDs)
}

// IterateNodes returns one result per uid, preserving order.
func (c *Cache) IterateNodes(ctx context.Context, uids []types.NodeUID) ([]NodeResult, error) {
	out := make([]NodeResult, len(uids))
	for i, uid := range uids {
		node, ok, err := c.GetNode(ctx, uid)
		out[i] = NodeResult{UID: uid, OK: ok, Node: node, Err: err}
	}
	return out, nil
}

// IterateChildren returns the cached children of parentUID, in whatever
// order the durable store's tag index yields them.
func (c *Cache) IterateChildren(ctx context.Context, parentUID types.NodeUID) ([]NodeResult, error) {
	results, err := c.store.IterateEntitiesByTag(ctx, TagParentUID, string(parentUID))
	if err != nil {
		return nil, err
	}
	out := make([]NodeResult, 0, len(results))
	for _, r := range results {
		if !r.OK {
			out = append(out, NodeResult{UID: types.NodeUID(r.UID), OK: false})
			continue
		}
		node, err := decodeNode(r.Data)
		if err != nil {
			logging.Logger.Warn().Str("node_uid", r.UID).Err(err).Msg("cached child failed to deserialize, evicting")
			_ = c.store.RemoveEntities(ctx, []string{r.UID})
			out = append(out, NodeResult{UID: types.NodeUID(r.UID), OK: false})
			continue
		}
		out = append(out, NodeResult{UID: types.NodeUID(r.UID), OK: true, Node: node})
	}
	return out, nil
}

// IsFolderChildrenLoaded reports whether a full child listing of
// parentUID has been walked to completion since it was last reset.
func (c *Cache) IsFolderChildrenLoaded(parentUID types.NodeUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.childrenLoaded[parentUID]
}

// SetFolderChildrenLoaded marks parentUID's child listing complete.
func (c *Cache) SetFolderChildrenLoaded(parentUID types.NodeUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.childrenLoaded[parentUID] = true
}

// ResetFolderChildrenLoaded clears parentUID's completeness bit.
func (c *Cache) ResetFolderChildrenLoaded(parentUID types.NodeUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.childrenLoaded, parentUID)
}

// SetNodesStaleFromVolume marks every cached node of volumeID stale, in
// response to a TreeRefresh event.
func (c *Cache) SetNodesStaleFromVolume(ctx context.Context, volumeID types.VolumeID) error {
	results, err := c.store.IterateEntitiesByTag(ctx, TagVolumeID, string(volumeID))
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK {
			continue
		}
		node, err := decodeNode(r.Data)
		if err != nil {
			continue
		}
		node.IsStale = true
		if err := c.SetNode(ctx, node); err != nil {
			logging.Logger.Warn().Str("node_uid", r.UID).Err(err).Msg("failed to persist staleness, leaving entry as-is")
		}
	}
	return nil
}

// RemoveVolume deletes every cached node of volumeID, in response to a
// TreeRemove event.
func (c *Cache) RemoveVolume(ctx context.Context, volumeID types.VolumeID) error {
	results, err := c.store.IterateEntitiesByTag(ctx, TagVolumeID, string(volumeID))
	if err != nil {
		return err
	}
	uids := make([]string, 0, len(results))
	for _, r := range results {
		uids = append(uids, r.UID)
	}
	return c.store.RemoveEntities(ctx, uids)
}

func decodeNode(raw []byte) (*types.DecryptedNode, error) {
	var node types.DecryptedNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// VolumeOfNode is a small convenience used by callers that only have a
// node UID and need its volume, without re-importing uidcodec directly.
func VolumeOfNode(uid types.NodeUID) (types.VolumeID, error) {
	v, err := uidcodec.VolumeOf(string(uid))
	if err != nil {
		return "", err
	}
	return types.VolumeID(v), nil
}
