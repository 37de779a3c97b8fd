package nodesaccess

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// pendingBatch accumulates uids and flushes them through loadNodes once
// batchSize is reached, or on demand at the end of a listing.
type pendingBatch struct {
	svc     *Service
	ctx     context.Context
	emit    func(nodecache.NodeResult, error) bool
	pending []types.NodeUID
}

func (b *pendingBatch) push(uid types.NodeUID) bool {
	b.pending = append(b.pending, uid)
	if len(b.pending) >= b.svc.batchSize {
		return b.flush()
	}
	return true
}

func (b *pendingBatch) flush() bool {
	if len(b.pending) == 0 {
		return true
	}
	uids := b.pending
	b.pending = nil
	results, err := b.svc.loadNodes(b.ctx, uids)
	if err != nil {
		b.emit(nodecache.NodeResult{}, err)
		return false
	}
	for _, r := range results {
		if !b.emit(r, nil) {
			return false
		}
	}
	return true
}

// IterateFolderChildren lists parentUID's children. If the parent's
// children-loaded bit is set, it walks the cached listing, batch-loading
// any stale entries; otherwise it walks the backend's child-UID listing,
// yielding cache hits immediately and batch-loading the rest, then sets
// the completeness bit once the backend listing is exhausted.
func (s *Service) IterateFolderChildren(ctx context.Context, parentUID types.NodeUID) *streamutil.Stream[nodecache.NodeResult] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(nodecache.NodeResult, error) bool) {
		if _, err := s.GetNode(ctx, parentUID); err != nil {
			emit(nodecache.NodeResult{}, err)
			return
		}

		batch := &pendingBatch{svc: s, ctx: ctx, emit: emit}

		if s.nodes.IsFolderChildrenLoaded(parentUID) {
			cached, err := s.nodes.IterateChildren(ctx, parentUID)
			if err != nil {
				emit(nodecache.NodeResult{}, err)
				return
			}
			for _, c := range cached {
				if c.OK && !c.Node.IsStale {
					if !emit(c, nil) {
						return
					}
					continue
				}
				if !batch.push(c.UID) {
					return
				}
			}
			batch.flush()
			return
		}

		uids := s.api.IterateChildrenNodeUids(ctx, parentUID)
		_ = streamutil.ForEach(ctx, uids, func(item streamutil.Item[types.NodeUID]) bool {
			if item.Err != nil {
				return emit(nodecache.NodeResult{}, item.Err)
			}
			node, ok, err := s.nodes.GetNode(ctx, item.Value)
			if err == nil && ok && !node.IsStale {
				return emit(nodecache.NodeResult{UID: item.Value, OK: true, Node: node}, nil)
			}
			return batch.push(item.Value)
		})
		if !batch.flush() {
			return
		}
		s.nodes.SetFolderChildrenLoaded(parentUID)
	})
}

// IterateTrashedNodes lists volumeID's trashed nodes, batch-loading
// entries the cache doesn't hold fresh. Unlike folder children, the
// backend trash listing carries no completeness bit to set.
func (s *Service) IterateTrashedNodes(ctx context.Context, volumeID types.VolumeID) *streamutil.Stream[nodecache.NodeResult] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(nodecache.NodeResult, error) bool) {
		batch := &pendingBatch{svc: s, ctx: ctx, emit: emit}
		uids := s.api.IterateTrashedNodeUids(ctx, volumeID)
		_ = streamutil.ForEach(ctx, uids, func(item streamutil.Item[types.NodeUID]) bool {
			if item.Err != nil {
				return emit(nodecache.NodeResult{}, item.Err)
			}
			node, ok, err := s.nodes.GetNode(ctx, item.Value)
			if err == nil && ok && !node.IsStale {
				return emit(nodecache.NodeResult{UID: item.Value, OK: true, Node: node}, nil)
			}
			return batch.push(item.Value)
		})
		batch.flush()
	})
}

// IterateNodes yields a result for every requested uid: cache hits
// immediately, the rest batch-loaded. UIDs the backend no longer has are
// evicted from cache and reported as a miss (see loadChunk).
func (s *Service) IterateNodes(ctx context.Context, uids []types.NodeUID) *streamutil.Stream[nodecache.NodeResult] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(nodecache.NodeResult, error) bool) {
		batch := &pendingBatch{svc: s, ctx: ctx, emit: emit}
		for _, uid := range uids {
			node, ok, err := s.nodes.GetNode(ctx, uid)
			if err != nil {
				if !emit(nodecache.NodeResult{UID: uid}, err) {
					return
				}
				continue
			}
			if ok && !node.IsStale {
				if !emit(nodecache.NodeResult{UID: uid, OK: true, Node: node}, nil) {
					return
				}
				continue
			}
			if !batch.push(uid) {
				return
			}
		}
		batch.flush()
	})
}
