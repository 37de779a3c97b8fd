package sharingaccess

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/nodesaccess"
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// Service lists the caller's shared-by-me and shared-with-me collections.
type Service struct {
	api   *apiservice.Service
	nodes *nodesaccess.Service
	cache *listCache
}

// New builds a Service over api (for the paged uid listings) and nodes
// (for batch decryption of whatever uids a listing produces).
func New(api *apiservice.Service, nodes *nodesaccess.Service) *Service {
	return &Service{api: api, nodes: nodes, cache: newListCache()}
}

// IterateSharedByMe iterates the caller's shared-by-me collection.
func (s *Service) IterateSharedByMe(ctx context.Context) *streamutil.Stream[nodecache.NodeResult] {
	return s.iterate(ctx, TagSharedByMe, s.api.IterateSharedByMe)
}

// IterateSharedWithMe iterates the caller's shared-with-me collection.
func (s *Service) IterateSharedWithMe(ctx context.Context) *streamutil.Stream[nodecache.NodeResult] {
	return s.iterate(ctx, TagSharedWithMe, s.api.IterateSharedWithMe)
}

// InvalidateSharedByMe forces the next IterateSharedByMe call back to the
// API, e.g. after a share/unshare mutation this process performed.
func (s *Service) InvalidateSharedByMe() { s.cache.Invalidate(TagSharedByMe) }

// InvalidateSharedWithMe forces the next IterateSharedWithMe call back to
// the API.
func (s *Service) InvalidateSharedWithMe() { s.cache.Invalidate(TagSharedWithMe) }

// NotifySharedWithMeUpdated is called by the event handler when the
// backend reports a shared-with-me change too granular to reconcile
// in-place; the next iteration re-walks the API and repopulates the cache.
func (s *Service) NotifySharedWithMeUpdated() { s.cache.Invalidate(TagSharedWithMe) }

func (s *Service) iterate(ctx context.Context, tag Tag, apiList func(context.Context) *streamutil.Stream[types.NodeUID]) *streamutil.Stream[nodecache.NodeResult] {
	if uids, ok := s.cache.Get(tag); ok {
		return s.nodes.IterateNodes(ctx, uids)
	}
	return streamutil.New(ctx, func(ctx context.Context, emit func(nodecache.NodeResult, error) bool) {
		var uids []types.NodeUID
		listErr := error(nil)
		err := streamutil.ForEach(ctx, apiList(ctx), func(item streamutil.Item[types.NodeUID]) bool {
			if item.Err != nil {
				listErr = item.Err
				return false
			}
			uids = append(uids, item.Value)
			return true
		})
		if err != nil {
			emit(nodecache.NodeResult{}, err)
			return
		}
		if listErr != nil {
			emit(nodecache.NodeResult{}, listErr)
			return
		}

		decrypted := s.nodes.IterateNodes(ctx, uids)
		settled := true
		if fErr := streamutil.ForEach(ctx, decrypted, func(item streamutil.Item[nodecache.NodeResult]) bool {
			if !emit(item.Value, item.Err) {
				settled = false
				return false
			}
			return true
		}); fErr != nil {
			emit(nodecache.NodeResult{}, fErr)
			return
		}
		if settled {
			s.cache.Set(tag, uids)
		}
	})
}
