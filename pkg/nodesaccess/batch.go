package nodesaccess

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// loadNodes batch-fetches and decrypts uids, grouping by volume (the
// backend's batch-get is single-volume) and within each volume chunking
// to batchSize before fanning the chunk's decryption across concurrency
// workers. The result preserves no particular order; every requested uid
// the backend did not return is reported missing and evicted from cache.
func (s *Service) loadNodes(ctx context.Context, uids []types.NodeUID) ([]nodecache.NodeResult, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	byVolume := make(map[types.VolumeID][]types.NodeUID)
	order := make([]types.VolumeID, 0)
	for _, uid := range uids {
		volumeID, err := uidcodec.VolumeOf(string(uid))
		if err != nil {
			return nil, err
		}
		v := types.VolumeID(volumeID)
		if _, ok := byVolume[v]; !ok {
			order = append(order, v)
		}
		byVolume[v] = append(byVolume[v], uid)
	}

	var results []nodecache.NodeResult
	for _, volumeID := range order {
		for start := 0; start < len(byVolume[volumeID]); start += s.batchSize {
			end := min(start+s.batchSize, len(byVolume[volumeID]))
			chunk, err := s.loadChunk(ctx, volumeID, byVolume[volumeID][start:end])
			if err != nil {
				return nil, err
			}
			results = append(results, chunk...)
		}
	}
	return results, nil
}

// loadChunk fetches a single batch-sized group of uids (all the same
// volume) and decrypts them with bounded concurrency.
func (s *Service) loadChunk(ctx context.Context, volumeID types.VolumeID, uids []types.NodeUID) ([]nodecache.NodeResult, error) {
	encryptedNodes, err := s.api.GetNodes(ctx, volumeID, uids)
	if err != nil {
		return nil, err
	}

	found := make(map[types.NodeUID]bool, len(encryptedNodes))
	results := make([]nodecache.NodeResult, len(encryptedNodes))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, encrypted := range encryptedNodes {
		i, encrypted := i, encrypted
		found[encrypted.UID] = true
		group.Go(func() error {
			node, err := s.decryptAndStore(groupCtx, encrypted)
			results[i] = nodecache.NodeResult{UID: encrypted.UID, OK: err == nil, Node: node, Err: err}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for _, uid := range uids {
		if found[uid] {
			continue
		}
		if _, err := s.NotifyNodeDeleted(ctx, uid); err != nil {
			return nil, err
		}
		results = append(results, nodecache.NodeResult{UID: uid, OK: false, Err: apperror.NewNotFound("node", string(uid))})
	}
	return results, nil
}
