package nodesmanagement

import (
	"context"
	"errors"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/events"
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// ProgressResult is one item of a batched or per-node mutation's progress
// stream: either a plain success or the error that uid's mutation failed
// with. Callers drain the stream to report progress incrementally rather
// than waiting for every node to finish.
type ProgressResult struct {
	UID types.NodeUID
	Err error
}

// MoveNodes moves each uid to newParentUID, one call per node since the
// backend has no batch move endpoint. It checks ctx between nodes so a
// cancelled caller stops promptly instead of draining the whole list.
func (s *Service) MoveNodes(ctx context.Context, uids []types.NodeUID, newParentUID types.NodeUID) *streamutil.Stream[ProgressResult] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(ProgressResult, error) bool) {
		for _, uid := range uids {
			if err := ctx.Err(); err != nil {
				emit(ProgressResult{UID: uid, Err: apperror.NewAbort(err)}, nil)
				return
			}
			err := s.MoveNode(ctx, uid, newParentUID)
			if !emit(ProgressResult{UID: uid, Err: err}, nil) {
				return
			}
		}
	})
}

// TrashNodes moves each uid to trash in one batched backend call, marking
// every node the backend confirmed stale and setting its cached
// trashTime, and publishing the update to its parent's children topic so
// a subscriber sees the trash immediately rather than waiting for the
// external event feed to echo it back.
func (s *Service) TrashNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[ProgressResult], error) {
	results, err := s.api.TrashNodes(ctx, uids)
	if err != nil {
		return nil, err
	}
	return s.translateBatch(ctx, results, func(ctx context.Context, uid types.NodeUID) error {
		return s.notifyTrashed(ctx, uid, true)
	}), nil
}

// RestoreNodes restores each uid out of trash in one batched backend
// call, marking every node the backend confirmed stale, clearing its
// cached trashTime, and publishing the update.
func (s *Service) RestoreNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[ProgressResult], error) {
	results, err := s.api.RestoreNodes(ctx, uids)
	if err != nil {
		return nil, err
	}
	return s.translateBatch(ctx, results, func(ctx context.Context, uid types.NodeUID) error {
		return s.notifyTrashed(ctx, uid, false)
	}), nil
}

// notifyTrashed updates uid's cached trashTime and publishes the result
// to its parent's children topic, mirroring events.Handler's treatment of
// an externally-delivered nodeUpdated event carrying isTrashed.
func (s *Service) notifyTrashed(ctx context.Context, uid types.NodeUID, trashed bool) error {
	result, err := s.nodes.NotifyNodeTrashed(ctx, uid, trashed)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if result.Node.ParentUID != nil {
		s.broker.PublishFolderChildren(*result.Node.ParentUID, events.Update{
			Kind: events.UpdateUpsert,
			UID:  result.Node.UID,
			Node: result.Node,
		})
	}
	return nil
}

// DeleteNodes permanently deletes each uid in one batched backend call,
// removing every node the backend confirmed deleted from both caches and
// publishing the removal to its parent's children topic and, if it was
// trashed, to its volume's trashed topic.
func (s *Service) DeleteNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[ProgressResult], error) {
	results, err := s.api.DeleteNodes(ctx, uids)
	if err != nil {
		return nil, err
	}
	return s.translateBatch(ctx, results, s.notifyDeleted), nil
}

// notifyDeleted removes uid from both caches and publishes the removal
// the same way events.Handler.applyNodeDeleted does for an
// externally-delivered event.
func (s *Service) notifyDeleted(ctx context.Context, uid types.NodeUID) error {
	node, err := s.nodes.NotifyNodeDeleted(ctx, uid)
	if err != nil {
		return err
	}
	if node == nil {
		return nil
	}
	if node.ParentUID != nil {
		s.broker.PublishFolderChildren(*node.ParentUID, events.Update{Kind: events.UpdateRemove, UID: uid})
	}
	if node.TrashTime != nil {
		if volumeID, err := uidcodec.VolumeOf(string(uid)); err == nil {
			s.broker.PublishTrashed(types.VolumeID(volumeID), events.Update{Kind: events.UpdateRemove, UID: uid})
		}
	}
	return nil
}

// translateBatch drains a batched backend result stream and re-emits it
// as progress, applying onSuccess to the cache for every uid the backend
// reported OK. A cache-update failure surfaces as that item's error
// without aborting the rest of the stream.
func (s *Service) translateBatch(
	ctx context.Context,
	results *streamutil.Stream[apiservice.UIDResult],
	onSuccess func(context.Context, types.NodeUID) error,
) *streamutil.Stream[ProgressResult] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(ProgressResult, error) bool) {
		for {
			item, ok := results.Next(ctx)
			if !ok {
				return
			}
			if item.Err != nil {
				if !emit(ProgressResult{Err: item.Err}, nil) {
					return
				}
				continue
			}

			r := item.Value
			progress := ProgressResult{UID: r.UID}
			switch {
			case !r.OK():
				progress.Err = apperror.NewTransport(string(r.UID), errors.New(r.Error))
			default:
				progress.Err = onSuccess(ctx, r.UID)
			}
			if !emit(progress, nil) {
				return
			}
		}
	})
}
