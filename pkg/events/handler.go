package events

import (
	"context"
	"time"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// Handler applies the external event feed to the node cache and
// broadcasts subscription updates. It holds no goroutine of its own;
// callers drive it from whatever feed-consumption loop they already run.
type Handler struct {
	nodes  *nodecache.Cache
	broker *Broker
}

// New builds a Handler over nodes, publishing subscription updates
// through broker.
func New(nodes *nodecache.Cache, broker *Broker) *Handler {
	return &Handler{nodes: nodes, broker: broker}
}

// Apply applies a single event. It is idempotent: re-applying the same
// event (e.g. after a redelivery) produces the same cache state. Callers
// should log and continue past an error rather than stop the feed.
func (h *Handler) Apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case TreeRefresh:
		return h.nodes.SetNodesStaleFromVolume(ctx, ev.VolumeID)

	case TreeRemove:
		return h.nodes.RemoveVolume(ctx, ev.VolumeID)

	case NodeDeleted:
		return h.applyNodeDeleted(ctx, ev)

	case NodeCreated:
		return h.applyNodeCreated(ev)

	case NodeUpdated:
		return h.applyNodeUpdated(ctx, ev)

	case SharedWithMeUpdated:
		h.broker.publish(topicSharedWithMe, Update{Kind: UpdateUpsert})
		return nil

	default:
		return apperror.NewInternal("unrecognized event type %q", ev.Type)
	}
}

// applyNodeCreated resets the parent's children-loaded bit rather than
// synthesizing a partial node for the child; the next listing walk picks
// it up from the backend.
func (h *Handler) applyNodeCreated(ev Event) error {
	if ev.ParentUID == nil {
		return apperror.NewValidation("nodeCreated event missing parentUid")
	}
	h.nodes.ResetFolderChildrenLoaded(*ev.ParentUID)
	h.broker.publish(childrenTopic(*ev.ParentUID), Update{Kind: UpdateUpsert, UID: ev.NodeUID})
	return nil
}

func (h *Handler) applyNodeUpdated(ctx context.Context, ev Event) error {
	node, ok, err := h.nodes.GetNode(ctx, ev.NodeUID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	oldParentUID := node.ParentUID
	node.IsStale = true
	node.IsShared = ev.IsShared
	switch {
	case ev.IsTrashed && node.TrashTime == nil:
		now := time.Now()
		node.TrashTime = &now
	case !ev.IsTrashed:
		node.TrashTime = nil
	}
	if ev.ParentUID != nil {
		node.ParentUID = ev.ParentUID
	}

	if err := h.nodes.SetNode(ctx, node); err != nil {
		return err
	}

	if oldParentUID != nil {
		h.nodes.ResetFolderChildrenLoaded(*oldParentUID)
		h.broker.publish(childrenTopic(*oldParentUID), Update{Kind: UpdateUpsert, UID: ev.NodeUID, Node: node})
	}
	if ev.ParentUID != nil && (oldParentUID == nil || *ev.ParentUID != *oldParentUID) {
		h.nodes.ResetFolderChildrenLoaded(*ev.ParentUID)
		h.broker.publish(childrenTopic(*ev.ParentUID), Update{Kind: UpdateUpsert, UID: ev.NodeUID, Node: node})
	}
	return nil
}

func (h *Handler) applyNodeDeleted(ctx context.Context, ev Event) error {
	node, ok, err := h.nodes.GetNode(ctx, ev.NodeUID)
	if err != nil {
		return err
	}
	if err := h.nodes.RemoveNodes(ctx, []types.NodeUID{ev.NodeUID}); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if node.ParentUID != nil {
		h.broker.publish(childrenTopic(*node.ParentUID), Update{Kind: UpdateRemove, UID: ev.NodeUID})
	}
	if node.TrashTime != nil {
		if volumeID, err := uidcodec.VolumeOf(string(ev.NodeUID)); err == nil {
			h.broker.publish(trashedTopic(types.VolumeID(volumeID)), Update{Kind: UpdateRemove, UID: ev.NodeUID})
		}
	}
	return nil
}
