package events

import (
	"sync"

	"github.com/protonmail/drive-node-core/pkg/types"
)

// UpdateKind distinguishes an upsert from a removal in a subscription
// callback.
type UpdateKind string

const (
	UpdateUpsert UpdateKind = "update"
	UpdateRemove UpdateKind = "remove"
)

// Update is what a Subscriber receives: a uid and whether it was
// upserted or removed. Node is only set for upserts of a node the
// handler already had cached (never synthesized).
type Update struct {
	Kind UpdateKind
	UID  types.NodeUID
	Node *types.DecryptedNode
}

// Subscriber is a channel a caller reads subscription updates from.
type Subscriber chan Update

// Broker fans topic-scoped updates out to subscribers, the same
// buffered-channel-per-subscriber shape as a single-topic pub/sub broker,
// generalized with a topic key so folder child-sets, the shared
// collections, and per-volume trash listings can each be subscribed to
// independently.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[Subscriber]bool
}

// NewBroker builds an empty Broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[string]map[Subscriber]bool)}
}

// Subscribe returns a buffered channel of updates for topic.
func (b *Broker) Subscribe(topic string) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[Subscriber]bool)
	}
	b.subscribers[topic][sub] = true
	return sub
}

// Unsubscribe stops delivery to sub and closes it.
func (b *Broker) Unsubscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
	close(sub)
}

// publish delivers update to every subscriber of topic, dropping it for
// any subscriber whose buffer is full rather than blocking the handler.
func (b *Broker) publish(topic string, update Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[topic] {
		select {
		case sub <- update:
		default:
		}
	}
}

func childrenTopic(parentUID types.NodeUID) string { return "children:" + string(parentUID) }

func trashedTopic(volumeID types.VolumeID) string { return "trashed:" + string(volumeID) }

const (
	topicSharedByMe   = "sharedByMe"
	topicSharedWithMe = "sharedWithMe"
)

// SubscribeFolderChildren subscribes to upserts/removals within
// parentUID's child set.
func (b *Broker) SubscribeFolderChildren(parentUID types.NodeUID) Subscriber {
	return b.Subscribe(childrenTopic(parentUID))
}

// SubscribeTrashed subscribes to upserts/removals within volumeID's trash.
func (b *Broker) SubscribeTrashed(volumeID types.VolumeID) Subscriber {
	return b.Subscribe(trashedTopic(volumeID))
}

// SubscribeSharedByMe subscribes to the caller's shared-by-me collection.
func (b *Broker) SubscribeSharedByMe() Subscriber { return b.Subscribe(topicSharedByMe) }

// SubscribeSharedWithMe subscribes to the caller's shared-with-me
// collection.
func (b *Broker) SubscribeSharedWithMe() Subscriber { return b.Subscribe(topicSharedWithMe) }

// PublishFolderChildren delivers update to every subscriber of parentUID's
// child set. Mutation paths call this after a locally-initiated create,
// rename, move, trash, restore, or delete succeeds, the same way Handler
// does for an externally-delivered event.
func (b *Broker) PublishFolderChildren(parentUID types.NodeUID, update Update) {
	b.publish(childrenTopic(parentUID), update)
}

// PublishTrashed delivers update to every subscriber of volumeID's trash.
func (b *Broker) PublishTrashed(volumeID types.VolumeID, update Update) {
	b.publish(trashedTopic(volumeID), update)
}
