// Package drivecore is the construction root. It wires the durable
// entity store, the crypto and API services, and every node/sharing
// service over one caller-supplied Transport, cryptoprimitives.Provider,
// and accountdirectory.Directory, and applies the external event feed to
// keep all of it in sync. Nothing outside this package knows how these
// pieces fit together.
package drivecore

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/accountdirectory"
	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/config"
	"github.com/protonmail/drive-node-core/pkg/cryptocache"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/entitystore/boltstore"
	"github.com/protonmail/drive-node-core/pkg/events"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/nodesaccess"
	"github.com/protonmail/drive-node-core/pkg/nodesmanagement"
	"github.com/protonmail/drive-node-core/pkg/sharingaccess"
	"github.com/protonmail/drive-node-core/pkg/sharingmanagement"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// Core bundles every service this module exposes, wired over one durable
// store and one set of injected external collaborators.
type Core struct {
	store     *boltstore.Store
	shareKeys *shareKeyRegistry

	Nodes      *nodesaccess.Service
	Management *nodesmanagement.Service
	SharedByMe *sharingaccess.Service
	Sharing    *sharingmanagement.Service
	Events     *events.Handler
	Broker     *events.Broker
	Telemetry  *telemetry.Sink
}

// New builds a Core from cfg and the three external collaborators this
// module never implements itself: the wire transport, the cryptographic
// primitives provider, and the account/key directory.
func New(cfg *config.Config, transport apiservice.Transport, provider cryptoprimitives.Provider, directory accountdirectory.Directory) (*Core, error) {
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSONOutput})

	store, err := boltstore.Open(cfg.DurableCacheDir, nodecache.TagKeys)
	if err != nil {
		return nil, err
	}

	sink := telemetry.NewSink(cfg.TelemetryEnabled)
	api := apiservice.New(transport)
	crypto := cryptoservice.New(provider, directory, sink)
	nodes := nodecache.New(store)
	keys := cryptocache.New()
	shareKeys := newShareKeyRegistry()

	access := nodesaccess.New(api, crypto, nodes, keys, shareKeys, cfg.BatchLoadingSize, cfg.DecryptionConcurrency)
	broker := events.NewBroker()
	management := nodesmanagement.New(api, crypto, access, directory, shareKeys, broker)
	sharedByMe := sharingaccess.New(api, access)
	sharing := sharingmanagement.New(api, access, provider, directory)
	handler := events.New(nodes, broker)

	return &Core{
		store:      store,
		shareKeys:  shareKeys,
		Nodes:      access,
		Management: management,
		SharedByMe: sharedByMe,
		Sharing:    sharing,
		Events:     handler,
		Broker:     broker,
		Telemetry:  sink,
	}, nil
}

// RegisterShareKey hands the decrypted private key of a share's root to
// the node-decryption and rename/move pipelines. A caller supplies this
// after unwrapping an invitation's armored session key against its own
// address private key, a step this module never performs itself.
func (c *Core) RegisterShareKey(shareID types.ShareID, key cryptoprimitives.Key) {
	c.shareKeys.set(shareID, key)
}

// ApplyEvent feeds one external tree-change event through the event
// handler, updating the node cache and broadcasting subscription updates.
// It additionally invalidates the shared-with-me listing cache on a
// sharedWithMeUpdated event, since that collection lives outside the
// per-node cache the handler otherwise owns.
func (c *Core) ApplyEvent(ctx context.Context, ev events.Event) error {
	if ev.Type == events.SharedWithMeUpdated {
		c.SharedByMe.NotifySharedWithMeUpdated()
	}
	return c.Events.Apply(ctx, ev)
}

// Close releases the durable entity store's underlying file handle.
func (c *Core) Close() error {
	return c.store.Close()
}
