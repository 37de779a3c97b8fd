package nodesaccess

import (
	"context"
	"time"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptocache"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/nodesparse"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// ShareKeyResolver is the slice of the sharing module nodesaccess needs:
// the decrypted private key of a share's root, used as the parent key for
// a node whose parentUid is absent and shareId is set.
type ShareKeyResolver interface {
	SharePrivateKey(ctx context.Context, shareID types.ShareID) (cryptoprimitives.Key, error)
}

// Service is the fetch-decrypt-parse-cache pipeline of §4.7.
type Service struct {
	api    *apiservice.Service
	crypto *cryptoservice.Service
	nodes  *nodecache.Cache
	keys   *cryptocache.Cache
	shares ShareKeyResolver

	batchSize   int
	concurrency int
}

// New builds a Service. batchSize and concurrency should come from
// config.Config's BatchLoadingSize/DecryptionConcurrency.
func New(api *apiservice.Service, crypto *cryptoservice.Service, nodes *nodecache.Cache, keys *cryptocache.Cache, shares ShareKeyResolver, batchSize, concurrency int) *Service {
	if batchSize <= 0 {
		batchSize = 30
	}
	if concurrency <= 0 {
		concurrency = 15
	}
	return &Service{
		api:         api,
		crypto:      crypto,
		nodes:       nodes,
		keys:        keys,
		shares:      shares,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// GetNode returns uid's cached node if present and fresh, otherwise loads
// and decrypts it from the backend.
func (s *Service) GetNode(ctx context.Context, uid types.NodeUID) (*types.DecryptedNode, error) {
	if node, ok, err := s.nodes.GetNode(ctx, uid); err != nil {
		return nil, err
	} else if ok && !node.IsStale {
		return node, nil
	}
	return s.loadNode(ctx, uid)
}

// loadNode fetches uid from the backend and decrypts it, writing the
// result into both caches before returning.
func (s *Service) loadNode(ctx context.Context, uid types.NodeUID) (*types.DecryptedNode, error) {
	encrypted, err := s.api.GetNode(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.decryptAndStore(ctx, encrypted)
}

// decryptAndStore resolves encrypted's parent key chain, decrypts it,
// parses the result, and persists it to the node and crypto caches. A
// parent-key resolution failure downgrades the result to a degraded node
// rather than propagating as an error, per the pipeline's contract.
func (s *Service) decryptAndStore(ctx context.Context, encrypted types.EncryptedNode) (*types.DecryptedNode, error) {
	nodeKey, parentKeys, parentHashKey, err := s.getParentKeys(ctx, encrypted)
	if err != nil {
		logging.WithNodeUID(string(encrypted.UID)).Warn().Err(err).Msg("parent key chain unresolvable, returning degraded node")
		node := degradedNode(encrypted, err)
		if setErr := s.nodes.SetNode(ctx, node); setErr != nil {
			logging.Logger.Warn().Str("node_uid", string(encrypted.UID)).Err(setErr).Msg("failed to cache degraded node")
		}
		return node, nil
	}

	decrypted, keys, err := s.crypto.DecryptNode(ctx, cryptoservice.DecryptInput{
		Encrypted:     encrypted,
		NodeKey:       nodeKey,
		ParentKeys:    parentKeys,
		ParentHashKey: parentHashKey,
	})
	if err != nil {
		return nil, err
	}

	parsed := nodesparse.ParseNode(decrypted)
	if err := s.nodes.SetNode(ctx, parsed); err != nil {
		return nil, err
	}
	if keys != nil {
		s.keys.Set(parsed.UID, keys)
	}
	return parsed, nil
}

// getParentKeys resolves the key material needed to decrypt a node: the
// private key its own armored key is sealed to, the set of keys its name
// signature may verify against, and its parent's hash key (for folders).
func (s *Service) getParentKeys(ctx context.Context, encrypted types.EncryptedNode) (nodeKey cryptoprimitives.Key, verifyKeys []cryptoprimitives.Key, parentHashKey []byte, err error) {
	switch {
	case encrypted.ParentUID != nil:
		parentKeys, err := s.getNodeKeys(ctx, *encrypted.ParentUID)
		if err != nil {
			return cryptoprimitives.Key{}, nil, nil, apperror.NewDecryption("key", err)
		}
		key := cryptoprimitives.Key{Data: parentKeys.PrivateNodeKey}
		return key, []cryptoprimitives.Key{key}, parentKeys.HashKey, nil

	case encrypted.ShareID != nil:
		key, err := s.shares.SharePrivateKey(ctx, *encrypted.ShareID)
		if err != nil {
			return cryptoprimitives.Key{}, nil, nil, apperror.NewDecryption("key", err)
		}
		return key, []cryptoprimitives.Key{key}, nil, nil

	default:
		return cryptoprimitives.Key{}, nil, nil, apperror.NewInternal("node %s has neither a parentUid nor a shareId", encrypted.UID)
	}
}

// GetNodeKeys returns uid's decrypted key material, fetching and
// decrypting the node first if it is not already cached. Sharing
// management uses this to wrap a share's passphrase session key for a new
// invitee or public link.
func (s *Service) GetNodeKeys(ctx context.Context, uid types.NodeUID) (*types.DecryptedNodeKeys, error) {
	return s.getNodeKeys(ctx, uid)
}

// getNodeKeys returns uid's decrypted key material, consulting the crypto
// cache first and falling back to a full load-and-decrypt on a miss.
func (s *Service) getNodeKeys(ctx context.Context, uid types.NodeUID) (*types.DecryptedNodeKeys, error) {
	if keys, ok := s.keys.Get(uid); ok {
		return keys, nil
	}
	if _, err := s.loadNode(ctx, uid); err != nil {
		return nil, err
	}
	if keys, ok := s.keys.Get(uid); ok {
		return keys, nil
	}
	return nil, apperror.NewDecryption("key", apperror.NewNotFound("node key", string(uid)))
}

// degradedNode builds the placeholder DecryptedNode returned when an
// ancestor's key material could not be resolved: name and authors all
// carry cause, every other field is copied straight from the wire node.
func degradedNode(encrypted types.EncryptedNode, cause error) *types.DecryptedNode {
	volumeID, _ := uidcodec.VolumeOf(string(encrypted.UID))
	return &types.DecryptedNode{
		UID:              encrypted.UID,
		ParentUID:        encrypted.ParentUID,
		Type:             encrypted.Type,
		MediaType:        encrypted.MediaType,
		CreationTime:     encrypted.CreationTime,
		TrashTime:        encrypted.TrashTime,
		ShareID:          encrypted.ShareID,
		IsShared:         encrypted.IsShared,
		DirectMemberRole: encrypted.DirectMemberRole,
		Name:             types.Errored[string](cause),
		KeyAuthor:        types.Errored[types.AuthorEmail](cause),
		NameAuthor:       types.Errored[types.AuthorEmail](cause),
		DecryptionErrors: []string{cause.Error()},
		TreeEventScopeID: types.VolumeID(volumeID),
	}
}

// NotifyChildCreated resets parentUID's children-loaded bit so the next
// IterateFolderChildren call re-walks the backend listing. Mutation paths
// (nodesmanagement) call this after creating a child under parentUID.
func (s *Service) NotifyChildCreated(parentUID types.NodeUID) {
	s.nodes.ResetFolderChildrenLoaded(parentUID)
}

// NodeChangeResult is the cached node state left behind by a
// locally-initiated mutation, returned so a caller can publish the
// corresponding subscription update itself rather than re-fetching.
type NodeChangeResult struct {
	Node         *types.DecryptedNode
	OldParentUID *types.NodeUID
}

// NotifyNodeChanged marks uid stale, optionally rewriting its cached
// parent pointer, and resets the new and old parents' children-loaded
// bits so a subsequent listing picks up the move. Mutation paths call
// this after a rename or move succeeds at the backend. Returns nil, nil
// if uid wasn't cached.
func (s *Service) NotifyNodeChanged(ctx context.Context, uid types.NodeUID, newParentUID *types.NodeUID) (*NodeChangeResult, error) {
	node, ok, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	oldParentUID := node.ParentUID
	node.IsStale = true
	if newParentUID != nil {
		node.ParentUID = newParentUID
	}
	if err := s.nodes.SetNode(ctx, node); err != nil {
		return nil, err
	}
	if oldParentUID != nil {
		s.nodes.ResetFolderChildrenLoaded(*oldParentUID)
	}
	if newParentUID != nil {
		s.nodes.ResetFolderChildrenLoaded(*newParentUID)
	}
	return &NodeChangeResult{Node: node, OldParentUID: oldParentUID}, nil
}

// NotifyNodeTrashed marks uid stale and sets or clears its cached
// trashTime, mirroring what events.Handler's applyNodeUpdated does for an
// externally-delivered trash/restore event. Mutation paths call this
// after a trash or restore succeeds at the backend. Returns nil, nil if
// uid wasn't cached.
func (s *Service) NotifyNodeTrashed(ctx context.Context, uid types.NodeUID, trashed bool) (*NodeChangeResult, error) {
	node, ok, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	node.IsStale = true
	switch {
	case trashed && node.TrashTime == nil:
		now := time.Now()
		node.TrashTime = &now
	case !trashed:
		node.TrashTime = nil
	}
	if err := s.nodes.SetNode(ctx, node); err != nil {
		return nil, err
	}
	if node.ParentUID != nil {
		s.nodes.ResetFolderChildrenLoaded(*node.ParentUID)
	}
	return &NodeChangeResult{Node: node, OldParentUID: node.ParentUID}, nil
}

// NotifyNodeDeleted removes uid from both caches, returning the cached
// node as it stood just before removal (nil if it wasn't cached) so a
// caller can publish the removal to the right topics. Mutation paths call
// this after a permanent delete succeeds at the backend.
func (s *Service) NotifyNodeDeleted(ctx context.Context, uid types.NodeUID) (*types.DecryptedNode, error) {
	node, _, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.keys.Remove(uid)
	if err := s.nodes.RemoveNodes(ctx, []types.NodeUID{uid}); err != nil {
		return nil, err
	}
	return node, nil
}
