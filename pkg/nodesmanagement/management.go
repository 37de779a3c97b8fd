package nodesmanagement

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/accountdirectory"
	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/events"
	"github.com/protonmail/drive-node-core/pkg/nodesaccess"
	"github.com/protonmail/drive-node-core/pkg/nodesparse"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// ShareKeyResolver is the slice of the sharing module this package needs:
// the decrypted private key of a share's root, used as the parent key
// when renaming a share root (allowRenameRootNode=true).
type ShareKeyResolver = nodesaccess.ShareKeyResolver

// Service mutates the node tree: rename, move, trash, restore, permanent
// delete, and folder creation.
type Service struct {
	api       *apiservice.Service
	crypto    *cryptoservice.Service
	nodes     *nodesaccess.Service
	directory accountdirectory.Directory
	shares    ShareKeyResolver
	broker    *events.Broker
}

// New builds a Service. broker receives the same subscription updates a
// locally-initiated mutation would eventually produce via the external
// event feed, so a caller subscribed through it sees its own rename,
// move, trash, restore, delete, or create immediately rather than
// waiting for that feed to echo it back.
func New(api *apiservice.Service, crypto *cryptoservice.Service, nodes *nodesaccess.Service, directory accountdirectory.Directory, shares ShareKeyResolver, broker *events.Broker) *Service {
	return &Service{api: api, crypto: crypto, nodes: nodes, directory: directory, shares: shares, broker: broker}
}

// publishMoved publishes result's node to its old and new parents'
// children topics, mirroring events.Handler.applyNodeUpdated's handling
// of a parent change. A nil result (uid wasn't cached) publishes nothing.
func (s *Service) publishMoved(result *nodesaccess.NodeChangeResult) {
	if result == nil {
		return
	}
	update := events.Update{Kind: events.UpdateUpsert, UID: result.Node.UID, Node: result.Node}
	if result.OldParentUID != nil {
		s.broker.PublishFolderChildren(*result.OldParentUID, update)
	}
	if result.Node.ParentUID != nil && (result.OldParentUID == nil || *result.Node.ParentUID != *result.OldParentUID) {
		s.broker.PublishFolderChildren(*result.Node.ParentUID, update)
	}
}

// RenameNode re-encrypts uid's name under its existing parent key and
// writes it back with an optimistic-concurrency hash check. A share root
// (no parentUid) is rejected unless allowRenameRootNode is set, since
// renaming it re-encrypts under the share key rather than a parent node
// key and carries no recomputed hash.
func (s *Service) RenameNode(ctx context.Context, uid types.NodeUID, newName string, allowRenameRootNode bool) error {
	if err := nodesparse.ValidateNodeName(newName); err != nil {
		return err
	}

	encrypted, err := s.api.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	isRoot := encrypted.ParentUID == nil
	if isRoot && !allowRenameRootNode {
		return apperror.NewValidation("node %s is a share root and cannot be renamed", uid)
	}

	parentKey, parentHashKey, err := s.renameParentKeys(ctx, encrypted, isRoot)
	if err != nil {
		return err
	}

	addressKey, err := s.directory.OwnAddressKey(ctx)
	if err != nil {
		return err
	}

	encryptedName, hash, err := s.crypto.EncryptNewName(ctx, newName, parentKey, addressKey, parentHashKey)
	if err != nil {
		return err
	}
	if hash == "" && !isRoot {
		return apperror.NewInternal("renaming %s produced no hash despite a resolvable parent", uid)
	}

	if err := s.api.RenameNode(ctx, uid, encrypted.Hash, apiservice.RenamePayload{
		EncryptedName:      encryptedName,
		NameSignatureEmail: &addressKey.Email,
		Hash:               hash,
	}); err != nil {
		return err
	}

	result, err := s.nodes.NotifyNodeChanged(ctx, uid, nil)
	if err != nil {
		return err
	}
	s.publishMoved(result)
	return nil
}

// renameParentKeys resolves the key a rename must re-encrypt the name
// under: the parent node's key for an ordinary node, or the share's root
// key for an allowed root rename (which carries no hash key, so the
// caller must tolerate an empty recomputed hash).
func (s *Service) renameParentKeys(ctx context.Context, encrypted types.EncryptedNode, isRoot bool) (cryptoprimitives.Key, []byte, error) {
	if isRoot {
		if encrypted.ShareID == nil {
			return cryptoprimitives.Key{}, nil, apperror.NewInternal("root node %s has no shareId", encrypted.UID)
		}
		key, err := s.shares.SharePrivateKey(ctx, *encrypted.ShareID)
		if err != nil {
			return cryptoprimitives.Key{}, nil, err
		}
		return key, nil, nil
	}

	keys, err := s.nodes.GetNodeKeys(ctx, *encrypted.ParentUID)
	if err != nil {
		return cryptoprimitives.Key{}, nil, err
	}
	return cryptoprimitives.Key{Data: keys.PrivateNodeKey}, keys.HashKey, nil
}

// MoveNode re-encrypts uid's name and passphrase under newParentUID's key
// and writes the move back with an optimistic-concurrency hash check. A
// share root cannot be moved. The new parent must be a folder: the crypto
// step rejects a missing hash key.
//
// A node whose key author is anonymous (signed by its parent's key rather
// than an address key) additionally carries the new signature email and
// passphrase signature so the move upgrades it to an authored signature;
// an already-authored node must not resend those fields, since the
// backend keeps verifying future operations against its existing one.
func (s *Service) MoveNode(ctx context.Context, uid, newParentUID types.NodeUID) error {
	encrypted, err := s.api.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	if encrypted.ParentUID == nil {
		return apperror.NewValidation("node %s is a share root and cannot be moved", uid)
	}

	node, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	nodeKeys, err := s.nodes.GetNodeKeys(ctx, uid)
	if err != nil {
		return err
	}

	newParent, err := s.nodes.GetNode(ctx, newParentUID)
	if err != nil {
		return err
	}
	if newParent.Type != types.NodeTypeFolder {
		return apperror.NewValidation("move target %s is not a folder", newParentUID)
	}
	newParentKeys, err := s.nodes.GetNodeKeys(ctx, newParentUID)
	if err != nil {
		return err
	}

	addressKey, err := s.directory.OwnAddressKey(ctx)
	if err != nil {
		return err
	}

	encryptedName, armoredPassphrase, hash, err := s.crypto.EncryptMove(
		ctx,
		node.Name,
		[]byte(nodeKeys.Passphrase),
		cryptoprimitives.Key{Data: newParentKeys.PrivateNodeKey},
		addressKey,
		newParentKeys.HashKey,
	)
	if err != nil {
		return err
	}

	payload := apiservice.MovePayload{
		NewParentUID:       newParentUID,
		ArmoredPassphrase:  armoredPassphrase,
		EncryptedName:      encryptedName,
		NameSignatureEmail: &addressKey.Email,
		Hash:               hash,
	}
	if email, ok := node.KeyAuthor.Value(); ok && email == nil {
		payload.SignatureEmail = &addressKey.Email
		payload.ArmoredPassphraseSignature = &armoredPassphrase
	}

	if err := s.api.MoveNode(ctx, uid, encrypted.Hash, payload); err != nil {
		return err
	}

	result, err := s.nodes.NotifyNodeChanged(ctx, uid, &newParentUID)
	if err != nil {
		return err
	}
	s.publishMoved(result)
	return nil
}
