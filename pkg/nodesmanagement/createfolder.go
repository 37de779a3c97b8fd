package nodesmanagement

import (
	"context"
	"time"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/events"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/nodesparse"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/xattr"
)

// CreateFolder creates a new folder named name under parentUID. A nil
// modificationTime omits the folder's extended attributes entirely,
// matching xattr.GenerateFolderExtendedAttributes's own contract.
func (s *Service) CreateFolder(ctx context.Context, parentUID types.NodeUID, name string, modificationTime *time.Time) (types.NodeUID, error) {
	if err := nodesparse.ValidateNodeName(name); err != nil {
		return "", err
	}

	parent, err := s.nodes.GetNode(ctx, parentUID)
	if err != nil {
		return "", err
	}
	if parent.Type != types.NodeTypeFolder {
		return "", apperror.NewValidation("parent %s is not a folder", parentUID)
	}
	parentKeys, err := s.nodes.GetNodeKeys(ctx, parentUID)
	if err != nil {
		return "", err
	}

	addressKey, err := s.directory.OwnAddressKey(ctx)
	if err != nil {
		return "", err
	}

	built, err := s.crypto.CreateFolder(ctx, cryptoservice.CreateFolderInput{
		Name:          name,
		ParentKey:     cryptoprimitives.Key{Data: parentKeys.PrivateNodeKey},
		ParentHashKey: parentKeys.HashKey,
		AddressKey:    addressKey,
		ExtendedAttrs: xattr.FolderGenerateInput{ModificationTime: modificationTime},
	})
	if err != nil {
		return "", err
	}

	uid, err := s.api.CreateFolder(ctx, parentUID, apiservice.CreateFolderPayload{
		EncryptedName:              built.EncryptedName,
		NameSignatureEmail:         &addressKey.Email,
		Hash:                       built.Hash,
		ArmoredKey:                 built.ArmoredKey,
		ArmoredPassphrase:          built.ArmoredPassphrase,
		ArmoredPassphraseSignature: built.ArmoredPassphraseSig,
		SignatureEmail:             &addressKey.Email,
		ArmoredHashKey:             built.ArmoredHashKey,
		ArmoredExtendedAttrs:       built.ArmoredExtendedAttrs,
	})
	if err != nil {
		return "", err
	}

	s.nodes.NotifyChildCreated(parentUID)
	s.broker.PublishFolderChildren(parentUID, events.Update{Kind: events.UpdateUpsert, UID: uid})
	if _, err := s.nodes.GetNode(ctx, uid); err != nil {
		logging.WithNodeUID(string(uid)).Warn().Err(err).Msg("failed to warm cache for newly created folder")
	}
	return uid, nil
}
