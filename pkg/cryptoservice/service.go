package cryptoservice

import (
	"context"
	"sync"
	"time"

	"github.com/protonmail/drive-node-core/pkg/accountdirectory"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/hashing"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
	"github.com/protonmail/drive-node-core/pkg/xattr"
)

// Service is the crypto service: per-node decrypt/encrypt with signature
// policy and metric reporting.
type Service struct {
	provider  cryptoprimitives.Provider
	directory accountdirectory.Directory
	telemetry *telemetry.Sink

	mu                         sync.Mutex
	reportedDecryptionErrors   map[types.NodeUID]map[string]bool
	reportedVerificationErrors map[types.NodeUID]map[string]bool
}

// New builds a Service. Each Service instance owns its own dedup sets, so
// multiple SDK instances never share metric state.
func New(provider cryptoprimitives.Provider, directory accountdirectory.Directory, sink *telemetry.Sink) *Service {
	return &Service{
		provider:                   provider,
		directory:                  directory,
		telemetry:                  sink,
		reportedDecryptionErrors:   make(map[types.NodeUID]map[string]bool),
		reportedVerificationErrors: make(map[types.NodeUID]map[string]bool),
	}
}

func (s *Service) reportDecryptionError(uid types.NodeUID, stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportedDecryptionErrors[uid] == nil {
		s.reportedDecryptionErrors[uid] = make(map[string]bool)
	}
	if s.reportedDecryptionErrors[uid][stage] {
		return
	}
	s.reportedDecryptionErrors[uid][stage] = true
	s.telemetry.RecordDecryptionError(stage)
}

func (s *Service) reportVerificationError(uid types.NodeUID, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportedVerificationErrors[uid] == nil {
		s.reportedVerificationErrors[uid] = make(map[string]bool)
	}
	if s.reportedVerificationErrors[uid][field] {
		return
	}
	s.reportedVerificationErrors[uid][field] = true
	s.telemetry.RecordVerificationError(field)
}

// DecryptInput bundles everything DecryptNode needs beyond the encrypted
// node itself: the resolved parent verification material.
type DecryptInput struct {
	Encrypted     types.EncryptedNode
	NodeKey       cryptoprimitives.Key // private key to decrypt the node's own armored key
	ParentKeys    []cryptoprimitives.Key
	ParentHashKey []byte
}

// DecryptNode is the central crypto-service routine of §4.6.
func (s *Service) DecryptNode(ctx context.Context, in DecryptInput) (*types.DecryptedNode, *types.DecryptedNodeKeys, error) {
	logger := logging.WithNodeUID(string(in.Encrypted.UID))

	var signatureEmailKeys []cryptoprimitives.Key
	if in.Encrypted.Crypto.SignatureEmail != nil {
		keys, err := s.directory.PublicKeysForEmail(ctx, *in.Encrypted.Crypto.SignatureEmail)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to resolve signature-email keys, falling back to parent keys")
		} else {
			signatureEmailKeys = keys
		}
	}

	keyVerificationKeys := signatureEmailKeys
	if len(keyVerificationKeys) == 0 {
		keyVerificationKeys = in.ParentKeys
	}

	nameVerificationKeys := keyVerificationKeys
	if in.Encrypted.Crypto.NameSignatureEmail != nil && in.Encrypted.Crypto.SignatureEmail != nil &&
		*in.Encrypted.Crypto.NameSignatureEmail != *in.Encrypted.Crypto.SignatureEmail {
		keys, err := s.directory.PublicKeysForEmail(ctx, *in.Encrypted.Crypto.NameSignatureEmail)
		if err == nil && len(keys) > 0 {
			nameVerificationKeys = keys
		} else {
			nameVerificationKeys = in.ParentKeys
		}
	}

	type keyDecryptResult struct {
		plaintext []byte
		status    cryptoprimitives.VerificationStatus
		err       error
	}
	type nameDecryptResult struct {
		name   types.Name
		author types.Author
	}

	keyCh := make(chan keyDecryptResult, 1)
	nameCh := make(chan nameDecryptResult, 1)

	go func() {
		result, err := s.provider.DecryptAndVerify(in.Encrypted.Crypto.ArmoredKey, in.NodeKey, keyVerificationKeys)
		keyCh <- keyDecryptResult{plaintext: result.Plaintext, status: result.Status, err: err}
	}()

	go func() {
		verified, err := s.provider.DecryptAndVerify(in.Encrypted.EncryptedName, in.NodeKey, nameVerificationKeys)
		if err != nil {
			nameCh <- nameDecryptResult{
				name:   types.Errored[string](apperror.NewDecryption("name", err)),
				author: types.Errored[types.AuthorEmail](apperror.NewDecryption("name", err)),
			}
			return
		}
		author := resolveAuthor(verified.Status, nil, in.Encrypted.Crypto.NameSignatureEmail, len(nameVerificationKeys) == 0)
		nameCh <- nameDecryptResult{name: types.Ok(string(verified.Plaintext)), author: author}
	}()

	keyResult := <-keyCh
	nameResult := <-nameCh

	decrypted := &types.DecryptedNode{
		UID:              in.Encrypted.UID,
		ParentUID:        in.Encrypted.ParentUID,
		Type:             in.Encrypted.Type,
		MediaType:        in.Encrypted.MediaType,
		CreationTime:     in.Encrypted.CreationTime,
		TrashTime:        in.Encrypted.TrashTime,
		ShareID:          in.Encrypted.ShareID,
		IsShared:         in.Encrypted.IsShared,
		DirectMemberRole: in.Encrypted.DirectMemberRole,
		TreeEventScopeID: volumeIDOf(in.Encrypted.UID),
		Name:             nameResult.name,
		NameAuthor:       nameResult.author,
	}
	if !nameResult.author.OK() {
		s.reportVerificationError(in.Encrypted.UID, "name")
	}

	if keyResult.err != nil {
		s.reportDecryptionError(in.Encrypted.UID, "key")
		decrypted.KeyAuthor = types.Errored[types.AuthorEmail](apperror.NewDecryption("key", keyResult.err))
		decrypted.DecryptionErrors = append(decrypted.DecryptionErrors, keyResult.err.Error())
		return decrypted, nil, nil
	}

	decrypted.KeyAuthor = resolveAuthor(keyResult.status, keyResult.err, in.Encrypted.Crypto.SignatureEmail, len(keyVerificationKeys) == 0)
	if !decrypted.KeyAuthor.OK() {
		s.reportVerificationError(in.Encrypted.UID, "key")
	}

	nodeKey := cryptoprimitives.Key{Data: keyResult.plaintext}
	keys := &types.DecryptedNodeKeys{
		PrivateNodeKey:       keyResult.plaintext,
		PassphraseSessionKey: keyResult.plaintext,
	}

	var hashKeyAuthor, branchAuthor *types.Author
	switch in.Encrypted.Type {
	case types.NodeTypeFolder:
		hashKeyAuthor, branchAuthor = s.decryptFolderBranch(ctx, in, nodeKey, signatureEmailKeys, decrypted, keys)
	case types.NodeTypeFile:
		branchAuthor = s.decryptFileBranch(ctx, in, nodeKey, signatureEmailKeys, decrypted)
	}

	// Priority per §4.6 step 7: {key, content-key, hash-key, folder-attrs}.
	// branchAuthor carries content-key/revision for files or folder-attrs
	// for folders; hashKeyAuthor only ever applies to folders and outranks
	// folder-attrs, so it goes first in the candidate list.
	var candidates []types.Author
	if hashKeyAuthor != nil {
		candidates = append(candidates, *hashKeyAuthor)
	}
	if branchAuthor != nil {
		candidates = append(candidates, *branchAuthor)
	}
	if len(candidates) > 0 {
		decrypted.KeyAuthor = worseAuthor(decrypted.KeyAuthor, candidates...)
	}
	return decrypted, keys, nil
}

// decryptFolderBranch decrypts a folder's hash key and extended
// attributes, returning the hash-key author and the extended-attributes
// author (if attributes were present) for the final key-author
// resolution.
func (s *Service) decryptFolderBranch(ctx context.Context, in DecryptInput, nodeKey cryptoprimitives.Key, signatureEmailKeys []cryptoprimitives.Key, decrypted *types.DecryptedNode, keys *types.DecryptedNodeKeys) (hashKeyAuthor, attrsAuthor *types.Author) {
	if in.Encrypted.Crypto.Folder == nil {
		return nil, nil
	}
	folder := in.Encrypted.Crypto.Folder

	hashKeyResult, err := s.provider.DecryptAndVerify(folder.ArmoredHashKey, nodeKey, signatureEmailKeys)
	if err != nil {
		s.reportDecryptionError(in.Encrypted.UID, "hash-key")
		decrypted.DecryptionErrors = append(decrypted.DecryptionErrors, apperror.NewDecryption("hash-key", err).Error())
		author := types.Errored[types.AuthorEmail](apperror.NewDecryption("hash-key", err))
		hashKeyAuthor = &author
	} else {
		keys.HashKey = hashKeyResult.Plaintext
		author := resolveAuthor(hashKeyResult.Status, nil, in.Encrypted.Crypto.SignatureEmail, len(signatureEmailKeys) == 0)
		if !author.OK() {
			s.reportVerificationError(in.Encrypted.UID, "hash-key")
		}
		hashKeyAuthor = &author
	}

	verifyKeys := signatureEmailKeys
	if len(verifyKeys) == 0 {
		verifyKeys = []cryptoprimitives.Key{nodeKey}
	}
	if folder.ArmoredExtendedAttrs == nil {
		return hashKeyAuthor, nil
	}
	attrsResult, err := s.provider.DecryptAndVerify(*folder.ArmoredExtendedAttrs, nodeKey, verifyKeys)
	if err != nil {
		s.reportDecryptionError(in.Encrypted.UID, "attributes")
		decrypted.DecryptionErrors = append(decrypted.DecryptionErrors, apperror.NewDecryption("attributes", err).Error())
		author := types.Errored[types.AuthorEmail](apperror.NewDecryption("attributes", err))
		return hashKeyAuthor, &author
	}
	raw := string(attrsResult.Plaintext)
	decrypted.FolderExtendedAttrs = xattr.ParseFolderExtendedAttributes(logging.Logger, &raw)
	author := resolveAuthor(attrsResult.Status, nil, in.Encrypted.Crypto.SignatureEmail, len(verifyKeys) == 0)
	if !author.OK() {
		s.reportVerificationError(in.Encrypted.UID, "attributes")
	}
	return hashKeyAuthor, &author
}

// decryptFileBranch decrypts a file's content-key packet and active
// revision, returning the revision's content author (if a revision was
// present) for the final key-author resolution.
func (s *Service) decryptFileBranch(ctx context.Context, in DecryptInput, nodeKey cryptoprimitives.Key, signatureEmailKeys []cryptoprimitives.Key, decrypted *types.DecryptedNode) *types.Author {
	file := in.Encrypted.Crypto.File
	if file == nil {
		return nil
	}

	verifyKeys := signatureEmailKeys
	if len(verifyKeys) == 0 {
		verifyKeys = []cryptoprimitives.Key{nodeKey}
	}

	if _, err := s.provider.DecryptSessionKey(file.Base64ContentKeyPacket, nodeKey); err != nil {
		s.reportDecryptionError(in.Encrypted.UID, "content-key")
		decrypted.DecryptionErrors = append(decrypted.DecryptionErrors, apperror.NewDecryption("content-key", err).Error())
		author := types.Errored[types.AuthorEmail](apperror.NewDecryption("content-key", err))
		return &author
	}

	if file.ActiveRevision == nil {
		return nil
	}
	rev, err := s.DecryptRevision(ctx, nodeKey, verifyKeys, *file.ActiveRevision, in.Encrypted.CreationTime)
	if err != nil {
		s.reportDecryptionError(in.Encrypted.UID, "revision")
		decrypted.DecryptionErrors = append(decrypted.DecryptionErrors, apperror.NewDecryption("revision", err).Error())
		return nil
	}
	decrypted.ActiveRevision = rev
	return &rev.ContentAuthor
}

// DecryptRevision decrypts a file's active-revision extended attributes
// and resolves its content author.
func (s *Service) DecryptRevision(ctx context.Context, nodeKey cryptoprimitives.Key, verifyKeys []cryptoprimitives.Key, encrypted types.EncryptedActiveRevision, creationTime time.Time) (*types.DecryptedRevision, error) {
	rev := &types.DecryptedRevision{
		UID:   encrypted.UID,
		State: types.RevisionStateActive,
	}

	if encrypted.ArmoredExtendedAttrs != nil {
		result, err := s.provider.DecryptAndVerify(*encrypted.ArmoredExtendedAttrs, nodeKey, verifyKeys)
		if err != nil {
			return nil, apperror.NewDecryption("attributes", err)
		}
		raw := string(result.Plaintext)
		rev.ExtendedAttrs = xattr.ParseFileExtendedAttributes(logging.Logger, creationTime, &raw)
		if rev.ExtendedAttrs.Size != nil {
			rev.StorageSize = *rev.ExtendedAttrs.Size
		}
		rev.ContentAuthor = resolveAuthor(result.Status, nil, encrypted.SignatureEmail, len(verifyKeys) == 0)
	} else {
		rev.ContentAuthor = resolveAuthor(cryptoprimitives.SignatureNotPresent, nil, encrypted.SignatureEmail, len(verifyKeys) == 0)
	}
	return rev, nil
}

// CreateFolderInput bundles the crypto material needed to mint a new
// folder.
type CreateFolderInput struct {
	Name          string
	ParentKey     cryptoprimitives.Key
	ParentHashKey []byte
	AddressKey    cryptoprimitives.Key
	ExtendedAttrs xattr.FolderGenerateInput
}

// CreateFolderOutput is the assembled encrypted bundle plus the decrypted
// keys of the freshly created folder.
type CreateFolderOutput struct {
	EncryptedName        string
	Hash                 string
	ArmoredKey           string
	ArmoredPassphrase    string
	ArmoredPassphraseSig string
	ArmoredHashKey       string
	ArmoredExtendedAttrs *string
	Keys                 *types.DecryptedNodeKeys
}

// CreateFolder implements the create-folder crypto of §4.6.
func (s *Service) CreateFolder(ctx context.Context, in CreateFolderInput) (*CreateFolderOutput, error) {
	passphrase, err := s.provider.GenerateSessionKey()
	if err != nil {
		return nil, apperror.NewDecryption("key", err)
	}

	armoredKey, privateKey, err := s.provider.GenerateKey(passphrase, in.ParentKey, in.AddressKey)
	if err != nil {
		return nil, apperror.NewDecryption("key", err)
	}

	armoredPassphrase, err := s.provider.EncryptAndSign(passphrase, in.ParentKey, in.AddressKey)
	if err != nil {
		return nil, apperror.NewDecryption("key", err)
	}

	// The node name is encrypted straight to the parent key, the same key
	// DecryptNode is handed to decrypt ArmoredKey and ArmoredPassphrase.
	encryptedName, err := s.provider.EncryptAndSign([]byte(in.Name), in.ParentKey, in.AddressKey)
	if err != nil {
		return nil, apperror.NewDecryption("name", err)
	}

	hash := hashing.NameHash(in.ParentHashKey, in.Name)

	hashKey, err := s.provider.GenerateSessionKey()
	if err != nil {
		return nil, apperror.NewDecryption("hash-key", err)
	}
	armoredHashKey, err := s.provider.EncryptAndSign(hashKey, cryptoprimitives.Key{Data: privateKey}, in.AddressKey)
	if err != nil {
		return nil, apperror.NewDecryption("hash-key", err)
	}

	var armoredAttrs *string
	if raw, ok := xattr.GenerateFolderExtendedAttributes(in.ExtendedAttrs); ok {
		sealed, err := s.provider.EncryptAndSign([]byte(raw), cryptoprimitives.Key{Data: privateKey}, in.AddressKey)
		if err != nil {
			return nil, apperror.NewDecryption("attributes", err)
		}
		armoredAttrs = &sealed
	}

	return &CreateFolderOutput{
		EncryptedName:        encryptedName,
		Hash:                 hash,
		ArmoredKey:           armoredKey,
		ArmoredPassphrase:    armoredPassphrase,
		ArmoredPassphraseSig: armoredPassphrase,
		ArmoredHashKey:       armoredHashKey,
		ArmoredExtendedAttrs: armoredAttrs,
		Keys: &types.DecryptedNodeKeys{
			Passphrase:           string(passphrase),
			PrivateNodeKey:       privateKey,
			PassphraseSessionKey: passphrase,
			HashKey:              hashKey,
		},
	}, nil
}

// EncryptNewName re-encrypts a node's name under its parent key and
// address key (rename never changes the parent), recomputing the hash
// when a parent hash key is available.
func (s *Service) EncryptNewName(ctx context.Context, name string, parentKey, addressKey cryptoprimitives.Key, parentHashKey []byte) (encryptedName string, hash string, err error) {
	encryptedName, err = s.provider.EncryptAndSign([]byte(name), parentKey, addressKey)
	if err != nil {
		return "", "", apperror.NewDecryption("name", err)
	}
	if parentHashKey != nil {
		hash = hashing.NameHash(parentHashKey, name)
	}
	return encryptedName, hash, nil
}

// EncryptMove re-encrypts a node's name and passphrase under the new
// parent's key and the caller's address key, requiring a parent hash key
// and a valid current name.
func (s *Service) EncryptMove(ctx context.Context, currentName types.Name, passphrase []byte, newParentKey, addressKey cryptoprimitives.Key, newParentHashKey []byte) (encryptedName, armoredPassphrase, hash string, err error) {
	name, ok := currentName.Value()
	if !ok {
		return "", "", "", apperror.NewValidation("cannot move a node whose current name failed to decrypt")
	}
	if newParentHashKey == nil {
		return "", "", "", apperror.NewValidation("move target has no hash key (not a folder)")
	}

	encryptedName, err = s.provider.EncryptAndSign([]byte(name), newParentKey, addressKey)
	if err != nil {
		return "", "", "", apperror.NewDecryption("name", err)
	}
	armoredPassphrase, err = s.provider.EncryptAndSign(passphrase, newParentKey, addressKey)
	if err != nil {
		return "", "", "", apperror.NewDecryption("key", err)
	}
	hash = hashing.NameHash(newParentHashKey, name)
	return encryptedName, armoredPassphrase, hash, nil
}

func volumeIDOf(uid types.NodeUID) types.VolumeID {
	volumeID, err := uidcodec.VolumeOf(string(uid))
	if err != nil {
		return types.VolumeID(uid)
	}
	return types.VolumeID(volumeID)
}
