package types

import (
	"time"

	"github.com/protonmail/drive-node-core/pkg/xattr"
)

// FolderCrypto is the encrypted-node branch carried by folders: an
// armored hash key and optionally armored extended attributes.
type FolderCrypto struct {
	ArmoredHashKey       string
	ArmoredExtendedAttrs *string
}

// EncryptedActiveRevision is the active-revision descriptor nested inside
// a file's encrypted crypto bundle.
type EncryptedActiveRevision struct {
	UID                  RevisionUID
	SignatureEmail       *string
	ArmoredExtendedAttrs *string
}

// FileCrypto is the encrypted-node branch carried by files: a base64
// content-key packet, its optional signature, and the active revision.
type FileCrypto struct {
	Base64ContentKeyPacket    string
	ContentKeyPacketSignature *string
	ActiveRevision            *EncryptedActiveRevision
}

// EncryptedCrypto is the crypto bundle on an EncryptedNode. Exactly one of
// Folder or File is set, discriminated by the owning node's Type — this is
// the tagged-variant rendition of what the source models as a
// discriminated union.
type EncryptedCrypto struct {
	ArmoredKey                 string
	ArmoredPassphrase          string
	ArmoredPassphraseSignature string
	SignatureEmail             *string
	NameSignatureEmail         *string

	Folder *FolderCrypto
	File   *FileCrypto
}

// EncryptedMembership is the membership record embedded in an
// EncryptedNode, before any signature verification has been attempted.
type EncryptedMembership struct {
	Role         Role
	InviteTime   time.Time
	InviterEmail *string
}

// EncryptedNode is a node exactly as delivered by the backend: every
// crypto-bearing field is still armored/opaque. Safe to log in full.
type EncryptedNode struct {
	UID              NodeUID
	ParentUID        *NodeUID
	Type             NodeType
	MediaType        *string
	CreationTime     time.Time
	TrashTime        *time.Time
	ShareID          *ShareID
	IsShared         bool
	DirectMemberRole Role
	Membership       *EncryptedMembership
	Hash             string
	EncryptedName    string
	Crypto           EncryptedCrypto
}

// Thumbnail describes one generated preview of a file's active revision.
// Thumbnail generation itself is out of scope; this is the metadata shape
// a decrypted revision carries.
type Thumbnail struct {
	Type string
	Size int64
}

// DecryptedRevision is a file revision after crypto service processing and
// extended-attributes parsing.
type DecryptedRevision struct {
	UID           RevisionUID
	State         RevisionState
	CreationTime  time.Time
	StorageSize   int64
	ContentAuthor Author
	ExtendedAttrs *xattr.ParsedFileExtendedAttributes
	Thumbnails    []Thumbnail
}

// DecryptedMembership is a node's membership after its inviter's author
// result has been resolved.
type DecryptedMembership struct {
	Role           Role
	InviteTime     time.Time
	SharedByAuthor Author
}

// DecryptedNode is the parsed, validated, author-resolved rendition of an
// EncryptedNode produced by the crypto service and nodes-parsing stage.
type DecryptedNode struct {
	UID              NodeUID
	ParentUID        *NodeUID
	Type             NodeType
	MediaType        *string
	CreationTime     time.Time
	TrashTime        *time.Time
	ShareID          *ShareID
	IsShared         bool
	DirectMemberRole Role

	Name       Name
	KeyAuthor  Author
	NameAuthor Author

	ActiveRevision      *DecryptedRevision
	FolderExtendedAttrs *xattr.ParsedFolderExtendedAttributes

	Membership *DecryptedMembership

	// DecryptionErrors carries the message of each partial decryption/
	// verification failure recorded while building this node. Messages,
	// not error values: the cache serializes DecryptedNode to JSON, and a
	// plain error interface marshals to "{}" and fails to unmarshal back,
	// which would make any node that ever had a recorded failure
	// permanently un-cacheable.
	DecryptionErrors []string
	TreeEventScopeID VolumeID
	IsStale          bool
}

// DecryptedNodeKeys holds key material derived while decrypting a node.
// Never persisted in clear; lives only in the process-local crypto cache.
type DecryptedNodeKeys struct {
	Passphrase                 string
	PrivateNodeKey             []byte
	PassphraseSessionKey       []byte
	ContentKeyPacketSessionKey []byte
	HashKey                    []byte
}
