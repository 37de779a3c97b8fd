package apiservice

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/types"
)

// ResponseCode is the per-item status the backend attaches to batched
// mutation responses.
type ResponseCode string

const (
	CodeOK     ResponseCode = "OK"
	CodeOKMany ResponseCode = "OK_MANY"
)

// RenamePayload is what renameNode sends, once the crypto service has
// produced the encrypted name.
type RenamePayload struct {
	EncryptedName      string
	NameSignatureEmail *string
	Hash               string
}

// MovePayload is what moveNode sends, once the crypto service has
// re-encrypted the passphrase and name under the new parent.
type MovePayload struct {
	NewParentUID               types.NodeUID
	ArmoredPassphrase          string
	ArmoredPassphraseSignature *string
	SignatureEmail             *string
	EncryptedName              string
	NameSignatureEmail         *string
	Hash                       string
	// ContentHash is a documented gap: photo moves require a content
	// hash this module does not yet compute. Left typed and always nil
	// until a follow-up defines the algorithm.
	ContentHash *string
}

// CreateFolderPayload is what createFolder sends.
type CreateFolderPayload struct {
	EncryptedName              string
	NameSignatureEmail         *string
	Hash                       string
	ArmoredKey                 string
	ArmoredPassphrase          string
	ArmoredPassphraseSignature string
	SignatureEmail             *string
	ArmoredHashKey             string
	ArmoredExtendedAttrs       *string
}

// UIDResult is one element of a per-UID batched mutation response.
type UIDResult struct {
	UID  types.NodeUID
	Code ResponseCode
	// Error is set when Code is neither OK nor OK_MANY.
	Error string
}

// OK reports whether this result represents backend success.
func (r UIDResult) OK() bool { return r.Code == CodeOK || r.Code == CodeOKMany }

// ChildrenPage is one page of an anchor-paginated children listing.
type ChildrenPage struct {
	NodeUIDs   []types.NodeUID
	NextAnchor string
	HasMore    bool
}

// TrashedPage is one page of the page-number-paginated trashed listing.
// The backend quirk this module preserves: pagination stops on the first
// fully empty page, not when HasMore is first false.
type TrashedPage struct {
	NodeUIDs []types.NodeUID
	HasMore  bool
}

// Transport is the out-of-scope wire client boundary: HTTP to the
// backend. All methods may fail with a network or API error, which
// apiservice wraps in apperror.TransportError before surfacing it.
type Transport interface {
	GetNode(ctx context.Context, uid types.NodeUID) (types.EncryptedNode, error)
	// GetNodes fetches multiple nodes in one call; all uids must share a
	// single volume, which callers assert before calling.
	GetNodes(ctx context.Context, volumeID types.VolumeID, uids []types.NodeUID) ([]types.EncryptedNode, error)

	GetChildrenPage(ctx context.Context, parentUID types.NodeUID, anchor string) (ChildrenPage, error)
	GetTrashedPage(ctx context.Context, volumeID types.VolumeID, page int) (TrashedPage, error)

	RenameNode(ctx context.Context, uid types.NodeUID, originalHash string, payload RenamePayload) error
	MoveNode(ctx context.Context, uid types.NodeUID, originalHash string, payload MovePayload) error

	TrashNodes(ctx context.Context, uids []types.NodeUID) ([]UIDResult, error)
	RestoreNodes(ctx context.Context, uids []types.NodeUID) ([]UIDResult, error)
	DeleteNodes(ctx context.Context, uids []types.NodeUID) ([]UIDResult, error)

	CreateFolder(ctx context.Context, parentUID types.NodeUID, payload CreateFolderPayload) (types.NodeUID, error)

	GetRevisions(ctx context.Context, nodeUID types.NodeUID) ([]types.EncryptedActiveRevision, error)
	RestoreRevision(ctx context.Context, revisionUID types.RevisionUID) error
	DeleteRevision(ctx context.Context, revisionUID types.RevisionUID) error

	GetSharedByMePage(ctx context.Context, anchor string) ([]types.NodeUID, string, bool, error)
	GetSharedWithMePage(ctx context.Context, anchor string) ([]types.NodeUID, string, bool, error)

	GetInvitations(ctx context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error)
	GetExternalInvitations(ctx context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error)
	GetMembers(ctx context.Context, shareID types.ShareID) ([]types.EncryptedMember, error)
	GetPublicLinks(ctx context.Context, shareID types.ShareID) ([]types.EncryptedPublicLink, error)
	GetBookmarks(ctx context.Context) ([]types.EncryptedBookmark, error)

	CreateShare(ctx context.Context, nodeUID types.NodeUID) (types.ShareID, error)
	DeleteShare(ctx context.Context, shareID types.ShareID) error

	CreateInvitation(ctx context.Context, shareID types.ShareID, email string, role types.Role, armoredSessionKey string, external bool) (types.EncryptedInvitation, error)
	UpdateInvitation(ctx context.Context, invitationUID types.InvitationUID, role types.Role) error
	DeleteInvitation(ctx context.Context, invitationUID types.InvitationUID) error
	ResendInvitation(ctx context.Context, invitationUID types.InvitationUID) error

	UpdateMember(ctx context.Context, memberUID types.MemberUID, role types.Role) error
	DeleteMember(ctx context.Context, memberUID types.MemberUID) error

	CreatePublicLink(ctx context.Context, shareID types.ShareID, armoredPassword string, passwordLength int) (types.EncryptedPublicLink, error)
	UpdatePublicLink(ctx context.Context, publicLinkUID types.PublicLinkUID, expirationTime *int64) error
	DeletePublicLink(ctx context.Context, publicLinkUID types.PublicLinkUID) error
}
