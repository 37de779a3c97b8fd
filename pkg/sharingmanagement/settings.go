package sharingmanagement

import (
	"time"

	"github.com/protonmail/drive-node-core/pkg/types"
)

// GeneratedPasswordLength is the fixed length of a public link's
// backend-generated password. A link whose password is absent or whose
// length differs (a legacy record) cannot be updated in place.
const GeneratedPasswordLength = 12

// MemberSettings is one desired collaborator on a share.
type MemberSettings struct {
	Email string
	Role  types.Role
}

// PublicLinkSettings is the desired state of a node's public link.
// A nil CustomPassword means the backend generates a GeneratedPasswordLength
// password; ExpirationTime nil means the link never expires.
type PublicLinkSettings struct {
	Enabled        bool
	ExpirationTime *time.Time
	CustomPassword *string
}

// ShareSettings is the desired state of a node's share, diffed against
// whatever invitations/members/public link the backend already has.
type ShareSettings struct {
	Members    []MemberSettings
	PublicLink *PublicLinkSettings
}

// UnshareSettings narrows an unshare to specific collaborators and/or the
// public link; a nil UnshareSettings passed to Service.UnshareNode deletes
// the whole share.
type UnshareSettings struct {
	Emails           []string
	RemovePublicLink bool
}

// SharingInfo is a node's full share state, gathered concurrently.
type SharingInfo struct {
	Invitations         []types.DecryptedInvitation
	ExternalInvitations []types.DecryptedInvitation
	Members             []types.DecryptedMember
	PublicLink          *types.DecryptedPublicLink
}
