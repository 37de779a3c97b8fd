package types

import "time"

// ExternalInvitationState distinguishes an invitation sent to an email
// with no Proton account yet from one that has since registered.
type ExternalInvitationState int

const (
	ExternalInvitationPending ExternalInvitationState = iota
	ExternalInvitationRegistered
)

// PublicLinkPasswordType distinguishes a public link's generated 12-char
// password from one the sharer chose themselves.
type PublicLinkPasswordType int

const (
	PublicLinkPasswordGenerated PublicLinkPasswordType = iota
	PublicLinkPasswordCustom
)

// EncryptedInvitation is an invitation record as delivered by the backend,
// scoped to a share.
type EncryptedInvitation struct {
	UID           InvitationUID
	InviteeEmail  string
	InviterEmail  string
	Role          Role
	CreateTime    time.Time
	Armored       string // armored session key, encrypted to the invitee
	External      bool
	ExternalState ExternalInvitationState
}

// DecryptedInvitation is an invitation after the inviter's address has
// been signature-verified.
type DecryptedInvitation struct {
	UID           InvitationUID
	InviteeEmail  string
	AddedByEmail  Author
	Role          Role
	CreateTime    time.Time
	External      bool
	ExternalState ExternalInvitationState
}

// EncryptedMember is a share member as delivered by the backend.
type EncryptedMember struct {
	UID          MemberUID
	Email        string
	InviterEmail string
	Role         Role
	CreateTime   time.Time
}

// DecryptedMember is a share member after inviter verification.
type DecryptedMember struct {
	UID          MemberUID
	Email        string
	AddedByEmail Author
	Role         Role
	CreateTime   time.Time
}

// EncryptedPublicLink is a public link as delivered by the backend.
type EncryptedPublicLink struct {
	UID             PublicLinkUID
	URL             string
	ArmoredPassword string
	PasswordType    PublicLinkPasswordType
	PasswordLength  int
	ExpirationTime  *time.Time
	CreatorEmail    *string
}

// DecryptedPublicLink is a public link after creator verification.
type DecryptedPublicLink struct {
	UID            PublicLinkUID
	URL            string
	Password       Result[string]
	PasswordType   PublicLinkPasswordType
	ExpirationTime *time.Time
	CreatedByEmail Author
}

// ShareURL assembles the link a sharer copies and sends out: the bare URL
// with the decrypted password appended as a fragment. Per a known backend
// quirk, a custom password is appended with a trailing marker so clients
// that only understand generated passwords don't try to strip and reuse
// it as one.
func (l DecryptedPublicLink) ShareURL() string {
	password, ok := l.Password.Value()
	if !ok {
		return l.URL
	}
	if l.PasswordType == PublicLinkPasswordCustom {
		return l.URL + "#" + password + "customPassword"
	}
	return l.URL + "#" + password
}

// EncryptedBookmark is a public-link bookmark as delivered by the backend.
type EncryptedBookmark struct {
	PublicLinkUID PublicLinkUID
	EncryptedName string
	CreateTime    time.Time
}

// DecryptedBookmark is a bookmark after name decryption.
type DecryptedBookmark struct {
	PublicLinkUID PublicLinkUID
	Name          Name
	CreateTime    time.Time
}
