package sharingmanagement

import (
	"context"
	"crypto/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/protonmail/drive-node-core/pkg/accountdirectory"
	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/nodesaccess"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// Service reads and mutates node shares.
type Service struct {
	api       *apiservice.Service
	nodes     *nodesaccess.Service
	crypto    cryptoprimitives.Provider
	directory accountdirectory.Directory
}

// New builds a Service.
func New(api *apiservice.Service, nodes *nodesaccess.Service, crypto cryptoprimitives.Provider, directory accountdirectory.Directory) *Service {
	return &Service{api: api, nodes: nodes, crypto: crypto, directory: directory}
}

// GetSharingInfo returns uid's share state, empty if the node has no
// share. Invitations, external invitations, members, and the public link
// are fetched concurrently.
func (s *Service) GetSharingInfo(ctx context.Context, uid types.NodeUID) (*SharingInfo, error) {
	node, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return nil, err
	}
	if node.ShareID == nil {
		return &SharingInfo{}, nil
	}
	shareID := *node.ShareID

	var invitations, external []types.EncryptedInvitation
	var members []types.EncryptedMember
	var publicLinks []types.EncryptedPublicLink

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		invitations, err = s.api.GetInvitations(gctx, shareID)
		return err
	})
	group.Go(func() error {
		var err error
		external, err = s.api.GetExternalInvitations(gctx, shareID)
		return err
	})
	group.Go(func() error {
		var err error
		members, err = s.api.GetMembers(gctx, shareID)
		return err
	})
	group.Go(func() error {
		var err error
		publicLinks, err = s.api.GetPublicLinks(gctx, shareID)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	info := &SharingInfo{
		Invitations:         s.decryptInvitations(ctx, invitations),
		ExternalInvitations: s.decryptInvitations(ctx, external),
		Members:             s.decryptMembers(members),
	}
	if len(publicLinks) > 0 {
		if len(publicLinks) > 1 {
			logging.Logger.Warn().
				Str("node_uid", string(uid)).
				Int("count", len(publicLinks)).
				Msg("node has more than one public link; using the first")
		}
		link := s.decryptPublicLink(ctx, uid, publicLinks[0])
		info.PublicLink = &link
	}
	return info, nil
}

// verifyEmail resolves email against the account directory, the same
// downgrade-on-unresolvable-key policy the crypto service applies to a
// node's signature email: no address on file degrades the author instead
// of failing the whole listing.
func (s *Service) verifyEmail(ctx context.Context, email string) types.Author {
	if email == "" {
		return types.AnonymousAuthor()
	}
	keys, err := s.directory.PublicKeysForEmail(ctx, email)
	if err != nil {
		return types.Errored[types.AuthorEmail](err)
	}
	if len(keys) == 0 {
		return types.Errored[types.AuthorEmail](apperror.NewDecryption("signature", apperror.NewNotFound("address key", email)))
	}
	return types.AuthoredBy(email)
}

func (s *Service) decryptInvitations(ctx context.Context, in []types.EncryptedInvitation) []types.DecryptedInvitation {
	out := make([]types.DecryptedInvitation, len(in))
	for i, enc := range in {
		out[i] = types.DecryptedInvitation{
			UID:           enc.UID,
			InviteeEmail:  enc.InviteeEmail,
			AddedByEmail:  s.verifyEmail(ctx, enc.InviterEmail),
			Role:          enc.Role,
			CreateTime:    enc.CreateTime,
			External:      enc.External,
			ExternalState: enc.ExternalState,
		}
	}
	return out
}

func (s *Service) decryptMembers(in []types.EncryptedMember) []types.DecryptedMember {
	out := make([]types.DecryptedMember, len(in))
	for i, enc := range in {
		out[i] = types.DecryptedMember{
			UID:          enc.UID,
			Email:        enc.Email,
			AddedByEmail: s.verifyEmail(context.Background(), enc.InviterEmail),
			Role:         enc.Role,
			CreateTime:   enc.CreateTime,
		}
	}
	return out
}

func (s *Service) decryptPublicLink(ctx context.Context, uid types.NodeUID, enc types.EncryptedPublicLink) types.DecryptedPublicLink {
	author := types.AnonymousAuthor()
	if enc.CreatorEmail != nil {
		author = types.AuthoredBy(*enc.CreatorEmail)
	}
	return types.DecryptedPublicLink{
		UID:            enc.UID,
		URL:            enc.URL,
		Password:       s.decryptPublicLinkPassword(ctx, uid, enc.ArmoredPassword),
		PasswordType:   enc.PasswordType,
		ExpirationTime: enc.ExpirationTime,
		CreatedByEmail: author,
	}
}

// decryptPublicLinkPassword reverses preparePublicLinkPassword's
// EncryptAndSign. A share whose owning node this account cannot decrypt
// (e.g. one shared with us rather than owned by us) yields an error
// result rather than a thrown error: the rest of the public link is still
// usable even without the plaintext password.
func (s *Service) decryptPublicLinkPassword(ctx context.Context, uid types.NodeUID, armored string) types.Result[string] {
	if armored == "" {
		return types.Errored[string](apperror.NewNotFound("public link password", string(uid)))
	}
	keys, err := s.nodes.GetNodeKeys(ctx, uid)
	if err != nil {
		return types.Errored[string](err)
	}
	addressKey, err := s.directory.OwnAddressKey(ctx)
	if err != nil {
		return types.Errored[string](err)
	}
	plaintext, err := s.crypto.DecryptAndVerify(armored, cryptoprimitives.Key{Data: keys.PrivateNodeKey}, []cryptoprimitives.Key{addressKey})
	if err != nil {
		return types.Errored[string](apperror.NewDecryption("public link password", err))
	}
	return types.Ok(string(plaintext.Plaintext))
}

// ShareNode reconciles uid's share with settings: creating the share if
// missing, updating or creating invitations/members per target email, and
// creating, updating, or removing the public link.
func (s *Service) ShareNode(ctx context.Context, uid types.NodeUID, settings ShareSettings) error {
	if settings.PublicLink != nil && settings.PublicLink.Enabled && settings.PublicLink.ExpirationTime != nil {
		if settings.PublicLink.ExpirationTime.Before(time.Now()) {
			return apperror.NewValidation("public link expiration time is in the past")
		}
	}

	node, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return err
	}

	shareID, err := s.ensureShare(ctx, uid, node)
	if err != nil {
		return err
	}

	if len(settings.Members) > 0 {
		if err := s.reconcileMembers(ctx, uid, shareID, settings.Members); err != nil {
			return err
		}
	}
	if settings.PublicLink != nil {
		if err := s.reconcilePublicLink(ctx, uid, shareID, *settings.PublicLink); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureShare(ctx context.Context, uid types.NodeUID, node *types.DecryptedNode) (types.ShareID, error) {
	if node.ShareID != nil {
		return *node.ShareID, nil
	}
	shareID, err := s.api.CreateShare(ctx, uid)
	if err != nil {
		return "", err
	}
	if _, err := s.nodes.NotifyNodeChanged(ctx, uid, nil); err != nil {
		return "", err
	}
	return shareID, nil
}

func (s *Service) reconcileMembers(ctx context.Context, uid types.NodeUID, shareID types.ShareID, targets []MemberSettings) error {
	invitations, err := s.api.GetInvitations(ctx, shareID)
	if err != nil {
		return err
	}
	external, err := s.api.GetExternalInvitations(ctx, shareID)
	if err != nil {
		return err
	}
	members, err := s.api.GetMembers(ctx, shareID)
	if err != nil {
		return err
	}

	for _, target := range targets {
		if err := s.reconcileTarget(ctx, uid, shareID, target, invitations, external, members); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reconcileTarget(
	ctx context.Context,
	uid types.NodeUID,
	shareID types.ShareID,
	target MemberSettings,
	invitations, external []types.EncryptedInvitation,
	members []types.EncryptedMember,
) error {
	for _, inv := range invitations {
		if inv.InviteeEmail == target.Email {
			if inv.Role != target.Role {
				return s.api.UpdateInvitation(ctx, inv.UID, target.Role)
			}
			return nil
		}
	}
	for _, inv := range external {
		if inv.InviteeEmail == target.Email {
			if inv.Role != target.Role {
				return s.api.UpdateInvitation(ctx, inv.UID, target.Role)
			}
			return nil
		}
	}
	for _, member := range members {
		if member.Email == target.Email {
			if member.Role != target.Role {
				return s.api.UpdateMember(ctx, member.UID, target.Role)
			}
			return nil
		}
	}
	return s.createInvitation(ctx, uid, shareID, target)
}

// createInvitation sends a fresh invitation. A Proton address gets the
// share's passphrase session key wrapped to its public key now; a
// non-Proton address gets an empty session key and registers as pending
// until it creates an account and the key can be wrapped retroactively.
func (s *Service) createInvitation(ctx context.Context, uid types.NodeUID, shareID types.ShareID, target MemberSettings) error {
	isProton, err := s.directory.IsProtonAddress(ctx, target.Email)
	if err != nil {
		return err
	}

	armoredSessionKey := ""
	if isProton {
		armoredSessionKey, err = s.wrapSessionKeyFor(ctx, uid, target.Email)
		if err != nil {
			return err
		}
	}
	_, err = s.api.CreateInvitation(ctx, shareID, target.Email, target.Role, armoredSessionKey, !isProton)
	return err
}

func (s *Service) wrapSessionKeyFor(ctx context.Context, uid types.NodeUID, email string) (string, error) {
	recipientKeys, err := s.directory.PublicKeysForEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if len(recipientKeys) == 0 {
		return "", apperror.NewNotFound("address key", email)
	}
	keys, err := s.nodes.GetNodeKeys(ctx, uid)
	if err != nil {
		return "", err
	}
	return s.crypto.EncryptSessionKey(keys.PassphraseSessionKey, recipientKeys[0])
}

func (s *Service) reconcilePublicLink(ctx context.Context, uid types.NodeUID, shareID types.ShareID, settings PublicLinkSettings) error {
	existing, err := s.api.GetPublicLinks(ctx, shareID)
	if err != nil {
		return err
	}

	if !settings.Enabled {
		if len(existing) > 0 {
			return s.api.DeletePublicLink(ctx, existing[0].UID)
		}
		return nil
	}

	var expiration *int64
	if settings.ExpirationTime != nil {
		unix := settings.ExpirationTime.Unix()
		expiration = &unix
	}

	if len(existing) > 0 {
		link := existing[0]
		if link.PasswordType != types.PublicLinkPasswordGenerated || link.PasswordLength != GeneratedPasswordLength {
			return apperror.NewValidation("legacy public link %s cannot be updated in place", link.UID)
		}
		return s.api.UpdatePublicLink(ctx, link.UID, expiration)
	}

	armoredPassword, passwordLength, err := s.preparePublicLinkPassword(ctx, uid, settings.CustomPassword)
	if err != nil {
		return err
	}
	_, err = s.api.CreatePublicLink(ctx, shareID, armoredPassword, passwordLength)
	return err
}

func (s *Service) preparePublicLinkPassword(ctx context.Context, uid types.NodeUID, custom *string) (armoredPassword string, length int, err error) {
	password := custom
	if password == nil {
		generated, err := generatePassword(GeneratedPasswordLength)
		if err != nil {
			return "", 0, err
		}
		password = &generated
	}

	keys, err := s.nodes.GetNodeKeys(ctx, uid)
	if err != nil {
		return "", 0, err
	}
	addressKey, err := s.directory.OwnAddressKey(ctx)
	if err != nil {
		return "", 0, err
	}
	armored, err := s.crypto.EncryptAndSign([]byte(*password), cryptoprimitives.Key{Data: keys.PrivateNodeKey}, addressKey)
	if err != nil {
		return "", 0, err
	}
	return armored, len(*password), nil
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generatePassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.NewInternal("generating public link password: %v", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(out), nil
}

// UnshareNode removes collaborators from uid's share. A nil settings
// deletes the share outright; otherwise only the targeted emails and/or
// public link are removed, and the share itself is deleted if that leaves
// it with no members, invitations, or external invitations remaining.
func (s *Service) UnshareNode(ctx context.Context, uid types.NodeUID, settings *UnshareSettings) error {
	node, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	if node.ShareID == nil {
		return nil
	}
	shareID := *node.ShareID

	if settings == nil {
		if err := s.api.DeleteShare(ctx, shareID); err != nil {
			return err
		}
		_, err := s.nodes.NotifyNodeChanged(ctx, uid, nil)
		return err
	}

	targets := make(map[string]bool, len(settings.Emails))
	for _, email := range settings.Emails {
		targets[email] = true
	}

	invitations, err := s.api.GetInvitations(ctx, shareID)
	if err != nil {
		return err
	}
	external, err := s.api.GetExternalInvitations(ctx, shareID)
	if err != nil {
		return err
	}
	members, err := s.api.GetMembers(ctx, shareID)
	if err != nil {
		return err
	}

	remaining := 0
	for _, inv := range invitations {
		if targets[inv.InviteeEmail] {
			if err := s.api.DeleteInvitation(ctx, inv.UID); err != nil {
				return err
			}
			continue
		}
		remaining++
	}
	for _, inv := range external {
		if targets[inv.InviteeEmail] {
			if err := s.api.DeleteInvitation(ctx, inv.UID); err != nil {
				return err
			}
			continue
		}
		remaining++
	}
	for _, member := range members {
		if targets[member.Email] {
			if err := s.api.DeleteMember(ctx, member.UID); err != nil {
				return err
			}
			continue
		}
		remaining++
	}

	if settings.RemovePublicLink {
		links, err := s.api.GetPublicLinks(ctx, shareID)
		if err != nil {
			return err
		}
		if len(links) > 0 {
			if err := s.api.DeletePublicLink(ctx, links[0].UID); err != nil {
				return err
			}
		}
	}

	if remaining == 0 {
		return s.api.DeleteShare(ctx, shareID)
	}
	return nil
}

// ResendInvitationEmail re-sends invitationUID, after confirming it
// belongs under uid's share.
func (s *Service) ResendInvitationEmail(ctx context.Context, uid types.NodeUID, invitationUID types.InvitationUID) error {
	node, err := s.nodes.GetNode(ctx, uid)
	if err != nil {
		return err
	}
	if node.ShareID == nil {
		return apperror.NewValidation("node %s has no share", uid)
	}
	shareID, _, err := uidcodec.SplitInvitationUID(string(invitationUID))
	if err != nil {
		return err
	}
	if shareID != string(*node.ShareID) {
		return apperror.NewValidation("invitation %s does not belong to node %s's share", invitationUID, uid)
	}
	return s.api.ResendInvitation(ctx, invitationUID)
}
