package sharingmanagement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/apiservice/faketransport"
	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptocache"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives/sealedref"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/entitystore/boltstore"
	"github.com/protonmail/drive-node-core/pkg/nodecache"
	"github.com/protonmail/drive-node-core/pkg/nodesaccess"
	"github.com/protonmail/drive-node-core/pkg/sharingmanagement"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
)

type fakeDirectory struct {
	keys       map[string][]cryptoprimitives.Key
	ownAddress cryptoprimitives.Key
}

func (d *fakeDirectory) PublicKeysForEmail(_ context.Context, email string) ([]cryptoprimitives.Key, error) {
	return d.keys[email], nil
}
func (d *fakeDirectory) IsProtonAddress(_ context.Context, email string) (bool, error) {
	_, ok := d.keys[email]
	return ok, nil
}
func (d *fakeDirectory) OwnAddressKey(_ context.Context) (cryptoprimitives.Key, error) {
	return d.ownAddress, nil
}

type fakeShares struct {
	keys map[types.ShareID]cryptoprimitives.Key
}

func (s *fakeShares) SharePrivateKey(_ context.Context, shareID types.ShareID) (cryptoprimitives.Key, error) {
	key, ok := s.keys[shareID]
	if !ok {
		return cryptoprimitives.Key{}, apperror.NewNotFound("share", string(shareID))
	}
	return key, nil
}

type testHarness struct {
	transport *faketransport.Transport
	provider  cryptoprimitives.Provider
	directory *fakeDirectory
	addrKey   cryptoprimitives.Key
	shares    *fakeShares
	keys      *cryptocache.Cache
	access    *nodesaccess.Service
	svc       *sharingmanagement.Service
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	transport := faketransport.New()
	api := apiservice.New(transport)
	provider := sealedref.New()
	addrKey := cryptoprimitives.Key{Email: "alice@example.com", Data: []byte("address-key-material-0000000000")}
	directory := &fakeDirectory{keys: make(map[string][]cryptoprimitives.Key), ownAddress: addrKey}
	directory.keys["alice@example.com"] = []cryptoprimitives.Key{addrKey}
	crypto := cryptoservice.New(provider, directory, telemetry.NewSink(false))

	store, err := boltstore.Open(t.TempDir(), nodecache.TagKeys)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	nodes := nodecache.New(store)
	keys := cryptocache.New()
	shares := &fakeShares{keys: make(map[types.ShareID]cryptoprimitives.Key)}

	access := nodesaccess.New(api, crypto, nodes, keys, shares, 30, 15)
	return &testHarness{
		transport: transport,
		provider:  provider,
		directory: directory,
		addrKey:   addrKey,
		shares:    shares,
		keys:      keys,
		access:    access,
		svc:       sharingmanagement.New(api, access, provider, directory),
	}
}

// seedShareRoot creates a folder directly rooted at shareID, already
// decryptable via h.shares, mirroring a node the caller already owns.
func (h *testHarness) seedShareRoot(t *testing.T, shareID types.ShareID, uid types.NodeUID, name string) {
	t.Helper()
	shareKey := cryptoprimitives.Key{Data: []byte("share-key-material-0000000000000")}
	h.shares.keys[shareID] = shareKey

	crypto := cryptoservice.New(h.provider, h.directory, telemetry.NewSink(false))
	out, err := crypto.CreateFolder(context.Background(), cryptoservice.CreateFolderInput{
		Name:          name,
		ParentKey:     shareKey,
		ParentHashKey: []byte("share-hash-seed"),
		AddressKey:    h.addrKey,
	})
	require.NoError(t, err)

	email := "alice@example.com"
	h.transport.Nodes[uid] = types.EncryptedNode{
		UID:           uid,
		Type:          types.NodeTypeFolder,
		CreationTime:  time.Now(),
		ShareID:       &shareID,
		Hash:          out.Hash,
		EncryptedName: out.EncryptedName,
		Crypto: types.EncryptedCrypto{
			ArmoredKey:         out.ArmoredKey,
			ArmoredPassphrase:  out.ArmoredPassphrase,
			SignatureEmail:     &email,
			NameSignatureEmail: &email,
			Folder:             &types.FolderCrypto{ArmoredHashKey: out.ArmoredHashKey},
		},
	}
	h.transport.Shares[uid] = shareID
}

// seedChild creates a folder whose parent is parentUID, using parentUID's
// already-decrypted keys. The caller must have fetched parentUID first so
// its keys are cached.
func (h *testHarness) seedChild(t *testing.T, parentUID, uid types.NodeUID, name string) {
	t.Helper()
	parentKeys, ok := h.keys.Get(parentUID)
	require.True(t, ok, "parent must be decrypted before seeding a child")

	crypto := cryptoservice.New(h.provider, h.directory, telemetry.NewSink(false))
	out, err := crypto.CreateFolder(context.Background(), cryptoservice.CreateFolderInput{
		Name:          name,
		ParentKey:     cryptoprimitives.Key{Data: parentKeys.PrivateNodeKey},
		ParentHashKey: parentKeys.HashKey,
		AddressKey:    h.addrKey,
	})
	require.NoError(t, err)

	email := "alice@example.com"
	h.transport.Nodes[uid] = types.EncryptedNode{
		UID:           uid,
		ParentUID:     &parentUID,
		Type:          types.NodeTypeFolder,
		CreationTime:  time.Now(),
		Hash:          out.Hash,
		EncryptedName: out.EncryptedName,
		Crypto: types.EncryptedCrypto{
			ArmoredKey:         out.ArmoredKey,
			ArmoredPassphrase:  out.ArmoredPassphrase,
			SignatureEmail:     &email,
			NameSignatureEmail: &email,
			Folder:             &types.FolderCrypto{ArmoredHashKey: out.ArmoredHashKey},
		},
	}
	h.transport.Children[parentUID] = append(h.transport.Children[parentUID], uid)
}

// seedSharableDoc seeds a decryptable, not-yet-shared folder under a
// decryptable share root, the shape ShareNode expects for a first share.
func (h *testHarness) seedSharableDoc(t *testing.T, uid types.NodeUID) {
	t.Helper()
	h.seedShareRoot(t, "share-root", "vol1~root", "Root")
	_, err := h.access.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	h.seedChild(t, "vol1~root", uid, "Doc")
}

func TestGetSharingInfoEmptyWhenNoShare(t *testing.T) {
	h := newTestHarness(t)
	h.transport.Nodes["vol1~solo"] = types.EncryptedNode{
		UID:          "vol1~solo",
		Type:         types.NodeTypeFile,
		CreationTime: time.Now(),
	}

	info, err := h.svc.GetSharingInfo(context.Background(), "vol1~solo")
	require.NoError(t, err)
	require.Nil(t, info.PublicLink)
	require.Empty(t, info.Invitations)
	require.Empty(t, info.Members)
}

func TestShareNodeCreatesShareAndInvitation(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	bobKey := cryptoprimitives.Key{Email: "bob@example.com", Data: []byte("bob-public-key-material-000000000")}
	h.directory.keys["bob@example.com"] = []cryptoprimitives.Key{bobKey}

	err := h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		Members: []sharingmanagement.MemberSettings{{Email: "bob@example.com", Role: types.RoleViewer}},
	})
	require.NoError(t, err)

	shareID, ok := h.transport.Shares["vol1~doc"]
	require.True(t, ok)
	invitations := h.transport.Invitations[shareID]
	require.Len(t, invitations, 1)
	require.Equal(t, "bob@example.com", invitations[0].InviteeEmail)
	require.NotEmpty(t, invitations[0].Armored)
	require.False(t, invitations[0].External)
}

func TestShareNodeCreatesExternalInvitationForNonProtonEmail(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")

	err := h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		Members: []sharingmanagement.MemberSettings{{Email: "carol@external.example", Role: types.RoleEditor}},
	})
	require.NoError(t, err)

	shareID := h.transport.Shares["vol1~doc"]
	external := h.transport.External[shareID]
	require.Len(t, external, 1)
	require.True(t, external[0].External)
	require.Empty(t, external[0].Armored)
}

func TestShareNodeUpdatesExistingInvitationRoleInPlace(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	bobKey := cryptoprimitives.Key{Email: "bob@example.com", Data: []byte("bob-public-key-material-000000000")}
	h.directory.keys["bob@example.com"] = []cryptoprimitives.Key{bobKey}

	settings := sharingmanagement.ShareSettings{
		Members: []sharingmanagement.MemberSettings{{Email: "bob@example.com", Role: types.RoleViewer}},
	}
	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", settings))

	settings.Members[0].Role = types.RoleEditor
	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", settings))

	shareID := h.transport.Shares["vol1~doc"]
	invitations := h.transport.Invitations[shareID]
	require.Len(t, invitations, 1)
	require.Equal(t, types.RoleEditor, invitations[0].Role)
}

func TestShareNodeRejectsPastExpirationBeforeAnyIO(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	past := time.Now().Add(-time.Hour)

	err := h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		PublicLink: &sharingmanagement.PublicLinkSettings{Enabled: true, ExpirationTime: &past},
	})
	require.Error(t, err)
	_, ok := h.transport.Shares["vol1~doc"]
	require.False(t, ok, "no share should have been created for a rejected request")
}

func TestShareNodeCreatesPublicLinkWithFixedPasswordLength(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")

	err := h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		PublicLink: &sharingmanagement.PublicLinkSettings{Enabled: true},
	})
	require.NoError(t, err)

	shareID := h.transport.Shares["vol1~doc"]
	links := h.transport.PublicLinks[shareID]
	require.Len(t, links, 1)
	require.Equal(t, sharingmanagement.GeneratedPasswordLength, links[0].PasswordLength)
	require.NotEmpty(t, links[0].ArmoredPassword)

	links[0].URL = "https://drive.example.com/share-root/folder/doc"
	info, err := h.svc.GetSharingInfo(context.Background(), "vol1~doc")
	require.NoError(t, err)
	require.NotNil(t, info.PublicLink)
	password, ok := info.PublicLink.Password.Value()
	require.True(t, ok)
	require.Len(t, password, sharingmanagement.GeneratedPasswordLength)
	require.Equal(t, links[0].URL+"#"+password, info.PublicLink.ShareURL())
}

func TestShareNodeRejectsUpdatingLegacyPublicLink(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	shareID, err := h.transport.CreateShare(context.Background(), "vol1~doc")
	require.NoError(t, err)
	h.transport.PublicLinks[shareID] = []types.EncryptedPublicLink{{
		UID:            "link-legacy",
		PasswordType:   types.PublicLinkPasswordCustom,
		PasswordLength: 8,
	}}

	err = h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		PublicLink: &sharingmanagement.PublicLinkSettings{Enabled: true},
	})
	require.Error(t, err)
}

func TestUnshareNodeWithNilSettingsDeletesShare(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		PublicLink: &sharingmanagement.PublicLinkSettings{Enabled: true},
	}))
	shareID := h.transport.Shares["vol1~doc"]
	require.NotEmpty(t, h.transport.PublicLinks[shareID])

	require.NoError(t, h.svc.UnshareNode(context.Background(), "vol1~doc", nil))
	require.Empty(t, h.transport.PublicLinks[shareID])
	_, ok := h.transport.Shares["vol1~doc"]
	require.False(t, ok)
}

func TestUnshareNodeRemovesOnlyTargetedMemberAndKeepsShare(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	bobKey := cryptoprimitives.Key{Email: "bob@example.com", Data: []byte("bob-public-key-material-000000000")}
	carolKey := cryptoprimitives.Key{Email: "carol@example.com", Data: []byte("carol-public-key-material-0000000")}
	h.directory.keys["bob@example.com"] = []cryptoprimitives.Key{bobKey}
	h.directory.keys["carol@example.com"] = []cryptoprimitives.Key{carolKey}

	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		Members: []sharingmanagement.MemberSettings{
			{Email: "bob@example.com", Role: types.RoleViewer},
			{Email: "carol@example.com", Role: types.RoleViewer},
		},
	}))
	shareID := h.transport.Shares["vol1~doc"]
	require.Len(t, h.transport.Invitations[shareID], 2)

	require.NoError(t, h.svc.UnshareNode(context.Background(), "vol1~doc", &sharingmanagement.UnshareSettings{
		Emails: []string{"bob@example.com"},
	}))

	require.Len(t, h.transport.Invitations[shareID], 1)
	require.Equal(t, "carol@example.com", h.transport.Invitations[shareID][0].InviteeEmail)
	_, stillShared := h.transport.Shares["vol1~doc"]
	require.True(t, stillShared)
}

func TestUnshareNodeDeletesShareWhenLastCollaboratorRemoved(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	bobKey := cryptoprimitives.Key{Email: "bob@example.com", Data: []byte("bob-public-key-material-000000000")}
	h.directory.keys["bob@example.com"] = []cryptoprimitives.Key{bobKey}

	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{
		Members: []sharingmanagement.MemberSettings{{Email: "bob@example.com", Role: types.RoleViewer}},
	}))

	require.NoError(t, h.svc.UnshareNode(context.Background(), "vol1~doc", &sharingmanagement.UnshareSettings{
		Emails: []string{"bob@example.com"},
	}))

	_, ok := h.transport.Shares["vol1~doc"]
	require.False(t, ok)
}

func TestResendInvitationEmailRejectsInvitationFromAnotherShare(t *testing.T) {
	h := newTestHarness(t)
	h.seedSharableDoc(t, "vol1~doc")
	require.NoError(t, h.svc.ShareNode(context.Background(), "vol1~doc", sharingmanagement.ShareSettings{}))

	err := h.svc.ResendInvitationEmail(context.Background(), "vol1~doc", "someothershare~invite1")
	require.Error(t, err)
}
