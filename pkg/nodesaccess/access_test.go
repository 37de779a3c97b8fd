package nodesaccess_test

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
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
)

type fakeDirectory struct {
	keys map[string][]cryptoprimitives.Key
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{keys: make(map[string][]cryptoprimitives.Key)}
}

func (d *fakeDirectory) PublicKeysForEmail(_ context.Context, email string) ([]cryptoprimitives.Key, error) {
	return d.keys[email], nil
}

func (d *fakeDirectory) IsProtonAddress(_ context.Context, email string) (bool, error) {
	_, ok := d.keys[email]
	return ok, nil
}

func (d *fakeDirectory) OwnAddressKey(_ context.Context) (cryptoprimitives.Key, error) {
	return cryptoprimitives.Key{}, nil
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

// testHarness wires a nodesaccess.Service over fakes, mirroring how
// drivecore constructs it in production.
type testHarness struct {
	transport *faketransport.Transport
	provider  cryptoprimitives.Provider
	directory *fakeDirectory
	addrKey   cryptoprimitives.Key
	shares    *fakeShares
	nodes     *nodecache.Cache
	keys      *cryptocache.Cache
	svc       *nodesaccess.Service
}

func newTestHarness(t *testing.T, batchSize, concurrency int) *testHarness {
	t.Helper()
	transport := faketransport.New()
	api := apiservice.New(transport)
	provider := sealedref.New()
	directory := newFakeDirectory()
	addrKey := cryptoprimitives.Key{Email: "alice@example.com", Data: []byte("address-key-material-0000000000")}
	directory.keys["alice@example.com"] = []cryptoprimitives.Key{addrKey}
	crypto := cryptoservice.New(provider, directory, telemetry.NewSink(false))

	store, err := boltstore.Open(t.TempDir(), nodecache.TagKeys)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	nodes := nodecache.New(store)
	keys := cryptocache.New()
	shares := &fakeShares{keys: make(map[types.ShareID]cryptoprimitives.Key)}

	svc := nodesaccess.New(api, crypto, nodes, keys, shares, batchSize, concurrency)
	return &testHarness{
		transport: transport,
		provider:  provider,
		directory: directory,
		addrKey:   addrKey,
		shares:    shares,
		nodes:     nodes,
		keys:      keys,
		svc:       svc,
	}
}

// seedRoot creates a share-rooted folder directly in the fake transport,
// returning its uid and decrypted keys (read back from the crypto cache
// after the caller fetches it).
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
}

// seedChild creates a folder whose parent is parentUID, using parentUID's
// already-decrypted keys (the caller must have fetched parentUID first).
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

func TestGetNodeFetchesDecryptsAndCaches(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")

	node, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	name, ok := node.Name.Value()
	require.True(t, ok)
	require.Equal(t, "Root", name)

	_, cached, err := h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.True(t, cached)

	_, ok = h.keys.Get("vol1~root")
	require.True(t, ok)
}

func TestGetNodeReturnsDegradedNodeWhenShareUnresolvable(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	unresolvable := types.ShareID("missing-share")
	h.transport.Nodes["vol1~orphan"] = types.EncryptedNode{
		UID:          "vol1~orphan",
		Type:         types.NodeTypeFolder,
		CreationTime: time.Now(),
		ShareID:      &unresolvable,
	}

	node, err := h.svc.GetNode(context.Background(), "vol1~orphan")
	require.NoError(t, err)
	require.False(t, node.Name.OK())
	require.False(t, node.KeyAuthor.OK())
	require.Len(t, node.DecryptionErrors, 1)
}

func TestIterateFolderChildrenBatchLoadsAcrossChunks(t *testing.T) {
	h := newTestHarness(t, 2, 2)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")
	_, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)

	h.seedChild(t, "vol1~root", "vol1~a", "A")
	h.seedChild(t, "vol1~root", "vol1~b", "B")
	h.seedChild(t, "vol1~root", "vol1~c", "C")

	stream := h.svc.IterateFolderChildren(context.Background(), "vol1~root")
	items, err := streamutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, items, 3)

	names := make(map[string]bool)
	for _, item := range items {
		require.NoError(t, item.Err)
		require.True(t, item.Value.OK)
		name, ok := item.Value.Node.Name.Value()
		require.True(t, ok)
		names[name] = true
	}
	require.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, names)

	// Walking again should hit the now-populated cache and the completeness bit.
	stream2 := h.svc.IterateFolderChildren(context.Background(), "vol1~root")
	items2, err := streamutil.Collect(context.Background(), stream2)
	require.NoError(t, err)
	require.Len(t, items2, 3)
}

func TestIterateNodesReportsMissingUIDAsRemoved(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")
	_, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)

	// Force the cached entry stale so IterateNodes actually re-fetches it
	// instead of returning the still-fresh cached copy.
	_, err = h.svc.NotifyNodeChanged(context.Background(), "vol1~root", nil)
	require.NoError(t, err)
	delete(h.transport.Nodes, "vol1~root")

	stream := h.svc.IterateNodes(context.Background(), []types.NodeUID{"vol1~root"})
	items, err := streamutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.False(t, items[0].Value.OK)

	_, stillCached, err := h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.False(t, stillCached)
}

func TestNotifyNodeChangedMarksStaleAndResetsParentBits(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")
	_, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)

	h.nodes.SetFolderChildrenLoaded("vol1~root")
	require.True(t, h.nodes.IsFolderChildrenLoaded("vol1~root"))

	_, err = h.svc.NotifyNodeChanged(context.Background(), "vol1~root", nil)
	require.NoError(t, err)

	node, ok, err := h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, node.IsStale)
}

func TestNotifyNodeDeletedRemovesFromBothCaches(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")
	_, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)

	_, err = h.svc.NotifyNodeDeleted(context.Background(), "vol1~root")
	require.NoError(t, err)

	_, ok, err := h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok = h.keys.Get("vol1~root")
	require.False(t, ok)
}

func TestNotifyNodeTrashedSetsAndClearsCachedTrashTime(t *testing.T) {
	h := newTestHarness(t, 30, 15)
	h.seedShareRoot(t, "share1", "vol1~root", "Root")
	_, err := h.svc.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)

	result, err := h.svc.NotifyNodeTrashed(context.Background(), "vol1~root", true)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Node.TrashTime)

	node, ok, err := h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, node.IsStale)
	require.NotNil(t, node.TrashTime)

	result, err = h.svc.NotifyNodeTrashed(context.Background(), "vol1~root", false)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Nil(t, result.Node.TrashTime)

	node, ok, err = h.nodes.GetNode(context.Background(), "vol1~root")
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, node.TrashTime)
}
