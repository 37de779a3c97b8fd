package sharingaccess_test

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
	"github.com/protonmail/drive-node-core/pkg/sharingaccess"
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
)

type fakeDirectory struct {
	keys map[string][]cryptoprimitives.Key
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

type testHarness struct {
	transport *faketransport.Transport
	provider  cryptoprimitives.Provider
	directory *fakeDirectory
	addrKey   cryptoprimitives.Key
	shares    *fakeShares
	nodes     *nodecache.Cache
	access    *nodesaccess.Service
	svc       *sharingaccess.Service
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	transport := faketransport.New()
	api := apiservice.New(transport)
	provider := sealedref.New()
	directory := &fakeDirectory{keys: make(map[string][]cryptoprimitives.Key)}
	addrKey := cryptoprimitives.Key{Email: "alice@example.com", Data: []byte("address-key-material-0000000000")}
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
		nodes:     nodes,
		access:    access,
		svc:       sharingaccess.New(api, access),
	}
}

// seedShared creates a standalone share-rooted folder and registers it as
// both the node the backend knows about and an entry in collection.
func (h *testHarness) seedShared(t *testing.T, collection *[]types.NodeUID, shareID types.ShareID, uid types.NodeUID, name string) {
	t.Helper()
	shareKey := cryptoprimitives.Key{Data: []byte("share-key-material-0000000000000")}
	h.shares.keys[shareID] = shareKey

	crypto := cryptoservice.New(h.provider, h.directory, telemetry.NewSink(false))
	out, err := crypto.CreateFolder(context.Background(), cryptoservice.CreateFolderInput{
		Name:          name,
		ParentKey:     shareKey,
		ParentHashKey: []byte("share-hash-seed-" + string(shareID)),
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
	*collection = append(*collection, uid)
}

func TestIterateSharedByMeDrivesAPIAndPopulatesCache(t *testing.T) {
	h := newTestHarness(t)
	h.seedShared(t, &h.transport.SharedByMe, "share1", "vol1~a", "A")
	h.seedShared(t, &h.transport.SharedByMe, "share2", "vol1~b", "B")
	h.seedShared(t, &h.transport.SharedByMe, "share3", "vol1~c", "C")

	stream := h.svc.IterateSharedByMe(context.Background())
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

	// A second walk should be served entirely from the list cache: force
	// the next page fetch to fail and confirm the iteration still succeeds.
	h.transport.FailNext = apperror.NewTransport("getSharedByMePage", require.AnError)
	stream2 := h.svc.IterateSharedByMe(context.Background())
	items2, err := streamutil.Collect(context.Background(), stream2)
	require.NoError(t, err)
	require.Len(t, items2, 3)
}

func TestIterateSharedWithMeIsIndependentOfSharedByMe(t *testing.T) {
	h := newTestHarness(t)
	h.seedShared(t, &h.transport.SharedByMe, "share1", "vol1~a", "A")
	h.seedShared(t, &h.transport.SharedWithMe, "share2", "vol1~b", "B")

	stream := h.svc.IterateSharedWithMe(context.Background())
	items, err := streamutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, items, 1)
	name, ok := items[0].Value.Node.Name.Value()
	require.True(t, ok)
	require.Equal(t, "B", name)
}

func TestInvalidateSharedWithMeForcesAPIRewalk(t *testing.T) {
	h := newTestHarness(t)
	h.seedShared(t, &h.transport.SharedWithMe, "share1", "vol1~a", "A")

	stream := h.svc.IterateSharedWithMe(context.Background())
	_, err := streamutil.Collect(context.Background(), stream)
	require.NoError(t, err)

	h.seedShared(t, &h.transport.SharedWithMe, "share2", "vol1~b", "B")
	h.svc.InvalidateSharedWithMe()

	stream2 := h.svc.IterateSharedWithMe(context.Background())
	items2, err := streamutil.Collect(context.Background(), stream2)
	require.NoError(t, err)
	require.Len(t, items2, 2)
}
