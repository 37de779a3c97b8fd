package cryptoservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives/sealedref"
	"github.com/protonmail/drive-node-core/pkg/cryptoservice"
	"github.com/protonmail/drive-node-core/pkg/telemetry"
	"github.com/protonmail/drive-node-core/pkg/types"
)

type fakeDirectory struct {
	keys map[string][]cryptoprimitives.Key
	own  cryptoprimitives.Key
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
	return d.own, nil
}

func TestCreateFolderThenDecryptNodeRoundTrip(t *testing.T) {
	provider := sealedref.New()
	directory := newFakeDirectory()
	parentKey := cryptoprimitives.Key{Data: []byte("parent-key-material-00000000000")}
	addressKey := cryptoprimitives.Key{Email: "alice@example.com", Data: []byte("address-key-material-0000000000")}
	directory.keys["alice@example.com"] = []cryptoprimitives.Key{addressKey}

	svc := cryptoservice.New(provider, directory, telemetry.NewSink(false))

	out, err := svc.CreateFolder(context.Background(), cryptoservice.CreateFolderInput{
		Name:          "Photos",
		ParentKey:     parentKey,
		ParentHashKey: []byte("parent-hash-key"),
		AddressKey:    addressKey,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ArmoredKey)
	require.NotEmpty(t, out.Hash)
	require.NotEmpty(t, out.Keys.PrivateNodeKey)

	encryptedName, err := provider.EncryptAndSign([]byte("Photos"), parentKey, addressKey)
	require.NoError(t, err)

	sigEmail := "alice@example.com"
	encrypted := types.EncryptedNode{
		UID:           "vol1~node1",
		Type:          types.NodeTypeFolder,
		CreationTime:  time.Now(),
		Hash:          out.Hash,
		EncryptedName: encryptedName,
		Crypto: types.EncryptedCrypto{
			ArmoredKey:         out.ArmoredKey,
			ArmoredPassphrase:  out.ArmoredPassphrase,
			SignatureEmail:     &sigEmail,
			NameSignatureEmail: &sigEmail,
			Folder: &types.FolderCrypto{
				ArmoredHashKey: out.ArmoredHashKey,
			},
		},
	}

	decrypted, keys, err := svc.DecryptNode(context.Background(), cryptoservice.DecryptInput{
		Encrypted:     encrypted,
		NodeKey:       parentKey,
		ParentKeys:    []cryptoprimitives.Key{addressKey},
		ParentHashKey: []byte("parent-hash-key"),
	})
	require.NoError(t, err)
	require.NotNil(t, keys)
	require.True(t, decrypted.KeyAuthor.OK())
	author, ok := decrypted.KeyAuthor.Value()
	require.True(t, ok)
	require.NotNil(t, author)
	require.Equal(t, "alice@example.com", *author)
	require.NotNil(t, keys.HashKey)
}

func TestDecryptNodeDowngradesKeyAuthorOnHashKeySignatureFailure(t *testing.T) {
	provider := sealedref.New()
	directory := newFakeDirectory()
	parentKey := cryptoprimitives.Key{Data: []byte("parent-key-material-00000000000")}
	addressKey := cryptoprimitives.Key{Email: "alice@example.com", Data: []byte("address-key-material-0000000000")}
	directory.keys["alice@example.com"] = []cryptoprimitives.Key{addressKey}

	svc := cryptoservice.New(provider, directory, telemetry.NewSink(false))

	out, err := svc.CreateFolder(context.Background(), cryptoservice.CreateFolderInput{
		Name:          "Photos",
		ParentKey:     parentKey,
		ParentHashKey: []byte("parent-hash-key"),
		AddressKey:    addressKey,
	})
	require.NoError(t, err)

	// Re-sign the hash key with a key that isn't the address key on file,
	// simulating a tampered or forged hash-key signature while leaving it
	// still decryptable.
	nodeKey := cryptoprimitives.Key{Data: out.Keys.PrivateNodeKey}
	hashKeyPlaintext, err := provider.DecryptSessionKey(out.ArmoredHashKey, nodeKey)
	require.NoError(t, err)
	forgingKey := cryptoprimitives.Key{Data: []byte("not-the-real-address-key-000000")}
	tamperedHashKey, err := provider.EncryptAndSign(hashKeyPlaintext, nodeKey, forgingKey)
	require.NoError(t, err)

	encryptedName, err := provider.EncryptAndSign([]byte("Photos"), parentKey, addressKey)
	require.NoError(t, err)

	sigEmail := "alice@example.com"
	encrypted := types.EncryptedNode{
		UID:           "vol1~node2",
		Type:          types.NodeTypeFolder,
		CreationTime:  time.Now(),
		Hash:          out.Hash,
		EncryptedName: encryptedName,
		Crypto: types.EncryptedCrypto{
			ArmoredKey:         out.ArmoredKey,
			ArmoredPassphrase:  out.ArmoredPassphrase,
			SignatureEmail:     &sigEmail,
			NameSignatureEmail: &sigEmail,
			Folder: &types.FolderCrypto{
				ArmoredHashKey: tamperedHashKey,
			},
		},
	}

	decrypted, keys, err := svc.DecryptNode(context.Background(), cryptoservice.DecryptInput{
		Encrypted:     encrypted,
		NodeKey:       parentKey,
		ParentKeys:    []cryptoprimitives.Key{addressKey},
		ParentHashKey: []byte("parent-hash-key"),
	})
	require.NoError(t, err)
	require.NotNil(t, keys)
	require.NotNil(t, keys.HashKey, "hash key still decrypts even though its signature doesn't verify")
	require.False(t, decrypted.KeyAuthor.OK(), "a hash-key signature failure must downgrade the reported key author")
}

func TestDecryptNodeReportsKeyFailureWithoutPanicking(t *testing.T) {
	provider := sealedref.New()
	directory := newFakeDirectory()
	svc := cryptoservice.New(provider, directory, telemetry.NewSink(false))

	encrypted := types.EncryptedNode{
		UID:          "vol1~broken",
		Type:         types.NodeTypeFolder,
		CreationTime: time.Now(),
		Crypto: types.EncryptedCrypto{
			ArmoredKey: "not-valid-base64!!!",
		},
	}

	decrypted, keys, err := svc.DecryptNode(context.Background(), cryptoservice.DecryptInput{
		Encrypted: encrypted,
		NodeKey:   cryptoprimitives.Key{Data: []byte("wrong-key-0000000000000000000000")},
	})
	require.NoError(t, err)
	require.Nil(t, keys)
	require.False(t, decrypted.KeyAuthor.OK())
	require.Len(t, decrypted.DecryptionErrors, 1)
}

func TestDecryptNodeDedupesMetricsPerNodeUID(t *testing.T) {
	provider := sealedref.New()
	directory := newFakeDirectory()
	sink := telemetry.NewSink(true)
	svc := cryptoservice.New(provider, directory, sink)

	encrypted := types.EncryptedNode{
		UID:  "vol1~broken",
		Type: types.NodeTypeFolder,
		Crypto: types.EncryptedCrypto{
			ArmoredKey: "still-not-valid!!!",
		},
	}
	in := cryptoservice.DecryptInput{Encrypted: encrypted, NodeKey: cryptoprimitives.Key{Data: []byte("k")}}

	for i := 0; i < 3; i++ {
		_, _, err := svc.DecryptNode(context.Background(), in)
		require.NoError(t, err)
	}

	count := testutil.ToFloat64(sink.DecryptionErrorsTotal.WithLabelValues("key"))
	require.Equal(t, float64(1), count)
}

func TestEncryptMoveRequiresDecryptedNameAndHashKey(t *testing.T) {
	provider := sealedref.New()
	svc := cryptoservice.New(provider, newFakeDirectory(), telemetry.NewSink(false))

	_, _, _, err := svc.EncryptMove(context.Background(), types.Errored[string](errors.New("boom")), nil, cryptoprimitives.Key{}, cryptoprimitives.Key{}, []byte("hash-key"))
	require.Error(t, err)

	_, _, _, err = svc.EncryptMove(context.Background(), types.Ok("name"), nil, cryptoprimitives.Key{}, cryptoprimitives.Key{}, nil)
	require.Error(t, err)
}
