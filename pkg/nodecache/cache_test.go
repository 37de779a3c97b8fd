package nodecache

import (
	"context"
	"testing"

	"github.com/protonmail/drive-node-core/pkg/entitystore/boltstore"
	"github.com/protonmail/drive-node-core/pkg/types"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	store, err := boltstore.Open(t.TempDir(), TagKeys)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func sampleNode(uid types.NodeUID, parent *types.NodeUID) *types.DecryptedNode {
	return &types.DecryptedNode{
		UID:              uid,
		ParentUID:        parent,
		Type:             types.NodeTypeFile,
		Name:             types.Ok("report.pdf"),
		KeyAuthor:        types.AuthoredBy("alice@proton.me"),
		NameAuthor:       types.AuthoredBy("alice@proton.me"),
		TreeEventScopeID: "v1",
	}
}

func TestSetGetNode(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	node := sampleNode("v1~n1", nil)
	if err := c.SetNode(ctx, node); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.GetNode(ctx, "v1~n1")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	name, _ := got.Name.Value()
	if name != "report.pdf" {
		t.Fatalf("got name %q", name)
	}
}

func TestGetNodeMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, ok, err := c.GetNode(ctx, "v1~missing")
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
}

func TestIterateChildren(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	parent := types.NodeUID("v1~root")
	c.SetNode(ctx, sampleNode("v1~a", &parent))
	c.SetNode(ctx, sampleNode("v1~b", &parent))

	results, err := c.IterateChildren(ctx, parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d children, want 2", len(results))
	}
}

func TestFolderChildrenLoadedBit(t *testing.T) {
	c := newTestCache(t)
	parent := types.NodeUID("v1~root")

	if c.IsFolderChildrenLoaded(parent) {
		t.Fatalf("expected unset by default")
	}
	c.SetFolderChildrenLoaded(parent)
	if !c.IsFolderChildrenLoaded(parent) {
		t.Fatalf("expected set")
	}
	c.ResetFolderChildrenLoaded(parent)
	if c.IsFolderChildrenLoaded(parent) {
		t.Fatalf("expected reset")
	}
}

func TestRemoveNodeResetsParentChildrenLoaded(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	parent := types.NodeUID("v1~root")
	c.SetNode(ctx, sampleNode("v1~child", &parent))
	c.SetFolderChildrenLoaded(parent)

	if err := c.RemoveNodes(ctx, []types.NodeUID{"v1~child"}); err != nil {
		t.Fatal(err)
	}
	if c.IsFolderChildrenLoaded(parent) {
		t.Fatalf("expected children-loaded bit to reset on child removal")
	}
}

func TestSetNodesStaleFromVolume(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.SetNode(ctx, sampleNode("v1~a", nil))
	if err := c.SetNodesStaleFromVolume(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	got, _, _ := c.GetNode(ctx, "v1~a")
	if !got.IsStale {
		t.Fatalf("expected node to be marked stale")
	}
}

func TestRemoveVolume(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.SetNode(ctx, sampleNode("v1~a", nil))
	if err := c.RemoveVolume(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	_, ok, _ := c.GetNode(ctx, "v1~a")
	if ok {
		t.Fatalf("expected volume's nodes to be removed")
	}
}
