package store

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

func testRootCID(t *testing.T) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte("root"), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return cid.NewCidV1(cid.Raw, sum)
}

func TestMemoryIndexProviderPublishRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryIndexProvider()
	contextID := []byte("ctx-1")
	root := testRootCID(t)

	if err := p.Create(ctx, contextID, root, "provider-1", []string{"/ip4/127.0.0.1/tcp/4001"}, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := p.AddChunk(ctx, contextID, []cid.Cid{root}); err != nil {
		t.Fatalf("add chunk: %v", err)
	}

	adCID, err := p.Publish(ctx, contextID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !adCID.Defined() {
		t.Fatal("expected defined advertisement cid")
	}

	msg, err := p.AnnounceMsg(adCID)
	if err != nil {
		t.Fatalf("announce msg: %v", err)
	}
	if len(msg) == 0 {
		t.Error("expected non-empty announce payload")
	}
}

func TestMemoryIndexProviderPublishWithoutCreateFails(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryIndexProvider()

	if _, err := p.Publish(ctx, []byte("unstaged")); err == nil {
		t.Fatal("expected error publishing a context id that was never created")
	}
}

func TestMemoryIndexProviderAddChunkWithoutCreateFails(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryIndexProvider()

	if err := p.AddChunk(ctx, []byte("unstaged"), []cid.Cid{testRootCID(t)}); err == nil {
		t.Fatal("expected error staging a chunk under a context id that was never created")
	}
}

func TestMemoryIndexProviderPublishDistinguishesContent(t *testing.T) {
	ctx := context.Background()
	root := testRootCID(t)

	p1 := NewMemoryIndexProvider()
	contextID := []byte("ctx-diff")
	if err := p1.Create(ctx, contextID, root, "provider-1", nil, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	ad1, err := p1.Publish(ctx, contextID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	p2 := NewMemoryIndexProvider()
	if err := p2.Create(ctx, contextID, root, "provider-1", nil, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	ad2, err := p2.Publish(ctx, contextID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if ad1.Equals(ad2) {
		t.Error("expected tombstone advertisement to hash differently from a live one")
	}
}
