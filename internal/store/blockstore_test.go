package store

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte(data), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return cid.NewCidV1(cid.Raw, sum)
}

func TestMemoryBlockStoreInsertGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBlockStore()
	c := testCID(t, "hello")

	if has, _ := s.Has(ctx, c); has {
		t.Fatal("expected block absent before insert")
	}

	if err := s.Insert(ctx, c, []byte("hello")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	has, err := s.Has(ctx, c)
	if err != nil || !has {
		t.Fatalf("expected block present, has=%v err=%v", has, err)
	}

	data, err := s.Get(ctx, c)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}
}

func TestMemoryBlockStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBlockStore()
	c := testCID(t, "missing")

	if _, err := s.Get(ctx, c); err == nil {
		t.Fatal("expected error for missing block")
	}
}

func TestMemoryBlockStoreLinks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBlockStore()
	root := testCID(t, "root")
	child := testCID(t, "child")

	s.SetLinks(root, []cid.Cid{child})

	links, err := s.Links(ctx, root)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0] != child {
		t.Errorf("links = %v, want [%v]", links, child)
	}

	leafLinks, err := s.Links(ctx, child)
	if err != nil || len(leafLinks) != 0 {
		t.Errorf("leaf links = %v, err=%v, want empty", leafLinks, err)
	}
}
