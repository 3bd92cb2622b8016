package ursanet

import (
	"errors"
	"strings"
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

func TestPendingQueryTableCompletePresent(t *testing.T) {
	table := newPendingQueryTable()
	c := testCID(t, "a")
	sink := make(chan Result, 1)
	table.register(c, sink)

	table.complete(c, true)

	result := <-sink
	if result.Err != nil {
		t.Errorf("expected nil error, got %v", result.Err)
	}
	if table.count() != 0 {
		t.Errorf("count after complete = %d, want 0", table.count())
	}
}

func TestPendingQueryTableCompleteAbsent(t *testing.T) {
	table := newPendingQueryTable()
	c := testCID(t, "b")
	sink := make(chan Result, 1)
	table.register(c, sink)

	table.complete(c, false)

	result := <-sink
	if !errors.Is(result.Err, ErrBlockNotFound) {
		t.Errorf("expected ErrBlockNotFound, got %v", result.Err)
	}
	if !strings.Contains(result.Err.Error(), c.String()) {
		t.Errorf("error %q does not contain the requested CID %s", result.Err, c)
	}
}

func TestPendingQueryTableMultipleWaiters(t *testing.T) {
	table := newPendingQueryTable()
	c := testCID(t, "c")
	sink1 := make(chan Result, 1)
	sink2 := make(chan Result, 1)
	table.register(c, sink1)
	table.register(c, sink2)

	if table.count() != 2 {
		t.Fatalf("count before complete = %d, want 2", table.count())
	}

	table.complete(c, true)

	if (<-sink1).Err != nil {
		t.Error("sink1 should have succeeded")
	}
	if (<-sink2).Err != nil {
		t.Error("sink2 should have succeeded")
	}
}

func TestPendingQueryTableCompleteWithNoWaiterIsNoop(t *testing.T) {
	table := newPendingQueryTable()
	c := testCID(t, "d")

	table.complete(c, true) // must not panic
	if table.count() != 0 {
		t.Errorf("count = %d, want 0", table.count())
	}
}

func TestPendingQueryTableDiscard(t *testing.T) {
	table := newPendingQueryTable()
	c := testCID(t, "e")
	sink := make(chan Result, 1)
	table.register(c, sink)

	table.discard(c)

	if table.count() != 0 {
		t.Errorf("count after discard = %d, want 0", table.count())
	}
	select {
	case <-sink:
		t.Error("discard should not deliver to sink")
	default:
	}
}
