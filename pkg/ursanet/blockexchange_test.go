package ursanet

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/tribe-health/ursanet/internal/store"
)

func TestBlockExchangeGetFetchesFromPeer(t *testing.T) {
	server := newTestHost(t)
	client := newTestHost(t)
	connectTestHosts(t, server, client)

	serverStore := store.NewMemoryBlockStore()
	c := testCID(t, "payload")
	if err := serverStore.Insert(context.Background(), c, []byte("payload")); err != nil {
		t.Fatalf("seed server store: %v", err)
	}
	newBlockExchange(server, serverStore, func(swarmEvent) {})

	clientStore := store.NewMemoryBlockStore()
	events := make(chan swarmEvent, 1)
	bx := newBlockExchange(client, clientStore, func(e swarmEvent) { events <- e })

	bx.Get(context.Background(), 1, c, []peer.ID{server.ID()})

	select {
	case evt := <-events:
		if evt.kind != swarmBlockExchangeComplete {
			t.Fatalf("event kind = %v, want swarmBlockExchangeComplete", evt.kind)
		}
		if !evt.blockFound {
			t.Error("expected blockFound=true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for block-exchange completion")
	}

	has, err := clientStore.Has(context.Background(), c)
	if err != nil || !has {
		t.Errorf("client store should have inserted block, has=%v err=%v", has, err)
	}
}

func TestBlockExchangeGetNotFound(t *testing.T) {
	server := newTestHost(t)
	client := newTestHost(t)
	connectTestHosts(t, server, client)

	newBlockExchange(server, store.NewMemoryBlockStore(), func(swarmEvent) {})

	clientStore := store.NewMemoryBlockStore()
	events := make(chan swarmEvent, 1)
	bx := newBlockExchange(client, clientStore, func(e swarmEvent) { events <- e })

	c := testCID(t, "missing")
	bx.Get(context.Background(), 2, c, []peer.ID{server.ID()})

	select {
	case evt := <-events:
		if evt.blockFound {
			t.Error("expected blockFound=false for missing block")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for block-exchange completion")
	}
}

func TestBlockExchangeSyncWalksDAG(t *testing.T) {
	server := newTestHost(t)
	client := newTestHost(t)
	connectTestHosts(t, server, client)

	root := testCID(t, "root")
	child := testCID(t, "child")

	serverStore := store.NewMemoryBlockStore()
	ctx := context.Background()
	serverStore.Insert(ctx, root, []byte("root"))
	serverStore.Insert(ctx, child, []byte("child"))
	serverStore.SetLinks(root, []cid.Cid{child})
	newBlockExchange(server, serverStore, func(swarmEvent) {})

	clientStore := store.NewMemoryBlockStore()
	events := make(chan swarmEvent, 4)
	bx := newBlockExchange(client, clientStore, func(e swarmEvent) { events <- e })

	bx.Sync(ctx, 3, root, []peer.ID{server.ID()})

	var complete *swarmEvent
	deadline := time.After(5 * time.Second)
	for complete == nil {
		select {
		case evt := <-events:
			if evt.kind == swarmBlockExchangeComplete {
				e := evt
				complete = &e
			}
		case <-deadline:
			t.Fatal("timed out waiting for sync completion")
		}
	}
	if !complete.blockFound {
		t.Error("expected sync to report overall success")
	}

	for _, want := range []cid.Cid{root, child} {
		has, err := clientStore.Has(ctx, want)
		if err != nil || !has {
			t.Errorf("client store missing %s after sync, has=%v err=%v", want, has, err)
		}
	}
}
