package ursanet

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	identifypkg "github.com/libp2p/go-libp2p/p2p/protocol/identify"
)

// identifyBinding watches identify completion events and, for peers
// advertising our protocol name, installs them as explicit gossip peers
// and feeds their listen addresses into discovery's address book —
// mirroring original_source/network/src/behaviour.rs's handle_identify.
type identifyBinding struct {
	host host.Host
	sub  event.Subscription

	onPeerIdentified func(p peer.ID, addrs []string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newIdentifyBinding(h host.Host, onPeerIdentified func(p peer.ID, addrs []string)) (*identifyBinding, error) {
	sub, err := h.EventBus().Subscribe(new(identifypkg.EvtPeerIdentificationCompleted))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &identifyBinding{host: h, sub: sub, onPeerIdentified: onPeerIdentified, ctx: ctx, cancel: cancel}
	b.wg.Add(1)
	go b.loop()
	return b, nil
}

func (b *identifyBinding) loop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case raw, ok := <-b.sub.Out():
			if !ok {
				return
			}
			evt, ok := raw.(identifypkg.EvtPeerIdentificationCompleted)
			if !ok {
				continue
			}
			if !hasProtocol(evt.Protocols, ProtocolName) {
				continue
			}
			addrs := make([]string, 0, len(evt.ListenAddrs))
			for _, a := range evt.ListenAddrs {
				addrs = append(addrs, a.String())
			}
			if b.onPeerIdentified != nil {
				b.onPeerIdentified(evt.Peer, addrs)
			}
		}
	}
}

func hasProtocol(protocols []protocol.ID, name string) bool {
	for _, p := range protocols {
		if string(p) == name {
			return true
		}
	}
	return false
}

func (b *identifyBinding) Close() {
	b.cancel()
	b.sub.Close()
	b.wg.Wait()
}
