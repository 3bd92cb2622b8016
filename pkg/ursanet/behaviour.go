package ursanet

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

// behaviour is the composed aggregate of every sub-protocol state
// machine (C3). It normalizes each sub-protocol's events into the
// single swarmEvent stream the service loop selects on, following
// original_source/network/src/behaviour.rs's Behaviour<P> struct —
// expressed here as a plain struct of independent components plus a
// shared internal channel rather than a poll()-driven event queue,
// since Go's select already gives us that scheduling point.
type behaviour struct {
	host host.Host

	liveness        *livenessTracker
	identify        *identifyBinding
	blockExchange   *blockExchange
	gossip          *gossipHub
	discovery       *discoveryHub
	mdns            *mdnsDiscovery
	requestResponse *requestResponseHub
	relay           *relayManager

	metrics       *Metrics
	store         BlockStore
	indexProvider IndexProvider

	events chan swarmEvent

	connSub event.Subscription
}

func newBehaviour(ctx context.Context, h host.Host, cfg swarmConfig, m *Metrics, store BlockStore, indexProvider IndexProvider) (*behaviour, error) {
	events := make(chan swarmEvent, eventBufferSize)
	emit := func(e swarmEvent) {
		select {
		case events <- e:
		default:
			logWarn("behaviour: internal event channel full, dropping event", "kind", e.kind)
		}
	}

	b := &behaviour{host: h, metrics: m, store: store, indexProvider: indexProvider, events: events}

	b.liveness = newLivenessTracker(h)
	b.blockExchange = newBlockExchange(h, store, emit)
	b.requestResponse = newRequestResponseHub(h, emit)

	gossip, err := newGossipHub(ctx, h, emit)
	if err != nil {
		return nil, fmt.Errorf("start gossip: %w", err)
	}
	b.gossip = gossip

	discovery, err := newDiscoveryHub(ctx, h, cfg.BootstrapNodes)
	if err != nil {
		return nil, fmt.Errorf("start discovery: %w", err)
	}
	b.discovery = discovery

	b.identify, err = newIdentifyBinding(h, func(p peer.ID, addrs []string) {
		b.gossip.AddExplicitPeer(p)
		for _, a := range addrs {
			_ = b.discovery.AddAddressString(p, a)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start identify binding: %w", err)
	}

	if cfg.Autonat {
		rm, err := newRelayManager(h, cfg.RelayClient, emit)
		if err != nil {
			return nil, fmt.Errorf("start relay manager: %w", err)
		}
		b.relay = rm
	} else if cfg.RelayClient {
		logError("config: relay_client enabled without autonat; proceeding without NAT awareness")
	}

	if cfg.MDNS {
		b.mdns = newMDNSDiscovery(h, discovery)
		if err := b.mdns.Start(ctx); err != nil {
			logWarn("mdns: start failed", "err", err)
			b.mdns = nil
		}
	}

	b.connSub, err = h.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err == nil {
		go b.watchConnectedness()
	}

	return b, nil
}

func (b *behaviour) watchConnectedness() {
	for raw := range b.connSub.Out() {
		evt, ok := raw.(event.EvtPeerConnectednessChanged)
		if !ok {
			continue
		}
		switch evt.Connectedness {
		case network.Connected:
			b.emit(swarmEvent{kind: swarmPeerConnected, peer: evt.Peer})
		case network.NotConnected:
			b.emit(swarmEvent{kind: swarmPeerDisconnected, peer: evt.Peer})
		}
	}
}

func (b *behaviour) emit(e swarmEvent) {
	select {
	case b.events <- e:
	default:
		logWarn("behaviour: internal event channel full, dropping event", "kind", e.kind)
	}
}

// Events returns the channel the service loop selects on.
func (b *behaviour) Events() <-chan swarmEvent { return b.events }

// Public contract toward the service (§4.3).

func (b *behaviour) Peers() []peer.ID { return b.discovery.Peers() }

func (b *behaviour) Bootstrap(ctx context.Context) error {
	_, err := b.discovery.Bootstrap(ctx)
	return err
}

func (b *behaviour) Subscribe(topic string) error   { return b.gossip.Subscribe(topic) }
func (b *behaviour) Unsubscribe(topic string)       { b.gossip.Unsubscribe(topic) }
func (b *behaviour) Publish(ctx context.Context, topic string, msg []byte) error {
	return b.gossip.Publish(ctx, topic, msg)
}

var queryIDCounter uint64

func (b *behaviour) GetBlock(ctx context.Context, c cid.Cid, peers []peer.ID) uint64 {
	id := newQueryID(&queryIDCounter)
	b.blockExchange.Get(ctx, id, c, peers)
	return id
}

func (b *behaviour) SyncBlock(ctx context.Context, c cid.Cid, peers []peer.ID) uint64 {
	id := newQueryID(&queryIDCounter)
	b.blockExchange.Sync(ctx, id, c, peers)
	return id
}

func (b *behaviour) Cancel(queryID uint64) { b.blockExchange.cancel(queryID) }

// PublishAd builds an Advertisement for roots (walking each root's DAG
// via the block store, deduplicating shared entries) and carries it
// through the index provider's create/add_chunk/publish/announce_msg
// sequence, gossiping the announce message on IndexerIngestTopic. The
// first root identifies the advertisement; tombstone marks a withdrawal
// of a previously published advertisement under the same contextID.
func (b *behaviour) PublishAd(ctx context.Context, roots []cid.Cid, contextID []byte, tombstone bool) error {
	if len(roots) == 0 {
		return nil
	}

	seen := make(map[cid.Cid]bool)
	var entries []cid.Cid
	for _, root := range roots {
		walked, err := walkDAG(ctx, b.store, root)
		if err != nil {
			return fmt.Errorf("walk dag rooted at %s: %w", root, err)
		}
		for _, c := range walked {
			if !seen[c] {
				seen[c] = true
				entries = append(entries, c)
			}
		}
	}

	addrs := make([]string, 0, len(b.host.Addrs()))
	for _, a := range b.host.Addrs() {
		addrs = append(addrs, a.String())
	}
	ad := Advertisement{
		RootCID:    roots[0],
		ContextID:  contextID,
		ProviderID: b.host.ID().String(),
		Addrs:      addrs,
		IsRm:       tombstone,
	}

	if err := b.indexProvider.Create(ctx, ad.ContextID, ad.RootCID, ad.ProviderID, ad.Addrs, ad.IsRm); err != nil {
		return fmt.Errorf("create advertisement: %w", err)
	}

	for start := 0; start < len(entries); start += MaxAdvertisementEntries {
		end := start + MaxAdvertisementEntries
		if end > len(entries) {
			end = len(entries)
		}
		if err := b.indexProvider.AddChunk(ctx, contextID, entries[start:end]); err != nil {
			return fmt.Errorf("add advertisement chunk: %w", err)
		}
	}

	adCID, err := b.indexProvider.Publish(ctx, contextID)
	if err != nil {
		return fmt.Errorf("publish advertisement: %w", err)
	}

	msg, err := b.indexProvider.AnnounceMsg(adCID)
	if err != nil {
		return fmt.Errorf("build announce message: %w", err)
	}

	if err := b.gossip.Publish(ctx, IndexerIngestTopic, msg); err != nil {
		logWarn("advertisement: gossip announce failed", "err", err)
	}
	return nil
}

func (b *behaviour) SendRequest(ctx context.Context, p peer.ID, req []byte) ([]byte, error) {
	return b.requestResponse.SendRequest(ctx, p, req)
}

func (b *behaviour) IsRelayClientEnabled() bool {
	return b.relay != nil && b.relay.relayClient
}

func (b *behaviour) Discovery() *discoveryHub { return b.discovery }

func (b *behaviour) Close() error {
	b.liveness.Close()
	b.identify.Close()
	if b.relay != nil {
		b.relay.Close()
	}
	if b.mdns != nil {
		b.mdns.Close()
	}
	if b.connSub != nil {
		b.connSub.Close()
	}
	return b.discovery.Close()
}
