package ursanet

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// gossipHub wraps go-libp2p-pubsub's GossipSub router. Inbound messages
// whose payload parses as a CID are surfaced as GossipMessage events;
// anything else is dropped, matching
// original_source/network/src/behaviour.rs's handle_gossipsub.
type gossipHub struct {
	ps   *pubsub.PubSub
	emit func(swarmEvent)

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
	cancel map[string]context.CancelFunc
}

func newGossipHub(ctx context.Context, h host.Host, emit func(swarmEvent)) (*gossipHub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}
	return &gossipHub{
		ps:     ps,
		emit:   emit,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		cancel: make(map[string]context.CancelFunc),
	}, nil
}

// Subscribe joins topic and begins reading inbound messages.
func (g *gossipHub) Subscribe(topic string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.topics[topic]; ok {
		return nil
	}

	t, err := g.ps.Join(topic)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.topics[topic] = t
	g.subs[topic] = sub
	g.cancel[topic] = cancel

	go g.readLoop(ctx, topic, sub)
	return nil
}

func (g *gossipHub) readLoop(ctx context.Context, topic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if _, err := cid.Cast(msg.Data); err != nil {
			continue // not a CID payload: policy no-op per spec
		}
		g.emit(swarmEvent{
			kind: swarmGossipMessage,
			peer: msg.GetFrom(),
			gossip: &GossipMessage{
				Peer:  msg.GetFrom(),
				Topic: topic,
				Data:  msg.Data,
			},
		})
	}
}

// Unsubscribe leaves topic.
func (g *gossipHub) Unsubscribe(topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cancel, ok := g.cancel[topic]; ok {
		cancel()
		delete(g.cancel, topic)
	}
	if sub, ok := g.subs[topic]; ok {
		sub.Cancel()
		delete(g.subs, topic)
	}
	if t, ok := g.topics[topic]; ok {
		t.Close()
		delete(g.topics, topic)
	}
}

// Publish sends data on topic, joining it first if necessary.
func (g *gossipHub) Publish(ctx context.Context, topic string, data []byte) error {
	g.mu.Lock()
	t, ok := g.topics[topic]
	g.mu.Unlock()
	if !ok {
		if err := g.Subscribe(topic); err != nil {
			return err
		}
		g.mu.Lock()
		t = g.topics[topic]
		g.mu.Unlock()
	}
	return t.Publish(ctx, data)
}

// AddExplicitPeer marks p as an explicit gossip peer, as identify.go
// does for peers advertising ProtocolName — pubsub keeps a direct mesh
// link to explicit peers regardless of the regular mesh heuristics.
func (g *gossipHub) AddExplicitPeer(p peer.ID) {
	g.ps.AddExplicitPeer(p)
}
