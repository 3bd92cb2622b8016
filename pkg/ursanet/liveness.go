package ursanet

import (
	"bufio"
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	livenessInterval = 30 * time.Second
	livenessTimeout  = 10 * time.Second
)

// livenessTracker runs a periodic round-trip probe on every established
// connection, the way pkg/p2pnet/ping.go measures RTT on demand but
// driven continuously per-peer instead of on a single request.
type livenessTracker struct {
	host host.Host

	mu  sync.Mutex
	rtt map[peer.ID]time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newLivenessTracker(h host.Host) *livenessTracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &livenessTracker{host: h, rtt: make(map[peer.ID]time.Duration), ctx: ctx, cancel: cancel}

	h.SetStreamHandler(protocol.ID(LivenessProtocolID), t.handleStream)
	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			t.wg.Add(1)
			go t.probeLoop(c.RemotePeer())
		},
	})
	return t
}

func (t *livenessTracker) handleStream(s network.Stream) {
	defer s.Close()
	reader := bufio.NewReader(s)
	line, err := reader.ReadString('\n')
	if err != nil || line != "ping\n" {
		return
	}
	s.Write([]byte("pong\n"))
}

func (t *livenessTracker) probeLoop(p peer.ID) {
	defer t.wg.Done()
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if !t.isConnected(p) {
				return
			}
			t.probe(p)
		}
	}
}

func (t *livenessTracker) isConnected(p peer.ID) bool {
	return t.host.Network().Connectedness(p) == network.Connected
}

func (t *livenessTracker) probe(p peer.ID) {
	ctx, cancel := context.WithTimeout(t.ctx, livenessTimeout)
	defer cancel()

	s, err := t.host.NewStream(ctx, p, protocol.ID(LivenessProtocolID))
	if err != nil {
		logDebug("liveness: peer does not support liveness protocol", "peer", p, "err", err)
		return
	}
	defer s.Close()

	start := time.Now()
	if _, err := s.Write([]byte("ping\n")); err != nil {
		logDebug("liveness: write failed", "peer", p, "err", err)
		return
	}
	reader := bufio.NewReader(s)
	resp, err := reader.ReadString('\n')
	if err != nil {
		logDebug("liveness: timeout, no response", "peer", p, "err", err)
		return
	}
	if resp != "pong\n" {
		logDebug("liveness: unexpected response", "peer", p, "resp", resp)
		return
	}

	rtt := time.Since(start)
	t.mu.Lock()
	t.rtt[p] = rtt
	t.mu.Unlock()
}

// RTT returns the last measured round-trip time for p, if any.
func (t *livenessTracker) RTT(p peer.ID) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.rtt[p]
	return d, ok
}

func (t *livenessTracker) Close() {
	t.cancel()
	t.wg.Wait()
}
