package auth

import (
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// AuthorizedPeerGater implements connmgr.ConnectionGater: it blocks
// inbound connections from peers that are not in the authorized list.
// Outbound dials are never gated, since the node itself must always be
// able to reach bootstrap nodes, relays, and DHT peers regardless of
// who is allowed to dial in.
type AuthorizedPeerGater struct {
	mu              sync.RWMutex
	authorizedPeers map[peer.ID]bool
}

// NewAuthorizedPeerGater creates a new connection gater with the given authorized peers.
func NewAuthorizedPeerGater(authorizedPeers map[peer.ID]bool) *AuthorizedPeerGater {
	return &AuthorizedPeerGater{authorizedPeers: authorizedPeers}
}

// InterceptPeerDial always allows outbound dials.
func (g *AuthorizedPeerGater) InterceptPeerDial(p peer.ID) bool {
	return true
}

// InterceptAddrDial always allows outbound dials.
func (g *AuthorizedPeerGater) InterceptAddrDial(id peer.ID, ma multiaddr.Multiaddr) bool {
	return true
}

// InterceptAccept allows the raw connection through; the authorization
// check happens in InterceptSecured once the peer ID is verified.
func (g *AuthorizedPeerGater) InterceptAccept(cm network.ConnMultiaddrs) bool {
	return true
}

// InterceptSecured is the primary authorization check: it runs once the
// crypto handshake has verified the remote peer ID, and denies any
// inbound connection from a peer outside the authorized set.
func (g *AuthorizedPeerGater) InterceptSecured(dir network.Direction, p peer.ID, addr network.ConnMultiaddrs) bool {
	if dir != network.DirOutbound {
		g.mu.RLock()
		authorized := g.authorizedPeers[p]
		g.mu.RUnlock()

		short := p.String()[:16] + "..."
		if !authorized {
			slog.Warn("inbound connection denied", "peer", short)
			return false
		}
		slog.Info("inbound connection allowed", "peer", short)
	}
	return true
}

// InterceptUpgraded allows every connection through once InterceptSecured
// has already authorized it; nothing further to check after muxer
// negotiation.
func (g *AuthorizedPeerGater) InterceptUpgraded(conn network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
