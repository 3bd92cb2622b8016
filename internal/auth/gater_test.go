package auth

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// mockConnMultiaddrs satisfies network.ConnMultiaddrs for testing.
type mockConnMultiaddrs struct {
	local, remote multiaddr.Multiaddr
}

func (m *mockConnMultiaddrs) LocalMultiaddr() multiaddr.Multiaddr  { return m.local }
func (m *mockConnMultiaddrs) RemoteMultiaddr() multiaddr.Multiaddr { return m.remote }

func testConnMultiaddrs() network.ConnMultiaddrs {
	local, _ := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/1234")
	remote, _ := multiaddr.NewMultiaddr("/ip4/10.0.0.1/tcp/5678")
	return &mockConnMultiaddrs{local: local, remote: remote}
}

func genPeerID(t testing.TB) peer.ID {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pid, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("peer ID from key: %v", err)
	}
	return pid
}

func TestNewAuthorizedPeerGater(t *testing.T) {
	peers := map[peer.ID]bool{genPeerID(t): true}
	g := NewAuthorizedPeerGater(peers)

	if g == nil {
		t.Fatal("gater should not be nil")
	}
}

func TestInterceptPeerDialAlwaysAllows(t *testing.T) {
	g := NewAuthorizedPeerGater(map[peer.ID]bool{})
	unknown := genPeerID(t)

	if !g.InterceptPeerDial(unknown) {
		t.Error("outbound dial should always be allowed")
	}
}

func TestInterceptAddrDialAlwaysAllows(t *testing.T) {
	g := NewAuthorizedPeerGater(map[peer.ID]bool{})
	addr, _ := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/1234")

	if !g.InterceptAddrDial(genPeerID(t), addr) {
		t.Error("outbound addr dial should always be allowed")
	}
}

func TestInterceptAcceptAlwaysAllows(t *testing.T) {
	g := NewAuthorizedPeerGater(map[peer.ID]bool{})
	if !g.InterceptAccept(testConnMultiaddrs()) {
		t.Error("raw accept should always be allowed, authorization happens in InterceptSecured")
	}
}

func TestInterceptSecuredInbound(t *testing.T) {
	allowed := genPeerID(t)
	denied := genPeerID(t)

	g := NewAuthorizedPeerGater(map[peer.ID]bool{allowed: true})

	cm := testConnMultiaddrs()

	if !g.InterceptSecured(network.DirInbound, allowed, cm) {
		t.Error("authorized inbound should be allowed")
	}
	if g.InterceptSecured(network.DirInbound, denied, cm) {
		t.Error("unauthorized inbound should be denied")
	}
}

func TestInterceptSecuredOutbound(t *testing.T) {
	g := NewAuthorizedPeerGater(map[peer.ID]bool{})
	unknown := genPeerID(t)

	if !g.InterceptSecured(network.DirOutbound, unknown, testConnMultiaddrs()) {
		t.Error("outbound should always be allowed")
	}
}

func TestInterceptUpgraded(t *testing.T) {
	g := NewAuthorizedPeerGater(map[peer.ID]bool{})
	ok, reason := g.InterceptUpgraded(nil)
	if !ok {
		t.Error("InterceptUpgraded should always allow")
	}
	if reason != 0 {
		t.Errorf("reason = %d, want 0", reason)
	}
}
