package ursanet

import (
	"context"
	"sync"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
)

// discoveryHub wraps a Kademlia DHT for bootstrap/routing and an
// address book for peers learned out-of-band (identify, mDNS). It is
// the Go analogue of original_source/network/src/discovery, grounded
// on pkg/p2pnet/pathdialer.go's use of dht.IpfsDHT.
type discoveryHub struct {
	host host.Host
	kad  *dht.IpfsDHT

	mu             sync.RWMutex
	bootstrapAddrs []string
}

func newDiscoveryHub(ctx context.Context, h host.Host, bootstrapAddrs []string) (*discoveryHub, error) {
	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		return nil, err
	}
	return &discoveryHub{host: h, kad: kad, bootstrapAddrs: bootstrapAddrs}, nil
}

// Peers returns the set of currently connected peers.
func (d *discoveryHub) Peers() []peer.ID {
	return d.host.Network().Peers()
}

// Bootstrap kicks the DHT's routing-table refresh.
func (d *discoveryHub) Bootstrap(ctx context.Context) (struct{}, error) {
	return struct{}{}, d.kad.Bootstrap(ctx)
}

// BootstrapAddrs returns the configured bootstrap dial multiaddrs.
func (d *discoveryHub) BootstrapAddrs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.bootstrapAddrs))
	copy(out, d.bootstrapAddrs)
	return out
}

// AddAddress installs addr for p into the peerstore so future dials and
// the DHT's routing table can reach it.
func (d *discoveryHub) AddAddress(p peer.ID, addr ma.Multiaddr) {
	d.host.Peerstore().AddAddr(p, addr, peerstore.ConnectedAddrTTL)
}

// AddAddressString is a convenience wrapper for string-form multiaddrs,
// used when feeding peers discovered via mDNS.
func (d *discoveryHub) AddAddressString(p peer.ID, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	d.AddAddress(p, maddr)
	return nil
}

func (d *discoveryHub) Close() error {
	return d.kad.Close()
}

const discoveryBootstrapTimeout = 30 * time.Second
