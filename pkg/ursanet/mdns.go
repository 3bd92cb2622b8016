package ursanet

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"
)

// MDNSServiceName is the DNS-SD service type used for LAN discovery,
// matching pkg/p2pnet/mdns.go's naming convention for this project's
// own service family.
const MDNSServiceName = "_ursa._udp"

const (
	mdnsBrowseInterval = 30 * time.Second
	mdnsBrowseTimeout  = 10 * time.Second
	dnsaddrPrefix      = "dnsaddr="

	// mdnsSRVPort is the port carried in the DNS-SD SRV record, required
	// by the spec but otherwise unused: actual dial addresses travel in
	// the TXT records below, since a node may listen on several
	// transports and ports at once.
	mdnsSRVPort = 4001
)

// mdnsDiscovery advertises this node on the LAN and feeds discovered
// peers into discoveryHub's address book, adapted from
// pkg/p2pnet/mdns.go's zeroconf-based register/browse loop.
type mdnsDiscovery struct {
	host      host.Host
	discovery *discoveryHub
	server    *zeroconf.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newMDNSDiscovery(h host.Host, d *discoveryHub) *mdnsDiscovery {
	return &mdnsDiscovery{host: h, discovery: d}
}

func (m *mdnsDiscovery) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	txts, err := m.dnsaddrTXTRecords()
	if err != nil {
		return err
	}

	server, err := zeroconf.Register(
		m.host.ID().String(),
		MDNSServiceName,
		"local.",
		mdnsSRVPort,
		txts,
		nil,
	)
	if err != nil {
		return err
	}
	m.server = server

	m.wg.Add(1)
	go m.browseLoop()
	return nil
}

// dnsaddrTXTRecords renders this host's actual listen addresses as
// libp2p dnsaddr= TXT records, so peers reassembling them in
// handleEntry learn real dial addresses instead of a single
// guessed host:port pair.
func (m *mdnsDiscovery) dnsaddrTXTRecords() ([]string, error) {
	listenAddrs, err := m.host.Network().InterfaceListenAddresses()
	if err != nil {
		return nil, err
	}

	p2pAddrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{
		ID:    m.host.ID(),
		Addrs: listenAddrs,
	})
	if err != nil {
		return nil, err
	}

	txts := make([]string, 0, len(p2pAddrs))
	for _, addr := range p2pAddrs {
		txts = append(txts, dnsaddrPrefix+addr.String())
	}
	return txts, nil
}

func (m *mdnsDiscovery) browseLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(mdnsBrowseInterval)
	defer ticker.Stop()

	m.browseOnce()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.browseOnce()
		}
	}
}

func (m *mdnsDiscovery) browseOnce() {
	ctx, cancel := context.WithTimeout(m.ctx, mdnsBrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for entry := range entries {
			m.handleEntry(entry)
		}
	}()

	if err := zeroconf.Browse(ctx, MDNSServiceName, "local.", entries); err != nil {
		logDebug("mdns: browse failed", "err", err)
	}
}

func (m *mdnsDiscovery) handleEntry(entry *zeroconf.ServiceEntry) {
	if entry.Instance == m.host.ID().String() {
		return
	}

	addrs := m.processTextRecords(entry.Text)
	if len(addrs) == 0 {
		return
	}

	infos, err := peer.AddrInfosFromP2pAddrs(addrs...)
	if err != nil {
		logDebug("mdns: failed to parse peer addrs", "err", err)
		return
	}
	for _, info := range infos {
		if info.ID == m.host.ID() {
			continue
		}
		for _, a := range info.Addrs {
			if err := m.discovery.AddAddressString(info.ID, a.String()); err != nil {
				continue
			}
		}
	}
}

// processTextRecords decodes the dnsaddr= TXT records an mDNS entry
// carries back into multiaddrs, following pkg/p2pnet/mdns.go's
// processTextRecords pattern.
func (m *mdnsDiscovery) processTextRecords(txts []string) []ma.Multiaddr {
	addrs := make([]ma.Multiaddr, 0, len(txts))
	for _, txt := range txts {
		if !strings.HasPrefix(txt, dnsaddrPrefix) {
			continue
		}
		addr, err := ma.NewMultiaddr(txt[len(dnsaddrPrefix):])
		if err != nil {
			logDebug("mdns: bad multiaddr in TXT", "err", err)
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func (m *mdnsDiscovery) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.server != nil {
		m.server.Shutdown()
	}
	m.wg.Wait()
}
