package ursanet

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	rcmgr "github.com/libp2p/go-libp2p/p2p/host/resource-manager"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"
)

// Connection limits honored by the swarm owner. Each pending/established
// class is capped at 2^9; established-per-peer at 8; handler/connection
// event buffers at 2^7. These are expressed through go-libp2p's resource
// manager, the closest Go analogue to a swarm-level connection-limits
// builder option.
const (
	maxPendingConns     = 1 << 9
	maxEstablishedConns = 1 << 9
	maxConnsPerPeer     = 8
	dialConcurrency     = 8
	eventBufferSize     = 1 << 7
)

// swarmOwner is the single mutable aggregate owning the libp2p host and
// the composed behaviour. Only the service loop goroutine calls methods
// on it after construction.
type swarmOwner struct {
	host      host.Host
	behaviour *behaviour
	localPeer peer.ID
}

// swarmConfig collects the construction-time knobs the owner honors.
type swarmConfig struct {
	ListenAddr     string
	BootstrapNodes []string
	RelayClient    bool
	Autonat        bool
	MDNS           bool

	// Gater, when non-nil, is installed as the host's connection gater.
	// This is the optional authorized-peer allowlist supplementing the
	// core spec: unset, every peer dials/accepts normally.
	Gater connmgr.ConnectionGater
}

// newResourceManager builds the fixed-limit resource manager enforcing
// spec §4.4's exact connection-limit numbers.
func newResourceManager() (network.ResourceManager, error) {
	limits := rcmgr.DefaultLimits
	scalingLimits := limits.AutoScale()

	concrete := scalingLimits
	concrete.System.ConnsInbound = maxEstablishedConns
	concrete.System.ConnsOutbound = maxEstablishedConns
	concrete.System.Conns = maxEstablishedConns * 2
	concrete.System.StreamsInbound = maxEstablishedConns
	concrete.System.StreamsOutbound = maxEstablishedConns

	concrete.PeerDefault.ConnsInbound = maxConnsPerPeer
	concrete.PeerDefault.ConnsOutbound = maxConnsPerPeer
	concrete.PeerDefault.Conns = maxConnsPerPeer

	limiter := rcmgr.NewFixedLimiter(concrete)
	return rcmgr.NewResourceManager(limiter)
}

// newSwarmOwner constructs the libp2p host and wires the composed
// behaviour onto it. It starts listening, dials bootstrap nodes, and
// subscribes to the global gossip topic per spec §4.4, returning an
// error for any listen/dial failure (construction errors are fatal).
func newSwarmOwner(ctx context.Context, priv crypto.PrivKey, cfg swarmConfig, m *Metrics, store BlockStore, indexProvider IndexProvider) (*swarmOwner, error) {
	rm, err := newResourceManager()
	if err != nil {
		return nil, fmt.Errorf("build resource manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.ResourceManager(rm),
	}
	if cfg.ListenAddr != "" {
		opts = append(opts, libp2p.ListenAddrStrings(cfg.ListenAddr))
	}
	if cfg.Gater != nil {
		opts = append(opts, libp2p.ConnectionGater(cfg.Gater))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	bh, err := newBehaviour(ctx, h, cfg, m, store, indexProvider)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("compose behaviour: %w", err)
	}

	owner := &swarmOwner{host: h, behaviour: bh, localPeer: h.ID()}

	// Bootstrap dials run with bounded concurrency rather than one at a
	// time; any failure aborts construction.
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(dialConcurrency)
	for _, addr := range cfg.BootstrapNodes {
		addr := addr
		group.Go(func() error {
			if err := owner.dialBootstrap(gctx, addr); err != nil {
				return fmt.Errorf("dial bootstrap node %s: %w", addr, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		h.Close()
		return nil, err
	}

	if err := bh.gossip.Subscribe(GlobalTopic); err != nil {
		logWarn("subscribe to global topic failed", "err", err)
	}
	if _, err := bh.discovery.Bootstrap(ctx); err != nil {
		logWarn("discovery bootstrap failed", "err", err)
	}

	return owner, nil
}

func (o *swarmOwner) dialBootstrap(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("invalid bootstrap multiaddr: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("invalid bootstrap peer info: %w", err)
	}
	return o.host.Connect(ctx, *info)
}

// randomBootstrapAddr picks one configured bootstrap address uniformly
// at random, for the relay-adoption algorithm in relay.go.
func randomBootstrapAddr(addrs []string) (string, bool) {
	if len(addrs) == 0 {
		return "", false
	}
	return addrs[rand.Intn(len(addrs))], true
}

func (o *swarmOwner) Close() error {
	return o.host.Close()
}
