package ursanet

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	autonat "github.com/libp2p/go-libp2p/p2p/host/autonat"
	relayv2 "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	ma "github.com/multiformats/go-multiaddr"
)

// relayResources are the conservative resource limits this node applies
// when it chooses to serve as a relay for other peers, carried over
// from pkg/p2pnet/peerrelay.go's PeerRelayResources.
var relayResources = relayv2.Resources{
	Limit: &relayv2.RelayLimit{
		Duration: 10 * time.Minute,
		Data:     1 << 17,
	},
	ReservationTTL:         30 * time.Minute,
	MaxReservations:        4,
	MaxCircuits:            16,
	BufferSize:             4096,
	MaxReservationsPerPeer: 1,
	MaxReservationsPerIP:   2,
	MaxReservationsPerASN:  4,
}

// relayManager tracks NAT reachability and performs the relay-adoption
// algorithm of spec §4.5: on a transition from Unknown to Private with
// the relay client enabled, pick one bootstrap address at random and
// start listening on its circuit address.
type relayManager struct {
	host        host.Host
	autonat     autonat.AutoNAT
	relayClient bool

	sub event.Subscription

	mu     sync.Mutex
	status natStatus
	relay  *relayv2.Relay // non-nil if this node is itself serving as a relay

	enabled atomic.Bool

	emit func(swarmEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRelayManager(h host.Host, relayClientEnabled bool, emit func(swarmEvent)) (*relayManager, error) {
	an, err := autonat.New(h)
	if err != nil {
		return nil, fmt.Errorf("start autonat: %w", err)
	}

	sub, err := h.EventBus().Subscribe(new(event.EvtLocalReachabilityChanged))
	if err != nil {
		an.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm := &relayManager{
		host:        h,
		autonat:     an,
		relayClient: relayClientEnabled,
		sub:         sub,
		status:      natUnknown,
		emit:        emit,
		ctx:         ctx,
		cancel:      cancel,
	}
	rm.wg.Add(1)
	go rm.loop()
	return rm, nil
}

func (rm *relayManager) loop() {
	defer rm.wg.Done()
	for {
		select {
		case <-rm.ctx.Done():
			return
		case raw, ok := <-rm.sub.Out():
			if !ok {
				return
			}
			evt, ok := raw.(event.EvtLocalReachabilityChanged)
			if !ok {
				continue
			}
			rm.handleReachability(evt)
		}
	}
}

func (rm *relayManager) handleReachability(evt event.EvtLocalReachabilityChanged) {
	newStatus := fromNetworkReachability(evt.Reachability)

	rm.mu.Lock()
	prev := rm.status
	rm.status = newStatus
	rm.mu.Unlock()

	rm.emit(swarmEvent{kind: swarmNATStatusChanged, prevStatus: prev, newStatus: newStatus})

	if prev == newStatus {
		return
	}

	switch newStatus {
	case natPrivate:
		if prev == natUnknown && rm.relayClient {
			logInfo("nat: Unknown -> Private, attempting relay adoption")
		}
	case natPublic:
		addrs := rm.host.Addrs()
		if len(addrs) > 0 {
			logInfo("nat: public address observed", "addr", addrs[0].String())
		}
	default:
		logWarn("nat: reachability transition", "from", prev, "to", newStatus)
	}
}

func fromNetworkReachability(r network.Reachability) natStatus {
	switch r {
	case network.ReachabilityPrivate:
		return natPrivate
	case network.ReachabilityPublic:
		return natPublic
	default:
		return natUnknown
	}
}

// adoptRelay implements the relay-adoption algorithm: pick one
// bootstrap address uniformly at random and start listening on the
// corresponding circuit address
// "<relay_addr>/p2p/<relay_peer>/p2p-circuit".
func (rm *relayManager) adoptRelay(ctx context.Context, bootstrapAddrs []string) error {
	chosen, ok := randomBootstrapAddr(bootstrapAddrs)
	if !ok {
		return ErrNoBootstrapAddrs
	}

	maddr, err := ma.NewMultiaddr(chosen)
	if err != nil {
		return fmt.Errorf("invalid bootstrap relay addr: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("invalid bootstrap relay peer info: %w", err)
	}

	if len(info.Addrs) == 0 {
		return fmt.Errorf("bootstrap relay addr %s has no transport part", chosen)
	}
	circuitAddrStr := fmt.Sprintf("%s/p2p/%s/p2p-circuit", info.Addrs[0], info.ID.String())
	circuitAddr, err := ma.NewMultiaddr(circuitAddrStr)
	if err != nil {
		return fmt.Errorf("build circuit address: %w", err)
	}

	return rm.host.Network().Listen(circuitAddr)
}

// EnableRelayServer starts serving circuit-v2 relay reservations for
// other peers, the optional role pkg/p2pnet/peerrelay.go calls a "peer
// relay".
func (rm *relayManager) EnableRelayServer() error {
	if rm.enabled.Load() {
		return nil
	}
	r, err := relayv2.New(rm.host, relayv2.WithResources(relayResources))
	if err != nil {
		return err
	}
	rm.mu.Lock()
	rm.relay = r
	rm.mu.Unlock()
	rm.enabled.Store(true)
	return nil
}

func (rm *relayManager) DisableRelayServer() {
	if !rm.enabled.Load() {
		return
	}
	rm.mu.Lock()
	if rm.relay != nil {
		rm.relay.Close()
		rm.relay = nil
	}
	rm.mu.Unlock()
	rm.enabled.Store(false)
}

func (rm *relayManager) Status() natStatus {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.status
}

func (rm *relayManager) Close() {
	rm.cancel()
	rm.sub.Close()
	rm.wg.Wait()
	rm.DisableRelayServer()
	rm.autonat.Close()
}
