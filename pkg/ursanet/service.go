package ursanet

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/crypto"
)

// Config is the construction-time configuration for a Service.
type Config struct {
	ListenAddr     string
	BootstrapNodes []string
	RelayClient    bool
	Autonat        bool
	MDNS           bool

	// Gater optionally restricts connections to an authorized peer set.
	Gater connmgr.ConnectionGater
}

// Service is the single long-lived networking core: it owns the swarm,
// the composed behaviour, and the pending-query table, and exposes
// itself to the rest of the process through Commands/Events mailboxes.
// A Service is created once and moved into Run exactly once (C5).
type Service struct {
	swarm     *swarmOwner
	behaviour *behaviour
	pending   *pendingQueryTable

	store         BlockStore
	indexProvider IndexProvider
	metrics       *Metrics
	cfg           Config

	commandsIn   <-chan Command
	commandsStop func()

	eventsOut chan Event

	Commands Commands
	Events   Events
}

// NewService constructs the service: it builds the swarm (listening,
// dialing bootstrap nodes, subscribing to the global topic), composes
// the behaviour, and wires the command/event mailboxes. A construction
// error here is fatal and no goroutines are leaked.
func NewService(ctx context.Context, priv crypto.PrivKey, cfg Config, store BlockStore, indexProvider IndexProvider, metrics *Metrics) (*Service, error) {
	if metrics == nil {
		metrics = NewMetrics()
	}

	sc := swarmConfig{
		ListenAddr:     cfg.ListenAddr,
		BootstrapNodes: cfg.BootstrapNodes,
		RelayClient:    cfg.RelayClient,
		Autonat:        cfg.Autonat,
		MDNS:           cfg.MDNS,
		Gater:          cfg.Gater,
	}

	swarm, err := newSwarmOwner(ctx, priv, sc, metrics, store, indexProvider)
	if err != nil {
		return nil, err
	}

	commands, commandsIn, commandsStop := newCommandPipe()
	eventsOut, events := newEventPipe()

	return &Service{
		swarm:         swarm,
		behaviour:     swarm.behaviour,
		pending:       newPendingQueryTable(),
		store:         store,
		indexProvider: indexProvider,
		metrics:       metrics,
		cfg:           cfg,
		commandsIn:    commandsIn,
		commandsStop:  commandsStop,
		eventsOut:     eventsOut,
		Commands:      commands,
		Events:        events,
	}, nil
}

// Run is the service loop (C5): select between the next swarm event and
// the next command, run its handler to completion, re-select. It
// returns ctx.Err() when ctx is cancelled, and an error when one of the
// two streams is exhausted, which is always loop-fatal.
func (s *Service) Run(ctx context.Context) error {
	defer s.commandsStop()
	defer s.swarm.Close()
	defer close(s.eventsOut)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-s.behaviour.Events():
			if !ok {
				return fmt.Errorf("ursanet: swarm event stream closed")
			}
			s.handleSwarmEvent(ctx, evt)

		case cmd, ok := <-s.commandsIn:
			if !ok {
				return fmt.Errorf("ursanet: command stream closed")
			}
			s.handleCommand(ctx, cmd)
		}
	}
}

// emitEvent forwards evt to subscribers; a full event channel is a
// policy warning, not fatal (the channel is generously buffered so this
// should only happen under sustained subscriber stalls).
func (s *Service) emitEvent(evt Event) {
	select {
	case s.eventsOut <- evt:
	default:
		logWarn("event sink full, dropping event", "kind", evt.Kind)
	}
}

const (
	blockPresenceInitialBackoff = time.Millisecond
	blockPresenceMaxBackoff     = 100 * time.Millisecond
	blockPresenceTimeout        = 1 * time.Second
)

// waitForBlockPresent polls the store with a small, monotonically
// increasing back-off (1ms -> 10ms -> 100ms, capped) until it reports
// the block present or the timeout elapses. Never busy-spins.
func waitForBlockPresent(ctx context.Context, store BlockStore, c cid.Cid) bool {
	ctx, cancel := context.WithTimeout(ctx, blockPresenceTimeout)
	defer cancel()

	backoff := blockPresenceInitialBackoff
	for {
		has, err := store.Has(ctx, c)
		if err == nil && has {
			return true
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		backoff *= 10
		if backoff > blockPresenceMaxBackoff {
			backoff = blockPresenceMaxBackoff
		}
	}
}
