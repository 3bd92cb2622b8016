package ursanet

import (
	"context"
)

// handleSwarmEvent translates an internal, normalized swarmEvent into
// effects on the pending-query table and the external event stream
// (C6). This is the handling matrix of spec §4.5.
func (s *Service) handleSwarmEvent(ctx context.Context, evt swarmEvent) {
	switch evt.kind {
	case swarmBlockExchangeComplete:
		s.handleBlockExchangeComplete(ctx, evt)

	case swarmBlockExchangeProgress:
		// Informational only; no waiter-visible effect.

	case swarmGossipMessage:
		s.metrics.GossipMessagesTotal.WithLabelValues(evt.gossip.Topic).Inc()
		s.emitEvent(Event{Kind: EvtGossipMessage, Peer: evt.peer, GossipMessage: evt.gossip})

	case swarmRequestMessage:
		s.emitEvent(Event{Kind: EvtRequestMessage, Peer: evt.peer, RequestMessage: evt.request})

	case swarmPeerConnected:
		s.metrics.PeerConnectedTotal.WithLabelValues("connected").Inc()
		s.emitEvent(Event{Kind: EvtPeerConnected, Peer: evt.peer})

	case swarmPeerDisconnected:
		s.metrics.PeerConnectedTotal.WithLabelValues("disconnected").Inc()
		s.emitEvent(Event{Kind: EvtPeerDisconnected, Peer: evt.peer})

	case swarmNATStatusChanged:
		s.handleNATStatusChanged(ctx, evt)

	case swarmRelayReservationOpened:
		s.metrics.RelayReservationTotal.WithLabelValues("opened").Inc()
	case swarmRelayReservationClosed:
		s.metrics.RelayReservationTotal.WithLabelValues("closed").Inc()
	case swarmRelayCircuitOpened:
		s.metrics.RelayCircuitTotal.WithLabelValues("opened").Inc()
	case swarmRelayCircuitClosed:
		s.metrics.RelayCircuitTotal.WithLabelValues("closed").Inc()
	}
}

func (s *Service) handleBlockExchangeComplete(ctx context.Context, evt swarmEvent) {
	s.behaviour.Cancel(evt.queryID) // idempotent

	found := "false"
	if evt.blockFound {
		found = "true"
	}
	s.metrics.BlockExchangeTotal.WithLabelValues(found).Inc()

	present := false
	if evt.blockFound {
		present = waitForBlockPresent(ctx, s.store, evt.blockCID)
		if !present {
			logWarn("block-exchange: store did not confirm presence after found=true", "cid", evt.blockCID)
		}
	}
	s.pending.complete(evt.blockCID, present)
}

func (s *Service) handleNATStatusChanged(ctx context.Context, evt swarmEvent) {
	s.metrics.NATStatusTotal.WithLabelValues(natStatusLabel(evt.newStatus)).Inc()

	if evt.prevStatus == natUnknown && evt.newStatus == natPrivate && s.behaviour.IsRelayClientEnabled() {
		addrs := s.behaviour.Discovery().BootstrapAddrs()
		if err := s.behaviour.relay.adoptRelay(ctx, addrs); err != nil {
			logError("nat: relay adoption failed", "err", err)
		}
	}
}

func natStatusLabel(n natStatus) string {
	switch n {
	case natPrivate:
		return "private"
	case natPublic:
		return "public"
	default:
		return "unknown"
	}
}
