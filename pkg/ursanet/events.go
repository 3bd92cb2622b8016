package ursanet

import (
	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
)

// swarmEventKind discriminates the internal, normalized event stream
// the composed behaviour emits toward the service loop (C3 -> C5/C6).
type swarmEventKind int

const (
	swarmPeerConnected swarmEventKind = iota
	swarmPeerDisconnected
	swarmGossipMessage
	swarmRequestMessage
	swarmBlockExchangeComplete
	swarmBlockExchangeProgress
	swarmNATStatusChanged
	swarmRelayReservationOpened
	swarmRelayReservationClosed
	swarmRelayCircuitOpened
	swarmRelayCircuitClosed
)

// natStatus mirrors autonat's reachability classification.
type natStatus int

const (
	natUnknown natStatus = iota
	natPrivate
	natPublic
)

// swarmEvent is the single normalized variant every sub-protocol
// contributes to, drained only by the aggregate's own internal channel
// and never shared across goroutines beyond that hand-off.
type swarmEvent struct {
	kind swarmEventKind

	peer peer.ID

	gossip *GossipMessage

	request *RequestMessage

	blockCID    cid.Cid
	queryID     uint64
	blockFound  bool
	missingLeft int

	prevStatus natStatus
	newStatus  natStatus
	publicAddr string
}
