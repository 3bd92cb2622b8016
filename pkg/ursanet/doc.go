// Package ursanet owns a single libp2p swarm and multiplexes the
// sub-protocols a content-addressed node needs onto it: block exchange,
// pub/sub gossip, request/response RPC, peer discovery, NAT status and
// liveness checks. The rest of the process talks to it over two
// channels, commands in and events out; nothing outside the service
// loop touches the swarm directly.
package ursanet

// Protocol and topic identifiers. These are part of the wire contract
// and must not change without a protocol version bump.
const (
	// ProtocolName is advertised via identify so peers on the same
	// network can recognize each other.
	ProtocolName = "/ursa/0.0.1"

	// MessageProtocolID is the stream protocol used for request/response RPC.
	MessageProtocolID = "/ursa/message/0.0.1"

	// LivenessProtocolID is the stream protocol used for periodic RTT probes.
	LivenessProtocolID = "/ursa/liveness/0.0.1"

	// BlockExchangeProtocolID is the stream protocol used for Get/Sync.
	BlockExchangeProtocolID = "/ursa/blockexchange/0.0.1"

	// GlobalTopic is the default gossip topic every node subscribes to.
	GlobalTopic = "/ursa/global"

	// IndexerIngestTopic is where advertisement announce messages are gossiped.
	IndexerIngestTopic = "indexer/ingest/mainnet"
)

// MaxAdvertisementEntries bounds the number of CIDs carried in a single
// advertisement chunk before it is split.
const MaxAdvertisementEntries = 16000
