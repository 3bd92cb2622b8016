package ursanet

import "errors"

var (
	// ErrNoPeers is returned for a block-exchange request made with an
	// empty peer list; the swarm is never touched.
	ErrNoPeers = errors.New("ursanet: no peers given for block request")

	// ErrBlockNotFound is returned to every waiter when a block-exchange
	// query completes without finding the block on any queried peer.
	ErrBlockNotFound = errors.New("ursanet: requested block not found with any peer")

	// ErrSendRequestFailed is returned when an outbound request/response
	// RPC could not be delivered.
	ErrSendRequestFailed = errors.New("ursanet: send request failed")

	// ErrSendResponseUnimplemented is returned for SendResponse commands.
	// The wire plumbing for replying on a request/response inbound
	// channel is not implemented in this version.
	ErrSendResponseUnimplemented = errors.New("ursanet: send response not implemented")

	// ErrServiceClosed names the state of a service whose loop has
	// exited. Commands.Send does not return it: commands sent after the
	// service has closed are silently dropped.
	ErrServiceClosed = errors.New("ursanet: service closed")

	// ErrNoBootstrapAddrs is returned when relay adoption is triggered
	// but no bootstrap address is configured to pick a relay from.
	ErrNoBootstrapAddrs = errors.New("ursanet: no bootstrap addresses configured for relay adoption")
)
