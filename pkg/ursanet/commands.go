package ursanet

import (
	"container/list"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
)

// BlockExchangeMode selects between fetching a single block and walking
// its DAG.
type BlockExchangeMode int

const (
	ModeGet BlockExchangeMode = iota
	ModeSync
)

// Result is what a GetBlock reply channel receives: nil on success, an
// error otherwise.
type Result struct {
	Err error
}

// PeersResult carries the reply to GetPeers.
type PeersResult struct {
	Peers []peer.ID
}

// RequestResult carries the reply to SendRequest.
type RequestResult struct {
	Response []byte
	Err      error
}

// ProvidingResult carries the reply to StartProviding.
type ProvidingResult struct {
	CIDs []cid.Cid
	Err  error
}

// AckResult carries the reply to SendResponse.
type AckResult struct {
	Err error
}

// Command is the tagged union of operations callers submit to the
// service. Exactly one of the typed fields is set; Kind discriminates.
type Command struct {
	Kind CommandKind

	// GetBlock
	CID   cid.Cid
	Mode  BlockExchangeMode
	Reply chan Result

	// GetPeers
	PeersReply chan PeersResult

	// StartProviding
	CIDs             []cid.Cid
	ProvidingReply   chan ProvidingResult

	// SendRequest
	Peer          peer.ID
	Request       []byte
	RequestReply  chan RequestResult

	// SendResponse
	RequestID int64
	Response  []byte
	AckReply  chan AckResult

	// Publish
	Topic   string
	Message []byte

	// Cancel
	WaiterToken uint64
}

type CommandKind int

const (
	CmdGetBlock CommandKind = iota
	CmdGetPeers
	CmdStartProviding
	CmdSendRequest
	CmdSendResponse
	CmdPublish
	CmdCancel
)

// Event is the tagged union of occurrences the service emits to
// subscribers.
type Event struct {
	Kind EventKind

	Peer peer.ID // PeerConnected / PeerDisconnected

	GossipMessage *GossipMessage // GossipMessage

	RequestMessage *RequestMessage // RequestMessage

	BlockExchange *BlockExchangeInfo // BlockExchange
}

type EventKind int

const (
	EvtPeerConnected EventKind = iota
	EvtPeerDisconnected
	EvtGossipMessage
	EvtRequestMessage
	EvtBlockExchange
)

// GossipMessage is the payload of an inbound gossip message.
type GossipMessage struct {
	Peer  peer.ID
	Topic string
	Data  []byte
}

// RequestMessage carries an inbound request/response RPC request and
// the single-shot channel its response must be sent on.
type RequestMessage struct {
	Peer            peer.ID
	RequestID       int64
	Request         []byte
	ResponseChannel chan<- []byte
}

// BlockExchangeInfo is the terminal, normalized block-exchange event
// surfaced to the swarm-event handler.
type BlockExchangeInfo struct {
	CID        cid.Cid
	QueryID    uint64
	BlockFound bool
}

// Commands is the cloneable sending handle callers use to submit
// commands. It never blocks: sends land in an internally unbounded
// queue drained by a background goroutine into the service's buffered
// channel.
type Commands struct {
	q *unboundedQueue
}

// Send enqueues cmd. It never blocks and never fails except after the
// service has been closed, in which case the command is silently
// dropped (mirrors an unbounded MPSC queue whose consumer has gone
// away).
func (c Commands) Send(cmd Command) {
	c.q.push(cmd)
}

// Events is the receiving handle subscribers read emitted events from.
type Events struct {
	Out <-chan Event
}

// unboundedQueue is a multi-producer/single-consumer queue with no
// capacity limit on the producer side. Producers never block; a
// background goroutine (started by newCommandPipe) drains the backing
// list into a bounded channel the consumer reads from.
type unboundedQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    *list.List
	closed bool
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{buf: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *unboundedQueue) push(v any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.buf.PushBack(v)
	q.cond.Signal()
}

func (q *unboundedQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// pop blocks until an item is available or the queue is closed and
// drained, returning ok=false in the latter case.
func (q *unboundedQueue) pop() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.buf.Len() == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
	front := q.buf.Front()
	q.buf.Remove(front)
	return front.Value, true
}

// commandPipeBufferSize sizes the bounded channel the service loop
// selects on; the unbounded queue in front of it is what actually gives
// callers a non-blocking Send.
const commandPipeBufferSize = 4096

// newCommandPipe wires an unbounded producer-side queue to a bounded
// channel suitable for use in a select statement, returning the sending
// handle, the receiving channel, and a stop function.
func newCommandPipe() (Commands, <-chan Command, func()) {
	q := newUnboundedQueue()
	out := make(chan Command, commandPipeBufferSize)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			v, ok := q.pop()
			if !ok {
				return
			}
			select {
			case out <- v.(Command):
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		q.close()
		close(done)
	}
	return Commands{q: q}, out, stop
}

// newEventPipe mirrors newCommandPipe for the event stream; the service
// loop is the sole producer so it pushes directly without the
// unbounded-queue indirection, but the channel is still generously
// buffered so slow subscribers never stall the loop.
const eventPipeBufferSize = 4096

func newEventPipe() (chan Event, Events) {
	ch := make(chan Event, eventPipeBufferSize)
	return ch, Events{Out: ch}
}
