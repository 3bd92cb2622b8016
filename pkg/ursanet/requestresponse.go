package ursanet

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const requestResponseStreamTimeout = 30 * time.Second

// requestResponseHub implements a typed RPC protocol over a fresh
// substream per request, length-prefixed rather than delimiter-based so
// arbitrary binary payloads round-trip safely. Structurally modeled on
// pkg/p2pnet/service.go's fresh-substream-per-request proxy idiom.
type requestResponseHub struct {
	host host.Host
	emit func(swarmEvent)

	nextRequestID int64
}

func newRequestResponseHub(h host.Host, emit func(swarmEvent)) *requestResponseHub {
	rr := &requestResponseHub{host: h, emit: emit}
	h.SetStreamHandler(protocol.ID(MessageProtocolID), rr.handleStream)
	return rr
}

func (rr *requestResponseHub) handleStream(s network.Stream) {
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), requestResponseStreamTimeout)
	defer cancel()

	req, err := readLengthPrefixed(bufio.NewReader(s))
	if err != nil {
		return
	}

	requestID := atomic.AddInt64(&rr.nextRequestID, 1)
	respCh := make(chan []byte, 1)

	rr.emit(swarmEvent{
		kind: swarmRequestMessage,
		peer: s.Conn().RemotePeer(),
		request: &RequestMessage{
			Peer:            s.Conn().RemotePeer(),
			RequestID:       requestID,
			Request:         req,
			ResponseChannel: respCh,
		},
	})

	select {
	case resp := <-respCh:
		writeLengthPrefixed(s, resp)
	case <-ctx.Done():
	}
}

// SendRequest opens a fresh substream to peer p, writes request, and
// waits for the response or an error. The stream's deadline is ctx's
// deadline, capped at requestResponseStreamTimeout, so a caller-supplied
// deadline interrupts a blocked read; cancelling ctx without a deadline
// does not interrupt a read already in progress.
func (rr *requestResponseHub) SendRequest(ctx context.Context, p peer.ID, request []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestResponseStreamTimeout)
	defer cancel()

	s, err := rr.host.NewStream(ctx, p, protocol.ID(MessageProtocolID))
	if err != nil {
		return nil, ErrSendRequestFailed
	}
	defer s.Close()

	deadline, _ := ctx.Deadline()
	s.SetDeadline(deadline)

	if err := writeLengthPrefixed(s, request); err != nil {
		return nil, ErrSendRequestFailed
	}

	resp, err := readLengthPrefixed(bufio.NewReader(s))
	if err != nil {
		return nil, ErrSendRequestFailed
	}
	return resp, nil
}

func writeLengthPrefixed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
