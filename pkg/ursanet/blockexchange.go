package ursanet

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const blockExchangeStreamTimeout = 15 * time.Second

// blockExchangeRequest is the single request shape sent over
// BlockExchangeProtocolID: "give me the bytes for this CID".
type blockExchangeRequest struct {
	CID string `json:"cid"`
}

// blockExchange implements Get (single block) and Sync (DAG closure) as
// a hand-rolled protocol over raw libp2p streams, the same way
// pkg/p2pnet/ping.go and pkg/p2pnet/netintel.go implement small wire
// protocols rather than pulling in a full exchange stack.
type blockExchange struct {
	host  host.Host
	store BlockStore
	emit  func(swarmEvent)

	nextQueryID uint64
}

func newBlockExchange(h host.Host, store BlockStore, emit func(swarmEvent)) *blockExchange {
	bx := &blockExchange{host: h, store: store, emit: emit}
	h.SetStreamHandler(protocol.ID(BlockExchangeProtocolID), bx.handleStream)
	return bx
}

func (bx *blockExchange) handleStream(s network.Stream) {
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), blockExchangeStreamTimeout)
	defer cancel()

	var req blockExchangeRequest
	dec := json.NewDecoder(bufio.NewReader(s))
	if err := dec.Decode(&req); err != nil {
		return
	}
	c, err := cid.Decode(req.CID)
	if err != nil {
		writeFrame(s, false, nil)
		return
	}
	data, err := bx.store.Get(ctx, c)
	if err != nil {
		writeFrame(s, false, nil)
		return
	}
	writeFrame(s, true, data)
}

func writeFrame(w io.Writer, found bool, data []byte) error {
	var status byte
	if found {
		status = 1
	}
	if _, err := w.Write([]byte{status}); err != nil {
		return err
	}
	if !found {
		return nil
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) (bool, []byte, error) {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return false, nil, err
	}
	if status[0] == 0 {
		return false, nil, nil
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return false, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return false, nil, err
	}
	return true, data, nil
}

// fetchFromPeer asks a single peer for c, returning the bytes on a hit.
func (bx *blockExchange) fetchFromPeer(ctx context.Context, p peer.ID, c cid.Cid) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, blockExchangeStreamTimeout)
	defer cancel()

	s, err := bx.host.NewStream(ctx, p, protocol.ID(BlockExchangeProtocolID))
	if err != nil {
		return nil, false
	}
	defer s.Close()

	if err := json.NewEncoder(s).Encode(blockExchangeRequest{CID: c.String()}); err != nil {
		return nil, false
	}
	found, data, err := readFrame(s)
	if err != nil || !found {
		return nil, false
	}
	return data, true
}

// Get fetches a single block from the first peer in peers that has it.
func (bx *blockExchange) Get(ctx context.Context, queryID uint64, c cid.Cid, peers []peer.ID) {
	go func() {
		for _, p := range peers {
			if data, ok := bx.fetchFromPeer(ctx, p, c); ok {
				if err := bx.store.Insert(ctx, c, data); err != nil {
					logWarn("block-exchange: store insert failed", "cid", c, "err", err)
					continue
				}
				bx.emit(swarmEvent{kind: swarmBlockExchangeComplete, blockCID: c, queryID: queryID, blockFound: true})
				return
			}
		}
		bx.emit(swarmEvent{kind: swarmBlockExchangeComplete, blockCID: c, queryID: queryID, blockFound: false})
	}()
}

// Sync walks the transitive closure of root's DAG, fetching every
// missing descendant from peers.
func (bx *blockExchange) Sync(ctx context.Context, queryID uint64, root cid.Cid, peers []peer.ID) {
	go func() {
		seen := map[cid.Cid]bool{}
		queue := []cid.Cid{root}
		ok := true

		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			if seen[c] {
				continue
			}
			seen[c] = true

			has, err := bx.store.Has(ctx, c)
			if err != nil {
				ok = false
				break
			}
			if !has {
				data, fetched := bx.fetchAny(ctx, c, peers)
				if !fetched {
					ok = false
					break
				}
				if err := bx.store.Insert(ctx, c, data); err != nil {
					ok = false
					break
				}
			}

			links, err := bx.store.Links(ctx, c)
			if err != nil {
				ok = false
				break
			}
			for _, l := range links {
				if !seen[l] {
					queue = append(queue, l)
				}
			}
			bx.emit(swarmEvent{kind: swarmBlockExchangeProgress, blockCID: root, queryID: queryID, missingLeft: len(queue)})
		}

		bx.emit(swarmEvent{kind: swarmBlockExchangeComplete, blockCID: root, queryID: queryID, blockFound: ok})
	}()
}

func (bx *blockExchange) fetchAny(ctx context.Context, c cid.Cid, peers []peer.ID) ([]byte, bool) {
	for _, p := range peers {
		if data, ok := bx.fetchFromPeer(ctx, p, c); ok {
			return data, true
		}
	}
	return nil, false
}

// cancel is idempotent: this protocol has no in-flight server-side
// query state to tear down beyond the goroutine already committed to
// finishing its fetch loop, so cancellation is advisory via ctx.
func (bx *blockExchange) cancel(queryID uint64) {}

func newQueryID(counter *uint64) uint64 {
	return atomic.AddUint64(counter, 1)
}
