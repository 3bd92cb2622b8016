package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// adRecord is the metadata registered by Create, ahead of any staged
// chunks, for a given context ID.
type adRecord struct {
	rootCID    cid.Cid
	providerID string
	addrs      []string
	isRm       bool
}

// MemoryIndexProvider is a reference ursanet.IndexProvider: Create
// registers an advertisement's root CID, provider ID, listen addrs and
// tombstone flag; AddChunk stages CIDs under it; Publish derives a
// deterministic advertisement CID from everything recorded so far and
// renders a JSON announce payload.
type MemoryIndexProvider struct {
	mu     sync.Mutex
	ads    map[string]adRecord
	staged map[string][]cid.Cid
	adCIDs map[string]cid.Cid
}

// NewMemoryIndexProvider constructs an empty provider.
func NewMemoryIndexProvider() *MemoryIndexProvider {
	return &MemoryIndexProvider{
		ads:    make(map[string]adRecord),
		staged: make(map[string][]cid.Cid),
		adCIDs: make(map[string]cid.Cid),
	}
}

func (p *MemoryIndexProvider) Create(ctx context.Context, contextID []byte, rootCID cid.Cid, providerID string, addrs []string, isRm bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := string(contextID)
	p.ads[key] = adRecord{
		rootCID:    rootCID,
		providerID: providerID,
		addrs:      append([]string(nil), addrs...),
		isRm:       isRm,
	}
	if _, ok := p.staged[key]; !ok {
		p.staged[key] = nil
	}
	return nil
}

func (p *MemoryIndexProvider) AddChunk(ctx context.Context, contextID []byte, entries []cid.Cid) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := string(contextID)
	if _, ok := p.ads[key]; !ok {
		return fmt.Errorf("advertisement for context id %x was never created", contextID)
	}
	p.staged[key] = append(p.staged[key], entries...)
	return nil
}

func (p *MemoryIndexProvider) Publish(ctx context.Context, contextID []byte) (cid.Cid, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := string(contextID)
	ad, ok := p.ads[key]
	if !ok {
		return cid.Undef, fmt.Errorf("advertisement for context id %x was never created", contextID)
	}
	entries := p.staged[key]

	buf := append([]byte(nil), contextID...)
	buf = append(buf, ad.rootCID.Bytes()...)
	for _, e := range entries {
		buf = append(buf, e.Bytes()...)
	}
	for _, a := range ad.addrs {
		buf = append(buf, []byte(a)...)
	}
	if ad.isRm {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	sum, err := mh.Sum(buf, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash advertisement contents: %w", err)
	}
	adCID := cid.NewCidV1(cid.Raw, sum)
	p.adCIDs[key] = adCID
	return adCID, nil
}

// announceMessage is the JSON payload gossiped on IndexerIngestTopic.
type announceMessage struct {
	AdCID string `json:"ad_cid"`
}

func (p *MemoryIndexProvider) AnnounceMsg(adCID cid.Cid) ([]byte, error) {
	return json.Marshal(announceMessage{AdCID: adCID.String()})
}
