// Package store provides a minimal in-memory reference implementation
// of the block-storage and index-provider collaborators the networking
// core is built against. Persistent, content-addressed storage is out
// of scope for this module; this package exists so the service can be
// constructed and exercised end to end.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemoryBlockStore is a sync.RWMutex-guarded map implementation of
// ursanet.BlockStore, the same concurrency pattern the rest of this
// module uses for small, single-process maps of swarm state.
type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
	links  map[cid.Cid][]cid.Cid
}

// NewMemoryBlockStore constructs an empty store.
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{
		blocks: make(map[cid.Cid][]byte),
		links:  make(map[cid.Cid][]cid.Cid),
	}
}

func (s *MemoryBlockStore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[c]
	return ok, nil
}

func (s *MemoryBlockStore) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blocks[c]
	if !ok {
		return nil, fmt.Errorf("block %s not found", c)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryBlockStore) Insert(ctx context.Context, c cid.Cid, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blocks[c] = cp
	return nil
}

func (s *MemoryBlockStore) Links(ctx context.Context, c cid.Cid) ([]cid.Cid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cid.Cid(nil), s.links[c]...), nil
}

// SetLinks records the DAG edges out of c, for tests and local
// population of a store ahead of advertisement publishing or sync.
func (s *MemoryBlockStore) SetLinks(c cid.Cid, links []cid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[c] = append([]cid.Cid(nil), links...)
}
