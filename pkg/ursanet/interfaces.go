package ursanet

import (
	"context"

	"github.com/ipfs/go-cid"
)

// BlockStore is the content-addressed storage collaborator the service
// is built against. It is deliberately minimal: the service never
// reasons about how blocks are stored, only whether they exist, what
// their bytes are, and what they link to.
type BlockStore interface {
	// Has reports whether the block for cid is present locally.
	Has(ctx context.Context, c cid.Cid) (bool, error)

	// Get returns the raw bytes for cid, or an error if absent.
	Get(ctx context.Context, c cid.Cid) ([]byte, error)

	// Insert stores data under cid, overwriting any prior value.
	Insert(ctx context.Context, c cid.Cid, data []byte) error

	// Links returns the CIDs that cid's block points to, for DAG
	// traversal during Sync. Leaf blocks return an empty slice.
	Links(ctx context.Context, c cid.Cid) ([]cid.Cid, error)
}

// IndexProvider is the advertisement collaborator: it creates an
// advertisement record, accepts chunks of CIDs under it, publishes the
// complete set, and announces the publication to the indexer network —
// the create/add_chunk/publish/announce_msg sequence.
type IndexProvider interface {
	// Create registers a new advertisement under contextID, recording the
	// root CID, provider ID, listen addrs, and tombstone flag ahead of
	// any staged chunks. AddChunk/Publish for a contextID not previously
	// created must fail.
	Create(ctx context.Context, contextID []byte, rootCID cid.Cid, providerID string, addrs []string, isRm bool) error

	// AddChunk stages a chunk of CIDs under the advertisement's context ID.
	AddChunk(ctx context.Context, contextID []byte, entries []cid.Cid) error

	// Publish finalizes all staged chunks for contextID and returns the
	// advertisement CID.
	Publish(ctx context.Context, contextID []byte) (cid.Cid, error)

	// AnnounceMsg returns the gossip payload to publish on
	// IndexerIngestTopic once an advertisement has been published.
	AnnounceMsg(adCid cid.Cid) ([]byte, error)
}

// Advertisement describes a published set of content this node is
// willing to serve, as submitted to the index provider.
type Advertisement struct {
	RootCID     cid.Cid
	ContextID   []byte
	ProviderID  string
	Addrs       []string
	IsRm        bool // tombstone: withdraws a previous advertisement
}
