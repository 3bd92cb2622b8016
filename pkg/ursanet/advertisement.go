package ursanet

import (
	"context"

	"github.com/ipfs/go-cid"
)

// walkDAG enumerates every CID reachable from root, root included, via
// BlockStore.Links — the transitive closure consumed by StartProviding.
func walkDAG(ctx context.Context, store BlockStore, root cid.Cid) ([]cid.Cid, error) {
	seen := map[cid.Cid]bool{root: true}
	queue := []cid.Cid{root}
	var entries []cid.Cid

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		entries = append(entries, c)

		links, err := store.Links(ctx, c)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				queue = append(queue, l)
			}
		}
	}
	return entries, nil
}
