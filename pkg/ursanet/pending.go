package ursanet

import (
	"fmt"
	"log/slog"

	"github.com/ipfs/go-cid"
)

// pendingQueryTable maps a CID to the ordered list of reply channels
// waiting on it. It is touched only from the service loop goroutine —
// never shared, never locked.
type pendingQueryTable struct {
	waiters map[cid.Cid][]chan Result
}

func newPendingQueryTable() *pendingQueryTable {
	return &pendingQueryTable{waiters: make(map[cid.Cid][]chan Result)}
}

// register appends sink to the waiter list for c, creating it if absent.
func (t *pendingQueryTable) register(c cid.Cid, sink chan Result) {
	t.waiters[c] = append(t.waiters[c], sink)
}

// complete removes the waiter list for c and delivers outcome to each
// sink. If present is false the outcome is an error regardless of
// blockFound — the caller is responsible for having already confirmed
// store presence when blockFound is true (see waitForBlockPresent).
func (t *pendingQueryTable) complete(c cid.Cid, present bool) {
	sinks, ok := t.waiters[c]
	if !ok {
		slog.Debug("ursanet: block-exchange completion with no registered waiter", "cid", c)
		return
	}
	delete(t.waiters, c)

	var result Result
	if !present {
		result = Result{Err: fmt.Errorf("%w: %s", ErrBlockNotFound, c)}
	}
	for _, sink := range sinks {
		deliver(sink, result)
	}
}

// discard removes and drops the waiter list for c without delivering
// anything (used when a query is superseded rather than completed).
func (t *pendingQueryTable) discard(c cid.Cid) {
	delete(t.waiters, c)
}

// count reports the number of outstanding waiters across all CIDs, used
// by tests asserting the table's size invariant.
func (t *pendingQueryTable) count() int {
	n := 0
	for _, sinks := range t.waiters {
		n += len(sinks)
	}
	return n
}

// deliver sends result on sink and closes it. The send blocks until the
// channel has room: a buffered, single-use channel of size 1 is the
// contract GetBlock callers are expected to provide, so that the send
// completes even if the caller has abandoned it (a non-blocking send
// would silently drop legitimate deliveries). An unbuffered reply
// channel nobody reads blocks the service loop.
func deliver(sink chan Result, result Result) {
	sink <- result
	close(sink)
}
