package node

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Barrier is an N-party startup rendezvous. A producer arrives after
// finishing its async precondition (e.g. historical backfill); consumers
// arrive immediately and block until every party has arrived, which
// gives the data-ready happens-before relationship without polling.
//
// The party count is derived from the graph topology, never hardcoded,
// so adding a consumer cannot silently deadlock the rendezvous.
type Barrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

// NewBarrier creates a barrier for the given number of parties.
func NewBarrier(parties int) (*Barrier, error) {
	if parties <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "barrier parties: %d", parties)
	}

	return &Barrier{
		parties: parties,
		release: make(chan struct{}),
	}, nil
}

// Arrive marks one party as ready and blocks until all parties arrived
// or the context is done.
func (b *Barrier) Arrive(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.parties {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.release:
		return nil
	}
}
