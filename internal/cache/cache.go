// Package cache keeps a read cache of account balances. The ledger store
// stays the source of truth: balances are filled on read misses and dropped
// when a transaction touching them commits.
//
// Every invalidation bumps a per-account generation. A fill carries the
// generation seen by the missing lookup and is discarded when it moved, so
// a balance read before a commit can never be cached after it.
package cache

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

// Entry is the result of a lookup. On a miss, Gen goes back to Fill.
type Entry struct {
	Balance uint64
	Hit     bool
	Gen     uint64
}

// Balances is a balance cache keyed by (tenant, user).
type Balances interface {
	Get(ctx context.Context, tenant, user uint64) (Entry, error)

	// Fill caches a balance read from the store after a miss. It is a no-op
	// if the account was invalidated since the lookup that returned gen.
	Fill(ctx context.Context, tenant, user, gen, balance uint64) error

	// Invalidate drops the balances touched by committed updates.
	Invalidate(ctx context.Context, updates []model.AccountUpdate) error
}

// Nop caches nothing.
type Nop struct{}

var _ Balances = Nop{}

func (Nop) Get(context.Context, uint64, uint64) (Entry, error) { return Entry{}, nil }

func (Nop) Fill(context.Context, uint64, uint64, uint64, uint64) error { return nil }

func (Nop) Invalidate(context.Context, []model.AccountUpdate) error { return nil }
