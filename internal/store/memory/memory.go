// Package memory implements store.Store with in-memory maps. Transactions
// run one at a time against a private copy of the state which replaces the
// shared state on commit, so every transaction is serializable. Used for
// tests and local development; nothing is persisted.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

var _ store.Store = (*Store)(nil)

type accountKey struct{ tenant, user uint64 }

type wagerKey struct {
	bet     uint64
	outcome uint32
	user    uint64
}

type betRow struct {
	info     model.BetInfo
	outcomes map[uint32]string
}

type state struct {
	accounts   map[accountKey]uint64
	bets       map[uint64]betRow
	wagers     map[wagerKey]model.Wager
	tombstones map[uint64]struct{}
}

func newState() *state {
	return &state{
		accounts:   make(map[accountKey]uint64),
		bets:       make(map[uint64]betRow),
		wagers:     make(map[wagerKey]model.Wager),
		tombstones: make(map[uint64]struct{}),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:   maps.Clone(s.accounts),
		bets:       make(map[uint64]betRow, len(s.bets)),
		wagers:     maps.Clone(s.wagers),
		tombstones: maps.Clone(s.tombstones),
	}
	for id, b := range s.bets {
		c.bets[id] = betRow{info: b.info, outcomes: maps.Clone(b.outcomes)}
	}

	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return model.WrapStore("begin", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}

	err := fn(tx)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return model.WrapStore("commit", err)
	}

	s.state = tx.state

	return nil
}

func (s *Store) PurgeTombstoned(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.WrapStore("purge tombstoned", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for betID := range s.state.tombstones {
		if _, ok := s.state.bets[betID]; ok {
			delete(s.state.bets, betID)
			purged++
		}
		delete(s.state.tombstones, betID)
	}

	maps.DeleteFunc(s.state.wagers, func(k wagerKey, _ model.Wager) bool {
		_, ok := s.state.bets[k.bet]
		return !ok
	})

	return purged, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return model.WrapStore("ping", ctx.Err())
}

type memTx struct {
	state *state
}
