package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

func (tx *memTx) InsertBet(_ context.Context, bet model.BetInfo) error {
	if _, ok := tx.state.bets[bet.ID]; ok {
		return fmt.Errorf("bet %d: %w", bet.ID, model.ErrAlreadyExists)
	}

	bet.Tombstoned = false
	if bet.Author != nil {
		author := *bet.Author
		bet.Author = &author
	}

	tx.state.bets[bet.ID] = betRow{info: bet, outcomes: make(map[uint32]string)}

	return nil
}

func (tx *memTx) InsertOutcome(_ context.Context, betID uint64, index uint32, description string) error {
	row, ok := tx.state.bets[betID]
	if !ok {
		return fmt.Errorf("bet %d: %w", betID, model.ErrNotFound)
	}

	if _, ok := row.outcomes[index]; ok {
		return fmt.Errorf("outcome %d/%d: %w", betID, index, model.ErrAlreadyExists)
	}

	row.outcomes[index] = description

	return nil
}

func (tx *memTx) Bet(_ context.Context, betID uint64, _ store.LockMode) (model.BetInfo, error) {
	row, ok := tx.state.bets[betID]
	if !ok {
		return model.BetInfo{}, fmt.Errorf("bet %d: %w", betID, model.ErrNotFound)
	}

	info := row.info
	_, info.Tombstoned = tx.state.tombstones[betID]

	return info, nil
}

func (tx *memTx) SetOpen(_ context.Context, betID uint64, open bool) error {
	row, ok := tx.state.bets[betID]
	if !ok {
		return fmt.Errorf("bet %d: %w", betID, model.ErrNotFound)
	}

	row.info.Open = open
	tx.state.bets[betID] = row

	return nil
}

func (tx *memTx) Outcomes(_ context.Context, betID uint64) ([]model.Outcome, error) {
	row, ok := tx.state.bets[betID]
	if !ok {
		return nil, nil
	}

	outcomes := make([]model.Outcome, 0, len(row.outcomes))
	for idx, desc := range row.outcomes {
		outcomes = append(outcomes, model.Outcome{Index: idx, Description: desc})
	}

	slices.SortFunc(outcomes, func(a, b model.Outcome) int { return cmp.Compare(a.Index, b.Index) })

	return outcomes, nil
}

func (tx *memTx) Wagers(_ context.Context, betID uint64, outcome uint32) ([]model.Wager, error) {
	return tx.collectWagers(func(w model.Wager) bool {
		return w.BetID == betID && w.Outcome == outcome
	}), nil
}

func (tx *memTx) UserWagers(_ context.Context, betID, user uint64) ([]model.Wager, error) {
	return tx.collectWagers(func(w model.Wager) bool {
		return w.BetID == betID && w.User == user
	}), nil
}

func (tx *memTx) TenantWagers(_ context.Context, tenant uint64) ([]model.Wager, error) {
	return tx.collectWagers(func(w model.Wager) bool {
		_, dead := tx.state.tombstones[w.BetID]
		return w.Tenant == tenant && !dead
	}), nil
}

func (tx *memTx) AddWager(_ context.Context, w model.Wager) (uint64, error) {
	row, ok := tx.state.bets[w.BetID]
	if !ok {
		return 0, fmt.Errorf("bet %d: %w", w.BetID, model.ErrNotFound)
	}
	if _, ok := row.outcomes[w.Outcome]; !ok {
		return 0, fmt.Errorf("outcome %d/%d: %w", w.BetID, w.Outcome, model.ErrNotFound)
	}
	if _, ok := tx.state.accounts[accountKey{w.Tenant, w.User}]; !ok {
		return 0, fmt.Errorf("account %d/%d: %w", w.Tenant, w.User, model.ErrNotFound)
	}

	key := wagerKey{bet: w.BetID, outcome: w.Outcome, user: w.User}

	cur, ok := tx.state.wagers[key]
	if !ok {
		cur = model.Wager{BetID: w.BetID, Outcome: w.Outcome, Tenant: w.Tenant, User: w.User}
	}

	cur.Amount += w.Amount
	tx.state.wagers[key] = cur

	return cur.Amount, nil
}

func (tx *memTx) Tombstone(_ context.Context, betID uint64) error {
	if _, ok := tx.state.bets[betID]; !ok {
		return fmt.Errorf("bet %d: %w", betID, model.ErrNotFound)
	}
	if _, ok := tx.state.tombstones[betID]; ok {
		return fmt.Errorf("bet %d already tombstoned: %w", betID, model.ErrNotFound)
	}

	tx.state.tombstones[betID] = struct{}{}

	return nil
}

func (tx *memTx) TombstoneTenantBets(_ context.Context, tenant uint64) (int64, error) {
	var n int64

	for id, row := range tx.state.bets {
		if row.info.Tenant != tenant {
			continue
		}
		if _, ok := tx.state.tombstones[id]; ok {
			continue
		}

		tx.state.tombstones[id] = struct{}{}
		n++
	}

	return n, nil
}

func (tx *memTx) collectWagers(keep func(model.Wager) bool) []model.Wager {
	var out []model.Wager

	for _, w := range tx.state.wagers {
		if keep(w) {
			out = append(out, w)
		}
	}

	slices.SortFunc(out, func(a, b model.Wager) int {
		return cmp.Or(
			cmp.Compare(a.BetID, b.BetID),
			cmp.Compare(a.Outcome, b.Outcome),
			cmp.Compare(a.User, b.User),
		)
	})

	return out
}
