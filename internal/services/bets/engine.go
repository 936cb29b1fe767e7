// Package bets is the bet engine. It owns the bet lifecycle
//
//	Open -> Locked -> {Resolved, Aborted} -> Tombstoned
//
// and runs every operation as one store transaction. Resolve and abort
// accept an Open bet and close it in the same transaction.
package bets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

// Accounts is the part of the account service the engine needs.
type Accounts interface {
	ApplyDeltaTx(ctx context.Context, tx store.Tx, tenant, user uint64, delta int64) (model.AccountUpdate, error)
	Committed(ctx context.Context, e events.Event)
}

type Engine struct {
	store    store.Store
	accounts Accounts
}

func New(st store.Store, accounts Accounts) *Engine {
	return &Engine{store: st, accounts: accounts}
}

// NewBet describes a bet to create.
type NewBet struct {
	ID          uint64
	Tenant      uint64
	Description string
	Author      *uint64
	Outcomes    []string
}

// PurgeTombstoned physically removes tombstoned bets. Call once before
// serving requests.
func (e *Engine) PurgeTombstoned(ctx context.Context) (int64, error) {
	n, err := e.store.PurgeTombstoned(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge tombstoned bets: %w", err)
	}

	metrics.PurgedBets.Add(float64(n))
	slog.InfoContext(ctx, "tombstoned bets purged", "count", n)

	return n, nil
}

// Create inserts an open bet with its outcomes. A bet needs a description
// and at least two described outcomes.
func (e *Engine) Create(ctx context.Context, nb NewBet) (model.Bet, error) {
	err := validate(nb)
	if err != nil {
		return model.Bet{}, fmt.Errorf("create bet: %w", err)
	}

	bet := model.Bet{
		BetInfo: model.BetInfo{
			ID:          nb.ID,
			Tenant:      nb.Tenant,
			Description: nb.Description,
			Author:      nb.Author,
			Open:        true,
		},
		Outcomes: make([]model.Outcome, 0, len(nb.Outcomes)),
	}

	err = e.store.InTx(ctx, func(tx store.Tx) error {
		err := tx.InsertBet(ctx, bet.BetInfo)
		if err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}

		for i, desc := range nb.Outcomes {
			err = tx.InsertOutcome(ctx, nb.ID, uint32(i), desc)
			if err != nil {
				return fmt.Errorf("insert outcome %d: %w", i, err)
			}

			bet.Outcomes = append(bet.Outcomes, model.Outcome{Index: uint32(i), Description: desc, Wagers: []model.Wager{}})
		}

		return nil
	})
	if err != nil {
		metrics.ObserveError("create_bet", err)
		return model.Bet{}, fmt.Errorf("create bet %d: %w", nb.ID, err)
	}

	e.accounts.Committed(ctx, events.New(events.BetCreated, nb.Tenant, nil).ForBet(nb.ID))

	return bet, nil
}

func validate(nb NewBet) error {
	if strings.TrimSpace(nb.Description) == "" {
		return fmt.Errorf("empty description: %w", model.ErrInvalidBet)
	}

	if len(nb.Outcomes) < 2 {
		return fmt.Errorf("%d outcomes, need at least 2: %w", len(nb.Outcomes), model.ErrInvalidBet)
	}

	for i, o := range nb.Outcomes {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("outcome %d has no description: %w", i, model.ErrInvalidBet)
		}
	}

	return nil
}

// Outcomes lists the outcome slots of a live bet, without wagers.
func (e *Engine) Outcomes(ctx context.Context, betID uint64) ([]model.Outcome, error) {
	var outcomes []model.Outcome

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		_, err := liveBet(ctx, tx, betID, store.LockNone)
		if err != nil {
			return err
		}

		outcomes, err = tx.Outcomes(ctx, betID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list outcomes of bet %d: %w", betID, err)
	}

	return outcomes, nil
}

// Status returns the full snapshot of a live bet.
func (e *Engine) Status(ctx context.Context, betID uint64) (model.Bet, error) {
	var bet model.Bet

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		info, err := liveBet(ctx, tx, betID, store.LockNone)
		if err != nil {
			return err
		}

		bet, err = snapshot(ctx, tx, info)

		return err
	})
	if err != nil {
		return model.Bet{}, fmt.Errorf("bet %d status: %w", betID, err)
	}

	return bet, nil
}

// liveBet loads a bet and reports a tombstoned one as not found.
func liveBet(ctx context.Context, tx store.Tx, betID uint64, mode store.LockMode) (model.BetInfo, error) {
	info, err := tx.Bet(ctx, betID, mode)
	if err != nil {
		return model.BetInfo{}, fmt.Errorf("load bet: %w", err)
	}

	if info.Tombstoned {
		return model.BetInfo{}, fmt.Errorf("bet %d is deleted: %w", betID, model.ErrNotFound)
	}

	return info, nil
}

func snapshot(ctx context.Context, tx store.Tx, info model.BetInfo) (model.Bet, error) {
	outcomes, err := tx.Outcomes(ctx, info.ID)
	if err != nil {
		return model.Bet{}, fmt.Errorf("load outcomes: %w", err)
	}

	for i := range outcomes {
		wagers, err := tx.Wagers(ctx, info.ID, outcomes[i].Index)
		if err != nil {
			return model.Bet{}, fmt.Errorf("load wagers of outcome %d: %w", outcomes[i].Index, err)
		}

		if wagers == nil {
			wagers = []model.Wager{}
		}

		outcomes[i].Wagers = wagers
	}

	return model.Bet{BetInfo: info, Outcomes: outcomes}, nil
}

func hasOutcome(outcomes []model.Outcome, index uint32) bool {
	for _, o := range outcomes {
		if o.Index == index {
			return true
		}
	}

	return false
}
