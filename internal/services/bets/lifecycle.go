package bets

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/bits"
	"slices"

	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/payout"
	"github.com/fastprodman/wagerledger/internal/store"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	BetID   uint64 `json:"betId"`
	Winning uint32 `json:"winningOutcome"`
	Pool    uint64 `json:"pool"`
	// Forfeited is the pool left unclaimed because nobody staked on the
	// winning outcome. It is not credited anywhere.
	Forfeited uint64                `json:"forfeited"`
	Updates   []model.AccountUpdate `json:"updates"`
}

// Lock closes a bet to new stakes. Locking a locked bet is a no-op.
func (e *Engine) Lock(ctx context.Context, betID uint64) error {
	var (
		tenant  uint64
		changed bool
	)

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		info, err := liveBet(ctx, tx, betID, store.LockExclusive)
		if err != nil {
			return err
		}

		tenant = info.Tenant

		if !info.Open {
			return nil
		}

		changed = true

		return tx.SetOpen(ctx, betID, false)
	})
	if err != nil {
		metrics.ObserveError("lock", err)
		return fmt.Errorf("lock bet %d: %w", betID, err)
	}

	if changed {
		e.accounts.Committed(ctx, events.New(events.BetLocked, tenant, nil).ForBet(betID))
	}

	return nil
}

// Abort refunds every wager of a bet and tombstones it.
func (e *Engine) Abort(ctx context.Context, betID uint64) ([]model.AccountUpdate, error) {
	var (
		tenant   uint64
		updates  []model.AccountUpdate
		refunded uint64
	)

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		info, err := e.close(ctx, tx, betID)
		if err != nil {
			return err
		}

		tenant = info.Tenant

		bet, err := snapshot(ctx, tx, info)
		if err != nil {
			return err
		}

		// Legacy data may hold one user on several outcomes: refund per user.
		refunds := make(map[uint64]uint64)
		for _, o := range bet.Outcomes {
			for _, w := range o.Wagers {
				refunds[w.User], err = checkedAdd(refunds[w.User], w.Amount)
				if err != nil {
					return err
				}
			}
		}

		for _, user := range slices.Sorted(maps.Keys(refunds)) {
			up, err := e.credit(ctx, tx, tenant, user, refunds[user])
			if err != nil {
				return fmt.Errorf("refund user %d: %w", user, err)
			}

			refunded += refunds[user]
			updates = append(updates, up)
		}

		return tx.Tombstone(ctx, betID)
	})
	if err != nil {
		metrics.ObserveError("abort", err)
		return nil, fmt.Errorf("abort bet %d: %w", betID, err)
	}

	metrics.AbortsTotal.Inc()
	metrics.RefundedCoins.Add(float64(refunded))
	slog.InfoContext(ctx, "bet aborted", "bet", betID, "tenant", tenant,
		"refunded", refunded, "accounts", len(updates))

	e.accounts.Committed(ctx, events.New(events.BetAborted, tenant, updates).ForBet(betID))

	return updates, nil
}

// Resolve pays the whole pool to the stakers of the winning outcome in
// proportion to their stakes, then tombstones the bet. Losing stakes are
// not refunded.
func (e *Engine) Resolve(ctx context.Context, betID uint64, winning uint32) (Resolution, error) {
	res := Resolution{BetID: betID, Winning: winning}

	var tenant uint64

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		info, err := e.close(ctx, tx, betID)
		if err != nil {
			return err
		}

		tenant = info.Tenant

		bet, err := snapshot(ctx, tx, info)
		if err != nil {
			return err
		}

		if !hasOutcome(bet.Outcomes, winning) {
			return fmt.Errorf("winning outcome %d: %w", winning, model.ErrNotFound)
		}

		var winners []model.Wager

		for _, o := range bet.Outcomes {
			for _, w := range o.Wagers {
				res.Pool, err = checkedAdd(res.Pool, w.Amount)
				if err != nil {
					return err
				}
			}

			if o.Index == winning {
				winners = o.Wagers
			}
		}

		stakes := make([]uint64, len(winners))
		for i, w := range winners {
			stakes[i] = w.Amount
		}

		payouts, err := payout.Distribute(res.Pool, stakes)
		if err != nil {
			return fmt.Errorf("distribute pool: %w: %w", err, model.ErrParse)
		}

		var paid uint64

		for i, w := range winners {
			if payouts[i] == 0 {
				continue
			}

			up, err := e.credit(ctx, tx, tenant, w.User, payouts[i])
			if err != nil {
				return fmt.Errorf("pay user %d: %w", w.User, err)
			}

			paid += payouts[i]
			res.Updates = append(res.Updates, up)
		}

		res.Forfeited = res.Pool - paid

		return tx.Tombstone(ctx, betID)
	})
	if err != nil {
		metrics.ObserveError("resolve", err)
		return Resolution{}, fmt.Errorf("resolve bet %d: %w", betID, err)
	}

	metrics.ResolutionsTotal.Inc()
	metrics.PaidOutCoins.Add(float64(res.Pool - res.Forfeited))
	metrics.ForfeitedCoins.Add(float64(res.Forfeited))
	slog.InfoContext(ctx, "bet resolved", "bet", betID, "tenant", tenant, "winning", winning,
		"pool", res.Pool, "winners", len(res.Updates), "forfeited", res.Forfeited)

	e.accounts.Committed(ctx, events.New(events.BetResolved, tenant, res.Updates).ForBet(betID))

	return res, nil
}

// close takes the exclusive bet lock for a terminal transition and closes
// the bet if it is still open.
func (e *Engine) close(ctx context.Context, tx store.Tx, betID uint64) (model.BetInfo, error) {
	info, err := liveBet(ctx, tx, betID, store.LockExclusive)
	if err != nil {
		return model.BetInfo{}, err
	}

	if info.Open {
		err = tx.SetOpen(ctx, betID, false)
		if err != nil {
			return model.BetInfo{}, fmt.Errorf("close bet: %w", err)
		}

		info.Open = false
	}

	return info, nil
}

func (e *Engine) credit(ctx context.Context, tx store.Tx, tenant, user, amount uint64) (model.AccountUpdate, error) {
	if amount > math.MaxInt64 {
		return model.AccountUpdate{}, fmt.Errorf("credit %d exceeds int64: %w", amount, model.ErrParse)
	}

	return e.accounts.ApplyDeltaTx(ctx, tx, tenant, user, int64(amount))
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("sum wagers: %w: %w", payout.ErrStakeOverflow, model.ErrParse)
	}

	return sum, nil
}
