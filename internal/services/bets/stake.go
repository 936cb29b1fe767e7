package bets

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/fastprodman/wagerledger/internal/amount"
	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

type StakeRequest struct {
	BetID   uint64
	Outcome uint32
	Tenant  uint64
	User    uint64
	Amount  amount.Spec
}

type StakeResult struct {
	// Staked is the amount escrowed by this call.
	Staked uint64 `json:"staked"`
	// Wager is the user's accumulated stake on the outcome.
	Wager  uint64              `json:"wager"`
	Update model.AccountUpdate `json:"update"`
	Bet    model.Bet           `json:"bet"`
}

// Stake escrows coins from the user's account into a wager. Checks run in
// order: bet or outcome unknown (ErrNotFound), bet not open (ErrBetLocked),
// account unknown (ErrNotFound), user already on another outcome
// (ErrMultipleOutcomeStake), amount not covered by the balance
// (ErrInsufficientFunds).
func (e *Engine) Stake(ctx context.Context, req StakeRequest) (StakeResult, error) {
	var res StakeResult

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		// Shared lock: concurrent stakes proceed, lock/resolve/abort wait.
		info, err := liveBet(ctx, tx, req.BetID, store.LockShared)
		if err != nil {
			return err
		}

		if info.Tenant != req.Tenant {
			return fmt.Errorf("bet %d on tenant %d: %w", req.BetID, req.Tenant, model.ErrNotFound)
		}

		outcomes, err := tx.Outcomes(ctx, req.BetID)
		if err != nil {
			return fmt.Errorf("load outcomes: %w", err)
		}

		if !hasOutcome(outcomes, req.Outcome) {
			return fmt.Errorf("outcome %d of bet %d: %w", req.Outcome, req.BetID, model.ErrNotFound)
		}

		if !info.Open {
			return fmt.Errorf("bet %d: %w", req.BetID, model.ErrBetLocked)
		}

		// Locks the account: stakes of one user run one after another, so the
		// held outcomes below include every stake committed before this one.
		balance, err := tx.Balance(ctx, req.Tenant, req.User)
		if err != nil {
			return fmt.Errorf("load balance: %w", err)
		}

		held, err := tx.UserWagers(ctx, req.BetID, req.User)
		if err != nil {
			return fmt.Errorf("load user wagers: %w", err)
		}

		for _, w := range held {
			if w.Outcome != req.Outcome {
				return fmt.Errorf("user %d holds outcome %d: %w", req.User, w.Outcome, model.ErrMultipleOutcomeStake)
			}
		}

		staked, err := req.Amount.Resolve(balance)
		if err != nil {
			return fmt.Errorf("resolve %s of %d: %w", req.Amount, balance, err)
		}

		if staked > math.MaxInt64 {
			return fmt.Errorf("stake %d out of range: %w", staked, model.ErrParse)
		}

		res.Update, err = e.accounts.ApplyDeltaTx(ctx, tx, req.Tenant, req.User, -int64(staked))
		if err != nil {
			return fmt.Errorf("debit stake: %w", err)
		}

		res.Wager, err = tx.AddWager(ctx, model.Wager{
			BetID:   req.BetID,
			Outcome: req.Outcome,
			Tenant:  req.Tenant,
			User:    req.User,
			Amount:  staked,
		})
		if err != nil {
			return fmt.Errorf("record wager: %w", err)
		}

		res.Staked = staked

		res.Bet, err = snapshot(ctx, tx, info)

		return err
	})
	if err != nil {
		metrics.ObserveError("stake", err)
		return StakeResult{}, fmt.Errorf("stake on bet %d: %w", req.BetID, err)
	}

	metrics.StakesTotal.Inc()
	metrics.StakedCoins.Add(float64(res.Staked))
	slog.DebugContext(ctx, "stake placed",
		"bet", req.BetID, "outcome", req.Outcome, "tenant", req.Tenant, "user", req.User,
		"amount", res.Staked, "wager", res.Wager, "balance", res.Update.Balance)

	e.accounts.Committed(ctx,
		events.New(events.BetStaked, req.Tenant, []model.AccountUpdate{res.Update}).ForBet(req.BetID))

	return res, nil
}
