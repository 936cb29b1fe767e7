// Package scheduler runs periodic ledger jobs on cron schedules with a
// seconds field, e.g. "0 0 9 * * *" for 09:00 every day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/fastprodman/wagerledger/internal/model"
)

// IncomeService is the part of the account service the income job needs.
type IncomeService interface {
	Tenants(ctx context.Context) ([]uint64, error)
	ApplyIncome(ctx context.Context, tenant, amount uint64) ([]model.AccountUpdate, error)
}

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates a stopped scheduler. Jobs receive ctx.
func New(ctx context.Context) *Scheduler {
	logger := slogLogger{}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx: ctx,
	}
}

// AddIncome schedules a flat credit of amount to every account of every tenant.
func (s *Scheduler) AddIncome(spec string, svc IncomeService, amount uint64) error {
	_, err := s.cron.AddFunc(spec, func() {
		err := RunIncome(s.ctx, svc, amount)
		if err != nil {
			slog.ErrorContext(s.ctx, "income job failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule income %q: %w", spec, err)
	}

	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// RunIncome credits amount on every tenant. Each tenant is its own
// transaction; a failing tenant does not stop the others.
func RunIncome(ctx context.Context, svc IncomeService, amount uint64) error {
	tenants, err := svc.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var (
		errs     []error
		credited int
	)

	for _, tenant := range tenants {
		updates, err := svc.ApplyIncome(ctx, tenant, amount)
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %d: %w", tenant, err))
			continue
		}

		credited += len(updates)
	}

	slog.InfoContext(ctx, "income distributed",
		"amount", amount, "tenants", len(tenants), "accounts", credited, "failed", len(errs))

	return errors.Join(errs...)
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
