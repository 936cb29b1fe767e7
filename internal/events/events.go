// Package events publishes ledger changes after their transaction commits.
// Publishing never affects the ledger: a failed publish is logged and
// counted, the committed state stands.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
)

type Type string

const (
	AccountCreated Type = "account.created"
	AccountDelta   Type = "account.delta"
	TenantReset    Type = "tenant.reset"
	TenantIncome   Type = "tenant.income"
	BetCreated     Type = "bet.created"
	BetStaked      Type = "bet.staked"
	BetLocked      Type = "bet.locked"
	BetResolved    Type = "bet.resolved"
	BetAborted     Type = "bet.aborted"
)

// Event describes one committed ledger transaction.
type Event struct {
	ID      uuid.UUID             `json:"id"`
	Type    Type                  `json:"type"`
	Tenant  uint64                `json:"tenantId"`
	BetID   *uint64               `json:"betId,omitempty"`
	Updates []model.AccountUpdate `json:"updates,omitempty"`
	At      time.Time             `json:"at"`
}

func New(typ Type, tenant uint64, updates []model.AccountUpdate) Event {
	return Event{
		ID:      uuid.New(),
		Type:    typ,
		Tenant:  tenant,
		Updates: updates,
		At:      time.Now().UTC(),
	}
}

// ForBet returns a copy of e tied to betID.
func (e Event) ForBet(betID uint64) Event {
	e.BetID = &betID
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi hands each event to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error

	for _, p := range m {
		err := p.Publish(ctx, e)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Emit publishes e on p, logging and counting the outcome. It never fails.
func Emit(ctx context.Context, p Publisher, e Event) {
	err := p.Publish(ctx, e)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
		slog.WarnContext(ctx, "publish ledger event",
			"event_id", e.ID, "type", e.Type, "tenant", e.Tenant, "error", err)

		return
	}

	metrics.EventsPublished.WithLabelValues(string(e.Type), "ok").Inc()
}
