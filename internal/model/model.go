// Package model holds the ledger entities shared by the store, the services
// and the API: accounts, bets, outcomes and wagers.
package model

// Account is a user's coin balance on one tenant.
type Account struct {
	Tenant  uint64 `json:"tenantId"`
	User    uint64 `json:"userId"`
	Balance uint64 `json:"balance"`
}

// AccountUpdate reports a committed balance change.
type AccountUpdate struct {
	Tenant  uint64 `json:"tenantId"`
	User    uint64 `json:"userId"`
	Diff    int64  `json:"diff"`
	Balance uint64 `json:"balance"`
}

// AccountStatus is an account together with the coins it has escrowed in
// live bets.
type AccountStatus struct {
	User    uint64 `json:"userId"`
	Balance uint64 `json:"balance"`
	InBet   uint64 `json:"inBet"`
}

// BetInfo is the bet row without its outcomes.
type BetInfo struct {
	ID          uint64  `json:"betId"`
	Tenant      uint64  `json:"tenantId"`
	Description string  `json:"description"`
	Author      *uint64 `json:"authorId,omitempty"`
	Open        bool    `json:"isOpen"`
	Tombstoned  bool    `json:"-"`
}

// Bet is a full snapshot: the bet row plus every outcome and its wagers.
type Bet struct {
	BetInfo
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome is one of the mutually exclusive options of a bet.
type Outcome struct {
	Index       uint32  `json:"index"`
	Description string  `json:"description"`
	Wagers      []Wager `json:"wagers"`
}

// Total is the sum of all wagers placed on the outcome.
func (o Outcome) Total() uint64 {
	var sum uint64
	for _, w := range o.Wagers {
		sum += w.Amount
	}

	return sum
}

// Wager is a user's accumulated stake on one outcome of one bet.
type Wager struct {
	BetID   uint64 `json:"betId"`
	Outcome uint32 `json:"outcome"`
	Tenant  uint64 `json:"tenantId"`
	User    uint64 `json:"userId"`
	Amount  uint64 `json:"amount"`
}

// Pool is the sum of every wager across all outcomes of the bet.
func (b Bet) Pool() uint64 {
	var sum uint64
	for _, o := range b.Outcomes {
		sum += o.Total()
	}

	return sum
}
