package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBetLocked            = errors.New("bet is locked")
	ErrAlreadyExists        = errors.New("already exists")
	ErrMultipleOutcomeStake = errors.New("user already staked on another outcome of this bet")
	ErrParse                = errors.New("parse error")
	ErrInvalidBet           = errors.New("invalid bet")
	ErrStore                = errors.New("store error")
)

// StoreError wraps a failure reported by the ledger store.
// errors.Is(err, ErrStore) is true for every StoreError.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// WrapStore returns nil for a nil err, otherwise a *StoreError for op.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StoreError{Op: op, Err: err}
}
