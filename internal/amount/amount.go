// Package amount turns a user-supplied stake into the absolute number of
// coins to escrow. A stake is either a flat amount or a fraction of the
// current balance ("25%", "100%" for all in).
package amount

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/wagerledger/internal/model"
)

type Kind uint8

const (
	KindAbsolute Kind = iota
	KindFraction
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Spec is a stake specification. The zero value is an absolute stake of 0.
type Spec struct {
	kind     Kind
	absolute uint64
	fraction decimal.Decimal
}

// Absolute returns a flat stake of n coins.
func Absolute(n uint64) Spec {
	return Spec{kind: KindAbsolute, absolute: n}
}

// Fraction returns a stake of f times the balance; f must lie in [0,1].
func Fraction(f decimal.Decimal) (Spec, error) {
	if f.IsNegative() || f.GreaterThan(one) {
		return Spec{}, fmt.Errorf("%w: fraction %s outside [0,1]", model.ErrParse, f.String())
	}

	return Spec{kind: KindFraction, fraction: f}, nil
}

// AllIn stakes the whole balance.
func AllIn() Spec {
	return Spec{kind: KindFraction, fraction: one}
}

// Parse reads "N" as an absolute stake and "P%" as the fraction P/100.
func Parse(s string) (Spec, error) {
	s = strings.TrimSpace(s)

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		p, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return Spec{}, fmt.Errorf("%w: percentage %q: %v", model.ErrParse, s, err)
		}

		return Fraction(p.Div(hundred))
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: amount %q: %v", model.ErrParse, s, err)
	}

	return Absolute(n), nil
}

func (s Spec) Kind() Kind { return s.kind }

// Resolve returns the number of coins to escrow from balance.
//
// An absolute stake must not exceed the balance. A fractional stake is
// rounded up; if it still comes out as 0 it is rejected. Both fail with
// model.ErrInsufficientFunds, as does an absolute stake of 0.
func (s Spec) Resolve(balance uint64) (uint64, error) {
	switch s.kind {
	case KindAbsolute:
		if s.absolute == 0 || s.absolute > balance {
			return 0, fmt.Errorf("stake %d with balance %d: %w", s.absolute, balance, model.ErrInsufficientFunds)
		}

		return s.absolute, nil

	case KindFraction:
		if s.fraction.IsNegative() || s.fraction.GreaterThan(one) {
			return 0, fmt.Errorf("%w: fraction %s outside [0,1]", model.ErrParse, s.fraction.String())
		}

		b := decimal.NewFromBigInt(new(big.Int).SetUint64(balance), 0)
		value := b.Mul(s.fraction).Ceil().BigInt().Uint64()
		if value == 0 {
			return 0, fmt.Errorf("stake %s of balance %d rounds to 0: %w", s, balance, model.ErrInsufficientFunds)
		}

		return value, nil

	default:
		return 0, fmt.Errorf("%w: unknown stake kind %d", model.ErrParse, s.kind)
	}
}

func (s Spec) String() string {
	if s.kind == KindAbsolute {
		return strconv.FormatUint(s.absolute, 10)
	}
	if s.fraction.Equal(one) {
		return "All in"
	}

	return s.fraction.Mul(hundred).String() + "%"
}

// MarshalText writes the parseable form ("100%" rather than "All in").
func (s Spec) MarshalText() ([]byte, error) {
	if s.kind == KindFraction {
		return []byte(s.fraction.Mul(hundred).String() + "%"), nil
	}

	return []byte(strconv.FormatUint(s.absolute, 10)), nil
}

func (s *Spec) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
