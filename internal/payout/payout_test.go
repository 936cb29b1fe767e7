package payout

import (
	"errors"
	"math"
	"math/big"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestDistribute_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pool   uint64
		stakes []uint64
		want   []uint64
	}{
		{name: "two_winners_leftover_to_larger_remainder", pool: 100, stakes: []uint64{10, 50}, want: []uint64{17, 83}},
		{name: "single_winner_takes_pool", pool: 100, stakes: []uint64{60}, want: []uint64{100}},
		{name: "exact_split", pool: 90, stakes: []uint64{10, 20}, want: []uint64{30, 60}},
		{name: "ties_go_to_lower_index", pool: 10, stakes: []uint64{1, 1, 1}, want: []uint64{4, 3, 3}},
		{name: "two_units_three_ties", pool: 2, stakes: []uint64{5, 5, 5}, want: []uint64{1, 1, 0}},
		{name: "zero_pool", pool: 0, stakes: []uint64{3, 4}, want: []uint64{0, 0}},
		{name: "zero_total_stake_forfeits", pool: 100, stakes: []uint64{0, 0}, want: []uint64{0, 0}},
		{name: "no_winners", pool: 100, stakes: nil, want: []uint64{}},
		{name: "zero_stake_winner_gets_nothing", pool: 7, stakes: []uint64{0, 2}, want: []uint64{0, 7}},
		{name: "remainder_order_not_index_order", pool: 10, stakes: []uint64{1, 2, 4}, want: []uint64{1, 3, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Distribute(tt.pool, tt.stakes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDistribute_LargeValuesDoNotOverflow(t *testing.T) {
	t.Parallel()

	pool := uint64(math.MaxUint64 - 1)
	stakes := []uint64{math.MaxUint64 / 3, math.MaxUint64 / 3}

	got, err := Distribute(pool, stakes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0]+got[1] != pool {
		t.Fatalf("sum mismatch: %d + %d != %d", got[0], got[1], pool)
	}
}

func TestDistribute_TotalStakeOverflow(t *testing.T) {
	t.Parallel()

	_, err := Distribute(10, []uint64{math.MaxUint64, 1})
	if !errors.Is(err, ErrStakeOverflow) {
		t.Fatalf("want ErrStakeOverflow, got %v", err)
	}
}

// Every payout is floor(share) or floor(share)+1, and the payouts add up to
// the pool.
func TestDistribute_Properties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))

	for iter := range 2000 {
		n := 1 + rng.IntN(12)
		pool := rng.Uint64N(1_000_000)
		stakes := make([]uint64, n)
		var total uint64
		for i := range stakes {
			stakes[i] = rng.Uint64N(10_000)
			total += stakes[i]
		}

		got, err := Distribute(pool, stakes)
		if err != nil {
			t.Fatalf("iter %d: %v", iter, err)
		}

		if total == 0 {
			for i, p := range got {
				if p != 0 {
					t.Fatalf("iter %d: zero total stake but payout[%d]=%d", iter, i, p)
				}
			}
			continue
		}

		var sum uint64
		for i, p := range got {
			sum += p
			floor := new(big.Int).Mul(new(big.Int).SetUint64(pool), new(big.Int).SetUint64(stakes[i]))
			floor.Quo(floor, new(big.Int).SetUint64(total))
			f := floor.Uint64()
			if p != f && p != f+1 {
				t.Fatalf("iter %d: payout[%d]=%d not in {%d,%d}", iter, i, p, f, f+1)
			}
		}
		if sum != pool {
			t.Fatalf("iter %d: sum %d != pool %d (stakes %v)", iter, sum, pool, stakes)
		}

		again, _ := Distribute(pool, stakes)
		if !slices.Equal(got, again) {
			t.Fatalf("iter %d: non-deterministic result %v vs %v", iter, got, again)
		}
	}
}
