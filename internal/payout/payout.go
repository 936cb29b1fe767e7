// Package payout splits a prize pool among winners in proportion to their
// stakes using the largest remainder method.
package payout

import (
	"cmp"
	"errors"
	"math/bits"
	"slices"
)

var ErrStakeOverflow = errors.New("payout: total stake overflows uint64")

// Distribute splits pool among the winners whose stakes are given.
//
// Each winner first gets floor(pool*stake/total). The units left over are
// handed out one at a time to the winners with the largest fractional
// remainders; equal remainders go to the lower index first. The result has
// the same length and order as stakes and sums exactly to pool, unless the
// total stake is 0, in which case every payout is 0 and the pool is not
// distributed.
func Distribute(pool uint64, stakes []uint64) ([]uint64, error) {
	payouts := make([]uint64, len(stakes))

	var total uint64
	for _, s := range stakes {
		var carry uint64

		total, carry = bits.Add64(total, s, 0)
		if carry != 0 {
			return nil, ErrStakeOverflow
		}
	}

	if total == 0 {
		return payouts, nil
	}

	// remainders[i] is (pool*stakes[i]) mod total; comparing those is the
	// same as comparing the fractional parts, the denominator is shared.
	remainders := make([]uint64, len(stakes))

	var assigned uint64
	for i, s := range stakes {
		hi, lo := bits.Mul64(pool, s)
		// the quotient is at most pool, so hi < total and Div64 cannot panic
		payouts[i], remainders[i] = bits.Div64(hi, lo, total)
		assigned += payouts[i]
	}

	leftover := pool - assigned
	if leftover == 0 {
		return payouts, nil
	}

	order := make([]int, len(stakes))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(remainders[b], remainders[a])
	})

	// leftover < len(stakes): every winner lost less than one unit to flooring.
	for _, i := range order[:leftover] {
		payouts[i]++
	}

	return payouts, nil
}
