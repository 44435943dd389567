package domain

import (
	"errors"
	"math"
	"math/big"
)

// RatePrecision is the fixed-point scale shared by every rate in the system:
// a rate of 1.0 per second is stored as 1e18.
const RatePrecision uint64 = 1_000_000_000_000_000_000

// ErrBalanceRange signals that a derived balance no longer fits in uint64.
var ErrBalanceRange = errors.New("derived balance exceeds representable range")

var (
	bigPrecision = new(big.Int).SetUint64(RatePrecision)
	bigMaxUint64 = new(big.Int).SetUint64(math.MaxUint64)
)

// AccruedMultiplier returns RatePrecision + rate*elapsedSeconds.
// Accrual is linear, not compounding. The product exceeds 64 bits for
// realistic rate/time combinations, so the multiplier is carried at
// arbitrary width until DeriveBalance divides the scale back out.
func AccruedMultiplier(rate uint64, elapsedSeconds int64) *big.Int {
	if elapsedSeconds <= 0 || rate == 0 {
		return new(big.Int).SetUint64(RatePrecision)
	}
	m := new(big.Int).SetUint64(rate)
	m.Mul(m, big.NewInt(elapsedSeconds))
	return m.Add(m, bigPrecision)
}

// DeriveBalance returns floor(principal * multiplier / RatePrecision).
// Division truncates toward zero so a holder is never over-credited.
func DeriveBalance(principal uint64, multiplier *big.Int) (uint64, error) {
	b := new(big.Int).SetUint64(principal)
	b.Mul(b, multiplier)
	b.Quo(b, bigPrecision)
	if b.Cmp(bigMaxUint64) > 0 {
		return 0, ErrBalanceRange
	}
	return b.Uint64(), nil
}
