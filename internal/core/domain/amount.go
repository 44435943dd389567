package domain

import (
	"math"
	"strconv"
)

// Amount is a requested quantity for burn, transfer, and redeem operations:
// either an exact value or the caller's entire balance. The wire-level
// sentinel (the maximum representable uint64) maps to All at the parsing
// boundary so internal code never compares against a magic constant.
type Amount struct {
	value uint64
	all   bool
}

// Exact requests exactly n units.
func Exact(n uint64) Amount { return Amount{value: n} }

// All requests the caller's full balance at execution time.
func All() Amount { return Amount{all: true} }

// IsAll reports whether the amount requests the full balance.
func (a Amount) IsAll() bool { return a.all }

// Value returns the exact value; zero when IsAll.
func (a Amount) Value() uint64 { return a.value }

// Resolve substitutes the given balance when the amount is All.
func (a Amount) Resolve(balance uint64) uint64 {
	if a.all {
		return balance
	}
	return a.value
}

// ParseAmount parses a decimal string into an Amount. The maximum uint64
// value is the documented "entire balance" sentinel.
func ParseAmount(s string) (Amount, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Amount{}, err
	}
	if n == math.MaxUint64 {
		return All(), nil
	}
	return Exact(n), nil
}

// FormatAmount renders a uint64 amount as the decimal string used on the
// wire (uint64 exceeds the safe integer range of JSON consumers).
func FormatAmount(n uint64) string {
	return strconv.FormatUint(n, 10)
}
