package domain

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const halfRate = RatePrecision / 2 // 0.5/second

func TestAccruedMultiplier(t *testing.T) {
	tests := []struct {
		name    string
		rate    uint64
		elapsed int64
		want    *big.Int
	}{
		{"zero elapsed", halfRate, 0, new(big.Int).SetUint64(RatePrecision)},
		{"negative elapsed clamps", halfRate, -10, new(big.Int).SetUint64(RatePrecision)},
		{"zero rate", 0, 1 << 40, new(big.Int).SetUint64(RatePrecision)},
		{"half rate two seconds", halfRate, 2, new(big.Int).SetUint64(2 * RatePrecision)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccruedMultiplier(tt.rate, tt.elapsed)
			assert.Zero(t, tt.want.Cmp(got))
		})
	}
}

func TestAccruedMultiplier_WideIntermediate(t *testing.T) {
	// rate * elapsed far beyond uint64: 1.0/s over ~31.7 years.
	got := AccruedMultiplier(RatePrecision, 1_000_000_000)

	want := new(big.Int).SetUint64(RatePrecision)
	want.Mul(want, big.NewInt(1_000_000_000))
	want.Add(want, new(big.Int).SetUint64(RatePrecision))

	assert.Zero(t, want.Cmp(got))
}

func TestDeriveBalance(t *testing.T) {
	tests := []struct {
		name      string
		principal uint64
		rate      uint64
		elapsed   int64
		want      uint64
	}{
		{"identity multiplier", 1234, halfRate, 0, 1234},
		{"documented scenario", 1000, halfRate, 2, 2000},
		{"floor rounding", 1, halfRate, 1, 1},    // 1.5 truncates to 1
		{"floor rounding small", 3, halfRate, 1, 4}, // 4.5 truncates to 4
		{"zero principal", 0, halfRate, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveBalance(tt.principal, AccruedMultiplier(tt.rate, tt.elapsed))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveBalance_Overflow(t *testing.T) {
	_, err := DeriveBalance(math.MaxUint64, AccruedMultiplier(RatePrecision, 1))
	assert.ErrorIs(t, err, ErrBalanceRange)
}
