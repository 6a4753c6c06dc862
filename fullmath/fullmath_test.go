// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fullmath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d *uint256.Int
		want    *uint256.Int
		err     error
	}{
		{"exact", u("6"), u("7"), u("2"), u("21"), nil},
		{"floors", u("7"), u("7"), u("2"), u("24"), nil},
		{"q96 passthrough", u("79228162514264337593543950336"), u("5"), Q96, u("5"), nil},
		{
			"full 512-bit intermediate",
			new(uint256.Int).Not(new(uint256.Int)),
			new(uint256.Int).Not(new(uint256.Int)),
			new(uint256.Int).Not(new(uint256.Int)),
			new(uint256.Int).Not(new(uint256.Int)),
			nil,
		},
		{"zero denominator", u("1"), u("1"), u("0"), nil, ErrDivisionByZero},
		{"overflow", new(uint256.Int).Not(new(uint256.Int)), u("2"), u("1"), nil, ErrMulDivOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.d)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestMulDivRoundingUp(t *testing.T) {
	got, err := MulDivRoundingUp(u("7"), u("7"), u("2"))
	require.NoError(t, err)
	require.Equal(t, "25", got.String())

	// exact division must not round
	got, err = MulDivRoundingUp(u("6"), u("7"), u("2"))
	require.NoError(t, err)
	require.Equal(t, "21", got.String())

	// ceil that would push past 2^256-1 fails
	max := new(uint256.Int).Not(new(uint256.Int))
	_, err = MulDivRoundingUp(max, max, new(uint256.Int).SubUint64(max, 1))
	require.ErrorIs(t, err, ErrMulDivOverflow)
}

func TestDivRoundingUp(t *testing.T) {
	got, err := DivRoundingUp(u("10"), u("3"))
	require.NoError(t, err)
	require.Equal(t, "4", got.String())

	got, err = DivRoundingUp(u("9"), u("3"))
	require.NoError(t, err)
	require.Equal(t, "3", got.String())

	_, err = DivRoundingUp(u("1"), u("0"))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestAddDeltaU128(t *testing.T) {
	x := u("1000")

	got, err := AddDeltaU128(x, big.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, "1500", got.String())

	got, err = AddDeltaU128(x, big.NewInt(-1000))
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = AddDeltaU128(x, big.NewInt(-1001))
	require.ErrorIs(t, err, ErrLiquiditySub)

	_, err = AddDeltaU128(MaxUint128, big.NewInt(1))
	require.ErrorIs(t, err, ErrLiquidityAdd)

	got, err = AddDeltaU128(new(uint256.Int).SubUint64(MaxUint128, 1), big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, MaxUint128.String(), got.String())
}

func TestCheckInt128(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	require.True(t, CheckInt128(max))
	require.True(t, CheckInt128(min))
	require.True(t, CheckInt128(big.NewInt(0)))
	require.False(t, CheckInt128(new(big.Int).Add(max, big.NewInt(1))))
	require.False(t, CheckInt128(new(big.Int).Sub(min, big.NewInt(1))))
}
