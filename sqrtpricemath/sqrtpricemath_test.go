// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqrtpricemath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/clamm/tickmath"
)

func ratio(t *testing.T, tick int32) *uint256.Int {
	t.Helper()
	r, err := tickmath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return r
}

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestAmount0Delta(t *testing.T) {
	liquidity := u("1000000000000000000")

	// 1e18 liquidity between tick 0 and tick 60
	up, err := Amount0Delta(ratio(t, 0), ratio(t, 60), liquidity, true)
	require.NoError(t, err)
	require.Equal(t, "2995354955910781", up.String())

	down, err := Amount0Delta(ratio(t, 0), ratio(t, 60), liquidity, false)
	require.NoError(t, err)
	require.Equal(t, "2995354955910780", down.String())

	// argument order must not matter
	swapped, err := Amount0Delta(ratio(t, 60), ratio(t, 0), liquidity, true)
	require.NoError(t, err)
	require.Equal(t, up.String(), swapped.String())

	// zero width interval
	zero, err := Amount0Delta(ratio(t, 0), ratio(t, 0), liquidity, true)
	require.NoError(t, err)
	require.True(t, zero.IsZero())

	_, err = Amount0Delta(uint256.NewInt(0), ratio(t, 0), liquidity, true)
	require.ErrorIs(t, err, ErrPriceZero)
}

func TestAmount1Delta(t *testing.T) {
	liquidity := u("1000000000000000000")

	up, err := Amount1Delta(ratio(t, -60), ratio(t, 0), liquidity, true)
	require.NoError(t, err)
	require.Equal(t, "2995354955910781", up.String())

	down, err := Amount1Delta(ratio(t, -60), ratio(t, 0), liquidity, false)
	require.NoError(t, err)
	require.Equal(t, "2995354955910780", down.String())
}

func TestAmountDeltaSigned(t *testing.T) {
	add := big.NewInt(1_000_000_000_000_000_000)
	remove := new(big.Int).Neg(add)

	a0Add, err := Amount0DeltaSigned(ratio(t, 0), ratio(t, 60), add)
	require.NoError(t, err)
	require.Equal(t, "2995354955910781", a0Add.String())

	a0Remove, err := Amount0DeltaSigned(ratio(t, 0), ratio(t, 60), remove)
	require.NoError(t, err)
	require.Equal(t, "-2995354955910780", a0Remove.String())

	a1Add, err := Amount1DeltaSigned(ratio(t, -60), ratio(t, 0), add)
	require.NoError(t, err)
	require.Equal(t, "2995354955910781", a1Add.String())

	a1Remove, err := Amount1DeltaSigned(ratio(t, -60), ratio(t, 0), remove)
	require.NoError(t, err)
	require.Equal(t, "-2995354955910780", a1Remove.String())
}

func TestNextSqrtPriceFromInput(t *testing.T) {
	p0 := ratio(t, 0)
	liquidity := u("1000000000000000000")

	// token0 in moves the price down
	next, err := NextSqrtPriceFromInput(p0, liquidity, u("997000000000000"), true)
	require.NoError(t, err)
	require.Equal(t, "79149250711305166342700278159", next.String())

	// token1 in moves the price up
	next, err = NextSqrtPriceFromInput(p0, u("2000000000000000000"), u("997000000000000"), false)
	require.NoError(t, err)
	require.Equal(t, "79267657753277698365834331995", next.String())

	// zero input keeps the price
	next, err = NextSqrtPriceFromInput(p0, liquidity, uint256.NewInt(0), true)
	require.NoError(t, err)
	require.Equal(t, p0.String(), next.String())

	_, err = NextSqrtPriceFromInput(uint256.NewInt(0), liquidity, u("1"), true)
	require.ErrorIs(t, err, ErrPriceZero)
	_, err = NextSqrtPriceFromInput(p0, uint256.NewInt(0), u("1"), true)
	require.ErrorIs(t, err, ErrLiquidityZero)
}

func TestNextSqrtPriceFromOutput(t *testing.T) {
	p0 := ratio(t, 0)
	liquidity := u("1000000000000000000")

	// paying out all of the interval's token1 reserves and more must fail
	_, err := NextSqrtPriceFromOutput(p0, liquidity, u("79228162514264337593543950336"), true)
	require.ErrorIs(t, err, ErrOutputTooBig)

	// small token1 output moves price down but stays positive
	next, err := NextSqrtPriceFromOutput(p0, liquidity, u("1000000"), true)
	require.NoError(t, err)
	require.True(t, next.Lt(p0))

	// token0 output moves price up
	next, err = NextSqrtPriceFromOutput(p0, liquidity, u("1000000"), false)
	require.NoError(t, err)
	require.True(t, next.Gt(p0))
}

func TestNextSqrtPriceRoundTripConsistency(t *testing.T) {
	// consuming the rounded-up token0 span of [-60, 0] moves the price down
	// and charges exactly the promised amount when recomputed
	p0 := ratio(t, 0)
	pl := ratio(t, -60)
	liquidity := u("1000000000000000000")

	in, err := Amount0Delta(pl, p0, liquidity, true)
	require.NoError(t, err)
	next, err := NextSqrtPriceFromInput(p0, liquidity, in, true)
	require.NoError(t, err)
	require.True(t, !next.Gt(p0))

	// the amount recharged from the solved price never exceeds the input
	recomputed, err := Amount0Delta(next, p0, liquidity, true)
	require.NoError(t, err)
	require.Equal(t, in.String(), recomputed.String())
}
