// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSwapValidation(t *testing.T) {
	env := newTestEnv(t, true)
	cb := &payer{env: env, account: bob}

	_, _, err := env.pool.Swap(bob, bob, true, big.NewInt(0), ratioAt(t, -60), cb, nil)
	require.ErrorIs(t, err, ErrAmountSpecified)

	// limit on the wrong side of the current price
	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1000), ratioAt(t, 60), cb, nil)
	require.ErrorIs(t, err, ErrPriceLimit)
	_, _, err = env.pool.Swap(bob, bob, false, big.NewInt(1000), ratioAt(t, -60), cb, nil)
	require.ErrorIs(t, err, ErrPriceLimit)

	// limit at or beyond the domain bound
	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1000), u("4295128739"), cb, nil)
	require.ErrorIs(t, err, ErrPriceLimit)
}

func TestSwapExactInputSingleTick(t *testing.T) {
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	amount0, amount1, err := env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000", amount0.String())
	require.Equal(t, "-996006981039903", amount1.String())

	slot0 := env.pool.Slot0()
	require.Equal(t, int32(-20), slot0.Tick)
	require.Equal(t, "79149250711305166342700278159", slot0.SqrtPriceX96.String())
	require.Equal(t, "1020847100762815390390123822295304", env.pool.FeeGrowthGlobal0X128().String())
	require.True(t, env.pool.FeeGrowthGlobal1X128().IsZero())
	require.True(t, env.pool.ProtocolFees().Token0.IsZero())

	// liquidity unchanged: no tick crossed
	require.Equal(t, liq.String(), env.pool.Liquidity().String())

	ev, ok := env.sink.Last("Swap")
	require.True(t, ok)
	require.Equal(t, "-996006981039903", ev.(SwapEvent).Amount1.String())
}

func TestSwapExactInputWithProtocolFee(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.pool.SetFeeProtocol(poolOwner, 4, 4))
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)

	// 1/4 of the 3000000000000 fee goes to the protocol
	require.Equal(t, "750000000000", env.pool.ProtocolFees().Token0.String())
	require.Equal(t, "765635325572111542792592866721478", env.pool.FeeGrowthGlobal0X128().String())
}

func TestSwapExactOutput(t *testing.T) {
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	// ask for exactly 5e14 token1 out
	amount0, amount1, err := env.pool.Swap(bob, bob, true, big.NewInt(-500_000_000_000_000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, "-500000000000000", amount1.String())
	require.Equal(t, "501755391236241", amount0.String())
	require.Equal(t, int32(-11), env.pool.Slot0().Tick)
}

func TestSwapCrossesTickAndStopsAtLimit(t *testing.T) {
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	// more input than the range can absorb, limited at tick -120: the swap
	// crosses -60, runs out of liquidity and stops at the limit with the
	// remainder unspent
	amount0, amount1, err := env.pool.Swap(bob, bob, true, big.NewInt(4_000_000_000_000_000), ratioAt(t, -120), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, "3013394245478362", amount0.String())
	require.Equal(t, "-2995354955910780", amount1.String())

	slot0 := env.pool.Slot0()
	require.Equal(t, ratioAt(t, -120).String(), slot0.SqrtPriceX96.String())
	require.Equal(t, int32(-120), slot0.Tick)
	require.True(t, env.pool.Liquidity().IsZero())
	require.Equal(t, "3076214778952248486297495064475479", env.pool.FeeGrowthGlobal0X128().String())

	// the crossed tick's outside accumulator flipped to global - 0
	info, ok := env.pool.Tick(-60)
	require.True(t, ok)
	require.Equal(t, "3076214778952248486297495064475479", info.FeeGrowthOutside0X128.String())
}

func TestSwapAcrossOverlappingPositions(t *testing.T) {
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)
	amount0, amount1, err := env.pool.Mint(bob, bob, 0, 120, liq, &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, "5981737760509663", amount0.String())
	require.True(t, amount1.IsZero())

	// both ranges cover tick 0
	require.Equal(t, "2000000000000000000", env.pool.Liquidity().String())

	// token1 in, price up but still inside both ranges
	swap0, swap1, err := env.pool.Swap(bob, bob, false, big.NewInt(1_000_000_000_000_000), ratioAt(t, 120), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000", swap1.String())
	require.Equal(t, "-996503243133298", swap0.String())

	slot0 := env.pool.Slot0()
	require.Equal(t, int32(9), slot0.Tick)
	require.Equal(t, "79267657753277698365834331995", slot0.SqrtPriceX96.String())
	require.Equal(t, "510423550381407695195061911147652", env.pool.FeeGrowthGlobal1X128().String())

	// poke both positions: each carried half the liquidity, so each earns
	// half the 3e12 fee
	_, _, err = env.pool.Burn(alice, -60, 60, uint256.NewInt(0))
	require.NoError(t, err)
	_, _, err = env.pool.Burn(bob, 0, 120, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, "1499999999999", env.pool.Position(alice, -60, 60).TokensOwed1.String())
	require.Equal(t, "1499999999999", env.pool.Position(bob, 0, 120).TokensOwed1.String())
}

func TestSwapUnpaidInputRestoresState(t *testing.T) {
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)
	before := env.pool.Slot0()
	poolBal1 := env.ledger.BalanceOf(token1, env.pool.Address())

	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), stiff{}, nil)
	require.ErrorIs(t, err, ErrInsufficientInput)

	after := env.pool.Slot0()
	require.Equal(t, before.SqrtPriceX96.String(), after.SqrtPriceX96.String())
	require.Equal(t, before.Tick, after.Tick)
	require.True(t, after.Unlocked)
	require.True(t, env.pool.FeeGrowthGlobal0X128().IsZero())
	// note: the ledger still shows the paid-out token1; unwinding external
	// transfers is the host's concern
	require.Equal(t, new(uint256.Int).Sub(poolBal1, u("996006981039903")).String(),
		env.ledger.BalanceOf(token1, env.pool.Address()).String())
}

func TestSwapReentrancyLocked(t *testing.T) {
	env := newTestEnv(t, true)
	_, _, err := env.pool.Mint(alice, alice, -60, 60, u("1000000000000000000"), &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	cb := &payer{env: env, account: bob}
	cb.reenter = func() error {
		_, _, err := env.pool.Swap(bob, bob, true, big.NewInt(1000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
		return err
	}
	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), cb, nil)
	require.NoError(t, err)
	require.ErrorIs(t, cb.reerr, ErrLocked)
}

func TestSwapWritesObservationWhenTickMoves(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.pool.IncreaseObservationCardinalityNext(4))
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	env.clock.advance(10)
	_, _, err = env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	require.Equal(t, uint16(1), env.pool.Slot0().ObservationIndex)
	require.Equal(t, uint16(4), env.pool.Slot0().ObservationCardinality)

	// ten seconds at tick 0, then ten at -20
	env.clock.advance(10)
	tickCums, _, err := env.pool.Observe([]uint32{0, 10, 20})
	require.NoError(t, err)
	require.Equal(t, []int64{-200, 0, 0}, tickCums)
}

func TestSwapRoundTripConservesValue(t *testing.T) {
	// sell and buy back: the trader always ends up worse off by the fees
	env := newTestEnv(t, true)
	liq := u("1000000000000000000")
	_, _, err := env.pool.Mint(alice, alice, -60, 60, liq, &payer{env: env, account: alice}, nil)
	require.NoError(t, err)

	start0 := env.ledger.BalanceOf(token0, bob)
	start1 := env.ledger.BalanceOf(token1, bob)

	_, out, err := env.pool.Swap(bob, bob, true, big.NewInt(1_000_000_000_000_000), ratioAt(t, -60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)
	_, _, err = env.pool.Swap(bob, bob, false, new(big.Int).Neg(out), ratioAt(t, 60), &payer{env: env, account: bob}, nil)
	require.NoError(t, err)

	require.True(t, env.ledger.BalanceOf(token0, bob).Lt(start0))
	require.Equal(t, start1.String(), env.ledger.BalanceOf(token1, bob).String())
}
