// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tickmath maps between tick indexes and Q64.96 sqrt prices.
//
// A tick i corresponds to the price 1.0001^i, so its sqrt price is
// sqrt(1.0001)^i. SqrtRatioAtTick evaluates that power with a fixed schedule
// of Q128.128 multipliers; TickAtSqrtRatio inverts it via a base-2 logarithm
// with enough fractional bits to disambiguate adjacent ticks.
package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/clamm/fullmath"
)

// Tick domain. MinTick/MaxTick bound prices to [2^-128, 2^128).
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick); MaxSqrtRatio is
	// SqrtRatioAtTick(MaxTick). Valid pool prices live in
	// [MinSqrtRatio, MaxSqrtRatio).
	MinSqrtRatio = uint256.NewInt(4295128739)
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	ErrTick      = errors.New("T")
	ErrSqrtRatio = errors.New("R")
)

// Q128.128 multipliers for sqrt(1.0001)^-(2^k), k = 1..19. The k = 0 factor
// is folded into the loop seed.
var sqrtRatioSchedule = []struct {
	bit uint32
	mul *uint256.Int
}{
	{0x2, uint256.MustFromHex("0xfff97272373d413259a46990580e213a")},
	{0x4, uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc")},
	{0x8, uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0")},
	{0x10, uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644")},
	{0x20, uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0")},
	{0x40, uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861")},
	{0x80, uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053")},
	{0x100, uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4")},
	{0x200, uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54")},
	{0x400, uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3")},
	{0x800, uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9")},
	{0x1000, uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825")},
	{0x2000, uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5")},
	{0x4000, uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7")},
	{0x8000, uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6")},
	{0x10000, uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9")},
	{0x20000, uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604")},
	{0x40000, uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98")},
	{0x80000, uint256.MustFromHex("0x48a170391f7dc42444e8fa2")},
}

var (
	seedOdd  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	seedEven = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	maxU256 = new(uint256.Int).Not(new(uint256.Int))
	maskU32 = uint256.NewInt(0xffffffff)

	// log-base conversion: 2^64 / log2(sqrt(1.0001)), Q64.128 error bounds.
	logSqrt10001Mul = mustBig("255738958999603826347141")
	tickLowSub      = mustBig("3402992956809132418596140100660247210")
	tickHighAdd     = mustBig("291339464771989622907027621153398088495")
)

func mustBig(s string) *big.Int {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("tickmath: bad constant " + s)
	}
	return x
}

// SqrtRatioAtTick returns sqrt(1.0001)^tick as a Q64.96, rounded up from the
// internal Q128.128 so that the bijection with TickAtSqrtRatio holds at the
// domain edges.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTick
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(seedOdd)
	} else {
		ratio.Set(seedEven)
	}
	for _, s := range sqrtRatioSchedule {
		if absTick&s.bit != 0 {
			ratio.Rsh(ratio.Mul(ratio, s.mul), 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxU256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	frac := new(uint256.Int).And(ratio, maskU32)
	ratio.Rsh(ratio, 32)
	if !frac.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is at most
// sqrtPriceX96. The input must lie in [MinSqrtRatio, MaxSqrtRatio).
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, ErrSqrtRatio
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	// normalize to [2^127, 2^128)
	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	// log2 in Q64.64: integer part from the msb, then 14 fractional bits by
	// repeated squaring.
	log2 := new(big.Int).Lsh(big.NewInt(int64(msb)-128), 64)
	for i := 0; i < 14; i++ {
		r.Rsh(r.Mul(r, r), 127)
		if r.BitLen() > 128 {
			log2.Add(log2, new(big.Int).Lsh(big.NewInt(1), uint(63-i)))
			r.Rsh(r, 1)
		}
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Mul)
	tickLow := int32(new(big.Int).Rsh(new(big.Int).Sub(logSqrt10001, tickLowSub), 128).Int64())
	tickHigh := int32(new(big.Int).Rsh(new(big.Int).Add(logSqrt10001, tickHighAdd), 128).Int64())
	if tickLow == tickHigh {
		return tickLow, nil
	}
	ratioHigh, err := SqrtRatioAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if !ratioHigh.Gt(sqrtPriceX96) {
		return tickHigh, nil
	}
	return tickLow, nil
}

// MaxLiquidityPerTick returns the liquidity cap per usable tick such that the
// sum over every tick the spacing can touch stays within uint128.
func MaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	minTick := (MinTick / tickSpacing) * tickSpacing
	maxTick := (MaxTick / tickSpacing) * tickSpacing
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return new(uint256.Int).Div(fullmath.MaxUint128, uint256.NewInt(numTicks))
}
