// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ticks tracks per-tick liquidity bookkeeping and the bitmap used to
// find the next initialized tick during a swap.
//
// The "outside" accumulators per tick follow the flip convention: they hold
// the accumulator total on the side of the tick away from the current price,
// and crossing a tick replaces each with global minus itself. All fee-growth
// arithmetic is modular 256-bit.
package ticks

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/clamm/fullmath"
)

var (
	ErrLiquidityGross = errors.New("LO") // per-tick liquidity cap exceeded
	ErrLiquidityNet   = errors.New("liquidity net exceeds int128")
)

// Info is the state of one initialized tick.
type Info struct {
	// LiquidityGross is total position liquidity referencing this tick as a
	// bound; LiquidityNet is the signed amount added to the pool's active
	// liquidity when the tick is crossed left to right.
	LiquidityGross *uint256.Int
	LiquidityNet   *big.Int

	// Outside accumulators, relative to the current tick (flip convention).
	FeeGrowthOutside0X128          *uint256.Int
	FeeGrowthOutside1X128          *uint256.Int
	TickCumulativeOutside          int64
	SecondsPerLiquidityOutsideX128 *uint256.Int
	SecondsOutside                 uint32

	Initialized bool
}

func newInfo() *Info {
	return &Info{
		LiquidityGross:                 new(uint256.Int),
		LiquidityNet:                   new(big.Int),
		FeeGrowthOutside0X128:          new(uint256.Int),
		FeeGrowthOutside1X128:          new(uint256.Int),
		SecondsPerLiquidityOutsideX128: new(uint256.Int),
	}
}

func (i *Info) clone() *Info {
	c := *i
	c.LiquidityGross = i.LiquidityGross.Clone()
	c.LiquidityNet = new(big.Int).Set(i.LiquidityNet)
	c.FeeGrowthOutside0X128 = i.FeeGrowthOutside0X128.Clone()
	c.FeeGrowthOutside1X128 = i.FeeGrowthOutside1X128.Clone()
	c.SecondsPerLiquidityOutsideX128 = i.SecondsPerLiquidityOutsideX128.Clone()
	return &c
}

// Table is the sparse tick state, keyed by tick index.
type Table struct {
	ticks map[int32]*Info
}

func NewTable() *Table {
	return &Table{ticks: make(map[int32]*Info)}
}

// Get returns the tick's state, materializing a zero entry if absent.
func (t *Table) Get(tick int32) *Info {
	info, ok := t.ticks[tick]
	if !ok {
		info = newInfo()
		t.ticks[tick] = info
	}
	return info
}

// Peek returns the tick's state without materializing it, or a zero value.
func (t *Table) Peek(tick int32) (*Info, bool) {
	info, ok := t.ticks[tick]
	if !ok {
		return newInfo(), false
	}
	return info, true
}

// Clear removes a tick whose liquidity has fully unwound.
func (t *Table) Clear(tick int32) {
	delete(t.ticks, tick)
}

// Update applies a liquidity delta to a tick bound and reports whether the
// tick flipped between initialized and uninitialized. A tick at or below the
// current price being initialized for the first time seeds its outside
// accumulators with the current global totals.
func (t *Table) Update(
	tick, tickCurrent int32,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
	upper bool,
	maxLiquidity *uint256.Int,
) (bool, error) {
	info := t.Get(tick)

	grossBefore := info.LiquidityGross
	grossAfter, err := fullmath.AddDeltaU128(grossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if grossAfter.Gt(maxLiquidity) {
		return false, ErrLiquidityGross
	}
	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() {
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
			info.SecondsPerLiquidityOutsideX128.Set(secondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside = tickCumulative
			info.SecondsOutside = time
		}
		info.Initialized = true
	}

	info.LiquidityGross = grossAfter
	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}
	if !fullmath.CheckInt128(info.LiquidityNet) {
		return false, ErrLiquidityNet
	}
	return flipped, nil
}

// Cross flips a tick's outside accumulators as the price moves through it and
// returns the net liquidity to add when entering from the left.
func (t *Table) Cross(
	tick int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
) *big.Int {
	info := t.Get(tick)
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.SecondsPerLiquidityOutsideX128.Sub(secondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128)
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	info.SecondsOutside = time - info.SecondsOutside
	return new(big.Int).Set(info.LiquidityNet)
}

// FeeGrowthInside returns the fee growth accumulated inside [lower, upper],
// derived from the global totals and the bounds' outside accumulators. The
// subtraction wraps mod 2^256.
func (t *Table) FeeGrowthInside(
	lower, upper, tickCurrent int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (*uint256.Int, *uint256.Int) {
	lo, _ := t.Peek(lower)
	hi, _ := t.Peek(upper)

	below0, below1 := new(uint256.Int), new(uint256.Int)
	if tickCurrent >= lower {
		below0.Set(lo.FeeGrowthOutside0X128)
		below1.Set(lo.FeeGrowthOutside1X128)
	} else {
		below0.Sub(feeGrowthGlobal0X128, lo.FeeGrowthOutside0X128)
		below1.Sub(feeGrowthGlobal1X128, lo.FeeGrowthOutside1X128)
	}

	above0, above1 := new(uint256.Int), new(uint256.Int)
	if tickCurrent < upper {
		above0.Set(hi.FeeGrowthOutside0X128)
		above1.Set(hi.FeeGrowthOutside1X128)
	} else {
		above0.Sub(feeGrowthGlobal0X128, hi.FeeGrowthOutside0X128)
		above1.Sub(feeGrowthGlobal1X128, hi.FeeGrowthOutside1X128)
	}

	inside0 := new(uint256.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(uint256.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// Clone deep-copies the table for checkpointing.
func (t *Table) Clone() *Table {
	c := NewTable()
	for tick, info := range t.ticks {
		c.ticks[tick] = info.clone()
	}
	return c
}
