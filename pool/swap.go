// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/clamm/fullmath"
	"github.com/luxfi/clamm/swapmath"
	"github.com/luxfi/clamm/tickmath"
)

// SwapCallback settles a swap: positive deltas are owed to the pool and must
// be transferred before returning; negative deltas were already paid out.
type SwapCallback interface {
	SwapCallback(amount0Delta, amount1Delta *big.Int, data []byte) error
}

// swapCache holds values fixed for the whole swap.
type swapCache struct {
	liquidityStart *uint256.Int
	blockTimestamp uint32
	feeProtocol    uint8

	// oracle snapshot, taken lazily on the first tick crossing
	tickCumulative            int64
	secondsPerLiquidity       *uint256.Int
	computedLatestObservation bool
}

// swapState is the running state of the swap loop.
type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *uint256.Int
	tick                     int32
	feeGrowthGlobalX128      *uint256.Int
	protocolFee              *uint256.Int
	liquidity                *uint256.Int
}

// Swap trades one token for the other. A positive amountSpecified is exact
// input, negative exact output. zeroForOne sells token0 for token1, moving
// the price down toward sqrtPriceLimitX96; the limit must sit strictly
// between the current price and the corresponding domain bound. Returns the
// signed balance deltas (positive owed to the pool).
func (p *Pool) Swap(sender, recipient common.Address, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int, cb SwapCallback, data []byte) (*big.Int, *big.Int, error) {
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, ErrAmountSpecified
	}
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	slot0Start := p.slot0
	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(slot0Start.SqrtPriceX96) || !sqrtPriceLimitX96.Gt(tickmath.MinSqrtRatio) {
			return nil, nil, ErrPriceLimit
		}
	} else {
		if !sqrtPriceLimitX96.Gt(slot0Start.SqrtPriceX96) || !sqrtPriceLimitX96.Lt(tickmath.MaxSqrtRatio) {
			return nil, nil, ErrPriceLimit
		}
	}
	cp := p.snapshot()

	cache := swapCache{
		liquidityStart:      p.liquidity.Clone(),
		blockTimestamp:      p.now(),
		secondsPerLiquidity: new(uint256.Int),
	}
	if zeroForOne {
		cache.feeProtocol = slot0Start.FeeProtocol % 16
	} else {
		cache.feeProtocol = slot0Start.FeeProtocol >> 4
	}

	exactInput := amountSpecified.Sign() > 0
	state := swapState{
		amountSpecifiedRemaining: new(big.Int).Set(amountSpecified),
		amountCalculated:         new(big.Int),
		sqrtPriceX96:             slot0Start.SqrtPriceX96.Clone(),
		tick:                     slot0Start.Tick,
		protocolFee:              new(uint256.Int),
		liquidity:                cache.liquidityStart.Clone(),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = p.feeGrowthGlobal0X128.Clone()
	} else {
		state.feeGrowthGlobalX128 = p.feeGrowthGlobal1X128.Clone()
	}

	for state.amountSpecifiedRemaining.Sign() != 0 && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		stepStartPrice := state.sqrtPriceX96.Clone()

		tickNext, initialized := p.tickBitmap.NextInitializedTickWithinOneWord(state.tick, p.tickSpacing, zeroForOne)
		// the bitmap can run past the usable range on an empty word
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}
		tickNextRatio, err := tickmath.SqrtRatioAtTick(tickNext)
		if err != nil {
			p.restore(cp)
			return nil, nil, err
		}

		// step target: the next tick boundary, unless the limit is closer
		target := tickNextRatio
		if zeroForOne {
			if tickNextRatio.Lt(sqrtPriceLimitX96) {
				target = sqrtPriceLimitX96
			}
		} else {
			if tickNextRatio.Gt(sqrtPriceLimitX96) {
				target = sqrtPriceLimitX96
			}
		}

		step, err := swapmath.ComputeSwapStep(state.sqrtPriceX96, target, state.liquidity, state.amountSpecifiedRemaining, p.fee)
		if err != nil {
			p.restore(cp)
			return nil, nil, err
		}
		state.sqrtPriceX96 = step.SqrtRatioNextX96

		if exactInput {
			consumed := new(big.Int).Add(step.AmountIn.ToBig(), step.FeeAmount.ToBig())
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, consumed)
			state.amountCalculated.Sub(state.amountCalculated, step.AmountOut.ToBig())
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, step.AmountOut.ToBig())
			state.amountCalculated.Add(state.amountCalculated, new(big.Int).Add(step.AmountIn.ToBig(), step.FeeAmount.ToBig()))
		}

		// carve out the protocol's share of the fee
		if cache.feeProtocol > 0 {
			delta := new(uint256.Int).Div(step.FeeAmount, uint256.NewInt(uint64(cache.feeProtocol)))
			step.FeeAmount.Sub(step.FeeAmount, delta)
			state.protocolFee.Add(state.protocolFee, delta)
		}

		// the rest accrues to in-range liquidity
		if !state.liquidity.IsZero() {
			growth, err := fullmath.MulDiv(step.FeeAmount, fullmath.Q128, state.liquidity)
			if err != nil {
				p.restore(cp)
				return nil, nil, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
		}

		if state.sqrtPriceX96.Eq(tickNextRatio) {
			// reached the next tick boundary
			if initialized {
				if !cache.computedLatestObservation {
					cache.tickCumulative, cache.secondsPerLiquidity, err = p.observations.ObserveSingle(
						cache.blockTimestamp, 0, slot0Start.Tick, slot0Start.ObservationIndex,
						cache.liquidityStart, slot0Start.ObservationCardinality)
					if err != nil {
						p.restore(cp)
						return nil, nil, err
					}
					cache.computedLatestObservation = true
				}
				var feeGrowth0, feeGrowth1 *uint256.Int
				if zeroForOne {
					feeGrowth0, feeGrowth1 = state.feeGrowthGlobalX128, p.feeGrowthGlobal1X128
				} else {
					feeGrowth0, feeGrowth1 = p.feeGrowthGlobal0X128, state.feeGrowthGlobalX128
				}
				liquidityNet := p.ticks.Cross(tickNext, feeGrowth0, feeGrowth1,
					cache.secondsPerLiquidity, cache.tickCumulative, cache.blockTimestamp)
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				state.liquidity, err = fullmath.AddDeltaU128(state.liquidity, liquidityNet)
				if err != nil {
					p.restore(cp)
					return nil, nil, err
				}
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if !state.sqrtPriceX96.Eq(stepStartPrice) {
			// stopped inside the interval: recompute the tick
			state.tick, err = tickmath.TickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				p.restore(cp)
				return nil, nil, err
			}
		}
	}

	// one oracle write per swap, only if the tick moved
	if state.tick != slot0Start.Tick {
		index, cardinality := p.observations.Write(
			slot0Start.ObservationIndex, cache.blockTimestamp, slot0Start.Tick,
			cache.liquidityStart, slot0Start.ObservationCardinality, slot0Start.ObservationCardinalityNext)
		p.slot0.SqrtPriceX96 = state.sqrtPriceX96
		p.slot0.Tick = state.tick
		p.slot0.ObservationIndex = index
		p.slot0.ObservationCardinality = cardinality
	} else {
		p.slot0.SqrtPriceX96 = state.sqrtPriceX96
	}

	if !cache.liquidityStart.Eq(state.liquidity) {
		p.liquidity = state.liquidity
	}
	if zeroForOne {
		p.feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
		if !state.protocolFee.IsZero() {
			p.protocolFees.Token0.Add(p.protocolFees.Token0, state.protocolFee)
		}
	} else {
		p.feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
		if !state.protocolFee.IsZero() {
			p.protocolFees.Token1.Add(p.protocolFees.Token1, state.protocolFee)
		}
	}

	amount0, amount1 := new(big.Int), new(big.Int)
	if zeroForOne == exactInput {
		amount0.Sub(amountSpecified, state.amountSpecifiedRemaining)
		amount1.Set(state.amountCalculated)
	} else {
		amount0.Set(state.amountCalculated)
		amount1.Sub(amountSpecified, state.amountSpecifiedRemaining)
	}

	// settle: pay the output out, then pull the input through the callback
	if zeroForOne {
		if amount1.Sign() < 0 {
			out, _ := fullmath.U256FromBig(new(big.Int).Neg(amount1))
			if err := p.ledger.Transfer(p.token1, p.address, recipient, out); err != nil {
				p.restore(cp)
				return nil, nil, err
			}
		}
		balance0Before := p.balance0()
		if err := cb.SwapCallback(new(big.Int).Set(amount0), new(big.Int).Set(amount1), data); err != nil {
			p.restore(cp)
			return nil, nil, fmt.Errorf("swap callback: %w", err)
		}
		owed, _ := fullmath.U256FromBig(amount0)
		if p.balance0().Lt(new(uint256.Int).Add(balance0Before, owed)) {
			p.restore(cp)
			return nil, nil, ErrInsufficientInput
		}
	} else {
		if amount0.Sign() < 0 {
			out, _ := fullmath.U256FromBig(new(big.Int).Neg(amount0))
			if err := p.ledger.Transfer(p.token0, p.address, recipient, out); err != nil {
				p.restore(cp)
				return nil, nil, err
			}
		}
		balance1Before := p.balance1()
		if err := cb.SwapCallback(new(big.Int).Set(amount0), new(big.Int).Set(amount1), data); err != nil {
			p.restore(cp)
			return nil, nil, fmt.Errorf("swap callback: %w", err)
		}
		owed, _ := fullmath.U256FromBig(amount1)
		if p.balance1().Lt(new(uint256.Int).Add(balance1Before, owed)) {
			p.restore(cp)
			return nil, nil, ErrInsufficientInput
		}
	}

	p.events.Emit(SwapEvent{
		Sender: sender, Recipient: recipient,
		Amount0: new(big.Int).Set(amount0), Amount1: new(big.Int).Set(amount1),
		SqrtPriceX96: p.slot0.SqrtPriceX96.Clone(),
		Liquidity:    p.liquidity.Clone(),
		Tick:         p.slot0.Tick,
	})
	return amount0, amount1, nil
}
