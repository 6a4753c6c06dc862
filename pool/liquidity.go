// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/clamm/fullmath"
	"github.com/luxfi/clamm/position"
	"github.com/luxfi/clamm/sqrtpricemath"
	"github.com/luxfi/clamm/tickmath"
)

// MintCallback pulls payment for minted liquidity. The implementation must
// transfer at least the owed amounts to the pool before returning.
type MintCallback interface {
	MintCallback(amount0Owed, amount1Owed *uint256.Int, data []byte) error
}

// modifyPosition applies a signed liquidity delta to a position and returns
// the token amounts the change moves (positive: owed to the pool). When the
// range straddles the current price it also records an oracle observation,
// since the active liquidity is about to change.
func (p *Pool) modifyPosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *big.Int) (*position.Info, *big.Int, *big.Int, error) {
	if err := checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, nil, err
	}

	pos, err := p.updatePosition(owner, tickLower, tickUpper, liquidityDelta, p.slot0.Tick)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0, amount1 := new(big.Int), new(big.Int)
	if liquidityDelta.Sign() != 0 {
		lowerRatio, err := tickmath.SqrtRatioAtTick(tickLower)
		if err != nil {
			return nil, nil, nil, err
		}
		upperRatio, err := tickmath.SqrtRatioAtTick(tickUpper)
		if err != nil {
			return nil, nil, nil, err
		}

		switch {
		case p.slot0.Tick < tickLower:
			// all token0, price below the range
			amount0, err = sqrtpricemath.Amount0DeltaSigned(lowerRatio, upperRatio, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		case p.slot0.Tick < tickUpper:
			// range is active: the change shows up in both tokens and in
			// the pool's working liquidity
			index, cardinality := p.observations.Write(
				p.slot0.ObservationIndex, p.now(), p.slot0.Tick, p.liquidity,
				p.slot0.ObservationCardinality, p.slot0.ObservationCardinalityNext)
			p.slot0.ObservationIndex = index
			p.slot0.ObservationCardinality = cardinality

			amount0, err = sqrtpricemath.Amount0DeltaSigned(p.slot0.SqrtPriceX96, upperRatio, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			amount1, err = sqrtpricemath.Amount1DeltaSigned(lowerRatio, p.slot0.SqrtPriceX96, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			p.liquidity, err = fullmath.AddDeltaU128(p.liquidity, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		default:
			// all token1, price above the range
			amount1, err = sqrtpricemath.Amount1DeltaSigned(lowerRatio, upperRatio, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return pos, amount0, amount1, nil
}

// updatePosition maintains the tick table, bitmap and position entry for a
// liquidity delta.
func (p *Pool) updatePosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *big.Int, tick int32) (*position.Info, error) {
	pos := p.positions.Get(owner, tickLower, tickUpper)

	var flippedLower, flippedUpper bool
	if liquidityDelta.Sign() != 0 {
		time := p.now()
		tickCumulative, secondsPerLiquidity, err := p.observations.ObserveSingle(
			time, 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
		if err != nil {
			return nil, err
		}

		flippedLower, err = p.ticks.Update(
			tickLower, tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			secondsPerLiquidity, tickCumulative, time,
			false, p.maxLiquidityPerTick)
		if err != nil {
			return nil, err
		}
		flippedUpper, err = p.ticks.Update(
			tickUpper, tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			secondsPerLiquidity, tickCumulative, time,
			true, p.maxLiquidityPerTick)
		if err != nil {
			return nil, err
		}

		if flippedLower {
			if err := p.tickBitmap.Flip(tickLower, p.tickSpacing); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.tickBitmap.Flip(tickUpper, p.tickSpacing); err != nil {
				return nil, err
			}
		}
	}

	inside0, inside1 := p.ticks.FeeGrowthInside(
		tickLower, tickUpper, tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	if err := pos.Update(liquidityDelta, inside0, inside1); err != nil {
		return nil, err
	}

	// fully unwound ticks are cleared
	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return pos, nil
}

// Mint adds liquidity to a range. The recipient owns the position; payment is
// pulled through the callback and verified against the pool's balances.
func (p *Pool) Mint(sender, recipient common.Address, tickLower, tickUpper int32, amount *uint256.Int, cb MintCallback, data []byte) (*uint256.Int, *uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	cp := p.snapshot()

	_, a0, a1, err := p.modifyPosition(recipient, tickLower, tickUpper, amount.ToBig())
	if err != nil {
		p.restore(cp)
		return nil, nil, err
	}
	amount0, _ := fullmath.U256FromBig(a0)
	amount1, _ := fullmath.U256FromBig(a1)

	var balance0Before, balance1Before *uint256.Int
	if !amount0.IsZero() {
		balance0Before = p.balance0()
	}
	if !amount1.IsZero() {
		balance1Before = p.balance1()
	}
	if err := cb.MintCallback(amount0.Clone(), amount1.Clone(), data); err != nil {
		p.restore(cp)
		return nil, nil, fmt.Errorf("mint callback: %w", err)
	}
	if !amount0.IsZero() {
		if p.balance0().Lt(new(uint256.Int).Add(balance0Before, amount0)) {
			p.restore(cp)
			return nil, nil, ErrMint0
		}
	}
	if !amount1.IsZero() {
		if p.balance1().Lt(new(uint256.Int).Add(balance1Before, amount1)) {
			p.restore(cp)
			return nil, nil, ErrMint1
		}
	}

	p.events.Emit(MintEvent{
		Sender: sender, Owner: recipient,
		TickLower: tickLower, TickUpper: tickUpper,
		Amount: amount.Clone(), Amount0: amount0.Clone(), Amount1: amount1.Clone(),
	})
	return amount0, amount1, nil
}

// Burn removes liquidity from the sender's position. The freed principal is
// credited to the position's tokens owed, to be paid out by Collect. A zero
// amount re-reads fee growth (a poke).
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	cp := p.snapshot()

	delta := new(big.Int).Neg(amount.ToBig())
	pos, a0, a1, err := p.modifyPosition(owner, tickLower, tickUpper, delta)
	if err != nil {
		p.restore(cp)
		return nil, nil, err
	}

	amount0, _ := fullmath.U256FromBig(new(big.Int).Neg(a0))
	amount1, _ := fullmath.U256FromBig(new(big.Int).Neg(a1))
	if !amount0.IsZero() {
		pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
	}
	if !amount1.IsZero() {
		pos.TokensOwed1.Add(pos.TokensOwed1, amount1)
	}

	p.events.Emit(BurnEvent{
		Owner:     owner,
		TickLower: tickLower, TickUpper: tickUpper,
		Amount: amount.Clone(), Amount0: amount0.Clone(), Amount1: amount1.Clone(),
	})
	return amount0, amount1, nil
}

// Collect pays out tokens owed to a position, clamped to what is owed.
func (p *Pool) Collect(owner, recipient common.Address, tickLower, tickUpper int32, amount0Requested, amount1Requested *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	cp := p.snapshot()

	pos := p.positions.Get(owner, tickLower, tickUpper)
	amount0 := minU256(amount0Requested, pos.TokensOwed0)
	amount1 := minU256(amount1Requested, pos.TokensOwed1)

	if !amount0.IsZero() {
		pos.TokensOwed0.Sub(pos.TokensOwed0, amount0)
		if err := p.ledger.Transfer(p.token0, p.address, recipient, amount0); err != nil {
			p.restore(cp)
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		pos.TokensOwed1.Sub(pos.TokensOwed1, amount1)
		if err := p.ledger.Transfer(p.token1, p.address, recipient, amount1); err != nil {
			p.restore(cp)
			return nil, nil, err
		}
	}

	p.events.Emit(CollectEvent{
		Owner: owner, Recipient: recipient,
		TickLower: tickLower, TickUpper: tickUpper,
		Amount0: amount0.Clone(), Amount1: amount1.Clone(),
	})
	return amount0, amount1, nil
}
