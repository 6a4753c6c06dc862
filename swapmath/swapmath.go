// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swapmath computes a single swap step: how far the price moves
// toward a target within one tick interval, and the input, output and fee
// amounts for that move.
package swapmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/clamm/fullmath"
	"github.com/luxfi/clamm/sqrtpricemath"
)

// FeeDenominator expresses fees in hundredths of a bip (parts per million).
const FeeDenominator = 1_000_000

var ErrFee = errors.New("fee out of range")

// Step is the outcome of one swap step.
type Step struct {
	// SqrtRatioNextX96 is the price after the step: the target when the
	// remaining amount suffices, a partial move otherwise.
	SqrtRatioNextX96 *uint256.Int
	// AmountIn is consumed input net of fee; AmountOut is produced output.
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	// FeeAmount is the fee charged on top of AmountIn.
	FeeAmount *uint256.Int
}

// ComputeSwapStep advances the price from sqrtRatioCurrent toward
// sqrtRatioTarget given the available liquidity and the remaining amount.
// amountRemaining >= 0 means exact-input (fee comes out of it); negative
// means exact-output. The trade direction is implied by the ordering of
// current and target prices.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity *uint256.Int, amountRemaining *big.Int, feePips uint32) (Step, error) {
	if feePips >= FeeDenominator {
		return Step{}, ErrFee
	}
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := amountRemaining.Sign() >= 0

	remaining, err := fullmath.U256FromBig(new(big.Int).Abs(amountRemaining))
	if err != nil {
		return Step{}, err
	}

	step := Step{
		AmountIn:  new(uint256.Int),
		AmountOut: new(uint256.Int),
		FeeAmount: new(uint256.Int),
	}

	if exactIn {
		remainingLessFee, err := fullmath.MulDiv(remaining, uint256.NewInt(FeeDenominator-uint64(feePips)), uint256.NewInt(FeeDenominator))
		if err != nil {
			return Step{}, err
		}
		if zeroForOne {
			step.AmountIn, err = sqrtpricemath.Amount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			step.AmountIn, err = sqrtpricemath.Amount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return Step{}, err
		}
		if !remainingLessFee.Lt(step.AmountIn) {
			step.SqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			step.SqrtRatioNextX96, err = sqrtpricemath.NextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, remainingLessFee, zeroForOne)
			if err != nil {
				return Step{}, err
			}
		}
	} else {
		if zeroForOne {
			step.AmountOut, err = sqrtpricemath.Amount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			step.AmountOut, err = sqrtpricemath.Amount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return Step{}, err
		}
		if !remaining.Lt(step.AmountOut) {
			step.SqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			step.SqrtRatioNextX96, err = sqrtpricemath.NextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, remaining, zeroForOne)
			if err != nil {
				return Step{}, err
			}
		}
	}

	max := sqrtRatioTargetX96.Eq(step.SqrtRatioNextX96)

	// recompute the side that was not pinned above
	if zeroForOne {
		if !(max && exactIn) {
			step.AmountIn, err = sqrtpricemath.Amount0Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
			if err != nil {
				return Step{}, err
			}
		}
		if !(max && !exactIn) {
			step.AmountOut, err = sqrtpricemath.Amount1Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
			if err != nil {
				return Step{}, err
			}
		}
	} else {
		if !(max && exactIn) {
			step.AmountIn, err = sqrtpricemath.Amount1Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, true)
			if err != nil {
				return Step{}, err
			}
		}
		if !(max && !exactIn) {
			step.AmountOut, err = sqrtpricemath.Amount0Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, false)
			if err != nil {
				return Step{}, err
			}
		}
	}

	// exact-output never pays out more than requested
	if !exactIn && step.AmountOut.Gt(remaining) {
		step.AmountOut = remaining.Clone()
	}

	if exactIn && !step.SqrtRatioNextX96.Eq(sqrtRatioTargetX96) {
		// partial step: the whole remainder is spent, fee absorbs the slack
		step.FeeAmount = new(uint256.Int).Sub(remaining, step.AmountIn)
	} else {
		step.FeeAmount, err = fullmath.MulDivRoundingUp(step.AmountIn, uint256.NewInt(uint64(feePips)), uint256.NewInt(FeeDenominator-uint64(feePips)))
		if err != nil {
			return Step{}, err
		}
	}
	return step, nil
}
