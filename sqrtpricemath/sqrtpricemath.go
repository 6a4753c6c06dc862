// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sqrtpricemath relates token amounts, liquidity and Q64.96 sqrt
// prices within a price interval.
//
// Rounding is always against the pool: amounts the pool receives round up,
// amounts the pool pays round down, and the next sqrt price after consuming
// an input (resp. producing an output) rounds toward keeping the price
// movement conservative.
package sqrtpricemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/clamm/fullmath"
)

var (
	ErrPriceZero     = errors.New("sqrt price is zero")
	ErrLiquidityZero = errors.New("liquidity is zero")
	ErrPriceOverflow = errors.New("next sqrt price exceeds 160 bits")
	ErrInputTooLarge = errors.New("input drains the price to zero")
	ErrOutputTooBig  = errors.New("output exceeds interval reserves")
)

// Amount0Delta returns the token0 amount spanned by liquidity between the two
// sqrt prices: liquidity * (1/sqrt(lower) - 1/sqrt(upper)).
func Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioA.Gt(sqrtRatioB) {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	if sqrtRatioA.IsZero() {
		return nil, ErrPriceZero
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)
	if roundUp {
		z, err := fullmath.MulDivRoundingUp(numerator1, numerator2, sqrtRatioB)
		if err != nil {
			return nil, err
		}
		return fullmath.DivRoundingUp(z, sqrtRatioA)
	}
	z, err := fullmath.MulDiv(numerator1, numerator2, sqrtRatioB)
	if err != nil {
		return nil, err
	}
	return z.Div(z, sqrtRatioA), nil
}

// Amount1Delta returns the token1 amount spanned by liquidity between the two
// sqrt prices: liquidity * (sqrt(upper) - sqrt(lower)).
func Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioA.Gt(sqrtRatioB) {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	diff := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)
	if roundUp {
		return fullmath.MulDivRoundingUp(liquidity, diff, fullmath.Q96)
	}
	return fullmath.MulDiv(liquidity, diff, fullmath.Q96)
}

// Amount0DeltaSigned is Amount0Delta for a signed liquidity change: negative
// liquidity rounds down and negates (amount owed to the position), positive
// rounds up (amount owed to the pool).
func Amount0DeltaSigned(sqrtRatioA, sqrtRatioB *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	l, err := fullmath.U256FromBig(new(big.Int).Abs(liquidity))
	if err != nil {
		return nil, err
	}
	if liquidity.Sign() < 0 {
		z, err := Amount0Delta(sqrtRatioA, sqrtRatioB, l, false)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(z.ToBig()), nil
	}
	z, err := Amount0Delta(sqrtRatioA, sqrtRatioB, l, true)
	if err != nil {
		return nil, err
	}
	return z.ToBig(), nil
}

// Amount1DeltaSigned mirrors Amount0DeltaSigned for token1.
func Amount1DeltaSigned(sqrtRatioA, sqrtRatioB *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	l, err := fullmath.U256FromBig(new(big.Int).Abs(liquidity))
	if err != nil {
		return nil, err
	}
	if liquidity.Sign() < 0 {
		z, err := Amount1Delta(sqrtRatioA, sqrtRatioB, l, false)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(z.ToBig()), nil
	}
	z, err := Amount1Delta(sqrtRatioA, sqrtRatioB, l, true)
	if err != nil {
		return nil, err
	}
	return z.ToBig(), nil
}

// nextSqrtPriceFromAmount0RoundingUp solves for the price after adding
// (add=true) or removing (add=false) amount of token0 at the given liquidity.
// Token0 amounts move the price down when added, up when removed.
func nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtPriceX96.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPriceX96)

	if add {
		if !overflow {
			denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
			if !carry {
				return fullmath.MulDivRoundingUp(numerator1, sqrtPriceX96, denominator)
			}
		}
		// amount*price overflows: fall back to liquidity/(liquidity/price + amount)
		denominator := new(uint256.Int).Div(numerator1, sqrtPriceX96)
		denominator.Add(denominator, amount)
		return fullmath.DivRoundingUp(numerator1, denominator)
	}

	if overflow || !numerator1.Gt(product) {
		return nil, ErrOutputTooBig
	}
	return fullmath.MulDivRoundingUp(numerator1, sqrtPriceX96, new(uint256.Int).Sub(numerator1, product))
}

// nextSqrtPriceFromAmount1RoundingDown solves for the price after adding or
// removing amount of token1. Token1 amounts move the price up when added,
// down when removed.
func nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient, err := fullmath.MulDiv(amount, fullmath.Q96, liquidity)
		if err != nil {
			return nil, err
		}
		next := quotient.Add(quotient, sqrtPriceX96)
		if next.BitLen() > 160 {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}
	quotient, err := fullmath.MulDivRoundingUp(amount, fullmath.Q96, liquidity)
	if err != nil {
		return nil, err
	}
	if !sqrtPriceX96.Gt(quotient) {
		return nil, ErrOutputTooBig
	}
	return new(uint256.Int).Sub(sqrtPriceX96, quotient), nil
}

// NextSqrtPriceFromInput returns the price after the pool receives amountIn
// of the input token. zeroForOne selects token0 (price moves down) versus
// token1 (price moves up). Rounds so the pool never undercharges.
func NextSqrtPriceFromInput(sqrtPriceX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() {
		return nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after the pool pays amountOut of
// the output token. Fails when the interval cannot cover the output.
func NextSqrtPriceFromOutput(sqrtPriceX96, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() {
		return nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amountOut, false)
}
