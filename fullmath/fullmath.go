// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fullmath provides 512-bit intermediate multiply-divide helpers and
// checked 128-bit liquidity arithmetic on top of holiman/uint256.
//
// Everything here fails loudly on overflow or division by zero. The only
// intentionally wrapping arithmetic in this repository is the Q128.128
// fee-growth accumulators, which use uint256.Int's natural modular Add/Sub
// directly and never pass through these helpers.
package fullmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrMulDivOverflow = errors.New("muldiv overflow")
	ErrUint128        = errors.New("value exceeds 128 bits")
	ErrLiquiditySub   = errors.New("LS") // liquidity delta underflows
	ErrLiquidityAdd   = errors.New("LA") // liquidity delta overflows 128 bits
)

// Fixed-point scaling factors.
var (
	Q96  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	// MaxUint128 bounds liquidity, protocol fees and tokens owed.
	MaxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

	one = uint256.NewInt(1)
)

// MulDiv computes floor(a*b/denominator) with the product held at full
// 512-bit precision. Fails if the denominator is zero or the result does not
// fit in 256 bits.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator) at full precision.
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	rem := new(uint256.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		if z.Eq(new(uint256.Int).Not(new(uint256.Int))) {
			return nil, ErrMulDivOverflow
		}
		z.Add(z, one)
	}
	return z, nil
}

// DivRoundingUp computes ceil(a/denominator).
func DivRoundingUp(a, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	z := new(uint256.Int).Div(a, denominator)
	if !new(uint256.Int).Mod(a, denominator).IsZero() {
		z.Add(z, one)
	}
	return z, nil
}

// AddDeltaU128 applies a signed 128-bit delta to an unsigned 128-bit value,
// failing on underflow when removing and on 128-bit overflow when adding.
func AddDeltaU128(x *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	d, err := U256FromBig(new(big.Int).Abs(delta))
	if err != nil {
		return nil, err
	}
	z := new(uint256.Int)
	if delta.Sign() < 0 {
		if x.Lt(d) {
			return nil, ErrLiquiditySub
		}
		z.Sub(x, d)
		return z, nil
	}
	z.Add(x, d)
	if z.Gt(MaxUint128) {
		return nil, ErrLiquidityAdd
	}
	return z, nil
}

// U256FromBig converts a non-negative big.Int, failing on sign or overflow.
func U256FromBig(x *big.Int) (*uint256.Int, error) {
	if x.Sign() < 0 {
		return nil, ErrUint128
	}
	z, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// CheckInt128 reports whether x fits a signed 128-bit integer.
func CheckInt128(x *big.Int) bool {
	return x.Cmp(minInt128) >= 0 && x.Cmp(maxInt128) <= 0
}
