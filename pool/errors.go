// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import "errors"

// Failure codes. The short names are the stable identifiers callers match on.
var (
	ErrLocked             = errors.New("LOK") // reentrant entry, or pool not yet initialized
	ErrAlreadyInitialized = errors.New("AI")
	ErrAmountSpecified    = errors.New("AS")  // swap amount is zero
	ErrPriceLimit         = errors.New("SPL") // price limit out of range or on the wrong side
	ErrInsufficientInput  = errors.New("IIA") // swap callback underpaid
	ErrMint0              = errors.New("M0")  // mint callback underpaid token0
	ErrMint1              = errors.New("M1")  // mint callback underpaid token1
	ErrFlash0             = errors.New("F0")  // flash callback underpaid token0
	ErrFlash1             = errors.New("F1")  // flash callback underpaid token1
	ErrNoLiquidity        = errors.New("L")   // flash requires active liquidity
	ErrTickLowerGTUpper   = errors.New("TLU")
	ErrTickLowerTooSmall  = errors.New("TLM")
	ErrTickUpperTooLarge  = errors.New("TUM")

	ErrZeroAmount         = errors.New("liquidity amount must be positive")
	ErrNotOwner           = errors.New("caller is not the pool owner")
	ErrFeeProtocol        = errors.New("protocol fee fraction out of range")
	ErrUninitializedTick  = errors.New("tick not initialized")
	ErrTokenOrder         = errors.New("token0 must sort before token1")
	ErrFee                = errors.New("fee exceeds maximum")
	ErrTickSpacing        = errors.New("tick spacing out of range")
)
