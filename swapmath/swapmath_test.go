// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swapmath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/clamm/tickmath"
)

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func ratio(t *testing.T, tick int32) *uint256.Int {
	t.Helper()
	r, err := tickmath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return r
}

func TestComputeSwapStep(t *testing.T) {
	p0 := ratio(t, 0)
	liquidity := u("1000000000000000000")

	tests := []struct {
		name      string
		target    int32
		liquidity *uint256.Int
		remaining *big.Int
		wantNext  string
		wantIn    string
		wantOut   string
		wantFee   string
	}{
		{
			name:      "exact in, stops short of target",
			target:    -60,
			liquidity: liquidity,
			remaining: big.NewInt(1_000_000_000_000_000),
			wantNext:  "79149250711305166342700278159",
			wantIn:    "997000000000000",
			wantOut:   "996006981039903",
			wantFee:   "3000000000000",
		},
		{
			name:      "exact in, reaches target",
			target:    -60,
			liquidity: liquidity,
			remaining: big.NewInt(4_000_000_000_000_000),
			wantNext:  "78990846045029531151608375686",
			wantIn:    "3004354062741926",
			wantOut:   "2995354955910780",
			wantFee:   "9040182736436",
		},
		{
			name:      "exact out, stops short of target",
			target:    -60,
			liquidity: liquidity,
			remaining: big.NewInt(-500_000_000_000_000),
			wantNext:  "79188548433007205424747178360",
			wantIn:    "500250125062532",
			wantOut:   "500000000000000",
			wantFee:   "1505266173709",
		},
		{
			name:      "exact out, reaches target",
			target:    -60,
			liquidity: liquidity,
			remaining: big.NewInt(-4_000_000_000_000_000),
			wantNext:  "78990846045029531151608375686",
			wantIn:    "3004354062741926",
			wantOut:   "2995354955910780",
			wantFee:   "9040182736436",
		},
		{
			name:      "one for zero, stops short of target",
			target:    60,
			liquidity: liquidity,
			remaining: big.NewInt(1_000_000_000_000_000),
			wantNext:  "79307152992291059138124713654",
			wantIn:    "997000000000000",
			wantOut:   "996006981039903",
			wantFee:   "3000000000000",
		},
		{
			name:      "zero liquidity jumps to target, exact in",
			target:    -60,
			liquidity: uint256.NewInt(0),
			remaining: big.NewInt(1_000_000_000_000_000),
			wantNext:  "78990846045029531151608375686",
			wantIn:    "0",
			wantOut:   "0",
			wantFee:   "0",
		},
		{
			name:      "zero liquidity jumps to target, exact out",
			target:    -60,
			liquidity: uint256.NewInt(0),
			remaining: big.NewInt(-1_000_000_000_000_000),
			wantNext:  "78990846045029531151608375686",
			wantIn:    "0",
			wantOut:   "0",
			wantFee:   "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := ComputeSwapStep(p0, ratio(t, tt.target), tt.liquidity, tt.remaining, 3000)
			require.NoError(t, err)
			require.Equal(t, tt.wantNext, step.SqrtRatioNextX96.String())
			require.Equal(t, tt.wantIn, step.AmountIn.String())
			require.Equal(t, tt.wantOut, step.AmountOut.String())
			require.Equal(t, tt.wantFee, step.FeeAmount.String())
		})
	}
}

func TestComputeSwapStepPartialFeeAbsorbsRemainder(t *testing.T) {
	// on a partial exact-input step the whole remainder is consumed:
	// amountIn + feeAmount == amountRemaining
	p0 := ratio(t, 0)
	step, err := ComputeSwapStep(p0, ratio(t, -60), u("1000000000000000000"), big.NewInt(1_000_000_000_000_000), 3000)
	require.NoError(t, err)
	total := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	require.Equal(t, "1000000000000000", total.String())
}

func TestComputeSwapStepFeeValidation(t *testing.T) {
	p0 := ratio(t, 0)
	_, err := ComputeSwapStep(p0, ratio(t, -60), u("1"), big.NewInt(1), FeeDenominator)
	require.ErrorIs(t, err, ErrFee)
}
