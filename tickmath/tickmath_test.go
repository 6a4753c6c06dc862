// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tickmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTick(t *testing.T) {
	tests := []struct {
		tick int32
		want string
	}{
		{MinTick, "4295128739"},
		{-887271, "4295343490"},
		{-120, "78754240422856966435523493930"},
		{-60, "78990846045029531151608375686"},
		{-2, "79220240490215316061937756561"},
		{-1, "79224201403219477170569942574"},
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{2, "79236085330515764027303304732"},
		{60, "79466191966197645195421774833"},
		{120, "79704936542881920863903188246"},
		{6931, "112040957517951813098925484553"},
		{887271, "1461373636630004318706518188784493106690254656249"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tt := range tests {
		got, err := SqrtRatioAtTick(tt.tick)
		require.NoError(t, err)
		require.Equal(t, tt.want, got.String(), "tick %d", tt.tick)
	}

	_, err := SqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTick)
	_, err = SqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTick)

	require.Equal(t, MinSqrtRatio.String(), "4295128739")
	require.Equal(t, MaxSqrtRatio.String(), "1461446703485210103287273052203988822378723970342")
}

func TestTickAtSqrtRatio(t *testing.T) {
	// exact boundaries map to their own tick; one below an exact boundary
	// maps to the tick below
	for _, tick := range []int32{MinTick, -887271, -12345, -120, -60, -1, 0, 1, 60, 120, 12345, 887270} {
		ratio, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)

		got, err := TickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, got, "at boundary of tick %d", tick)

		next, err := SqrtRatioAtTick(tick + 1)
		require.NoError(t, err)
		got, err = TickAtSqrtRatio(new(uint256.Int).SubUint64(next, 1))
		require.NoError(t, err)
		require.Equal(t, tick, got, "just below boundary of tick %d", tick+1)

		got, err = TickAtSqrtRatio(new(uint256.Int).AddUint64(ratio, 1))
		require.NoError(t, err)
		require.Equal(t, tick, got, "just above boundary of tick %d", tick)
	}

	// the max ratio itself is out of the half-open domain
	_, err := TickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrSqrtRatio)
	got, err := TickAtSqrtRatio(new(uint256.Int).SubUint64(MaxSqrtRatio, 1))
	require.NoError(t, err)
	require.Equal(t, MaxTick-1, got)

	_, err = TickAtSqrtRatio(new(uint256.Int).SubUint64(MinSqrtRatio, 1))
	require.ErrorIs(t, err, ErrSqrtRatio)
	got, err = TickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	require.Equal(t, MinTick, got)
}

func TestMaxLiquidityPerTick(t *testing.T) {
	tests := []struct {
		spacing int32
		want    string
	}{
		{10, "1917569901783203986719870431555990"},
		{60, "11505743598341114571880798222544994"},
		{200, "38350317471085141830651933667504588"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, MaxLiquidityPerTick(tt.spacing).String(), "spacing %d", tt.spacing)
	}
}
