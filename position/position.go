// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package position tracks per-owner liquidity positions keyed by
// BLAKE3(owner || tickLower || tickUpper).
package position

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/clamm/fullmath"
)

// ErrNoPosition rejects pokes of positions that were never minted.
var ErrNoPosition = errors.New("NP")

// Info is the state of a single position.
type Info struct {
	Liquidity *uint256.Int

	// Fee growth inside the range as of the last update, used to compute
	// fees owed since.
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int

	// Uncollected fees plus burned principal, truncated to uint128.
	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int
}

func newInfo() *Info {
	return &Info{
		Liquidity:                new(uint256.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

func (i *Info) clone() *Info {
	return &Info{
		Liquidity:                i.Liquidity.Clone(),
		FeeGrowthInside0LastX128: i.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: i.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              i.TokensOwed0.Clone(),
		TokensOwed1:              i.TokensOwed1.Clone(),
	}
}

// Update credits fees accrued since the last touch and applies a liquidity
// delta. Owed amounts wrap at uint128; callers must collect before that.
func (i *Info) Update(liquidityDelta *big.Int, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	if liquidityDelta.Sign() == 0 && i.Liquidity.IsZero() {
		return ErrNoPosition
	}
	liquidityNext, err := fullmath.AddDeltaU128(i.Liquidity, liquidityDelta)
	if err != nil {
		return err
	}

	owed0, err := owedDelta(feeGrowthInside0X128, i.FeeGrowthInside0LastX128, i.Liquidity)
	if err != nil {
		return err
	}
	owed1, err := owedDelta(feeGrowthInside1X128, i.FeeGrowthInside1LastX128, i.Liquidity)
	if err != nil {
		return err
	}

	i.Liquidity = liquidityNext
	i.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	i.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	if !owed0.IsZero() {
		i.TokensOwed0.And(i.TokensOwed0.Add(i.TokensOwed0, owed0), fullmath.MaxUint128)
	}
	if !owed1.IsZero() {
		i.TokensOwed1.And(i.TokensOwed1.Add(i.TokensOwed1, owed1), fullmath.MaxUint128)
	}
	return nil
}

// owedDelta is floor(liquidity * (inside - insideLast) / 2^128) with the
// growth delta taken mod 2^256 and the result truncated to uint128.
func owedDelta(inside, insideLast, liquidity *uint256.Int) (*uint256.Int, error) {
	delta := new(uint256.Int).Sub(inside, insideLast)
	owed, err := fullmath.MulDiv(delta, liquidity, fullmath.Q128)
	if err != nil {
		return nil, err
	}
	return owed.And(owed, fullmath.MaxUint128), nil
}

// Key derives the map key for a position.
func Key(owner common.Address, tickLower, tickUpper int32) common.Hash {
	h := blake3.New()
	h.Write(owner.Bytes())
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(tickLower))
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:], uint32(tickUpper))
	h.Write(buf[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Table stores all positions of a pool.
type Table struct {
	positions map[common.Hash]*Info
}

func NewTable() *Table {
	return &Table{positions: make(map[common.Hash]*Info)}
}

// Get returns the position, materializing a zero entry if absent.
func (t *Table) Get(owner common.Address, tickLower, tickUpper int32) *Info {
	key := Key(owner, tickLower, tickUpper)
	info, ok := t.positions[key]
	if !ok {
		info = newInfo()
		t.positions[key] = info
	}
	return info
}

// Peek returns the position without materializing it, or a zero value.
func (t *Table) Peek(owner common.Address, tickLower, tickUpper int32) (*Info, bool) {
	info, ok := t.positions[Key(owner, tickLower, tickUpper)]
	if !ok {
		return newInfo(), false
	}
	return info, true
}

// Clone deep-copies the table for checkpointing.
func (t *Table) Clone() *Table {
	c := NewTable()
	for key, info := range t.positions {
		c.positions[key] = info.clone()
	}
	return c
}
