// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Standard fee tiers in hundredths of a bip, with their tick spacings.
const (
	Fee005 uint32 = 500
	Fee030 uint32 = 3000
	Fee100 uint32 = 10000

	TickSpacing005 int32 = 10
	TickSpacing030 int32 = 60
	TickSpacing100 int32 = 200
)

var (
	ErrPoolExists     = errors.New("pool already exists")
	ErrUnknownFeeTier = errors.New("fee tier not enabled")
	ErrTierEnabled    = errors.New("fee tier already enabled")
	ErrSameToken      = errors.New("identical tokens")
	ErrZeroToken      = errors.New("zero token address")
)

// PoolKey identifies a pool by its sorted token pair and fee tier.
type PoolKey struct {
	Token0 common.Address
	Token1 common.Address
	Fee    uint32
}

// ID hashes the key into the pool's identifier.
func (k PoolKey) ID() common.Hash {
	h := blake3.New()
	h.Write(k.Token0.Bytes())
	h.Write(k.Token1.Bytes())
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], k.Fee)
	h.Write(buf[:])
	var id common.Hash
	h.Digest().Read(id[:])
	return id
}

// Factory creates pools and indexes them by PoolKey ID. The factory owner
// becomes each pool's owner and may enable additional fee tiers.
type Factory struct {
	owner  common.Address
	ledger Ledger
	events EventSink
	now    func() uint32

	mu       sync.RWMutex
	pools    map[common.Hash]*Pool
	feeTiers map[uint32]int32
}

// NewFactory starts with the three standard fee tiers enabled.
func NewFactory(owner common.Address, ledger Ledger, events EventSink, now func() uint32) *Factory {
	return &Factory{
		owner:  owner,
		ledger: ledger,
		events: events,
		now:    now,
		pools:  make(map[common.Hash]*Pool),
		feeTiers: map[uint32]int32{
			Fee005: TickSpacing005,
			Fee030: TickSpacing030,
			Fee100: TickSpacing100,
		},
	}
}

func (f *Factory) Owner() common.Address { return f.owner }

// EnableFeeTier registers a new (fee, tickSpacing) combination.
func (f *Factory) EnableFeeTier(sender common.Address, fee uint32, tickSpacing int32) error {
	if sender != f.owner {
		return ErrNotOwner
	}
	if fee > FeeMax {
		return ErrFee
	}
	if tickSpacing <= 0 || tickSpacing >= 16384 {
		return ErrTickSpacing
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.feeTiers[fee]; ok {
		return ErrTierEnabled
	}
	f.feeTiers[fee] = tickSpacing
	return nil
}

// TickSpacingForFee returns the spacing of an enabled tier.
func (f *Factory) TickSpacingForFee(fee uint32) (int32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	spacing, ok := f.feeTiers[fee]
	return spacing, ok
}

// CreatePool constructs the pool for an unordered token pair and fee tier.
// The pool still needs Initialize before it accepts operations.
func (f *Factory) CreatePool(tokenA, tokenB common.Address, fee uint32) (*Pool, error) {
	if tokenA == tokenB {
		return nil, ErrSameToken
	}
	token0, token1 := tokenA, tokenB
	if less(token1, token0) {
		token0, token1 = token1, token0
	}
	if token0 == (common.Address{}) {
		return nil, ErrZeroToken
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	spacing, ok := f.feeTiers[fee]
	if !ok {
		return nil, ErrUnknownFeeTier
	}
	id := PoolKey{Token0: token0, Token1: token1, Fee: fee}.ID()
	if _, ok := f.pools[id]; ok {
		return nil, ErrPoolExists
	}

	p, err := New(Config{
		Factory:     factoryAddress(f.owner),
		Owner:       f.owner,
		Token0:      token0,
		Token1:      token1,
		Fee:         fee,
		TickSpacing: spacing,
		Ledger:      f.ledger,
		Events:      f.events,
		Now:         f.now,
	})
	if err != nil {
		return nil, err
	}
	f.pools[id] = p
	return p, nil
}

// Pool looks up an existing pool for an unordered token pair and fee.
func (f *Factory) Pool(tokenA, tokenB common.Address, fee uint32) (*Pool, bool) {
	token0, token1 := tokenA, tokenB
	if less(token1, token0) {
		token0, token1 = token1, token0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pools[PoolKey{Token0: token0, Token1: token1, Fee: fee}.ID()]
	return p, ok
}

// factoryAddress derives a stable identity for the factory from its owner.
func factoryAddress(owner common.Address) common.Address {
	h := blake3.New()
	h.Write([]byte("clamm.factory"))
	h.Write(owner.Bytes())
	var out [32]byte
	h.Digest().Read(out[:])
	var addr common.Address
	copy(addr[:], out[:20])
	return addr
}
