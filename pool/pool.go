// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements a concentrated-liquidity AMM pool: positions on
// tick ranges, fee accounting in Q128.128 growth accumulators, exact-in and
// exact-out swaps walking the tick bitmap, flash loans, protocol fees and a
// time-weighted observation oracle.
//
// Every mutating operation runs under the pool's reentrancy lock; a reentrant
// call from a callback fails with ErrLocked. Operations are atomic: on any
// failure the pool state is restored to the pre-call checkpoint. Token
// movements already performed by the ledger are the host's responsibility to
// unwind alongside.
package pool

import (
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/clamm/oracle"
	"github.com/luxfi/clamm/position"
	"github.com/luxfi/clamm/tickmath"
	"github.com/luxfi/clamm/ticks"
)

func wallClock() uint32 {
	return uint32(time.Now().Unix())
}

// FeeMax bounds the swap fee in hundredths of a bip.
const FeeMax uint32 = 100_000

// Protocol fee nibble window: zero disables, otherwise the protocol takes
// 1/n of swap fees with n in [FeeProtocolMin, FeeProtocolMax].
const (
	FeeProtocolMin uint8 = 4
	FeeProtocolMax uint8 = 10
)

// Slot0 groups the pool's hot state.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32

	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16

	// FeeProtocol packs the token0 fraction in the low nibble and token1 in
	// the high nibble.
	FeeProtocol uint8

	// Unlocked is false before Initialize and while an operation is running.
	Unlocked bool
}

func (s Slot0) clone() Slot0 {
	c := s
	if s.SqrtPriceX96 != nil {
		c.SqrtPriceX96 = s.SqrtPriceX96.Clone()
	}
	return c
}

// ProtocolFees accumulates the protocol's cut, collectable by the owner.
type ProtocolFees struct {
	Token0 *uint256.Int
	Token1 *uint256.Int
}

// Config assembles a pool's immutable parameters and collaborators.
type Config struct {
	Factory common.Address
	Owner   common.Address
	Token0  common.Address
	Token1  common.Address
	// Fee in hundredths of a bip, e.g. 3000 = 0.30%.
	Fee         uint32
	TickSpacing int32

	Ledger Ledger
	// Events defaults to NopSink.
	Events EventSink
	// Now supplies the current time as a truncated uint32; defaults to the
	// wall clock.
	Now func() uint32
}

// Pool is one (token0, token1, fee) market.
type Pool struct {
	factory             common.Address
	owner               common.Address
	token0, token1      common.Address
	fee                 uint32
	tickSpacing         int32
	maxLiquidityPerTick *uint256.Int
	address             common.Address

	ledger Ledger
	events EventSink
	now    func() uint32

	// mu only guards the Unlocked check-and-set so that a reentrant call
	// fails fast instead of deadlocking inside its own callback.
	mu sync.Mutex

	slot0                Slot0
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees         ProtocolFees
	liquidity            *uint256.Int

	ticks        *ticks.Table
	tickBitmap   *ticks.Bitmap
	positions    *position.Table
	observations *oracle.Ring
}

// New validates the config and returns an uninitialized pool. All operations
// fail with ErrLocked until Initialize sets the starting price.
func New(cfg Config) (*Pool, error) {
	if !less(cfg.Token0, cfg.Token1) {
		return nil, ErrTokenOrder
	}
	if cfg.Fee > FeeMax {
		return nil, ErrFee
	}
	if cfg.TickSpacing <= 0 || cfg.TickSpacing >= 16384 {
		return nil, ErrTickSpacing
	}
	events := cfg.Events
	if events == nil {
		events = NopSink{}
	}
	now := cfg.Now
	if now == nil {
		now = wallClock
	}
	return &Pool{
		factory:             cfg.Factory,
		owner:               cfg.Owner,
		token0:              cfg.Token0,
		token1:              cfg.Token1,
		fee:                 cfg.Fee,
		tickSpacing:         cfg.TickSpacing,
		maxLiquidityPerTick: tickmath.MaxLiquidityPerTick(cfg.TickSpacing),
		address:             deriveAddress(cfg.Token0, cfg.Token1, cfg.Fee),
		ledger:              cfg.Ledger,
		events:              events,
		now:                 now,

		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		protocolFees:         ProtocolFees{Token0: new(uint256.Int), Token1: new(uint256.Int)},
		liquidity:            new(uint256.Int),
		ticks:                ticks.NewTable(),
		tickBitmap:           ticks.NewBitmap(),
		positions:            position.NewTable(),
		observations:         oracle.NewRing(),
	}, nil
}

func less(a, b common.Address) bool {
	return a.Cmp(b) < 0
}

func deriveAddress(token0, token1 common.Address, fee uint32) common.Address {
	id := PoolKey{Token0: token0, Token1: token1, Fee: fee}.ID()
	var addr common.Address
	copy(addr[:], id[:20])
	return addr
}

// Initialize sets the starting price and unlocks the pool.
func (p *Pool) Initialize(sqrtPriceX96 *uint256.Int) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slot0.SqrtPriceX96 != nil {
		return 0, ErrAlreadyInitialized
	}
	tick, err := tickmath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	cardinality, cardinalityNext := p.observations.Initialize(p.now())
	p.slot0 = Slot0{
		SqrtPriceX96:               sqrtPriceX96.Clone(),
		Tick:                       tick,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
		Unlocked:                   true,
	}
	p.events.Emit(InitializeEvent{SqrtPriceX96: sqrtPriceX96.Clone(), Tick: tick})
	return tick, nil
}

// lock enters the reentrancy guard.
func (p *Pool) lock() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.slot0.Unlocked {
		return ErrLocked
	}
	p.slot0.Unlocked = false
	return nil
}

func (p *Pool) unlock() {
	p.mu.Lock()
	p.slot0.Unlocked = true
	p.mu.Unlock()
}

// checkpoint snapshots all mutable state; restore rolls back to it. Taken
// after the lock so the Unlocked flag is not part of the snapshot semantics.
type checkpoint struct {
	slot0                Slot0
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees         ProtocolFees
	liquidity            *uint256.Int
	ticks                *ticks.Table
	tickBitmap           *ticks.Bitmap
	positions            *position.Table
	observations         *oracle.Ring
}

func (p *Pool) snapshot() *checkpoint {
	return &checkpoint{
		slot0:                p.slot0.clone(),
		feeGrowthGlobal0X128: p.feeGrowthGlobal0X128.Clone(),
		feeGrowthGlobal1X128: p.feeGrowthGlobal1X128.Clone(),
		protocolFees:         ProtocolFees{Token0: p.protocolFees.Token0.Clone(), Token1: p.protocolFees.Token1.Clone()},
		liquidity:            p.liquidity.Clone(),
		ticks:                p.ticks.Clone(),
		tickBitmap:           p.tickBitmap.Clone(),
		positions:            p.positions.Clone(),
		observations:         p.observations.Clone(),
	}
}

func (p *Pool) restore(c *checkpoint) {
	p.slot0 = c.slot0
	p.feeGrowthGlobal0X128 = c.feeGrowthGlobal0X128
	p.feeGrowthGlobal1X128 = c.feeGrowthGlobal1X128
	p.protocolFees = c.protocolFees
	p.liquidity = c.liquidity
	p.ticks = c.ticks
	p.tickBitmap = c.tickBitmap
	p.positions = c.positions
	p.observations = c.observations
}

func (p *Pool) balance0() *uint256.Int {
	return p.ledger.BalanceOf(p.token0, p.address)
}

func (p *Pool) balance1() *uint256.Int {
	return p.ledger.BalanceOf(p.token1, p.address)
}

// checkTicks validates a position range.
func checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return ErrTickLowerGTUpper
	}
	if tickLower < tickmath.MinTick {
		return ErrTickLowerTooSmall
	}
	if tickUpper > tickmath.MaxTick {
		return ErrTickUpperTooLarge
	}
	return nil
}

// ---------------------------------------------------------------------------
// Owner operations
// ---------------------------------------------------------------------------

// SetFeeProtocol sets the protocol's fraction of swap fees per token.
func (p *Pool) SetFeeProtocol(sender common.Address, feeProtocol0, feeProtocol1 uint8) error {
	if sender != p.owner {
		return ErrNotOwner
	}
	if !validFeeProtocol(feeProtocol0) || !validFeeProtocol(feeProtocol1) {
		return ErrFeeProtocol
	}
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	old := p.slot0.FeeProtocol
	p.slot0.FeeProtocol = feeProtocol0 + (feeProtocol1 << 4)
	p.events.Emit(SetFeeProtocolEvent{
		FeeProtocol0Old: old % 16, FeeProtocol1Old: old >> 4,
		FeeProtocol0New: feeProtocol0, FeeProtocol1New: feeProtocol1,
	})
	return nil
}

func validFeeProtocol(v uint8) bool {
	return v == 0 || (v >= FeeProtocolMin && v <= FeeProtocolMax)
}

// CollectProtocol pays out accrued protocol fees, leaving one unit behind per
// side when fully drained.
func (p *Pool) CollectProtocol(sender, recipient common.Address, amount0Requested, amount1Requested *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if sender != p.owner {
		return nil, nil, ErrNotOwner
	}
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()
	cp := p.snapshot()

	amount0 := minU256(amount0Requested, p.protocolFees.Token0)
	amount1 := minU256(amount1Requested, p.protocolFees.Token1)

	if !amount0.IsZero() {
		if amount0.Eq(p.protocolFees.Token0) {
			amount0.SubUint64(amount0, 1)
		}
		p.protocolFees.Token0.Sub(p.protocolFees.Token0, amount0)
		if err := p.ledger.Transfer(p.token0, p.address, recipient, amount0); err != nil {
			p.restore(cp)
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		if amount1.Eq(p.protocolFees.Token1) {
			amount1.SubUint64(amount1, 1)
		}
		p.protocolFees.Token1.Sub(p.protocolFees.Token1, amount1)
		if err := p.ledger.Transfer(p.token1, p.address, recipient, amount1); err != nil {
			p.restore(cp)
			return nil, nil, err
		}
	}

	p.events.Emit(CollectProtocolEvent{Sender: sender, Recipient: recipient, Amount0: amount0.Clone(), Amount1: amount1.Clone()})
	return amount0, amount1, nil
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// ---------------------------------------------------------------------------
// Oracle operations
// ---------------------------------------------------------------------------

// IncreaseObservationCardinalityNext grows the observation ring target.
func (p *Pool) IncreaseObservationCardinalityNext(observationCardinalityNext uint16) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	old := p.slot0.ObservationCardinalityNext
	updated := p.observations.Grow(old, observationCardinalityNext)
	p.slot0.ObservationCardinalityNext = updated
	if old != updated {
		p.events.Emit(IncreaseObservationCardinalityNextEvent{CardinalityNextOld: old, CardinalityNextNew: updated})
	}
	return nil
}

// Observe returns the cumulative tick and seconds-per-liquidity for each
// requested age.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, []*uint256.Int, error) {
	return p.observations.Observe(
		p.now(), secondsAgos, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
}

// SnapshotCumulativesInside reports the cumulative tick, seconds-per-
// liquidity and seconds spent inside a range. Both bounds must be
// initialized; snapshots are only comparable while the range has liquidity.
func (p *Pool) SnapshotCumulativesInside(tickLower, tickUpper int32) (int64, *uint256.Int, uint32, error) {
	if err := checkTicks(tickLower, tickUpper); err != nil {
		return 0, nil, 0, err
	}
	lower, lok := p.ticks.Peek(tickLower)
	upper, uok := p.ticks.Peek(tickUpper)
	if !lok || !uok {
		return 0, nil, 0, ErrUninitializedTick
	}

	switch {
	case p.slot0.Tick < tickLower:
		spl := new(uint256.Int).Sub(lower.SecondsPerLiquidityOutsideX128, upper.SecondsPerLiquidityOutsideX128)
		return lower.TickCumulativeOutside - upper.TickCumulativeOutside,
			spl,
			lower.SecondsOutside - upper.SecondsOutside,
			nil
	case p.slot0.Tick < tickUpper:
		time := p.now()
		tickCumulative, spl, err := p.observations.ObserveSingle(
			time, 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
		if err != nil {
			return 0, nil, 0, err
		}
		spl.Sub(spl, lower.SecondsPerLiquidityOutsideX128)
		spl.Sub(spl, upper.SecondsPerLiquidityOutsideX128)
		return tickCumulative - lower.TickCumulativeOutside - upper.TickCumulativeOutside,
			spl,
			time - lower.SecondsOutside - upper.SecondsOutside,
			nil
	default:
		spl := new(uint256.Int).Sub(upper.SecondsPerLiquidityOutsideX128, lower.SecondsPerLiquidityOutsideX128)
		return upper.TickCumulativeOutside - lower.TickCumulativeOutside,
			spl,
			upper.SecondsOutside - lower.SecondsOutside,
			nil
	}
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() common.Address  { return p.token0 }
func (p *Pool) Token1() common.Address  { return p.token1 }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int32      { return p.tickSpacing }

func (p *Pool) MaxLiquidityPerTick() *uint256.Int { return p.maxLiquidityPerTick.Clone() }

// Slot0 returns a copy of the hot state.
func (p *Pool) Slot0() Slot0 { return p.slot0.clone() }

// Liquidity is the currently in-range liquidity.
func (p *Pool) Liquidity() *uint256.Int { return p.liquidity.Clone() }

func (p *Pool) FeeGrowthGlobal0X128() *uint256.Int { return p.feeGrowthGlobal0X128.Clone() }
func (p *Pool) FeeGrowthGlobal1X128() *uint256.Int { return p.feeGrowthGlobal1X128.Clone() }

func (p *Pool) ProtocolFees() ProtocolFees {
	return ProtocolFees{Token0: p.protocolFees.Token0.Clone(), Token1: p.protocolFees.Token1.Clone()}
}

// Position returns a copy of a position's state.
func (p *Pool) Position(owner common.Address, tickLower, tickUpper int32) position.Info {
	info, _ := p.positions.Peek(owner, tickLower, tickUpper)
	return position.Info{
		Liquidity:                info.Liquidity.Clone(),
		FeeGrowthInside0LastX128: info.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: info.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              info.TokensOwed0.Clone(),
		TokensOwed1:              info.TokensOwed1.Clone(),
	}
}

// Tick returns a copy of a tick's state and whether it is initialized.
func (p *Pool) Tick(tick int32) (ticks.Info, bool) {
	info, ok := p.ticks.Peek(tick)
	return ticks.Info{
		LiquidityGross:                 info.LiquidityGross.Clone(),
		LiquidityNet:                   new(big.Int).Set(info.LiquidityNet),
		FeeGrowthOutside0X128:          info.FeeGrowthOutside0X128.Clone(),
		FeeGrowthOutside1X128:          info.FeeGrowthOutside1X128.Clone(),
		TickCumulativeOutside:          info.TickCumulativeOutside,
		SecondsPerLiquidityOutsideX128: info.SecondsPerLiquidityOutsideX128.Clone(),
		SecondsOutside:                 info.SecondsOutside,
		Initialized:                    info.Initialized,
	}, ok
}
