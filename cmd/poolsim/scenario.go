// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/luxfi/clamm/pool"
	"github.com/luxfi/clamm/tickmath"
)

// Scenario is a declarative script: a pool setup followed by a sequence of
// operations replayed in order against a simulated clock.
type Scenario struct {
	Fee         uint32 `mapstructure:"fee"`
	InitialTick int32  `mapstructure:"initial-tick"`
	Cardinality uint16 `mapstructure:"cardinality"`
	Funding     string `mapstructure:"funding"`
	Steps       []Step `mapstructure:"steps"`
}

// Step is one scripted operation. Which fields apply depends on Op.
type Step struct {
	Op    string `mapstructure:"op"`
	Actor string `mapstructure:"actor"`

	Lower  int32  `mapstructure:"lower"`
	Upper  int32  `mapstructure:"upper"`
	Amount string `mapstructure:"amount"`

	ZeroForOne bool  `mapstructure:"zero-for-one"`
	LimitTick  int32 `mapstructure:"limit-tick"`

	Amount0 string `mapstructure:"amount0"`
	Amount1 string `mapstructure:"amount1"`

	Seconds    uint32   `mapstructure:"seconds"`
	SecondsAgo []uint32 `mapstructure:"seconds-ago"`

	Fee0 uint8 `mapstructure:"fee0"`
	Fee1 uint8 `mapstructure:"fee1"`
}

func loadScenario(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("fee", pool.Fee030)
	v.SetDefault("cardinality", uint16(1))
	v.SetDefault("funding", "1000000000000000000000000000")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &sc, nil
}

type simClock struct {
	t uint32
}

func (c *simClock) now() uint32 { return c.t }

// actor settles mint, swap and flash callbacks out of its funded account.
type actor struct {
	ledger  *pool.MemLedger
	pool    *pool.Pool
	account common.Address

	// principal outstanding during a flash, set before the call
	borrow0, borrow1 *uint256.Int
}

func (a *actor) MintCallback(amount0Owed, amount1Owed *uint256.Int, _ []byte) error {
	p := a.pool
	if err := a.ledger.Transfer(p.Token0(), a.account, p.Address(), amount0Owed); err != nil {
		return err
	}
	return a.ledger.Transfer(p.Token1(), a.account, p.Address(), amount1Owed)
}

func (a *actor) SwapCallback(amount0Delta, amount1Delta *big.Int, _ []byte) error {
	p := a.pool
	if amount0Delta.Sign() > 0 {
		owed, _ := uint256.FromBig(amount0Delta)
		if err := a.ledger.Transfer(p.Token0(), a.account, p.Address(), owed); err != nil {
			return err
		}
	}
	if amount1Delta.Sign() > 0 {
		owed, _ := uint256.FromBig(amount1Delta)
		if err := a.ledger.Transfer(p.Token1(), a.account, p.Address(), owed); err != nil {
			return err
		}
	}
	return nil
}

func (a *actor) FlashCallback(fee0, fee1 *uint256.Int, _ []byte) error {
	p := a.pool
	if repay := new(uint256.Int).Add(a.borrow0, fee0); !repay.IsZero() {
		if err := a.ledger.Transfer(p.Token0(), a.account, p.Address(), repay); err != nil {
			return err
		}
	}
	if repay := new(uint256.Int).Add(a.borrow1, fee1); !repay.IsZero() {
		if err := a.ledger.Transfer(p.Token1(), a.account, p.Address(), repay); err != nil {
			return err
		}
	}
	return nil
}

func (sc *Scenario) run(logger *zap.Logger) error {
	ledger := pool.NewMemLedger()
	clock := &simClock{t: 1}
	owner := actorAddress("owner")
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000002")

	f := pool.NewFactory(owner, ledger, pool.NewZapSink(logger), clock.now)
	p, err := f.CreatePool(token0, token1, sc.Fee)
	if err != nil {
		return err
	}

	price, err := tickmath.SqrtRatioAtTick(sc.InitialTick)
	if err != nil {
		return err
	}
	if _, err := p.Initialize(price); err != nil {
		return err
	}
	if sc.Cardinality > 1 {
		if err := p.IncreaseObservationCardinalityNext(sc.Cardinality); err != nil {
			return err
		}
	}

	funding, err := uint256.FromDecimal(sc.Funding)
	if err != nil {
		return fmt.Errorf("funding: %w", err)
	}
	actors := make(map[string]*actor)
	getActor := func(name string) *actor {
		a, ok := actors[name]
		if !ok {
			a = &actor{ledger: ledger, pool: p, account: actorAddress(name)}
			ledger.Fund(token0, a.account, funding)
			ledger.Fund(token1, a.account, funding)
			actors[name] = a
		}
		return a
	}

	for i, step := range sc.Steps {
		if err := sc.apply(p, clock, getActor, owner, step, logger); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	slot0 := p.Slot0()
	logger.Info("scenario complete",
		zap.String("sqrt_price_x96", slot0.SqrtPriceX96.String()),
		zap.Int32("tick", slot0.Tick),
		zap.String("liquidity", p.Liquidity().String()),
		zap.String("fee_growth_global0_x128", p.FeeGrowthGlobal0X128().String()),
		zap.String("fee_growth_global1_x128", p.FeeGrowthGlobal1X128().String()),
		zap.String("protocol_fees0", p.ProtocolFees().Token0.String()),
		zap.String("protocol_fees1", p.ProtocolFees().Token1.String()),
	)
	return nil
}

func (sc *Scenario) apply(p *pool.Pool, clock *simClock, getActor func(string) *actor, owner common.Address, step Step, logger *zap.Logger) error {
	switch step.Op {
	case "advance":
		clock.t += step.Seconds
		logger.Debug("clock advanced", zap.Uint32("seconds", step.Seconds), zap.Uint32("now", clock.t))
		return nil

	case "mint":
		a := getActor(step.Actor)
		amount, err := uint256.FromDecimal(step.Amount)
		if err != nil {
			return err
		}
		_, _, err = p.Mint(a.account, a.account, step.Lower, step.Upper, amount, a, nil)
		return err

	case "burn":
		a := getActor(step.Actor)
		amount, err := uint256.FromDecimal(step.Amount)
		if err != nil {
			return err
		}
		_, _, err = p.Burn(a.account, step.Lower, step.Upper, amount)
		return err

	case "collect":
		a := getActor(step.Actor)
		max := new(uint256.Int).SetAllOne()
		_, _, err := p.Collect(a.account, a.account, step.Lower, step.Upper, max, new(uint256.Int).Set(max))
		return err

	case "swap":
		a := getActor(step.Actor)
		amount, ok := new(big.Int).SetString(step.Amount, 10)
		if !ok {
			return fmt.Errorf("bad swap amount %q", step.Amount)
		}
		limit, err := tickmath.SqrtRatioAtTick(step.LimitTick)
		if err != nil {
			return err
		}
		_, _, err = p.Swap(a.account, a.account, step.ZeroForOne, amount, limit, a, nil)
		return err

	case "flash":
		a := getActor(step.Actor)
		amount0, err := parseAmount(step.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(step.Amount1)
		if err != nil {
			return err
		}
		a.borrow0, a.borrow1 = amount0, amount1
		return p.Flash(a.account, a.account, amount0, amount1, a, nil)

	case "observe":
		tickCums, secondsPerLiq, err := p.Observe(step.SecondsAgo)
		if err != nil {
			return err
		}
		for i, ago := range step.SecondsAgo {
			logger.Info("observation",
				zap.Uint32("seconds_ago", ago),
				zap.Int64("tick_cumulative", tickCums[i]),
				zap.String("seconds_per_liquidity_x128", secondsPerLiq[i].String()),
			)
		}
		return nil

	case "set-fee-protocol":
		return p.SetFeeProtocol(owner, step.Fee0, step.Fee1)

	case "collect-protocol":
		max := new(uint256.Int).SetAllOne()
		_, _, err := p.CollectProtocol(owner, owner, max, new(uint256.Int).Set(max))
		return err

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(s)
}

func actorAddress(name string) common.Address {
	h := blake3.New()
	h.Write([]byte("poolsim.actor."))
	h.Write([]byte(name))
	var out [32]byte
	h.Digest().Read(out[:])
	var addr common.Address
	copy(addr[:], out[:20])
	return addr
}
