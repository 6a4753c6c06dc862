// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/clamm/fullmath"
	"github.com/luxfi/clamm/swapmath"
)

// FlashCallback repays a flash loan: the borrowed amounts plus the quoted
// fees must be back in the pool before it returns.
type FlashCallback interface {
	FlashCallback(fee0, fee1 *uint256.Int, data []byte) error
}

// Flash lends amount0/amount1 for the duration of the callback. Fees on the
// borrowed amounts accrue to in-range liquidity, with the protocol's share
// carved out first; overpayment accrues the same way.
func (p *Pool) Flash(sender, recipient common.Address, amount0, amount1 *uint256.Int, cb FlashCallback, data []byte) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()
	if p.liquidity.IsZero() {
		return ErrNoLiquidity
	}
	cp := p.snapshot()

	fee0, err := flashFee(amount0, p.fee)
	if err != nil {
		return err
	}
	fee1, err := flashFee(amount1, p.fee)
	if err != nil {
		return err
	}

	balance0Before := p.balance0()
	balance1Before := p.balance1()

	if !amount0.IsZero() {
		if err := p.ledger.Transfer(p.token0, p.address, recipient, amount0); err != nil {
			p.restore(cp)
			return err
		}
	}
	if !amount1.IsZero() {
		if err := p.ledger.Transfer(p.token1, p.address, recipient, amount1); err != nil {
			p.restore(cp)
			return err
		}
	}

	if err := cb.FlashCallback(fee0.Clone(), fee1.Clone(), data); err != nil {
		p.restore(cp)
		return fmt.Errorf("flash callback: %w", err)
	}

	balance0After := p.balance0()
	balance1After := p.balance1()
	if balance0After.Lt(new(uint256.Int).Add(balance0Before, fee0)) {
		p.restore(cp)
		return ErrFlash0
	}
	if balance1After.Lt(new(uint256.Int).Add(balance1Before, fee1)) {
		p.restore(cp)
		return ErrFlash1
	}

	// whatever came back beyond the principal is fee income
	paid0 := new(uint256.Int).Sub(balance0After, balance0Before)
	paid1 := new(uint256.Int).Sub(balance1After, balance1Before)

	feeProtocol0 := p.slot0.FeeProtocol % 16
	feeProtocol1 := p.slot0.FeeProtocol >> 4
	if !paid0.IsZero() {
		if feeProtocol0 > 0 {
			delta := new(uint256.Int).Div(paid0, uint256.NewInt(uint64(feeProtocol0)))
			p.protocolFees.Token0.Add(p.protocolFees.Token0, delta)
			paid0.Sub(paid0, delta)
		}
		growth, err := fullmath.MulDiv(paid0, fullmath.Q128, p.liquidity)
		if err != nil {
			p.restore(cp)
			return err
		}
		p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth)
	}
	if !paid1.IsZero() {
		if feeProtocol1 > 0 {
			delta := new(uint256.Int).Div(paid1, uint256.NewInt(uint64(feeProtocol1)))
			p.protocolFees.Token1.Add(p.protocolFees.Token1, delta)
			paid1.Sub(paid1, delta)
		}
		growth, err := fullmath.MulDiv(paid1, fullmath.Q128, p.liquidity)
		if err != nil {
			p.restore(cp)
			return err
		}
		p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth)
	}

	p.events.Emit(FlashEvent{
		Sender: sender, Recipient: recipient,
		Amount0: amount0.Clone(), Amount1: amount1.Clone(),
		Paid0: paid0.Clone(), Paid1: paid1.Clone(),
	})
	return nil
}

// flashFee is ceil(amount * fee / 1e6).
func flashFee(amount *uint256.Int, feePips uint32) (*uint256.Int, error) {
	return fullmath.MulDivRoundingUp(amount, uint256.NewInt(uint64(feePips)), uint256.NewInt(swapmath.FeeDenominator))
}
