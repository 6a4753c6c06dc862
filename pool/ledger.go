// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Ledger is the token boundary. The pool never moves balances itself; it
// reads its own balance to verify payments and instructs transfers out. A
// failed transfer aborts the containing operation.
type Ledger interface {
	BalanceOf(token, account common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
}

var ErrInsufficientBalance = errors.New("insufficient balance")

// MemLedger is an in-memory Ledger for tests and the simulator.
type MemLedger struct {
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (l *MemLedger) account(token, account common.Address) *uint256.Int {
	m, ok := l.balances[token]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		l.balances[token] = m
	}
	b, ok := m[account]
	if !ok {
		b = new(uint256.Int)
		m[account] = b
	}
	return b
}

// Fund credits an account, creating it if needed.
func (l *MemLedger) Fund(token, account common.Address, amount *uint256.Int) {
	b := l.account(token, account)
	b.Add(b, amount)
}

func (l *MemLedger) BalanceOf(token, account common.Address) *uint256.Int {
	return l.account(token, account).Clone()
}

func (l *MemLedger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromBal := l.account(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: token %s account %s", ErrInsufficientBalance, token, from)
	}
	fromBal.Sub(fromBal, amount)
	toBal := l.account(token, to)
	toBal.Add(toBal, amount)
	return nil
}
