// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"
)

// Event is a pool state-change notification. Field values are snapshots; the
// pool does not retain references after emitting.
type Event interface {
	eventName() string
}

type InitializeEvent struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

type MintEvent struct {
	Sender               common.Address
	Owner                common.Address
	TickLower, TickUpper int32
	Amount               *uint256.Int
	Amount0, Amount1     *uint256.Int
}

type BurnEvent struct {
	Owner                common.Address
	TickLower, TickUpper int32
	Amount               *uint256.Int
	Amount0, Amount1     *uint256.Int
}

type CollectEvent struct {
	Owner                common.Address
	Recipient            common.Address
	TickLower, TickUpper int32
	Amount0, Amount1     *uint256.Int
}

type SwapEvent struct {
	Sender           common.Address
	Recipient        common.Address
	Amount0, Amount1 *big.Int
	SqrtPriceX96     *uint256.Int
	Liquidity        *uint256.Int
	Tick             int32
}

type FlashEvent struct {
	Sender           common.Address
	Recipient        common.Address
	Amount0, Amount1 *uint256.Int
	Paid0, Paid1     *uint256.Int
}

type IncreaseObservationCardinalityNextEvent struct {
	CardinalityNextOld uint16
	CardinalityNextNew uint16
}

type SetFeeProtocolEvent struct {
	FeeProtocol0Old, FeeProtocol1Old uint8
	FeeProtocol0New, FeeProtocol1New uint8
}

type CollectProtocolEvent struct {
	Sender           common.Address
	Recipient        common.Address
	Amount0, Amount1 *uint256.Int
}

func (InitializeEvent) eventName() string     { return "Initialize" }
func (MintEvent) eventName() string           { return "Mint" }
func (BurnEvent) eventName() string           { return "Burn" }
func (CollectEvent) eventName() string        { return "Collect" }
func (SwapEvent) eventName() string           { return "Swap" }
func (FlashEvent) eventName() string          { return "Flash" }
func (SetFeeProtocolEvent) eventName() string { return "SetFeeProtocol" }
func (CollectProtocolEvent) eventName() string {
	return "CollectProtocol"
}
func (IncreaseObservationCardinalityNextEvent) eventName() string {
	return "IncreaseObservationCardinalityNext"
}

// EventSink receives pool events.
type EventSink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// ZapSink logs each event as a structured record.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

func (s *ZapSink) Emit(e Event) {
	s.log.Info(e.eventName(), zap.Any("event", e))
}

// RecordingSink captures events for tests.
type RecordingSink struct {
	Events []Event
}

func (s *RecordingSink) Emit(e Event) {
	s.Events = append(s.Events, e)
}

// Last returns the most recent event with the given name, if any.
func (s *RecordingSink) Last(name string) (Event, bool) {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].eventName() == name {
			return s.Events[i], true
		}
	}
	return nil, false
}
