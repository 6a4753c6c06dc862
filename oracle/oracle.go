// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle maintains the ring of price observations a pool writes as
// its tick moves, and answers cumulative queries against it.
//
// Timestamps are uint32 and wrap; every comparison goes through a wrap-aware
// ordering normalized to the current time, so the ring stays correct across
// the 2^32 boundary as long as observations span less than 2^32 seconds.
package oracle

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrNotInitialized = errors.New("I")   // ring has no observations yet
	ErrTargetTooOld   = errors.New("OLD") // target predates the oldest observation
)

// Observation is one ring entry.
type Observation struct {
	BlockTimestamp uint32
	// TickCumulative is the tick integrated over seconds since pool init.
	TickCumulative int64
	// SecondsPerLiquidityCumulativeX128 integrates 1/liquidity seconds,
	// wrapping mod 2^160 territory is tolerated by consumers taking deltas.
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	Initialized                       bool
}

func zeroObservation() Observation {
	return Observation{SecondsPerLiquidityCumulativeX128: new(uint256.Int)}
}

func (o Observation) clone() Observation {
	c := o
	c.SecondsPerLiquidityCumulativeX128 = o.SecondsPerLiquidityCumulativeX128.Clone()
	return c
}

// transform projects an observation forward to blockTimestamp under a
// constant tick and liquidity.
func transform(last Observation, blockTimestamp uint32, tick int32, liquidity *uint256.Int) Observation {
	delta := blockTimestamp - last.BlockTimestamp
	denom := liquidity
	if denom.IsZero() {
		denom = oneLiquidity
	}
	splDelta := new(uint256.Int).Lsh(uint256.NewInt(uint64(delta)), 128)
	splDelta.Div(splDelta, denom)
	return Observation{
		BlockTimestamp:                    blockTimestamp,
		TickCumulative:                    last.TickCumulative + int64(tick)*int64(delta),
		SecondsPerLiquidityCumulativeX128: splDelta.Add(splDelta, last.SecondsPerLiquidityCumulativeX128),
		Initialized:                       true,
	}
}

var oneLiquidity = uint256.NewInt(1)

// Ring is the observation buffer. Slots beyond the current cardinality are
// allocated by Grow and activated lazily by Write.
type Ring struct {
	obs []Observation
}

func NewRing() *Ring {
	return &Ring{obs: []Observation{zeroObservation()}}
}

// Initialize writes the first observation and returns the initial cardinality
// and next cardinality, both 1.
func (r *Ring) Initialize(time uint32) (uint16, uint16) {
	r.obs[0] = Observation{
		BlockTimestamp:                    time,
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Initialized:                       true,
	}
	return 1, 1
}

// Grow raises the next cardinality, allocating slots eagerly. Returns the
// effective next cardinality (no-op when next is not an increase).
func (r *Ring) Grow(current, next uint16) uint16 {
	if current == 0 {
		return 0 // not initialized
	}
	if next <= current {
		return current
	}
	for len(r.obs) < int(next) {
		r.obs = append(r.obs, zeroObservation())
	}
	return next
}

// Write appends an observation for blockTimestamp. Writes in the same second
// as the last observation are ignored. Cardinality advances to the grown
// target only when the write lands on the final slot of the current ring.
func (r *Ring) Write(index uint16, blockTimestamp uint32, tick int32, liquidity *uint256.Int, cardinality, cardinalityNext uint16) (uint16, uint16) {
	last := r.obs[index]
	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality
	}

	cardinalityUpdated := cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	}
	indexUpdated := (index + 1) % cardinalityUpdated
	r.obs[indexUpdated] = transform(last, blockTimestamp, tick, liquidity)
	return indexUpdated, cardinalityUpdated
}

// lte orders two wrapped timestamps relative to the current time.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdj := uint64(a)
	if a <= time {
		aAdj += 1 << 32
	}
	bAdj := uint64(b)
	if b <= time {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

// binarySearch finds the observations bracketing target. The target is known
// to be within the recorded range and the ring fully initialized between the
// oldest and newest entries.
func (r *Ring) binarySearch(time, target uint32, index, cardinality uint16) (Observation, Observation) {
	l := (uint32(index) + 1) % uint32(cardinality) // oldest
	rr := l + uint32(cardinality) - 1              // newest

	var beforeOrAt, atOrAfter Observation
	for {
		i := (l + rr) / 2
		beforeOrAt = r.obs[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter = r.obs[(i+1)%uint32(cardinality)]
		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			rr = i - 1
		} else {
			l = i + 1
		}
	}
}

// surrounding returns the observations at or before and at or after target,
// synthesizing the upper one from current state when the target is newer
// than the last write.
func (r *Ring) surrounding(time, target uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (Observation, Observation, error) {
	beforeOrAt := r.obs[index]
	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, Observation{}, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	beforeOrAt = r.obs[(index+1)%cardinality]
	if !beforeOrAt.Initialized {
		beforeOrAt = r.obs[0]
	}
	if !lte(time, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrTargetTooOld
	}
	before, after := r.binarySearch(time, target, index, cardinality)
	return before, after, nil
}

// ObserveSingle returns the cumulative tick and seconds-per-liquidity as of
// secondsAgo before time, interpolating between observations or extrapolating
// from the newest one under the current tick and liquidity.
func (r *Ring) ObserveSingle(time, secondsAgo uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (int64, *uint256.Int, error) {
	if cardinality == 0 {
		return 0, nil, ErrNotInitialized
	}
	if secondsAgo == 0 {
		last := r.obs[index]
		if last.BlockTimestamp != time {
			last = transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, last.SecondsPerLiquidityCumulativeX128.Clone(), nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := r.surrounding(time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case beforeOrAt.BlockTimestamp == target:
		return beforeOrAt.TickCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128.Clone(), nil
	case atOrAfter.BlockTimestamp == target:
		return atOrAfter.TickCumulative, atOrAfter.SecondsPerLiquidityCumulativeX128.Clone(), nil
	default:
		// interpolate between the two
		obsDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
		targetDelta := target - beforeOrAt.BlockTimestamp
		tickCumulative := beforeOrAt.TickCumulative +
			(atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/int64(obsDelta)*int64(targetDelta)
		splDelta := new(uint256.Int).Sub(atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128)
		splDelta.Mul(splDelta, uint256.NewInt(uint64(targetDelta)))
		splDelta.Div(splDelta, uint256.NewInt(uint64(obsDelta)))
		return tickCumulative, splDelta.Add(splDelta, beforeOrAt.SecondsPerLiquidityCumulativeX128), nil
	}
}

// Observe runs ObserveSingle for each entry of secondsAgos.
func (r *Ring) Observe(time uint32, secondsAgos []uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) ([]int64, []*uint256.Int, error) {
	tickCumulatives := make([]int64, len(secondsAgos))
	spls := make([]*uint256.Int, len(secondsAgos))
	for i, ago := range secondsAgos {
		var err error
		tickCumulatives[i], spls[i], err = r.ObserveSingle(time, ago, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
	}
	return tickCumulatives, spls, nil
}

// Clone deep-copies the ring for checkpointing.
func (r *Ring) Clone() *Ring {
	c := &Ring{obs: make([]Observation, len(r.obs))}
	for i, o := range r.obs {
		c.obs[i] = o.clone()
	}
	return c
}
