// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ticks

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var ErrUnspacedTick = errors.New("tick not a multiple of spacing")

// Bitmap indexes initialized ticks as set bits in 256-bit words. Ticks are
// first compressed by the pool's tick spacing; word w covers compressed
// positions [w*256, w*256+255].
type Bitmap struct {
	words map[int16]*uint256.Int
}

func NewBitmap() *Bitmap {
	return &Bitmap{words: make(map[int16]*uint256.Int)}
}

// compress floors tick/spacing toward negative infinity.
func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		c--
	}
	return c
}

func wordBit(compressed int32) (int16, uint) {
	return int16(compressed >> 8), uint(compressed & 255)
}

// Flip toggles the initialized state of tick, which must be spaced.
func (b *Bitmap) Flip(tick, spacing int32) error {
	if tick%spacing != 0 {
		return ErrUnspacedTick
	}
	wordPos, bit := wordBit(tick / spacing)
	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	mask := new(uint256.Int).Lsh(one, bit)
	word.Xor(word, mask)
	if word.IsZero() {
		delete(b.words, wordPos)
	}
	return nil
}

// NextInitializedTickWithinOneWord scans at most one 256-bit word for an
// initialized tick. With lte it searches at or below tick (word boundary
// returned uninitialized if the word is empty past the position); otherwise
// strictly above tick.
func (b *Bitmap) NextInitializedTickWithinOneWord(tick, spacing int32, lte bool) (int32, bool) {
	compressed := compress(tick, spacing)

	if lte {
		wordPos, bit := wordBit(compressed)
		// bits at or below the current position
		mask := new(uint256.Int).Lsh(one, bit+1)
		mask.SubUint64(mask, 1) // bit 255 wraps Lsh to zero; wrapping sub still yields all ones
		masked := b.maskedWord(wordPos, mask)
		if !masked.IsZero() {
			return (compressed - int32(bit-msb(masked))) * spacing, true
		}
		return (compressed - int32(bit)) * spacing, false
	}

	// search starts one position above
	compressed++
	wordPos, bit := wordBit(compressed)
	// bits at or above the current position
	low := new(uint256.Int).Lsh(one, bit)
	low.SubUint64(low, 1)
	mask := low.Not(low)
	masked := b.maskedWord(wordPos, mask)
	if !masked.IsZero() {
		return (compressed + int32(lsb(masked)-bit)) * spacing, true
	}
	return (compressed + int32(255-bit)) * spacing, false
}

func (b *Bitmap) maskedWord(wordPos int16, mask *uint256.Int) *uint256.Int {
	word, ok := b.words[wordPos]
	if !ok {
		return new(uint256.Int)
	}
	return mask.And(mask, word)
}

// Clone deep-copies the bitmap for checkpointing.
func (b *Bitmap) Clone() *Bitmap {
	c := NewBitmap()
	for w, v := range b.words {
		c.words[w] = v.Clone()
	}
	return c
}

var one = uint256.NewInt(1)

func msb(x *uint256.Int) uint {
	for i := 3; i >= 0; i-- {
		if x[i] != 0 {
			return uint(i*64 + 63 - bits.LeadingZeros64(x[i]))
		}
	}
	return 0
}

func lsb(x *uint256.Int) uint {
	for i := 0; i < 4; i++ {
		if x[i] != 0 {
			return uint(i*64 + bits.TrailingZeros64(x[i]))
		}
	}
	return 0
}
