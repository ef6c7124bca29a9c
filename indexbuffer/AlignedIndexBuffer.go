/*
Copyright 2025-2026 Juh9870
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package indexbuffer provides the bit-packed slot id buffers backing a
// palette compressed container.
//
// Both implementations pack indices LSB first into 64 bit words and never
// let an index straddle a word boundary. AlignedIndexBuffer stores at the
// exact requested width, FastIndexBuffer rounds the width up to a power of
// two for cheaper position addressing.
package indexbuffer

import (
	"fmt"
	"unsafe"

	palettevec "github.com/juh9870/palettevec-go"
)

// AlignedIndexBuffer packs indices at the exact width requested, in [0, 63]
// bits. floor(64/width) indices share a word; the trailing bits of each word
// are unused. This costs a few percent of memory over straddling layouts in
// exchange for a single word load per access.
type AlignedIndexBuffer struct {
	indexSize      int
	indicesPerWord int
	mask           uint64
	length         int
	storage        []uint64
}

// NewAlignedIndexBuffer creates an empty buffer at width 0
func NewAlignedIndexBuffer() *AlignedIndexBuffer {
	return &AlignedIndexBuffer{}
}

func (this *AlignedIndexBuffer) setIndexWithIndexSize(offset, indexSize int, index uint64) {
	indicesPerWord := 64 / indexSize
	shift := uint((offset % indicesPerWord) * indexSize)
	mask := uint64(1)<<uint(indexSize) - 1
	target := &this.storage[offset/indicesPerWord]
	*target = (*target &^ (mask << shift)) | (index << shift)
}

func (this *AlignedIndexBuffer) getIndexWithIndexSize(offset, indexSize int) uint64 {
	indicesPerWord := 64 / indexSize
	shift := uint((offset % indicesPerWord) * indexSize)
	mask := uint64(1)<<uint(indexSize) - 1
	return (this.storage[offset/indicesPerWord] >> shift) & mask
}

// Zeroed discards the contents and fills the buffer with length 0-indices.
// At width 0 only the length is set and no word is stored.
func (this *AlignedIndexBuffer) Zeroed(length int) {
	if this.indexSize == 0 {
		this.storage = this.storage[:0]
		this.length = length
		return
	}

	needed := (length + this.indicesPerWord - 1) / this.indicesPerWord

	if cap(this.storage) >= needed {
		this.storage = this.storage[:needed]
	} else {
		this.storage = make([]uint64, needed)
	}

	for i := range this.storage {
		this.storage[i] = 0
	}

	this.length = length
}

// Clear resets the buffer to width 0, length 0. Capacity is kept.
func (this *AlignedIndexBuffer) Clear() {
	this.indexSize = 0
	this.indicesPerWord = 0
	this.mask = 0
	this.length = 0
	this.storage = this.storage[:0]
}

// Len returns the number of indices in the buffer
func (this *AlignedIndexBuffer) Len() int {
	return this.length
}

// IsEmpty returns true when the buffer holds no indices
func (this *AlignedIndexBuffer) IsEmpty() bool {
	return this.length == 0
}

// IndexSize returns the current width in bits
func (this *AlignedIndexBuffer) IndexSize() int {
	return this.indexSize
}

// SetIndexSize changes the width in place. Widening rewrites positions from
// last to first so the in-place updates never collide, narrowing rewrites
// from first to last. renumber, if non nil, maps every live slot id to its
// replacement during the rewrite. Panics if newSize is outside [0, 63] or
// the renumber map is missing a live id.
func (this *AlignedIndexBuffer) SetIndexSize(newSize int, renumber map[uint64]uint64) {
	if newSize < 0 || newSize > palettevec.MAX_INDEX_SIZE {
		panic(fmt.Errorf("Invalid index size: %d (must be in [0..%d])", newSize, palettevec.MAX_INDEX_SIZE))
	}

	if newSize == 0 && this.indexSize == 0 {
		return
	}

	if newSize > this.indexSize {
		// Width grew, grow storage and rewrite back to front. Every write
		// lands at or past the word its position occupied at the old width,
		// so going backwards keeps unread positions intact.
		newIndicesPerWord := 64 / newSize
		needed := (this.length + newIndicesPerWord - 1) / newIndicesPerWord

		for len(this.storage) < needed {
			this.storage = append(this.storage, 0)
		}

		for i := this.length - 1; i >= 0; i-- {
			index := this.getIndexAt(i)

			if renumber != nil {
				index = this.renumbered(renumber, index)
			}

			this.setIndexWithIndexSize(i, newSize, index)
		}
	} else if newSize < this.indexSize {
		if newSize == 0 {
			// Only a uniform sequence narrows to width 0, the renumber map
			// can only contain old -> 0. Storage is released.
			this.indexSize = 0
			this.indicesPerWord = 0
			this.mask = 0
			this.storage = this.storage[:0]
			return
		}

		// Width shrank, rewrite front to back. Each rewrite uses strictly
		// fewer bits than the position held before, so in-place is safe.
		for i := 0; i < this.length; i++ {
			index := this.getIndexAt(i)

			if renumber != nil {
				index = this.renumbered(renumber, index)
			}

			this.setIndexWithIndexSize(i, newSize, index)
		}

		newIndicesPerWord := 64 / newSize
		needed := (this.length + newIndicesPerWord - 1) / newIndicesPerWord
		this.storage = this.storage[:needed]
	} else if renumber != nil {
		// Width unchanged, apply the renumbering in a single pass
		for i := 0; i < this.length; i++ {
			this.setIndexWithIndexSize(i, this.indexSize, this.renumbered(renumber, this.getIndexAt(i)))
		}
	}

	this.indexSize = newSize
	this.indicesPerWord = 64 / newSize
	this.mask = uint64(1)<<uint(newSize) - 1
}

// getIndexAt reads a position at the buffer's current width, including
// width 0
func (this *AlignedIndexBuffer) getIndexAt(offset int) uint64 {
	if this.indexSize == 0 {
		return 0
	}

	return this.getIndexWithIndexSize(offset, this.indexSize)
}

func (this *AlignedIndexBuffer) renumbered(renumber map[uint64]uint64, index uint64) uint64 {
	newIndex, ok := renumber[index]

	if !ok {
		panic(fmt.Errorf("Renumber map is missing slot %d", index))
	}

	return newIndex
}

// SetIndex writes index at offset and returns the previous value. Must not
// be called at width 0, the caller handles the uniform case one abstraction
// level above.
func (this *AlignedIndexBuffer) SetIndex(offset int, index uint64) uint64 {
	if this.indexSize == 0 {
		panic(fmt.Errorf("SetIndex called at index size 0"))
	}

	old := this.getIndexWithIndexSize(offset, this.indexSize)
	this.setIndexWithIndexSize(offset, this.indexSize, index)
	return old
}

// GetIndex returns the index stored at offset. At width 0 every position
// reads as 0.
func (this *AlignedIndexBuffer) GetIndex(offset int) uint64 {
	return this.getIndexAt(offset)
}

// PushIndex appends an index. index must fit the current width.
func (this *AlignedIndexBuffer) PushIndex(index uint64) {
	if this.indexSize == 0 {
		this.length++
		return
	}

	// A fresh word starts with the new index in its low bits
	if this.length%this.indicesPerWord == 0 {
		this.storage = append(this.storage, index)
		this.length++
		return
	}

	this.length++
	this.setIndexWithIndexSize(this.length-1, this.indexSize, index)
}

// PopIndex removes and returns the last index. The trailing word is freed
// when its last occupied slot is consumed.
func (this *AlignedIndexBuffer) PopIndex() (uint64, bool) {
	if this.length == 0 {
		return 0, false
	}

	if this.indexSize == 0 {
		this.length--
		return 0, true
	}

	index := this.getIndexWithIndexSize(this.length-1, this.indexSize)
	this.length--

	if this.length%this.indicesPerWord == 0 {
		this.storage = this.storage[:len(this.storage)-1]
	}

	return index, true
}

// Resize shrinks or grows the buffer to newLength. Shrinking returns the
// multiset of dropped slot ids, growing appends copies of fill and returns
// the number added. From an empty buffer with fill 0 it acts as Zeroed.
func (this *AlignedIndexBuffer) Resize(newLength int, fill uint64) (map[uint64]uint32, int) {
	if this.length == 0 && fill == 0 {
		this.Zeroed(newLength)
		return nil, newLength
	}

	if newLength < this.length {
		removed := make(map[uint64]uint32)

		for newLength < this.length {
			index, _ := this.PopIndex()
			removed[index]++
		}

		return removed, 0
	}

	if newLength > this.length {
		added := newLength - this.length

		for this.length < newLength {
			this.PushIndex(fill)
		}

		return nil, added
	}

	return nil, 0
}

// Iter returns a positional iterator. The word load is amortized across all
// indices sharing the word.
func (this *AlignedIndexBuffer) Iter() palettevec.IndexIterator {
	return &AlignedIndexIterator{buffer: this}
}

// Words exposes the backing word array for serialization
func (this *AlignedIndexBuffer) Words() []uint64 {
	return this.storage
}

// Restore replaces the buffer state with a deserialized one. The buffer
// takes ownership of words.
func (this *AlignedIndexBuffer) Restore(indexSize int, length int, words []uint64) {
	if indexSize < 0 || indexSize > palettevec.MAX_INDEX_SIZE {
		panic(fmt.Errorf("Invalid index size: %d (must be in [0..%d])", indexSize, palettevec.MAX_INDEX_SIZE))
	}

	this.indexSize = indexSize
	this.length = length
	this.storage = words

	if indexSize == 0 {
		this.indicesPerWord = 0
		this.mask = 0
		this.storage = this.storage[:0]
		return
	}

	this.indicesPerWord = 64 / indexSize
	this.mask = uint64(1)<<uint(indexSize) - 1
}

// MemoryUsage reports the buffer footprint
func (this *AlignedIndexBuffer) MemoryUsage() palettevec.MemoryUsage {
	return palettevec.MemoryUsage{
		Stack:         int(unsafe.Sizeof(*this)),
		HeapInUse:     len(this.storage) * 8,
		HeapAllocated: cap(this.storage) * 8,
	}
}

// AlignedIndexIterator yields the stored indices in positional order,
// decoding one word at a time.
type AlignedIndexIterator struct {
	buffer    *AlignedIndexBuffer
	offset    int
	wordIndex int
	bulk      [64]uint64
	bulkPos   int
	bulkCount int
}

// Next returns the next slot id, or false when exhausted
func (this *AlignedIndexIterator) Next() (uint64, bool) {
	if this.offset >= this.buffer.length {
		return 0, false
	}

	if this.buffer.indexSize == 0 {
		this.offset++
		return 0, true
	}

	if this.bulkPos == this.bulkCount {
		count := this.buffer.indicesPerWord

		if remaining := this.buffer.length - this.offset; remaining < count {
			count = remaining
		}

		word := this.buffer.storage[this.wordIndex]
		size := this.buffer.indexSize
		mask := this.buffer.mask

		for i := 0; i < count; i++ {
			this.bulk[i] = (word >> uint(i*size)) & mask
		}

		this.wordIndex++
		this.bulkCount = count
		this.bulkPos = 0
	}

	value := this.bulk[this.bulkPos]
	this.bulkPos++
	this.offset++
	return value, true
}
