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

package indexbuffer

import (
	"fmt"
	"unsafe"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/internal"
)

// FastIndexBuffer optimizes for access operations. The nominal width is
// rounded up to 8, 16, 32 or 64 bits so a position's bit address is a plain
// shift of the offset and words decode into up to 8 indices at a time.
type FastIndexBuffer struct {
	indexSize     int
	indexSizeLog2 uint
	mask          uint64
	length        int
	storage       []uint64
}

// NewFastIndexBuffer creates an empty buffer at width 0
func NewFastIndexBuffer() *FastIndexBuffer {
	return &FastIndexBuffer{}
}

func (this *FastIndexBuffer) setIndexWithIndexSize(offset int, indexSize int, indexSizeLog2 uint, index uint64) uint64 {
	totalBitOffset := offset << indexSizeLog2
	storageIndex := totalBitOffset >> 6
	bitOffset := uint(totalBitOffset & 63)
	mask := (^uint64(0) >> uint(64-indexSize)) << bitOffset
	raw := this.storage[storageIndex]
	old := (raw & mask) >> bitOffset
	this.storage[storageIndex] = (raw &^ mask) | (index << bitOffset)
	return old
}

func (this *FastIndexBuffer) getIndexAt(offset int) uint64 {
	if this.indexSize == 0 {
		return 0
	}

	totalBitOffset := offset << this.indexSizeLog2
	bitOffset := uint(totalBitOffset & 63)
	return (this.storage[totalBitOffset>>6] >> bitOffset) & this.mask
}

func (this *FastIndexBuffer) indicesPerWord() int {
	if this.indexSize == 0 {
		return 0
	}

	return 64 / this.indexSize
}

// getIndexBulk decodes one word worth of indices into buf and returns the
// number written
func (this *FastIndexBuffer) getIndexBulk(storageIndex int, buf *[8]uint64) int {
	count := this.indicesPerWord()
	word := this.storage[storageIndex]

	for i := 0; i < count; i++ {
		buf[i] = (word >> uint(i<<this.indexSizeLog2)) & this.mask
	}

	return count
}

// Zeroed discards the contents and fills the buffer with length 0-indices
func (this *FastIndexBuffer) Zeroed(length int) {
	if this.indexSize == 0 {
		this.storage = this.storage[:0]
		this.length = length
		return
	}

	indicesPerWord := this.indicesPerWord()
	needed := (length + indicesPerWord - 1) / indicesPerWord

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
func (this *FastIndexBuffer) Clear() {
	this.indexSize = 0
	this.indexSizeLog2 = 0
	this.mask = 0
	this.length = 0
	this.storage = this.storage[:0]
}

// Len returns the number of indices in the buffer
func (this *FastIndexBuffer) Len() int {
	return this.length
}

// IsEmpty returns true when the buffer holds no indices
func (this *FastIndexBuffer) IsEmpty() bool {
	return this.length == 0
}

// IndexSize returns the stored width in bits: 0, 8, 16, 32 or 64
func (this *FastIndexBuffer) IndexSize() int {
	return this.indexSize
}

// SetIndexSize changes the width. newSize is nominal and is rounded up to
// the stored width, so a nominal change can leave the layout untouched; a
// renumber map is still applied in that case.
func (this *FastIndexBuffer) SetIndexSize(newSize int, renumber map[uint64]uint64) {
	if newSize < 0 || newSize > palettevec.MAX_INDEX_SIZE {
		panic(fmt.Errorf("Invalid index size: %d (must be in [0..%d])", newSize, palettevec.MAX_INDEX_SIZE))
	}

	newSize = internal.MapIndexSize(newSize)

	if newSize == 0 && this.indexSize == 0 {
		return
	}

	newSizeLog2 := log2OfPowerOfTwo(newSize)

	if newSize > this.indexSize {
		indicesPerWord := 64 / newSize
		needed := (this.length + indicesPerWord - 1) / indicesPerWord

		for len(this.storage) < needed {
			this.storage = append(this.storage, 0)
		}

		// Rewrite back to front so in-place updates do not collide
		for i := this.length - 1; i >= 0; i-- {
			index := this.getIndexAt(i)

			if renumber != nil {
				index = renumberedIndex(renumber, index)
			}

			this.setIndexWithIndexSize(i, newSize, newSizeLog2, index)
		}
	} else if newSize < this.indexSize {
		if newSize == 0 {
			// The renumber map can only contain old -> 0 here
			this.indexSize = 0
			this.indexSizeLog2 = 0
			this.mask = 0
			this.storage = this.storage[:0]
			return
		}

		// Rewrite front to back, each rewrite uses strictly fewer bits
		for i := 0; i < this.length; i++ {
			index := this.getIndexAt(i)

			if renumber != nil {
				index = renumberedIndex(renumber, index)
			}

			this.setIndexWithIndexSize(i, newSize, newSizeLog2, index)
		}

		indicesPerWord := 64 / newSize
		needed := (this.length + indicesPerWord - 1) / indicesPerWord
		this.storage = this.storage[:needed]
	} else if renumber != nil {
		// Stored width unchanged, apply the renumbering in a single pass
		for i := 0; i < this.length; i++ {
			this.setIndexWithIndexSize(i, this.indexSize, this.indexSizeLog2, renumberedIndex(renumber, this.getIndexAt(i)))
		}
	}

	this.indexSize = newSize
	this.indexSizeLog2 = newSizeLog2
	this.mask = ^uint64(0) >> uint(64-newSize)
}

// SetIndex writes index at offset and returns the previous value. Must not
// be called at width 0.
func (this *FastIndexBuffer) SetIndex(offset int, index uint64) uint64 {
	if this.indexSize == 0 {
		panic(fmt.Errorf("SetIndex called at index size 0"))
	}

	return this.setIndexWithIndexSize(offset, this.indexSize, this.indexSizeLog2, index)
}

// GetIndex returns the index stored at offset
func (this *FastIndexBuffer) GetIndex(offset int) uint64 {
	return this.getIndexAt(offset)
}

// PushIndex appends an index. index must fit the current width.
func (this *FastIndexBuffer) PushIndex(index uint64) {
	if this.indexSize == 0 {
		this.length++
		return
	}

	if this.length%this.indicesPerWord() == 0 {
		this.storage = append(this.storage, index)
		this.length++
		return
	}

	this.length++
	this.setIndexWithIndexSize(this.length-1, this.indexSize, this.indexSizeLog2, index)
}

// PopIndex removes and returns the last index
func (this *FastIndexBuffer) PopIndex() (uint64, bool) {
	if this.length == 0 {
		return 0, false
	}

	if this.indexSize == 0 {
		this.length--
		return 0, true
	}

	index := this.getIndexAt(this.length - 1)
	this.length--

	if this.length%this.indicesPerWord() == 0 {
		this.storage = this.storage[:len(this.storage)-1]
	}

	return index, true
}

// Resize shrinks or grows the buffer to newLength, see AlignedIndexBuffer
func (this *FastIndexBuffer) Resize(newLength int, fill uint64) (map[uint64]uint32, int) {
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

// Iter returns a positional iterator decoding 8 indices per word load at
// width 8, fewer at wider sizes
func (this *FastIndexBuffer) Iter() palettevec.IndexIterator {
	return &FastIndexIterator{buffer: this}
}

// Words exposes the backing word array for serialization
func (this *FastIndexBuffer) Words() []uint64 {
	return this.storage
}

// Restore replaces the buffer state with a deserialized one. indexSize must
// be a stored width. The buffer takes ownership of words.
func (this *FastIndexBuffer) Restore(indexSize int, length int, words []uint64) {
	if internal.MapIndexSize(indexSize) != indexSize {
		panic(fmt.Errorf("Invalid stored index size: %d (must be 0, 8, 16, 32 or 64)", indexSize))
	}

	this.indexSize = indexSize
	this.length = length
	this.storage = words

	if indexSize == 0 {
		this.indexSizeLog2 = 0
		this.mask = 0
		this.storage = this.storage[:0]
		return
	}

	this.indexSizeLog2 = log2OfPowerOfTwo(indexSize)
	this.mask = ^uint64(0) >> uint(64-indexSize)
}

// MemoryUsage reports the buffer footprint
func (this *FastIndexBuffer) MemoryUsage() palettevec.MemoryUsage {
	return palettevec.MemoryUsage{
		Stack:         int(unsafe.Sizeof(*this)),
		HeapInUse:     len(this.storage) * 8,
		HeapAllocated: cap(this.storage) * 8,
	}
}

func log2OfPowerOfTwo(x int) uint {
	var res uint

	for x > 1 {
		x >>= 1
		res++
	}

	return res
}

func renumberedIndex(renumber map[uint64]uint64, index uint64) uint64 {
	newIndex, ok := renumber[index]

	if !ok {
		panic(fmt.Errorf("Renumber map is missing slot %d", index))
	}

	return newIndex
}

// FastIndexIterator yields the stored indices in positional order
type FastIndexIterator struct {
	buffer    *FastIndexBuffer
	offset    int
	wordIndex int
	bulk      [8]uint64
	bulkPos   int
	bulkCount int
}

// Next returns the next slot id, or false when exhausted
func (this *FastIndexIterator) Next() (uint64, bool) {
	if this.offset >= this.buffer.length {
		return 0, false
	}

	if this.buffer.indexSize == 0 {
		this.offset++
		return 0, true
	}

	if this.bulkPos == this.bulkCount {
		count := this.buffer.getIndexBulk(this.wordIndex, &this.bulk)

		if remaining := this.buffer.length - this.offset; remaining < count {
			count = remaining
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
