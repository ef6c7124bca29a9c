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

// Package palettevec defines all the top level interfaces used in the
// palettevec palette-compressed container.
//
// A palette-compressed container stores a sequence of values whose memory
// footprint scales with the number of distinct values rather than the number
// of positions: a small palette holds each distinct value once and a
// bit-packed index buffer stores, for each position, the palette slot of the
// value at that position.
//
// The implementations of these interfaces are available in sub-folders:
// indexbuffer contains the bit-packed buffers, palette contains the
// distinct-value stores and vec contains the PaletteVec container that
// glues them together.
package palettevec

// MAX_INDEX_SIZE is the largest allowed index width in bits. It is capped
// one below the word size so that (1<<width)-1 never overflows an uint64.
const MAX_INDEX_SIZE = 63

// MemoryUsage reports the memory footprint of a component in bytes.
type MemoryUsage struct {
	// Stack is the size of the component value itself
	Stack int

	// HeapInUse is the heap memory currently holding live data
	HeapInUse int

	// HeapAllocated is the heap memory reserved, including spare capacity
	HeapAllocated int
}

// Add returns the field-wise sum of two usage reports
func (mu MemoryUsage) Add(other MemoryUsage) MemoryUsage {
	return MemoryUsage{
		Stack:         mu.Stack + other.Stack,
		HeapInUse:     mu.HeapInUse + other.HeapInUse,
		HeapAllocated: mu.HeapAllocated + other.HeapAllocated,
	}
}

// IndexIterator yields the slot ids stored in an index buffer in positional
// order. It borrows the buffer: the buffer must not be mutated while the
// iterator is in use.
type IndexIterator interface {
	// Next returns the next slot id, or false when the sequence is exhausted
	Next() (uint64, bool)
}

// IndexBuffer is a mutable sequence of fixed-width unsigned integers packed
// into 64 bit words. The width can be changed in place with rewrite
// semantics. Width 0 means the sequence is logically uniform: no storage is
// held and every position reads as slot 0.
//
// Indices are packed LSB first within a word and never straddle a word
// boundary: floor(64/width) indices fit per word, trailing bits are unused.
//
// Widths outside [0, MAX_INDEX_SIZE] and SetIndex at width 0 are programmer
// errors and panic. Out of range offsets are programmer errors too but are
// not checked: they panic only when they fall past the backing words, and at
// width 0 GetIndex returns 0 for any offset.
type IndexBuffer interface {
	// Zeroed discards the contents and fills the buffer with length
	// 0-indices. At width 0 this only sets the length.
	Zeroed(length int)

	// Clear resets the buffer to width 0, length 0
	Clear()

	// Len returns the number of indices in the buffer
	Len() int

	// IsEmpty returns true when Len() == 0
	IsEmpty() bool

	// IndexSize returns the current stored width in bits
	IndexSize() int

	// SetIndexSize changes the stored width. renumber, if non nil, maps
	// every live slot id to its replacement and is applied during the
	// rewrite. A renumber map passed with newSize 0 may only contain
	// old -> 0 pairs; storage is released.
	SetIndexSize(newSize int, renumber map[uint64]uint64)

	// SetIndex writes index at offset and returns the previous value.
	// offset is in indices, not bits. Must not be called at width 0.
	SetIndex(offset int, index uint64) uint64

	// GetIndex returns the index stored at offset. offset is in indices,
	// not bits. At width 0 it returns 0 unconditionally.
	GetIndex(offset int) uint64

	// PushIndex appends an index. index must fit the current width.
	PushIndex(index uint64)

	// PopIndex removes and returns the last index, or false when empty
	PopIndex() (uint64, bool)

	// Resize shrinks or grows the buffer to newLength. When shrinking it
	// returns the multiset of removed slot ids keyed by id. When growing
	// it appends copies of fill and returns the number added.
	Resize(newLength int, fill uint64) (map[uint64]uint32, int)

	// Iter returns a positional iterator over the stored slot ids
	Iter() IndexIterator

	// Words exposes the backing word array for serialization. The slice
	// must be treated as read only.
	Words() []uint64

	// Restore replaces the buffer state with a deserialized one
	Restore(indexSize int, length int, words []uint64)

	// MemoryUsage reports the buffer footprint
	MemoryUsage() MemoryUsage
}

// PaletteEntry is one distinct value together with the number of positions
// currently holding it. Count is at least 1 for a live slot and reaches 0
// exactly when the slot is retired.
type PaletteEntry[T comparable] struct {
	Value T
	Count uint32
}

// EntryIterator yields the occupied entries of a palette together with their
// slot ids, in a deterministic order. The returned entries are mutable: a
// caller that zeroes a count through the iterator must follow up with
// MarkAsUnused for that slot before the next positional mutation. Optimize
// does not retire entries whose count is 0; they stay live slots.
type EntryIterator[T comparable] interface {
	// Next returns the next occupied slot, or false when exhausted
	Next() (uint64, *PaletteEntry[T], bool)
}

// Palette is a refcounted store of distinct values. Each live value owns a
// stable slot id while its count is above zero; retired ids are reused.
type Palette[T comparable] interface {
	// Len returns the number of entries with count > 0. Do not use this to
	// derive the buffer width, use IndexSize instead.
	Len() int

	// IsEmpty returns true when no entry is live
	IsEmpty() bool

	// Clear resets the palette to its initial empty state
	Clear()

	// IndexSize returns the width the index buffer must match. It can
	// change after InsertNew or Optimize and is monotonically
	// non-decreasing outside of Optimize.
	IndexSize() int

	// GetByValue returns the entry holding value and its slot id
	GetByValue(value T) (*PaletteEntry[T], uint64, bool)

	// GetByIndex returns the entry at the given slot, if occupied
	GetByIndex(index uint64) (*PaletteEntry[T], bool)

	// MarkAsUnused retires a slot. Call this immediately after observing a
	// count of 0 at that slot. The width is not changed.
	MarkAsUnused(index uint64)

	// InsertNew stores an entry for a value not currently present and
	// returns the assigned slot id, the current width and whether the
	// width grew. No other slot id is changed.
	InsertNew(entry PaletteEntry[T]) (uint64, int, bool)

	// Optimize compacts the palette: the width is recomputed from the live
	// entry count and slots may be renumbered most frequent first; whether
	// they are depends on the implementation and its current shape. Returns
	// the old id -> new id map when any id changed, nil otherwise.
	Optimize() map[uint64]uint64

	// Entries returns an iterator over the occupied entries
	Entries() EntryIterator[T]

	// Restore replaces the palette state with deserialized entries keyed
	// by slot id
	Restore(indexSize int, entries map[uint64]PaletteEntry[T])

	// MemoryUsage reports the palette footprint
	MemoryUsage() MemoryUsage
}
