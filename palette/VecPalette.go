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

package palette

import (
	"sort"
	"unsafe"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/internal"
)

// VecPalette stores entries in a single growable slice where the slot id is
// the slice position. Value lookup is always a linear scan, so it suits
// palettes that stay small; in exchange it has no hashing overhead and a
// minimal footprint.
type VecPalette[T comparable] struct {
	indexSize   int
	realEntries uint32
	storage     []*palettevec.PaletteEntry[T]
}

// NewVecPalette creates an empty palette
func NewVecPalette[T comparable]() *VecPalette[T] {
	return &VecPalette[T]{}
}

// Len returns the number of entries with count > 0
func (this *VecPalette[T]) Len() int {
	return int(this.realEntries)
}

// IsEmpty returns true when no entry is live
func (this *VecPalette[T]) IsEmpty() bool {
	return this.realEntries == 0
}

// Clear resets the palette. Capacity is kept.
func (this *VecPalette[T]) Clear() {
	this.indexSize = 0
	this.realEntries = 0
	this.storage = this.storage[:0]
}

// IndexSize returns the width the index buffer must match
func (this *VecPalette[T]) IndexSize() int {
	return this.indexSize
}

// GetByValue returns the entry holding value and its slot id
func (this *VecPalette[T]) GetByValue(value T) (*palettevec.PaletteEntry[T], uint64, bool) {
	for i, entry := range this.storage {
		if entry != nil && entry.Value == value {
			return entry, uint64(i), true
		}
	}

	return nil, 0, false
}

// GetByIndex returns the entry at the given slot, if occupied
func (this *VecPalette[T]) GetByIndex(index uint64) (*palettevec.PaletteEntry[T], bool) {
	if index >= uint64(len(this.storage)) || this.storage[index] == nil {
		return nil, false
	}

	return this.storage[index], true
}

// MarkAsUnused retires a slot whose count has reached 0
func (this *VecPalette[T]) MarkAsUnused(index uint64) {
	this.realEntries--
	this.storage[index] = nil
}

// InsertNew stores an entry for a value not currently present in the lowest
// free slot, growing the slice when none is free. Returns the slot id, the
// current width and whether the width grew.
func (this *VecPalette[T]) InsertNew(entry palettevec.PaletteEntry[T]) (uint64, int, bool) {
	for i, old := range this.storage {
		if old == nil || old.Count == 0 {
			stored := entry
			this.storage[i] = &stored
			this.realEntries++
			changed := this.growIndexSize()
			return uint64(i), this.indexSize, changed
		}
	}

	stored := entry
	index := uint64(len(this.storage))
	this.storage = append(this.storage, &stored)
	this.realEntries++
	changed := this.growIndexSize()
	return index, this.indexSize, changed
}

func (this *VecPalette[T]) growIndexSize() bool {
	newSize := internal.SmallestIndexSize(this.realEntries)

	if newSize > this.indexSize {
		this.indexSize = newSize
		return true
	}

	return false
}

// Optimize recomputes the width and sorts the entries by count descending,
// ties broken by old slot id ascending, holes moving to the tail. Returns
// the renumber map only when an id changed.
func (this *VecPalette[T]) Optimize() map[uint64]uint64 {
	this.indexSize = internal.SmallestIndexSize(this.realEntries)

	type slot struct {
		index uint64
		entry *palettevec.PaletteEntry[T]
	}

	slots := make([]slot, 0, this.realEntries)

	for i, entry := range this.storage {
		if entry != nil {
			slots = append(slots, slot{index: uint64(i), entry: entry})
		}
	}

	sort.Slice(slots, func(a, b int) bool {
		if slots[a].entry.Count != slots[b].entry.Count {
			return slots[a].entry.Count > slots[b].entry.Count
		}

		return slots[a].index < slots[b].index
	})

	for i := range this.storage {
		this.storage[i] = nil
	}

	renumber := make(map[uint64]uint64, len(slots))
	changed := false

	for newIndex, s := range slots {
		this.storage[newIndex] = s.entry
		renumber[s.index] = uint64(newIndex)

		if s.index != uint64(newIndex) {
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return renumber
}

// Entries returns an iterator over the occupied entries in ascending slot
// id order
func (this *VecPalette[T]) Entries() palettevec.EntryIterator[T] {
	return &vecEntryIterator[T]{palette: this}
}

// Restore replaces the palette state with deserialized entries keyed by
// slot id
func (this *VecPalette[T]) Restore(indexSize int, entries map[uint64]palettevec.PaletteEntry[T]) {
	this.Clear()
	this.indexSize = indexSize
	this.realEntries = uint32(len(entries))

	var maxIndex uint64

	for index := range entries {
		if index > maxIndex {
			maxIndex = index
		}
	}

	needed := int(maxIndex) + 1

	if len(entries) == 0 {
		needed = 0
	}

	if cap(this.storage) >= needed {
		this.storage = this.storage[:needed]

		for i := range this.storage {
			this.storage[i] = nil
		}
	} else {
		this.storage = make([]*palettevec.PaletteEntry[T], needed)
	}

	for index, entry := range entries {
		stored := entry
		this.storage[index] = &stored
	}
}

// MemoryUsage reports the palette footprint
func (this *VecPalette[T]) MemoryUsage() palettevec.MemoryUsage {
	var entry palettevec.PaletteEntry[T]
	entrySize := int(unsafe.Sizeof(entry))
	pointerSize := int(unsafe.Sizeof(&entry))

	return palettevec.MemoryUsage{
		Stack:         int(unsafe.Sizeof(*this)),
		HeapInUse:     len(this.storage)*pointerSize + int(this.realEntries)*entrySize,
		HeapAllocated: cap(this.storage)*pointerSize + int(this.realEntries)*entrySize,
	}
}

type vecEntryIterator[T comparable] struct {
	palette *VecPalette[T]
	pos     int
}

// Next returns the next occupied slot, or false when exhausted
func (this *vecEntryIterator[T]) Next() (uint64, *palettevec.PaletteEntry[T], bool) {
	for this.pos < len(this.palette.storage) {
		index := this.pos
		entry := this.palette.storage[index]
		this.pos++

		if entry != nil {
			return uint64(index), entry, true
		}
	}

	return 0, nil, false
}
