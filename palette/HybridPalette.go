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

// Package palette provides the distinct-value stores backing a palette
// compressed container. A palette assigns each unique value a stable slot id
// while the value is live and tracks how many positions hold it.
package palette

import (
	"fmt"
	"sort"
	"unsafe"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/internal"
)

// HybridPalette keeps small palettes in a fixed-capacity inline array where
// the slot id is the array position and value lookup is a linear scan. When
// an insertion finds no free position it switches to a hashed shape with a
// slot map, an inverse value map and a free list of retired ids. The switch
// preserves every slot id bit for bit; the way back to the array shape is
// taken opportunistically by Optimize.
type HybridPalette[T comparable] struct {
	threshold   int
	indexSize   int
	realEntries uint32

	// inline shape
	array []*palettevec.PaletteEntry[T]

	// hashed shape
	hashed      bool
	freeIndices []uint64
	indexMap    map[uint64]*palettevec.PaletteEntry[T]
	valueMap    map[T]uint64
}

// NewHybridPalette creates an empty palette with the given inline threshold.
// A threshold of 0 forces the hashed shape from the first insertion.
func NewHybridPalette[T comparable](inlineThreshold int) *HybridPalette[T] {
	if inlineThreshold < 0 {
		panic(fmt.Errorf("Invalid inline threshold: %d", inlineThreshold))
	}

	this := &HybridPalette[T]{threshold: inlineThreshold}

	if inlineThreshold == 0 {
		this.hashed = true
		this.indexMap = make(map[uint64]*palettevec.PaletteEntry[T])
		this.valueMap = make(map[T]uint64)
	} else {
		this.array = make([]*palettevec.PaletteEntry[T], inlineThreshold)
	}

	return this
}

// Len returns the number of entries with count > 0
func (this *HybridPalette[T]) Len() int {
	return int(this.realEntries)
}

// IsEmpty returns true when no entry is live
func (this *HybridPalette[T]) IsEmpty() bool {
	return this.realEntries == 0
}

// Clear resets the palette to its initial empty shape
func (this *HybridPalette[T]) Clear() {
	this.indexSize = 0
	this.realEntries = 0
	this.freeIndices = nil

	if this.threshold == 0 {
		this.hashed = true
		this.array = nil
		this.indexMap = make(map[uint64]*palettevec.PaletteEntry[T])
		this.valueMap = make(map[T]uint64)
		return
	}

	this.hashed = false
	this.indexMap = nil
	this.valueMap = nil
	this.array = make([]*palettevec.PaletteEntry[T], this.threshold)
}

// IndexSize returns the width the index buffer must match
func (this *HybridPalette[T]) IndexSize() int {
	return this.indexSize
}

// GetByValue returns the entry holding value and its slot id. The array
// shape scans linearly, the hashed shape looks up the inverse map.
func (this *HybridPalette[T]) GetByValue(value T) (*palettevec.PaletteEntry[T], uint64, bool) {
	if !this.hashed {
		for i, entry := range this.array {
			if entry != nil && entry.Value == value {
				return entry, uint64(i), true
			}
		}

		return nil, 0, false
	}

	index, ok := this.valueMap[value]

	if !ok {
		return nil, 0, false
	}

	return this.indexMap[index], index, true
}

// GetByIndex returns the entry at the given slot, if occupied
func (this *HybridPalette[T]) GetByIndex(index uint64) (*palettevec.PaletteEntry[T], bool) {
	if !this.hashed {
		if index >= uint64(len(this.array)) || this.array[index] == nil {
			return nil, false
		}

		return this.array[index], true
	}

	entry, ok := this.indexMap[index]
	return entry, ok
}

// MarkAsUnused retires a slot whose count has reached 0. The array shape
// frees the position immediately, the hashed shape parks the id on the free
// list until Optimize densifies.
func (this *HybridPalette[T]) MarkAsUnused(index uint64) {
	this.realEntries--

	if !this.hashed {
		this.array[index] = nil
		return
	}

	entry := this.indexMap[index]
	this.freeIndices = append(this.freeIndices, index)
	delete(this.indexMap, index)
	delete(this.valueMap, entry.Value)
}

// InsertNew stores an entry for a value not currently present. The array
// shape assigns the lowest free position, the hashed shape reuses a free
// listed id before minting a fresh one. Returns the slot id, the current
// width and whether the width grew. No other slot id is changed; the
// array to hashed transition this can trigger preserves ids bit for bit.
func (this *HybridPalette[T]) InsertNew(entry palettevec.PaletteEntry[T]) (uint64, int, bool) {
	if !this.hashed {
		for i, old := range this.array {
			if old == nil || old.Count == 0 {
				stored := entry
				this.array[i] = &stored
				this.realEntries++
				changed := this.growIndexSize()
				return uint64(i), this.indexSize, changed
			}
		}

		// No free position available, switch to the hashed shape
		this.switchToHashMap()
	}

	var index uint64

	if n := len(this.freeIndices); n > 0 {
		index = this.freeIndices[n-1]
		this.freeIndices = this.freeIndices[:n-1]
	} else {
		index = uint64(len(this.indexMap))
	}

	stored := entry
	this.indexMap[index] = &stored
	this.valueMap[entry.Value] = index
	this.realEntries++
	changed := this.growIndexSize()
	return index, this.indexSize, changed
}

func (this *HybridPalette[T]) growIndexSize() bool {
	newSize := internal.SmallestIndexSize(this.realEntries)

	if newSize > this.indexSize {
		this.indexSize = newSize
		return true
	}

	return false
}

func (this *HybridPalette[T]) switchToHashMap() {
	this.indexMap = make(map[uint64]*palettevec.PaletteEntry[T], len(this.array))
	this.valueMap = make(map[T]uint64, len(this.array))

	for i, entry := range this.array {
		if entry != nil {
			this.indexMap[uint64(i)] = entry
			this.valueMap[entry.Value] = uint64(i)
		} else {
			this.freeIndices = append(this.freeIndices, uint64(i))
		}
	}

	this.array = nil
	this.hashed = true
}

// sortedSlots returns the occupied (old id, entry) pairs sorted by count
// descending, ties broken by old id ascending
func (this *HybridPalette[T]) sortedSlots() []hybridSlot[T] {
	slots := make([]hybridSlot[T], 0, this.realEntries)

	if !this.hashed {
		for i, entry := range this.array {
			if entry != nil {
				slots = append(slots, hybridSlot[T]{index: uint64(i), entry: entry})
			}
		}
	} else {
		for index, entry := range this.indexMap {
			slots = append(slots, hybridSlot[T]{index: index, entry: entry})
		}
	}

	sort.Slice(slots, func(a, b int) bool {
		if slots[a].entry.Count != slots[b].entry.Count {
			return slots[a].entry.Count > slots[b].entry.Count
		}

		return slots[a].index < slots[b].index
	})

	return slots
}

// Optimize recomputes the width from the live entry count and compacts the
// slots most frequent first. In the hashed shape it switches back to the
// array shape when the entries fit, otherwise it densifies the ids to
// [0, len) when any id was free listed. Returns the renumber map only when
// an id changed.
func (this *HybridPalette[T]) Optimize() map[uint64]uint64 {
	this.indexSize = internal.SmallestIndexSize(this.realEntries)

	if !this.hashed {
		return this.sortArray()
	}

	if len(this.indexMap) <= this.threshold {
		return this.switchToArray()
	}

	if len(this.freeIndices) == 0 {
		// Ids stay as they are; rebuild the inverse map so value edits made
		// through the entry iterator are seen by GetByValue
		this.valueMap = make(map[T]uint64, len(this.indexMap))

		for index, entry := range this.indexMap {
			this.valueMap[entry.Value] = index
		}

		return nil
	}

	return this.densify()
}

func (this *HybridPalette[T]) sortArray() map[uint64]uint64 {
	slots := this.sortedSlots()
	renumber := make(map[uint64]uint64, len(slots))
	changed := false

	for i := range this.array {
		this.array[i] = nil
	}

	for newIndex, slot := range slots {
		this.array[newIndex] = slot.entry
		renumber[slot.index] = uint64(newIndex)

		if slot.index != uint64(newIndex) {
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return renumber
}

func (this *HybridPalette[T]) switchToArray() map[uint64]uint64 {
	slots := this.sortedSlots()
	this.array = make([]*palettevec.PaletteEntry[T], this.threshold)
	this.hashed = false
	this.indexMap = nil
	this.valueMap = nil
	this.freeIndices = nil

	renumber := make(map[uint64]uint64, len(slots))
	changed := false

	for newIndex, slot := range slots {
		this.array[newIndex] = slot.entry
		renumber[slot.index] = uint64(newIndex)

		if slot.index != uint64(newIndex) {
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return renumber
}

func (this *HybridPalette[T]) densify() map[uint64]uint64 {
	slots := this.sortedSlots()
	this.indexMap = make(map[uint64]*palettevec.PaletteEntry[T], len(slots))
	this.valueMap = make(map[T]uint64, len(slots))
	this.freeIndices = nil

	renumber := make(map[uint64]uint64, len(slots))
	changed := false

	for newIndex, slot := range slots {
		this.indexMap[uint64(newIndex)] = slot.entry
		this.valueMap[slot.entry.Value] = uint64(newIndex)
		renumber[slot.index] = uint64(newIndex)

		if slot.index != uint64(newIndex) {
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
func (this *HybridPalette[T]) Entries() palettevec.EntryIterator[T] {
	if !this.hashed {
		return &hybridEntryIterator[T]{palette: this}
	}

	indices := make([]uint64, 0, len(this.indexMap))

	for index := range this.indexMap {
		indices = append(indices, index)
	}

	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })
	return &hybridEntryIterator[T]{palette: this, indices: indices}
}

// Restore replaces the palette state with deserialized entries keyed by
// slot id. Slot ids are preserved: the array shape is only used when every
// id fits below the threshold.
func (this *HybridPalette[T]) Restore(indexSize int, entries map[uint64]palettevec.PaletteEntry[T]) {
	this.Clear()
	this.indexSize = indexSize
	this.realEntries = uint32(len(entries))

	inline := this.threshold > 0 && len(entries) <= this.threshold

	if inline {
		for index := range entries {
			if index >= uint64(this.threshold) {
				inline = false
				break
			}
		}
	}

	if inline {
		for index, entry := range entries {
			stored := entry
			this.array[index] = &stored
		}

		return
	}

	this.hashed = true
	this.array = nil
	this.indexMap = make(map[uint64]*palettevec.PaletteEntry[T], len(entries))
	this.valueMap = make(map[T]uint64, len(entries))

	var maxIndex uint64

	for index, entry := range entries {
		stored := entry
		this.indexMap[index] = &stored
		this.valueMap[entry.Value] = index

		if index > maxIndex {
			maxIndex = index
		}
	}

	// Unoccupied ids below the highest one go back on the free list
	for index := uint64(0); index <= maxIndex; index++ {
		if _, ok := this.indexMap[index]; !ok {
			this.freeIndices = append(this.freeIndices, index)
		}
	}
}

// MemoryUsage reports the palette footprint. The inline array counts as
// part of the resident value, matching its fixed-capacity role.
func (this *HybridPalette[T]) MemoryUsage() palettevec.MemoryUsage {
	var entry palettevec.PaletteEntry[T]
	entrySize := int(unsafe.Sizeof(entry))
	pointerSize := int(unsafe.Sizeof(&entry))
	selfSize := int(unsafe.Sizeof(*this))

	if !this.hashed {
		return palettevec.MemoryUsage{
			Stack:         selfSize + this.threshold*pointerSize,
			HeapInUse:     int(this.realEntries) * entrySize,
			HeapAllocated: int(this.realEntries) * entrySize,
		}
	}

	var value T
	perSlot := entrySize + pointerSize + 8
	perValue := int(unsafe.Sizeof(value)) + 8
	inUse := len(this.indexMap)*perSlot + len(this.valueMap)*perValue + len(this.freeIndices)*8

	return palettevec.MemoryUsage{
		Stack:         selfSize,
		HeapInUse:     inUse,
		HeapAllocated: inUse + (cap(this.freeIndices)-len(this.freeIndices))*8,
	}
}

type hybridSlot[T comparable] struct {
	index uint64
	entry *palettevec.PaletteEntry[T]
}

type hybridEntryIterator[T comparable] struct {
	palette *HybridPalette[T]
	indices []uint64 // hashed shape snapshot, nil in the array shape
	pos     int
}

// Next returns the next occupied slot, or false when exhausted
func (this *hybridEntryIterator[T]) Next() (uint64, *palettevec.PaletteEntry[T], bool) {
	if this.indices != nil {
		if this.pos >= len(this.indices) {
			return 0, nil, false
		}

		index := this.indices[this.pos]
		this.pos++
		return index, this.palette.indexMap[index], true
	}

	for this.pos < len(this.palette.array) {
		index := this.pos
		entry := this.palette.array[index]
		this.pos++

		if entry != nil {
			return uint64(index), entry, true
		}
	}

	return 0, nil, false
}
