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

// Package vec provides PaletteVec, the palette compressed sequence
// container. It glues a palette and a bit-packed index buffer together:
// positional operations translate into palette lookups plus buffer
// operations, per slot reference counts stay in sync with the stored
// positions, and width changes propagate from the palette to the buffer.
//
// Every mutator follows one rule: widen the buffer before writing a new
// slot id, narrow only inside Optimize, which renumbers first and truncates
// after. This keeps every intermediate state consistent.
package vec

import (
	"unsafe"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/indexbuffer"
	"github.com/juh9870/palettevec-go/palette"
)

// DEFAULT_INLINE_THRESHOLD is the hybrid palette threshold used by the
// convenience constructors. Small thresholds (4-16) minimize memory when
// most palettes are tiny, large ones (64-256) keep lookups off the hash
// maps for moderate palettes.
const DEFAULT_INLINE_THRESHOLD = 64

// PaletteVec is a sequence of values whose memory footprint scales with the
// number of distinct values rather than the number of positions. A
// container is owned by a single goroutine, there is no internal locking.
type PaletteVec[T comparable] struct {
	palette palettevec.Palette[T]
	buffer  palettevec.IndexBuffer
}

// NewPaletteVec creates an empty container from an explicit palette and
// buffer. Both must be freshly created or cleared.
func NewPaletteVec[T comparable](p palettevec.Palette[T], b palettevec.IndexBuffer) *PaletteVec[T] {
	return &PaletteVec[T]{palette: p, buffer: b}
}

// NewFastPaletteVec creates an empty container on the fast buffer layout, a
// good default when access speed matters more than the last few percent of
// memory
func NewFastPaletteVec[T comparable]() *PaletteVec[T] {
	return NewPaletteVec[T](palette.NewHybridPalette[T](DEFAULT_INLINE_THRESHOLD), indexbuffer.NewFastIndexBuffer())
}

// NewAlignedPaletteVec creates an empty container on the aligned buffer
// layout, which packs at the exact needed width
func NewAlignedPaletteVec[T comparable]() *PaletteVec[T] {
	return NewPaletteVec[T](palette.NewHybridPalette[T](DEFAULT_INLINE_THRESHOLD), indexbuffer.NewAlignedIndexBuffer())
}

// FilledPaletteVec creates a container holding length copies of value on
// the given palette and buffer. The width stays 0.
func FilledPaletteVec[T comparable](value T, length int, p palettevec.Palette[T], b palettevec.IndexBuffer) *PaletteVec[T] {
	this := NewPaletteVec[T](p, b)
	this.Fill(value, length)
	return this
}

// Len returns the number of positions
func (this *PaletteVec[T]) Len() int {
	return this.buffer.Len()
}

// IsEmpty returns true when the container holds no positions
func (this *PaletteVec[T]) IsEmpty() bool {
	return this.buffer.IsEmpty()
}

// UniqueValues returns the number of distinct live values
func (this *PaletteVec[T]) UniqueValues() int {
	return this.palette.Len()
}

// Clear removes every position and every palette entry
func (this *PaletteVec[T]) Clear() {
	this.palette.Clear()
	this.buffer.Clear()
}

// Fill discards the contents and fills the container with length copies of
// value. The single entry occupies slot 0 and the width stays 0.
func (this *PaletteVec[T]) Fill(value T, length int) {
	this.Clear()

	if length == 0 {
		return
	}

	this.palette.InsertNew(palettevec.PaletteEntry[T]{Value: value, Count: uint32(length)})
	this.buffer.Zeroed(length)
}

// PushRef appends the referenced value. The value is only copied when it is
// not in the palette yet, prefer this over Push for large values.
func (this *PaletteVec[T]) PushRef(value *T) {
	if entry, index, ok := this.palette.GetByValue(*value); ok {
		entry.Count++
		this.buffer.PushIndex(index)
		return
	}

	// Value is new. Widen the buffer before the new slot id is written.
	index, newSize, changed := this.palette.InsertNew(palettevec.PaletteEntry[T]{Value: *value, Count: 1})

	if changed {
		this.buffer.SetIndexSize(newSize, nil)
	}

	this.buffer.PushIndex(index)
}

// Push appends a value
func (this *PaletteVec[T]) Push(value T) {
	this.PushRef(&value)
}

// Pop removes the last position and returns its value, retiring the slot
// when the last occurrence is consumed. Returns false on an empty container.
func (this *PaletteVec[T]) Pop() (T, bool) {
	index, ok := this.buffer.PopIndex()

	if !ok {
		var zero T
		return zero, false
	}

	entry, _ := this.palette.GetByIndex(index)
	entry.Count--
	value := entry.Value

	if entry.Count == 0 {
		this.palette.MarkAsUnused(index)
	}

	return value, true
}

// Set writes value at offset. Writing the value a position already holds is
// a no-op. offset must be below Len.
func (this *PaletteVec[T]) Set(offset int, value T) {
	if entry, newIndex, ok := this.palette.GetByValue(value); ok {
		if this.palette.IndexSize() == 0 {
			// Uniform vector and the same value, nothing to do
			return
		}

		oldIndex := this.buffer.SetIndex(offset, newIndex)

		if oldIndex == newIndex {
			return
		}

		entry.Count++
		this.releaseIndex(oldIndex)
		return
	}

	newIndex, newSize, changed := this.palette.InsertNew(palettevec.PaletteEntry[T]{Value: value, Count: 1})

	if changed {
		this.buffer.SetIndexSize(newSize, nil)
	}

	oldIndex := this.buffer.SetIndex(offset, newIndex)
	this.releaseIndex(oldIndex)
}

func (this *PaletteVec[T]) releaseIndex(index uint64) {
	entry, _ := this.palette.GetByIndex(index)
	entry.Count--

	if entry.Count == 0 {
		this.palette.MarkAsUnused(index)
	}
}

// Get returns a reference to the value at offset, or false when offset is
// out of range. The reference borrows the palette entry and stays valid
// until the next mutating call.
func (this *PaletteVec[T]) Get(offset int) (*T, bool) {
	if offset < 0 || offset >= this.buffer.Len() {
		return nil, false
	}

	entry, ok := this.palette.GetByIndex(this.buffer.GetIndex(offset))

	if !ok {
		return nil, false
	}

	return &entry.Value, true
}

// Resize shrinks or grows the container to newLength, filling new positions
// with fill
func (this *PaletteVec[T]) Resize(newLength int, fill T) {
	current := this.buffer.Len()

	if newLength == current {
		return
	}

	if newLength < current {
		removed, _ := this.buffer.Resize(newLength, 0)

		for index, count := range removed {
			entry, _ := this.palette.GetByIndex(index)
			entry.Count -= count

			if entry.Count == 0 {
				this.palette.MarkAsUnused(index)
			}
		}

		return
	}

	added := uint32(newLength - current)
	entry, index, ok := this.palette.GetByValue(fill)

	if ok {
		entry.Count += added
	} else {
		var newSize int
		var changed bool
		index, newSize, changed = this.palette.InsertNew(palettevec.PaletteEntry[T]{Value: fill, Count: added})

		if changed {
			this.buffer.SetIndexSize(newSize, nil)
		}
	}

	this.buffer.Resize(newLength, index)
}

// Optimize compacts the palette and retightens the buffer: the palette
// recomputes the minimal width and may renumber its slots most frequent
// first, then the buffer applies the renumbering and the width in a single
// rewrite pass. Iteration order is unchanged and a second call is a no-op.
func (this *PaletteVec[T]) Optimize() {
	renumber := this.palette.Optimize()
	this.buffer.SetIndexSize(this.palette.IndexSize(), renumber)
}

// Iter returns a positional iterator over the stored values. It borrows the
// container: no mutation may happen while the iterator is in use.
func (this *PaletteVec[T]) Iter() *Iterator[T] {
	return &Iterator[T]{palette: this.palette, indices: this.buffer.Iter()}
}

// Entries returns an iterator over the palette entries. Entries are
// mutable; a caller that edits values must call Optimize before the next
// positional mutation. A caller that zeroes a count must retire that slot
// with MarkAsUnused on the palette: Optimize does not retire entries whose
// count is 0.
func (this *PaletteVec[T]) Entries() palettevec.EntryIterator[T] {
	return this.palette.Entries()
}

// Palette exposes the underlying palette
func (this *PaletteVec[T]) Palette() palettevec.Palette[T] {
	return this.palette
}

// Buffer exposes the underlying index buffer
func (this *PaletteVec[T]) Buffer() palettevec.IndexBuffer {
	return this.buffer
}

// MemoryUsage reports the container footprint, summed across the palette
// and the buffer
func (this *PaletteVec[T]) MemoryUsage() palettevec.MemoryUsage {
	usage := this.palette.MemoryUsage().Add(this.buffer.MemoryUsage())
	usage.Stack += int(unsafe.Sizeof(*this))
	return usage
}

// Iterator yields the stored values in positional order by chaining the
// buffer's slot iterator through the palette
type Iterator[T comparable] struct {
	palette palettevec.Palette[T]
	indices palettevec.IndexIterator
}

// Next returns a reference to the next value, or false when exhausted
func (this *Iterator[T]) Next() (*T, bool) {
	index, ok := this.indices.Next()

	if !ok {
		return nil, false
	}

	entry, ok := this.palette.GetByIndex(index)

	if !ok {
		return nil, false
	}

	return &entry.Value, true
}
