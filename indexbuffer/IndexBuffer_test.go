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
	"testing"

	"github.com/stretchr/testify/require"

	palettevec "github.com/juh9870/palettevec-go"
)

const _TEST_ITERATIONS = 300

var _TEST_INDEX_SIZES = []int{1, 2, 3, 5, 7, 8, 13, 16, 31, 32, 33, 63}

func maskFor(indexSize int) uint64 {
	return uint64(1)<<uint(indexSize) - 1
}

func testIndexBufferPushPop(t *testing.T, buffer palettevec.IndexBuffer, indexSize int) {
	_, ok := buffer.PopIndex()
	require.False(t, ok)

	buffer.SetIndexSize(indexSize, nil)
	mask := maskFor(indexSize)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		index := uint64(i) & mask
		buffer.PushIndex(index)
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, index, popped)
		_, ok = buffer.PopIndex()
		require.False(t, ok)
	}

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & mask)
	}

	for i := _TEST_ITERATIONS - 1; i >= 0; i-- {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(i)&mask, popped)
	}

	_, ok = buffer.PopIndex()
	require.False(t, ok)
}

func testIndexBufferGet(t *testing.T, buffer palettevec.IndexBuffer, indexSize int) {
	buffer.SetIndexSize(indexSize, nil)
	distinct := uint64(1) << uint(indexSize)

	if distinct > _TEST_ITERATIONS {
		distinct = _TEST_ITERATIONS
	}

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) % distinct)
	}

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, uint64(i)%distinct, buffer.GetIndex(i))
	}
}

func testIndexBufferSet(t *testing.T, buffer palettevec.IndexBuffer, indexSize int) {
	buffer.SetIndexSize(indexSize, nil)
	distinct := uint64(1) << uint(indexSize)

	if distinct > _TEST_ITERATIONS {
		distinct = _TEST_ITERATIONS
	}

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) % distinct)
	}

	for i := 0; i < _TEST_ITERATIONS; i++ {
		old := buffer.SetIndex(i, uint64(i+1)%distinct)
		require.Equal(t, uint64(i)%distinct, old)
	}

	for i := _TEST_ITERATIONS - 1; i >= 0; i-- {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(i+1)%distinct, popped)
	}
}

func testIndexBufferZeroed(t *testing.T, buffer palettevec.IndexBuffer, indexSize int) {
	buffer.SetIndexSize(indexSize, nil)
	buffer.Zeroed(_TEST_ITERATIONS)
	require.Equal(t, _TEST_ITERATIONS, buffer.Len())

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, uint64(0), buffer.GetIndex(i))
	}

	// Zeroed discards previous contents
	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.SetIndex(i, 1)
	}

	buffer.Zeroed(_TEST_ITERATIONS)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(0), popped)
	}

	_, ok := buffer.PopIndex()
	require.False(t, ok)
}

func testIndexBufferGrowing(t *testing.T, buffer palettevec.IndexBuffer, indexSizes []int) {
	lowest := indexSizes[0]
	mask := maskFor(lowest)
	buffer.SetIndexSize(lowest, nil)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & mask)
	}

	for _, indexSize := range indexSizes[1:] {
		buffer.SetIndexSize(indexSize, nil)

		for i := 0; i < _TEST_ITERATIONS; i++ {
			require.Equal(t, uint64(i)&mask, buffer.GetIndex(i))
		}
	}

	for i := _TEST_ITERATIONS - 1; i >= 0; i-- {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(i)&mask, popped)
	}
}

func testIndexBufferShrinking(t *testing.T, buffer palettevec.IndexBuffer, indexSizes []int) {
	highest := indexSizes[len(indexSizes)-1]
	lowest := indexSizes[0]
	mask := maskFor(lowest)
	buffer.SetIndexSize(highest, nil)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & mask)
	}

	for i := len(indexSizes) - 2; i >= 0; i-- {
		buffer.SetIndexSize(indexSizes[i], nil)

		for j := 0; j < _TEST_ITERATIONS; j++ {
			require.Equal(t, uint64(j)&mask, buffer.GetIndex(j))
		}
	}

	for i := _TEST_ITERATIONS - 1; i >= 0; i-- {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(i)&mask, popped)
	}
}

func testIndexBufferIndexSize0(t *testing.T, buffer palettevec.IndexBuffer) {
	_, ok := buffer.PopIndex()
	require.False(t, ok)

	buffer.SetIndexSize(0, nil)

	for i := 0; i < 10; i++ {
		buffer.PushIndex(0)
	}

	require.Equal(t, 10, buffer.Len())
	require.Empty(t, buffer.Words())

	for i := 0; i < 10; i++ {
		require.Equal(t, uint64(0), buffer.GetIndex(i))
	}

	// Setting is not tested because the coordinator never sets at width 0

	buffer.SetIndexSize(1, nil)

	for i := 0; i < 10; i++ {
		require.Equal(t, uint64(0), buffer.GetIndex(i))
	}

	buffer.SetIndexSize(0, map[uint64]uint64{0: 0})
	require.Empty(t, buffer.Words())

	for i := 0; i < 10; i++ {
		popped, ok := buffer.PopIndex()
		require.True(t, ok)
		require.Equal(t, uint64(0), popped)
	}

	_, ok = buffer.PopIndex()
	require.False(t, ok)
}

func testIndexBufferRenumber(t *testing.T, buffer palettevec.IndexBuffer) {
	buffer.SetIndexSize(3, nil)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & 7)
	}

	// Same width, reverse the slots
	renumber := make(map[uint64]uint64)

	for i := uint64(0); i < 8; i++ {
		renumber[i] = 7 - i
	}

	buffer.SetIndexSize(3, renumber)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, 7-(uint64(i)&7), buffer.GetIndex(i))
	}

	// Widen with an offsetting renumber
	renumber = make(map[uint64]uint64)

	for i := uint64(0); i < 8; i++ {
		renumber[i] = i + 100
	}

	buffer.SetIndexSize(10, renumber)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, 7-(uint64(i)&7)+100, buffer.GetIndex(i))
	}

	// Narrow back down
	renumber = make(map[uint64]uint64)

	for i := uint64(100); i < 108; i++ {
		renumber[i] = i - 100
	}

	buffer.SetIndexSize(4, renumber)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, 7-(uint64(i)&7), buffer.GetIndex(i))
	}
}

func testIndexBufferResize(t *testing.T, buffer palettevec.IndexBuffer) {
	// From empty with fill 0 this acts as Zeroed
	buffer.SetIndexSize(4, nil)
	removed, added := buffer.Resize(20, 0)
	require.Nil(t, removed)
	require.Equal(t, 20, added)
	require.Equal(t, 20, buffer.Len())

	// Growing appends copies of fill
	removed, added = buffer.Resize(32, 5)
	require.Nil(t, removed)
	require.Equal(t, 12, added)

	for i := 20; i < 32; i++ {
		require.Equal(t, uint64(5), buffer.GetIndex(i))
	}

	// Shrinking reports the dropped ids as a multiset
	removed, added = buffer.Resize(10, 0)
	require.Equal(t, 0, added)
	require.Equal(t, map[uint64]uint32{0: 10, 5: 12}, removed)
	require.Equal(t, 10, buffer.Len())
}

func testIndexBufferIter(t *testing.T, buffer palettevec.IndexBuffer, indexSize int) {
	buffer.SetIndexSize(indexSize, nil)
	mask := maskFor(indexSize)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & mask)
	}

	it := buffer.Iter()

	for i := 0; i < _TEST_ITERATIONS; i++ {
		index, ok := it.Next()
		require.True(t, ok)
		require.Equal(t, uint64(i)&mask, index)
	}

	_, ok := it.Next()
	require.False(t, ok)

	// Restartable
	it = buffer.Iter()
	index, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, uint64(0), index)
}

func testIndexBufferWordsRestore(t *testing.T, buffer, fresh palettevec.IndexBuffer, indexSize int) {
	buffer.SetIndexSize(indexSize, nil)
	mask := maskFor(indexSize)

	for i := 0; i < _TEST_ITERATIONS; i++ {
		buffer.PushIndex(uint64(i) & mask)
	}

	words := append([]uint64(nil), buffer.Words()...)
	fresh.Restore(buffer.IndexSize(), buffer.Len(), words)
	require.Equal(t, buffer.Len(), fresh.Len())

	for i := 0; i < _TEST_ITERATIONS; i++ {
		require.Equal(t, buffer.GetIndex(i), fresh.GetIndex(i))
	}
}

func testIndexBufferTrailingWordFreed(t *testing.T, buffer palettevec.IndexBuffer) {
	buffer.SetIndexSize(8, nil)

	for i := 0; i < 9; i++ {
		buffer.PushIndex(uint64(i))
	}

	require.Equal(t, 2, len(buffer.Words()))
	buffer.PopIndex()
	require.Equal(t, 1, len(buffer.Words()))
}

func runIndexBufferSuite(t *testing.T, newBuffer func() palettevec.IndexBuffer, indexSizes []int) {
	for _, indexSize := range indexSizes {
		testIndexBufferPushPop(t, newBuffer(), indexSize)
		testIndexBufferGet(t, newBuffer(), indexSize)
		testIndexBufferSet(t, newBuffer(), indexSize)
		testIndexBufferZeroed(t, newBuffer(), indexSize)
		testIndexBufferIter(t, newBuffer(), indexSize)
		testIndexBufferWordsRestore(t, newBuffer(), newBuffer(), indexSize)
	}

	testIndexBufferGrowing(t, newBuffer(), indexSizes)
	testIndexBufferShrinking(t, newBuffer(), indexSizes)
	testIndexBufferIndexSize0(t, newBuffer())
	testIndexBufferRenumber(t, newBuffer())
	testIndexBufferResize(t, newBuffer())

	buffer := newBuffer()
	buffer.SetIndexSize(13, nil)
	buffer.PushIndex(42)
	buffer.Clear()
	require.Equal(t, 0, buffer.Len())
	require.True(t, buffer.IsEmpty())
	require.Equal(t, 0, buffer.IndexSize())
}

func TestAlignedIndexBuffer(t *testing.T) {
	runIndexBufferSuite(t, func() palettevec.IndexBuffer {
		return NewAlignedIndexBuffer()
	}, _TEST_INDEX_SIZES)
}

func TestFastIndexBuffer(t *testing.T) {
	runIndexBufferSuite(t, func() palettevec.IndexBuffer {
		return NewFastIndexBuffer()
	}, _TEST_INDEX_SIZES)

	testIndexBufferTrailingWordFreed(t, NewFastIndexBuffer())
}

func TestFastIndexBufferStoredWidth(t *testing.T) {
	buffer := NewFastIndexBuffer()
	require.Equal(t, 0, buffer.IndexSize())

	buffer.SetIndexSize(1, nil)
	require.Equal(t, 8, buffer.IndexSize())

	buffer.SetIndexSize(9, nil)
	require.Equal(t, 16, buffer.IndexSize())

	buffer.SetIndexSize(17, nil)
	require.Equal(t, 32, buffer.IndexSize())

	buffer.SetIndexSize(33, nil)
	require.Equal(t, 64, buffer.IndexSize())
}

func TestAlignedIndexBufferMemoryUsage(t *testing.T) {
	buffer := NewAlignedIndexBuffer()
	buffer.SetIndexSize(16, nil)

	for i := 0; i < 64; i++ {
		buffer.PushIndex(uint64(i))
	}

	// 4 indices per word at width 16
	usage := buffer.MemoryUsage()
	require.Equal(t, 16*8, usage.HeapInUse)
	require.GreaterOrEqual(t, usage.HeapAllocated, usage.HeapInUse)
	require.Greater(t, usage.Stack, 0)
}
