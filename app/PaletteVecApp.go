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

// pvec is a small driver around the palettevec library. The demo mode
// palette-compresses an embedded text rune by rune and compares footprints,
// the bench mode sizes the two buffer layouts against each other.
package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/codec"
	"github.com/juh9870/palettevec-go/indexbuffer"
	"github.com/juh9870/palettevec-go/palette"
	"github.com/juh9870/palettevec-go/vec"
)

const _APP_HEADER = "pvec - palettevec demo driver"

//go:embed lorem_ipsum.txt
var loremIpsum string

func main() {
	mode := flag.String("mode", "demo", "demo or bench")
	length := flag.Int("length", 1<<20, "bench: sequence length")
	unique := flag.Int("unique", 64, "bench: number of distinct values")
	threshold := flag.Int("threshold", vec.DEFAULT_INLINE_THRESHOLD, "palette inline threshold")
	flag.Parse()

	fmt.Println(_APP_HEADER)
	fmt.Println()

	switch *mode {
	case "demo":
		demo(*threshold)

	case "bench":
		bench(*length, *unique, *threshold)

	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func demo(threshold int) {
	runes := []rune(loremIpsum)
	pv := vec.NewPaletteVec[rune](palette.NewHybridPalette[rune](threshold), indexbuffer.NewAlignedIndexBuffer())

	for i := range runes {
		pv.PushRef(&runes[i])
	}

	fmt.Printf("UTF-8 text size:         %s\n", humanize.IBytes(uint64(len(loremIpsum))))
	fmt.Printf("[]rune size:             %s\n", humanize.IBytes(uint64(len(runes)*4)))
	fmt.Printf("Positions:               %d\n", pv.Len())
	fmt.Printf("Unique runes:            %d\n", pv.UniqueValues())
	fmt.Printf("Index width:             %d bits\n", pv.Buffer().IndexSize())
	printUsage("PaletteVec", pv.MemoryUsage())

	pv.Optimize()
	printUsage("After optimize", pv.MemoryUsage())

	var stream bytes.Buffer

	if err := codec.Encode(&stream, pv, codec.RuneCodec{}, true); err != nil {
		fmt.Printf("Cannot encode: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Encoded stream size:     %s\n", humanize.IBytes(uint64(stream.Len())))
}

func printUsage(label string, usage palettevec.MemoryUsage) {
	fmt.Printf("%s: stack %s, heap in use %s, heap allocated %s\n", label,
		humanize.IBytes(uint64(usage.Stack)),
		humanize.IBytes(uint64(usage.HeapInUse)),
		humanize.IBytes(uint64(usage.HeapAllocated)))
}

type benchRow struct {
	name   string
	create func(threshold int) *vec.PaletteVec[uint32]
}

func bench(length, unique, threshold int) {
	rows := []benchRow{
		{"aligned", func(threshold int) *vec.PaletteVec[uint32] {
			return vec.NewPaletteVec[uint32](palette.NewHybridPalette[uint32](threshold), indexbuffer.NewAlignedIndexBuffer())
		}},
		{"fast", func(threshold int) *vec.PaletteVec[uint32] {
			return vec.NewPaletteVec[uint32](palette.NewHybridPalette[uint32](threshold), indexbuffer.NewFastIndexBuffer())
		}},
	}

	values := make([]uint32, length)
	rng := rand.New(rand.NewSource(20260802))

	for i := range values {
		values[i] = uint32(rng.Intn(unique))
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Layout", "Push", "Get", "Iterate", "Heap in use", "Dense equivalent"})

	for _, row := range rows {
		pv := row.create(threshold)

		start := time.Now()

		for _, value := range values {
			pv.Push(value)
		}

		pushTime := time.Since(start)

		start = time.Now()
		sink := uint32(0)

		for i := 0; i < length; i++ {
			value, _ := pv.Get(i)
			sink += *value
		}

		getTime := time.Since(start)

		start = time.Now()
		it := pv.Iter()

		for {
			value, ok := it.Next()

			if !ok {
				break
			}

			sink += *value
		}

		iterTime := time.Since(start)

		if sink == 0xFFFFFFFF {
			fmt.Println()
		}

		table.Append([]string{
			row.name,
			pushTime.String(),
			getTime.String(),
			iterTime.String(),
			humanize.IBytes(uint64(pv.MemoryUsage().HeapInUse)),
			humanize.IBytes(uint64(length * 4)),
		})
	}

	table.Render()
}
