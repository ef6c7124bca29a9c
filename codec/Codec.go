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

// Package codec serializes a PaletteVec to a framed binary stream and back.
//
// The stream layout is: magic, version, flags, the buffer and palette
// widths, the sequence length, the occupied palette entries with explicit
// slot ids (holes need no representation that way), the backing words of
// the index buffer and an XXH64 checksum trailer. The word block can be
// S2 compressed.
//
// A stream must be decoded into a container using the same buffer layout
// it was encoded from: the stored width of the fast layout is not a valid
// aligned width and vice versa.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"

	palettevec "github.com/juh9870/palettevec-go"
	"github.com/juh9870/palettevec-go/vec"
)

const (
	// PALETTEVEC_MAGIC marks a serialized container
	PALETTEVEC_MAGIC = uint32(0x50414C56)

	// PALETTEVEC_VERSION is the current stream version
	PALETTEVEC_VERSION = byte(1)

	flagCompressed = byte(1)
)

var (
	// ErrInvalidStream is returned when the magic number does not match
	ErrInvalidStream = errors.New("Invalid stream: magic number mismatch")

	// ErrStreamVersion is returned for an unsupported stream version
	ErrStreamVersion = errors.New("Invalid stream: unsupported version")

	// ErrChecksum is returned when the payload checksum does not match
	ErrChecksum = errors.New("Invalid stream: corrupted data (checksum mismatch)")
)

// ValueCodec encodes single values of the element type. EncodeValue appends
// the encoding to dst, DecodeValue consumes it back.
type ValueCodec[T any] interface {
	EncodeValue(dst []byte, value T) []byte
	DecodeValue(src *bytes.Reader) (T, error)
}

// Encode writes the container to w. When compress is true the word block is
// S2 compressed, which pays off for long sequences of few values.
func Encode[T comparable](w io.Writer, pv *vec.PaletteVec[T], values ValueCodec[T], compress bool) error {
	flags := byte(0)

	if compress {
		flags |= flagCompressed
	}

	payload := []byte{PALETTEVEC_VERSION, flags, byte(pv.Buffer().IndexSize()), byte(pv.Palette().IndexSize())}
	payload = binary.AppendUvarint(payload, uint64(pv.Len()))
	payload = binary.AppendUvarint(payload, uint64(pv.UniqueValues()))

	entries := pv.Entries()

	for {
		index, entry, ok := entries.Next()

		if !ok {
			break
		}

		payload = binary.AppendUvarint(payload, index)
		payload = binary.AppendUvarint(payload, uint64(entry.Count))
		payload = values.EncodeValue(payload, entry.Value)
	}

	words := pv.Buffer().Words()
	payload = binary.AppendUvarint(payload, uint64(len(words)))
	raw := make([]byte, 0, len(words)*8)

	for _, word := range words {
		raw = binary.LittleEndian.AppendUint64(raw, word)
	}

	if compress {
		block := s2.Encode(nil, raw)
		payload = binary.AppendUvarint(payload, uint64(len(block)))
		payload = append(payload, block...)
	} else {
		payload = append(payload, raw...)
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], PALETTEVEC_MAGIC)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("cannot write stream header: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("cannot write stream payload: %w", err)
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], xxhash.Sum64(payload))

	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("cannot write stream checksum: %w", err)
	}

	return nil
}

// Decode reads a container from r into pv, replacing its contents. pv
// chooses the palette and buffer implementations; the buffer layout must
// match the one the stream was encoded from.
func Decode[T comparable](r io.Reader, pv *vec.PaletteVec[T], values ValueCodec[T]) error {
	data, err := io.ReadAll(r)

	if err != nil {
		return fmt.Errorf("cannot read stream: %w", err)
	}

	if len(data) < 4+4+8 {
		return ErrInvalidStream
	}

	if binary.LittleEndian.Uint32(data[:4]) != PALETTEVEC_MAGIC {
		return ErrInvalidStream
	}

	payload := data[4 : len(data)-8]

	if binary.LittleEndian.Uint64(data[len(data)-8:]) != xxhash.Sum64(payload) {
		return ErrChecksum
	}

	if payload[0] != PALETTEVEC_VERSION {
		return ErrStreamVersion
	}

	flags := payload[1]
	bufferSize := int(payload[2])
	paletteSize := int(payload[3])
	src := bytes.NewReader(payload[4:])

	length, err := binary.ReadUvarint(src)

	if err != nil {
		return fmt.Errorf("cannot read sequence length: %w", err)
	}

	entryCount, err := binary.ReadUvarint(src)

	if err != nil {
		return fmt.Errorf("cannot read entry count: %w", err)
	}

	entries := make(map[uint64]palettevec.PaletteEntry[T], entryCount)

	for i := uint64(0); i < entryCount; i++ {
		index, err := binary.ReadUvarint(src)

		if err != nil {
			return fmt.Errorf("cannot read entry slot: %w", err)
		}

		count, err := binary.ReadUvarint(src)

		if err != nil {
			return fmt.Errorf("cannot read entry count: %w", err)
		}

		value, err := values.DecodeValue(src)

		if err != nil {
			return fmt.Errorf("cannot read entry value: %w", err)
		}

		entries[index] = palettevec.PaletteEntry[T]{Value: value, Count: uint32(count)}
	}

	wordCount, err := binary.ReadUvarint(src)

	if err != nil {
		return fmt.Errorf("cannot read word count: %w", err)
	}

	var raw []byte

	if flags&flagCompressed != 0 {
		blockLength, err := binary.ReadUvarint(src)

		if err != nil {
			return fmt.Errorf("cannot read block length: %w", err)
		}

		block := make([]byte, blockLength)

		if _, err := io.ReadFull(src, block); err != nil {
			return fmt.Errorf("cannot read word block: %w", err)
		}

		if raw, err = s2.Decode(nil, block); err != nil {
			return fmt.Errorf("cannot decompress word block: %w", err)
		}
	} else {
		raw = make([]byte, wordCount*8)

		if _, err := io.ReadFull(src, raw); err != nil {
			return fmt.Errorf("cannot read word block: %w", err)
		}
	}

	if uint64(len(raw)) != wordCount*8 {
		return fmt.Errorf("invalid word block: got %d bytes, want %d", len(raw), wordCount*8)
	}

	words := make([]uint64, wordCount)

	for i := range words {
		words[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}

	pv.Palette().Restore(paletteSize, entries)
	pv.Buffer().Restore(bufferSize, int(length), words)
	return nil
}
