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

package codec

import (
	"bytes"
	"encoding/binary"
	"io"
)

// RuneCodec encodes runes as zigzag varints
type RuneCodec struct{}

func (RuneCodec) EncodeValue(dst []byte, value rune) []byte {
	return binary.AppendVarint(dst, int64(value))
}

func (RuneCodec) DecodeValue(src *bytes.Reader) (rune, error) {
	value, err := binary.ReadVarint(src)
	return rune(value), err
}

// Uint32Codec encodes uint32 values as varints
type Uint32Codec struct{}

func (Uint32Codec) EncodeValue(dst []byte, value uint32) []byte {
	return binary.AppendUvarint(dst, uint64(value))
}

func (Uint32Codec) DecodeValue(src *bytes.Reader) (uint32, error) {
	value, err := binary.ReadUvarint(src)
	return uint32(value), err
}

// StringCodec encodes strings as length prefixed bytes
type StringCodec struct{}

func (StringCodec) EncodeValue(dst []byte, value string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	return append(dst, value...)
}

func (StringCodec) DecodeValue(src *bytes.Reader) (string, error) {
	length, err := binary.ReadUvarint(src)

	if err != nil {
		return "", err
	}

	raw := make([]byte, length)

	if _, err := io.ReadFull(src, raw); err != nil {
		return "", err
	}

	return string(raw), nil
}
