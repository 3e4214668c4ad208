// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashbin

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/exp/constraints"
)

// Codec encodes keys or values of type T for snapshots.
type Codec[T any] interface {
	// Append appends the encoding of v to dst and returns the extended
	// buffer.
	Append(dst []byte, v T) ([]byte, error)
	// Decode decodes a value from the whole of src. It must not retain src.
	Decode(src []byte) (T, error)
}

// StringCodec encodes strings as their raw bytes.
type StringCodec struct{}

var _ Codec[string] = StringCodec{}

// Append implements Codec.
func (StringCodec) Append(dst []byte, v string) ([]byte, error) {
	return append(dst, v...), nil
}

// Decode implements Codec.
func (StringCodec) Decode(src []byte) (string, error) {
	return string(src), nil
}

// VarintCodec encodes integers as zig-zag varints.
type VarintCodec[T constraints.Integer] struct{}

// Append implements Codec.
func (VarintCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	return binary.AppendVarint(dst, int64(v)), nil
}

// Decode implements Codec.
func (VarintCodec[T]) Decode(src []byte) (T, error) {
	v, n := binary.Varint(src)
	if n <= 0 || n != len(src) {
		return 0, errors.Newf("malformed varint (%d bytes)", len(src))
	}
	if int64(T(v)) != v {
		return 0, errors.Newf("varint %d out of range for %T", v, T(0))
	}
	return T(v), nil
}

// JSONCodec encodes values of any JSON-marshalable type.
type JSONCodec[T any] struct{}

// Append implements Codec.
func (JSONCodec[T]) Append(dst []byte, v T) ([]byte, error) {
	buf, err := sonnet.Marshal(v)
	if err != nil {
		return dst, errors.Wrap(err, "marshaling json")
	}
	return append(dst, buf...), nil
}

// Decode implements Codec.
func (JSONCodec[T]) Decode(src []byte) (T, error) {
	var v T
	if err := sonnet.Unmarshal(src, &v); err != nil {
		return v, errors.Wrap(err, "unmarshaling json")
	}
	return v, nil
}

// unitCodec encodes the empty values of a Set as nothing.
type unitCodec struct{}

func (unitCodec) Append(dst []byte, _ struct{}) ([]byte, error) {
	return dst, nil
}

func (unitCodec) Decode(src []byte) (struct{}, error) {
	if len(src) != 0 {
		return struct{}{}, errors.Newf("unexpected %d byte set value", len(src))
	}
	return struct{}{}, nil
}
