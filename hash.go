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
	"hash/maphash"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"github.com/twmb/murmur3"
)

// getRuntimeHasher returns a hash function for K backed by the same hashing
// the Go runtime uses for map[K]V keys, keyed by a fresh random seed.
func getRuntimeHasher[K comparable]() func(key K) uint32 {
	seed := maphash.MakeSeed()
	return func(key K) uint32 {
		return fold(maphash.Comparable(seed, key))
	}
}

// isInterface reports whether K is an interface type, in which case a key
// may be the nil interface value.
func isInterface[K comparable]() bool {
	return reflect.TypeFor[K]().Kind() == reflect.Interface
}

// spread XORs the high half of h into the low half. Bucket indexes are taken
// from the low bits, which would otherwise ignore the high bits entirely
// while the table is small.
func spread(h uint32) uint32 {
	return h ^ (h >> 16)
}

func fold(h uint64) uint32 {
	return uint32(h) ^ uint32(h>>32)
}

// XXHashString hashes s with xxhash64 folded to 32 bits. It is suitable for
// WithHash on maps keyed by string.
func XXHashString(s string) uint32 {
	return fold(xxhash.Sum64String(s))
}

// Murmur3String hashes s with 32-bit murmur3.
func Murmur3String(s string) uint32 {
	return murmur3.Sum32([]byte(s))
}

// Murmur3Uint64 hashes the little-endian encoding of v with 32-bit murmur3.
func Murmur3Uint64(v uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return murmur3.Sum32(buf[:])
}

// SipHasher returns a string hash function keyed by (k0, k1). Keyed hashing
// makes bucket placement unpredictable to callers that do not know the key,
// which defeats inputs crafted to collide.
func SipHasher(k0, k1 uint64) func(s string) uint32 {
	return func(s string) uint32 {
		return fold(siphash.Hash(k0, k1, []byte(s)))
	}
}
