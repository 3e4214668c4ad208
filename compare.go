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
	"cmp"
	"reflect"
	"strings"
)

// naturalCompare returns the ordering used between keys with equal hashes in
// a tree bucket when no WithCompare option was given. The returned function
// reports ok=false when the two keys have no natural order relative to each
// other, in which case the caller searches both subtrees on lookup and falls
// back to tieBreakOrder on insertion.
//
// Keys of different dynamic types are ordered by type, with the nil
// interface first. Keys of the same type are ordered by their Compare method
// or their ordered kind. With tieBreakOrder this is a total order.
func naturalCompare[K comparable]() func(a, b K) (int, bool) {
	return func(a, b K) (int, bool) {
		if ta, tb := reflect.TypeOf(any(a)), reflect.TypeOf(any(b)); ta != tb {
			return compareTypes(ta, tb)
		}
		if c, ok := any(a).(interface{ Compare(K) int }); ok {
			return c.Compare(b), true
		}
		return compareAny(any(a), any(b))
	}
}

// compareTypes orders two distinct dynamic types by name and package path.
func compareTypes(ta, tb reflect.Type) (int, bool) {
	switch {
	case ta == nil:
		return -1, true
	case tb == nil:
		return 1, true
	}
	if c := strings.Compare(ta.String(), tb.String()); c != 0 {
		return c, true
	}
	c := strings.Compare(ta.PkgPath(), tb.PkgPath())
	return c, c != 0
}

func compareAny(a, b any) (int, bool) {
	switch x := a.(type) {
	case nil:
		return 0, false
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
		return 0, false
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	case int32:
		if y, ok := b.(int32); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	case uint32:
		if y, ok := b.(uint32); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	}

	// Named types and the remaining ordered kinds.
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !vb.IsValid() || va.Type() != vb.Type() {
		return 0, false
	}
	switch va.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(va.Int(), vb.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(va.Uint(), vb.Uint()), true
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(va.Float(), vb.Float()), true
	case reflect.String:
		return strings.Compare(va.String(), vb.String()), true
	}
	return 0, false
}

// tieBreakOrder orders two distinct entries whose hashes are equal and whose
// keys have no usable ordering. Sequence numbers are unique per map, so the
// result is never 0.
func tieBreakOrder(seqA, seqB uint64) int {
	if seqA < seqB {
		return -1
	}
	return 1
}

// defaultValueEqual returns the value comparison used when no WithValueEqual
// option was given: == for comparable value types and reflect.DeepEqual
// otherwise.
func defaultValueEqual[V any]() func(a, b V) bool {
	t := reflect.TypeFor[V]()
	if t.Kind() != reflect.Interface && t.Comparable() {
		return func(a, b V) bool {
			return any(a) == any(b)
		}
	}
	return func(a, b V) bool {
		return reflect.DeepEqual(a, b)
	}
}
