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

// Iterator walks the entries of a Map in bucket order, or in list order for
// a LinkedMap. Usage:
//
//	it := m.Iter()
//	for it.Next() {
//	  fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//	  ...
//	}
//
// The iterator is fail-fast: if the map is structurally modified after the
// iterator was created by anything other than Iterator.Remove, Next returns
// false and Err returns ErrConcurrentModification. Detection is best-effort
// and only meant to surface bugs.
type Iterator[K comparable, V any] struct {
	m *Map[K, V]
	// next is the entry that the following call to Next will return.
	next uint32
	// current is the entry returned by the last call to Next, or nilEntry
	// after Remove.
	current uint32
	// index is the next bucket to scan once the chain of next is exhausted.
	index    int
	expected uint64
	key      K
	value    V
	err      error
}

// Iter returns an iterator positioned before the first entry.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	it := &Iterator[K, V]{
		m:        m,
		expected: m.modCount,
	}
	if m.order != nil {
		it.next = m.order.head
	} else {
		it.next = it.scan()
	}
	return it
}

// scan returns the head of the next non-empty bucket.
func (it *Iterator[K, V]) scan() uint32 {
	for it.index < len(it.m.buckets) {
		b := &it.m.buckets[it.index]
		it.index++
		if b.head != nilEntry {
			return b.head
		}
	}
	return nilEntry
}

func (it *Iterator[K, V]) successor(x uint32) uint32 {
	if it.m.order != nil {
		return it.m.order.links[x].after
	}
	if next := it.m.entries[x].next; next != nilEntry {
		return next
	}
	return it.scan()
}

// Next advances the iterator and reports whether an entry is available.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if it.m.modCount != it.expected {
		it.err = ErrConcurrentModification
		return false
	}
	x := it.next
	if x == nilEntry {
		it.current = nilEntry
		return false
	}
	e := &it.m.entries[x]
	it.key, it.value = e.key, e.value
	it.current = x
	it.next = it.successor(x)
	return true
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry as of the call to Next.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// SetValue replaces the value of the current entry. It is not a structural
// modification.
func (it *Iterator[K, V]) SetValue(value V) error {
	if it.err != nil {
		return it.err
	}
	if it.current == nilEntry {
		return ErrNoCurrentEntry
	}
	if it.m.modCount != it.expected {
		it.err = ErrConcurrentModification
		return it.err
	}
	it.m.entries[it.current].value = value
	it.value = value
	return nil
}

// Remove deletes the current entry from the map. The iterator stays valid
// and continues with the entry that followed the removed one.
func (it *Iterator[K, V]) Remove() error {
	if it.err != nil {
		return it.err
	}
	if it.current == nilEntry {
		return ErrNoCurrentEntry
	}
	m := it.m
	if m.modCount != it.expected {
		it.err = ErrConcurrentModification
		return it.err
	}
	x := it.current
	it.current = nilEntry
	m.removeEntry(m.bucketIndex(m.entries[x].hash), x, false /* movable */)
	it.expected = m.modCount
	return nil
}

// Err returns ErrConcurrentModification if iteration stopped because the map
// was modified underneath the iterator, and nil otherwise.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, range stops the iteration. All has the shape of an
// iter.Seq2, so a map can be ranged over directly:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
//
// A structural modification of the map during iteration ends the iteration
// early. Use Range or Iter to find out whether that happened.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	it := m.Iter()
	for it.Next() {
		if !yield(it.key, it.value) {
			return
		}
	}
}

// Keys calls yield for each key in the map, in the same order as All.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	it := m.Iter()
	for it.Next() {
		if !yield(it.key) {
			return
		}
	}
}

// Values calls yield for each value in the map, in the same order as All.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	it := m.Iter()
	for it.Next() {
		if !yield(it.value) {
			return
		}
	}
}

// Range calls fn for each entry in the map until fn returns false. It
// returns ErrConcurrentModification if fn (or anything else) structurally
// modified the map before the iteration completed.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) error {
	it := m.Iter()
	for it.Next() {
		if !fn(it.key, it.value) {
			return nil
		}
	}
	return it.Err()
}

// ReplaceAll replaces the value of every entry with the result of fn. It
// returns ErrConcurrentModification, leaving the remaining entries
// untouched, if fn structurally modifies the map.
func (m *Map[K, V]) ReplaceAll(fn func(key K, value V) V) error {
	it := m.Iter()
	for it.Next() {
		if err := it.SetValue(fn(it.key, it.value)); err != nil {
			return err
		}
	}
	return it.Err()
}
