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

// The conditional and computing operations below each walk the key's bucket
// once. A mapping function returning ok=false means "no mapping": the entry
// is removed, or not inserted. If a mapping function structurally modifies
// the map, the key is located again before its result is applied.

// Replace sets the value for key only if the key is already present. It
// returns the previous value and ok=true if it did.
func (m *Map[K, V]) Replace(key K, value V) (prev V, ok bool) {
	x := m.lookup(m.hashKey(key), key)
	if x == nilEntry {
		return prev, false
	}
	e := &m.entries[x]
	prev = e.value
	e.value = value
	m.observer.EntryAccessed(Handle(x))
	return prev, true
}

// CompareAndSwap sets the value for key to new only if the key is present
// with a value equal to old. It reports whether the value was swapped.
func (m *Map[K, V]) CompareAndSwap(key K, old, new V) (swapped bool) {
	x := m.lookup(m.hashKey(key), key)
	if x == nilEntry {
		return false
	}
	e := &m.entries[x]
	if !m.valueEqual(e.value, old) {
		return false
	}
	e.value = new
	m.observer.EntryAccessed(Handle(x))
	return true
}

// ComputeIfAbsent returns the value for key if it is present. Otherwise it
// calls fn and, if fn returns ok=true, inserts and returns its value.
func (m *Map[K, V]) ComputeIfAbsent(key K, fn func(key K) (V, bool)) (value V, ok bool) {
	h := m.hashKey(key)
	bi, x, tail := m.locate(h, key)
	if x != nilEntry {
		m.observer.EntryAccessed(Handle(x))
		return m.entries[x].value, true
	}
	mc := m.modCount
	value, ok = fn(key)
	if !ok {
		return value, false
	}
	if m.modCount != mc {
		return m.putAfterCompute(h, key, value)
	}
	m.insert(bi, tail, h, key, value, true /* evict */)
	return value, true
}

// ComputeIfPresent calls fn with the value for key if the key is present.
// If fn returns ok=true the value is replaced, otherwise the entry is
// removed. It returns the new value and whether the key is now present.
func (m *Map[K, V]) ComputeIfPresent(key K, fn func(key K, value V) (V, bool)) (value V, ok bool) {
	h := m.hashKey(key)
	x := m.lookup(h, key)
	if x == nilEntry {
		return value, false
	}
	mc := m.modCount
	value, ok = fn(key, m.entries[x].value)
	return m.applyCompute(h, key, x, mc, value, ok)
}

// Compute calls fn with the current value for key (and whether it is
// present) and stores the result. If fn returns ok=false the entry is
// removed, or not created. It returns the new value and whether the key is
// now present.
func (m *Map[K, V]) Compute(key K, fn func(key K, value V, present bool) (V, bool)) (value V, ok bool) {
	h := m.hashKey(key)
	bi, x, tail := m.locate(h, key)
	var old V
	if x != nilEntry {
		old = m.entries[x].value
	}
	mc := m.modCount
	value, ok = fn(key, old, x != nilEntry)
	if x != nilEntry {
		return m.applyCompute(h, key, x, mc, value, ok)
	}
	if !ok {
		return value, false
	}
	if m.modCount != mc {
		return m.putAfterCompute(h, key, value)
	}
	m.insert(bi, tail, h, key, value, true /* evict */)
	return value, true
}

// Merge stores value for key if the key is absent. Otherwise it stores the
// result of fn applied to the existing value and value, removing the entry
// if fn returns ok=false. It returns the new value and whether the key is
// now present.
func (m *Map[K, V]) Merge(key K, value V, fn func(old, value V) (V, bool)) (V, bool) {
	h := m.hashKey(key)
	bi, x, tail := m.locate(h, key)
	if x == nilEntry {
		m.insert(bi, tail, h, key, value, true /* evict */)
		return value, true
	}
	mc := m.modCount
	merged, ok := fn(m.entries[x].value, value)
	return m.applyCompute(h, key, x, mc, merged, ok)
}

// applyCompute stores the result of a mapping function for the entry x that
// was present for key when the function was called.
func (m *Map[K, V]) applyCompute(h uint32, key K, x uint32, mc uint64, value V, ok bool) (V, bool) {
	if m.modCount != mc {
		if !ok {
			var zero V
			m.removeNode(h, key, false /* matchValue */, zero, true /* movable */)
			return zero, false
		}
		return m.putAfterCompute(h, key, value)
	}
	if !ok {
		m.removeEntry(m.bucketIndex(h), x, true /* movable */)
		var zero V
		return zero, false
	}
	m.entries[x].value = value
	m.observer.EntryAccessed(Handle(x))
	return value, true
}

func (m *Map[K, V]) putAfterCompute(h uint32, key K, value V) (V, bool) {
	m.putVal(h, key, value, false /* onlyIfAbsent */, true /* evict */)
	return value, true
}
