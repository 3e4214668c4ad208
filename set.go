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

// Set is an unordered set of keys backed by a Map[K, struct{}]. It inherits
// the tree bucket behaviour and fail-fast iteration of Map.
//
// A Set is NOT goroutine-safe.
type Set[K comparable] struct {
	m Map[K, struct{}]
}

// NewSet constructs a new Set. See New for initialCapacity and the returned
// errors.
func NewSet[K comparable](initialCapacity int, options ...option[K, struct{}]) (*Set[K], error) {
	s := &Set[K]{}
	if err := s.m.init(initialCapacity, options); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSetFrom constructs a Set holding keys, sized so that the keys fit at the
// set's load factor with room to spare.
func NewSetFrom[K comparable](keys []K, options ...option[K, struct{}]) (*Set[K], error) {
	s, err := NewSet(0, options...)
	if err != nil {
		return nil, err
	}
	c := maximumCapacity
	if fc := float64(len(keys))/s.m.loadFactor + 1; fc < float64(maximumCapacity) {
		c = max(tableSizeFor(int(fc)), defaultInitialCapacity)
	}
	s.m.resizeTo(c)
	for _, k := range keys {
		s.Add(k)
	}
	return s, nil
}

// Add adds key to the set, reporting whether it was not already present.
func (s *Set[K]) Add(key K) bool {
	_, found := s.m.Put(key, struct{}{})
	return !found
}

// Contains reports whether key is in the set.
func (s *Set[K]) Contains(key K) bool {
	return s.m.ContainsKey(key)
}

// Remove removes key from the set, reporting whether it was present.
func (s *Set[K]) Remove(key K) bool {
	_, ok := s.m.Delete(key)
	return ok
}

// Len returns the number of keys in the set.
func (s *Set[K]) Len() int {
	return s.m.Len()
}

// IsEmpty reports whether the set has no keys.
func (s *Set[K]) IsEmpty() bool {
	return s.m.IsEmpty()
}

// Clear removes every key from the set.
func (s *Set[K]) Clear() {
	s.m.Clear()
}

// All calls yield for each key in the set until yield returns false.
func (s *Set[K]) All(yield func(key K) bool) {
	s.m.Keys(yield)
}

// Range calls fn for each key until fn returns false. It returns
// ErrConcurrentModification if the set was structurally modified during the
// iteration.
func (s *Set[K]) Range(fn func(key K) bool) error {
	return s.m.Range(func(key K, _ struct{}) bool {
		return fn(key)
	})
}

// Iter returns an iterator over the keys of the set. The iterator's Value is
// always struct{}{}; its Remove removes the current key from the set.
func (s *Set[K]) Iter() *Iterator[K, struct{}] {
	return s.m.Iter()
}

// Clone returns a shallow copy of the set.
func (s *Set[K]) Clone() *Set[K] {
	c := &Set[K]{}
	s.m.cloneInto(&c.m)
	c.m.copyEntries(&s.m)
	return c
}

// Stats returns statistics about the underlying table.
func (s *Set[K]) Stats() Stats {
	return s.m.Stats()
}

// Close releases the memory of the set back to its allocator.
func (s *Set[K]) Close() {
	s.m.Close()
}
