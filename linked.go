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

// link holds the neighbours of an entry in an orderList.
type link struct {
	before, after uint32
}

// orderList is a doubly linked list threaded through the arena indexes of a
// Map's entries. links is indexed by arena index and grows with the arena;
// an entry that is not on the list has a zero link.
type orderList struct {
	links      []link
	head, tail uint32
}

func (l *orderList) linkLast(x uint32) {
	if int(x) >= len(l.links) {
		n := 2 * len(l.links)
		if n <= int(x) {
			n = max(int(x)+1, minArenaSize)
		}
		links := make([]link, n)
		copy(links, l.links)
		l.links = links
	}
	l.links[x] = link{before: l.tail}
	if l.tail == nilEntry {
		l.head = x
	} else {
		l.links[l.tail].after = x
	}
	l.tail = x
}

func (l *orderList) unlink(x uint32) {
	lk := l.links[x]
	if lk.before == nilEntry {
		l.head = lk.after
	} else {
		l.links[lk.before].after = lk.after
	}
	if lk.after == nilEntry {
		l.tail = lk.before
	} else {
		l.links[lk.after].before = lk.before
	}
	l.links[x] = link{}
}

func (l *orderList) reset() {
	clear(l.links)
	l.head, l.tail = nilEntry, nilEntry
}

// LinkedMap is a Map that additionally keeps its entries on a doubly linked
// list, so that iteration follows insertion order, or access order (least
// recently accessed first) when created with accessOrder=true. Every method
// of Map is available on a LinkedMap; All, Keys, Values, Range, Iter and
// ReplaceAll visit the entries in list order.
//
// An access is a Get or GetOrDefault that finds the key, or any write to the
// value of an existing key (Put, Replace, CompareAndSwap, Compute, Merge and
// friends). ContainsKey is not an access. In access-order mode an access
// moves the entry to the end of the list and counts as a structural
// modification for iterators.
//
// With an eviction policy installed (see NewLRU and SetEvictionPolicy), the
// eldest entry is considered for removal after each insertion of a new key.
//
// A LinkedMap is NOT goroutine-safe.
type LinkedMap[K comparable, V any] struct {
	Map[K, V]
	order       orderList
	accessOrder bool
	evict       func(key K, value V, size int) bool
}

// NewLinkedMap constructs a new LinkedMap. See New for initialCapacity and
// the returned errors. WithObserver options are ignored.
func NewLinkedMap[K comparable, V any](
	initialCapacity int, accessOrder bool, options ...option[K, V],
) (*LinkedMap[K, V], error) {
	lm := &LinkedMap[K, V]{accessOrder: accessOrder}
	if err := lm.Map.init(initialCapacity, options); err != nil {
		return nil, err
	}
	lm.wire()
	return lm, nil
}

// NewLRU constructs an access-ordered LinkedMap that evicts its least
// recently accessed entry whenever an insertion takes it above maxEntries
// entries.
func NewLRU[K comparable, V any](maxEntries int, options ...option[K, V]) (*LinkedMap[K, V], error) {
	if maxEntries <= 0 {
		return nil, invalidArgumentf("illegal max entries: %d", maxEntries)
	}
	lm, err := NewLinkedMap[K, V](0, true /* accessOrder */, options...)
	if err != nil {
		return nil, err
	}
	lm.SetEvictionPolicy(func(_ K, _ V, size int) bool {
		return size > maxEntries
	})
	return lm, nil
}

func (lm *LinkedMap[K, V]) wire() {
	lm.Map.observer = linkedObserver[K, V]{lm}
	lm.Map.order = &lm.order
}

// SetEvictionPolicy installs fn to decide, after each insertion of a new
// key, whether the eldest entry (passed as key and value, with size the
// current number of entries) is removed. A nil fn disables eviction.
func (lm *LinkedMap[K, V]) SetEvictionPolicy(fn func(key K, value V, size int) bool) {
	lm.evict = fn
}

// AccessOrder reports whether the list is kept in access order.
func (lm *LinkedMap[K, V]) AccessOrder() bool {
	return lm.accessOrder
}

// Get retrieves the value for key, return ok=false if the key is not
// present. In access-order mode a hit moves the entry to the end of the
// list.
func (lm *LinkedMap[K, V]) Get(key K) (value V, ok bool) {
	x := lm.lookup(lm.hashKey(key), key)
	if x == nilEntry {
		return value, false
	}
	if lm.accessOrder {
		lm.touch(x)
	}
	return lm.entries[x].value, true
}

// GetOrDefault returns the value for key, or def if the key is not present.
func (lm *LinkedMap[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := lm.Get(key); ok {
		return v
	}
	return def
}

// Eldest returns the first entry in iteration order.
func (lm *LinkedMap[K, V]) Eldest() (key K, value V, ok bool) {
	if lm.order.head == nilEntry {
		return key, value, false
	}
	e := &lm.entries[lm.order.head]
	return e.key, e.value, true
}

// Youngest returns the last entry in iteration order.
func (lm *LinkedMap[K, V]) Youngest() (key K, value V, ok bool) {
	if lm.order.tail == nilEntry {
		return key, value, false
	}
	e := &lm.entries[lm.order.tail]
	return e.key, e.value, true
}

// Clone returns a shallow copy of the map with the same options, mode,
// eviction policy and iteration order.
func (lm *LinkedMap[K, V]) Clone() *LinkedMap[K, V] {
	c := &LinkedMap[K, V]{
		accessOrder: lm.accessOrder,
		evict:       lm.evict,
	}
	lm.Map.cloneInto(&c.Map)
	c.wire()
	c.copyEntries(&lm.Map)
	return c
}

// Close closes the map. See Map.Close.
func (lm *LinkedMap[K, V]) Close() {
	lm.Map.Close()
	lm.order = orderList{}
}

// touch moves x to the end of the list if it is not already there.
func (lm *LinkedMap[K, V]) touch(x uint32) {
	if lm.order.tail != x {
		lm.order.unlink(x)
		lm.order.linkLast(x)
		lm.modCount++
	}
}

// linkedObserver keeps the list of a LinkedMap in step with its Map.
type linkedObserver[K comparable, V any] struct {
	lm *LinkedMap[K, V]
}

var _ Observer = linkedObserver[int, int]{}

func (o linkedObserver[K, V]) EntryCreated(h Handle) {
	o.lm.order.linkLast(uint32(h))
}

func (o linkedObserver[K, V]) EntryAccessed(h Handle) {
	if o.lm.accessOrder {
		o.lm.touch(uint32(h))
	}
}

func (o linkedObserver[K, V]) EntryRemoved(h Handle) {
	o.lm.order.unlink(uint32(h))
}

func (o linkedObserver[K, V]) InsertCompleted(evict bool) {
	lm := o.lm
	first := lm.order.head
	if !evict || lm.evict == nil || first == nilEntry {
		return
	}
	e := &lm.entries[first]
	key, value, h := e.key, e.value, e.hash
	mc := lm.modCount
	if !lm.evict(key, value, lm.used) {
		return
	}
	if lm.modCount == mc {
		lm.removeEntry(lm.bucketIndex(h), first, true /* movable */)
	} else {
		lm.removeNode(h, key, false /* matchValue */, value, true /* movable */)
	}
}

func (o linkedObserver[K, V]) Cleared() {
	o.lm.order.reset()
}
