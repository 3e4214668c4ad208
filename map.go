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

// Package hashbin is a Go implementation of a chained hash table whose
// overfull buckets are converted into red-black trees ("tree bins"), bounding
// the worst case cost of a lookup in a bucket to O(log n) even when many keys
// share a hash.
//
// # Buckets
//
// The table is a power-of-two sized array of buckets. A key is placed in the
// bucket hash(key) & (capacity-1), where hash(key) is the user's hash with
// its high 16 bits XORed into its low 16 bits. A bucket is one of two kinds:
//
//   - A chain: a singly linked list of entries in insertion order. Lookups
//     compare the full 32-bit hash before comparing keys.
//   - A tree: a red-black tree ordered by hash, then by the natural order of
//     the keys when they have one, then by entry creation order. The tree
//     entries are also threaded onto a doubly linked chain whose head is
//     always the tree root, so code that only walks chains (iteration,
//     resizing) never needs to know the bucket is a tree.
//
// When appending to a chain makes it longer than 8 entries the bucket is
// converted to a tree, unless the table has fewer than 64 buckets, in which
// case the table is doubled instead. A tree that drops to 6 or fewer entries
// is converted back to a chain.
//
// # Resizing
//
// The table doubles once the number of entries exceeds capacity*loadFactor.
// Because capacity is a power of two, the entries of old bucket i land in
// either new bucket i or new bucket i+oldCapacity, decided by the single bit
// hash & oldCapacity. Each bucket is split into a "lo" and a "hi" list in one
// pass that preserves the relative order of entries. A tree bucket is split
// the same way; each half stays a tree only if it still holds more than 6
// entries.
//
// # Implementation
//
// Entries live in an arena (a slice of Entry) and refer to each other by
// uint32 index, with index 0 reserved as nil. Arena indexes survive resizes,
// which lets a LinkedMap keep a second, insertion or access ordered, list
// over the same entries in a side table. The LinkedMap is told about every
// structural change through the Observer interface rather than by
// overriding methods of the Map.
//
// Iteration is fail-fast: an Iterator remembers the modification counter of
// the map when it was created and reports ErrConcurrentModification if any
// structural change other than its own Remove happens in the meantime.
//
// A Map is NOT goroutine-safe.
package hashbin

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	defaultInitialCapacity = 16
	defaultLoadFactor      = 0.75

	// A chain that grows beyond treeifyThreshold entries is converted to a
	// tree, provided the table has at least minTreeifyCapacity buckets.
	treeifyThreshold   = 8
	minTreeifyCapacity = 64
	// A tree that shrinks to untreeifyThreshold entries or fewer, by removal
	// or by a resize split, is converted back to a chain.
	untreeifyThreshold = 6
)

// maximumCapacity is the largest bucket count. It is a variable so tests can
// lower it.
var maximumCapacity = 1 << 30

type binKind uint8

const (
	chainBin binKind = iota
	treeBin
)

func (k binKind) String() string {
	switch k {
	case chainBin:
		return "chain"
	case treeBin:
		return "tree"
	default:
		return fmt.Sprintf("binKind(%d)", k)
	}
}

// Bucket is the head of one hash bucket.
type Bucket struct {
	// head is the first entry of the bucket's chain. For a tree bucket it is
	// also the tree root, except transiently after a removal made through an
	// Iterator.
	head uint32
	// count is the number of entries in the bucket.
	count int32
	kind  binKind
}

// Map is an unordered map from keys to values. By default, a Map[K,V] uses
// the same hash function as Go's builtin map[K]V, though a different hash
// function can be specified using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hash func(key K) uint32
	// nilable is set when K is an interface type; the nil key hashes to 0.
	nilable    bool
	compare    func(a, b K) (int, bool)
	valueEqual func(a, b V) bool
	allocator  Allocator[K, V]
	observer   Observer
	logger     *zap.Logger
	// order is the secondary entry list maintained by a LinkedMap. When set,
	// iteration follows it instead of the buckets.
	order *orderList

	buckets []Bucket
	// entries is the arena. entries[0] is never used.
	entries []Entry[K, V]
	// top is the lowest arena index that has never been allocated.
	top uint32
	// free is the head of the free list of released arena slots.
	free uint32
	seq  uint64

	// The number of entries in the map.
	used       int
	threshold  int
	loadFactor float64
	// modCount is incremented by every structural modification.
	modCount uint64

	resizes     uint64
	treeifies   uint64
	untreeifies uint64
}

// New constructs a new Map with the specified initial capacity. If
// initialCapacity is 0 the table is allocated with the default capacity of
// 16 buckets on the first insert; otherwise it is allocated immediately with
// the smallest power of two >= initialCapacity. New returns an error wrapping
// ErrInvalidArgument if initialCapacity is negative or the load factor is
// not a positive finite number.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{}
	if err := m.init(initialCapacity, options); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map[K, V]) init(initialCapacity int, options []option[K, V]) error {
	*m = Map[K, V]{
		hash:       getRuntimeHasher[K](),
		nilable:    isInterface[K](),
		compare:    naturalCompare[K](),
		valueEqual: defaultValueEqual[V](),
		allocator:  defaultAllocator[K, V]{},
		logger:     zap.NewNop(),
		top:        1,
		loadFactor: defaultLoadFactor,
	}
	for _, op := range options {
		op.apply(m)
	}
	if m.observer == nil {
		m.observer = NopObserver{}
	}

	if initialCapacity < 0 {
		return invalidArgumentf("illegal initial capacity: %d", initialCapacity)
	}
	if !(m.loadFactor > 0) || math.IsInf(m.loadFactor, 0) {
		return invalidArgumentf("illegal load factor: %v", m.loadFactor)
	}
	if initialCapacity > 0 {
		m.resizeTo(tableSizeFor(initialCapacity))
	}
	m.checkInvariants()
	return nil
}

// tableSizeFor returns the smallest power of two >= c, clamped to
// [1, maximumCapacity].
func tableSizeFor(c int) int {
	if c <= 1 {
		return 1
	}
	if c >= maximumCapacity {
		return maximumCapacity
	}
	return 1 << bits.Len(uint(c-1))
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator == nil {
		return
	}
	if m.buckets != nil {
		m.allocator.FreeBuckets(m.buckets)
		m.buckets = nil
	}
	if m.entries != nil {
		m.allocator.FreeEntries(m.entries)
		m.entries = nil
	}
	m.used = 0
	m.top = 1
	m.free = nilEntry
	m.allocator = nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// capacity returns the number of buckets.
func (m *Map[K, V]) capacity() int {
	return len(m.buckets)
}

// At returns the key and value of the entry identified by h. It is intended
// for use by an Observer; h must identify a live entry.
func (m *Map[K, V]) At(h Handle) (key K, value V) {
	e := &m.entries[h]
	return e.key, e.value
}

func (m *Map[K, V]) hashKey(key K) uint32 {
	if m.nilable && any(key) == nil {
		return 0
	}
	return spread(m.hash(key))
}

func (m *Map[K, V]) bucketIndex(h uint32) int {
	return int(h & uint32(len(m.buckets)-1))
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if x := m.lookup(m.hashKey(key), key); x != nilEntry {
		return m.entries[x].value, true
	}
	return value, false
}

// GetOrDefault returns the value for key, or def if the key is not present.
func (m *Map[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	return def
}

// ContainsKey reports whether the map holds an entry for key.
func (m *Map[K, V]) ContainsKey(key K) bool {
	return m.lookup(m.hashKey(key), key) != nilEntry
}

// ContainsValue reports whether any entry holds a value equal to value. It
// scans every entry.
func (m *Map[K, V]) ContainsValue(value V) bool {
	found := false
	m.walk(func(x uint32) bool {
		found = m.valueEqual(m.entries[x].value, value)
		return !found
	})
	return found
}

// lookup returns the arena index of the entry for key, or nilEntry.
func (m *Map[K, V]) lookup(h uint32, key K) uint32 {
	if len(m.buckets) == 0 {
		return nilEntry
	}
	b := &m.buckets[m.bucketIndex(h)]
	switch b.kind {
	case chainBin:
		for x := b.head; x != nilEntry; {
			e := &m.entries[x]
			if e.hash == h && e.key == key {
				return x
			}
			x = e.next
		}
		return nilEntry
	case treeBin:
		return m.findTree(m.treeRoot(b.head), h, key)
	default:
		panic(errors.AssertionFailedf("unknown bucket kind %s", b.kind))
	}
}

// locate finds the entry for key in its bucket, allocating the table if it
// has not been allocated yet. If the key is absent from a chain bucket, tail
// is the last entry of the chain (nilEntry if the chain is empty).
func (m *Map[K, V]) locate(h uint32, key K) (bi int, x, tail uint32) {
	if len(m.buckets) == 0 {
		m.resize()
	}
	bi = m.bucketIndex(h)
	b := &m.buckets[bi]
	switch b.kind {
	case chainBin:
		for x = b.head; x != nilEntry; {
			e := &m.entries[x]
			if e.hash == h && e.key == key {
				return bi, x, tail
			}
			tail = x
			x = e.next
		}
		return bi, nilEntry, tail
	case treeBin:
		return bi, m.findTree(m.treeRoot(b.head), h, key), nilEntry
	default:
		panic(errors.AssertionFailedf("unknown bucket kind %s", b.kind))
	}
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. It returns the previous value and
// replaced=true if the key was already present.
func (m *Map[K, V]) Put(key K, value V) (prev V, replaced bool) {
	return m.putVal(m.hashKey(key), key, value, false /* onlyIfAbsent */, true /* evict */)
}

// PutIfAbsent inserts an entry for key unless one already exists, in which
// case the existing value is returned with loaded=true and the map is left
// unchanged.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (existing V, loaded bool) {
	return m.putVal(m.hashKey(key), key, value, true /* onlyIfAbsent */, true /* evict */)
}

func (m *Map[K, V]) putVal(h uint32, key K, value V, onlyIfAbsent, evict bool) (prev V, found bool) {
	bi, x, tail := m.locate(h, key)
	if x != nilEntry {
		e := &m.entries[x]
		prev = e.value
		if !onlyIfAbsent {
			e.value = value
		}
		m.observer.EntryAccessed(Handle(x))
		return prev, true
	}
	m.insert(bi, tail, h, key, value, evict)
	return prev, false
}

// insert adds an entry for a key known to be absent from bucket bi. tail is
// the last entry of the bucket if it is a chain.
func (m *Map[K, V]) insert(bi int, tail uint32, h uint32, key K, value V, evict bool) {
	switch m.buckets[bi].kind {
	case chainBin:
		x := m.newEntry(h, key, value)
		b := &m.buckets[bi]
		if tail == nilEntry {
			b.head = x
		} else {
			m.entries[tail].next = x
		}
		b.count++
		if b.count > treeifyThreshold {
			m.treeifyBin(bi)
		}
	case treeBin:
		m.putTreeVal(bi, h, key, value)
	default:
		panic(errors.AssertionFailedf("unknown bucket kind %s", m.buckets[bi].kind))
	}

	m.modCount++
	m.used++
	if m.used > m.threshold {
		m.resize()
	}
	m.observer.InsertCompleted(evict)
	m.checkInvariants()
}

// treeifyBin converts bucket bi to a tree, or doubles the table instead if
// it is still too small for tree buckets to be worthwhile.
func (m *Map[K, V]) treeifyBin(bi int) {
	if len(m.buckets) < minTreeifyCapacity {
		m.resize()
		return
	}
	m.treeify(bi)
}

// resize doubles the table, or allocates it with the default capacity if it
// has not been allocated yet.
func (m *Map[K, V]) resize() {
	oldCap := len(m.buckets)
	switch {
	case oldCap >= maximumCapacity:
		m.threshold = math.MaxInt
	case oldCap > 0:
		m.resizeTo(oldCap << 1)
	default:
		m.resizeTo(min(defaultInitialCapacity, maximumCapacity))
	}
}

// resizeTo replaces the table with one of newCap buckets and redistributes
// the entries.
func (m *Map[K, V]) resizeTo(newCap int) {
	oldBuckets := m.buckets
	oldCap := len(oldBuckets)

	m.buckets = m.allocator.AllocBuckets(newCap)
	if ft := float64(newCap) * m.loadFactor; newCap < maximumCapacity && ft < float64(math.MaxInt) {
		m.threshold = int(ft)
	} else {
		m.threshold = math.MaxInt
	}

	for j := range oldBuckets {
		b := oldBuckets[j]
		if b.head == nilEntry {
			continue
		}
		switch b.kind {
		case chainBin:
			m.splitChain(b, j, oldCap)
		case treeBin:
			m.splitTree(b, j, oldCap)
		default:
			panic(errors.AssertionFailedf("unknown bucket kind %s", b.kind))
		}
	}

	if oldBuckets != nil {
		m.allocator.FreeBuckets(oldBuckets)
		m.resizes++
		// Moving entries between buckets invalidates bucket positions held
		// by iterators and by the compute methods.
		m.modCount++
	}
	if ce := m.logger.Check(zap.DebugLevel, "resize"); ce != nil {
		ce.Write(zap.Int("old-capacity", oldCap), zap.Int("new-capacity", newCap),
			zap.Int("threshold", m.threshold), zap.Int("len", m.used))
	}
}

// appendChain appends x to the chain described by b and tail.
func (m *Map[K, V]) appendChain(b *Bucket, tail *uint32, x uint32) {
	if *tail == nilEntry {
		b.head = x
	} else {
		m.entries[*tail].next = x
	}
	*tail = x
	b.count++
}

// splitChain distributes the entries of old chain bucket b (formerly at index
// j) between new buckets j and j+oldCap, preserving their relative order.
func (m *Map[K, V]) splitChain(b Bucket, j, oldCap int) {
	if b.count == 1 {
		m.buckets[m.bucketIndex(m.entries[b.head].hash)] = b
		return
	}
	bit := uint32(oldCap)
	var lo, hi Bucket
	var loTail, hiTail uint32
	for x := b.head; x != nilEntry; {
		e := &m.entries[x]
		next := e.next
		e.next = nilEntry
		if e.hash&bit == 0 {
			m.appendChain(&lo, &loTail, x)
		} else {
			m.appendChain(&hi, &hiTail, x)
		}
		x = next
	}
	m.buckets[j] = lo
	m.buckets[j+oldCap] = hi
}

// splitTree distributes the entries of old tree bucket b (formerly at index
// j) between new buckets j and j+oldCap. The two halves are threaded as
// doubly linked chains in their original order. A half with
// untreeifyThreshold or fewer entries becomes a chain; a larger half is
// rebuilt as a tree unless it received every entry, in which case the old
// tree is still intact.
func (m *Map[K, V]) splitTree(b Bucket, j, oldCap int) {
	bit := uint32(oldCap)
	var lo, hi Bucket
	var loTail, hiTail uint32
	for x := b.head; x != nilEntry; {
		e := &m.entries[x]
		next := e.next
		e.next = nilEntry
		if e.hash&bit == 0 {
			e.prev = loTail
			m.appendChain(&lo, &loTail, x)
		} else {
			e.prev = hiTail
			m.appendChain(&hi, &hiTail, x)
		}
		x = next
	}

	if lo.head != nilEntry {
		lo.kind = treeBin
		m.buckets[j] = lo
		if lo.count <= untreeifyThreshold {
			m.untreeify(j, "split")
		} else if hi.head != nilEntry {
			m.treeify(j)
		}
	}
	if hi.head != nilEntry {
		hi.kind = treeBin
		m.buckets[j+oldCap] = hi
		if hi.count <= untreeifyThreshold {
			m.untreeify(j+oldCap, "split")
		} else if lo.head != nilEntry {
			m.treeify(j + oldCap)
		}
	}
}

// presize grows the table so that n entries fit without further resizing.
func (m *Map[K, V]) presize(n int) {
	if n <= 0 {
		return
	}
	want := maximumCapacity
	if t := float64(n)/m.loadFactor + 1; t < float64(maximumCapacity) {
		want = tableSizeFor(int(t))
	}
	if len(m.buckets) == 0 {
		m.resizeTo(want)
		return
	}
	for len(m.buckets) < want && len(m.buckets) < maximumCapacity {
		m.resize()
	}
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning its value. It is a noop to delete a non-existent key.
func (m *Map[K, V]) Delete(key K) (value V, ok bool) {
	var zero V
	return m.removeNode(m.hashKey(key), key, false /* matchValue */, zero, true /* movable */)
}

// CompareAndDelete deletes the entry for key if its value is equal to old.
// It reports whether the entry was deleted.
func (m *Map[K, V]) CompareAndDelete(key K, old V) (deleted bool) {
	_, deleted = m.removeNode(m.hashKey(key), key, true /* matchValue */, old, true /* movable */)
	return deleted
}

// removeNode removes the entry for key if it exists and, when matchValue is
// set, holds a value equal to value. movable is false when the removal is
// made through an Iterator, which must not see tree roots moved to the
// front of their bucket.
func (m *Map[K, V]) removeNode(h uint32, key K, matchValue bool, value V, movable bool) (old V, ok bool) {
	x := m.lookup(h, key)
	if x == nilEntry {
		return old, false
	}
	e := &m.entries[x]
	if matchValue && !m.valueEqual(e.value, value) {
		return old, false
	}
	old = e.value
	m.removeEntry(m.bucketIndex(h), x, movable)
	return old, true
}

// removeEntry unlinks entry x from bucket bi and releases it.
func (m *Map[K, V]) removeEntry(bi int, x uint32, movable bool) {
	switch m.buckets[bi].kind {
	case chainBin:
		m.unlinkChain(bi, x)
	case treeBin:
		m.removeTreeNode(bi, x, movable)
	default:
		panic(errors.AssertionFailedf("unknown bucket kind %s", m.buckets[bi].kind))
	}
	m.modCount++
	m.used--
	m.observer.EntryRemoved(Handle(x))
	m.freeEntry(x)
	m.checkInvariants()
}

func (m *Map[K, V]) unlinkChain(bi int, x uint32) {
	b := &m.buckets[bi]
	var pred uint32
	for p := b.head; p != x; p = m.entries[p].next {
		if p == nilEntry {
			panic(errors.AssertionFailedf("entry %d not found in bucket %d", x, bi))
		}
		pred = p
	}
	next := m.entries[x].next
	if pred == nilEntry {
		b.head = next
	} else {
		m.entries[pred].next = next
	}
	b.count--
}

// Clear deletes all entries from the map resulting in an empty map. The
// bucket array is kept at its current size.
func (m *Map[K, V]) Clear() {
	m.modCount++
	if m.used > 0 || m.top > 1 {
		clear(m.buckets)
		clear(m.entries[:m.top])
		m.top = 1
		m.free = nilEntry
		m.used = 0
	}
	m.observer.Cleared()
	m.checkInvariants()
}

// PutAll copies every entry of src into m, overwriting the values of keys
// that are already present. The table is grown up front to fit src.
func (m *Map[K, V]) PutAll(src *Map[K, V]) {
	if src.used == 0 {
		return
	}
	m.presize(src.used)
	src.walk(func(x uint32) bool {
		e := &src.entries[x]
		key, value := e.key, e.value
		m.putVal(m.hashKey(key), key, value, false /* onlyIfAbsent */, true /* evict */)
		return true
	})
}

// Clone returns a shallow copy of the map with the same options. Observers
// are not copied.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{}
	m.cloneInto(c)
	c.copyEntries(m)
	return c
}

func (m *Map[K, V]) cloneInto(c *Map[K, V]) {
	*c = Map[K, V]{
		hash:       m.hash,
		nilable:    m.nilable,
		compare:    m.compare,
		valueEqual: m.valueEqual,
		allocator:  m.allocator,
		observer:   NopObserver{},
		logger:     m.logger,
		top:        1,
		loadFactor: m.loadFactor,
	}
	if c.allocator == nil {
		c.allocator = defaultAllocator[K, V]{}
	}
}

// copyEntries replays the entries of src into m, which shares src's hash
// function, in src's iteration order.
func (m *Map[K, V]) copyEntries(src *Map[K, V]) {
	m.presize(src.used)
	src.walk(func(x uint32) bool {
		e := &src.entries[x]
		key, value, h := e.key, e.value, e.hash
		m.putVal(h, key, value, false /* onlyIfAbsent */, false /* evict */)
		return true
	})
}

// walk calls fn for the arena index of every entry in iteration order until
// fn returns false. fn must not modify the map structurally.
func (m *Map[K, V]) walk(fn func(x uint32) bool) {
	if m.order != nil {
		for x := m.order.head; x != nilEntry; x = m.order.links[x].after {
			if !fn(x) {
				return
			}
		}
		return
	}
	for i := range m.buckets {
		for x := m.buckets[i].head; x != nilEntry; x = m.entries[x].next {
			if !fn(x) {
				return
			}
		}
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.verify(); err != nil {
			panic(errors.AssertionFailedf("invariant failed: %v\n%s", err, m.debugString()))
		}
	}
}

// verify checks the structural invariants of the table: bucket counts, bucket
// membership, chain/tree link consistency and the red-black rules.
func (m *Map[K, V]) verify() error {
	if n := len(m.buckets); n != 0 && n&(n-1) != 0 {
		return errors.Newf("capacity %d is not a power of two", n)
	}
	var total int
	for i := range m.buckets {
		b := &m.buckets[i]
		var count int32
		var prev uint32
		for x := b.head; x != nilEntry; x = m.entries[x].next {
			e := &m.entries[x]
			if j := m.bucketIndex(e.hash); j != i {
				return errors.Newf("bucket %d: entry %d (%v) belongs in bucket %d", i, x, e.key, j)
			}
			// A key that is not equal to itself (NaN) can never be found.
			if e.key == e.key && m.lookup(e.hash, e.key) != x {
				return errors.Newf("bucket %d: entry %d (%v) not found by lookup", i, x, e.key)
			}
			switch b.kind {
			case chainBin:
				if e.prev != nilEntry || e.parent != nilEntry || e.left != nilEntry || e.right != nilEntry {
					return errors.Newf("bucket %d: chain entry %d has tree links", i, x)
				}
			case treeBin:
				if e.prev != prev {
					return errors.Newf("bucket %d: entry %d has prev %d, expected %d", i, x, e.prev, prev)
				}
			}
			prev = x
			count++
		}
		if count != b.count {
			return errors.Newf("bucket %d: found %d entries, but count is %d", i, count, b.count)
		}
		if b.kind == treeBin {
			if b.count <= untreeifyThreshold {
				return errors.Newf("bucket %d: tree with only %d entries", i, b.count)
			}
			root := m.treeRoot(b.head)
			if m.entries[root].red {
				return errors.Newf("bucket %d: red root %d", i, root)
			}
			n, _, err := m.verifyTree(root)
			if err != nil {
				return errors.Wrapf(err, "bucket %d", i)
			}
			if int32(n) != b.count {
				return errors.Newf("bucket %d: tree holds %d entries, but count is %d", i, n, b.count)
			}
			if err := m.verifyTreeOrder(root); err != nil {
				return errors.Wrapf(err, "bucket %d", i)
			}
		}
		total += int(count)
	}
	if total != m.used {
		return errors.Newf("found %d entries, but used count is %d", total, m.used)
	}
	if m.order != nil {
		var n int
		var prev uint32
		for x := m.order.head; x != nilEntry; x = m.order.links[x].after {
			if m.order.links[x].before != prev {
				return errors.Newf("order list: entry %d has before %d, expected %d", x, m.order.links[x].before, prev)
			}
			prev = x
			n++
		}
		if prev != m.order.tail {
			return errors.Newf("order list: tail is %d, expected %d", m.order.tail, prev)
		}
		if n != m.used {
			return errors.Newf("order list holds %d entries, but used count is %d", n, m.used)
		}
	}
	return nil
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  threshold=%d\n", len(m.buckets), m.used, m.threshold)
	for i := range m.buckets {
		b := &m.buckets[i]
		if b.head == nilEntry {
			continue
		}
		fmt.Fprintf(&buf, "  %4d: %s count=%d\n", i, b.kind, b.count)
		for x := b.head; x != nilEntry; x = m.entries[x].next {
			e := &m.entries[x]
			fmt.Fprintf(&buf, "        %d: %v [hash=%08x seq=%d", x, e.key, e.hash, e.seq)
			if b.kind == treeBin {
				color := "black"
				if e.red {
					color = "red"
				}
				fmt.Fprintf(&buf, " %s parent=%d left=%d right=%d prev=%d", color, e.parent, e.left, e.right, e.prev)
			}
			buf.WriteString("]\n")
		}
	}
	return buf.String()
}
