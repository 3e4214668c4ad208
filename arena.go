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

// nilEntry is the reserved arena index that stands for "no entry". Slot 0 of
// the arena is never handed out.
const nilEntry = 0

// minArenaSize is the arena size allocated on the first insert.
const minArenaSize = 16

// Entry holds a key and value along with the links that place it in its
// bucket. Links are arena indexes rather than pointers; rotations and splices
// only ever swap indexes.
//
// A chain bucket only uses next. A tree bucket additionally uses prev to
// make the chain doubly linked, and parent, left, right and red for the
// red-black tree. Every tree entry is a member of both structures at once.
type Entry[K comparable, V any] struct {
	key   K
	value V
	// seq is the creation sequence number of the entry. It is the last
	// resort ordering between tree entries whose hashes are equal and whose
	// keys cannot be ordered.
	seq    uint64
	hash   uint32
	next   uint32
	prev   uint32
	parent uint32
	left   uint32
	right  uint32
	red    bool
}

// newEntry allocates an entry from the arena, reusing a freed slot if one is
// available, and notifies the observer. The arena may be reallocated, so any
// *Entry obtained before the call must not be used after it.
func (m *Map[K, V]) newEntry(h uint32, key K, value V) uint32 {
	var x uint32
	if m.free != nilEntry {
		x = m.free
		m.free = m.entries[x].next
	} else {
		if int(m.top) >= len(m.entries) {
			m.growArena()
		}
		x = m.top
		m.top++
	}
	m.seq++
	m.entries[x] = Entry[K, V]{
		key:   key,
		value: value,
		seq:   m.seq,
		hash:  h,
	}
	m.observer.EntryCreated(Handle(x))
	return x
}

// freeEntry zeroes the entry, dropping its references to key and value, and
// pushes its slot onto the free list threaded through next.
func (m *Map[K, V]) freeEntry(x uint32) {
	m.entries[x] = Entry[K, V]{next: m.free}
	m.free = x
}

func (m *Map[K, V]) growArena() {
	n := 2 * len(m.entries)
	if n < minArenaSize {
		n = minArenaSize
	}
	entries := m.allocator.AllocEntries(n)
	copy(entries, m.entries)
	if m.entries != nil {
		m.allocator.FreeEntries(m.entries)
	}
	m.entries = entries
}
