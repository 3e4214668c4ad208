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
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLinkedMap[K comparable, V any](
	t testing.TB, accessOrder bool, options ...option[K, V],
) *LinkedMap[K, V] {
	lm, err := NewLinkedMap[K, V](0, accessOrder, options...)
	require.NoError(t, err)
	return lm
}

func keysOf[K comparable, V any](m *Map[K, V]) []K {
	var keys []K
	for k := range m.Keys {
		keys = append(keys, k)
	}
	return keys
}

func TestLinkedInsertionOrder(t *testing.T) {
	lm := newTestLinkedMap[int, int](t, false)
	require.False(t, lm.AccessOrder())
	_, _, ok := lm.Eldest()
	require.False(t, ok)

	var expected []int
	for i := 0; i < 100; i++ {
		k := rand.Intn(1 << 20)
		if lm.ContainsKey(k) {
			continue
		}
		lm.Put(k, i)
		expected = append(expected, k)
	}
	require.Equal(t, expected, keysOf(&lm.Map))
	requireValid(t, &lm.Map)

	// Updates and reads do not reorder.
	lm.Put(expected[0], -1)
	lm.Get(expected[1])
	require.Equal(t, expected, keysOf(&lm.Map))

	// A deleted and reinserted key moves to the end.
	lm.Delete(expected[0])
	lm.Put(expected[0], 0)
	expected = append(expected[1:], expected[0])
	require.Equal(t, expected, keysOf(&lm.Map))

	k, _, ok := lm.Eldest()
	require.True(t, ok)
	require.Equal(t, expected[0], k)
	k, v, ok := lm.Youngest()
	require.True(t, ok)
	require.Equal(t, expected[len(expected)-1], k)
	require.Equal(t, 0, v)
	requireValid(t, &lm.Map)
}

func TestLinkedOrderSurvivesTrees(t *testing.T) {
	lm := newTestLinkedMap(t, false, constantHash[int, int](0))
	var expected []int
	for i := 0; i < 100; i++ {
		k := 99 - i
		lm.Put(k, k)
		expected = append(expected, k)
	}
	require.Equal(t, 1, lm.Stats().TreeBuckets)
	require.Equal(t, expected, keysOf(&lm.Map))

	for i := 0; i < 100; i += 2 {
		lm.Delete(i)
	}
	var remaining []int
	for _, k := range expected {
		if k%2 == 1 {
			remaining = append(remaining, k)
		}
	}
	require.Equal(t, remaining, keysOf(&lm.Map))
	requireValid(t, &lm.Map)
}

func TestLinkedAccessOrder(t *testing.T) {
	lm := newTestLinkedMap[string, int](t, true)
	require.True(t, lm.AccessOrder())
	lm.Put("a", 1)
	lm.Put("b", 2)
	lm.Put("c", 3)

	v, ok := lm.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, []string{"b", "c", "a"}, keysOf(&lm.Map))

	lm.Put("b", 20)
	require.Equal(t, []string{"c", "a", "b"}, keysOf(&lm.Map))

	require.Equal(t, 3, lm.GetOrDefault("c", 0))
	require.Equal(t, 0, lm.GetOrDefault("z", 0))
	require.Equal(t, []string{"a", "b", "c"}, keysOf(&lm.Map))

	lm.Merge("a", 1, func(old, v int) (int, bool) {
		return old + v, true
	})
	require.Equal(t, []string{"b", "c", "a"}, keysOf(&lm.Map))

	k, _, _ := lm.Eldest()
	require.Equal(t, "b", k)
	k, v, _ = lm.Youngest()
	require.Equal(t, "a", k)
	require.Equal(t, 2, v)

	// Membership queries are not accesses.
	mc := lm.modCount
	require.True(t, lm.ContainsKey("b"))
	require.False(t, lm.ContainsKey("z"))
	require.True(t, lm.ContainsValue(3))
	require.Equal(t, []string{"b", "c", "a"}, keysOf(&lm.Map))
	require.Equal(t, mc, lm.modCount)

	// Reading the youngest entry does not count as a modification.
	it := lm.Iter()
	require.True(t, it.Next())
	lm.Get("a")
	require.True(t, lm.ContainsKey("b"))
	require.True(t, it.Next())
	// Reordering is structural in access order.
	lm.Get("b")
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrConcurrentModification)
	requireValid(t, &lm.Map)
}

func TestLRU(t *testing.T) {
	lru, err := NewLRU[int, string](3)
	require.NoError(t, err)
	lru.Put(1, "one")
	lru.Put(2, "two")
	lru.Put(3, "three")
	lru.Get(1)
	lru.Put(4, "four")

	require.Equal(t, 3, lru.Len())
	require.False(t, lru.ContainsKey(2))
	require.Equal(t, []int{3, 1, 4}, keysOf(&lru.Map))

	// Updating an existing key never evicts.
	lru.Put(3, "drei")
	require.Equal(t, 3, lru.Len())
	require.Equal(t, []int{1, 4, 3}, keysOf(&lru.Map))

	for i := 10; i < 100; i++ {
		lru.Put(i, fmt.Sprint(i))
		require.Equal(t, 3, lru.Len())
	}
	require.Equal(t, []int{97, 98, 99}, keysOf(&lru.Map))
	requireValid(t, &lru.Map)
}

func TestEvictionPolicy(t *testing.T) {
	lm := newTestLinkedMap[int, int](t, false)
	var calls [][2]int
	lm.SetEvictionPolicy(func(k, v, size int) bool {
		calls = append(calls, [2]int{k, size})
		return v < 0
	})
	lm.Put(-1, -1)
	// The eldest entry was the one just inserted.
	require.Equal(t, [][2]int{{-1, 1}}, calls)
	require.True(t, lm.IsEmpty())

	lm.Put(1, 1)
	lm.Put(2, -2)
	require.Equal(t, 2, lm.Len())
	lm.Put(1, 10)
	require.Len(t, calls, 3)

	// No eviction while cloning.
	lm.Put(3, 3)
	calls = nil
	c := lm.Clone()
	require.Empty(t, calls)
	require.Equal(t, keysOf(&lm.Map), keysOf(&c.Map))

	// The policy may remove entries itself.
	lm.SetEvictionPolicy(func(k, _, _ int) bool {
		lm.Delete(k)
		return true
	})
	lm.Put(4, 4)
	require.Equal(t, []int{2, 3, 4}, keysOf(&lm.Map))
	requireValid(t, &lm.Map)
}

func TestLinkedClone(t *testing.T) {
	lru, err := NewLRU[int, int](10)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		lru.Put(i, i)
	}
	lru.Get(0)

	c := lru.Clone()
	require.True(t, c.AccessOrder())
	require.Equal(t, keysOf(&lru.Map), keysOf(&c.Map))
	requireValid(t, &c.Map)

	// The clone has its own list and keeps the eviction policy.
	c.Put(10, 10)
	require.Equal(t, 10, c.Len())
	require.False(t, c.ContainsKey(1))
	require.True(t, lru.ContainsKey(1))
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 0}, keysOf(&lru.Map))
	requireValid(t, &lru.Map)
}

func TestLinkedClear(t *testing.T) {
	lm := newTestLinkedMap[int, int](t, false)
	for i := 0; i < 50; i++ {
		lm.Put(i, i)
	}
	lm.Clear()
	_, _, ok := lm.Youngest()
	require.False(t, ok)
	require.Empty(t, keysOf(&lm.Map))
	requireValid(t, &lm.Map)

	lm.Put(7, 7)
	lm.Put(3, 3)
	require.Equal(t, []int{7, 3}, keysOf(&lm.Map))
	requireValid(t, &lm.Map)

	lm.Close()
	lm.Close()
}

func TestLinkedIterRemove(t *testing.T) {
	lm := newTestLinkedMap[int, int](t, false)
	for i := 0; i < 20; i++ {
		lm.Put(i, i)
	}
	it := lm.Iter()
	for it.Next() {
		if it.Key() < 10 {
			require.NoError(t, it.Remove())
		}
	}
	require.NoError(t, it.Err())
	require.Equal(t, []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, keysOf(&lm.Map))
	requireValid(t, &lm.Map)
}

func TestLinkedRandom(t *testing.T) {
	lm := newTestLinkedMap(t, true, WithHash[int, int](func(key int) uint32 {
		return uint32(key % 4)
	}))
	rng := rand.New(rand.NewSource(rand.Int63()))
	// order tracks the expected access order.
	var order []int
	move := func(k int) {
		for i, o := range order {
			if o == k {
				order = append(order[:i], order[i+1:]...)
				break
			}
		}
		order = append(order, k)
	}
	for i := 0; i < 2000; i++ {
		k := rng.Intn(100)
		switch r := rng.Float64(); {
		case r < 0.5:
			lm.Put(k, k)
			move(k)
		case r < 0.8:
			if _, ok := lm.Get(k); ok {
				move(k)
			}
		default:
			if _, ok := lm.Delete(k); ok {
				for j, o := range order {
					if o == k {
						order = append(order[:j], order[j+1:]...)
						break
					}
				}
			}
		}
		if i%50 == 0 {
			requireValid(t, &lm.Map)
		}
	}
	require.Equal(t, order, keysOf(&lm.Map))
	requireValid(t, &lm.Map)
}

type recordingObserver struct {
	NopObserver
	events []string
}

func (o *recordingObserver) EntryCreated(h Handle) {
	o.events = append(o.events, fmt.Sprintf("created %d", h))
}

func (o *recordingObserver) EntryAccessed(h Handle) {
	o.events = append(o.events, fmt.Sprintf("accessed %d", h))
}

func (o *recordingObserver) EntryRemoved(h Handle) {
	o.events = append(o.events, fmt.Sprintf("removed %d", h))
}

func (o *recordingObserver) InsertCompleted(evict bool) {
	o.events = append(o.events, fmt.Sprintf("inserted evict=%t", evict))
}

func (o *recordingObserver) Cleared() {
	o.events = append(o.events, "cleared")
}

func TestObserver(t *testing.T) {
	o := &recordingObserver{}
	m := newTestMap(t, 0, WithObserver[string, int](o))
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("a", 3)
	m.Get("a")
	m.Delete("b")
	m.Delete("b")
	m.Clear()
	require.Equal(t, []string{
		"created 1",
		"inserted evict=true",
		"created 2",
		"inserted evict=true",
		"accessed 1",
		"removed 2",
		"cleared",
	}, o.events)

	o.events = nil
	m.Put("c", 4)
	require.Equal(t, []string{"created 1", "inserted evict=true"}, o.events)
	k, v := m.At(1)
	require.Equal(t, "c", k)
	require.Equal(t, 4, v)

	// Clones do not share the observer.
	o.events = nil
	c := m.Clone()
	c.Put("d", 5)
	require.Empty(t, o.events)
}
