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

// Handle identifies an entry within a Map. A handle is stable from the
// moment the entry is created until it is removed, across any number of
// resizes and bucket conversions, and may be reused for a later entry after
// removal. The zero Handle never identifies an entry.
type Handle uint32

// Observer receives synchronous callbacks at each structural mutation of a
// Map. Callbacks run on the mutating goroutine before the mutating call
// returns. Inside a callback the Map may be read through Map.At; the only
// mutation permitted is removing entries from InsertCompleted.
type Observer interface {
	// EntryCreated is called when a new entry has been allocated for an
	// insertion, before the insertion is counted in Len.
	EntryCreated(h Handle)
	// EntryAccessed is called when the value of an existing entry was read
	// by a lookup that counts as an access, or was written.
	EntryAccessed(h Handle)
	// EntryRemoved is called after an entry has been unlinked from its
	// bucket. The entry is still readable through Map.At for the duration
	// of the call.
	EntryRemoved(h Handle)
	// InsertCompleted is called at the end of every insertion of a new key.
	// evict is false while a map is being bulk loaded from a snapshot or a
	// clone.
	InsertCompleted(evict bool)
	// Cleared is called after Map.Clear has dropped every entry.
	Cleared()
}

// NopObserver implements Observer with no-op methods. It can be embedded by
// observers that only care about some of the callbacks.
type NopObserver struct{}

var _ Observer = NopObserver{}

// EntryCreated implements Observer.
func (NopObserver) EntryCreated(Handle) {}

// EntryAccessed implements Observer.
func (NopObserver) EntryAccessed(Handle) {}

// EntryRemoved implements Observer.
func (NopObserver) EntryRemoved(Handle) {}

// InsertCompleted implements Observer.
func (NopObserver) InsertCompleted(bool) {}

// Cleared implements Observer.
func (NopObserver) Cleared() {}
