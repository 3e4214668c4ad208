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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument is returned when a map is constructed (or read from
	// a snapshot) with a negative initial capacity or a load factor that is
	// not a positive finite number. Use errors.Is to test for it; the
	// returned error carries the offending value.
	ErrInvalidArgument = errors.New("hashbin: invalid argument")

	// ErrConcurrentModification is returned by iterators when the map was
	// structurally modified after the iterator was created by something
	// other than the iterator itself. Detection is best-effort: it relies on
	// a modification counter and exists to catch bugs, not to make
	// unsynchronized use safe.
	ErrConcurrentModification = errors.New("hashbin: concurrent structural modification")

	// ErrNoCurrentEntry is returned by Iterator.Remove when there is no
	// entry to remove, either because Next has not returned true yet or
	// because the current entry was already removed.
	ErrNoCurrentEntry = errors.New("hashbin: iterator has no current entry")

	// ErrCorruptSnapshot is returned when a snapshot cannot be decoded.
	ErrCorruptSnapshot = errors.New("hashbin: corrupt snapshot")
)

func invalidArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

func corruptSnapshotf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptSnapshot, format, args...)
}
