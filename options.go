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

import "go.uber.org/zap"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash func(key K) uint32
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	if op.hash != nil {
		m.hash = op.hash
	}
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// The returned hash is spread (h ^ h>>16) before use, so a hash function with
// most of its entropy in the high bits is fine. The function must be stable
// for as long as a key is stored in the map. A nil hash keeps the default.
func WithHash[K comparable, V any](hash func(key K) uint32) option[K, V] {
	return hashOption[K, V]{hash}
}

type compareOption[K comparable, V any] struct {
	cmp func(a, b K) int
}

func (op compareOption[K, V]) apply(m *Map[K, V]) {
	cmp := op.cmp
	m.compare = func(a, b K) (int, bool) {
		return cmp(a, b), true
	}
}

// WithCompare is an option to specify the ordering used between keys with
// equal hashes inside a tree bucket. Without it, keys of the builtin ordered
// kinds (and keys with a Compare(K) int method) are ordered naturally and
// all other keys fall back to a sequence number tie-break.
func WithCompare[K comparable, V any](cmp func(a, b K) int) option[K, V] {
	return compareOption[K, V]{cmp}
}

type valueEqualOption[K comparable, V any] struct {
	eq func(a, b V) bool
}

func (op valueEqualOption[K, V]) apply(m *Map[K, V]) {
	m.valueEqual = op.eq
}

// WithValueEqual is an option to specify how values are compared by
// ContainsValue, CompareAndSwap and CompareAndDelete.
func WithValueEqual[K comparable, V any](eq func(a, b V) bool) option[K, V] {
	return valueEqualOption[K, V]{eq}
}

type loadFactorOption[K comparable, V any] struct {
	loadFactor float64
}

func (op loadFactorOption[K, V]) apply(m *Map[K, V]) {
	m.loadFactor = op.loadFactor
}

// WithLoadFactor is an option to specify the ratio of entries to buckets
// above which the table doubles. The default is 0.75. A load factor that is
// not positive, or is NaN or infinite, causes New to return an error.
func WithLoadFactor[K comparable, V any](loadFactor float64) option[K, V] {
	return loadFactorOption[K, V]{loadFactor}
}

type loggerOption[K comparable, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	if op.logger != nil {
		m.logger = op.logger
	}
}

// WithLogger is an option to specify a logger that receives debug level
// events when the table resizes and when buckets change form.
func WithLogger[K comparable, V any](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

type observerOption[K comparable, V any] struct {
	observer Observer
}

func (op observerOption[K, V]) apply(m *Map[K, V]) {
	m.observer = op.observer
}

// WithObserver is an option to install an Observer that is called
// synchronously at every structural mutation of the map. A LinkedMap
// installs itself as the observer of its underlying Map, so this option is
// ignored by NewLinkedMap and NewLRU.
func WithObserver[K comparable, V any](observer Observer) option[K, V] {
	return observerOption[K, V]{observer}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that entries and
// buckets be freed then Map.Close must be called in order to ensure
// FreeEntries and FreeBuckets are called.
type Allocator[K comparable, V any] interface {
	// AllocEntries should return a slice equivalent to make([]Entry[K,V], n).
	AllocEntries(n int) []Entry[K, V]

	// AllocBuckets should return a slice equivalent to make([]Bucket, n).
	AllocBuckets(n int) []Bucket

	// FreeEntries can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocEntries.
	FreeEntries(v []Entry[K, V])

	// FreeBuckets can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []Bucket)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocEntries(n int) []Entry[K, V] {
	return make([]Entry[K, V], n)
}

func (defaultAllocator[K, V]) AllocBuckets(n int) []Bucket {
	return make([]Bucket, n)
}

func (defaultAllocator[K, V]) FreeEntries(v []Entry[K, V]) {
}

func (defaultAllocator[K, V]) FreeBuckets(v []Bucket) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
