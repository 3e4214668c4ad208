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

// Stats describes the shape of a Map's table.
type Stats struct {
	Len        int
	Capacity   int
	Threshold  int
	LoadFactor float64

	EmptyBuckets int
	ChainBuckets int
	TreeBuckets  int
	// MaxBucketLen is the number of entries in the fullest bucket.
	MaxBucketLen int

	// Resizes counts table doublings, not counting the initial allocation.
	Resizes uint64
	// Treeifies and Untreeifies count bucket conversions in either
	// direction, including those made while splitting buckets on resize.
	Treeifies   uint64
	Untreeifies uint64
}

// Stats returns statistics about the table. It scans every bucket.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Len:         m.used,
		Capacity:    len(m.buckets),
		Threshold:   m.threshold,
		LoadFactor:  m.loadFactor,
		Resizes:     m.resizes,
		Treeifies:   m.treeifies,
		Untreeifies: m.untreeifies,
	}
	for i := range m.buckets {
		b := &m.buckets[i]
		switch {
		case b.head == nilEntry:
			s.EmptyBuckets++
		case b.kind == treeBin:
			s.TreeBuckets++
		default:
			s.ChainBuckets++
		}
		s.MaxBucketLen = max(s.MaxBucketLen, int(b.count))
	}
	return s
}
