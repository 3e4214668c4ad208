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
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"go.uber.org/zap"
)

// A snapshot is laid out as:
//
//	magic "HBN1" | flags (1 byte) | body
//
// where the body, snappy framed if flags has flagSnappy set, is:
//
//	load factor (float64, big-endian) | capacity (int32) | size (int32) |
//	size * (key length (uvarint) | key | value length (uvarint) | value)
//
// Entries appear in iteration order: bucket order for a Map, list order for
// a LinkedMap. A snapshot is loaded by sizing a fresh table for size entries
// (up to maxSnapshotPresize) at the stored load factor and replaying the
// entries; the stored capacity is validated but otherwise ignored.
const (
	snapshotMagic = "HBN1"

	flagSnappy byte = 1 << 0

	// maxSnapshotBlob bounds the length of a single encoded key or value.
	maxSnapshotBlob = 1 << 30
	// maxSnapshotPresize bounds the number of entries a table is sized for
	// before any of them has been read.
	maxSnapshotPresize = 1 << 16
)

// WriteSnapshot writes the entries of m to w. If compress is set the body is
// compressed with snappy. Keys and values are encoded with kc and vc.
func WriteSnapshot[K comparable, V any](
	w io.Writer, m *Map[K, V], kc Codec[K], vc Codec[V], compress bool,
) error {
	if m.used > math.MaxInt32 {
		return errors.Newf("too many entries for a snapshot: %d", m.used)
	}
	bw := bufio.NewWriter(w)
	var flags byte
	if compress {
		flags |= flagSnappy
	}
	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return errors.Wrap(err, "writing snapshot magic")
	}
	if err := bw.WriteByte(flags); err != nil {
		return errors.Wrap(err, "writing snapshot flags")
	}

	var body io.Writer = bw
	var sw *snappy.Writer
	if compress {
		sw = snappy.NewBufferedWriter(bw)
		body = sw
	}

	capacity := len(m.buckets)
	if capacity == 0 {
		capacity = defaultInitialCapacity
	}
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(m.loadFactor))
	buf = binary.BigEndian.AppendUint32(buf, uint32(capacity))
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.used))
	if _, err := body.Write(buf); err != nil {
		return errors.Wrap(err, "writing snapshot header")
	}

	var scratch []byte
	var err error
	iterErr := m.Range(func(key K, value V) bool {
		buf = buf[:0]
		if scratch, err = kc.Append(scratch[:0], key); err != nil {
			err = errors.Wrapf(err, "encoding key %v", key)
			return false
		}
		buf = binary.AppendUvarint(buf, uint64(len(scratch)))
		buf = append(buf, scratch...)
		if scratch, err = vc.Append(scratch[:0], value); err != nil {
			err = errors.Wrapf(err, "encoding value for key %v", key)
			return false
		}
		buf = binary.AppendUvarint(buf, uint64(len(scratch)))
		buf = append(buf, scratch...)
		if _, err = body.Write(buf); err != nil {
			err = errors.Wrap(err, "writing snapshot entry")
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if iterErr != nil {
		return iterErr
	}

	if sw != nil {
		if err := sw.Close(); err != nil {
			return errors.Wrap(err, "flushing snappy stream")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing snapshot")
	}
	if ce := m.logger.Check(zap.DebugLevel, "snapshot written"); ce != nil {
		ce.Write(zap.Int("len", m.used), zap.Int("capacity", capacity), zap.Bool("compressed", compress))
	}
	return nil
}

// WriteLinkedSnapshot writes the entries of lm to w in list order. See
// WriteSnapshot.
func WriteLinkedSnapshot[K comparable, V any](
	w io.Writer, lm *LinkedMap[K, V], kc Codec[K], vc Codec[V], compress bool,
) error {
	return WriteSnapshot(w, &lm.Map, kc, vc, compress)
}

// WriteSetSnapshot writes the keys of s to w. See WriteSnapshot.
func WriteSetSnapshot[K comparable](w io.Writer, s *Set[K], kc Codec[K], compress bool) error {
	return WriteSnapshot[K, struct{}](w, &s.m, kc, unitCodec{}, compress)
}

// ReadSnapshot reads a snapshot written by WriteSnapshot into a new Map
// constructed with options. The load factor stored in the snapshot takes
// precedence over a WithLoadFactor option. Errors caused by malformed input
// are marked with ErrCorruptSnapshot, and an illegal stored load factor or
// capacity is additionally marked with ErrInvalidArgument.
func ReadSnapshot[K comparable, V any](
	r io.Reader, kc Codec[K], vc Codec[V], options ...option[K, V],
) (*Map[K, V], error) {
	body, h, err := readSnapshotHeader(r)
	if err != nil {
		return nil, err
	}
	m, err := New[K, V](0, append(slices.Clip(options), WithLoadFactor[K, V](h.loadFactor))...)
	if err != nil {
		return nil, err
	}
	if err := m.loadSnapshot(body, h, kc, vc); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadLinkedSnapshot reads a snapshot into a new LinkedMap, preserving the
// order of the entries in the snapshot. No entries are evicted while
// loading. See ReadSnapshot.
func ReadLinkedSnapshot[K comparable, V any](
	r io.Reader, kc Codec[K], vc Codec[V], accessOrder bool, options ...option[K, V],
) (*LinkedMap[K, V], error) {
	body, h, err := readSnapshotHeader(r)
	if err != nil {
		return nil, err
	}
	lm, err := NewLinkedMap[K, V](0, accessOrder, append(slices.Clip(options), WithLoadFactor[K, V](h.loadFactor))...)
	if err != nil {
		return nil, err
	}
	if err := lm.loadSnapshot(body, h, kc, vc); err != nil {
		return nil, err
	}
	return lm, nil
}

// ReadSetSnapshot reads a snapshot written by WriteSetSnapshot into a new
// Set. See ReadSnapshot.
func ReadSetSnapshot[K comparable](r io.Reader, kc Codec[K], options ...option[K, struct{}]) (*Set[K], error) {
	m, err := ReadSnapshot[K, struct{}](r, kc, unitCodec{}, options...)
	if err != nil {
		return nil, err
	}
	return &Set[K]{m: *m}, nil
}

type snapshotHeader struct {
	loadFactor float64
	capacity   int
	size       int
}

func readSnapshotHeader(r io.Reader) (*bufio.Reader, snapshotHeader, error) {
	var h snapshotHeader
	br := bufio.NewReader(r)
	var prefix [len(snapshotMagic) + 1]byte
	if _, err := io.ReadFull(br, prefix[:]); err != nil {
		return nil, h, errors.Mark(errors.Wrap(err, "reading snapshot magic"), ErrCorruptSnapshot)
	}
	if magic := string(prefix[:len(snapshotMagic)]); magic != snapshotMagic {
		return nil, h, corruptSnapshotf("bad magic %q", magic)
	}
	flags := prefix[len(snapshotMagic)]
	if flags&^flagSnappy != 0 {
		return nil, h, corruptSnapshotf("unknown flags %#x", flags)
	}
	body := br
	if flags&flagSnappy != 0 {
		body = bufio.NewReader(snappy.NewReader(br))
	}

	var hdr [16]byte
	if _, err := io.ReadFull(body, hdr[:]); err != nil {
		return nil, h, errors.Mark(errors.Wrap(err, "reading snapshot header"), ErrCorruptSnapshot)
	}
	h.loadFactor = math.Float64frombits(binary.BigEndian.Uint64(hdr[0:8]))
	capacity := int32(binary.BigEndian.Uint32(hdr[8:12]))
	size := int32(binary.BigEndian.Uint32(hdr[12:16]))
	if !(h.loadFactor > 0) || math.IsInf(h.loadFactor, 0) {
		return nil, h, errors.Mark(corruptSnapshotf("illegal load factor: %v", h.loadFactor), ErrInvalidArgument)
	}
	if capacity <= 0 {
		return nil, h, errors.Mark(corruptSnapshotf("illegal capacity: %d", capacity), ErrInvalidArgument)
	}
	if size < 0 {
		return nil, h, corruptSnapshotf("illegal size: %d", size)
	}
	h.capacity = int(capacity)
	h.size = int(size)
	return body, h, nil
}

// loadSnapshot sizes the empty map m for the snapshot and replays its
// entries without eviction.
func (m *Map[K, V]) loadSnapshot(br *bufio.Reader, h snapshotHeader, kc Codec[K], vc Codec[V]) error {
	// The header size is unchecked until the entries are read, so the table
	// is sized for at most maxSnapshotPresize entries and grows from there.
	lf := min(max(m.loadFactor, 0.25), 4.0)
	c := defaultInitialCapacity
	if fc := float64(min(h.size, maxSnapshotPresize))/lf + 1; fc >= float64(maximumCapacity) {
		c = maximumCapacity
	} else if fc > float64(defaultInitialCapacity) {
		c = tableSizeFor(int(fc))
	}
	m.resizeTo(c)

	var buf []byte
	for i := 0; i < h.size; i++ {
		var err error
		if buf, err = readBlob(br, buf); err != nil {
			return errors.Mark(errors.Wrapf(err, "reading key %d", i), ErrCorruptSnapshot)
		}
		key, err := kc.Decode(buf)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "decoding key %d", i), ErrCorruptSnapshot)
		}
		if buf, err = readBlob(br, buf); err != nil {
			return errors.Mark(errors.Wrapf(err, "reading value %d", i), ErrCorruptSnapshot)
		}
		value, err := vc.Decode(buf)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "decoding value %d", i), ErrCorruptSnapshot)
		}
		m.putVal(m.hashKey(key), key, value, false /* onlyIfAbsent */, false /* evict */)
	}
	if m.used != h.size {
		return corruptSnapshotf("snapshot holds %d distinct keys, but its header says %d", m.used, h.size)
	}
	if ce := m.logger.Check(zap.DebugLevel, "snapshot loaded"); ce != nil {
		ce.Write(zap.Int("len", m.used), zap.Int("capacity", len(m.buckets)))
	}
	return nil
}

func readBlob(br *bufio.Reader, buf []byte) ([]byte, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return buf, err
	}
	if n > maxSnapshotBlob {
		return buf, errors.Newf("length %d exceeds limit", n)
	}
	if uint64(cap(buf)) < n {
		buf = make([]byte, n)
	} else {
		buf = buf[:n]
	}
	_, err = io.ReadFull(br, buf)
	return buf, err
}
