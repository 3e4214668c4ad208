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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "table.snap")
	input := "apple\tred\nbanana\tyellow\ncherry\n"

	_, err := run(t, input, "build", "-o", snap, "--compress", "--hash", "murmur3")
	require.NoError(t, err)

	out, err := run(t, "", "inspect", snap, "--dump")
	require.NoError(t, err)
	require.Contains(t, out, "entries:      3\n")
	require.Contains(t, out, "apple\tred\n")
	require.Contains(t, out, "banana\tyellow\n")
	require.Contains(t, out, "cherry\t3\n")
}

func TestBuildBounded(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "lru.snap")
	input := "a\t1\nb\t2\nc\t3\nd\t4\n"

	_, err := run(t, input, "build", "-o", snap, "--max-entries", "2", "--access-order")
	require.NoError(t, err)

	out, err := run(t, "", "inspect", snap, "--ordered", "--dump", "--limit", "1")
	require.NoError(t, err)
	require.Contains(t, out, "entries:      2\n")
	require.Contains(t, out, "c\t3\n")
	require.NotContains(t, out, "d\t4\n")
}

func TestBench(t *testing.T) {
	out, err := run(t, "", "bench", "-n", "1000", "--hash", "xxhash")
	require.NoError(t, err)
	require.Contains(t, out, "keys:         1,000 (hash xxhash)")
	require.Contains(t, out, "entries:      1,000")

	_, err = run(t, "", "bench", "-n", "0")
	require.Error(t, err)
}

func TestBadFlags(t *testing.T) {
	_, err := run(t, "", "build", "--hash", "crc32")
	require.ErrorContains(t, err, "unknown hash")

	_, err = run(t, "", "inspect", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
