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
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBenchCommand(g *globals) *cobra.Command {
	var n int
	var seed int64
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time inserts and lookups of random keys against the builtin map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			if n <= 0 {
				return errors.Newf("--n must be positive: %d", n)
			}
			rng := rand.New(rand.NewSource(seed))
			keys := make([]string, n)
			for i := range keys {
				keys[i] = strconv.FormatUint(rng.Uint64(), 36)
			}
			return runBench(cmd.OutOrStdout(), cfg, g, keys)
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 1_000_000, "number of keys")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for key generation")
	addTableFlags(cmd)
	return cmd
}

func runBench(w io.Writer, cfg Config, g *globals, keys []string) error {
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	t, err := cfg.newTable(g.logger)
	if err != nil {
		return err
	}
	start := time.Now()
	for _, k := range keys {
		t.Put(k, k)
	}
	put := time.Since(start)

	// Look up the keys that survived eviction. A LinkedMap in access order
	// reorders its entries on lookup, which is part of what is measured.
	present := make([]string, 0, t.Len())
	t.All(func(key, _ string) bool {
		present = append(present, key)
		return true
	})
	start = time.Now()
	var hits int
	for _, k := range present {
		if _, ok := t.Get(k); ok {
			hits++
		}
	}
	get := time.Since(start)
	runtime.ReadMemStats(&after)

	builtin := make(map[string]string)
	start = time.Now()
	for _, k := range keys {
		builtin[k] = k
	}
	builtinPut := time.Since(start)
	start = time.Now()
	for _, k := range present {
		_ = builtin[k]
	}
	builtinGet := time.Since(start)

	perOp := func(d time.Duration, ops int) string {
		if ops == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1fns/op", float64(d.Nanoseconds())/float64(ops))
	}
	fmt.Fprintf(w, "keys:         %s (hash %s)\n", humanize.Comma(int64(len(keys))), cfg.Hash)
	fmt.Fprintf(w, "put:          %s (builtin %s)\n", perOp(put, len(keys)), perOp(builtinPut, len(keys)))
	fmt.Fprintf(w, "get:          %s (builtin %s, %s hits)\n",
		perOp(get, len(present)), perOp(builtinGet, len(present)), humanize.Comma(int64(hits)))
	if after.TotalAlloc >= before.TotalAlloc {
		fmt.Fprintf(w, "allocated:    %s\n", humanize.Bytes(after.TotalAlloc-before.TotalAlloc))
	}
	printStats(w, t.Stats())
	return nil
}
