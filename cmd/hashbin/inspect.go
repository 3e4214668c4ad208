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
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashbin"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCommand(g *globals) *cobra.Command {
	var ordered, dump bool
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Load a snapshot and print the shape of its table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			fi, err := f.Stat()
			if err != nil {
				return err
			}

			var kc hashbin.StringCodec
			var t table
			if ordered {
				lm, err := hashbin.ReadLinkedSnapshot[string, string](f, kc, kc, cfg.AccessOrder,
					hashbin.WithHash[string, string](cfg.hasher()),
					hashbin.WithLogger[string, string](g.logger))
				if err != nil {
					return errors.Wrapf(err, "loading %s", args[0])
				}
				t = lm
			} else {
				m, err := hashbin.ReadSnapshot[string, string](f, kc, kc,
					hashbin.WithHash[string, string](cfg.hasher()),
					hashbin.WithLogger[string, string](g.logger))
				if err != nil {
					return errors.Wrapf(err, "loading %s", args[0])
				}
				t = m
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "file:         %s (%s)\n", args[0], humanize.Bytes(uint64(fi.Size())))
			printStats(w, t.Stats())
			if dump {
				var n int
				t.All(func(key, value string) bool {
					if limit > 0 && n >= limit {
						return false
					}
					n++
					fmt.Fprintf(w, "%s\t%s\n", key, value)
					return true
				})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ordered, "ordered", false, "load into a linked map, keeping the snapshot's entry order")
	cmd.Flags().BoolVar(&dump, "dump", false, "print every entry as key<TAB>value")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many entries (0 = all)")
	cmd.Flags().String("hash", "runtime", "hash function: runtime, xxhash, murmur3 or siphash")
	cmd.Flags().Bool("access-order", false, "with --ordered, order entries by access")
	return cmd
}

func printStats(w io.Writer, s hashbin.Stats) {
	fmt.Fprintf(w, "entries:      %s\n", humanize.Comma(int64(s.Len)))
	fmt.Fprintf(w, "capacity:     %s (load factor %g, threshold %s)\n",
		humanize.Comma(int64(s.Capacity)), s.LoadFactor, humanize.Comma(int64(s.Threshold)))
	fmt.Fprintf(w, "buckets:      %s empty, %s chains, %s trees\n",
		humanize.Comma(int64(s.EmptyBuckets)), humanize.Comma(int64(s.ChainBuckets)),
		humanize.Comma(int64(s.TreeBuckets)))
	fmt.Fprintf(w, "max bucket:   %d\n", s.MaxBucketLen)
	fmt.Fprintf(w, "resizes:      %d (treeified %d, untreeified %d)\n", s.Resizes, s.Treeifies, s.Untreeifies)
}
