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
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashbin"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBuildCommand(g *globals) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a snapshot from key<TAB>value lines",
		Long: "Reads lines of the form key<TAB>value (a line without a tab is a key " +
			"whose value is its line number), inserts them in order and writes a snapshot.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			t, err := cfg.newTable(g.logger)
			if err != nil {
				return err
			}
			lines, err := load(t, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var f *os.File
			if output != "" && output != "-" {
				if f, err = os.Create(output); err != nil {
					return err
				}
				out = f
			}
			if err := writeTable(out, t, cfg.Compress); err != nil {
				if f != nil {
					_ = f.Close()
				}
				return err
			}
			if f != nil {
				if err := f.Close(); err != nil {
					return err
				}
			}

			s := t.Stats()
			g.logger.Info("built snapshot",
				zap.String("lines", humanize.Comma(int64(lines))),
				zap.String("entries", humanize.Comma(int64(s.Len))),
				zap.Int("capacity", s.Capacity),
				zap.Int("tree-buckets", s.TreeBuckets))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file (default stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "snapshot file (default stdout)")
	addTableFlags(cmd)
	return cmd
}

// load inserts every line of r into t and returns the number of lines read.
func load(t table, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	var n int
	for sc.Scan() {
		n++
		key, value, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			value = strconv.Itoa(n)
		}
		t.Put(key, value)
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "reading line %d", n+1)
	}
	return n, nil
}

func writeTable(w io.Writer, t table, compress bool) error {
	var kc hashbin.StringCodec
	switch t := t.(type) {
	case *hashbin.LinkedMap[string, string]:
		return hashbin.WriteLinkedSnapshot[string, string](w, t, kc, kc, compress)
	case *hashbin.Map[string, string]:
		return hashbin.WriteSnapshot[string, string](w, t, kc, kc, compress)
	default:
		return errors.AssertionFailedf("unexpected table type %T", t)
	}
}
