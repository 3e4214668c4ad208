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

// Command hashbin builds, inspects and benchmarks hashbin map snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globals struct {
	configPath string
	verbose    bool
	logger     *zap.Logger
}

// config loads the configuration file and applies the command's flags.
func (g *globals) config(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(g.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.applyFlags(cmd.Flags()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// addTableFlags registers the flags that override Config fields.
func addTableFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("hash", "runtime", "hash function: runtime, xxhash, murmur3 or siphash")
	f.Float64("load-factor", 0.75, "load factor of the table")
	f.Int("max-entries", 0, "evict the eldest entry beyond this many entries (0 = unbounded)")
	f.Bool("access-order", false, "order entries by access instead of insertion")
	f.Bool("compress", false, "snappy compress the snapshot")
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "hashbin",
		Short:         "Build, inspect and benchmark hashbin maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if g.verbose {
				g.logger, err = zap.NewDevelopment()
			} else {
				g.logger, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = g.logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log map internals at debug level")

	root.AddCommand(
		newBuildCommand(g),
		newInspectCommand(g),
		newBenchCommand(g),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hashbin: %v\n", err)
		os.Exit(1)
	}
}
