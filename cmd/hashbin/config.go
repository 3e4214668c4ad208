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
	"math"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hashbin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Config describes how the tool builds maps. It is read from a TOML file:
//
//	initial-capacity = 1024
//	load-factor = 0.75
//	hash = "siphash"
//	siphash-k0 = 1
//	siphash-k1 = 2
//	access-order = true
//	max-entries = 10000
//	compress = true
type Config struct {
	InitialCapacity int     `toml:"initial-capacity"`
	LoadFactor      float64 `toml:"load-factor"`
	// Hash is one of runtime, xxhash, murmur3 or siphash.
	Hash        string `toml:"hash"`
	SipHashK0   uint64 `toml:"siphash-k0"`
	SipHashK1   uint64 `toml:"siphash-k1"`
	AccessOrder bool   `toml:"access-order"`
	// MaxEntries bounds the map, evicting the eldest entry on overflow. Zero
	// means unbounded.
	MaxEntries int  `toml:"max-entries"`
	Compress   bool `toml:"compress"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LoadFactor: 0.75,
		Hash:       "runtime",
	}
}

// LoadConfig reads the TOML file at path over the defaults. An empty path
// returns the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.Newf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that no map accepts.
func (c Config) Validate() error {
	if c.InitialCapacity < 0 {
		return errors.Newf("initial-capacity must not be negative: %d", c.InitialCapacity)
	}
	if !(c.LoadFactor > 0) || math.IsInf(c.LoadFactor, 0) {
		return errors.Newf("load-factor must be a positive number: %v", c.LoadFactor)
	}
	if c.MaxEntries < 0 {
		return errors.Newf("max-entries must not be negative: %d", c.MaxEntries)
	}
	switch c.Hash {
	case "runtime", "xxhash", "murmur3", "siphash":
	default:
		return errors.Newf("unknown hash %q", c.Hash)
	}
	return nil
}

// applyFlags overrides the configuration with the flags that were set on
// the command line.
func (c *Config) applyFlags(flags *pflag.FlagSet) error {
	var err error
	if flags.Changed("hash") {
		c.Hash, err = flags.GetString("hash")
	}
	if err == nil && flags.Changed("load-factor") {
		c.LoadFactor, err = flags.GetFloat64("load-factor")
	}
	if err == nil && flags.Changed("max-entries") {
		c.MaxEntries, err = flags.GetInt("max-entries")
	}
	if err == nil && flags.Changed("access-order") {
		c.AccessOrder, err = flags.GetBool("access-order")
	}
	if err == nil && flags.Changed("compress") {
		c.Compress, err = flags.GetBool("compress")
	}
	if err != nil {
		return err
	}
	return c.Validate()
}

// hasher returns the string hash function for c.Hash, or nil for the
// runtime hash.
func (c Config) hasher() func(string) uint32 {
	switch c.Hash {
	case "xxhash":
		return hashbin.XXHashString
	case "murmur3":
		return hashbin.Murmur3String
	case "siphash":
		return hashbin.SipHasher(c.SipHashK0, c.SipHashK1)
	default:
		return nil
	}
}

// linked reports whether the configuration calls for a LinkedMap.
func (c Config) linked() bool {
	return c.AccessOrder || c.MaxEntries > 0
}

// table is the part of the map API the commands use. Both *hashbin.Map and
// *hashbin.LinkedMap implement it.
type table interface {
	Get(key string) (string, bool)
	Put(key, value string) (string, bool)
	Len() int
	Stats() hashbin.Stats
	All(yield func(key, value string) bool)
}

// newTable constructs an empty map as described by c.
func (c Config) newTable(logger *zap.Logger) (table, error) {
	hash := c.hasher()
	if !c.linked() {
		m, err := hashbin.New[string, string](c.InitialCapacity,
			hashbin.WithHash[string, string](hash),
			hashbin.WithLoadFactor[string, string](c.LoadFactor),
			hashbin.WithLogger[string, string](logger))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	lm, err := hashbin.NewLinkedMap[string, string](c.InitialCapacity, c.AccessOrder,
		hashbin.WithHash[string, string](hash),
		hashbin.WithLoadFactor[string, string](c.LoadFactor),
		hashbin.WithLogger[string, string](logger))
	if err != nil {
		return nil, err
	}
	if n := c.MaxEntries; n > 0 {
		lm.SetEvictionPolicy(func(_, _ string, size int) bool {
			return size > n
		})
	}
	return lm, nil
}
