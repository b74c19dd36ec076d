// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timing for long polling.
const (
	DefaultMinDelay   = 500 * time.Millisecond
	DefaultPreferWait = 20 * time.Second
)

// Environment variables consulted by ConfigFromEnv.
const (
	EnvMinDelay   = "CLOUD_CLIENT_LONG_POLLING_MIN_DELAY"   // milliseconds
	EnvPreferWait = "CLOUD_CLIENT_LONG_POLLING_PREFER_WAIT" // seconds
)

// Config carries the timing parameters of long polling.
type Config struct {
	// MinDelay is the minimum time between the starts of consecutive polls.
	MinDelay time.Duration `yaml:"min_delay"`

	// PreferWait is the server hold time requested in the Prefer header.
	PreferWait time.Duration `yaml:"prefer_wait"`
}

// withDefaults returns a copy of c with unset (non-positive) fields replaced
// by their defaults.
func (c Config) withDefaults() Config {
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.PreferWait <= 0 {
		c.PreferWait = DefaultPreferWait
	}
	return c
}

// ConfigFromEnv returns a Config populated from the process environment.
// Variables that are unset or do not parse as non-negative integers leave the
// corresponding default in place.
func ConfigFromEnv() Config { return configFromLookup(os.LookupEnv) }

func configFromLookup(lookup func(string) (string, bool)) Config {
	cfg := Config{MinDelay: DefaultMinDelay, PreferWait: DefaultPreferWait}
	if n, ok := envInt(lookup, EnvMinDelay); ok {
		cfg.MinDelay = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt(lookup, EnvPreferWait); ok {
		cfg.PreferWait = time.Duration(n) * time.Second
	}
	return cfg
}

func envInt(lookup func(string) (string, bool), name string) (int64, bool) {
	s, ok := lookup(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DefaultConfig returns the process-wide configuration, read from the
// environment on first use.
var DefaultConfig = sync.OnceValue(ConfigFromEnv)

// Options control how descriptors are resolved into types and instances. A
// nil *Options is ready for use and selects all defaults.
type Options struct {
	// EnableLongPolling, if true, starts a poller for each instance created,
	// to keep its data synchronized with the remote object. Together with
	// Config, Logger, and OnUpdate it applies to the instances created by
	// each resolving call, including instances of a type found in the cache.
	EnableLongPolling bool

	// Cache is used to share types among resolutions.
	// If nil, DefaultCache() is used.
	Cache *Cache

	// Config overrides the timing of long polling.
	// If nil, DefaultConfig() is used.
	Config *Config

	// Logger receives diagnostic logs.
	// If nil, the global zap logger is used.
	Logger *zap.Logger

	// OnUpdate, if set, is called by the poller after each update merged into
	// an instance. It must not block for long, since polling does not resume
	// until it returns.
	OnUpdate func(*Instance)
}

func (o *Options) cache() *Cache {
	if o == nil || o.Cache == nil {
		return DefaultCache()
	}
	return o.Cache
}

func (o *Options) config() Config {
	if o == nil || o.Config == nil {
		return DefaultConfig()
	}
	return o.Config.withDefaults()
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.L().Named("cloudclient")
	}
	return o.Logger
}

func (o *Options) longPolling() bool { return o != nil && o.EnableLongPolling }

func (o *Options) onUpdate() func(*Instance) {
	if o == nil {
		return nil
	}
	return o.OnUpdate
}
