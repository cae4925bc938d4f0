// Package config loads rewind's runtime configuration.
//
// Values come from three layers, later layers winning:
//
//  1. Defaults()
//  2. a YAML file (optional)
//  3. REWIND_* environment variables
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/serde"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "REWIND_"

// Config is the process-wide configuration.
type Config struct {
	// Mode is the configured mode name. DYNAMIC defers to the per-request
	// mode header.
	Mode string `yaml:"mode" json:"mode" env:"MODE"`

	// SamplePercent is the share of PROFILE requests captured, 0 to 100.
	SamplePercent int `yaml:"sample_percent" json:"sample_percent" env:"SAMPLE_PERCENT"`

	// Database is the SQLite file holding recordings, outcomes and the
	// durable queue.
	Database string `yaml:"database" json:"database" env:"DATABASE"`

	// QueueCapacity bounds the in-memory snapshot queue.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity" env:"QUEUE_CAPACITY"`

	// CompactInterval is how often consumed queue rows are deleted.
	// Zero disables compaction.
	CompactInterval time.Duration `yaml:"compact_interval" json:"compact_interval" env:"COMPACT_INTERVAL"`

	// HashArguments stores argument digests instead of argument payloads.
	HashArguments bool `yaml:"hash_arguments" json:"hash_arguments" env:"HASH_ARGUMENTS"`

	// Ignore maps a diff kind name to path patterns whose differences are
	// suppressed. File only.
	Ignore map[string][]string `yaml:"ignore,omitempty" json:"ignore,omitempty"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Mode:            string(engine.ModeNone),
		SamplePercent:   100,
		Database:        "rewind.db",
		QueueCapacity:   engine.DefaultQueueCapacity,
		CompactInterval: time.Minute,
	}
}

// Load builds a Config from Defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
//
// Unknown YAML keys are rejected so typos surface at startup.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		// An empty or comment-only file decodes to io.EOF and keeps the defaults.
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges, the mode name and the ignore patterns.
func (c *Config) Validate() error {
	if _, err := engine.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if c.SamplePercent < 0 || c.SamplePercent > 100 {
		return fmt.Errorf("sample_percent must be within [0,100], got %d", c.SamplePercent)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.CompactInterval < 0 {
		return fmt.Errorf("compact_interval must not be negative, got %s", c.CompactInterval)
	}
	if _, err := c.IgnoreRules(); err != nil {
		return fmt.Errorf("ignore: %w", err)
	}
	return nil
}

// ParsedMode returns Mode as an engine.Mode, NONE when it does not parse.
func (c *Config) ParsedMode() engine.Mode {
	m, _ := engine.ParseMode(c.Mode)
	return m
}

// IgnoreRules compiles the ignore patterns.
func (c *Config) IgnoreRules() (*diff.IgnoreRules, error) {
	return diff.CompileIgnoreRules(c.Ignore)
}

// HashPolicy returns the argument hash policy.
func (c *Config) HashPolicy() serde.HashPolicy {
	return serde.PolicyFor(c.HashArguments)
}

// EngineOptions returns the engine options implied by the configuration.
func (c *Config) EngineOptions() ([]engine.EngineOption, error) {
	rules, err := c.IgnoreRules()
	if err != nil {
		return nil, err
	}
	return []engine.EngineOption{
		engine.WithHashPolicy(c.HashPolicy()),
		engine.WithComparator(diff.New(diff.WithIgnoreRules(rules))),
	}, nil
}

// Sampler returns the PROFILE sampler.
func (c *Config) Sampler() engine.Sampler {
	return engine.NewPercentSampler(c.SamplePercent)
}
