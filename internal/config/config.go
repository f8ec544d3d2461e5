// Package config merges codesentry settings from a YAML file, the
// environment and command-line flags, in that order of precedence.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/codesentry/internal/logging"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/signing"
	"github.com/3leaps/codesentry/internal/types"
)

const (
	DefaultConfigPath = "codesentry.yml"
	DefaultTimeoutMs  = 10000

	// SourceConfig marks suppressions read from configuration.
	SourceConfig = "config"

	envCategories = "CODESENTRY_CATEGORIES"
	envFailOn     = "CODESENTRY_FAIL_ON"
	envTimeoutMs  = "CODESENTRY_TIMEOUT_MS"
	envWorkers    = "CODESENTRY_WORKERS"
	envLogLevel   = "CODESENTRY_LOG_LEVEL"
	envLogFormat  = "CODESENTRY_LOG_FORMAT"
	envDatabase   = "CODESENTRY_DATABASE"
	envPublicKey  = "CODESENTRY_CONFIG_PUBKEY"
)

// Loader merges configuration coming from files, environment variables, and CLI flags.
type Loader struct {
	// ConfigPath is the YAML file to read. Empty means DefaultConfigPath,
	// which may be absent; an explicit path must exist.
	ConfigPath string

	// PublicKey, when set, requires the config file to carry a valid
	// minisign signature. It may be a key or a path to a .pub file.
	PublicKey string
}

// Config contains the fully merged settings for a run.
type Config struct {
	Categories []string
	Denylist   []string
	Allowlist  []string

	TimeoutMs int
	FailOn    string
	Workers   int

	LogLevel  string
	LogFormat string

	CredentialNames []string
	TempPrefixes    []string
	SQLSinks        []string
	SQLMaxHops      int

	Suppressions []types.Suppression

	Database string

	// Signed records whether the config file's signature was verified.
	Signed bool
	// KeyID names the minisign key that signed it, when the key carries one.
	KeyID  string
}

// Overrides captures values coming from the file, env vars or CLI flags.
type Overrides struct {
	Categories []string
	Deny       []string
	Allow      []string

	TimeoutMs  int
	TimeoutSet bool
	FailOn     string
	Workers    int
	WorkersSet bool

	LogLevel  string
	LogFormat string

	CredentialNames []string
	TempPrefixes    []string
	SQLSinks        []string
	SQLMaxHops      *int

	Suppressions []types.Suppression

	Database string
}

// Default returns the baseline configuration when nothing overrides it.
func Default() Config {
	workers := runtime.NumCPU()
	if workers > 64 {
		workers = 64
	}
	return Config{
		TimeoutMs:  DefaultTimeoutMs,
		FailOn:     string(types.FailOnHigh),
		Workers:    workers,
		LogLevel:   "warn",
		LogFormat:  logging.FormatConsole,
		SQLMaxHops: 1,
	}
}

// Load resolves the final configuration. Every failure is a
// *types.ConfigurationError.
func (l Loader) Load(override Overrides) (Config, error) {
	cfg := Default()

	p := l.ConfigPath
	explicit := p != ""
	if !explicit {
		p = DefaultConfigPath
	}

	pubkey := l.PublicKey
	if pubkey == "" {
		pubkey = os.Getenv(envPublicKey)
	}

	switch {
	case fileExists(p):
		if pubkey != "" {
			if err := signing.VerifyFile(p, pubkey); err != nil {
				return cfg, &types.ConfigurationError{Field: "signature", Reason: fmt.Sprintf("%s: %v", p, err), Err: err}
			}
			cfg.Signed = true
			cfg.KeyID = signing.KeyID(pubkey)
		}
		fileOv, err := loadFromFile(p)
		if err != nil {
			return cfg, &types.ConfigurationError{Field: p, Reason: err.Error(), Err: err}
		}
		cfg.apply(fileOv)
	case explicit:
		return cfg, &types.ConfigurationError{Field: "config", Reason: fmt.Sprintf("%s: file not found", p)}
	case pubkey != "":
		return cfg, &types.ConfigurationError{Field: "signature", Reason: "a public key was given but there is no config file to verify"}
	}

	envOv, err := overridesFromEnv()
	if err != nil {
		return cfg, err
	}
	cfg.apply(envOv)
	cfg.apply(override)

	return cfg, nil
}

// Validate checks every value that does not need the rule registry.
func (c Config) Validate() error {
	for _, name := range c.Categories {
		if _, ok := types.ParseCategory(name); !ok {
			return &types.ConfigurationError{Field: "enabled_categories", Reason: fmt.Sprintf("unknown category %q", name)}
		}
	}
	if c.TimeoutMs < 0 {
		return &types.ConfigurationError{Field: "per_file_timeout_ms", Reason: fmt.Sprintf("must not be negative (got %d)", c.TimeoutMs)}
	}
	if _, ok := types.ParseFailOn(c.FailOn); !ok {
		return &types.ConfigurationError{Field: "fail_on", Reason: fmt.Sprintf("must be none, any or high (got %q)", c.FailOn)}
	}
	if c.Workers < 1 || c.Workers > 64 {
		return &types.ConfigurationError{Field: "workers", Reason: fmt.Sprintf("must be between 1 and 64 (got %d)", c.Workers)}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return &types.ConfigurationError{Field: "logging.level", Reason: err.Error()}
	}
	if !logging.ValidFormat(c.LogFormat) {
		return &types.ConfigurationError{Field: "logging.format", Reason: fmt.Sprintf("must be json or console (got %q)", c.LogFormat)}
	}
	if c.SQLMaxHops < 0 || c.SQLMaxHops > 1 {
		return &types.ConfigurationError{Field: "heuristics.sql_max_hops", Reason: fmt.Sprintf("must be 0 or 1 (got %d)", c.SQLMaxHops)}
	}
	for _, p := range c.TempPrefixes {
		if strings.Trim(p, "/ ") == "" {
			return &types.ConfigurationError{Field: "heuristics.temp_prefixes", Reason: fmt.Sprintf("prefix %q matches every path", p)}
		}
	}
	for i, s := range c.Suppressions {
		if s.Line < 0 {
			return &types.ConfigurationError{Field: fmt.Sprintf("suppressions[%d].line", i), Reason: "must not be negative"}
		}
		if s.Path != "" {
			if _, err := path.Match(s.Path, ""); err != nil {
				return &types.ConfigurationError{Field: fmt.Sprintf("suppressions[%d].path", i), Reason: err.Error(), Err: err}
			}
		}
		if s.Path == "" && s.Line == 0 && s.RuleID == "" {
			return &types.ConfigurationError{Field: fmt.Sprintf("suppressions[%d]", i), Reason: "suppresses everything; set path, line or rule"}
		}
	}
	return nil
}

// Selection resolves the rule options against a registry.
func (c Config) Selection(reg *rules.Registry) (*rules.Selection, error) {
	opts := rules.SelectOptions{Allow: c.Allowlist, Deny: c.Denylist}
	for _, name := range c.Categories {
		cat, ok := types.ParseCategory(name)
		if !ok {
			return nil, &types.ConfigurationError{Field: "enabled_categories", Reason: fmt.Sprintf("unknown category %q", name)}
		}
		opts.Categories = append(opts.Categories, cat)
	}
	return reg.Select(opts)
}

// Heuristics returns the builtin heuristics extended by configuration.
func (c Config) Heuristics() rules.Heuristics {
	h := rules.DefaultHeuristics().Extend(c.CredentialNames, c.TempPrefixes, c.SQLSinks)
	h.SQLMaxHops = c.SQLMaxHops
	return h
}

// Timeout returns the per-file budget; zero means no deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// FailOnLevel returns the parsed fail-on threshold.
func (c Config) FailOnLevel() types.FailOn {
	f, ok := types.ParseFailOn(c.FailOn)
	if !ok {
		return types.FailOnHigh
	}
	return f
}

func (c *Config) apply(src Overrides) {
	if len(src.Categories) > 0 {
		c.Categories = cleanList(src.Categories)
	}
	if len(src.Deny) > 0 {
		c.Denylist = cleanList(src.Deny)
	}
	if len(src.Allow) > 0 {
		c.Allowlist = cleanList(src.Allow)
	}
	if src.TimeoutSet {
		c.TimeoutMs = src.TimeoutMs
	}
	if src.FailOn != "" {
		c.FailOn = strings.ToLower(strings.TrimSpace(src.FailOn))
	}
	if src.WorkersSet {
		c.Workers = src.Workers
	}
	if src.LogLevel != "" {
		c.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		c.LogFormat = src.LogFormat
	}
	if len(src.CredentialNames) > 0 {
		c.CredentialNames = cleanList(src.CredentialNames)
	}
	if len(src.TempPrefixes) > 0 {
		c.TempPrefixes = cleanList(src.TempPrefixes)
	}
	if len(src.SQLSinks) > 0 {
		c.SQLSinks = cleanList(src.SQLSinks)
	}
	if src.SQLMaxHops != nil {
		c.SQLMaxHops = *src.SQLMaxHops
	}
	if len(src.Suppressions) > 0 {
		c.Suppressions = append(c.Suppressions, src.Suppressions...)
	}
	if src.Database != "" {
		c.Database = src.Database
	}
}

type rawConfig struct {
	EnabledCategories []string `yaml:"enabled_categories"`
	RuleDenylist      []string `yaml:"rule_denylist"`
	RuleAllowlist     []string `yaml:"rule_allowlist"`
	PerFileTimeoutMs  *int     `yaml:"per_file_timeout_ms"`
	FailOn            string   `yaml:"fail_on"`
	Workers           *int     `yaml:"workers"`
	Logging           struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Heuristics struct {
		CredentialNames []string `yaml:"credential_names"`
		TempPrefixes    []string `yaml:"temp_prefixes"`
		SQLSinks        []string `yaml:"sql_sinks"`
		SQLMaxHops      *int     `yaml:"sql_max_hops"`
	} `yaml:"heuristics"`
	Suppressions []types.Suppression `yaml:"suppressions"`
	Database     string              `yaml:"database"`
}

func loadFromFile(p string) (Overrides, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Overrides{}, err
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Overrides{}, err
	}

	over := Overrides{
		Categories:      raw.EnabledCategories,
		Deny:            raw.RuleDenylist,
		Allow:           raw.RuleAllowlist,
		FailOn:          raw.FailOn,
		LogLevel:        raw.Logging.Level,
		LogFormat:       raw.Logging.Format,
		CredentialNames: raw.Heuristics.CredentialNames,
		TempPrefixes:    raw.Heuristics.TempPrefixes,
		SQLSinks:        raw.Heuristics.SQLSinks,
		SQLMaxHops:      raw.Heuristics.SQLMaxHops,
		Database:        raw.Database,
	}

	if raw.PerFileTimeoutMs != nil {
		over.TimeoutMs = *raw.PerFileTimeoutMs
		over.TimeoutSet = true
	}
	if raw.Workers != nil {
		over.Workers = *raw.Workers
		over.WorkersSet = true
	}
	for _, s := range raw.Suppressions {
		s.Source = SourceConfig
		over.Suppressions = append(over.Suppressions, s)
	}

	return over, nil
}

func overridesFromEnv() (Overrides, error) {
	ov := Overrides{}

	if value := os.Getenv(envCategories); value != "" {
		ov.Categories = ParseList(value)
	}

	if value := os.Getenv(envFailOn); value != "" {
		ov.FailOn = value
	}

	if value := os.Getenv(envTimeoutMs); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return ov, &types.ConfigurationError{Field: envTimeoutMs, Reason: fmt.Sprintf("not an integer: %q", value), Err: err}
		}
		ov.TimeoutMs = parsed
		ov.TimeoutSet = true
	}

	if value := os.Getenv(envWorkers); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return ov, &types.ConfigurationError{Field: envWorkers, Reason: fmt.Sprintf("not an integer: %q", value), Err: err}
		}
		ov.Workers = parsed
		ov.WorkersSet = true
	}

	if value := os.Getenv(envLogLevel); value != "" {
		ov.LogLevel = value
	}

	if value := os.Getenv(envLogFormat); value != "" {
		ov.LogFormat = value
	}

	if value := os.Getenv(envDatabase); value != "" {
		ov.Database = value
	}

	return ov, nil
}

// ParseList splits comma or whitespace separated input.
func ParseList(input string) []string {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	return cleanList(parts)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		candidate := strings.TrimSpace(v)
		if candidate != "" {
			out = append(out, candidate)
		}
	}
	return out
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
