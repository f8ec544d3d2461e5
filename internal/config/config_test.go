// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "codesentry.yml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoaderPrecedence(t *testing.T) {
	p := writeConfig(t, `
enabled_categories: [security, style]
rule_denylist: [CS002]
per_file_timeout_ms: 5000
fail_on: any
workers: 2
logging:
  level: info
  format: json
heuristics:
  credential_names: [apikey]
  sql_max_hops: 0
suppressions:
  - path: "legacy/*.py"
    rule: CS301
`)

	t.Setenv(envTimeoutMs, "2500")
	t.Setenv(envFailOn, "")

	cfg, err := Loader{ConfigPath: p}.Load(Overrides{Workers: 4, WorkersSet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Join(cfg.Categories, ",") != "security,style" {
		t.Errorf("expected categories from file, got %v", cfg.Categories)
	}
	if len(cfg.Denylist) != 1 || cfg.Denylist[0] != "CS002" {
		t.Errorf("expected denylist from file, got %v", cfg.Denylist)
	}
	if cfg.TimeoutMs != 2500 {
		t.Errorf("expected env timeout 2500, got %d", cfg.TimeoutMs)
	}
	if cfg.FailOn != "any" {
		t.Errorf("expected fail_on any, got %q", cfg.FailOn)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected flag workers 4, got %d", cfg.Workers)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "info" {
		t.Errorf("expected json/info logging, got %s/%s", cfg.LogFormat, cfg.LogLevel)
	}
	if cfg.SQLMaxHops != 0 {
		t.Errorf("expected sql_max_hops 0, got %d", cfg.SQLMaxHops)
	}
	if len(cfg.Suppressions) != 1 || cfg.Suppressions[0].Source != SourceConfig {
		t.Fatalf("expected one config suppression, got %+v", cfg.Suppressions)
	}
	if cfg.Suppressions[0].RuleID != "CS301" {
		t.Errorf("expected rule CS301, got %q", cfg.Suppressions[0].RuleID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoaderDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Loader{}.Load(Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeoutMs != DefaultTimeoutMs {
		t.Errorf("expected default timeout, got %d", cfg.TimeoutMs)
	}
	if cfg.FailOnLevel() != types.FailOnHigh {
		t.Errorf("expected fail_on high, got %q", cfg.FailOn)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "fail_fast: true\n"},
		{"bad yaml", "enabled_categories: [security\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeConfig(t, tt.body)
			_, err := Loader{ConfigPath: p}.Load(Overrides{})
			var cfgErr *types.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Loader{ConfigPath: filepath.Join(t.TempDir(), "nope.yml")}.Load(Overrides{})
		var cfgErr *types.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "config" {
			t.Errorf("expected config field error, got %v", err)
		}
	})

	t.Run("bad env integer", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv(envWorkers, "many")
		_, err := Loader{}.Load(Overrides{})
		var cfgErr *types.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != envWorkers {
			t.Errorf("expected %s error, got %v", envWorkers, err)
		}
	})
}

func TestLoaderSignature(t *testing.T) {
	p := writeConfig(t, "fail_on: any\n")

	_, err := Loader{ConfigPath: p, PublicKey: "RWTdRLXTdEKhwFNzVN2VGxfIb5djqGpY3x9eVIwPfKCqVlPqKfIZVFEL"}.Load(Overrides{})
	var cfgErr *types.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "signature" {
		t.Errorf("expected signature error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown category", func(c *Config) { c.Categories = []string{"perf"} }, "enabled_categories"},
		{"negative timeout", func(c *Config) { c.TimeoutMs = -1 }, "per_file_timeout_ms"},
		{"bad fail_on", func(c *Config) { c.FailOn = "medium" }, "fail_on"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "logging.format"},
		{"hops", func(c *Config) { c.SQLMaxHops = 3 }, "heuristics.sql_max_hops"},
		{"root temp prefix", func(c *Config) { c.TempPrefixes = []string{"/"} }, "heuristics.temp_prefixes"},
		{"bad glob", func(c *Config) { c.Suppressions = []types.Suppression{{Path: "[", RuleID: "CS001"}} }, "suppressions[0].path"},
		{"match all", func(c *Config) { c.Suppressions = []types.Suppression{{}} }, "suppressions[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Workers = 2
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *types.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestSelectionAndHeuristics(t *testing.T) {
	cfg := Default()
	cfg.Categories = []string{"type"}
	cfg.CredentialNames = []string{"ApiKey"}
	cfg.SQLMaxHops = 0

	sel, err := cfg.Selection(rules.Builtin())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := sel.IDs()
	if len(ids) != 1 || ids[0] != rules.ReturnTypeMismatch {
		t.Errorf("expected only the type rule, got %v", ids)
	}

	h := cfg.Heuristics()
	found := false
	for _, n := range h.CredentialNames {
		if n == "apikey" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected apikey credential name, got %v", h.CredentialNames)
	}
	if h.SQLMaxHops != 0 {
		t.Errorf("expected 0 hops, got %d", h.SQLMaxHops)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" security, style\ttype ,,")
	if strings.Join(got, "|") != "security|style|type" {
		t.Errorf("expected three entries, got %v", got)
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
