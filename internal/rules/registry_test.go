// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

func TestBuiltinRegistry(t *testing.T) {
	reg := Builtin()
	all := reg.All()
	if len(all) != 14 {
		t.Fatalf("expected 14 builtin rules, got %d", len(all))
	}

	for _, r := range all {
		if r.Code == "" || r.Title == "" || r.Message == "" {
			t.Errorf("rule %s is missing metadata", r.ID)
		}
		if r.ID != ReturnTypeMismatch && len(r.Kinds) == 0 {
			t.Errorf("rule %s has no dispatch kinds", r.ID)
		}
		if r.Category == types.CategorySecurity && !strings.HasPrefix(r.CWE, "CWE-") {
			t.Errorf("security rule %s has no CWE", r.ID)
		}
	}

	calls := reg.RulesFor(syntax.KindCall)
	if len(calls) == 0 || calls[0].ID != "dangerous-shell-invocation" {
		t.Errorf("expected call rules in registration order, got %v", calls)
	}
}

func TestRegistryGet(t *testing.T) {
	reg := Builtin()
	for _, name := range []string{"weak-hash-algorithm", "CS301", "cs301", " Weak-Hash-Algorithm "} {
		r, ok := reg.Get(name)
		if !ok || r.ID != "weak-hash-algorithm" {
			t.Errorf("Get(%q): expected weak-hash-algorithm", name)
		}
	}
	if _, ok := reg.Get("nope"); ok {
		t.Error("expected unknown rule lookup to fail")
	}
}

func TestRegisterValidation(t *testing.T) {
	valid := func() *Rule {
		return &Rule{
			ID:         "custom",
			Code:       "CS900",
			Category:   types.CategoryStyle,
			Severity:   types.SeverityLow,
			Confidence: types.ConfidenceLow,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"missing id", func(r *Rule) { r.ID = "" }},
		{"bad severity", func(r *Rule) { r.Severity = "critical" }},
		{"bad confidence", func(r *Rule) { r.Confidence = "" }},
		{"bad category", func(r *Rule) { r.Category = "perf" }},
		{"kinds without check", func(r *Rule) { r.Kinds = []syntax.Kind{syntax.KindCall} }},
		{"duplicate id", func(r *Rule) { r.ID = "unused-binding"; r.Code = "" }},
		{"duplicate code", func(r *Rule) { r.Code = "cs001" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			if err := Builtin().Register(r); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := Builtin().Register(valid()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSelect(t *testing.T) {
	reg := Builtin()

	tests := []struct {
		name     string
		opts     SelectOptions
		expected []string
	}{
		{
			name:     "type category",
			opts:     SelectOptions{Categories: []types.Category{types.CategoryType}},
			expected: []string{ReturnTypeMismatch},
		},
		{
			name:     "allowlist by code",
			opts:     SelectOptions{Allow: []string{"CS001", "swallowed-exception"}},
			expected: []string{"multiple-imports-one-statement", "swallowed-exception"},
		},
		{
			name: "deny wins over allow",
			opts: SelectOptions{
				Allow: []string{"CS001", "CS002"},
				Deny:  []string{"CS002"},
			},
			expected: []string{"multiple-imports-one-statement"},
		},
		{
			name: "category and allowlist intersect",
			opts: SelectOptions{
				Categories: []types.Category{types.CategoryStyle},
				Allow:      []string{"CS001", "CS301"},
			},
			expected: []string{"multiple-imports-one-statement"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := reg.Select(tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(sel.IDs(), ",") != strings.Join(tt.expected, ",") {
				t.Errorf("expected %v, got %v", tt.expected, sel.IDs())
			}
		})
	}

	all, err := reg.Select(SelectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.IDs()) != len(reg.All()) {
		t.Errorf("expected every rule enabled, got %d", len(all.IDs()))
	}
}

func TestSelectErrors(t *testing.T) {
	tests := []struct {
		name  string
		opts  SelectOptions
		field string
	}{
		{"unknown category", SelectOptions{Categories: []types.Category{"perf"}}, "enabled_categories"},
		{"unknown allow", SelectOptions{Allow: []string{"CS000"}}, "rule_allowlist"},
		{"unknown deny", SelectOptions{Deny: []string{"no-such-rule"}}, "rule_denylist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Builtin().Select(tt.opts)
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

func TestNilSelectionEnablesAll(t *testing.T) {
	var sel *Selection
	r, _ := Builtin().Get("CS001")
	if !sel.Enabled(r) {
		t.Error("expected nil selection to enable every rule")
	}
}
