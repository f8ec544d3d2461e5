// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"fmt"
	"strings"

	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// Registry indexes rules by id, code and dispatch kind. It is built once
// at startup and only read afterwards.
type Registry struct {
	rules  []*Rule
	byName map[string]*Rule
	byKind map[syntax.Kind][]*Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Rule),
		byKind: make(map[syntax.Kind][]*Rule),
	}
}

// Register adds a rule. Ids and codes must be unique.
func (r *Registry) Register(rule *Rule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("rule %s: invalid severity %q", rule.ID, rule.Severity)
	}
	if !rule.Confidence.Valid() {
		return fmt.Errorf("rule %s: invalid confidence %q", rule.ID, rule.Confidence)
	}
	if _, ok := types.ParseCategory(string(rule.Category)); !ok {
		return fmt.Errorf("rule %s: invalid category %q", rule.ID, rule.Category)
	}
	if len(rule.Kinds) > 0 && rule.Check == nil {
		return fmt.Errorf("rule %s: dispatch kinds without a check", rule.ID)
	}

	names := []string{strings.ToLower(rule.ID)}
	if rule.Code != "" {
		names = append(names, strings.ToLower(rule.Code))
	}
	for _, name := range names {
		if _, exists := r.byName[name]; exists {
			return fmt.Errorf("duplicate rule %q", name)
		}
	}

	for _, name := range names {
		r.byName[name] = rule
	}
	r.rules = append(r.rules, rule)
	for _, k := range rule.Kinds {
		r.byKind[k] = append(r.byKind[k], rule)
	}
	return nil
}

// RulesFor returns the rules dispatched on kind, in registration order.
func (r *Registry) RulesFor(kind syntax.Kind) []*Rule {
	return r.byKind[kind]
}

// Get looks a rule up by id or code, case-insensitively.
func (r *Registry) Get(name string) (*Rule, bool) {
	rule, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return rule, ok
}

// All returns every rule in registration order.
func (r *Registry) All() []*Rule {
	return r.rules
}

// SelectOptions narrows the enabled rule set.
type SelectOptions struct {
	// Categories limits rules to these categories; empty means all.
	Categories []types.Category

	// Allow limits rules to these ids or codes; empty means all.
	Allow []string

	// Deny disables these ids or codes.
	Deny []string
}

// Selection is the set of enabled rules for a run.
type Selection struct {
	enabled map[*Rule]bool
	ids     []string
}

// Select resolves options against the registry. Unknown rule names are a
// configuration error.
func (r *Registry) Select(opts SelectOptions) (*Selection, error) {
	categories := make(map[types.Category]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		if _, ok := types.ParseCategory(string(c)); !ok {
			return nil, &types.ConfigurationError{Field: "enabled_categories", Reason: fmt.Sprintf("unknown category %q", c)}
		}
		categories[c] = true
	}

	allow, err := r.resolve("rule_allowlist", opts.Allow)
	if err != nil {
		return nil, err
	}
	deny, err := r.resolve("rule_denylist", opts.Deny)
	if err != nil {
		return nil, err
	}

	sel := &Selection{enabled: make(map[*Rule]bool)}
	for _, rule := range r.rules {
		if len(categories) > 0 && !categories[rule.Category] {
			continue
		}
		if len(allow) > 0 && !allow[rule] {
			continue
		}
		if deny[rule] {
			continue
		}
		sel.enabled[rule] = true
		sel.ids = append(sel.ids, rule.ID)
	}
	return sel, nil
}

func (r *Registry) resolve(field string, names []string) (map[*Rule]bool, error) {
	out := make(map[*Rule]bool, len(names))
	for _, name := range names {
		rule, ok := r.Get(name)
		if !ok {
			return nil, &types.ConfigurationError{Field: field, Reason: fmt.Sprintf("unknown rule %q", name)}
		}
		out[rule] = true
	}
	return out, nil
}

// Enabled reports whether rule runs. A nil selection enables everything.
func (s *Selection) Enabled(rule *Rule) bool {
	if s == nil {
		return true
	}
	return s.enabled[rule]
}

// IDs returns the enabled rule ids in registration order.
func (s *Selection) IDs() []string {
	if s == nil {
		return nil
	}
	return s.ids
}
