// Package types defines core types for codesentry.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package types

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Severity is the impact classification assigned per rule.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Confidence is the certainty that a match is a true positive.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is one of the known confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Category classifies what a rule checks for.
type Category string

const (
	CategoryStyle    Category = "style"
	CategorySecurity Category = "security"
	CategoryType     Category = "type"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryStyle, CategorySecurity, CategoryType}
}

// ParseCategory resolves a case-insensitive category name.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryStyle, CategorySecurity, CategoryType:
		return c, true
	}
	return "", false
}

// FailOn is the threshold at which a run is considered failed.
type FailOn string

const (
	FailOnNone FailOn = "none"
	FailOnAny  FailOn = "any"
	FailOnHigh FailOn = "high"
)

// ParseFailOn resolves a case-insensitive fail-on threshold.
func ParseFailOn(s string) (FailOn, bool) {
	f := FailOn(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FailOnNone, FailOnAny, FailOnHigh:
		return f, true
	}
	return "", false
}

// Finding represents a single reported diagnostic.
type Finding struct {
	// RuleID is the rule identifier (e.g., "hardcoded-credential").
	RuleID string `json:"rule_id"`

	// Code is the short rule code (e.g., "CS101").
	Code string `json:"code,omitempty"`

	// Category classifies the rule that produced the finding.
	Category Category `json:"category"`

	// Severity indicates the impact level.
	Severity Severity `json:"severity"`

	// Confidence indicates how likely the match is a true positive.
	Confidence Confidence `json:"confidence"`

	// CWE is an optional weakness reference (e.g., "CWE-259").
	CWE string `json:"cwe,omitempty"`

	// Path is the analyzed file.
	Path string `json:"path,omitempty"`

	// Line is the 1-based line number where the match starts.
	Line int `json:"line"`

	// Column is the 1-based column number where the match starts.
	Column int `json:"column"`

	// EndLine is the end line of the matched node.
	EndLine int `json:"end_line,omitempty"`

	// EndColumn is the end column of the matched node.
	EndColumn int `json:"end_column,omitempty"`

	// Message is the rendered human-readable description.
	Message string `json:"message"`

	// Snippet is the source line the finding points at.
	Snippet string `json:"snippet,omitempty"`
}

// Key identifies duplicates: same rule at the same place in the same file.
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d", f.RuleID, f.Path, f.Line, f.Column)
}

// Counts is a histogram over the three levels shared by severity and confidence.
type Counts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Add increments the bucket named by level.
func (c *Counts) Add(level string) {
	switch level {
	case "low":
		c.Low++
	case "medium":
		c.Medium++
	case "high":
		c.High++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Low += other.Low
	c.Medium += other.Medium
	c.High += other.High
}

// Total returns the sum of all buckets.
func (c Counts) Total() int {
	return c.Low + c.Medium + c.High
}

// Suppression removes findings at a location, optionally for one rule only.
type Suppression struct {
	// Path is a path.Match glob; empty matches any file.
	Path string `json:"path,omitempty" yaml:"path"`

	// Line is the 1-based line; 0 matches every line.
	Line int `json:"line,omitempty" yaml:"line"`

	// RuleID restricts the directive to a rule id or code; empty matches any rule.
	RuleID string `json:"rule,omitempty" yaml:"rule"`

	// Source records where the directive came from (inline, config, baseline).
	Source string `json:"source,omitempty" yaml:"-"`
}

// Matches reports whether the directive removes f.
func (s Suppression) Matches(f Finding) bool {
	if s.Path != "" {
		p := filepath.ToSlash(f.Path)
		if p != s.Path {
			ok, err := path.Match(s.Path, p)
			if err != nil || !ok {
				return false
			}
		}
	}
	if s.Line != 0 && s.Line != f.Line {
		return false
	}
	if s.RuleID == "" {
		return true
	}
	return strings.EqualFold(s.RuleID, f.RuleID) || (f.Code != "" && strings.EqualFold(s.RuleID, f.Code))
}

// Report is the analysis result for one file. It is built once by the
// aggregator and not modified afterwards.
type Report struct {
	// Path is the analyzed file.
	Path string `json:"path"`

	// Lines is the number of lines scanned.
	Lines int `json:"lines"`

	// Findings are ordered by line, column, then rule id.
	Findings []Finding `json:"findings"`

	// Severity counts the reported findings by severity.
	Severity Counts `json:"severity_counts"`

	// Confidence counts the reported findings by confidence.
	Confidence Counts `json:"confidence_counts"`

	// Suppressed counts findings removed by suppression directives.
	Suppressed int `json:"suppressed"`

	// RuleErrors lists rule evaluations that failed; they never stop the analysis.
	RuleErrors []RuleEvaluationError `json:"rule_errors,omitempty"`
}
