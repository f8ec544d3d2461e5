// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package types

import (
	"fmt"
	"time"
)

// ParseError means the file could not be turned into a syntax tree.
// It is fatal for that file only.
type ParseError struct {
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s:%d:%d: parse error: %s", e.Path, e.Line, e.Column, e.Reason)
}

// RuleEvaluationError records a single rule failing on a single node.
type RuleEvaluationError struct {
	RuleID string `json:"rule_id"`
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Reason string `json:"reason"`

	Err error `json:"-"`
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s failed at %s:%d:%d: %s", e.RuleID, e.Path, e.Line, e.Column, e.Reason)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

// ConfigurationError aborts the whole run before any file is analyzed.
type ConfigurationError struct {
	Field  string
	Reason string

	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TimeoutError means a file's analysis exceeded its time budget.
// No partial report is produced for that file.
type TimeoutError struct {
	Path   string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: analysis exceeded %s budget", e.Path, e.Budget)
}
