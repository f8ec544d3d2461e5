// Package rules defines codesentry rules, the registry that indexes them by
// node kind, and the builtin detectors.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"strings"

	"github.com/3leaps/codesentry/internal/scope"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// Context is what a detector can see besides the node it was dispatched on.
type Context struct {
	// Tree is the file being analyzed.
	Tree *syntax.Tree

	// Scopes is the file's binding table.
	Scopes *scope.Table

	// Scope is the scope owned by, or enclosing, the dispatched node.
	Scope *scope.Scope

	// Heuristics are the tunable name lists detectors consult.
	Heuristics *Heuristics
}

// Qualify resolves the dotted name of an expression through module imports.
func (c *Context) Qualify(n *syntax.Node) string {
	name := syntax.DottedName(n)
	if c.Scopes == nil {
		return name
	}
	return c.Scopes.Qualify(name)
}

// Hit is one match reported by a detector.
type Hit struct {
	// Node locates the finding.
	Node *syntax.Node

	// Message overrides the rule's default message when set.
	Message string

	// Severity overrides the rule's default severity when set.
	Severity types.Severity

	// Confidence overrides the rule's default confidence when set.
	Confidence types.Confidence
}

// CheckFunc inspects one node. Returning an error, or panicking, is
// recorded as a rule evaluation failure for that node only.
type CheckFunc func(c *Context, n *syntax.Node) ([]Hit, error)

// Rule defines a detection rule.
type Rule struct {
	// ID is the unique identifier (e.g., "hardcoded-credential").
	ID string

	// Code is the short code (e.g., "CS101").
	Code string

	// Title is a short human-readable name.
	Title string

	// Category classifies the rule.
	Category types.Category

	// Severity is the default impact level.
	Severity types.Severity

	// Confidence is the default true-positive likelihood.
	Confidence types.Confidence

	// CWE is an optional weakness reference.
	CWE string

	// Kinds are the node kinds the matcher dispatches to Check.
	// Rules without kinds are evaluated by a dedicated pass.
	Kinds []syntax.Kind

	// Message is the default finding message.
	Message string

	// Recommendation suggests remediation.
	Recommendation string

	// Check is the detector.
	Check CheckFunc
}

// Finding turns a hit into a finding for the given tree.
func (r *Rule) Finding(tree *syntax.Tree, h Hit) types.Finding {
	f := types.Finding{
		RuleID:     r.ID,
		Code:       r.Code,
		Category:   r.Category,
		Severity:   r.Severity,
		Confidence: r.Confidence,
		CWE:        r.CWE,
		Message:    r.Message,
	}
	if tree != nil {
		f.Path = tree.Path()
	}
	if h.Message != "" {
		f.Message = h.Message
	}
	if h.Severity != "" {
		f.Severity = h.Severity
	}
	if h.Confidence != "" {
		f.Confidence = h.Confidence
	}
	if h.Node != nil {
		span := h.Node.Span()
		f.Line = span.Start.Line
		f.Column = span.Start.Column
		f.EndLine = span.End.Line
		f.EndColumn = span.End.Column
		if tree != nil {
			f.Snippet = truncateCode(strings.TrimSpace(tree.Line(f.Line)), 120)
		}
	}
	return f
}

// truncateCode limits code snippet length.
func truncateCode(code string, maxLen int) string {
	if len(code) <= maxLen {
		return code
	}
	return code[:maxLen-3] + "..."
}
