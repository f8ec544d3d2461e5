// Package matcher runs registered rules over a syntax tree in a single
// pre-order pass.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package matcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/scope"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// pollInterval is how many nodes are visited between deadline checks.
const pollInterval = 64

// Matcher dispatches rules on node kinds.
type Matcher struct {
	registry   *rules.Registry
	selection  *rules.Selection
	heuristics rules.Heuristics
	logger     *zap.Logger
}

// New creates a matcher. A nil selection enables every rule; a nil logger
// discards log output.
func New(registry *rules.Registry, selection *rules.Selection, heuristics rules.Heuristics, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		registry:   registry,
		selection:  selection,
		heuristics: heuristics,
		logger:     logger.Named("matcher"),
	}
}

// Result holds what one match pass produced.
type Result struct {
	// Findings are in traversal order, possibly with duplicates.
	Findings []types.Finding

	// Errors are the rule evaluations that failed.
	Errors []types.RuleEvaluationError
}

// Match walks the tree once, evaluating every enabled rule registered for
// each node's kind. A failing rule is recorded and the walk continues. The
// walk stops with the context's error if the context is done.
func (m *Matcher) Match(ctx context.Context, tree *syntax.Tree) (*Result, error) {
	table := scope.Build(tree)
	heuristics := m.heuristics

	w := &walker{
		ctx:     ctx,
		matcher: m,
		tree:    tree,
		rc: rules.Context{
			Tree:       tree,
			Scopes:     table,
			Heuristics: &heuristics,
		},
		result: &Result{},
	}

	if err := w.visit(tree.Root(), table.Module()); err != nil {
		return nil, err
	}
	return w.result, nil
}

type walker struct {
	ctx     context.Context
	matcher *Matcher
	tree    *syntax.Tree
	rc      rules.Context
	result  *Result
	steps   int
}

func (w *walker) visit(n *syntax.Node, s *scope.Scope) error {
	w.steps++
	if w.steps%pollInterval == 0 {
		if err := w.ctx.Err(); err != nil {
			return err
		}
	}

	if owned := w.rc.Scopes.Lookup(n); owned != nil {
		s = owned
	}

	for _, rule := range w.matcher.registry.RulesFor(n.Kind()) {
		if !w.matcher.selection.Enabled(rule) {
			continue
		}
		w.rc.Scope = s
		hits, err := evaluate(rule, &w.rc, n)
		if err != nil {
			w.fail(rule, n, err)
			continue
		}
		for _, h := range hits {
			w.result.Findings = append(w.result.Findings, rule.Finding(w.tree, h))
		}
	}

	for _, c := range n.Children() {
		if err := w.visit(c, s); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) fail(rule *rules.Rule, n *syntax.Node, err error) {
	rerr := types.RuleEvaluationError{
		RuleID: rule.ID,
		Path:   w.tree.Path(),
		Line:   n.Start().Line,
		Column: n.Start().Column,
		Reason: err.Error(),
		Err:    err,
	}
	w.result.Errors = append(w.result.Errors, rerr)
	w.matcher.logger.Warn("rule evaluation failed",
		zap.String("rule", rule.ID),
		zap.String("file", rerr.Path),
		zap.Int("line", rerr.Line),
		zap.Error(err),
	)
}

// evaluate runs one rule on one node, turning a panic into an error.
func evaluate(rule *rules.Rule, c *rules.Context, n *syntax.Node) (hits []rules.Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule.Check(c, n)
}
