// Package analyzer provides the core analysis engine for codesentry.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/codesentry/internal/aggregate"
	"github.com/3leaps/codesentry/internal/matcher"
	"github.com/3leaps/codesentry/internal/parser"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/typecheck"
	"github.com/3leaps/codesentry/internal/types"
)

// Analyzer is one pass over a parsed file.
type Analyzer interface {
	// Analyze inspects the tree and returns the pass's findings in
	// traversal order together with any isolated rule failures. A returned
	// error stops the file's analysis.
	Analyze(ctx context.Context, tree *syntax.Tree) ([]types.Finding, []types.RuleEvaluationError, error)

	// Name returns the analyzer's identifier.
	Name() string
}

// Options configures the analysis engine.
type Options struct {
	// ToolVersion is injected for report generation.
	ToolVersion string

	// Selection is the enabled rule set; nil enables every rule.
	Selection *rules.Selection

	// Heuristics feed the security detectors.
	Heuristics rules.Heuristics

	// Timeout bounds each file's analysis; zero disables the deadline.
	Timeout time.Duration

	// Workers is the number of files analyzed in parallel.
	Workers int

	// Suppressions apply to every file, next to its inline directives.
	Suppressions []types.Suppression
}

// Engine orchestrates the analysis passes and produces reports. It holds
// no per-file state and is safe for concurrent use.
type Engine struct {
	analyzers []Analyzer
	opts      Options
	logger    *zap.Logger
}

// NewEngine creates an engine running the rule matcher and, when its rule
// is enabled, the return type checker.
func NewEngine(registry *rules.Registry, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	e := &Engine{
		analyzers: []Analyzer{},
		opts:      opts,
		logger:    logger.Named("analyzer"),
	}

	e.RegisterAnalyzer(&matchPass{m: matcher.New(registry, opts.Selection, opts.Heuristics, logger)})
	if rule, ok := registry.Get(rules.ReturnTypeMismatch); ok && opts.Selection.Enabled(rule) {
		e.RegisterAnalyzer(&typePass{rule: rule, c: typecheck.New(rule, logger)})
	}
	return e
}

// RegisterAnalyzer adds an analyzer to the engine. Passes run in
// registration order.
func (e *Engine) RegisterAnalyzer(a Analyzer) {
	e.analyzers = append(e.analyzers, a)
}

// Options returns the engine's configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze reads r fully and analyzes it as path.
func (e *Engine) Analyze(ctx context.Context, path string, r io.Reader) (*types.Report, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.AnalyzeSource(ctx, path, content)
}

// AnalyzeSource runs every pass over one file under the per-file deadline.
// It returns a *types.ParseError for malformed input and a
// *types.TimeoutError when the deadline fires; in both cases there is no
// report.
func (e *Engine) AnalyzeSource(ctx context.Context, path string, src []byte) (*types.Report, error) {
	if e.opts.Timeout <= 0 {
		return e.analyze(ctx, path, src)
	}

	fileCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	type outcome struct {
		report *types.Report
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analyze %s: panic: %v", path, r)}
			}
		}()
		report, err := e.analyze(fileCtx, path, src)
		done <- outcome{report: report, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, e.timeout(path)
		}
		return o.report, o.err
	case <-fileCtx.Done():
		// A pass that finished at the deadline still counts.
		select {
		case o := <-done:
			if o.err == nil {
				return o.report, nil
			}
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, e.timeout(path)
	}
}

func (e *Engine) timeout(path string) error {
	e.logger.Warn("analysis timed out",
		zap.String("file", path),
		zap.Duration("budget", e.opts.Timeout),
	)
	return &types.TimeoutError{Path: path, Budget: e.opts.Timeout}
}

func (e *Engine) analyze(ctx context.Context, path string, src []byte) (*types.Report, error) {
	tree, err := parser.Parse(ctx, path, src)
	if err != nil {
		var perr *types.ParseError
		if errors.As(err, &perr) {
			e.logger.Warn("parse failed",
				zap.String("file", path),
				zap.Int("line", perr.Line),
				zap.String("reason", perr.Reason),
			)
		}
		return nil, err
	}

	passes := make([][]types.Finding, 0, len(e.analyzers))
	var ruleErrors []types.RuleEvaluationError

	for _, a := range e.analyzers {
		findings, failures, err := runPass(ctx, a, tree)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Record the broken pass but continue with the others.
			e.logger.Warn("analyzer failed",
				zap.String("analyzer", a.Name()),
				zap.String("file", path),
				zap.Error(err),
			)
			ruleErrors = append(ruleErrors, types.RuleEvaluationError{
				RuleID: a.Name(),
				Path:   path,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}
		passes = append(passes, findings)
		ruleErrors = append(ruleErrors, failures...)
	}

	suppressions := aggregate.InlineSuppressions(tree)
	suppressions = append(suppressions, e.opts.Suppressions...)

	report := aggregate.Aggregate(aggregate.Input{
		Path:         path,
		Lines:        tree.LineCount(),
		Passes:       passes,
		Suppressions: suppressions,
		RuleErrors:   ruleErrors,
	})

	e.logger.Debug("file analyzed",
		zap.String("file", path),
		zap.Int("lines", report.Lines),
		zap.Int("findings", len(report.Findings)),
		zap.Int("suppressed", report.Suppressed),
	)
	return report, nil
}

// runPass calls a.Analyze, turning a panic into an error.
func runPass(ctx context.Context, a Analyzer, tree *syntax.Tree) (findings []types.Finding, failures []types.RuleEvaluationError, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings, failures = nil, nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Analyze(ctx, tree)
}

// matchPass adapts the rule matcher.
type matchPass struct {
	m *matcher.Matcher
}

func (p *matchPass) Name() string { return "matcher" }

func (p *matchPass) Analyze(ctx context.Context, tree *syntax.Tree) ([]types.Finding, []types.RuleEvaluationError, error) {
	res, err := p.m.Match(ctx, tree)
	if err != nil {
		return nil, nil, err
	}
	return res.Findings, res.Errors, nil
}

// typePass adapts the return type checker. Its failures are attributed to
// the return-type-mismatch rule.
type typePass struct {
	rule *rules.Rule
	c    *typecheck.Checker
}

func (p *typePass) Name() string { return p.rule.ID }

func (p *typePass) Analyze(ctx context.Context, tree *syntax.Tree) ([]types.Finding, []types.RuleEvaluationError, error) {
	findings, err := p.c.Check(ctx, tree)
	if err != nil {
		return nil, nil, err
	}
	return findings, nil, nil
}
