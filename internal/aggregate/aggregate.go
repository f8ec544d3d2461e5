// Package aggregate merges per-pass findings into a single file report:
// duplicates are dropped, suppressed findings are counted and removed, and
// the rest is sorted and counted.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package aggregate

import (
	"sort"

	"github.com/3leaps/codesentry/internal/types"
)

// Input is everything the aggregator needs for one file.
type Input struct {
	Path  string
	Lines int

	// Passes holds each pass's findings, in pass order.
	Passes [][]types.Finding

	Suppressions []types.Suppression
	RuleErrors   []types.RuleEvaluationError
}

// Aggregate builds the report for one file. The same input always yields
// the same report.
func Aggregate(in Input) *types.Report {
	report := &types.Report{
		Path:       in.Path,
		Lines:      in.Lines,
		Findings:   []types.Finding{},
		RuleErrors: in.RuleErrors,
	}

	seen := make(map[string]bool)
	for _, pass := range in.Passes {
		for _, f := range pass {
			key := f.Key()
			if seen[key] {
				continue
			}
			seen[key] = true

			if suppressed(f, in.Suppressions) {
				report.Suppressed++
				continue
			}
			report.Findings = append(report.Findings, f)
		}
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})

	for _, f := range report.Findings {
		report.Severity.Add(string(f.Severity))
		report.Confidence.Add(string(f.Confidence))
	}
	return report
}

func suppressed(f types.Finding, directives []types.Suppression) bool {
	for _, s := range directives {
		if s.Matches(f) {
			return true
		}
	}
	return false
}
