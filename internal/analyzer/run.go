// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/codesentry/internal/types"
)

// Status is the outcome of one file's analysis.
type Status string

const (
	StatusOK         Status = "ok"
	StatusParseError Status = "parse_error"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// Source is one input file. Err carries a read failure; such a source is
// reported without being analyzed.
type Source struct {
	Path    string
	Content []byte
	Err     error
}

// Result is the outcome for one Source. Report is nil unless Status is
// StatusOK.
type Result struct {
	Path   string
	Status Status
	Report *types.Report
	Err    error
}

// AnalyzeFiles analyzes sources on Options.Workers goroutines. Results are
// in input order. A failing file never stops the others.
func (e *Engine) AnalyzeFiles(ctx context.Context, sources []Source) []Result {
	results := make([]Result, len(sources))
	if len(sources) == 0 {
		return results
	}

	workers := e.opts.Workers
	if workers > len(sources) {
		workers = len(sources)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.analyzeOne(ctx, sources[i])
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (e *Engine) analyzeOne(ctx context.Context, src Source) Result {
	if src.Err != nil {
		return Result{Path: src.Path, Status: StatusError, Err: src.Err}
	}
	if err := ctx.Err(); err != nil {
		return Result{Path: src.Path, Status: StatusError, Err: err}
	}

	report, err := e.AnalyzeSource(ctx, src.Path, src.Content)
	if err != nil {
		return Result{Path: src.Path, Status: classify(err), Err: err}
	}
	return Result{Path: src.Path, Status: StatusOK, Report: report}
}

func classify(err error) Status {
	var perr *types.ParseError
	var terr *types.TimeoutError
	switch {
	case errors.As(err, &perr):
		return StatusParseError
	case errors.As(err, &terr):
		return StatusTimeout
	default:
		return StatusError
	}
}

// RunSummary aggregates the results of a run across files.
type RunSummary struct {
	ToolVersion string
	StartedAt   time.Time
	Duration    time.Duration

	Results []Result

	Files       int
	Analyzed    int
	ParseErrors int
	Timeouts    int
	Errors      int

	Lines      int
	Findings   int
	Severity   types.Counts
	Confidence types.Counts
	Suppressed int
	RuleErrors int
}

// Summarize totals results.
func Summarize(results []Result) *RunSummary {
	s := &RunSummary{Results: results, Files: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.Analyzed++
		case StatusParseError:
			s.ParseErrors++
		case StatusTimeout:
			s.Timeouts++
		default:
			s.Errors++
		}
		if r.Report == nil {
			continue
		}
		s.Lines += r.Report.Lines
		s.Findings += len(r.Report.Findings)
		s.Severity.Merge(r.Report.Severity)
		s.Confidence.Merge(r.Report.Confidence)
		s.Suppressed += r.Report.Suppressed
		s.RuleErrors += len(r.Report.RuleErrors)
	}
	return s
}

// Failed reports whether the findings meet the fail-on threshold.
func (s *RunSummary) Failed(failOn types.FailOn) bool {
	switch failOn {
	case types.FailOnAny:
		return s.Findings > 0
	case types.FailOnHigh:
		return s.Severity.High > 0
	default:
		return false
	}
}

// Unanalyzed is the number of files without a report.
func (s *RunSummary) Unanalyzed() int {
	return s.Files - s.Analyzed
}

// AllFindings returns every reported finding in result order.
func (s *RunSummary) AllFindings() []types.Finding {
	out := make([]types.Finding, 0, s.Findings)
	for _, r := range s.Results {
		if r.Report != nil {
			out = append(out, r.Report.Findings...)
		}
	}
	return out
}

// Log writes one line per unanalyzed file and a run total.
func (s *RunSummary) Log(logger *zap.Logger) {
	for _, r := range s.Results {
		if r.Status != StatusOK {
			logger.Warn("file not analyzed",
				zap.String("file", r.Path),
				zap.String("status", string(r.Status)),
				zap.Error(r.Err),
			)
		}
	}
	logger.Info("run complete",
		zap.Int("files", s.Files),
		zap.Int("analyzed", s.Analyzed),
		zap.Int("findings", s.Findings),
		zap.Int("suppressed", s.Suppressed),
		zap.Duration("duration", s.Duration),
	)
}
