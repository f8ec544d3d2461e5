// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/types"
)

const separator = "--------------------------------------------------"

// TextFormatter formats run summaries as human-readable text.
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format writes every finding with its location and source line, then the
// scan totals and the severity and confidence tables.
func (f *TextFormatter) Format(w io.Writer, summary *analyzer.RunSummary) error {
	var err error
	writef := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, args...)
	}
	writeln := func(args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintln(w, args...)
	}

	writeln("Test results:")
	findings := summary.AllFindings()
	if len(findings) == 0 {
		writeln("\tNo issues identified.")
	}

	for _, finding := range findings {
		writef(">> Issue: [%s:%s] %s\n", finding.Code, finding.RuleID, finding.Message)
		writef("   Severity: %s   Confidence: %s\n", titleCase(string(finding.Severity)), titleCase(string(finding.Confidence)))
		if finding.CWE != "" {
			writef("   CWE: %s (%s)\n", finding.CWE, cweURL(finding.CWE))
		}
		writef("   Location: %s:%d:%d\n", finding.Path, finding.Line, finding.Column)
		if finding.Snippet != "" {
			code := finding.Snippet
			if len(code) > 80 {
				code = code[:77] + "..."
			}
			writef("%d\t%s\n", finding.Line, code)
		}
		writeln(separator)
		writeln()
	}

	writeln("Code scanned:")
	writef("\tTotal lines of code: %s\n", humanize.Comma(int64(summary.Lines)))
	writef("\tTotal files analyzed: %d\n", summary.Analyzed)
	writef("\tTotal issues suppressed: %d\n", summary.Suppressed)
	writeln()

	writeln("Run metrics:")
	writeln("\tTotal issues (by severity):")
	writeCounts(writef, summary.Severity)
	writeln("\tTotal issues (by confidence):")
	writeCounts(writef, summary.Confidence)

	if skipped := summary.Unanalyzed(); skipped > 0 {
		writef("Files skipped (%d):\n", skipped)
		for _, r := range summary.Results {
			if r.Status == analyzer.StatusOK {
				continue
			}
			writef("\t%s (%s)\n", r.Path, describe(r))
		}
	}

	if summary.RuleErrors > 0 {
		writef("Rule errors (%d):\n", summary.RuleErrors)
		for _, r := range summary.Results {
			if r.Report == nil {
				continue
			}
			for _, re := range r.Report.RuleErrors {
				writef("\t%s:%d:%d %s: %s\n", re.Path, re.Line, re.Column, re.RuleID, re.Reason)
			}
		}
	}

	return err
}

func writeCounts(writef func(string, ...any), c types.Counts) {
	writef("\t\tLow: %d\n", c.Low)
	writef("\t\tMedium: %d\n", c.Medium)
	writef("\t\tHigh: %d\n", c.High)
}

func describe(r analyzer.Result) string {
	switch r.Status {
	case analyzer.StatusParseError:
		return "syntax error while parsing: " + errText(r.Err)
	case analyzer.StatusTimeout:
		return "timed out: " + errText(r.Err)
	default:
		return errText(r.Err)
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func cweURL(cwe string) string {
	id := strings.TrimPrefix(strings.ToUpper(cwe), "CWE-")
	return "https://cwe.mitre.org/data/definitions/" + id + ".html"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
