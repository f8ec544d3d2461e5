// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package output

import (
	"encoding/json"
	"io"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/types"
)

// JSONFormatter formats run summaries as JSON.
type JSONFormatter struct {
	Indent bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{Indent: true}
}

type jsonDocument struct {
	ToolVersion string      `json:"tool_version"`
	Summary     jsonSummary `json:"summary"`
	Files       []jsonFile  `json:"files"`
}

type jsonSummary struct {
	Files       int          `json:"files"`
	Analyzed    int          `json:"analyzed"`
	ParseErrors int          `json:"parse_errors"`
	Timeouts    int          `json:"timeouts"`
	Errors      int          `json:"errors"`
	Lines       int          `json:"lines"`
	Findings    int          `json:"findings"`
	Severity    types.Counts `json:"severity_counts"`
	Confidence  types.Counts `json:"confidence_counts"`
	Suppressed  int          `json:"suppressed"`
	RuleErrors  int          `json:"rule_errors"`
}

type jsonFile struct {
	Path   string        `json:"path"`
	Status string        `json:"status"`
	Error  string        `json:"error,omitempty"`
	Report *types.Report `json:"report,omitempty"`
}

// Format writes a JSON document. Timing is left out so identical runs
// produce identical bytes.
func (f *JSONFormatter) Format(w io.Writer, summary *analyzer.RunSummary) error {
	doc := jsonDocument{
		ToolVersion: summary.ToolVersion,
		Summary: jsonSummary{
			Files:       summary.Files,
			Analyzed:    summary.Analyzed,
			ParseErrors: summary.ParseErrors,
			Timeouts:    summary.Timeouts,
			Errors:      summary.Errors,
			Lines:       summary.Lines,
			Findings:    summary.Findings,
			Severity:    summary.Severity,
			Confidence:  summary.Confidence,
			Suppressed:  summary.Suppressed,
			RuleErrors:  summary.RuleErrors,
		},
		Files: make([]jsonFile, 0, len(summary.Results)),
	}

	for _, r := range summary.Results {
		file := jsonFile{Path: r.Path, Status: string(r.Status), Report: r.Report}
		if r.Err != nil {
			file.Error = r.Err.Error()
		}
		doc.Files = append(doc.Files, file)
	}

	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(doc)
}
