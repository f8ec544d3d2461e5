// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/types"
)

func createTestSummary() *analyzer.RunSummary {
	report := &types.Report{Path: "app.py", Lines: 1200}
	finding := types.Finding{
		RuleID:     "weak-hash-algorithm",
		Code:       "CS301",
		Category:   types.CategorySecurity,
		Severity:   types.SeverityMedium,
		Confidence: types.ConfidenceHigh,
		CWE:        "CWE-327",
		Path:       "app.py",
		Line:       3,
		Column:     8,
		EndLine:    3,
		EndColumn:  25,
		Message:    "Use of weak hash algorithm md5",
		Snippet:    "digest = hashlib.md5(data)",
	}
	report.Findings = append(report.Findings, finding)
	report.Severity.Add(string(finding.Severity))
	report.Confidence.Add(string(finding.Confidence))
	report.Suppressed = 1

	summary := analyzer.Summarize([]analyzer.Result{
		{Path: "app.py", Status: analyzer.StatusOK, Report: report},
		{
			Path:   "broken.py",
			Status: analyzer.StatusParseError,
			Err:    &types.ParseError{Path: "broken.py", Line: 2, Column: 5, Reason: "invalid syntax"},
		},
	})
	summary.ToolVersion = "0.1.0"
	return summary
}

func TestNew(t *testing.T) {
	for _, name := range Formats {
		if _, err := New(name, nil); err != nil {
			t.Errorf("New(%q): unexpected error: %v", name, err)
		}
	}
	if _, err := New("xml", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter().Format(&buf, createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		ToolVersion string `json:"tool_version"`
		Summary     struct {
			Files       int `json:"files"`
			ParseErrors int `json:"parse_errors"`
			Findings    int `json:"findings"`
			Suppressed  int `json:"suppressed"`
		} `json:"summary"`
		Files []struct {
			Path   string        `json:"path"`
			Status string        `json:"status"`
			Error  string        `json:"error"`
			Report *types.Report `json:"report"`
		} `json:"files"`
	}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if parsed.ToolVersion != "0.1.0" {
		t.Errorf("expected tool_version=0.1.0, got %q", parsed.ToolVersion)
	}
	if parsed.Summary.Files != 2 || parsed.Summary.ParseErrors != 1 || parsed.Summary.Findings != 1 {
		t.Errorf("unexpected summary: %+v", parsed.Summary)
	}
	if len(parsed.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(parsed.Files))
	}
	if parsed.Files[0].Report == nil || parsed.Files[0].Report.Findings[0].RuleID != "weak-hash-algorithm" {
		t.Errorf("expected report for app.py, got %+v", parsed.Files[0])
	}
	if parsed.Files[1].Status != "parse_error" || !strings.Contains(parsed.Files[1].Error, "invalid syntax") {
		t.Errorf("expected parse error for broken.py, got %+v", parsed.Files[1])
	}
}

func TestJSONFormatter_NoIndent(t *testing.T) {
	formatter := &JSONFormatter{Indent: false}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := strings.TrimSpace(buf.String())
	if strings.Contains(output, "\n") {
		t.Error("expected single-line JSON output")
	}
}

func TestTextFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextFormatter().Format(&buf, createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	expected := []string{
		">> Issue: [CS301:weak-hash-algorithm] Use of weak hash algorithm md5",
		"Severity: Medium   Confidence: High",
		"CWE: CWE-327 (https://cwe.mitre.org/data/definitions/327.html)",
		"Location: app.py:3:8",
		"3\tdigest = hashlib.md5(data)",
		"Total lines of code: 1,200",
		"Total issues suppressed: 1",
		"Files skipped (1):",
		"broken.py (syntax error while parsing:",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\n%s", want, output)
		}
	}
}

func TestTextFormatter_NoFindings(t *testing.T) {
	summary := analyzer.Summarize([]analyzer.Result{
		{Path: "clean.py", Status: analyzer.StatusOK, Report: &types.Report{Path: "clean.py", Lines: 4}},
	})

	var buf bytes.Buffer
	if err := NewTextFormatter().Format(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "No issues identified.") {
		t.Errorf("expected no-issues line, got:\n%s", output)
	}
	if strings.Contains(output, "Files skipped") {
		t.Error("did not expect a skipped-files section")
	}
}

func TestSARIFFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewSARIFFormatter(rules.Builtin()).Format(&buf, createTestSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("output is not valid SARIF JSON: %v", err)
	}

	if log.Version != "2.1.0" {
		t.Errorf("expected version 2.1.0, got %q", log.Version)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(log.Runs))
	}

	run := log.Runs[0]
	if run.Tool.Driver.Name != "codesentry" {
		t.Errorf("expected driver codesentry, got %q", run.Tool.Driver.Name)
	}
	if len(run.Tool.Driver.Rules) != 1 || run.Tool.Driver.Rules[0].ShortDescription.Text == "" {
		t.Errorf("expected registry metadata for one rule, got %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(run.Results))
	}

	result := run.Results[0]
	if result.Level != "warning" {
		t.Errorf("expected level warning, got %q", result.Level)
	}
	if result.Properties["confidence"] != "high" {
		t.Errorf("expected confidence property high, got %q", result.Properties["confidence"])
	}
	region := result.Locations[0].PhysicalLocation.Region
	if result.Locations[0].PhysicalLocation.ArtifactLocation.URI != "app.py" || region.StartLine != 3 || region.StartColumn != 8 {
		t.Errorf("unexpected location: %+v", result.Locations[0])
	}

	if len(run.Invocations) != 1 || len(run.Invocations[0].ToolExecutionNotifications) != 1 {
		t.Fatalf("expected one notification for broken.py, got %+v", run.Invocations)
	}
	note := run.Invocations[0].ToolExecutionNotifications[0]
	if note.Locations[0].PhysicalLocation.Region == nil || note.Locations[0].PhysicalLocation.Region.StartLine != 2 {
		t.Errorf("expected parse error region at line 2, got %+v", note.Locations[0])
	}
}

func TestSeverityToLevel(t *testing.T) {
	tests := []struct {
		severity types.Severity
		expected string
	}{
		{types.SeverityHigh, "error"},
		{types.SeverityMedium, "warning"},
		{types.SeverityLow, "note"},
		{"", "none"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := severityToLevel(tt.severity); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
