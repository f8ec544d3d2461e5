// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package output

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/types"
)

// SARIF output types per SARIF 2.1.0 spec
// https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	InformationURI  string      `json:"informationUri"`
	Rules           []sarifRule `json:"rules,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	ShortDescription sarifMessage      `json:"shortDescription,omitempty"`
	Help             *sarifMessage     `json:"help,omitempty"`
	DefaultConfig    sarifRuleConfig   `json:"defaultConfiguration,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	RuleIndex  int               `json:"ruleIndex"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// SARIFFormatter formats run summaries in SARIF format.
type SARIFFormatter struct {
	registry *rules.Registry
}

// NewSARIFFormatter creates a new SARIF formatter. Rule descriptions come
// from registry when it is not nil.
func NewSARIFFormatter(registry *rules.Registry) *SARIFFormatter {
	return &SARIFFormatter{registry: registry}
}

// Format writes a SARIF log with one run.
func (f *SARIFFormatter) Format(w io.Writer, summary *analyzer.RunSummary) error {
	driverRules, index := f.collectRules(summary)

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:            "codesentry",
				Version:         summary.ToolVersion,
				InformationURI:  "https://github.com/3leaps/codesentry",
				SemanticVersion: summary.ToolVersion,
				Rules:           driverRules,
			},
		},
		Results: f.convertFindings(summary, index),
	}

	if notes := notifications(summary); len(notes) > 0 {
		run.Invocations = []sarifInvocation{{
			ExecutionSuccessful:        true,
			ToolExecutionNotifications: notes,
		}}
	}

	log := sarifLog{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}

// collectRules lists the rules that produced findings, in first-seen order.
func (f *SARIFFormatter) collectRules(summary *analyzer.RunSummary) ([]sarifRule, map[string]int) {
	var out []sarifRule
	index := make(map[string]int)

	for _, finding := range summary.AllFindings() {
		if _, ok := index[finding.RuleID]; ok {
			continue
		}
		rule := sarifRule{
			ID:            finding.RuleID,
			Name:          finding.Code,
			DefaultConfig: sarifRuleConfig{Level: severityToLevel(finding.Severity)},
			Properties:    map[string]string{"category": string(finding.Category)},
		}
		if finding.CWE != "" {
			rule.Properties["cwe"] = finding.CWE
		}
		if f.registry != nil {
			if r, ok := f.registry.Get(finding.RuleID); ok {
				rule.ShortDescription = sarifMessage{Text: r.Title}
				rule.DefaultConfig.Level = severityToLevel(r.Severity)
				if r.Recommendation != "" {
					rule.Help = &sarifMessage{Text: r.Recommendation}
				}
			}
		}
		index[finding.RuleID] = len(out)
		out = append(out, rule)
	}
	return out, index
}

func (f *SARIFFormatter) convertFindings(summary *analyzer.RunSummary, index map[string]int) []sarifResult {
	findings := summary.AllFindings()
	results := make([]sarifResult, 0, len(findings))

	for _, finding := range findings {
		result := sarifResult{
			RuleID:     finding.RuleID,
			RuleIndex:  index[finding.RuleID],
			Level:      severityToLevel(finding.Severity),
			Message:    sarifMessage{Text: finding.Message},
			Properties: map[string]string{"confidence": string(finding.Confidence)},
		}

		// Add location if available
		if finding.Path != "" && finding.Line > 0 {
			result.Locations = []sarifLocation{location(finding.Path, &sarifRegion{
				StartLine:   finding.Line,
				StartColumn: finding.Column,
				EndLine:     finding.EndLine,
				EndColumn:   finding.EndColumn,
			})}
		}

		results = append(results, result)
	}

	return results
}

// notifications reports files that produced no results.
func notifications(summary *analyzer.RunSummary) []sarifNotification {
	var out []sarifNotification
	for _, r := range summary.Results {
		if r.Status == analyzer.StatusOK {
			continue
		}
		var region *sarifRegion
		var perr *types.ParseError
		if errors.As(r.Err, &perr) {
			region = &sarifRegion{StartLine: perr.Line, StartColumn: perr.Column}
		}
		out = append(out, sarifNotification{
			Level:     "error",
			Message:   sarifMessage{Text: describe(r)},
			Locations: []sarifLocation{location(r.Path, region)},
		})
	}
	return out
}

func location(uri string, region *sarifRegion) sarifLocation {
	return sarifLocation{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: uri},
			Region:           region,
		},
	}
}

func severityToLevel(s types.Severity) string {
	switch s {
	case types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	case types.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
