// Package output provides formatters for codesentry run summaries.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package output

import (
	"fmt"
	"io"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/rules"
)

// Formatter formats a run summary for output.
type Formatter interface {
	Format(w io.Writer, summary *analyzer.RunSummary) error
}

// Formats lists the names accepted by New.
var Formats = []string{"text", "json", "sarif"}

// New returns the formatter for a format name. The registry supplies rule
// metadata for SARIF and may be nil.
func New(format string, registry *rules.Registry) (Formatter, error) {
	switch format {
	case "text":
		return NewTextFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "sarif":
		return NewSARIFFormatter(registry), nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}
