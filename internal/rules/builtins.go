// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// ReturnTypeMismatch is the id of the rule evaluated by the type checker.
const ReturnTypeMismatch = "return-type-mismatch"

// Builtin returns a registry holding every builtin rule.
func Builtin() *Registry {
	r := NewRegistry()

	for _, rule := range styleRules() {
		_ = r.Register(rule) // Builtin ids are unique
	}
	for _, rule := range securityRules() {
		_ = r.Register(rule)
	}
	for _, rule := range typeRules() {
		_ = r.Register(rule)
	}

	return r
}

func styleRules() []*Rule {
	return []*Rule{
		{
			ID:             "multiple-imports-one-statement",
			Code:           "CS001",
			Title:          "Multiple imports on one line",
			Category:       types.CategoryStyle,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceHigh,
			Kinds:          []syntax.Kind{syntax.KindImport},
			Message:        "Multiple imports on one line",
			Recommendation: "Put each import on its own line.",
			Check:          checkMultipleImports,
		},
		{
			ID:             "unused-binding",
			Code:           "CS002",
			Title:          "Unused import or local variable",
			Category:       types.CategoryStyle,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceMedium,
			CWE:            "CWE-563",
			Kinds:          []syntax.Kind{syntax.KindModule, syntax.KindFunctionDef},
			Message:        "Name is bound but never used",
			Recommendation: "Remove the unused name or prefix it with an underscore.",
			Check:          checkUnusedBinding,
		},
	}
}

func securityRules() []*Rule {
	return []*Rule{
		{
			ID:             "hardcoded-credential",
			Code:           "CS101",
			Title:          "Hardcoded credential",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceMedium,
			CWE:            "CWE-259",
			Kinds:          []syntax.Kind{syntax.KindAssignment},
			Message:        "Possible hardcoded credential",
			Recommendation: "Load secrets from the environment or a secret store.",
			Check:          checkHardcodedCredential,
		},
		{
			ID:             "hardcoded-credential-argument",
			Code:           "CS102",
			Title:          "Hardcoded credential argument",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceMedium,
			CWE:            "CWE-259",
			Kinds:          []syntax.Kind{syntax.KindKeywordArgument},
			Message:        "Possible hardcoded credential passed as argument",
			Recommendation: "Load secrets from the environment or a secret store.",
			Check:          checkHardcodedCredentialArgument,
		},
		{
			ID:             "dangerous-shell-invocation",
			Code:           "CS201",
			Title:          "Process started through a shell",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-78",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Starting a process with a shell",
			Recommendation: "Pass an argument list without shell=True and validate any untrusted input.",
			Check:          checkShellInvocation,
		},
		{
			ID:             "partial-executable-path",
			Code:           "CS202",
			Title:          "Partial executable path",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-78",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Starting a process with a partial executable path",
			Recommendation: "Use the absolute path of the executable.",
			Check:          checkPartialPath,
		},
		{
			ID:             "destructive-shell-command",
			Code:           "CS203",
			Title:          "Destructive shell command",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceMedium,
			CWE:            "CWE-78",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Shell command recursively or forcibly removes an absolute path",
			Recommendation: "Remove files through the standard library and confine deletions to known directories.",
			Check:          checkDestructiveCommand,
		},
		{
			ID:             "dynamic-code-evaluation",
			Code:           "CS204",
			Title:          "Dynamic code evaluation",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-95",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Use of possibly insecure function - consider using safer ast.literal_eval.",
			Recommendation: "Parse data with ast.literal_eval or a real parser instead of evaluating it.",
			Check:          checkDynamicEvaluation,
		},
		{
			ID:             "unsafe-deserialization",
			Code:           "CS205",
			Title:          "Unsafe deserialization",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-502",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Pickle and modules that wrap it can be unsafe when used to deserialize untrusted data, possible security issue.",
			Recommendation: "Deserialize untrusted data with a data-only format such as JSON.",
			Check:          checkUnsafeDeserialization,
		},
		{
			ID:             "weak-hash-algorithm",
			Code:           "CS301",
			Title:          "Weak hash algorithm",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityHigh,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-327",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Use of weak hash for security",
			Recommendation: "Use SHA-256 or stronger, or pass usedforsecurity=False for non-security uses.",
			Check:          checkWeakHash,
		},
		{
			ID:             "insecure-temp-path",
			Code:           "CS302",
			Title:          "Insecure temporary path",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceMedium,
			CWE:            "CWE-377",
			Kinds:          []syntax.Kind{syntax.KindString},
			Message:        "Probable insecure usage of temp file/directory.",
			Recommendation: "Create temporary files with the tempfile module.",
			Check:          checkTempPath,
		},
		{
			ID:             "sql-injection-heuristic",
			Code:           "CS303",
			Title:          "SQL built from strings",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityMedium,
			Confidence:     types.ConfidenceLow,
			CWE:            "CWE-89",
			Kinds:          []syntax.Kind{syntax.KindCall},
			Message:        "Possible SQL injection vector through string-based query construction.",
			Recommendation: "Use parameterized queries.",
			Check:          checkSQLInjection,
		},
		{
			ID:             "swallowed-exception",
			Code:           "CS304",
			Title:          "Swallowed exception",
			Category:       types.CategorySecurity,
			Severity:       types.SeverityLow,
			Confidence:     types.ConfidenceHigh,
			CWE:            "CWE-703",
			Kinds:          []syntax.Kind{syntax.KindExceptClause},
			Message:        "Try, Except, Pass detected.",
			Recommendation: "Handle or log the exception.",
			Check:          checkSwallowedException,
		},
	}
}

func typeRules() []*Rule {
	return []*Rule{
		{
			ID:             ReturnTypeMismatch,
			Code:           "CS401",
			Title:          "Incompatible return value type",
			Category:       types.CategoryType,
			Severity:       types.SeverityHigh,
			Confidence:     types.ConfidenceHigh,
			Message:        "Incompatible return value type",
			Recommendation: "Return a value of the declared type or fix the annotation.",
		},
	}
}
