// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package aggregate

import (
	"regexp"
	"strings"

	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// SourceInline marks directives read from source comments.
const SourceInline = "inline"

var directiveRe = regexp.MustCompile(`(?i)#\s*(nosec|noqa)\b:?([^#]*)`)

// InlineSuppressions reads "# nosec" and "# noqa" comments. A bare
// directive covers every rule on its line; a list of rule ids or codes
// after it narrows the directive to those rules.
func InlineSuppressions(tree *syntax.Tree) []types.Suppression {
	var out []types.Suppression
	for _, c := range tree.Comments() {
		m := directiveRe.FindStringSubmatch(c.Text())
		if m == nil {
			continue
		}
		line := c.Start().Line

		ids := strings.FieldsFunc(m[2], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(ids) == 0 {
			out = append(out, types.Suppression{Line: line, Source: SourceInline})
			continue
		}
		for _, id := range ids {
			out = append(out, types.Suppression{Line: line, RuleID: id, Source: SourceInline})
		}
	}
	return out
}
