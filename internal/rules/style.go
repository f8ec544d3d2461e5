// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"fmt"
	"strings"

	"github.com/3leaps/codesentry/internal/scope"
	"github.com/3leaps/codesentry/internal/syntax"
)

func checkMultipleImports(_ *Context, n *syntax.Node) ([]Hit, error) {
	var names []string
	for _, c := range n.Children() {
		switch c.Type() {
		case "dotted_name":
			names = append(names, syntax.DottedName(c))
		case "aliased_import":
			names = append(names, syntax.DottedName(c.Field("name")))
		}
	}
	if len(names) < 2 {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Multiple imports on one line (%s)", strings.Join(names, ", ")),
	}}, nil
}

func checkUnusedBinding(c *Context, n *syntax.Node) ([]Hit, error) {
	if c.Scopes == nil {
		return nil, fmt.Errorf("scope table not built")
	}
	s := c.Scopes.Lookup(n)
	if s == nil {
		return nil, nil
	}

	var hits []Hit
	for _, b := range s.Unused() {
		var msg string
		switch b.Kind {
		case scope.BindingImport:
			msg = fmt.Sprintf("'%s' imported but unused", importDisplay(b))
		default:
			msg = fmt.Sprintf("Local variable '%s' is assigned to but never used", b.Name)
		}
		hits = append(hits, Hit{Node: b.Node, Message: msg})
	}
	return hits, nil
}

func importDisplay(b *scope.Binding) string {
	switch {
	case b.Node.Type() == "dotted_name" && strings.HasSuffix(b.Qualified, "."+b.Name):
		return b.Qualified
	case b.Node.Type() == "dotted_name":
		return syntax.DottedName(b.Node)
	case b.Qualified != "" && b.Qualified != b.Name:
		return b.Qualified + " as " + b.Name
	}
	return b.Name
}
