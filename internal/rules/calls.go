// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"github.com/3leaps/codesentry/internal/syntax"
)

// positional returns a call's positional arguments in order.
func positional(call *syntax.Node) []*syntax.Node {
	args := call.Field("arguments")
	if args == nil {
		return nil
	}
	var out []*syntax.Node
	for _, a := range args.Children() {
		switch a.Kind() {
		case syntax.KindKeywordArgument, syntax.KindComment:
			continue
		}
		switch a.Type() {
		case "list_splat", "dictionary_splat":
			continue
		}
		out = append(out, a)
	}
	return out
}

// keyword returns the value passed to a call under name, or nil.
func keyword(call *syntax.Node, name string) *syntax.Node {
	args := call.Field("arguments")
	if args == nil {
		return nil
	}
	for _, a := range args.Children() {
		if a.Kind() != syntax.KindKeywordArgument {
			continue
		}
		if k := a.Field("name"); k != nil && k.Text() == name {
			return a.Field("value")
		}
	}
	return nil
}

// argument returns the positional argument at index i, falling back to the
// keyword argument name.
func argument(call *syntax.Node, i int, name string) *syntax.Node {
	if pos := positional(call); i < len(pos) {
		return pos[i]
	}
	if name == "" {
		return nil
	}
	return keyword(call, name)
}

func isTrue(n *syntax.Node) bool {
	n = syntax.Unwrap(n)
	return n != nil && n.Kind() == syntax.KindBool && n.Text() == "True"
}

func isFalse(n *syntax.Node) bool {
	n = syntax.Unwrap(n)
	return n != nil && n.Kind() == syntax.KindBool && n.Text() == "False"
}
