// Package typecheck compares the declared return type of each function with
// the types of its return expressions, where both are known without
// inter-procedural inference.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package typecheck

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/scope"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// Checker reports return-type-mismatch findings.
type Checker struct {
	rule   *rules.Rule
	logger *zap.Logger
}

// New creates a checker emitting findings for rule.
func New(rule *rules.Rule, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{rule: rule, logger: logger.Named("typecheck")}
}

// builtin types a declaration or literal can resolve to.
var concrete = map[string]bool{
	"int": true, "float": true, "complex": true, "str": true, "bytes": true,
	"bool": true, "None": true, "list": true, "dict": true, "set": true,
	"tuple": true, "frozenset": true, "bytearray": true,
}

// Generic aliases from typing that name a concrete builtin.
var typingAliases = map[string]string{
	"List": "list", "Dict": "dict", "Set": "set", "Tuple": "tuple",
	"FrozenSet": "frozenset", "Text": "str",
}

// Builtin constructors and their result types.
var builtinCalls = map[string]string{
	"str": "str", "int": "int", "float": "float", "bool": "bool", "bytes": "bytes",
	"list": "list", "dict": "dict", "set": "set", "tuple": "tuple",
	"frozenset": "frozenset", "bytearray": "bytearray", "complex": "complex",
	"len": "int", "repr": "str", "ord": "int", "chr": "str", "hex": "str",
}

// module is what the checker knows about the file's top level.
type module struct {
	returns map[string]string
	classes map[string]bool
	bases   map[string]bool
	top     *scope.Scope
}

// Check inspects every annotated function in the tree.
func (c *Checker) Check(ctx context.Context, tree *syntax.Tree) ([]types.Finding, error) {
	tbl := scope.Build(tree)
	mod := collect(tree.Root())
	mod.top = tbl.Module()

	var findings []types.Finding
	var walkErr error
	syntax.Walk(tree.Root(), func(n *syntax.Node) bool {
		if walkErr != nil {
			return false
		}
		if n.Kind() != syntax.KindFunctionDef {
			return true
		}
		if err := ctx.Err(); err != nil {
			walkErr = err
			return false
		}
		findings = append(findings, c.checkFunction(tree, mod, tbl.Lookup(n), n)...)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return findings, nil
}

func (c *Checker) checkFunction(tree *syntax.Tree, mod *module, fs *scope.Scope, fn *syntax.Node) []types.Finding {
	declared := mod.normalize(fn.Field("return_type"))
	if declared == "" {
		return nil
	}
	body := fn.Field("body")
	if body == nil {
		return nil
	}

	returns, generator := collectReturns(body)
	if generator {
		return nil
	}

	var out []types.Finding
	for _, ret := range returns {
		value := ret.Child(0)
		if value == nil {
			continue
		}
		got := mod.infer(value, fs)
		if got == "" || mod.compatible(got, declared) {
			continue
		}
		out = append(out, c.rule.Finding(tree, rules.Hit{
			Node:    ret,
			Message: fmt.Sprintf("Incompatible return value type (got %q, expected %q)", got, declared),
		}))
		c.logger.Debug("return type mismatch",
			zap.String("file", tree.Path()),
			zap.Int("line", ret.Start().Line),
			zap.String("got", got),
			zap.String("expected", declared),
		)
	}
	return out
}

// collect records module-level functions with concrete return types and
// module-level classes.
func collect(root *syntax.Node) *module {
	mod := &module{
		returns: make(map[string]string),
		classes: make(map[string]bool),
		bases:   make(map[string]bool),
	}

	var defs []*syntax.Node
	for _, n := range root.Children() {
		if n.Type() == "decorated_definition" {
			if d := n.Field("definition"); d != nil {
				n = d
			}
		}
		switch n.Kind() {
		case syntax.KindClassDef:
			if name := n.Field("name"); name != nil {
				mod.classes[name.Text()] = true
				if sc := n.Field("superclasses"); sc != nil && len(sc.Children()) > 0 {
					mod.bases[name.Text()] = true
				}
			}
		case syntax.KindFunctionDef:
			defs = append(defs, n)
		}
	}

	// Classes first so annotations can name them.
	for _, fn := range defs {
		name := fn.Field("name")
		if name == nil {
			continue
		}
		if t := mod.normalize(fn.Field("return_type")); t != "" {
			mod.returns[name.Text()] = t
		} else {
			// Known to exist, type unknown.
			mod.returns[name.Text()] = ""
		}
	}
	return mod
}

// collectReturns gathers return statements that belong to the function
// itself and reports whether the function is a generator.
func collectReturns(body *syntax.Node) ([]*syntax.Node, bool) {
	var returns []*syntax.Node
	generator := false
	syntax.Walk(body, func(n *syntax.Node) bool {
		switch n.Kind() {
		case syntax.KindFunctionDef, syntax.KindClassDef, syntax.KindLambda:
			return false
		case syntax.KindReturn:
			returns = append(returns, n)
		}
		if n.Type() == "yield" {
			generator = true
		}
		return true
	})
	return returns, generator
}

// normalize resolves an annotation to a concrete type name, or "" when the
// annotation is absent or not provably concrete.
func (m *module) normalize(ann *syntax.Node) string {
	if ann == nil {
		return ""
	}
	text := strings.Join(strings.Fields(ann.Text()), "")
	text = strings.Trim(text, `"'`)
	text = strings.TrimPrefix(text, "typing.")
	if text == "" || strings.Contains(text, "|") {
		return ""
	}

	if i := strings.IndexByte(text, '['); i >= 0 {
		text = text[:i]
	}
	if alias, ok := typingAliases[text]; ok {
		return alias
	}
	if concrete[text] || m.classes[text] {
		return text
	}
	return ""
}

// infer returns the static type of an expression evaluated in fs, or ""
// when unknown.
func (m *module) infer(n *syntax.Node, fs *scope.Scope) string {
	n = syntax.Unwrap(n)
	if n == nil {
		return ""
	}

	switch n.Kind() {
	case syntax.KindString:
		if syntax.IsBytes(n) {
			return "bytes"
		}
		return "str"
	case syntax.KindConcatenatedString:
		if first := n.Child(0); first != nil && syntax.IsBytes(first) {
			return "bytes"
		}
		return "str"
	case syntax.KindInteger:
		if strings.HasSuffix(strings.ToLower(n.Text()), "j") {
			return "complex"
		}
		return "int"
	case syntax.KindFloat:
		if strings.HasSuffix(strings.ToLower(n.Text()), "j") {
			return "complex"
		}
		return "float"
	case syntax.KindBool:
		return "bool"
	case syntax.KindNone:
		return "None"
	case syntax.KindCall:
		return m.inferCall(n, fs)
	}

	switch n.Type() {
	case "list", "list_comprehension":
		return "list"
	case "dictionary", "dictionary_comprehension":
		return "dict"
	case "set", "set_comprehension":
		return "set"
	case "tuple", "expression_list":
		return "tuple"
	}
	return ""
}

func (m *module) inferCall(n *syntax.Node, fs *scope.Scope) string {
	fn := syntax.Unwrap(n.Field("function"))
	if fn == nil || fn.Kind() != syntax.KindIdentifier {
		return ""
	}
	name := fn.Text()
	if boundInFunction(fs, name) {
		return ""
	}
	if t, ok := m.returns[name]; ok {
		return t
	}
	if m.classes[name] {
		return name
	}
	// An import or assignment at module level replaces the builtin.
	if m.top != nil && m.top.IsLocal(name) {
		return ""
	}
	return builtinCalls[name]
}

// boundInFunction reports whether fs or an enclosing function scope binds
// name as a parameter, local def, assignment target or import.
func boundInFunction(fs *scope.Scope, name string) bool {
	for cur := fs; cur != nil && cur.Kind == scope.KindFunction; cur = cur.Parent {
		if cur.IsLocal(name) {
			return true
		}
	}
	return false
}

// compatible reports whether a value of type got may be returned where
// want is declared.
func (m *module) compatible(got, want string) bool {
	if got == want {
		return true
	}
	switch want {
	case "float":
		return got == "int" || got == "bool"
	case "complex":
		return got == "int" || got == "float" || got == "bool"
	case "int":
		return got == "bool"
	}
	// A subclass could satisfy the declaration; without a hierarchy the
	// mismatch is not provable.
	if m.classes[got] && m.bases[got] {
		return true
	}
	return false
}
