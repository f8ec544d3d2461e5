// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package scope

import (
	"regexp"
	"strings"

	"github.com/3leaps/codesentry/internal/syntax"
)

// Build walks a tree twice: once to record what each scope binds, once to
// resolve every read to the innermost scope that binds the name.
func Build(tree *syntax.Tree) *Table {
	root := tree.Root()
	mod := newScope(KindModule, root, nil)
	t := &Table{
		module:  mod,
		byOwner: make(map[*syntax.Node]*Scope),
	}
	t.add(mod)

	b := &builder{table: t}
	b.declareChildren(root, mod, false)
	b.resolve(root, mod)

	for _, name := range b.exports {
		read(name, mod)
	}
	return t
}

func (t *Table) add(s *Scope) {
	t.scopes = append(t.scopes, s)
	t.byOwner[s.Owner] = s
}

type builder struct {
	table   *Table
	exports []string
}

// tracked reports whether a name is subject to unused-binding reporting.
func tracked(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}

func (b *builder) bindImport(s *Scope, name, qualified string, node *syntax.Node) {
	s.locals[name] = true
	s.imports[name] = qualified
	if tracked(name) {
		s.bindings = append(s.bindings, &Binding{Name: name, Qualified: qualified, Kind: BindingImport, Node: node})
	}
}

func (b *builder) declareChildren(n *syntax.Node, s *Scope, inClass bool) {
	for _, c := range n.Children() {
		b.declare(c, s, inClass)
	}
}

// declare records the names a node binds. Names bound directly in a class
// body belong to the class and are not recorded.
func (b *builder) declare(n *syntax.Node, s *Scope, inClass bool) {
	switch n.Type() {
	case "function_definition":
		if name := n.Field("name"); name != nil && !inClass {
			s.locals[name.Text()] = true
		}
		fs := newScope(KindFunction, n, s)
		b.table.add(fs)
		for _, p := range parameterNames(n.Field("parameters")) {
			fs.locals[p] = true
		}
		if body := n.Field("body"); body != nil {
			b.declareChildren(body, fs, false)
		}
		b.dropGlobals(fs)
		return

	case "class_definition":
		if name := n.Field("name"); name != nil && !inClass {
			s.locals[name.Text()] = true
		}
		if body := n.Field("body"); body != nil {
			b.declareChildren(body, s, true)
		}
		return

	case "lambda", "future_import_statement":
		return

	case "import_statement":
		if inClass {
			return
		}
		for _, c := range n.Children() {
			switch c.Type() {
			case "dotted_name":
				full := syntax.DottedName(c)
				head := full
				if i := strings.IndexByte(full, '.'); i >= 0 {
					head = full[:i]
				}
				b.bindImport(s, head, head, c)
			case "aliased_import":
				alias := c.Field("alias")
				if alias == nil {
					continue
				}
				b.bindImport(s, alias.Text(), syntax.DottedName(c.Field("name")), alias)
			}
		}
		return

	case "import_from_statement":
		if inClass {
			return
		}
		module := n.Field("module_name")
		prefix := ""
		if module != nil {
			prefix = strings.Join(strings.Fields(module.Text()), "") + "."
		}
		for _, c := range n.Children() {
			if c == module {
				continue
			}
			switch c.Type() {
			case "dotted_name":
				name := syntax.DottedName(c)
				b.bindImport(s, name, prefix+name, c)
			case "aliased_import":
				alias := c.Field("alias")
				if alias == nil {
					continue
				}
				b.bindImport(s, alias.Text(), prefix+syntax.DottedName(c.Field("name")), alias)
			}
		}
		return

	case "assignment":
		if inClass {
			break
		}
		left, right := n.Field("left"), n.Field("right")
		if left != nil && left.Kind() == syntax.KindIdentifier {
			name := left.Text()
			s.locals[name] = true
			if right != nil {
				s.assignments = append(s.assignments, Assignment{Name: name, Value: right, At: n.Start()})
			}
			if s.Kind == KindFunction && right != nil && tracked(name) {
				s.bindings = append(s.bindings, &Binding{Name: name, Kind: BindingVariable, Node: left})
			}
			if s.Kind == KindModule && name == "__all__" {
				b.exports = append(b.exports, exportedNames(right)...)
			}
		} else {
			b.declareTargets(left, s)
		}

	case "augmented_assignment":
		if !inClass {
			b.declareTargets(n.Field("left"), s)
		}

	case "for_statement":
		if !inClass {
			b.declareTargets(n.Field("left"), s)
		}

	case "as_pattern":
		if !inClass {
			b.declareTargets(n.Field("alias"), s)
		}

	case "named_expression":
		b.declareTargets(n.Field("name"), s)

	case "except_clause":
		if alias := legacyExceptAlias(n); alias != nil && !inClass {
			s.locals[alias.Text()] = true
		}

	case "global_statement", "nonlocal_statement":
		for _, c := range n.Children() {
			if c.Kind() == syntax.KindIdentifier {
				s.globals[c.Text()] = true
			}
		}
		return
	}

	b.declareChildren(n, s, inClass)
}

// declareTargets marks every plain name in an assignment target as local.
func (b *builder) declareTargets(n *syntax.Node, s *Scope) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		s.locals[n.Text()] = true
	case "as_pattern_target", "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"parenthesized_expression", "list_splat_pattern", "expression_list":
		for _, c := range n.Children() {
			b.declareTargets(c, s)
		}
	}
}

func (b *builder) dropGlobals(s *Scope) {
	if len(s.globals) == 0 {
		return
	}
	kept := s.bindings[:0]
	for _, bind := range s.bindings {
		if !s.globals[bind.Name] {
			kept = append(kept, bind)
		}
	}
	s.bindings = kept
}

// parameterNames lists the names a parameter list binds.
func parameterNames(params *syntax.Node) []string {
	if params == nil {
		return nil
	}
	var names []string
	for _, p := range params.Children() {
		switch p.Type() {
		case "identifier":
			names = append(names, p.Text())
		case "default_parameter", "typed_default_parameter":
			if name := p.Field("name"); name != nil {
				names = append(names, name.Text())
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			for _, c := range p.Children() {
				if c.Kind() == syntax.KindIdentifier {
					names = append(names, c.Text())
					break
				}
				if c.Type() == "list_splat_pattern" || c.Type() == "dictionary_splat_pattern" {
					if id := c.Child(0); id != nil {
						names = append(names, id.Text())
					}
					break
				}
			}
		}
	}
	return names
}

// legacyExceptAlias returns e in "except E as e" for grammars that emit
// the alias as a bare identifier child.
func legacyExceptAlias(n *syntax.Node) *syntax.Node {
	var exprs []*syntax.Node
	for _, c := range n.Children() {
		if c.Type() == "block" || c.Kind() == syntax.KindComment {
			continue
		}
		exprs = append(exprs, c)
	}
	if len(exprs) == 2 && exprs[1].Kind() == syntax.KindIdentifier {
		return exprs[1]
	}
	return nil
}

func exportedNames(value *syntax.Node) []string {
	value = syntax.Unwrap(value)
	if value == nil {
		return nil
	}
	var names []string
	for _, c := range value.Children() {
		if v, ok := syntax.StringValue(c); ok {
			names = append(names, v)
		}
	}
	return names
}

// resolve marks every read against the scope that binds it.
func (b *builder) resolve(n *syntax.Node, s *Scope) {
	switch n.Type() {
	case "identifier":
		read(n.Text(), s)
		return

	case "function_definition":
		b.resolveParameters(n.Field("parameters"), s)
		if rt := n.Field("return_type"); rt != nil {
			b.resolveAnnotation(rt, s)
		}
		inner := b.table.Lookup(n)
		if body := n.Field("body"); body != nil && inner != nil {
			b.resolve(body, inner)
		}
		return

	case "class_definition":
		if sc := n.Field("superclasses"); sc != nil {
			b.resolve(sc, s)
		}
		if body := n.Field("body"); body != nil {
			b.resolve(body, s)
		}
		return

	case "lambda":
		b.resolveParameters(n.Field("parameters"), s)
		if body := n.Field("body"); body != nil {
			b.resolve(body, s)
		}
		return

	case "import_statement", "import_from_statement", "future_import_statement",
		"global_statement", "nonlocal_statement", "dotted_name":
		return

	case "keyword_argument":
		if v := n.Field("value"); v != nil {
			b.resolve(v, s)
		}
		return

	case "attribute":
		if obj := n.Field("object"); obj != nil {
			b.resolve(obj, s)
		}
		return

	case "assignment":
		for _, c := range n.Children() {
			if c == n.Field("left") {
				b.resolveTarget(c, s)
			} else {
				b.resolve(c, s)
			}
		}
		return

	case "for_statement", "for_in_clause":
		for _, c := range n.Children() {
			if c == n.Field("left") {
				b.resolveTarget(c, s)
			} else {
				b.resolve(c, s)
			}
		}
		return

	case "as_pattern":
		for _, c := range n.Children() {
			if c == n.Field("alias") {
				b.resolveTarget(c, s)
			} else {
				b.resolve(c, s)
			}
		}
		return

	case "named_expression":
		if v := n.Field("value"); v != nil {
			b.resolve(v, s)
		}
		return

	case "except_clause":
		alias := legacyExceptAlias(n)
		for _, c := range n.Children() {
			if c != alias {
				b.resolve(c, s)
			}
		}
		return
	}

	for _, c := range n.Children() {
		b.resolve(c, s)
	}
}

// resolveTarget visits an assignment target. Plain names are stores; the
// objects of attribute and subscript targets are reads.
func (b *builder) resolveTarget(n *syntax.Node, s *Scope) {
	switch n.Type() {
	case "identifier":
		return
	case "as_pattern_target", "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"parenthesized_expression", "list_splat_pattern", "expression_list":
		for _, c := range n.Children() {
			b.resolveTarget(c, s)
		}
	default:
		b.resolve(n, s)
	}
}

// resolveParameters visits defaults and annotations, which are evaluated in
// the enclosing scope. Parameter names themselves are not reads.
func (b *builder) resolveParameters(params *syntax.Node, s *Scope) {
	if params == nil {
		return
	}
	for _, p := range params.Children() {
		switch p.Type() {
		case "typed_parameter":
			if ty := p.Field("type"); ty != nil {
				b.resolveAnnotation(ty, s)
			}
		case "default_parameter":
			if v := p.Field("value"); v != nil {
				b.resolve(v, s)
			}
		case "typed_default_parameter":
			if ty := p.Field("type"); ty != nil {
				b.resolveAnnotation(ty, s)
			}
			if v := p.Field("value"); v != nil {
				b.resolve(v, s)
			}
		}
	}
}

// annotationName matches a dotted name inside a string annotation.
var annotationName = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`)

// resolveAnnotation visits a parameter or return annotation. A forward
// reference such as "Bar" or List["pkg.Bar"] reads the head of every
// dotted name in the string.
func (b *builder) resolveAnnotation(n *syntax.Node, s *Scope) {
	if v, ok := syntax.StringValue(n); ok {
		for _, name := range annotationName.FindAllString(v, -1) {
			if i := strings.IndexByte(name, '.'); i >= 0 {
				name = name[:i]
			}
			read(name, s)
		}
		return
	}
	switch n.Type() {
	case "identifier":
		read(n.Text(), s)
		return
	case "attribute":
		if obj := n.Field("object"); obj != nil {
			b.resolveAnnotation(obj, s)
		}
		return
	}
	for _, c := range n.Children() {
		b.resolveAnnotation(c, s)
	}
}

func read(name string, s *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Parent != nil && !cur.IsLocal(name) {
			continue
		}
		for _, bind := range cur.bindings {
			if bind.Name == name {
				bind.Used = true
			}
		}
		return
	}
}
