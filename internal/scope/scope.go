// Package scope builds per-file binding tables for module and function
// scopes. The table records which imported names and local variables are
// read anywhere they are visible, and where each local name was assigned.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package scope

import (
	"github.com/3leaps/codesentry/internal/syntax"
)

// Kind distinguishes module scopes from function scopes.
type Kind int

const (
	KindModule Kind = iota
	KindFunction
)

// BindingKind says how a tracked name was introduced.
type BindingKind int

const (
	BindingImport BindingKind = iota
	BindingVariable
)

// Binding is one tracked introduction of a name.
type Binding struct {
	// Name is the bound identifier.
	Name string

	// Qualified is the imported module path for import bindings.
	Qualified string

	// Kind is import or local variable.
	Kind BindingKind

	// Node is where the name is introduced; findings are located here.
	Node *syntax.Node

	// Used is set once any read resolves to this scope for Name.
	Used bool
}

// Assignment is a name = value pair in source order.
type Assignment struct {
	Name  string
	Value *syntax.Node
	At    syntax.Position
}

// Scope is a module or function scope.
type Scope struct {
	Kind   Kind
	Owner  *syntax.Node
	Parent *Scope

	bindings    []*Binding
	locals      map[string]bool
	globals     map[string]bool
	assignments []Assignment
	imports     map[string]string
}

func newScope(kind Kind, owner *syntax.Node, parent *Scope) *Scope {
	return &Scope{
		Kind:    kind,
		Owner:   owner,
		Parent:  parent,
		locals:  make(map[string]bool),
		globals: make(map[string]bool),
		imports: make(map[string]string),
	}
}

// Bindings returns the tracked bindings in source order.
func (s *Scope) Bindings() []*Binding { return s.bindings }

// Unused returns the tracked bindings no read resolved to.
func (s *Scope) Unused() []*Binding {
	var out []*Binding
	for _, b := range s.bindings {
		if !b.Used {
			out = append(out, b)
		}
	}
	return out
}

// IsLocal reports whether name is bound anywhere in this scope.
func (s *Scope) IsLocal(name string) bool {
	return s.locals[name] && !s.globals[name]
}

// LastAssignment returns the nearest assignment to name that starts before
// pos, or nil.
func (s *Scope) LastAssignment(name string, pos syntax.Position) *Assignment {
	for i := len(s.assignments) - 1; i >= 0; i-- {
		a := &s.assignments[i]
		if a.Name == name && a.At.Before(pos) {
			return a
		}
	}
	return nil
}

// Table holds every scope of one file.
type Table struct {
	module  *Scope
	scopes  []*Scope
	byOwner map[*syntax.Node]*Scope
}

// Module returns the module scope.
func (t *Table) Module() *Scope { return t.module }

// Scopes returns every scope, module first, then functions in source order.
func (t *Table) Scopes() []*Scope { return t.scopes }

// Lookup returns the scope owned by a module or function node.
func (t *Table) Lookup(owner *syntax.Node) *Scope {
	return t.byOwner[owner]
}

// Qualify rewrites the first segment of a dotted name through the
// module's imports, so "sp.Popen" after "import subprocess as sp" becomes
// "subprocess.Popen" and "md5" after "from hashlib import md5" becomes
// "hashlib.md5".
func (t *Table) Qualify(dotted string) string {
	if dotted == "" {
		return ""
	}
	head, rest := dotted, ""
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			head, rest = dotted[:i], dotted[i:]
			break
		}
	}
	if full, ok := t.module.imports[head]; ok {
		return full + rest
	}
	return dotted
}
