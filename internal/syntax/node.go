// Package syntax defines the positioned syntax tree codesentry rules run over.
//
// Trees are produced by the parser package and are read-only afterwards.
// Every node carries a normalized Kind used for rule dispatch, the grammar
// type it came from, its source text and its span.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package syntax

// Kind is the normalized node category rules dispatch on.
type Kind uint8

const (
	KindOther Kind = iota
	KindModule
	KindImport
	KindImportFrom
	KindAssignment
	KindAugmentedAssignment
	KindCall
	KindArgumentList
	KindKeywordArgument
	KindAttribute
	KindIdentifier
	KindString
	KindConcatenatedString
	KindInteger
	KindFloat
	KindBool
	KindNone
	KindFunctionDef
	KindClassDef
	KindLambda
	KindReturn
	KindTry
	KindExceptClause
	KindComment
)

var kindNames = [...]string{
	KindOther:               "Other",
	KindModule:              "Module",
	KindImport:              "Import",
	KindImportFrom:          "ImportFrom",
	KindAssignment:          "Assignment",
	KindAugmentedAssignment: "AugmentedAssignment",
	KindCall:                "Call",
	KindArgumentList:        "ArgumentList",
	KindKeywordArgument:     "KeywordArgument",
	KindAttribute:           "Attribute",
	KindIdentifier:          "Identifier",
	KindString:              "String",
	KindConcatenatedString:  "ConcatenatedString",
	KindInteger:             "Integer",
	KindFloat:               "Float",
	KindBool:                "Bool",
	KindNone:                "None",
	KindFunctionDef:         "FunctionDef",
	KindClassDef:            "ClassDef",
	KindLambda:              "Lambda",
	KindReturn:              "Return",
	KindTry:                 "Try",
	KindExceptClause:        "ExceptClause",
	KindComment:             "Comment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Other"
}

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Span is the source range a node covers. End is exclusive.
type Span struct {
	Start Position
	End   Position
}

// Node is a single syntax tree node.
type Node struct {
	kind     Kind
	typ      string
	text     string
	span     Span
	children []*Node
	fields   map[string]*Node
}

// NewNode builds a node. Children are the node's named children in source
// order; fields maps grammar field names to nodes, which may or may not be
// among the children.
func NewNode(kind Kind, typ, text string, span Span, children []*Node, fields map[string]*Node) *Node {
	return &Node{
		kind:     kind,
		typ:      typ,
		text:     text,
		span:     span,
		children: children,
		fields:   fields,
	}
}

// Kind returns the normalized kind.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the grammar node type (e.g., "list_comprehension").
func (n *Node) Type() string { return n.typ }

// Text returns the exact source text of the node.
func (n *Node) Text() string { return n.text }

// Span returns the node's source range.
func (n *Node) Span() Span { return n.span }

// Start returns where the node begins.
func (n *Node) Start() Position { return n.span.Start }

// Children returns the named children in source order.
func (n *Node) Children() []*Node { return n.children }

// Child returns the i-th named child, or nil.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Field returns the child stored under a grammar field name, or nil.
func (n *Node) Field(name string) *Node {
	if n == nil || n.fields == nil {
		return nil
	}
	return n.fields[name]
}

// Walk visits n and its descendants depth-first in source order.
// If fn returns false the node's children are skipped.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, fn)
	}
}
