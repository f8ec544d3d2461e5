// Package parser turns Python source into codesentry syntax trees using
// tree-sitter, and splits shell command strings using mvdan/sh.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package parser

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

// Parsers hold C state and are not safe for concurrent use, so each
// goroutine takes its own from the pool.
var parserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(python.GetLanguage())
		return p
	},
}

func getParser() *sitter.Parser {
	return parserPool.Get().(*sitter.Parser)
}

func putParser(p *sitter.Parser) {
	p.Reset()
	parserPool.Put(p)
}

// Parse parses Python source into a syntax tree.
//
// A syntactically invalid file yields a *types.ParseError located at the
// first error node. A cancelled context yields the context's error.
func Parse(ctx context.Context, path string, src []byte) (*syntax.Tree, error) {
	if len(src) == 0 {
		root := syntax.NewNode(syntax.KindModule, "module", "", syntax.Span{
			Start: syntax.Position{Line: 1, Column: 1},
			End:   syntax.Position{Line: 1, Column: 1},
		}, nil, nil)
		return syntax.NewTree(path, src, root), nil
	}

	p := getParser()
	defer putParser(p)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.ParseError{Path: path, Line: 1, Column: 1, Reason: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := firstError(root, src)
		perr.Path = path
		return nil, perr
	}

	c := converter{text: string(src)}
	return syntax.NewTree(path, src, c.convert(root)), nil
}

// firstError finds the earliest ERROR or MISSING node.
func firstError(n *sitter.Node, src []byte) *types.ParseError {
	if n.IsMissing() {
		return &types.ParseError{
			Line:   pointLine(n.StartPoint()),
			Column: pointCol(n.StartPoint()),
			Reason: fmt.Sprintf("missing %q", n.Type()),
		}
	}
	if n.Type() == "ERROR" {
		return &types.ParseError{
			Line:   pointLine(n.StartPoint()),
			Column: pointCol(n.StartPoint()),
			Reason: fmt.Sprintf("unexpected %q", excerpt(n.Content(src))),
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if perr := firstError(child, src); perr != nil {
			return perr
		}
	}
	// HasError was set but no error node was found below; report the node itself.
	return &types.ParseError{
		Line:   pointLine(n.StartPoint()),
		Column: pointCol(n.StartPoint()),
		Reason: "invalid syntax",
	}
}

func excerpt(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

func uint32ToInt(u uint32) int {
	if uint64(u) > uint64(math.MaxInt) {
		return math.MaxInt
	}
	return int(u)
}

func pointLine(p sitter.Point) int {
	return uint32ToInt(p.Row) + 1
}

func pointCol(p sitter.Point) int {
	return uint32ToInt(p.Column) + 1
}

type converter struct {
	text string
}

type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

func (c *converter) convert(n *sitter.Node) *syntax.Node {
	var children []*syntax.Node
	var index map[nodeKey]*syntax.Node

	names := fieldNames[n.Type()]
	if len(names) > 0 {
		index = make(map[nodeKey]*syntax.Node)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		cn := c.convert(child)
		children = append(children, cn)
		if index != nil {
			index[keyOf(child)] = cn
		}
	}

	var fields map[string]*syntax.Node
	for _, name := range names {
		f := n.ChildByFieldName(name)
		if f == nil {
			continue
		}
		cn, ok := index[keyOf(f)]
		if !ok {
			// Anonymous field children such as operators.
			cn = c.convert(f)
		}
		if fields == nil {
			fields = make(map[string]*syntax.Node, len(names))
		}
		fields[name] = cn
	}

	span := syntax.Span{
		Start: syntax.Position{Line: pointLine(n.StartPoint()), Column: pointCol(n.StartPoint())},
		End:   syntax.Position{Line: pointLine(n.EndPoint()), Column: pointCol(n.EndPoint())},
	}
	return syntax.NewNode(kindOf(n.Type()), n.Type(), c.slice(n), span, children, fields)
}

func (c *converter) slice(n *sitter.Node) string {
	start, end := int(n.StartByte()), int(n.EndByte())
	if start < 0 || end > len(c.text) || start > end {
		return ""
	}
	return c.text[start:end]
}

var kinds = map[string]syntax.Kind{
	"module":                syntax.KindModule,
	"import_statement":      syntax.KindImport,
	"import_from_statement": syntax.KindImportFrom,
	"assignment":            syntax.KindAssignment,
	"augmented_assignment":  syntax.KindAugmentedAssignment,
	"call":                  syntax.KindCall,
	"argument_list":         syntax.KindArgumentList,
	"keyword_argument":      syntax.KindKeywordArgument,
	"attribute":             syntax.KindAttribute,
	"identifier":            syntax.KindIdentifier,
	"string":                syntax.KindString,
	"concatenated_string":   syntax.KindConcatenatedString,
	"integer":               syntax.KindInteger,
	"float":                 syntax.KindFloat,
	"true":                  syntax.KindBool,
	"false":                 syntax.KindBool,
	"none":                  syntax.KindNone,
	"function_definition":   syntax.KindFunctionDef,
	"class_definition":      syntax.KindClassDef,
	"lambda":                syntax.KindLambda,
	"return_statement":      syntax.KindReturn,
	"try_statement":         syntax.KindTry,
	"except_clause":         syntax.KindExceptClause,
	"except_group_clause":   syntax.KindExceptClause,
	"comment":               syntax.KindComment,
}

func kindOf(typ string) syntax.Kind {
	if k, ok := kinds[typ]; ok {
		return k
	}
	return syntax.KindOther
}

// fieldNames lists the grammar fields kept on converted nodes.
var fieldNames = map[string][]string{
	"import_from_statement":   {"module_name"},
	"aliased_import":          {"name", "alias"},
	"assignment":              {"left", "right", "type"},
	"augmented_assignment":    {"left", "operator", "right"},
	"call":                    {"function", "arguments"},
	"attribute":               {"object", "attribute"},
	"keyword_argument":        {"name", "value"},
	"function_definition":     {"name", "parameters", "return_type", "body"},
	"class_definition":        {"name", "superclasses", "body"},
	"binary_operator":         {"left", "operator", "right"},
	"default_parameter":       {"name", "value"},
	"typed_parameter":         {"type"},
	"typed_default_parameter": {"name", "type", "value"},
	"for_statement":           {"left", "right", "body"},
	"for_in_clause":           {"left", "right"},
	"as_pattern":              {"alias"},
	"named_expression":        {"name", "value"},
	"lambda":                  {"parameters", "body"},
	"subscript":               {"value"},
	"decorated_definition":    {"definition"},
}
