// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package syntax

import "testing"

func leaf(kind Kind, typ, text string, line, col int) *Node {
	return NewNode(kind, typ, text, Span{
		Start: Position{Line: line, Column: col},
		End:   Position{Line: line, Column: col + len(text)},
	}, nil, nil)
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
		ok   bool
	}{
		{"double quoted", leaf(KindString, "string", `"abc"`, 1, 1), "abc", true},
		{"single quoted", leaf(KindString, "string", `'abc'`, 1, 1), "abc", true},
		{"triple quoted", leaf(KindString, "string", `"""a"b"""`, 1, 1), `a"b`, true},
		{"raw prefix", leaf(KindString, "string", `r"\d+"`, 1, 1), `\d+`, true},
		{"empty", leaf(KindString, "string", `""`, 1, 1), "", true},
		{"f-string without interpolation", leaf(KindString, "string", `f"plain"`, 1, 1), "plain", true},
		{"identifier", leaf(KindIdentifier, "identifier", "x", 1, 1), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StringValue(tt.node)
			if ok != tt.ok || got != tt.want {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestStringValueFormatted(t *testing.T) {
	interp := NewNode(KindOther, "interpolation", "{x}", Span{}, []*Node{leaf(KindIdentifier, "identifier", "x", 1, 4)}, nil)
	s := NewNode(KindString, "string", `f"a{x}"`, Span{}, []*Node{interp}, nil)

	if !IsFormatted(s) {
		t.Fatal("expected f-string with interpolation to be formatted")
	}
	if _, ok := StringValue(s); ok {
		t.Error("expected formatted string to have no static value")
	}
}

func TestStringValueConcatenated(t *testing.T) {
	c := NewNode(KindConcatenatedString, "concatenated_string", `"a" 'b'`, Span{}, []*Node{
		leaf(KindString, "string", `"a"`, 1, 1),
		leaf(KindString, "string", `'b'`, 1, 5),
	}, nil)

	got, ok := StringValue(c)
	if !ok || got != "ab" {
		t.Errorf("expected (\"ab\", true), got (%q, %v)", got, ok)
	}
}

func TestDottedName(t *testing.T) {
	inner := NewNode(KindAttribute, "attribute", "os.path", Span{}, nil, map[string]*Node{
		"object":    leaf(KindIdentifier, "identifier", "os", 1, 1),
		"attribute": leaf(KindIdentifier, "identifier", "path", 1, 4),
	})
	outer := NewNode(KindAttribute, "attribute", "os.path.join", Span{}, nil, map[string]*Node{
		"object":    inner,
		"attribute": leaf(KindIdentifier, "identifier", "join", 1, 9),
	})

	if got := DottedName(outer); got != "os.path.join" {
		t.Errorf("expected os.path.join, got %q", got)
	}

	call := NewNode(KindCall, "call", "f()", Span{}, nil, nil)
	if got := DottedName(call); got != "" {
		t.Errorf("expected empty name for call, got %q", got)
	}
}

func TestTreeLines(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"x = 1", 1},
		{"x = 1\n", 1},
		{"x = 1\ny = 2", 2},
		{"\n\n", 2},
	}

	for _, tt := range tests {
		tree := NewTree("t.py", []byte(tt.src), NewNode(KindModule, "module", tt.src, Span{}, nil, nil))
		if got := tree.LineCount(); got != tt.want {
			t.Errorf("LineCount(%q): expected %d, got %d", tt.src, tt.want, got)
		}
	}

	tree := NewTree("t.py", []byte("a\r\nb\n"), NewNode(KindModule, "module", "", Span{}, nil, nil))
	if got := tree.Line(1); got != "a" {
		t.Errorf("expected line 1 to be %q, got %q", "a", got)
	}
	if got := tree.Line(9); got != "" {
		t.Errorf("expected out-of-range line to be empty, got %q", got)
	}
}

func TestTreeComments(t *testing.T) {
	comment := leaf(KindComment, "comment", "# nosec", 1, 8)
	root := NewNode(KindModule, "module", "", Span{}, []*Node{
		leaf(KindIdentifier, "identifier", "x", 1, 1),
		comment,
	}, nil)

	tree := NewTree("t.py", []byte("x      # nosec\n"), root)
	if len(tree.Comments()) != 1 || tree.Comments()[0] != comment {
		t.Errorf("expected one collected comment, got %d", len(tree.Comments()))
	}
}

func TestWalkSkip(t *testing.T) {
	child := leaf(KindIdentifier, "identifier", "y", 1, 1)
	fn := NewNode(KindFunctionDef, "function_definition", "", Span{}, []*Node{child}, nil)
	root := NewNode(KindModule, "module", "", Span{}, []*Node{fn}, nil)

	var seen []Kind
	Walk(root, func(n *Node) bool {
		seen = append(seen, n.Kind())
		return n.Kind() != KindFunctionDef
	})

	if len(seen) != 2 {
		t.Errorf("expected 2 visited nodes, got %v", seen)
	}
}
