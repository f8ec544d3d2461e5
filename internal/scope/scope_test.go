// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package scope

import (
	"context"
	"sort"
	"testing"

	"github.com/3leaps/codesentry/internal/parser"
	"github.com/3leaps/codesentry/internal/syntax"
)

func build(t *testing.T, src string) *Table {
	t.Helper()
	tree, err := parser.Parse(context.Background(), "test.py", []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return Build(tree)
}

func unusedNames(t *Table) []string {
	var names []string
	for _, s := range t.Scopes() {
		for _, b := range s.Unused() {
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names
}

func TestUnusedBindings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "one of six imports unused",
			src: `import os, sys, json, sqlite3, hashlib, subprocess
os.system("ls")
json.dumps({})
sqlite3.connect(":memory:")
hashlib.md5(b"")
subprocess.run(["ls"])
`,
			want: []string{"sys"},
		},
		{
			name: "aliased and from imports",
			src: `import numpy as np
from os import path, sep as separator
print(path)
`,
			want: []string{"np", "separator"},
		},
		{
			name: "dotted import binds head",
			src:  "import os.path\nos.path.join('a')\n",
			want: nil,
		},
		{
			name: "read inside function counts",
			src:  "import re\n\ndef f(s):\n    return re.match('a', s)\n",
			want: nil,
		},
		{
			name: "read before import in function body counts",
			src:  "def f():\n    return json.dumps(1)\n\nimport json\n",
			want: nil,
		},
		{
			name: "unused local variable",
			src:  "def f():\n    x = 1\n    y = 2\n    return y\n",
			want: []string{"x"},
		},
		{
			name: "module variables are not tracked",
			src:  "x = 1\n",
			want: nil,
		},
		{
			name: "parameters are not tracked",
			src:  "def f(a, b=1, *args, c: int = 2, **kw):\n    pass\n",
			want: nil,
		},
		{
			name: "underscore names skipped",
			src:  "import _thread\n\ndef f():\n    _x = 1\n",
			want: nil,
		},
		{
			name: "augmented assignment reads",
			src:  "def f():\n    n = 0\n    n += 1\n",
			want: nil,
		},
		{
			name: "closure read marks enclosing local",
			src:  "def f():\n    x = 1\n    def g():\n        return x\n    return g\n",
			want: nil,
		},
		{
			name: "shadowing local does not mark import",
			src:  "import os\n\ndef f():\n    os = 1\n    return os\n",
			want: []string{"os"},
		},
		{
			name: "global declaration",
			src:  "import os\n\ndef f():\n    global os\n    os = None\n",
			want: []string{"os"},
		},
		{
			name: "attribute name is not a read",
			src:  "import path\n\nclass A:\n    pass\nA.path\n",
			want: []string{"path"},
		},
		{
			name: "keyword name is not a read",
			src:  "import sep\nprint('a', sep='-')\n",
			want: []string{"sep"},
		},
		{
			name: "exported through __all__",
			src:  "from .impl import thing\n__all__ = ['thing']\n",
			want: nil,
		},
		{
			name: "future import ignored",
			src:  "from __future__ import annotations\n",
			want: nil,
		},
		{
			name: "star import ignored",
			src:  "from os import *\n",
			want: nil,
		},
		{
			name: "annotation is a read",
			src:  "from typing import List\n\ndef f(x: List) -> None:\n    pass\n",
			want: nil,
		},
		{
			name: "quoted parameter annotation is a read",
			src:  "from foo import Bar\n\ndef f(x: \"Bar\"):\n    pass\n",
			want: nil,
		},
		{
			name: "quoted return annotation is a read",
			src:  "from foo import Bar\n\ndef f() -> 'Bar':\n    pass\n",
			want: nil,
		},
		{
			name: "quoted name inside subscript annotation",
			src:  "import models\nfrom typing import List\n\ndef f(x: List[\"models.Bar\"] = None):\n    pass\n",
			want: nil,
		},
		{
			name: "string outside an annotation is not a read",
			src:  "from foo import Bar\nprint(\"Bar\")\n",
			want: []string{"Bar"},
		},
		{
			name: "f-string interpolation is a read",
			src:  "def f():\n    name = 'a'\n    return f'hi {name}'\n",
			want: nil,
		},
		{
			name: "class attribute is not tracked",
			src:  "class A:\n    x = 1\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unusedNames(build(t, tt.src))
			if len(got) != len(tt.want) {
				t.Fatalf("expected unused %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected unused %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestBindingPositions(t *testing.T) {
	table := build(t, "import os, sys\n")

	bindings := table.Module().Bindings()
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].Node.Start().Column != 8 || bindings[1].Node.Start().Column != 12 {
		t.Errorf("expected columns 8 and 12, got %d and %d",
			bindings[0].Node.Start().Column, bindings[1].Node.Start().Column)
	}
}

func TestQualify(t *testing.T) {
	table := build(t, `import subprocess as sp
from hashlib import md5
import os.path
`)

	tests := []struct {
		in   string
		want string
	}{
		{"sp.Popen", "subprocess.Popen"},
		{"md5", "hashlib.md5"},
		{"os.path.join", "os.path.join"},
		{"eval", "eval"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := table.Qualify(tt.in); got != tt.want {
			t.Errorf("Qualify(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestLastAssignment(t *testing.T) {
	src := `def f(user):
    sql = "SELECT 1"
    sql = f"SELECT * FROM t WHERE id = {user}"
    cursor.execute(sql)
    sql = "done"
`
	tree, err := parser.Parse(context.Background(), "t.py", []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	table := Build(tree)

	var fn *syntax.Node
	syntax.Walk(tree.Root(), func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindFunctionDef {
			fn = n
		}
		return true
	})
	s := table.Lookup(fn)
	if s == nil {
		t.Fatal("expected function scope")
	}

	a := s.LastAssignment("sql", syntax.Position{Line: 4, Column: 5})
	if a == nil {
		t.Fatal("expected an assignment")
	}
	if a.At.Line != 3 {
		t.Errorf("expected assignment on line 3, got %d", a.At.Line)
	}
	if !syntax.IsFormatted(a.Value) {
		t.Error("expected formatted string value")
	}

	if s.LastAssignment("other", syntax.Position{Line: 9, Column: 1}) != nil {
		t.Error("expected no assignment for unknown name")
	}
}
