// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/3leaps/codesentry/internal/parser"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

func parse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := parser.Parse(context.Background(), "m.py", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tree
}

func every(id string, kind syntax.Kind) *rules.Rule {
	return &rules.Rule{
		ID:         id,
		Category:   types.CategoryStyle,
		Severity:   types.SeverityLow,
		Confidence: types.ConfidenceHigh,
		Kinds:      []syntax.Kind{kind},
		Check: func(_ *rules.Context, n *syntax.Node) ([]rules.Hit, error) {
			return []rules.Hit{{Node: n, Message: n.Text()}}, nil
		},
	}
}

func registry(t *testing.T, rs ...*rules.Rule) *rules.Registry {
	t.Helper()
	reg := rules.NewRegistry()
	for _, r := range rs {
		if err := reg.Register(r); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestMatchOrder(t *testing.T) {
	reg := registry(t,
		every("calls", syntax.KindCall),
		every("idents", syntax.KindIdentifier),
		every("calls-again", syntax.KindCall),
	)
	tree := parse(t, "f(a)\ng(b)\n")

	res, err := New(reg, nil, rules.DefaultHeuristics(), nil).Match(context.Background(), tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, f := range res.Findings {
		got = append(got, f.RuleID+":"+f.Message)
	}
	want := []string{
		"calls:f(a)", "calls-again:f(a)", "idents:f", "idents:a",
		"calls:g(b)", "calls-again:g(b)", "idents:g", "idents:b",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected pre-order with registration tie-break:\n%v\ngot:\n%v", want, got)
	}
}

func TestMatchDeterministic(t *testing.T) {
	src := "import os, sys\npassword = \"x\"\nos.system(\"ls\")\n"
	tree := parse(t, src)
	m := New(rules.Builtin(), nil, rules.DefaultHeuristics(), nil)

	first, err := m.Match(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := m.Match(context.Background(), tree)
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(again.Findings) != fmt.Sprint(first.Findings) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestMatchIsolatesFailures(t *testing.T) {
	failing := every("failing", syntax.KindCall)
	failing.Check = func(_ *rules.Context, n *syntax.Node) ([]rules.Hit, error) {
		if n.Start().Line == 1 {
			panic("index out of range")
		}
		return nil, errors.New("unsupported call")
	}
	reg := registry(t, failing, every("calls", syntax.KindCall))
	tree := parse(t, "f()\ng()\n")

	res, err := New(reg, nil, rules.DefaultHeuristics(), nil).Match(context.Background(), tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Findings) != 2 {
		t.Errorf("expected the healthy rule to report both calls, got %d", len(res.Findings))
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(res.Errors))
	}
	if res.Errors[0].Line != 1 || !strings.Contains(res.Errors[0].Reason, "panic") {
		t.Errorf("unexpected first error %+v", res.Errors[0])
	}
	if res.Errors[1].Line != 2 || res.Errors[1].RuleID != "failing" || res.Errors[1].Path != "m.py" {
		t.Errorf("unexpected second error %+v", res.Errors[1])
	}
}

func TestMatchSelection(t *testing.T) {
	reg := registry(t, every("calls", syntax.KindCall), every("idents", syntax.KindIdentifier))
	sel, err := reg.Select(rules.SelectOptions{Deny: []string{"idents"}})
	if err != nil {
		t.Fatal(err)
	}

	res, err := New(reg, sel, rules.DefaultHeuristics(), nil).Match(context.Background(), parse(t, "f(a)\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Findings) != 1 || res.Findings[0].RuleID != "calls" {
		t.Errorf("expected only the call rule, got %+v", res.Findings)
	}
}

func TestMatchCancelled(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "x%d = f(%d)\n", i, i)
	}
	tree := parse(t, b.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(rules.Builtin(), nil, rules.DefaultHeuristics(), nil).Match(ctx, tree)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
