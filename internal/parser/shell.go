// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package parser

import (
	"fmt"
	"math"
	"strings"

	shsyntax "mvdan.cc/sh/v3/syntax"
)

func uintToInt(u uint) int {
	if u > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(u)
}

// Command is a simple command found in a shell command string.
type Command struct {
	// Name is the command name (first word).
	Name string

	// Args are the command arguments. Expansions are rendered as "$".
	Args []string

	// Column is the column where the command starts within the string.
	Column int
}

// String returns a human-readable representation of the command.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Name, strings.Join(c.Args, " "))
}

// ParseShell splits a shell command string into the simple commands it
// runs, including those inside pipelines, lists and substitutions.
func ParseShell(cmd string) ([]*Command, error) {
	p := shsyntax.NewParser(shsyntax.Variant(shsyntax.LangBash))
	file, err := p.Parse(strings.NewReader(cmd), "")
	if err != nil {
		if perr, ok := err.(shsyntax.ParseError); ok {
			return nil, fmt.Errorf("shell parse error at column %d: %s", uintToInt(perr.Pos.Col()), perr.Text)
		}
		return nil, err
	}

	var commands []*Command
	shsyntax.Walk(file, func(node shsyntax.Node) bool {
		if call, ok := node.(*shsyntax.CallExpr); ok {
			if c := extractCommand(call); c != nil {
				commands = append(commands, c)
			}
		}
		return true
	})
	return commands, nil
}

func extractCommand(call *shsyntax.CallExpr) *Command {
	if len(call.Args) == 0 {
		return nil
	}

	name := wordToString(call.Args[0])
	if name == "" {
		return nil
	}

	cmd := &Command{
		Name:   name,
		Column: uintToInt(call.Pos().Col()),
	}
	for _, w := range call.Args[1:] {
		cmd.Args = append(cmd.Args, wordToString(w))
	}
	return cmd
}

// wordToString converts a word to its literal text, marking expansions "$".
func wordToString(word *shsyntax.Word) string {
	if word == nil || len(word.Parts) == 0 {
		return ""
	}

	var result strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *shsyntax.Lit:
			result.WriteString(p.Value)
		case *shsyntax.SglQuoted:
			result.WriteString(p.Value)
		case *shsyntax.DblQuoted:
			for _, qpart := range p.Parts {
				if lit, ok := qpart.(*shsyntax.Lit); ok {
					result.WriteString(lit.Value)
				} else {
					result.WriteString("$")
				}
			}
		default:
			result.WriteString("$")
		}
	}

	return result.String()
}
