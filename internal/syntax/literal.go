// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package syntax

import "strings"

// StringPrefix returns the lower-cased literal prefix of a string node
// (e.g., "rb" for rb'...').
func StringPrefix(n *Node) string {
	if n == nil || n.kind != KindString {
		return ""
	}
	text := n.text
	i := strings.IndexAny(text, `'"`)
	if i <= 0 {
		return ""
	}
	return strings.ToLower(text[:i])
}

// IsFormatted reports whether a string node is an f-string with at least
// one interpolation.
func IsFormatted(n *Node) bool {
	if n == nil || n.kind != KindString {
		return false
	}
	if !strings.Contains(StringPrefix(n), "f") {
		return false
	}
	for _, c := range n.children {
		if c.typ == "interpolation" {
			return true
		}
	}
	return false
}

// IsBytes reports whether a string node is a bytes literal.
func IsBytes(n *Node) bool {
	return strings.Contains(StringPrefix(n), "b")
}

// StringValue returns the literal content of a plain string node or a
// concatenation of plain strings. It reports false for anything whose value
// depends on runtime data.
func StringValue(n *Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.kind {
	case KindString:
		if IsFormatted(n) {
			return "", false
		}
		return unquote(n.text), true
	case KindConcatenatedString:
		var b strings.Builder
		for _, c := range n.children {
			if c.kind != KindString {
				continue
			}
			v, ok := StringValue(c)
			if !ok {
				return "", false
			}
			b.WriteString(v)
		}
		return b.String(), true
	}
	if n.typ == "parenthesized_expression" && len(n.children) == 1 {
		return StringValue(n.children[0])
	}
	return "", false
}

// RawStringValue returns a string node's content as written, including any
// interpolation text.
func RawStringValue(n *Node) string {
	if n == nil || n.kind != KindString {
		return ""
	}
	return unquote(n.text)
}

// unquote strips the prefix and quotes from string source text. Escape
// sequences are left as written.
func unquote(text string) string {
	i := strings.IndexAny(text, `'"`)
	if i < 0 {
		return text
	}
	body := text[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)]
		}
	}
	return body
}

// Unwrap strips enclosing parentheses.
func Unwrap(n *Node) *Node {
	for n != nil && n.typ == "parenthesized_expression" && len(n.children) == 1 {
		n = n.children[0]
	}
	return n
}

// DottedName renders an identifier or attribute chain as "a.b.c".
// It returns "" for anything else.
func DottedName(n *Node) string {
	n = Unwrap(n)
	if n == nil {
		return ""
	}
	switch n.kind {
	case KindIdentifier:
		return n.text
	case KindAttribute:
		obj := DottedName(n.Field("object"))
		attr := n.Field("attribute")
		if obj == "" || attr == nil {
			return ""
		}
		return obj + "." + attr.text
	}
	if n.typ == "dotted_name" {
		return strings.Join(strings.Fields(n.text), "")
	}
	return ""
}
