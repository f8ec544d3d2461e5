// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import (
	"fmt"
	"path"
	"strings"

	"github.com/3leaps/codesentry/internal/parser"
	"github.com/3leaps/codesentry/internal/syntax"
	"github.com/3leaps/codesentry/internal/types"
)

func checkHardcodedCredential(c *Context, n *syntax.Node) ([]Hit, error) {
	name := targetName(n.Field("left"))
	if name == "" || !c.Heuristics.isCredentialName(name) {
		return nil, nil
	}
	v, ok := syntax.StringValue(n.Field("right"))
	if !ok || v == "" {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Possible hardcoded credential assigned to '%s'", name),
	}}, nil
}

func checkHardcodedCredentialArgument(c *Context, n *syntax.Node) ([]Hit, error) {
	key := n.Field("name")
	if key == nil || !c.Heuristics.isCredentialName(key.Text()) {
		return nil, nil
	}
	v, ok := syntax.StringValue(n.Field("value"))
	if !ok || v == "" {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Possible hardcoded credential passed as argument '%s'", key.Text()),
	}}, nil
}

// targetName returns the assigned name for "x = ..." and "obj.x = ...".
func targetName(left *syntax.Node) string {
	if left == nil {
		return ""
	}
	switch left.Kind() {
	case syntax.KindIdentifier:
		return left.Text()
	case syntax.KindAttribute:
		if attr := left.Field("attribute"); attr != nil {
			return attr.Text()
		}
	}
	return ""
}

type processStyle int

const (
	notProcess processStyle = iota
	wholeCommand
	argvCommand
)

var wholeCommandCalls = map[string]bool{
	"os.system":                       true,
	"os.popen":                        true,
	"os.popen2":                       true,
	"os.popen3":                       true,
	"os.popen4":                       true,
	"popen2.popen2":                   true,
	"popen2.popen3":                   true,
	"popen2.popen4":                   true,
	"commands.getoutput":              true,
	"commands.getstatusoutput":        true,
	"subprocess.getoutput":            true,
	"subprocess.getstatusoutput":      true,
	"asyncio.create_subprocess_shell": true,
}

var argvCalls = map[string]bool{
	"subprocess.Popen":               true,
	"subprocess.call":                true,
	"subprocess.run":                 true,
	"subprocess.check_call":          true,
	"subprocess.check_output":        true,
	"asyncio.create_subprocess_exec": true,
}

func classifyProcess(name string) processStyle {
	switch {
	case wholeCommandCalls[name]:
		return wholeCommand
	case argvCalls[name]:
		return argvCommand
	case strings.HasPrefix(name, "os.spawn"), strings.HasPrefix(name, "os.exec"):
		return argvCommand
	}
	return notProcess
}

// commandArgument returns the node holding the program or command line.
func commandArgument(call *syntax.Node, name string) *syntax.Node {
	if strings.HasPrefix(name, "os.spawn") {
		return argument(call, 1, "")
	}
	if classifyProcess(name) == wholeCommand {
		return argument(call, 0, "cmd")
	}
	return argument(call, 0, "args")
}

// literalArgv returns the words of a literal string or list/tuple of strings.
func literalArgv(n *syntax.Node) ([]string, bool) {
	n = syntax.Unwrap(n)
	if n == nil {
		return nil, false
	}
	if v, ok := syntax.StringValue(n); ok {
		return []string{v}, true
	}
	if n.Type() != "list" && n.Type() != "tuple" {
		return nil, false
	}
	var words []string
	for _, c := range n.Children() {
		if c.Kind() == syntax.KindComment {
			continue
		}
		v, ok := syntax.StringValue(c)
		if !ok {
			return nil, false
		}
		words = append(words, v)
	}
	return words, len(words) > 0
}

func checkShellInvocation(c *Context, n *syntax.Node) ([]Hit, error) {
	name := c.Qualify(n.Field("function"))
	style := classifyProcess(name)
	if style == notProcess {
		return nil, nil
	}

	cmd := commandArgument(n, name)
	_, literal := literalArgv(cmd)

	switch style {
	case wholeCommand:
		if literal {
			return []Hit{{
				Node:     n,
				Severity: types.SeverityLow,
				Message:  "Starting a process with a shell: seems safe, but may be changed in the future, consider rewriting without shell",
			}}, nil
		}
		return []Hit{{
			Node:     n,
			Severity: types.SeverityMedium,
			Message:  "Starting a process with a shell, possible injection detected, security issue.",
		}}, nil

	case argvCommand:
		if isTrue(keyword(n, "shell")) {
			return []Hit{{
				Node:     n,
				Severity: types.SeverityHigh,
				Message:  fmt.Sprintf("%s call with shell=True identified, security issue.", name),
			}}, nil
		}
		if keyword(n, "shell") == nil || isFalse(keyword(n, "shell")) {
			if literal {
				return []Hit{{
					Node:     n,
					Severity: types.SeverityLow,
					Message:  fmt.Sprintf("%s call - check for execution of untrusted input.", name),
				}}, nil
			}
		}
	}
	return nil, nil
}

// literalCommands splits a literal command argument into shell commands.
// Strings go through the shell parser; argument lists form one command.
func literalCommands(call *syntax.Node, name string) []*parser.Command {
	words, ok := literalArgv(commandArgument(call, name))
	if !ok {
		return nil
	}

	n := syntax.Unwrap(commandArgument(call, name))
	if n.Type() == "list" || n.Type() == "tuple" {
		return []*parser.Command{{Name: words[0], Args: words[1:]}}
	}

	cmds, err := parser.ParseShell(words[0])
	if err != nil {
		fields := strings.Fields(words[0])
		if len(fields) == 0 {
			return nil
		}
		return []*parser.Command{{Name: fields[0], Args: fields[1:]}}
	}
	return cmds
}

func isAbsolutePath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	// Windows drive paths such as C:\Windows\cmd.exe.
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func checkPartialPath(c *Context, n *syntax.Node) ([]Hit, error) {
	name := c.Qualify(n.Field("function"))
	if classifyProcess(name) == notProcess {
		return nil, nil
	}

	cmds := literalCommands(n, name)
	if len(cmds) == 0 {
		return nil, nil
	}
	exe := cmds[0].Name
	if exe == "" || strings.Contains(exe, "$") || isAbsolutePath(exe) {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Starting a process with a partial executable path: %s", exe),
	}}, nil
}

func checkDestructiveCommand(c *Context, n *syntax.Node) ([]Hit, error) {
	name := c.Qualify(n.Field("function"))
	if classifyProcess(name) == notProcess {
		return nil, nil
	}

	for _, cmd := range literalCommands(n, name) {
		if isDestructive(cmd) {
			return []Hit{{
				Node:    n,
				Message: fmt.Sprintf("Shell command recursively or forcibly removes an absolute path: %s", cmd.String()),
			}}, nil
		}
	}
	return nil, nil
}

// isDestructive matches rm with a recursive or force flag and an absolute target.
func isDestructive(cmd *parser.Command) bool {
	if path.Base(cmd.Name) != "rm" {
		return false
	}

	var flagged, absolute bool
	for _, arg := range cmd.Args {
		switch {
		case arg == "--recursive" || arg == "--force":
			flagged = true
		case strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--"):
			if strings.ContainsAny(arg[1:], "rRf") {
				flagged = true
			}
		case strings.HasPrefix(arg, "/"):
			absolute = true
		}
	}
	return flagged && absolute
}

func checkDynamicEvaluation(c *Context, n *syntax.Node) ([]Hit, error) {
	fn := syntax.Unwrap(n.Field("function"))
	if fn == nil {
		return nil, nil
	}
	name := c.Qualify(fn)
	if fn.Kind() == syntax.KindIdentifier && c.Scopes != nil && c.Scopes.Module().IsLocal(name) {
		// Shadowed by a module-level definition.
		return nil, nil
	}

	switch name {
	case "eval", "builtins.eval":
		return []Hit{{Node: n}}, nil
	case "exec", "builtins.exec":
		return []Hit{{Node: n, Message: "Use of exec detected."}}, nil
	}
	return nil, nil
}

var deserializers = map[string]bool{
	"pickle.load":        true,
	"pickle.loads":       true,
	"pickle.Unpickler":   true,
	"cPickle.load":       true,
	"cPickle.loads":      true,
	"_pickle.load":       true,
	"_pickle.loads":      true,
	"dill.load":          true,
	"dill.loads":         true,
	"marshal.load":       true,
	"marshal.loads":      true,
	"shelve.open":        true,
	"jsonpickle.decode":  true,
	"pandas.read_pickle": true,
}

func checkUnsafeDeserialization(c *Context, n *syntax.Node) ([]Hit, error) {
	name := c.Qualify(n.Field("function"))
	if deserializers[name] {
		return []Hit{{Node: n}}, nil
	}

	if name == "yaml.load" || name == "yaml.load_all" {
		loader := argument(n, 1, "Loader")
		if loader != nil && strings.Contains(loader.Text(), "Safe") {
			return nil, nil
		}
		return []Hit{{
			Node:    n,
			Message: "Use of unsafe yaml load. Allows instantiation of arbitrary objects. Consider yaml.safe_load().",
		}}, nil
	}
	return nil, nil
}

var weakHashes = map[string]bool{
	"md4":  true,
	"md5":  true,
	"sha":  true,
	"sha1": true,
}

func checkWeakHash(c *Context, n *syntax.Node) ([]Hit, error) {
	name := c.Qualify(n.Field("function"))

	var algo string
	switch {
	case name == "hashlib.new":
		v, ok := syntax.StringValue(argument(n, 0, "name"))
		if !ok {
			return nil, nil
		}
		algo = strings.ToLower(v)
	case strings.HasPrefix(name, "hashlib."):
		algo = strings.TrimPrefix(name, "hashlib.")
	default:
		return nil, nil
	}

	if !weakHashes[algo] || isFalse(keyword(n, "usedforsecurity")) {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Use of weak %s hash for security. Consider usedforsecurity=False", strings.ToUpper(algo)),
	}}, nil
}

func checkTempPath(c *Context, n *syntax.Node) ([]Hit, error) {
	if syntax.IsBytes(n) {
		return nil, nil
	}
	if _, ok := c.Heuristics.tempPrefix(syntax.RawStringValue(n)); !ok {
		return nil, nil
	}
	return []Hit{{Node: n}}, nil
}

func checkSQLInjection(c *Context, n *syntax.Node) ([]Hit, error) {
	name := calleeName(n.Field("function"))
	if name == "" || !c.Heuristics.isSQLSink(name) {
		return nil, nil
	}

	query := syntax.Unwrap(argument(n, 0, "sql"))
	if query == nil {
		return nil, nil
	}
	if isDynamicQuery(query) {
		return []Hit{{Node: n}}, nil
	}

	if query.Kind() != syntax.KindIdentifier || c.Heuristics.SQLMaxHops < 1 || c.Scope == nil {
		return nil, nil
	}
	a := c.Scope.LastAssignment(query.Text(), n.Start())
	if a == nil || !isDynamicQuery(syntax.Unwrap(a.Value)) {
		return nil, nil
	}
	return []Hit{{
		Node:    n,
		Message: fmt.Sprintf("Possible SQL injection vector through string-based query construction (via '%s' on line %d).", query.Text(), a.At.Line),
	}}, nil
}

// calleeName returns the called function or method name, whatever the
// receiver expression is.
func calleeName(fn *syntax.Node) string {
	fn = syntax.Unwrap(fn)
	if fn == nil {
		return ""
	}
	switch fn.Kind() {
	case syntax.KindIdentifier:
		return fn.Text()
	case syntax.KindAttribute:
		if attr := fn.Field("attribute"); attr != nil {
			return attr.Text()
		}
	}
	return ""
}

// isDynamicQuery reports whether an expression builds a string from a
// literal and runtime data.
func isDynamicQuery(n *syntax.Node) bool {
	n = syntax.Unwrap(n)
	if n == nil {
		return false
	}
	switch {
	case syntax.IsFormatted(n):
		return true
	case n.Kind() == syntax.KindConcatenatedString:
		for _, c := range n.Children() {
			if syntax.IsFormatted(c) {
				return true
			}
		}
	case n.Type() == "binary_operator":
		op := n.Field("operator")
		if op == nil {
			return false
		}
		switch op.Text() {
		case "%":
			_, ok := syntax.StringValue(n.Field("left"))
			return ok
		case "+":
			return containsLiteral(n) && containsNonLiteral(n)
		}
	case n.Kind() == syntax.KindCall:
		fn := syntax.Unwrap(n.Field("function"))
		if fn != nil && fn.Kind() == syntax.KindAttribute {
			attr := fn.Field("attribute")
			_, literal := syntax.StringValue(fn.Field("object"))
			return attr != nil && attr.Text() == "format" && literal
		}
	}
	return false
}

func containsLiteral(n *syntax.Node) bool {
	n = syntax.Unwrap(n)
	if _, ok := syntax.StringValue(n); ok {
		return true
	}
	if n.Type() == "binary_operator" {
		return containsLiteral(n.Field("left")) || containsLiteral(n.Field("right"))
	}
	return false
}

func containsNonLiteral(n *syntax.Node) bool {
	n = syntax.Unwrap(n)
	if n == nil {
		return false
	}
	if _, ok := syntax.StringValue(n); ok {
		return false
	}
	if n.Type() == "binary_operator" {
		return containsNonLiteral(n.Field("left")) || containsNonLiteral(n.Field("right"))
	}
	return true
}

func checkSwallowedException(_ *Context, n *syntax.Node) ([]Hit, error) {
	var body *syntax.Node
	for _, c := range n.Children() {
		if c.Type() == "block" {
			body = c
		}
	}
	if body == nil {
		return nil, nil
	}

	statements := 0
	for _, stmt := range body.Children() {
		if stmt.Kind() == syntax.KindComment {
			continue
		}
		statements++
		switch {
		case stmt.Type() == "pass_statement":
		case stmt.Type() == "expression_statement" && len(stmt.Children()) == 1 && stmt.Child(0).Type() == "ellipsis":
		default:
			return nil, nil
		}
	}
	if statements == 0 {
		return nil, nil
	}
	return []Hit{{Node: n}}, nil
}
