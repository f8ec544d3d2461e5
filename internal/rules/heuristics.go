// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package rules

import "strings"

// Heuristics are the name lists and limits detectors match against.
type Heuristics struct {
	// CredentialNames are lower-case substrings that mark an identifier as
	// holding a credential.
	CredentialNames []string

	// TempPrefixes are world-writable directory prefixes.
	TempPrefixes []string

	// SQLSinks are call names (last attribute segment) that execute queries.
	SQLSinks []string

	// SQLMaxHops is how many assignments a query may travel through before
	// reaching a sink. Only 0 and 1 are meaningful.
	SQLMaxHops int
}

// DefaultHeuristics returns the builtin lists.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		CredentialNames: []string{"password", "passwd", "pwd", "secret", "token", "key"},
		TempPrefixes:    []string{"/tmp", "/var/tmp", "/dev/shm"},
		SQLSinks:        []string{"execute", "executemany", "executescript", "raw", "read_sql", "read_sql_query"},
		SQLMaxHops:      1,
	}
}

// Extend returns h with extra entries appended. Duplicates are dropped.
func (h Heuristics) Extend(credentials, temps, sinks []string) Heuristics {
	h.CredentialNames = appendUnique(h.CredentialNames, credentials, true)
	h.TempPrefixes = appendUnique(h.TempPrefixes, temps, false)
	h.SQLSinks = appendUnique(h.SQLSinks, sinks, false)
	return h
}

func appendUnique(base, extra []string, lower bool) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if lower {
				s = strings.ToLower(s)
			}
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (h *Heuristics) isCredentialName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range h.CredentialNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func (h *Heuristics) tempPrefix(value string) (string, bool) {
	for _, p := range h.TempPrefixes {
		p = strings.TrimRight(p, "/")
		if value == p || strings.HasPrefix(value, p+"/") {
			return p, true
		}
	}
	return "", false
}

func (h *Heuristics) isSQLSink(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	for _, s := range h.SQLSinks {
		if name == s {
			return true
		}
	}
	return false
}
