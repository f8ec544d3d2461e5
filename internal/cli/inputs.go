// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/codesentry/internal/analyzer"
)

const (
	stdinArg  = "-"
	stdinPath = "<stdin>"
)

// skipDirs are never descended into when walking a directory argument.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".tox":          true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	"node_modules":  true,
	"site-packages": true,
}

// collectSources expands args into analysis inputs. Files named
// explicitly are always read; directories contribute their *.py files in
// lexical order. A missing argument is an error; a file that cannot be
// read becomes a Source carrying the read error.
func collectSources(args []string, stdin io.Reader) ([]analyzer.Source, error) {
	var sources []analyzer.Source
	seen := make(map[string]bool)

	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		// #nosec G304 -- file paths are provided by the user for analysis.
		content, err := os.ReadFile(path)
		sources = append(sources, analyzer.Source{Path: filepath.ToSlash(path), Content: content, Err: err})
	}

	for _, arg := range args {
		if arg == stdinArg {
			content, err := io.ReadAll(stdin)
			sources = append(sources, analyzer.Source{Path: stdinPath, Content: content, Err: err})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				sources = append(sources, analyzer.Source{Path: filepath.ToSlash(path), Err: err})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != arg && skipDirs[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), ".py") && d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	return sources, nil
}
