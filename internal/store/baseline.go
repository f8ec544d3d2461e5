// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package store

import (
	"path/filepath"
	"time"

	"github.com/3leaps/codesentry/internal/types"
)

// BaselineFrom turns findings into exact-match baseline entries.
func BaselineFrom(findings []types.Finding) []types.Suppression {
	out := make([]types.Suppression, 0, len(findings))
	for _, f := range findings {
		out = append(out, types.Suppression{
			Path:   filepath.ToSlash(f.Path),
			Line:   f.Line,
			RuleID: f.RuleID,
			Source: SourceBaseline,
		})
	}
	return out
}

// ReplaceBaseline swaps the whole baseline for entries.
func (db *DB) ReplaceBaseline(entries []types.Suppression) error {
	now := time.Now().UTC().Format(timeLayout)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM baseline`); err != nil {
		return err
	}
	if len(entries) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO baseline(path, line, rule_id, created_at) VALUES(?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.Exec(e.Path, e.Line, e.RuleID, now); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Baseline returns the stored entries as suppressions.
func (db *DB) Baseline() ([]types.Suppression, error) {
	rows, err := db.conn.Query(`SELECT path, line, rule_id FROM baseline ORDER BY path, line, rule_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Suppression
	for rows.Next() {
		s := types.Suppression{Source: SourceBaseline}
		if err := rows.Scan(&s.Path, &s.Line, &s.RuleID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
