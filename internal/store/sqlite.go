// Package store keeps run history and baseline suppressions in SQLite.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/3leaps/codesentry/internal/types"
)

// SourceBaseline marks suppressions loaded from the baseline table.
const SourceBaseline = "baseline"

// timeLayout is fixed width so stored timestamps sort as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is the concrete storage backed by SQLite.
type DB struct {
	conn *sql.DB
}

// Run is one recorded analysis.
type Run struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
	Version     string          `json:"version,omitempty"`
	Files       int             `json:"files"`
	FailedFiles int             `json:"failed_files"`
	Lines       int             `json:"lines"`
	Suppressed  int             `json:"suppressed"`
	Findings    []types.Finding `json:"findings"`
}

// RunRow is a lightweight listing row for `codesentry runs`.
type RunRow struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Version     string    `json:"version,omitempty"`
	Files       int       `json:"files"`
	FailedFiles int       `json:"failed_files"`
	Findings    int       `json:"findings"`
	High        int       `json:"high"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens (and creates if missing) a SQLite DB at path and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := &DB{conn: c}
	if err := db.CreateSchema(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  started_at   TEXT NOT NULL,   -- fixed-width UTC
  duration_ms  INTEGER NOT NULL,
  version      TEXT,
  files        INTEGER NOT NULL,
  failed_files INTEGER NOT NULL,
  lines        INTEGER NOT NULL,
  suppressed   INTEGER NOT NULL,
  run_json     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  run_id     TEXT NOT NULL,
  rule_id    TEXT NOT NULL,
  code       TEXT,
  category   TEXT,
  severity   TEXT NOT NULL,
  confidence TEXT NOT NULL,
  path       TEXT NOT NULL,
  line       INTEGER NOT NULL,
  col        INTEGER NOT NULL,
  message    TEXT,
  PRIMARY KEY (run_id, rule_id, path, line, col),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_rule ON findings(rule_id);

CREATE TABLE IF NOT EXISTS baseline (
  path       TEXT NOT NULL,
  line       INTEGER NOT NULL,  -- 0 = any line
  rule_id    TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY (path, line, rule_id)
);
`)
	return err
}

// SaveRun upserts a run and (re)writes its findings.
func (db *DB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	ts := run.StartedAt.UTC().Format(timeLayout)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, duration_ms, version, files, failed_files, lines, suppressed, run_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, duration_ms=excluded.duration_ms,
           version=excluded.version, files=excluded.files, failed_files=excluded.failed_files,
           lines=excluded.lines, suppressed=excluded.suppressed, run_json=excluded.run_json`,
		run.ID, ts, run.Duration.Milliseconds(), run.Version, run.Files, run.FailedFiles, run.Lines, run.Suppressed, string(b),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM findings WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if len(run.Findings) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO findings
			(run_id, rule_id, code, category, severity, confidence, path, line, col, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range run.Findings {
			if _, err := stmt.Exec(
				run.ID,
				f.RuleID,
				f.Code,
				string(f.Category),
				string(f.Severity),
				string(f.Confidence),
				f.Path,
				f.Line,
				f.Column,
				f.Message,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadRun returns the full run from its stored JSON.
func (db *DB) LoadRun(id string) (Run, error) {
	var s string
	if err := db.conn.QueryRow(`SELECT run_json FROM runs WHERE id = ?`, id).Scan(&s); err != nil {
		return Run{}, err
	}
	var run Run
	if err := json.Unmarshal([]byte(s), &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first with finding counts.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT r.id, r.started_at, COALESCE(r.version, ''), r.files, r.failed_files,
		       (SELECT COUNT(1) FROM findings f WHERE f.run_id = r.id) AS findings,
		       (SELECT COUNT(1) FROM findings f WHERE f.run_id = r.id AND f.severity = 'high') AS high
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ?`
	rows, err := db.conn.Query(q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAt string
		if err := rows.Scan(&rr.ID, &startedAt, &rr.Version, &rr.Files, &rr.FailedFiles, &rr.Findings, &rr.High); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			rr.StartedAt = t
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
