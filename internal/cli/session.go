// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/config"
	"github.com/3leaps/codesentry/internal/logging"
	"github.com/3leaps/codesentry/internal/rules"
	"github.com/3leaps/codesentry/internal/store"
	"github.com/3leaps/codesentry/internal/types"
)

var errNoDatabase = errors.New("no database configured (use --db or the database setting)")

// session is everything a command needs after configuration is resolved.
type session struct {
	cfg       config.Config
	registry  *rules.Registry
	selection *rules.Selection
	engine    *analyzer.Engine
	logger    *zap.Logger
	db        *store.DB
}

// flagOverrides collects the flags the user actually set.
func flagOverrides(cmd *cobra.Command) config.Overrides {
	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}

	ov := config.Overrides{
		Categories: categoryFlags,
		Deny:       denyFlags,
		Allow:      allowFlags,
		LogLevel:   logLevelFlag,
		LogFormat:  logFormatFlag,
		Database:   dbFlag,
	}
	if changed("fail-on") {
		ov.FailOn = failOnFlag
	}
	if changed("timeout-ms") {
		ov.TimeoutMs = timeoutFlag
		ov.TimeoutSet = true
	}
	if changed("workers") {
		ov.Workers = workersFlag
		ov.WorkersSet = true
	}
	return ov
}

// newSession loads and validates configuration, then builds the logger,
// rule selection, store and engine. Every returned error is fatal for the run.
func newSession(cmd *cobra.Command, withBaseline bool) (*session, error) {
	loader := config.Loader{ConfigPath: configFlag, PublicKey: pubkeyFlag}
	cfg, err := loader.Load(flagOverrides(cmd))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, &types.ConfigurationError{Field: "logging", Reason: err.Error(), Err: err}
	}

	registry := rules.Builtin()
	selection, err := cfg.Selection(registry)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, registry: registry, selection: selection, logger: logger}

	if cfg.Database != "" {
		db, err := store.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = db
	}

	suppressions := cfg.Suppressions
	if withBaseline {
		if s.db == nil {
			return nil, errNoDatabase
		}
		baseline, err := s.db.Baseline()
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("load baseline: %w", err)
		}
		logger.Debug("baseline loaded", zap.Int("entries", len(baseline)))
		suppressions = append(append([]types.Suppression{}, suppressions...), baseline...)
	}

	s.engine = analyzer.NewEngine(registry, analyzer.Options{
		ToolVersion:  Version,
		Selection:    selection,
		Heuristics:   cfg.Heuristics(),
		Timeout:      cfg.Timeout(),
		Workers:      cfg.Workers,
		Suppressions: suppressions,
	}, logger)

	logger.Debug("configuration loaded",
		zap.Strings("rules", selection.IDs()),
		zap.Duration("timeout", cfg.Timeout()),
		zap.Int("workers", cfg.Workers),
		zap.Bool("signed", cfg.Signed),
		zap.String("key_id", cfg.KeyID),
	)

	return s, nil
}

// scan analyzes sources and returns the run summary.
func (s *session) scan(ctx context.Context, sources []analyzer.Source) *analyzer.RunSummary {
	started := time.Now()
	results := s.engine.AnalyzeFiles(ctx, sources)

	summary := analyzer.Summarize(results)
	summary.ToolVersion = s.engine.Options().ToolVersion
	summary.StartedAt = started.UTC()
	summary.Duration = time.Since(started)
	summary.Log(s.logger)
	return summary
}

// record stores the run in the history database.
func (s *session) record(summary *analyzer.RunSummary) error {
	run := &store.Run{
		StartedAt:   summary.StartedAt,
		Duration:    summary.Duration.Round(time.Millisecond),
		Version:     summary.ToolVersion,
		Files:       summary.Files,
		FailedFiles: summary.Unanalyzed(),
		Lines:       summary.Lines,
		Suppressed:  summary.Suppressed,
		Findings:    summary.AllFindings(),
	}
	if err := s.db.SaveRun(run); err != nil {
		return err
	}
	s.logger.Info("run recorded", zap.String("run", run.ID))
	return nil
}

// requireDB fails when no database is configured.
func (s *session) requireDB() error {
	if s.db == nil {
		return errNoDatabase
	}
	return nil
}

// Close releases the store and flushes the logger.
func (s *session) Close() error {
	_ = s.logger.Sync()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
