// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/3leaps/codesentry/internal/store"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the available rules",
		Long:  "List every registered rule with its code, category, default severity and confidence.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd, false)
			if err != nil {
				return usageError(cmd, err)
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tID\tCATEGORY\tSEVERITY\tCONFIDENCE\tCWE\tENABLED\tTITLE")
			for _, r := range sess.registry.All() {
				cwe := r.CWE
				if cwe == "" {
					cwe = "-"
				}
				enabled := "no"
				if sess.selection.Enabled(r) {
					enabled = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Code, r.ID, r.Category, r.Severity, r.Confidence, cwe, enabled, r.Title)
			}
			return tw.Flush()
		},
	}
}

func newBaselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline [path...]",
		Short: "Record current findings as accepted",
		Long: `Analyze the given paths and store every finding as a baseline
suppression in the database. Later scans run with --baseline skip them.
The previous baseline is replaced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd, false)
			if err != nil {
				return usageError(cmd, err)
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if err := sess.requireDB(); err != nil {
				return usageError(cmd, err)
			}

			sources, err := collectSources(args, cmd.InOrStdin())
			if err != nil {
				return usageError(cmd, err)
			}

			summary := sess.scan(context.Background(), sources)
			entries := store.BaselineFrom(summary.AllFindings())
			if err := sess.db.ReplaceBaseline(entries); err != nil {
				return fmt.Errorf("failed to save baseline: %w", err)
			}

			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d baseline entries from %d files (%d not analyzed)\n",
				len(entries), summary.Files, summary.Unanalyzed())
			return err
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long:  "List the most recent runs stored in the database, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd, false)
			if err != nil {
				return usageError(cmd, err)
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if err := sess.requireDB(); err != nil {
				return usageError(cmd, err)
			}

			rows, err := sess.db.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if len(rows) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tVERSION\tFILES\tFAILED\tFINDINGS\tHIGH")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
					row.ID,
					humanize.Time(row.StartedAt),
					row.Version,
					humanize.Comma(int64(row.Files)),
					row.FailedFiles,
					humanize.Comma(int64(row.Findings)),
					row.High,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	cmd.AddCommand(newRunsShowCmd())

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the findings of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd, false)
			if err != nil {
				return usageError(cmd, err)
			}
			defer func() {
				if cerr := sess.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if err := sess.requireDB(); err != nil {
				return usageError(cmd, err)
			}

			run, err := sess.db.LoadRun(args[0])
			if errors.Is(err, sql.ErrNoRows) {
				return usageError(cmd, fmt.Errorf("no run with id %s", args[0]))
			}
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %s (%s, codesentry %s)\n", run.ID, humanize.Time(run.StartedAt), run.Version)
			fmt.Fprintf(w, "%s files, %d not analyzed, %s lines, %d suppressed, %s\n\n",
				humanize.Comma(int64(run.Files)), run.FailedFiles, humanize.Comma(int64(run.Lines)),
				run.Suppressed, run.Duration)

			if len(run.Findings) == 0 {
				_, err = fmt.Fprintln(w, "No findings.")
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "LOCATION\tCODE\tSEVERITY\tCONFIDENCE\tMESSAGE")
			for _, f := range run.Findings {
				fmt.Fprintf(tw, "%s:%d:%d\t%s\t%s\t%s\t%s\n",
					f.Path, f.Line, f.Column, f.Code, f.Severity, f.Confidence, f.Message)
			}
			return tw.Flush()
		},
	}
}
