// Package cli provides the command-line interface for codesentry.
//
// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/3leaps/codesentry/internal/analyzer"
	"github.com/3leaps/codesentry/internal/output"
	"github.com/3leaps/codesentry/internal/rules"
)

// Build-time variables (injected via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// CLI flags for the scan
var (
	formatFlag   string
	outputFile   string
	quietFlag    bool
	failOnFlag   string
	baselineFlag bool
)

// CLI flags shared by every command that loads configuration
var (
	configFlag    string
	pubkeyFlag    string
	timeoutFlag   int
	workersFlag   int
	categoryFlags []string
	denyFlags     []string
	allowFlags    []string
	dbFlag        string
	logLevelFlag  string
	logFormatFlag string
)

// CLI flags for version
var (
	versionFlag         bool
	versionExtendedFlag bool
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// ExitError signals an intentional process exit with a specific code.
// The caller (main) is responsible for turning this into os.Exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

func resetFlags() {
	formatFlag = "text"
	outputFile = ""
	quietFlag = false
	failOnFlag = ""
	baselineFlag = false

	configFlag = ""
	pubkeyFlag = ""
	timeoutFlag = 0
	workersFlag = 0
	categoryFlags = nil
	denyFlags = nil
	allowFlags = nil
	dbFlag = ""
	logLevelFlag = ""
	logFormatFlag = ""

	versionFlag = false
	versionExtendedFlag = false
}

func stdinIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewRootCmd creates the root command for codesentry.
func NewRootCmd() *cobra.Command {
	resetFlags()

	rootCmd := &cobra.Command{
		Use:   "codesentry [flags] [path...]",
		Short: "Static analysis for Python source",
		Long: `codesentry - style, security and type checks for Python.

codesentry parses Python files and reports style violations, security
anti-patterns and return-type mismatches with a severity and a confidence
for each finding.

Examples:
  codesentry app.py                        # Analyze a file
  codesentry src/                          # Analyze every .py file under src/
  cat app.py | codesentry                  # Analyze from stdin
  codesentry --format sarif src/ -o out    # SARIF output for code scanning
  codesentry --fail-on any src/            # Exit 1 on any finding`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle --version and --version-extended flags
			if versionExtendedFlag {
				if err := printExtendedVersionTo(cmd.ErrOrStderr()); err != nil {
					return err
				}
				return &ExitError{Code: ExitOK}
			}
			if versionFlag {
				if err := printVersionTo(cmd.ErrOrStderr()); err != nil {
					return err
				}
				return &ExitError{Code: ExitOK}
			}
			return nil
		},
		RunE: runAnalysis,
	}

	// Output flags
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text, json, sarif")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Quiet mode (no output, just exit code)")

	// Gate flags
	rootCmd.Flags().StringVar(&failOnFlag, "fail-on", "", "Exit 1 when findings reach this level: none, any, high (default high)")
	rootCmd.Flags().BoolVar(&baselineFlag, "baseline", false, "Suppress findings recorded by 'codesentry baseline' (requires --db)")

	// Configuration flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Config file (default: ./codesentry.yml when present)")
	pf.StringVar(&pubkeyFlag, "config-pubkey", "", "Minisign public key (or .pub path) the config file must be signed with")
	pf.IntVar(&timeoutFlag, "timeout-ms", 0, "Per-file analysis budget in milliseconds, 0 disables it (default 10000)")
	pf.IntVar(&workersFlag, "workers", 0, "Files analyzed in parallel (default: number of CPUs)")
	pf.StringSliceVar(&categoryFlags, "enable-category", nil, "Rule categories to run: style, security, type (repeatable)")
	pf.StringSliceVar(&denyFlags, "deny", nil, "Rule ids or codes to disable (repeatable)")
	pf.StringSliceVar(&allowFlags, "allow", nil, "Only run these rule ids or codes (repeatable)")
	pf.StringVar(&dbFlag, "db", "", "SQLite database for run history and baseline")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: console, json (default console)")

	// Version flags (on root command for --version convention)
	pf.BoolVar(&versionFlag, "version", false, "Print version and exit")
	pf.BoolVar(&versionExtendedFlag, "version-extended", false, "Print extended version info and exit")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newBaselineCmd())
	rootCmd.AddCommand(newRunsCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var extended bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information. Use --extended for full build details.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if extended {
				return printExtendedVersionTo(cmd.ErrOrStderr())
			}
			return printVersionTo(cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "Show extended version information")

	return cmd
}

// printVersionTo outputs the version to the provided writer.
func printVersionTo(w io.Writer) error {
	_, err := fmt.Fprintf(w, "codesentry %s\n", Version)
	return err
}

// printExtendedVersionTo outputs full build and runtime details to the provided writer.
func printExtendedVersionTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "codesentry %s\n", Version); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  Commit:    %s\n", GitCommit); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  Built:     %s\n", BuildTime); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  Go:        %s\n", runtime.Version()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  OS/Arch:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return err
}

// usageError reports err on stderr and exits with ExitUsage.
func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return &ExitError{Code: ExitUsage}
}

func runAnalysis(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	if len(args) == 0 {
		if stdinIsTerminal(cmd.InOrStdin()) {
			// No stdin data, show help
			return cmd.Help()
		}
		args = []string{stdinArg}
	}

	if _, err := output.New(formatFlag, nil); err != nil {
		return usageError(cmd, err)
	}

	sess, err := newSession(cmd, baselineFlag)
	if err != nil {
		return usageError(cmd, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	}()

	sources, err := collectSources(args, cmd.InOrStdin())
	if err != nil {
		return usageError(cmd, err)
	}

	summary := sess.scan(ctx, sources)

	if sess.db != nil {
		if err := sess.record(summary); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	exitCode := ExitOK
	if summary.Failed(sess.cfg.FailOnLevel()) {
		exitCode = ExitFailed
	}

	if quietFlag {
		return &ExitError{Code: exitCode}
	}

	write := func(w io.Writer) error {
		return writeOutput(w, summary, sess.registry, formatFlag)
	}
	if outputFile != "" {
		if err := writeReportFile(outputFile, write); err != nil {
			return err
		}
	} else if err := write(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return &ExitError{Code: exitCode}
}

// writeReportFile creates path and writes the report into it. A failed
// close is reported like a failed write.
func writeReportFile(path string, write func(io.Writer) error) (err error) {
	// #nosec G304 -- the output path comes from the user.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err = write(f); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeOutput(w io.Writer, summary *analyzer.RunSummary, registry *rules.Registry, format string) error {
	formatter, err := output.New(format, registry)
	if err != nil {
		return err
	}
	return formatter.Format(w, summary)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
