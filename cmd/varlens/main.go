package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jward/varlens"
	"github.com/jward/varlens/internal/config"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
	flagColor    string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg and logger are set up by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger = zerolog.Nop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "varlens",
	Short: "Semantic analysis for varlink interface definitions",
	Long: "Varlens checks varlink interface files, answers definition, reference, hover and rename queries, " +
		"and keeps a SQLite index of a workspace for cross-file search.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: [index].database from varlens.toml)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|lsp")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to varlens.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: [log].level)")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "colorize text output: auto|on|off")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup validates global flags, loads the configuration and builds the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := validateFormat(flagFormat); err != nil {
		return err
	}
	if err := applyColor(flagColor, cmd.OutOrStdout()); err != nil {
		return err
	}

	c, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		c.Log.Level = flagLogLevel
	}
	level, err := c.LogLevel()
	if err != nil {
		return err
	}
	cfg = c
	logger = newLogger(cmd.ErrOrStderr(), level)
	logger.Debug().Str("config", cfg.Path).Str("root", cfg.Root).Msg("configuration loaded")
	return nil
}

// loadConfig loads the file at path, or discovers varlens.toml upward from
// the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	return config.Discover(cwd)
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func applyColor(mode string, out io.Writer) error {
	switch mode {
	case "auto":
		color.NoColor = !isTerminal(out)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid color %q: must be auto, on or off", mode)
	}
	return nil
}

// resolveDBPath returns the database path from the --db flag or the
// configuration. A relative --db is taken relative to the workspace root.
func resolveDBPath() string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) || cfg.Root == "" {
			return flagDB
		}
		return filepath.Join(cfg.Root, flagDB)
	}
	return cfg.DatabasePath()
}

// openEngine opens the workspace index.
func openEngine(opts ...varlens.Option) (*varlens.Engine, error) {
	opts = append([]varlens.Option{varlens.WithConfig(cfg), varlens.WithLogger(logger)}, opts...)
	e, err := varlens.New(resolveDBPath(), opts...)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return e, nil
}

// openExistingEngine opens the workspace index for querying and fails when
// it has not been built yet.
func openExistingEngine() (*varlens.Engine, error) {
	dbPath := resolveDBPath()
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database not found: %s (run 'varlens index' first)", dbPath)
	}
	return openEngine()
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a workspace of varlink files",
	Long: "Parses every varlink file matched by the configuration, checks it, runs the lint rules and " +
		"writes declarations, references and diagnostics to the SQLite database. Unchanged files are skipped.",
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	dbPath := resolveDBPath()
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Cleared database: %s\n", dbPath)
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.IndexDirectory(context.Background(), targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	files, err := engine.Query().Files("", varlens.Pagination{Limit: 1})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %s in %s (%d files)\n",
		targetDir, time.Since(start).Round(time.Millisecond), files.TotalCount)
	fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", dbPath)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to work on:
// the argument, or the workspace root.
func resolveTargetDir(args []string) (string, error) {
	dir := cfg.Root
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
