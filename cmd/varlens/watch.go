package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jward/varlens"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index up to date and report diagnostics as files change",
	Long: "Indexes the workspace, then watches it for changes. After each burst of changes the affected " +
		"files are re-indexed, deleted files are dropped, and the diagnostics of the changed files are printed. " +
		"Stops on interrupt.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 250*time.Millisecond, "wait this long after the last change before re-indexing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := e.IndexDirectory(ctx, targetDir); err != nil {
		logger.Warn().Err(err).Msg("initial index incomplete")
	}
	logger.Info().Str("root", targetDir).Msg("watching")

	ignore := map[string]bool{}
	dbPath, _ := filepath.Abs(resolveDBPath())
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm", dbPath + "-journal"} {
		ignore[p] = true
	}

	w := &watcher{engine: e, out: cmd.OutOrStdout()}
	return watchWithFSNotify(ctx, targetDir, flagDebounce, ignore, func(changed []string) {
		w.reindex(ctx, changed)
	})
}

// watcher re-indexes changed files and reports their diagnostics.
type watcher struct {
	engine *varlens.Engine
	out    io.Writer
}

func (w *watcher) wanted(path string) bool {
	rel, err := filepath.Rel(cfg.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return cfg.Matches(rel)
}

func (w *watcher) reindex(ctx context.Context, changed []string) {
	var present, removed []string
	for _, p := range changed {
		if !w.wanted(p) {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			removed = append(removed, p)
		} else {
			present = append(present, p)
		}
	}
	if len(present) == 0 && len(removed) == 0 {
		return
	}

	if err := w.engine.RemoveFiles(removed); err != nil {
		logger.Error().Err(err).Msg("removing deleted files")
	}
	if err := w.engine.IndexFiles(ctx, present); err != nil {
		logger.Error().Err(err).Msg("re-indexing")
	}
	logger.Info().Int("changed", len(present)).Int("removed", len(removed)).Msg("re-indexed")

	for _, p := range present {
		if err := w.report(p); err != nil {
			logger.Error().Err(err).Str("file", p).Msg("reading diagnostics")
		}
	}
}

// report prints the stored diagnostics of one file.
func (w *watcher) report(path string) error {
	diags, err := w.engine.Query().FileDiagnostics(path)
	if err != nil {
		return err
	}
	if flagFormat != "text" {
		return json.NewEncoder(w.out).Encode(CLIResult{
			Command:    "watch",
			Results:    diagnosticsToCLI(path, diags),
			TotalCount: intPtr(len(diags)),
		})
	}
	if len(diags) == 0 {
		fmt.Fprintf(w.out, "%s: ok\n", displayPath(path))
		return nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	printPretty(w.out, displayPath(path), strings.Split(string(src), "\n"), diags)
	return nil
}

func watchWithFSNotify(ctx context.Context, root string, debounce time.Duration, ignorePaths map[string]bool, onChange func(changedPaths []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addWatchRecursive(fw, root); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func(path string) {
		pendingPaths[path] = true
		if pending && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			eventPath := filepath.Clean(event.Name)
			if shouldIgnoreWatchPath(eventPath, ignorePaths) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					if err := watchNewDir(fw, eventPath, ignorePaths, resetDebounce); err != nil {
						logger.Warn().Err(err).Str("dir", eventPath).Msg("watching new directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounce(eventPath)
		case <-timer.C:
			if pending {
				pending = false
				changed := make([]string, 0, len(pendingPaths))
				for path := range pendingPaths {
					changed = append(changed, path)
				}
				sort.Strings(changed)
				pendingPaths = map[string]bool{}
				onChange(changed)
			}
		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

// addWatchRecursive watches root and every directory below it, skipping the
// same directories indexing skips.
func addWatchRecursive(fw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && shouldSkipWatchDir(entry.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// watchNewDir watches a directory created after startup and queues the
// files it already holds, which produce no events of their own.
func watchNewDir(fw *fsnotify.Watcher, dir string, ignorePaths map[string]bool, queue func(path string)) error {
	if shouldSkipWatchDir(filepath.Base(dir)) {
		return nil
	}
	if err := addWatchRecursive(fw, dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if path != dir && shouldSkipWatchDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !shouldIgnoreWatchPath(path, ignorePaths) {
			queue(path)
		}
		return nil
	})
}

func shouldSkipWatchDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}

func shouldIgnoreWatchPath(path string, ignorePaths map[string]bool) bool {
	if ignorePaths[path] {
		return true
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#")
}
