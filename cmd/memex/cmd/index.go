package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces bursts of filesystem events (a single JSONL
// append often fires write+chmod) into one ingest pass.
const watchDebounce = 500 * time.Millisecond

func newIndexCmd() *cobra.Command {
	var watch bool
	var offline bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one ingest pass over the configured transcript sources",
		Long: `Scans ~/.claude/projects, ~/.codex/sessions, and
~/.codex/history.jsonl for new or changed records, commits them to the
index, and embeds them in the same pass.

Use --watch to keep running and re-index on every filesystem change,
matching the index_service_watch config option.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, rootFlag, modelFlag, offline)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := runIndexOnce(ctx, a); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return runIndexWatch(ctx, a)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running, re-indexing on filesystem changes")
	cmd.Flags().BoolVar(&offline, "offline", false, "Force the static embedder, skipping Ollama")

	return cmd
}

func runIndexOnce(ctx context.Context, a *app) error {
	report, err := a.Orch.Run(ctx, a.Options, time.Now())
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if report.Skipped {
		slog.Info("ingest skipped: last scan is within scan_cache_ttl")
		return nil
	}
	slog.Info("ingest complete",
		slog.Int("records_added", report.RecordsAdded),
		slog.Int("records_embedded", report.RecordsEmbedded))
	return nil
}

// runIndexWatch recursively watches every configured source root and
// re-runs the ingest pass after a debounce window once events settle.
func runIndexWatch(ctx context.Context, a *app) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	roots := []string{a.Options.ClaudeRoot, a.Options.CodexSessionRoot, filepath.Dir(a.Options.CodexHistoryPath)}
	for _, root := range roots {
		if err := addRecursive(watcher, root); err != nil {
			slog.Warn("watch root unavailable", slog.String("root", root), slog.String("error", err.Error()))
		}
	}

	var debounce *time.Timer
	reindex := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if debounce == nil {
				debounce = time.AfterFunc(watchDebounce, func() {
					select {
					case reindex <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))

		case <-reindex:
			if err := runIndexOnce(ctx, a); err != nil {
				slog.Error("watch-triggered ingest failed", slog.String("error", err.Error()))
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
