// Package cmd provides the CLI commands for memex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nicosuave/memex/internal/logging"
	"github.com/nicosuave/memex/internal/ui"
	"github.com/nicosuave/memex/pkg/version"
)

var (
	rootFlag  string
	modelFlag string
	noColor   bool
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command: launching the browse/search TUI
// is the default action, matching spec.md's "single entry point
// launching the TUI" CLI surface.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memex",
		Short:   "Search and browse local AI coding assistant conversation history",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context())
		},
	}
	cmd.SetVersionTemplate("memex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Override the memex root directory (default $HOME/.memex)")
	cmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Embedding model tag: minilm, bgesmall, nomic, gemma, potion")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable TUI color output")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to <root>/state/memex.log")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	home, _ := os.UserHomeDir()
	root := rootFlag
	if root == "" {
		root = home + "/.memex"
	}
	level := "info"
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level: level, FilePath: root + "/state/memex.log",
		MaxSizeMB: 10, MaxFiles: 5, WriteToStderr: false,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func runTUI(ctx context.Context) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("memex requires an interactive terminal; run 'memex index' for headless ingestion")
	}

	a, err := buildApp(ctx, rootFlag, modelFlag, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Config.AutoIndexOnSearchEnabled() {
		a.Ctrl.TriggerIndex(ctx, a.Options)
	}

	model := ui.New(a.Ctrl, a.FT, a.Config, ui.GetStyles(noColor))
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
