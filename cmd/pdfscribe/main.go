package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dvoron/pdfscribe/internal/gemini"
	"github.com/dvoron/pdfscribe/internal/prefs"
	"github.com/dvoron/pdfscribe/internal/project"
	"github.com/dvoron/pdfscribe/internal/session"
	"github.com/dvoron/pdfscribe/internal/staging"
	"github.com/dvoron/pdfscribe/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		homeDir     string
		modelID     string
		noAltScreen bool
		logFile     string
	)
	cmd := &cobra.Command{
		Use:          "pdfscribe",
		Short:        "Convert PDFs to editable Markdown projects",
		Long:         "pdfscribe sends a PDF to Gemini, opens the converted Markdown in a split editor, and keeps named projects in a local database.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(homeDir, modelID, logFile, noAltScreen)
		},
	}
	cmd.Flags().StringVar(&homeDir, "home", "", "directory for settings, projects, and staged documents (default ~/.pdfscribe)")
	cmd.Flags().StringVar(&modelID, "model", "", "set and persist the Gemini model identifier")
	cmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append debug logs to this file")
	return cmd
}

func run(homeDir, modelID, logFile string, noAltScreen bool) error {
	if homeDir == "" {
		base, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		homeDir = filepath.Join(base, ".pdfscribe")
	}
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return fmt.Errorf("create app directory: %w", err)
	}

	// Background logging goes to a file or nowhere; stdout belongs to the UI.
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "pdfscribe")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	manager, err := prefs.Open(homeDir)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	if modelID != "" {
		if err := manager.SetModelID(modelID); err != nil {
			return fmt.Errorf("set model: %w", err)
		}
	}

	store, err := project.OpenStore(homeDir)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	defer store.Close()

	staged, err := staging.New(homeDir)
	if err != nil {
		return fmt.Errorf("prepare document storage: %w", err)
	}

	controller := session.New(session.Config{
		Prefs:     manager,
		Projects:  store,
		Staging:   staged,
		Generator: gemini.New(gemini.Config{}),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	controller.Start(ctx)

	opts := []tea.ProgramOption{}
	if !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(tui.Config{Session: controller}), opts...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}
