package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/odyssey-erp/odyssey-inventory/internal/app"
	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
	"github.com/odyssey-erp/odyssey-inventory/internal/inventory/client"
	"github.com/odyssey-erp/odyssey-inventory/internal/tui"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping terminal client")
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "inventory-tui:", err)
		os.Exit(1)
	}
}

func run() error {
	exportDir := flag.String("export-dir", ".", "directory receiving "+inventory.CSVFilename)
	logPath := flag.String("log", filepath.Join(os.TempDir(), "inventory-tui.log"), "log file")
	flag.Parse()

	cfg, err := app.LoadClientConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := app.NewClientLogger(logFile, cfg)

	remote, err := client.New(client.Config{BaseURL: cfg.StoreURL, Token: cfg.APIToken, Timeout: cfg.StoreTimeout})
	if err != nil {
		return err
	}
	screen := inventory.NewScreen(remote, inventory.ScreenOptions{Timeout: cfg.StoreTimeout, Logger: logger})
	defer screen.Close()

	logger.Info("inventory client started", slog.String("store", cfg.StoreURL))
	_, err = tea.NewProgram(tui.New(screen, tui.Options{ExportDir: *exportDir}), tea.WithAltScreen()).Run()
	return err
}
