// LegalX TUI - terminal client for the LegalX legal-document QA service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/legalx-tui/internal/api"
	"github.com/jeranaias/legalx-tui/internal/config"
	"github.com/jeranaias/legalx-tui/internal/job"
	"github.com/jeranaias/legalx-tui/internal/push"
	"github.com/jeranaias/legalx-tui/internal/session"
	"github.com/jeranaias/legalx-tui/internal/storage"
	"github.com/jeranaias/legalx-tui/internal/ui/chat"
	"github.com/jeranaias/legalx-tui/internal/ui/styles"
	"github.com/jeranaias/legalx-tui/internal/watch"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.legalx/config.toml)")
		serverURL   = flag.String("server", "", "override API server URL")
		userID      = flag.String("user", "", "override user id")
		watchDir    = flag.String("watch", "", "directory to watch for document uploads")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("legalx %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath, *serverURL, *userID, *watchDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, serverURL, userID, watchDir string) error {
	// Load configuration, CLI flags override file and environment.
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if userID != "" {
		cfg.User.ID = userID
	}
	if watchDir != "" {
		cfg.Upload.WatchDir = watchDir
	}
	if cfg.User.ID == "" {
		cfg.User.ID = os.Getenv("USER")
		if cfg.User.ID == "" {
			cfg.User.ID = "default"
		}
	}

	// The TUI owns the terminal, so logs go to a file.
	logPath, err := cfg.LogFile()
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "legalx")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	// ==========================================================================
	// WIRING
	// ==========================================================================

	client := api.NewClient(cfg.Server.BaseURL).
		WithTimeout(time.Duration(cfg.Server.TimeoutSecs) * time.Second).
		WithMaxRetries(cfg.Server.MaxRetries)

	// A failed health check is not fatal; the push channel keeps
	// redialing and the user sees the connection state in the UI.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Health(ctx); err != nil {
		log.Printf("server health check failed: %v", err)
	}
	cancel()

	stateDir, err := cfg.StateDir()
	if err != nil {
		return fmt.Errorf("resolve state dir: %w", err)
	}
	store, err := storage.NewStore(stateDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	sessions, err := session.NewManager(store, cfg.User.ID)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	ctrl := job.NewController(client, cfg.User.ID).WithPriority(cfg.Chat.Priority)

	pushMgr := push.NewManager(client.WebSocketURL(cfg.User.ID))
	go pushMgr.Run()
	defer pushMgr.Stop()

	var watchFiles <-chan string
	if cfg.Upload.WatchDir != "" {
		watcher, err := watch.NewWatcher(cfg.Upload.WatchDir)
		if err != nil {
			return fmt.Errorf("create upload watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start upload watcher: %w", err)
		}
		defer watcher.Close()
		watchFiles = watcher.Files()
		log.Printf("watching %s for uploads", cfg.Upload.WatchDir)
	}

	// ==========================================================================
	// RUN
	// ==========================================================================

	m := chat.New(styles.NewThemeForMode(cfg.UI.Theme), chat.Deps{
		Client:         client,
		Controller:     ctrl,
		Sessions:       sessions,
		PushEvents:     pushMgr.Events(),
		WatchFiles:     watchFiles,
		UserID:         cfg.User.ID,
		UploadCategory: cfg.Upload.Category,
		ExportDir:      ".",
		ShowQueueStats: cfg.UI.ShowQueueStats,
		Compact:        cfg.UI.CompactMode,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
