package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/handlers"
	"github.com/MegaGrindStone/chat-widget/internal/services"
)

const errLoggerKey = "err"

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, configDirName)
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, configFileName))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.logger()
	if err != nil {
		log.Fatal(err)
	}

	provider, err := cfg.Provider.provider(cfg.SystemPrompt, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating provider: %w", err))
	}

	var (
		journal       handlers.Journal
		journalCloser io.Closer
	)
	if !cfg.DisableJournal {
		journalPath := cfg.JournalPath
		if journalPath == "" {
			journalPath = filepath.Join(cfgPath, journalName)
		}
		boltJournal, err := services.NewBoltJournal(journalPath)
		if err != nil {
			log.Fatal(fmt.Errorf("error opening journal: %w", err))
		}
		journal = boltJournal
		journalCloser = boltJournal
	}

	m, err := handlers.NewMain(provider, journal, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(chatwidget.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/failures", m.HandleFailures)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	if cfg.IdleTimeout > 0 {
		go m.SweepWidgets(janitorCtx, cfg.SweepInterval, cfg.IdleTimeout)
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("provider", cfg.Provider.Kind))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String(errLoggerKey, err.Error()))
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))
	}

	stopJanitor()

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdownAll(ctx, m, srv, journalCloser); err != nil {
		logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
		if err := srv.Close(); err != nil {
			logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
		}
	}
}
