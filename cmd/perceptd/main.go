// Perception server - orchestrates screen capture, detection, OCR, and WebSocket connections
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentsight/percept/internal/capture"
	"github.com/agentsight/percept/internal/config"
	"github.com/agentsight/percept/internal/ocr"
	"github.com/agentsight/percept/internal/orchestrator"
	"github.com/agentsight/percept/internal/record"
	"github.com/agentsight/percept/internal/server"
	"github.com/agentsight/percept/internal/window"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	source := capture.New()
	defer source.Close()

	windows := window.New(cfg.ExcludedWindowTitles)

	// A missing OCR engine degrades text reads, not the whole substrate
	engine, err := ocr.NewEngine(cfg.OCREngine, cfg.TesseractPath, cfg.OCRLang)
	if err != nil {
		slog.Warn("ocr engine unavailable, text reads will fail", "engine", cfg.OCREngine, "error", err)
		engine = ocr.Unavailable{Err: err}
	}

	reader := ocr.NewReader(source, windows, engine, cfg.OCRTimeout)
	recorder := record.NewRecorder(cfg.HistoryCapacity)

	// Create orchestrator
	orch := orchestrator.New(cfg, source, windows, reader, recorder)

	// Create HTTP/WebSocket server
	srv := server.New(orch)

	// Start orchestrator in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := orch.Start(ctx); err != nil {
			slog.Error("orchestrator error", "error", err)
		}
	}()

	// Start HTTP server. Write timeout covers batched OCR reads, which
	// hold the response open for several engine invocations.
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("perception server starting", "http", cfg.HTTPAddr, "ocr", cfg.OCREngine)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	orch.Stop()
	slog.Info("shutdown complete")
}
