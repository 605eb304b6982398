// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Event-summary server
//
// Serves the mapped profile plus full event history for a Mixpanel user,
// for ad-hoc inspection:
//
//	GET /event-summary/{distinct_id}
//	GET /health
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaceo/mautic-sync/internal/config"
	"github.com/spaceo/mautic-sync/internal/mapping"
	"github.com/spaceo/mautic-sync/internal/mixpanel"
	"github.com/spaceo/mautic-sync/internal/server"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	source := mixpanel.NewClient(mixpanel.ClientConfig{
		ProjectID:     cfg.Mixpanel.ProjectID,
		APISecret:     cfg.Mixpanel.APISecret,
		APIToken:      cfg.Mixpanel.APIToken,
		EngageURL:     cfg.Mixpanel.EngageURL,
		ExportURL:     cfg.Mixpanel.ExportURL,
		EngageTimeout: cfg.EngageTimeout,
		ExportTimeout: cfg.ExportTimeout,
	})

	// No pricing calculator: the summary endpoint reports raw profile state.
	handler := server.NewHandler(source, mapping.New(nil))

	mux := http.NewServeMux()
	handler.Routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second, // event export can be slow
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("event-summary server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("event-summary server stopped")
}
