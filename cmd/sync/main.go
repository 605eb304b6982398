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

// Mixpanel → Mautic sync
//
// Entry point for the batch sync tool. It:
//  1. Loads configuration from .env / config.yaml / environment
//  2. Connects to Redis for the contact-id cache (optional)
//  3. Loads the App Store pricing matrix
//  4. Fetches Mixpanel profiles (single user, one day, or incremental)
//  5. Maps, AI-enriches, and upserts each profile into Mautic
//  6. Advances the checkpoint after incremental runs
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/spaceo/mautic-sync/internal/ai"
	"github.com/spaceo/mautic-sync/internal/checkpoint"
	"github.com/spaceo/mautic-sync/internal/config"
	"github.com/spaceo/mautic-sync/internal/idcache"
	"github.com/spaceo/mautic-sync/internal/mapping"
	"github.com/spaceo/mautic-sync/internal/mautic"
	"github.com/spaceo/mautic-sync/internal/mixpanel"
	"github.com/spaceo/mautic-sync/internal/pricing"
	syncer "github.com/spaceo/mautic-sync/internal/sync"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	singleID := flag.String("single", "", "sync one user by Mixpanel distinct id")
	day := flag.String("day", "", "sync all profiles created on this day (YYYY-MM-DD)")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateSync(); err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel on SIGTERM/SIGINT so partially processed batches stop cleanly.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// --- Contact-id cache (Redis, optional) ---
	var ids syncer.IDCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		cache := idcache.New(redis.NewClient(opt))
		if err := cache.Ping(ctx); err != nil {
			slog.Warn("Redis unreachable, contact-id cache disabled", "error", err)
		} else {
			slog.Info("connected to Redis")
			ids = cache
		}
	} else {
		slog.Info("no REDIS_URL configured, contact-id cache disabled")
	}

	// --- Pricing matrix ---
	// Degrades to USD pass-through when the file is missing.
	calc := pricing.Load(cfg.PricingFile)

	// --- Mixpanel ---
	source := mixpanel.NewClient(mixpanel.ClientConfig{
		ProjectID:     cfg.Mixpanel.ProjectID,
		APISecret:     cfg.Mixpanel.APISecret,
		APIToken:      cfg.Mixpanel.APIToken,
		EngageURL:     cfg.Mixpanel.EngageURL,
		ExportURL:     cfg.Mixpanel.ExportURL,
		EngageTimeout: cfg.EngageTimeout,
		ExportTimeout: cfg.ExportTimeout,
	})

	// --- Mautic ---
	upserter := mautic.NewClient(mauticHTTPClient(ctx, cfg), cfg.Mautic.BaseURL, cfg.Mautic.Username, cfg.Mautic.Password)

	// --- AI summarizer ---
	analyzer := ai.NewAnalyzer(ai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		Model:        cfg.OpenAI.Model,
		Temperature:  cfg.OpenAI.Temperature,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		SystemPrompt: cfg.OpenAI.SystemPrompt,
	})

	driver := syncer.NewSyncer(syncer.Config{
		Source:             source,
		Mapper:             mapping.New(calc),
		Summarizer:         analyzer,
		Upserter:           upserter,
		IDs:                ids,
		Checkpoint:         checkpoint.NewStore(cfg.CheckpointFile),
		TestDomainMarker:   cfg.TestDomainMarker,
		EventWindowDays:    cfg.EventWindowDays,
		DetailedEventNames: cfg.DetailedEventNames,
	})

	switch {
	case *singleID != "":
		err = driver.RunSingle(ctx, *singleID)
	case *day != "":
		err = driver.RunDay(ctx, *day)
	default:
		err = driver.RunIncremental(ctx)
	}
	if err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}

	slog.Info("sync finished")
}

// mauticHTTPClient builds the HTTP client for the Mautic API. With an OAuth
// client configured it returns a token-refreshing client; otherwise a plain
// client whose requests carry Basic auth.
func mauticHTTPClient(ctx context.Context, cfg *config.Config) *http.Client {
	if cfg.Mautic.OAuth.ClientID == "" {
		return &http.Client{Timeout: cfg.MauticTimeout}
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.Mautic.OAuth.ClientID,
		ClientSecret: cfg.Mautic.OAuth.ClientSecret,
		TokenURL:     cfg.Mautic.OAuth.TokenURL,
	}
	client := creds.Client(ctx)
	client.Timeout = cfg.MauticTimeout
	return client
}
