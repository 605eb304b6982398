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

// Package config loads configuration from an optional .env file, an optional
// config.yaml (with ${VAR} expansion), and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MixpanelConfig holds credentials and endpoints for the Mixpanel API.
type MixpanelConfig struct {
	ProjectID string
	APISecret string
	APIToken  string
	EngageURL string
	ExportURL string
}

// MauticOAuth holds optional OAuth2 client-credentials settings for the
// Mautic API. When ClientID is empty, Basic auth is used instead.
type MauticOAuth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// MauticConfig holds the Mautic instance location and credentials.
type MauticConfig struct {
	BaseURL  string
	Username string
	Password string
	OAuth    MauticOAuth
}

// OpenAIConfig holds the chat-completion settings for the AI summarizer.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Config holds all configuration for the sync tool and the summary server.
type Config struct {
	Mixpanel MixpanelConfig
	Mautic   MauticConfig
	OpenAI   OpenAIConfig

	// Redis (Mautic contact-id cache). Optional — when empty the cache is
	// disabled and every unknown contact is created with POST.
	RedisURL string

	CheckpointFile   string
	PricingFile      string
	TestDomainMarker string

	// Event window for the per-contact summary fetched during sync.
	EventWindowDays int

	// Event names whose properties are kept in full in short summaries.
	DetailedEventNames []string

	// HTTP timeouts per endpoint class.
	EngageTimeout time.Duration
	ExportTimeout time.Duration
	MauticTimeout time.Duration

	// Server (event-summary endpoint)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mixpanel struct {
		ProjectID string `yaml:"project_id"`
		APISecret string `yaml:"api_secret"`
		APIToken  string `yaml:"api_token"`
		EngageURL string `yaml:"engage_url"`
		ExportURL string `yaml:"export_url"`
	} `yaml:"mixpanel"`
	Mautic struct {
		BaseURL  string `yaml:"base_url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		OAuth    struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			TokenURL     string `yaml:"token_url"`
		} `yaml:"oauth"`
	} `yaml:"mautic"`
	OpenAI struct {
		APIKey       string  `yaml:"api_key"`
		Model        string  `yaml:"model"`
		Temperature  float64 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		SystemPrompt string  `yaml:"system_prompt"`
	} `yaml:"openai"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	CheckpointFile     string   `yaml:"checkpoint_file"`
	PricingFile        string   `yaml:"pricing_file"`
	TestDomainMarker   string   `yaml:"test_domain_marker"`
	EventWindowDays    int      `yaml:"event_window_days"`
	DetailedEventNames []string `yaml:"detailed_event_names"`
}

// defaultDetailedEvents lists the app funnel events whose properties are kept
// in full when building short event summaries for the AI pipeline.
var defaultDetailedEvents = []string{
	"Job Selected",
	"Create Job Save Button Clicked",
	"Job Dashboard Start Work At Clicked",
	"Job Dashboard Create Work Entry Button Clicked",
	"Job Dashboard Single Work Entry Clicked",
	"Subscription Selected",
	"Subscription Plan PURCHASED",
	"Pay Period Tab Option Clicked",
	"Pay Period Single Work Entry Clicked",
	"Work Details Entry Screen Open",
}

const defaultSystemPrompt = "You are an email marketing assistant for a " +
	"work-hours tracking app. Write short, friendly, personalized emails " +
	"that reference the user's actual activity and subscription state. " +
	"Never invent data that is not present in the input."

// Load reads configuration from .env, config.yaml (if present, with env var
// expansion), and environment variables. Credential validation is deferred to
// the Validate* methods so the server can run without Mautic/OpenAI settings.
func Load() (*Config, error) {
	// Matches the original deployment layout: secrets live in .env next to
	// the binary. Absence is not an error.
	_ = godotenv.Load()

	var raw rawConfig
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		Mixpanel: MixpanelConfig{
			ProjectID: firstNonEmpty(raw.Mixpanel.ProjectID, os.Getenv("MIXPANEL_PROJECT_ID")),
			APISecret: firstNonEmpty(raw.Mixpanel.APISecret, os.Getenv("MIXPANEL_API_SECRET")),
			APIToken:  firstNonEmpty(raw.Mixpanel.APIToken, os.Getenv("MIXPANEL_API_TOKEN")),
			EngageURL: firstNonEmpty(raw.Mixpanel.EngageURL, "https://mixpanel.com/api/2.0/engage"),
			ExportURL: firstNonEmpty(raw.Mixpanel.ExportURL, "https://data.mixpanel.com/api/2.0/export"),
		},
		Mautic: MauticConfig{
			BaseURL:  firstNonEmpty(raw.Mautic.BaseURL, os.Getenv("MAUTIC_BASE_URL")),
			Username: firstNonEmpty(raw.Mautic.Username, os.Getenv("MAUTIC_USER")),
			Password: firstNonEmpty(raw.Mautic.Password, os.Getenv("MAUTIC_PASSWORD")),
			OAuth: MauticOAuth{
				ClientID:     firstNonEmpty(raw.Mautic.OAuth.ClientID, os.Getenv("MAUTIC_CLIENT_ID")),
				ClientSecret: firstNonEmpty(raw.Mautic.OAuth.ClientSecret, os.Getenv("MAUTIC_CLIENT_SECRET")),
				TokenURL:     raw.Mautic.OAuth.TokenURL,
			},
		},
		OpenAI: OpenAIConfig{
			APIKey:       firstNonEmpty(raw.OpenAI.APIKey, os.Getenv("OPENAI_API_KEY")),
			Model:        firstNonEmpty(raw.OpenAI.Model, "gpt-4"),
			Temperature:  raw.OpenAI.Temperature,
			MaxTokens:    raw.OpenAI.MaxTokens,
			SystemPrompt: firstNonEmpty(raw.OpenAI.SystemPrompt, defaultSystemPrompt),
		},
		RedisURL:           firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		CheckpointFile:     firstNonEmpty(raw.CheckpointFile, envOrDefault("CHECKPOINT_FILE", "last_run.json")),
		PricingFile:        firstNonEmpty(raw.PricingFile, envOrDefault("PRICING_FILE", "appstorepricing.json")),
		TestDomainMarker:   firstNonEmpty(raw.TestDomainMarker, envOrDefault("TEST_DOMAIN_MARKER", "spaceo")),
		EventWindowDays:    raw.EventWindowDays,
		DetailedEventNames: raw.DetailedEventNames,
		EngageTimeout:      envOrDefaultDuration("ENGAGE_TIMEOUT", 30*time.Second),
		ExportTimeout:      envOrDefaultDuration("EXPORT_TIMEOUT", 120*time.Second),
		MauticTimeout:      envOrDefaultDuration("MAUTIC_TIMEOUT", 30*time.Second),
		Port:               envOrDefaultInt("PORT", 8080),
	}

	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.5
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 500
	}
	if cfg.EventWindowDays == 0 {
		cfg.EventWindowDays = 2
	}
	if len(cfg.DetailedEventNames) == 0 {
		cfg.DetailedEventNames = defaultDetailedEvents
	}
	if cfg.Mautic.OAuth.TokenURL == "" && cfg.Mautic.BaseURL != "" {
		cfg.Mautic.OAuth.TokenURL = strings.TrimRight(cfg.Mautic.BaseURL, "/") + "/oauth/v2/token"
	}

	return cfg, nil
}

// ValidateSync checks the credentials the sync pipeline cannot run without.
func (c *Config) ValidateSync() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	if c.Mautic.BaseURL == "" {
		return fmt.Errorf("MAUTIC_BASE_URL missing")
	}
	if c.Mautic.OAuth.ClientID == "" && (c.Mautic.Username == "" || c.Mautic.Password == "") {
		return fmt.Errorf("MAUTIC_USER/MAUTIC_PASSWORD not found (and no OAuth client configured)")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not found in environment variables")
	}
	return nil
}

// ValidateServer checks the credentials the event-summary server needs.
func (c *Config) ValidateServer() error {
	if c.Mixpanel.ProjectID == "" {
		return fmt.Errorf("MIXPANEL_PROJECT_ID not found")
	}
	if c.Mixpanel.APISecret == "" {
		return fmt.Errorf("MIXPANEL_API_SECRET not found")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
