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

// Package mixpanel provides clients for the Mixpanel Engage (profile query)
// and Export (raw event) APIs, plus the event-summary builder used by the
// sync pipeline and the HTTP endpoint.
package mixpanel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/spaceo/mautic-sync/internal/models"
)

// ClientConfig holds the Mixpanel API settings the client needs.
type ClientConfig struct {
	ProjectID string
	APISecret string
	APIToken  string
	EngageURL string
	ExportURL string

	// Engage calls are quick; export streams can run much longer.
	EngageTimeout time.Duration
	ExportTimeout time.Duration
}

// Client queries the Mixpanel APIs. Auth is Basic with the API secret as
// username and an empty password on every endpoint.
type Client struct {
	engageClient *http.Client
	exportClient *http.Client
	cfg          ClientConfig
}

// NewClient creates a Mixpanel API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.EngageURL == "" {
		cfg.EngageURL = "https://mixpanel.com/api/2.0/engage"
	}
	if cfg.ExportURL == "" {
		cfg.ExportURL = "https://data.mixpanel.com/api/2.0/export"
	}
	if cfg.EngageTimeout == 0 {
		cfg.EngageTimeout = 30 * time.Second
	}
	if cfg.ExportTimeout == 0 {
		cfg.ExportTimeout = 120 * time.Second
	}
	return &Client{
		engageClient: &http.Client{Timeout: cfg.EngageTimeout},
		exportClient: &http.Client{Timeout: cfg.ExportTimeout},
		cfg:          cfg,
	}
}

// engageResult is one row of the Engage API response.
type engageResult struct {
	DistinctID string         `json:"$distinct_id"`
	Properties map[string]any `json:"$properties"`
}

// engageResponse represents the Engage API response envelope.
type engageResponse struct {
	Results []engageResult `json:"results"`
}

// ProfilesCreatedOn fetches all profiles whose $created falls on the given
// day (YYYY-MM-DD).
func (c *Client) ProfilesCreatedOn(ctx context.Context, day string) ([]models.Profile, error) {
	where := fmt.Sprintf(
		`properties["$created"] >= "%sT00:00:00" and properties["$created"] < "%sT23:59:59"`,
		day, day,
	)
	slog.Info("fetching profiles created on day", "day", day, "limit", 1000)
	profiles, err := c.fetchProfiles(ctx, where, 1000)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles for day %s: %w", day, err)
	}
	slog.Info("newly created profiles found", "day", day, "count", len(profiles))
	return profiles, nil
}

// ProfilesSince fetches profiles whose $last_seen is at or after the given
// ISO-8601 timestamp. Used by the incremental sync mode.
func (c *Client) ProfilesSince(ctx context.Context, sinceISO string) ([]models.Profile, error) {
	where := fmt.Sprintf(`properties["$last_seen"] >= "%s"`, sinceISO)
	slog.Info("incremental profile fetch", "since", sinceISO, "limit", 100)
	profiles, err := c.fetchProfiles(ctx, where, 100)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles since %s: %w", sinceISO, err)
	}
	slog.Info("updated profiles found", "since", sinceISO, "count", len(profiles))
	return profiles, nil
}

// ProfileByDistinctID looks up a single profile, matching first on the
// distinct_id property and then on $distinct_id. Returns nil when no
// profile matches either predicate.
func (c *Client) ProfileByDistinctID(ctx context.Context, distinctID string) (*models.Profile, error) {
	wheres := []string{
		fmt.Sprintf(`properties["distinct_id"] == "%s"`, distinctID),
		fmt.Sprintf(`properties["$distinct_id"] == "%s"`, distinctID),
	}
	for _, where := range wheres {
		profiles, err := c.fetchProfiles(ctx, where, 1)
		if err != nil {
			return nil, fmt.Errorf("single profile fetch: %w", err)
		}
		if len(profiles) > 0 {
			p := profiles[0]
			return &p, nil
		}
	}
	return nil, nil
}

// fetchProfiles runs one Engage query and unwraps the result rows into
// Profile records. The distinct id is folded into the property bag so
// downstream consumers see it under "distinct_id" as well.
func (c *Client) fetchProfiles(ctx context.Context, where string, limit int) ([]models.Profile, error) {
	params := url.Values{}
	params.Set("project_id", c.cfg.ProjectID)
	params.Set("where", where)
	params.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.EngageURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build engage request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APISecret, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.engageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("engage query error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("engage returned HTTP %d", resp.StatusCode)
	}

	var envelope engageResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode engage response: %w", err)
	}

	profiles := make([]models.Profile, 0, len(envelope.Results))
	for _, r := range envelope.Results {
		props := r.Properties
		if props == nil {
			props = make(map[string]any)
		}
		if _, ok := props["distinct_id"]; !ok {
			props["distinct_id"] = r.DistinctID
		}
		profiles = append(profiles, models.Profile{
			DistinctID: r.DistinctID,
			Props:      props,
		})
	}
	return profiles, nil
}
