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

package mixpanel

import (
	"bufio"
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

// EventQuery defines the user and time window for an event export.
type EventQuery struct {
	DistinctID string
	// Email adds a third match strategy when the export carries no
	// distinct id for older events. Optional.
	Email string

	// DaysBack derives the window when no explicit range is given. The
	// end date is clamped to yesterday — the export endpoint rejects
	// ranges that include the current (incomplete) day.
	DaysBack int

	// StartDate/EndDate (YYYY-MM-DD) override DaysBack when both are set.
	StartDate string
	EndDate   string
}

// exportLine is one newline-delimited JSON object from the export stream.
type exportLine struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// UserEvents fetches raw events for a user from the export endpoint.
//
// Match strategies are tried in a fixed priority order — distinct_id,
// $distinct_id, then email when available — and querying stops at the first
// strategy that yields any events. (The source system had two near-duplicate
// fetchers with diverging semantics here; stop-at-first is the behavior of
// the one the sync driver used, and is now the single documented behavior.)
//
// Returns nil with no error when every strategy comes back empty: callers
// treat "no events" as an ordinary outcome, not a failure.
func (c *Client) UserEvents(ctx context.Context, q EventQuery) ([]models.Event, error) {
	fromDate, toDate := q.window()

	wheres := []string{
		fmt.Sprintf(`properties["distinct_id"] == "%s"`, q.DistinctID),
		fmt.Sprintf(`properties["$distinct_id"] == "%s"`, q.DistinctID),
	}
	if q.Email != "" {
		wheres = append(wheres, fmt.Sprintf(`properties["email"] == "%s"`, q.Email))
	}

	var events []models.Event
	for _, where := range wheres {
		fetched, err := c.exportEvents(ctx, where, fromDate, toDate)
		if err != nil {
			slog.Warn("event export strategy failed", "error", err)
			continue
		}
		if len(fetched) > 0 {
			events = fetched
			break
		}
	}
	if len(events) == 0 {
		return nil, nil
	}

	// Local window filter for explicit ranges; the export endpoint works in
	// project time, so the response can spill past the requested days.
	if q.StartDate != "" && q.EndDate != "" {
		events = filterWindow(events, q.StartDate, q.EndDate)
	}
	return events, nil
}

// window resolves the from/to dates for the export request.
func (q EventQuery) window() (string, string) {
	if q.StartDate != "" && q.EndDate != "" {
		today := time.Now().Format("2006-01-02")
		end := q.EndDate
		if end > today {
			slog.Warn("export end date is in the future, clamping to today", "end", end, "today", today)
			end = today
		}
		return q.StartDate, end
	}
	now := time.Now()
	from := now.AddDate(0, 0, -q.DaysBack).Format("2006-01-02")
	to := now.AddDate(0, 0, -1).Format("2006-01-02")
	return from, to
}

// exportEvents runs one export query and normalizes the NDJSON stream.
// Malformed lines are skipped, not fatal.
func (c *Client) exportEvents(ctx context.Context, where, fromDate, toDate string) ([]models.Event, error) {
	params := url.Values{}
	params.Set("where", where)
	params.Set("from_date", fromDate)
	params.Set("to_date", toDate)
	if c.cfg.APIToken != "" {
		params.Set("api_key", c.cfg.APIToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ExportURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build export request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APISecret, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.exportClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("export returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var events []models.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw exportLine
		if err := json.Unmarshal(line, &raw); err != nil {
			slog.Warn("skipping malformed export line", "error", err)
			continue
		}
		events = append(events, normalizeEvent(raw))
	}
	if err := scanner.Err(); err != nil {
		// Keep whatever decoded cleanly; a cut stream is still usable.
		slog.Warn("export stream ended early", "error", err, "events", len(events))
	}
	return events, nil
}

// normalizeEvent lifts the export line into the canonical Event record.
// The timestamp lives in the property bag under "time" (epoch seconds).
func normalizeEvent(raw exportLine) models.Event {
	props := raw.Properties
	if props == nil {
		props = make(map[string]any)
	}
	var ts int64
	switch t := props["time"].(type) {
	case float64:
		ts = int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			ts = n
		}
	}
	return models.Event{
		Name:      raw.Event,
		Timestamp: ts,
		Props:     props,
	}
}

// filterWindow keeps events whose timestamp falls inside [start, end+1d).
func filterWindow(events []models.Event, startDate, endDate string) []models.Event {
	start, err1 := time.Parse("2006-01-02", startDate)
	end, err2 := time.Parse("2006-01-02", endDate)
	if err1 != nil || err2 != nil {
		return events
	}
	end = end.AddDate(0, 0, 1)

	filtered := events[:0]
	for _, ev := range events {
		t := time.Unix(ev.Timestamp, 0).UTC()
		if !t.Before(start) && t.Before(end) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}
