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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spaceo/mautic-sync/internal/models"
)

// TestUserEvents_SkipsMalformedLines verifies NDJSON decoding tolerance:
// broken lines are dropped, the rest of the stream survives.
func TestUserEvents_SkipsMalformedLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"event":"App Open","properties":{"time":1700000000,"$os":"iOS"}}
{not valid json
{"event":"Job Selected","properties":{"time":1700000100}}
`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{APISecret: "secret", ExportURL: server.URL})
	events, err := c.UserEvents(context.Background(), EventQuery{DistinctID: "u1", DaysBack: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (malformed line skipped)", len(events))
	}
	if events[0].Name != "App Open" || events[0].Timestamp != 1700000000 {
		t.Errorf("first event = %+v", events[0])
	}
}

// TestUserEvents_StrategyFallback verifies the match strategies run in
// priority order and stop at the first one that yields events.
func TestUserEvents_StrategyFallback(t *testing.T) {
	var wheres []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		where := r.URL.Query().Get("where")
		wheres = append(wheres, where)
		// Only the $distinct_id predicate has data.
		if strings.Contains(where, `properties["$distinct_id"]`) {
			w.Write([]byte(`{"event":"App Open","properties":{"time":1700000000}}` + "\n"))
			return
		}
		// Empty stream for the others.
	}))
	defer server.Close()

	c := NewClient(ClientConfig{APISecret: "secret", ExportURL: server.URL})
	events, err := c.UserEvents(context.Background(), EventQuery{
		DistinctID: "u1",
		Email:      "a@b.test",
		DaysBack:   2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	// distinct_id tried first, $distinct_id second; email never reached.
	if len(wheres) != 2 {
		t.Fatalf("queries = %d, want 2: %v", len(wheres), wheres)
	}
	if !strings.Contains(wheres[0], `properties["distinct_id"]`) {
		t.Errorf("first strategy = %q, want distinct_id", wheres[0])
	}
}

// TestUserEvents_AllEmpty verifies that no events is an ordinary nil result.
func TestUserEvents_AllEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := NewClient(ClientConfig{APISecret: "secret", ExportURL: server.URL})
	events, err := c.UserEvents(context.Background(), EventQuery{DistinctID: "u1", DaysBack: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

// TestUserEvents_HTTPErrorTriesNextStrategy verifies a failing strategy does
// not abort the query.
func TestUserEvents_HTTPErrorTriesNextStrategy(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"event":"App Open","properties":{"time":1700000000}}` + "\n"))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{APISecret: "secret", ExportURL: server.URL})
	events, err := c.UserEvents(context.Background(), EventQuery{DistinctID: "u1", DaysBack: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 from the fallback strategy", len(events))
	}
}

func TestFilterWindow(t *testing.T) {
	day := func(d string) int64 {
		ts, err := time.Parse("2006-01-02 15:04:05", d)
		if err != nil {
			t.Fatalf("bad test timestamp %q: %v", d, err)
		}
		return ts.Unix()
	}
	events := []models.Event{
		{Name: "before", Timestamp: day("2026-01-01 23:59:59")},
		{Name: "start", Timestamp: day("2026-01-02 00:00:00")},
		{Name: "end", Timestamp: day("2026-01-03 23:59:00")},
		{Name: "after", Timestamp: day("2026-01-04 00:00:00")},
	}

	kept := filterWindow(events, "2026-01-02", "2026-01-03")
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
	if kept[0].Name != "start" || kept[1].Name != "end" {
		t.Errorf("kept = %v, %v; want start, end", kept[0].Name, kept[1].Name)
	}
}
