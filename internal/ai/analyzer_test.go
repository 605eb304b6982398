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

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		subject string
		body    string
		wantErr bool
	}{
		{
			name:    "well-formed markers",
			in:      "SUBJECT: Welcome back\n\nBODY:\nWe noticed you started a job.",
			subject: "Welcome back",
			body:    "We noticed you started a job.",
		},
		{
			name:    "fallback paragraph scan",
			in:      "BODY: Short note.\n\nSUBJECT: Hi there",
			subject: "Hi there",
			body:    "Short note.",
		},
		{
			name:    "missing body",
			in:      "SUBJECT: Hi\n\nno marker here",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parseResponse(tt.in)
			if tt.wantErr {
				if r.Err == "" {
					t.Fatalf("expected parse error, got %+v", r)
				}
				return
			}
			if r.Err != "" {
				t.Fatalf("unexpected parse error: %s", r.Err)
			}
			if r.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", r.Subject, tt.subject)
			}
			if r.Body != tt.body {
				t.Errorf("body = %q, want %q", r.Body, tt.body)
			}
		})
	}
}

func TestTruncateEventData(t *testing.T) {
	a := NewAnalyzer(Config{APIKey: "test"})

	payload := map[string]any{
		"profile_properties": map[string]any{
			"email":       "a@b.test",
			"firstname":   "Alice",
			"city":        "Berlin", // not essential, must be dropped
			"job_count":   2,
			"total_hours": nil, // nil gets the numeric default
		},
		"user_events": func() []map[string]any {
			var evs []map[string]any
			// 15 whitelisted events; only the first 10 survive.
			for i := 0; i < 15; i++ {
				evs = append(evs, map[string]any{"event_name": "Job Selected"})
			}
			evs = append(evs, map[string]any{"event_name": "Irrelevant Scroll"})
			return evs
		}(),
	}
	raw, _ := json.Marshal(payload)

	out := a.truncateEventData(string(raw))

	var truncated truncPayload
	if err := json.Unmarshal([]byte(out), &truncated); err != nil {
		t.Fatalf("truncated output not JSON: %v", err)
	}
	if truncated.Profile["email"] != "a@b.test" {
		t.Errorf("email = %v", truncated.Profile["email"])
	}
	if _, ok := truncated.Profile["city"]; ok {
		t.Error("non-essential field survived truncation")
	}
	if truncated.Profile["total_hours"] != float64(0) {
		t.Errorf("total_hours = %v, want numeric default 0", truncated.Profile["total_hours"])
	}
	if truncated.Profile["lastname"] != "" {
		t.Errorf("lastname = %v, want empty-string default", truncated.Profile["lastname"])
	}
	if len(truncated.Events) != maxEvents {
		t.Errorf("events = %d, want capped at %d", len(truncated.Events), maxEvents)
	}
	for _, ev := range truncated.Events {
		if ev["event_name"] == "Irrelevant Scroll" {
			t.Error("non-whitelisted event survived truncation")
		}
	}
}

func TestTruncateEventData_UnparseableHardCap(t *testing.T) {
	a := NewAnalyzer(Config{APIKey: "test"})
	big := "not json " + strings.Repeat("x", rawFallbackBytes*2)

	out := a.truncateEventData(big)
	if len(out) != rawFallbackBytes {
		t.Errorf("hard cap = %d bytes, want %d", len(out), rawFallbackBytes)
	}
}

// TestSummarizeEvents_EndToEnd runs the full chat-completion round trip
// against a stub API server.
func TestSummarizeEvents_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "SUBJECT: Keep tracking\n\nBODY:\nYou logged 12 hours last week.",
				}},
			},
		})
	}))
	defer server.Close()

	a := NewAnalyzer(Config{
		APIKey:       "test",
		BaseURL:      server.URL + "/v1",
		Model:        "gpt-4",
		SystemPrompt: "test prompt",
	})

	r := a.SummarizeEvents(context.Background(), `{"profile_properties":{},"user_events":[]}`)
	if r.Err != "" {
		t.Fatalf("unexpected error: %s", r.Err)
	}
	if r.Subject != "Keep tracking" {
		t.Errorf("subject = %q", r.Subject)
	}
	if r.Body != "You logged 12 hours last week." {
		t.Errorf("body = %q", r.Body)
	}
}

// TestSummarizeEvents_APIError verifies request failures surface as an error
// string on the result, not a Go error.
func TestSummarizeEvents_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	a := NewAnalyzer(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "gpt-4"})
	r := a.SummarizeEvents(context.Background(), "{}")
	if r.Err == "" || !strings.HasPrefix(r.Err, "OpenAI error:") {
		t.Fatalf("err = %q, want OpenAI error prefix", r.Err)
	}
	if r.Subject != "" || r.Body != "" {
		t.Errorf("failed result should carry no copy: %+v", r)
	}
}
