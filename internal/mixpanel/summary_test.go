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
	"strings"
	"testing"

	"github.com/spaceo/mautic-sync/internal/models"
)

func sampleEvents() []models.Event {
	return []models.Event{
		{Name: "App Open", Timestamp: 100, Props: map[string]any{"$os": "iOS", "screen": "home"}},
		{Name: "Job Selected", Timestamp: 300, Props: map[string]any{"$os": "iOS", "job_id": "j1"}},
		{Name: "App Open", Timestamp: 200, Props: map[string]any{"$os": "iOS"}},
	}
}

func TestBuildSummary_SortsDescending(t *testing.T) {
	s := BuildSummary(&models.Contact{}, sampleEvents(), SummaryOptions{})

	if len(s.UserEvents) != 3 {
		t.Fatalf("events = %d, want 3", len(s.UserEvents))
	}
	for i := 1; i < len(s.UserEvents); i++ {
		if *s.UserEvents[i-1].Timestamp < *s.UserEvents[i].Timestamp {
			t.Fatalf("events not sorted descending: %v before %v",
				*s.UserEvents[i-1].Timestamp, *s.UserEvents[i].Timestamp)
		}
	}
}

func TestBuildSummary_LimitKeepsMostRecent(t *testing.T) {
	s := BuildSummary(&models.Contact{}, sampleEvents(), SummaryOptions{LimitEvents: 1})

	if len(s.UserEvents) != 1 {
		t.Fatalf("events = %d, want 1", len(s.UserEvents))
	}
	if s.UserEvents[0].Name != "Job Selected" {
		t.Errorf("kept event = %q, want the most recent", s.UserEvents[0].Name)
	}
}

func TestBuildSummary_CapFive(t *testing.T) {
	events := make([]models.Event, 8)
	for i := range events {
		events[i] = models.Event{Name: "App Open", Timestamp: int64(i)}
	}

	s := BuildSummary(&models.Contact{}, events, SummaryOptions{LimitEvents: 5})
	if len(s.UserEvents) != 5 {
		t.Fatalf("events = %d, want 5", len(s.UserEvents))
	}
	if *s.UserEvents[0].Timestamp != 7 {
		t.Errorf("first kept = %d, want the newest", *s.UserEvents[0].Timestamp)
	}
}

func TestBuildSummary_FilterByName(t *testing.T) {
	s := BuildSummary(&models.Contact{}, sampleEvents(), SummaryOptions{
		FilterEventNames: []string{"App Open"},
	})
	if len(s.UserEvents) != 2 {
		t.Fatalf("events = %d, want 2", len(s.UserEvents))
	}
	for _, ev := range s.UserEvents {
		if ev.Name != "App Open" {
			t.Errorf("unexpected event %q after filter", ev.Name)
		}
	}
}

func TestBuildSummary_ShortSummary(t *testing.T) {
	s := BuildSummary(&models.Contact{}, sampleEvents(), SummaryOptions{
		ShortSummary:       true,
		DetailedEventNames: []string{"Job Selected"},
		DetailedProps:      PropsCustom,
		NoTimestamp:        true,
	})

	for _, ev := range s.UserEvents {
		if ev.Timestamp != nil {
			t.Errorf("event %q kept a timestamp with NoTimestamp set", ev.Name)
		}
		switch ev.Name {
		case "Job Selected":
			// Detailed event keeps custom props, drops Mixpanel-internal ones.
			if _, ok := ev.Props["job_id"]; !ok {
				t.Error("detailed event lost its custom props")
			}
			if _, ok := ev.Props["$os"]; ok {
				t.Error("detailed event kept a $-prefixed prop in custom mode")
			}
		default:
			if ev.Props != nil {
				t.Errorf("non-detailed event %q kept props in a short summary", ev.Name)
			}
		}
	}
}

func TestBuildSummary_ExcludeProps(t *testing.T) {
	s := BuildSummary(&models.Contact{}, sampleEvents(), SummaryOptions{
		ExcludeProps: []string{"screen"},
	})
	for _, ev := range s.UserEvents {
		if _, ok := ev.Props["screen"]; ok {
			t.Error("excluded prop survived rendering")
		}
	}
}

func TestMarshalSummary(t *testing.T) {
	contact := &models.Contact{Email: "a@b.test"}
	out, err := MarshalSummary(BuildSummary(contact, nil, SummaryOptions{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"profile_properties"`) {
		t.Error("output missing profile_properties")
	}
	// No events renders an empty list, not null.
	if !strings.Contains(out, `"user_events": []`) {
		t.Errorf("output should contain an empty user_events list:\n%s", out)
	}
}
