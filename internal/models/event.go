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

package models

// Event is one user-action record from the Mixpanel export endpoint.
// Events are transient: fetched, filtered, and discarded per sync run.
type Event struct {
	Name      string
	Timestamp int64 // epoch seconds
	Props     map[string]any
}

// SummaryEvent is the rendered form of an Event inside an event summary.
// The timestamp is a pointer so the no-timestamp rendering mode omits it,
// and Props is omitted entirely for short-summary (name only) entries.
type SummaryEvent struct {
	Name      string         `json:"event_name"`
	Timestamp *int64         `json:"timestamp,omitempty"`
	Props     map[string]any `json:"all_event_properties,omitempty"`
}

// EventSummary is the profile-plus-events payload handed to the AI
// summarizer, stored on the contact, and served by the event-summary
// HTTP endpoint.
type EventSummary struct {
	ProfileProperties *Contact       `json:"profile_properties"`
	UserEvents        []SummaryEvent `json:"user_events"`
}
