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
	"encoding/json"
	"sort"
	"strings"

	"github.com/spaceo/mautic-sync/internal/models"
)

// PropMode controls which event properties survive rendering.
type PropMode string

const (
	// PropsAll keeps the full property bag.
	PropsAll PropMode = "all"
	// PropsCustom drops Mixpanel-internal properties (keys prefixed "$").
	PropsCustom PropMode = "custom"
)

// SummaryOptions shape the rendered event list inside an event summary.
type SummaryOptions struct {
	// FilterEventNames, when non-empty, is an allow-list of event names.
	FilterEventNames []string

	// LimitEvents caps the list to the N most recent events. 0 = no cap.
	LimitEvents int

	// ShortSummary reduces events outside DetailedEventNames to their name
	// (and timestamp) only.
	ShortSummary bool

	// DetailedEventNames keep their properties even in short summaries,
	// rendered with DetailedProps visibility.
	DetailedEventNames []string

	// DetailedProps / GlobalProps select property visibility for detailed
	// vs. ordinary events. Zero value means PropsAll.
	DetailedProps PropMode
	GlobalProps   PropMode

	// NoTimestamp strips timestamps from the rendered events.
	NoTimestamp bool

	// ExcludeProps removes the named keys from every rendered property bag.
	ExcludeProps []string
}

// BuildSummary renders fetched events into the profile-plus-events summary
// payload. Events are sorted descending by timestamp before capping, so the
// cap keeps the most recent ones.
func BuildSummary(profile *models.Contact, events []models.Event, opts SummaryOptions) *models.EventSummary {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	if len(opts.FilterEventNames) > 0 {
		allow := nameSet(opts.FilterEventNames)
		kept := sorted[:0]
		for _, ev := range sorted {
			if allow[ev.Name] {
				kept = append(kept, ev)
			}
		}
		sorted = kept
	}

	if opts.LimitEvents > 0 && len(sorted) > opts.LimitEvents {
		sorted = sorted[:opts.LimitEvents]
	}

	detailed := nameSet(opts.DetailedEventNames)
	rendered := make([]models.SummaryEvent, 0, len(sorted))
	for _, ev := range sorted {
		rendered = append(rendered, renderEvent(ev, detailed[ev.Name], opts))
	}

	return &models.EventSummary{
		ProfileProperties: profile,
		UserEvents:        rendered,
	}
}

// renderEvent applies the short-summary and property-visibility rules to
// one event.
func renderEvent(ev models.Event, isDetailed bool, opts SummaryOptions) models.SummaryEvent {
	out := models.SummaryEvent{Name: ev.Name}
	if !opts.NoTimestamp {
		ts := ev.Timestamp
		out.Timestamp = &ts
	}

	if opts.ShortSummary && !isDetailed {
		return out
	}

	mode := opts.GlobalProps
	if isDetailed {
		mode = opts.DetailedProps
	}

	props := make(map[string]any, len(ev.Props))
	for k, v := range ev.Props {
		if mode == PropsCustom && strings.HasPrefix(k, "$") {
			continue
		}
		props[k] = v
	}
	for _, k := range opts.ExcludeProps {
		delete(props, k)
	}
	out.Props = props
	return out
}

// MarshalSummary renders the summary as the indent-2 JSON blob stored on
// contacts and fed to the AI summarizer.
func MarshalSummary(s *models.EventSummary) (string, error) {
	if s.UserEvents == nil {
		s.UserEvents = []models.SummaryEvent{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
