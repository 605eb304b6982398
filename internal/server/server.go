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

// Package server exposes per-user event summaries over HTTP for ad-hoc
// inspection. Unlike the sync pipeline it returns the full event history
// with all properties and timestamps, not the short AI-oriented summary.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spaceo/mautic-sync/internal/mapping"
	"github.com/spaceo/mautic-sync/internal/mixpanel"
	"github.com/spaceo/mautic-sync/internal/models"
)

// summaryWindowDays is the lookback for the on-demand summary. A year is
// wide enough to cover any realistically active account.
const summaryWindowDays = 365

// ProfileSource is the slice of the Mixpanel client the handler needs.
type ProfileSource interface {
	ProfileByDistinctID(ctx context.Context, distinctID string) (*models.Profile, error)
	UserEvents(ctx context.Context, q mixpanel.EventQuery) ([]models.Event, error)
}

// Handler serves event-summary lookups.
type Handler struct {
	source ProfileSource
	mapper *mapping.Mapper
}

// NewHandler creates an event-summary handler. The mapper should be built
// without a pricing calculator; the summary endpoint reports raw profile
// state, not offer pricing.
func NewHandler(source ProfileSource, mapper *mapping.Mapper) *Handler {
	return &Handler{source: source, mapper: mapper}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /event-summary/{distinct_id}", h.ServeEventSummary)
	mux.HandleFunc("GET /health", h.ServeHealth)
}

// ServeEventSummary returns the mapped profile plus its full event history
// for one distinct id.
func (h *Handler) ServeEventSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	distinctID := r.PathValue("distinct_id")

	profile, err := h.source.ProfileByDistinctID(ctx, distinctID)
	if err != nil {
		slog.Error("profile lookup failed", "distinct_id", distinctID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if profile == nil {
		// Unknown users are not an error condition; serve the empty summary.
		slog.Info("no user found", "distinct_id", distinctID)
		writeJSON(w, http.StatusOK, &models.EventSummary{
			ProfileProperties: &models.Contact{},
			UserEvents:        []models.SummaryEvent{},
		})
		return
	}

	contact := h.mapper.Map(*profile)
	contact.MixpanelDistinctID = profile.DistinctID

	events, err := h.source.UserEvents(ctx, mixpanel.EventQuery{
		DistinctID: profile.DistinctID,
		Email:      contact.Email,
		DaysBack:   summaryWindowDays,
	})
	if err != nil {
		slog.Error("event fetch failed", "distinct_id", distinctID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	summary := mixpanel.BuildSummary(contact, events, mixpanel.SummaryOptions{
		DetailedProps: mixpanel.PropsAll,
		GlobalProps:   mixpanel.PropsAll,
	})

	writeJSON(w, http.StatusOK, summary)
}

// ServeHealth reports liveness.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
