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

// Package sync orchestrates the per-profile pipeline: filter, map, fetch
// events, generate email copy, merge, upsert. Profiles are processed one at
// a time, start to finish; a failure abandons that profile and the batch
// continues.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spaceo/mautic-sync/internal/ai"
	"github.com/spaceo/mautic-sync/internal/checkpoint"
	"github.com/spaceo/mautic-sync/internal/mapping"
	"github.com/spaceo/mautic-sync/internal/mixpanel"
	"github.com/spaceo/mautic-sync/internal/models"
)

// ProfileSource is the slice of the Mixpanel client the driver needs.
type ProfileSource interface {
	ProfilesCreatedOn(ctx context.Context, day string) ([]models.Profile, error)
	ProfilesSince(ctx context.Context, sinceISO string) ([]models.Profile, error)
	ProfileByDistinctID(ctx context.Context, distinctID string) (*models.Profile, error)
	UserEvents(ctx context.Context, q mixpanel.EventQuery) ([]models.Event, error)
}

// Summarizer generates the email copy for one event summary.
type Summarizer interface {
	SummarizeEvents(ctx context.Context, eventData string) ai.Result
}

// Upserter creates or updates one contact in the CRM.
type Upserter interface {
	Upsert(ctx context.Context, contact *models.Contact, distinctID, knownID string) (string, error)
}

// IDCache records Mautic ids across runs. Implemented by idcache.Cache.
type IDCache interface {
	Get(ctx context.Context, distinctID string) (string, error)
	Set(ctx context.Context, distinctID, mauticID string) error
}

// Config holds the driver's dependencies and policy knobs.
type Config struct {
	Source     ProfileSource
	Mapper     *mapping.Mapper
	Summarizer Summarizer
	Upserter   Upserter
	IDs        IDCache // optional; nil disables the contact-id cache
	Checkpoint *checkpoint.Store

	// TestDomainMarker excludes internal test accounts: any email
	// containing this substring is dropped before processing.
	TestDomainMarker string

	// EventWindowDays is the lookback for the per-contact event summary.
	EventWindowDays int

	// DetailedEventNames keep full properties in the short summary.
	DetailedEventNames []string
}

// Syncer drives sync runs.
type Syncer struct {
	cfg Config
}

// NewSyncer creates a sync driver.
func NewSyncer(cfg Config) *Syncer {
	if cfg.EventWindowDays == 0 {
		cfg.EventWindowDays = 2
	}
	return &Syncer{cfg: cfg}
}

// RunSingle syncs one user by distinct id. Does not touch the checkpoint.
func (s *Syncer) RunSingle(ctx context.Context, distinctID string) error {
	log := runLogger("single")

	profile, err := s.cfg.Source.ProfileByDistinctID(ctx, distinctID)
	if err != nil {
		return fmt.Errorf("single-user fetch: %w", err)
	}
	if profile == nil {
		log.Info("no user found", "distinct_id", distinctID)
		return nil
	}
	s.syncProfiles(ctx, log, []models.Profile{*profile}, false)
	return nil
}

// RunDay syncs all profiles created on the given day (YYYY-MM-DD). Does not
// touch the checkpoint.
func (s *Syncer) RunDay(ctx context.Context, day string) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("invalid date %q, must be YYYY-MM-DD", day)
	}
	log := runLogger("day")

	profiles, err := s.cfg.Source.ProfilesCreatedOn(ctx, day)
	if err != nil {
		return fmt.Errorf("day fetch: %w", err)
	}
	s.syncProfiles(ctx, log, profiles, false)
	return nil
}

// RunIncremental syncs profiles updated since the checkpoint and, when the
// whole batch has been attempted, advances the checkpoint. There is no
// partial-progress checkpointing: a crash mid-batch replays the window,
// which is safe because upserts are keyed by contact id/email.
func (s *Syncer) RunIncremental(ctx context.Context) error {
	log := runLogger("incremental")

	since := s.cfg.Checkpoint.Load()
	profiles, err := s.cfg.Source.ProfilesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("incremental fetch: %w", err)
	}
	s.syncProfiles(ctx, log, profiles, true)
	return nil
}

// syncProfiles runs the pipeline for a batch. updateCheckpoint is set only
// for incremental runs.
func (s *Syncer) syncProfiles(ctx context.Context, log *slog.Logger, profiles []models.Profile, updateCheckpoint bool) {
	if len(profiles) == 0 {
		log.Info("no profiles to process")
		return
	}

	// Drop empty and internal test-domain emails before any network call.
	// An unset marker disables the test-domain filter rather than matching
	// every address.
	filtered := profiles[:0]
	for _, p := range profiles {
		email := p.Email()
		if email == "" {
			continue
		}
		if s.cfg.TestDomainMarker != "" && strings.Contains(email, s.cfg.TestDomainMarker) {
			continue
		}
		filtered = append(filtered, p)
	}
	log.Info("profiles filtered", "total", len(profiles), "remaining", len(filtered))

	var synced, failed int
	for i, profile := range filtered {
		if ctx.Err() != nil {
			log.Warn("run cancelled, abandoning batch",
				"remaining", len(filtered)-i,
				"error", ctx.Err(),
			)
			break
		}
		if err := s.syncOne(ctx, log, profile); err != nil {
			log.Error("profile sync failed", "distinct_id", profile.DistinctID, "error", err)
			failed++
			continue
		}
		synced++
	}

	log.Info("batch complete", "synced", synced, "failed", failed)

	if updateCheckpoint {
		// A cancelled run forfeits the checkpoint update so the interrupted
		// window is replayed in full on the next run.
		if ctx.Err() != nil {
			log.Warn("run cancelled, checkpoint not advanced")
			return
		}
		newRunTime := time.Now().UTC().Format(time.RFC3339)
		if err := s.cfg.Checkpoint.Save(newRunTime); err != nil {
			log.Error("failed to save checkpoint", "error", err)
			return
		}
		log.Info("checkpoint updated", "last_run_time", newRunTime)
	}
}

// syncOne maps, enriches, and upserts a single profile.
func (s *Syncer) syncOne(ctx context.Context, log *slog.Logger, profile models.Profile) error {
	contact := s.cfg.Mapper.Map(profile)
	contact.MixpanelDistinctID = profile.DistinctID

	// Short, detailed-filtered event window for the AI pipeline. Absence of
	// events is an ordinary outcome.
	events, err := s.cfg.Source.UserEvents(ctx, mixpanel.EventQuery{
		DistinctID: profile.DistinctID,
		Email:      contact.Email,
		DaysBack:   s.cfg.EventWindowDays,
	})
	if err != nil {
		log.Warn("event fetch failed, continuing without events",
			"distinct_id", profile.DistinctID,
			"error", err,
		)
		events = nil
	}

	summary := mixpanel.BuildSummary(contact, events, mixpanel.SummaryOptions{
		ShortSummary:       true,
		DetailedEventNames: s.cfg.DetailedEventNames,
		DetailedProps:      mixpanel.PropsCustom,
		GlobalProps:        mixpanel.PropsAll,
		NoTimestamp:        true,
	})
	summaryJSON, err := mixpanel.MarshalSummary(summary)
	if err != nil {
		return fmt.Errorf("marshal event summary: %w", err)
	}
	contact.EventSummary = summaryJSON

	result := s.cfg.Summarizer.SummarizeEvents(ctx, summaryJSON)
	contact.FirstEmailTS = time.Now().UTC().Format(mapping.MauticTimeLayout)
	if result.Err != "" {
		contact.FirstEmailError = result.Err
		contact.FirstEmailSubject = ""
		contact.FirstEmailBody = ""
	} else {
		contact.FirstEmailSubject = result.Subject
		contact.FirstEmailBody = result.Body
		contact.FirstEmailError = ""
	}

	if contact.Email == "" {
		return nil
	}

	knownID := profile.MauticID()
	if knownID == "" && s.cfg.IDs != nil {
		cached, err := s.cfg.IDs.Get(ctx, profile.DistinctID)
		if err != nil {
			log.Warn("contact-id cache lookup failed", "distinct_id", profile.DistinctID, "error", err)
		} else {
			knownID = cached
		}
	}

	newID, err := s.cfg.Upserter.Upsert(ctx, contact, profile.DistinctID, knownID)
	if err != nil {
		return err
	}

	// Record freshly assigned ids so the next run PATCHes instead of
	// POSTing a duplicate.
	if newID != "" && newID != knownID && s.cfg.IDs != nil {
		if err := s.cfg.IDs.Set(ctx, profile.DistinctID, newID); err != nil {
			log.Warn("contact-id cache write failed", "distinct_id", profile.DistinctID, "error", err)
		}
	}
	return nil
}

// runLogger tags all log lines of one run with a fresh run id.
func runLogger(mode string) *slog.Logger {
	return slog.With("run_id", uuid.NewString(), "mode", mode)
}
