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

package mapping

import (
	"testing"
	"time"

	"github.com/spaceo/mautic-sync/internal/models"
)

// pinNow fixes the clock for the duration of a test.
func pinNow(t *testing.T, fixed time.Time) {
	t.Helper()
	old := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = old })
}

func TestToMauticDatetime(t *testing.T) {
	pinNow(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		in   string
		want string
	}{
		{"2026-01-02T10:30:00Z", "2026-01-02 10:30:00"},
		{"2026-01-02T10:30:00", "2026-01-02 10:30:00"},
		{"2026-01-02 10:30:00", "2026-01-02 10:30:00"},
		{"2026-01-02", "2026-01-02 00:00:00"},
		// Unparseable falls back to the pinned current time.
		{"not a date", "2026-03-15 12:00:00"},
		{"", "2026-03-15 12:00:00"},
	}
	for _, tt := range tests {
		if got := ToMauticDatetime(tt.in); got != tt.want {
			t.Errorf("ToMauticDatetime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMap_BasicFields(t *testing.T) {
	m := New(nil)
	p := models.Profile{
		DistinctID: "u1",
		Props: map[string]any{
			"$email":        "  Alice@Example.COM ",
			"$first_name":   "Alice",
			"$country_code": "DE",
			"$ip":           "203.0.113.9",
			"$last_seen":    "2026-02-01T08:00:00",
			"job_count":     float64(3),
		},
	}

	c := m.Map(p)

	if c.Email != "alice@example.com" {
		t.Errorf("Email = %q, want lower-cased trimmed address", c.Email)
	}
	if c.FirstName != "Alice" {
		t.Errorf("FirstName = %q", c.FirstName)
	}
	if c.Country != "Germany" {
		t.Errorf("Country = %q, want Germany", c.Country)
	}
	if c.IPAddress != "203.0.113.9" {
		t.Errorf("IPAddress = %q", c.IPAddress)
	}
	if c.LastActive != "2026-02-01 08:00:00" {
		t.Errorf("LastActive = %q", c.LastActive)
	}
	if c.Owner != "1" {
		t.Errorf("Owner = %q, want 1", c.Owner)
	}
	if c.JobCount == nil || *c.JobCount != 3 {
		t.Errorf("JobCount = %v, want 3", c.JobCount)
	}
	if c.PricingDisplay != nil {
		t.Error("PricingDisplay should be nil without a calculator")
	}
}

func TestMap_Defaults(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	pinNow(t, fixed)

	m := New(nil)
	c := m.Map(models.Profile{DistinctID: "u2", Props: map[string]any{}})

	if c.IPAddress != "127.0.0.1" {
		t.Errorf("IPAddress = %q, want loopback default", c.IPAddress)
	}
	if c.LastActive != "2026-03-15 12:00:00" {
		t.Errorf("LastActive = %q, want pinned now", c.LastActive)
	}
	if c.Country != "" {
		t.Errorf("Country = %q, want empty for missing code", c.Country)
	}
	// Absent numeric keys stay unset, they are not zero.
	if c.TotalEntries != nil {
		t.Errorf("TotalEntries = %v, want nil", c.TotalEntries)
	}
	if c.LastUsed != "" {
		t.Errorf("LastUsed = %q, want empty for missing key", c.LastUsed)
	}
}

func TestMapNumber_UnparseableBecomesZero(t *testing.T) {
	m := New(nil)
	c := m.Map(models.Profile{Props: map[string]any{
		"total_hours": "lots",
	}})
	if c.TotalHours == nil || *c.TotalHours != 0.0 {
		t.Errorf("TotalHours = %v, want 0.0 for unparseable value", c.TotalHours)
	}
}

func TestCountryName(t *testing.T) {
	if got := CountryName("DE"); got != "Germany" {
		t.Errorf("CountryName(DE) = %q, want Germany", got)
	}
	// Case-insensitive lookup.
	if got := CountryName("de"); got != "Germany" {
		t.Errorf("CountryName(de) = %q, want Germany", got)
	}
	if got := CountryName("US"); got == "" {
		t.Error("CountryName(US) should resolve")
	}
	if got := CountryName("XX"); got != "" {
		t.Errorf("CountryName(XX) = %q, want empty", got)
	}
	if got := CountryName(""); got != "" {
		t.Errorf("CountryName(\"\") = %q, want empty", got)
	}
}

func TestCountryCodeOf(t *testing.T) {
	if got := CountryCodeOf("Germany"); got != "DE" {
		t.Errorf("CountryCodeOf(Germany) = %q, want DE", got)
	}
	if got := CountryCodeOf(""); got != "US" {
		t.Errorf("CountryCodeOf(\"\") = %q, want US default", got)
	}
	if got := CountryCodeOf("Atlantis"); got != "US" {
		t.Errorf("CountryCodeOf(Atlantis) = %q, want US default", got)
	}
}

func TestDetectCountryCode_Priority(t *testing.T) {
	// Explicit code wins over the full name.
	p := models.Profile{Props: map[string]any{
		"$country_code": "GB",
		"country":       "Germany",
	}}
	if got := detectCountryCode(p); got != "GB" {
		t.Errorf("detectCountryCode = %q, want GB", got)
	}

	// Name-only profiles translate back to a code.
	p = models.Profile{Props: map[string]any{"country": "France"}}
	if got := detectCountryCode(p); got != "FR" {
		t.Errorf("detectCountryCode = %q, want FR", got)
	}
}
