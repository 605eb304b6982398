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

// Package mapping projects Mixpanel profiles onto Mautic contact records.
//
// The mapper never returns an error: date-like values that fail to parse
// degrade to the current time, numeric values to 0.0, and unrecognized
// country codes to an empty country name. Profile keys outside the fixed
// translation are dropped.
package mapping

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"

	"github.com/spaceo/mautic-sync/internal/models"
	"github.com/spaceo/mautic-sync/internal/pricing"
)

// MauticTimeLayout is the datetime format Mautic expects in field values.
const MauticTimeLayout = "2006-01-02 15:04:05"

// dateLayouts are tried in order when coercing date-like profile values.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// now is swapped out in tests to pin the parse-failure fallback.
var now = time.Now

// Mapper builds Mautic contacts from Mixpanel profiles. The pricing
// calculator is optional; when nil the pricing_display block is skipped
// (the event-summary server path has no use for it).
type Mapper struct {
	calc *pricing.Calculator
}

// New creates a mapper with an optional pricing calculator.
func New(calc *pricing.Calculator) *Mapper {
	return &Mapper{calc: calc}
}

// Map produces the Mautic-facing contact for a profile.
func (m *Mapper) Map(p models.Profile) *models.Contact {
	c := &models.Contact{
		Email:              p.Email(),
		FirstName:          p.StringProp("$first_name"),
		LastName:           p.StringProp("$last_name"),
		City:               p.StringProp("$city"),
		State:              p.StringProp("$region"),
		Country:            CountryName(p.StringProp("$country_code")),
		Timezone:           p.StringProp("$timezone"),
		FullName:           p.StringProp("$name"),
		DeviceID:           p.StringProp("$device_id"),
		DeviceName:         p.StringProp("deviceName"),
		AppVersion:         p.StringProp("App Version"),
		Platform:           p.StringProp("platform"),
		AppUserID:          p.StringProp("app_user_id"),
		Currency:           p.StringProp("currency"),
		Membership:         p.StringProp("Membership"),
		SubscriptionCost:   p.StringProp("Subscription Cost"),
		SubscriptionName:   p.StringProp("Subscription Name"),
		SubscriptionStatus: p.StringProp("Subscription Status"),
		SubscriptionPlan:   p.StringProp("subscription_plan"),
		UserSubscribed:     p.StringProp("userSubscribed"),
	}

	c.LastUsed = mapDate(p, "last_used")
	c.SubscriptionExpireDate = mapDate(p, "subscription_expire_date")
	c.SubscriptionOriginalPurchaseDate = mapDate(p, "subscription_original_purchase_date")
	c.SubscriptionPurchasedDate = mapDate(p, "subscription_purchased_date")

	c.TotalEntries = mapNumber(p, "Total Entries")
	c.JobCount = mapNumber(p, "job_count")
	c.TotalEarns = mapNumber(p, "total_earns")
	c.TotalHours = mapNumber(p, "total_hours")

	// Bookkeeping fields Mautic requires on every upsert.
	c.IPAddress = p.StringProp("$ip")
	if c.IPAddress == "" {
		c.IPAddress = "127.0.0.1"
	}
	if lastSeen := p.StringProp("$last_seen"); lastSeen != "" {
		c.LastActive = ToMauticDatetime(lastSeen)
	} else {
		c.LastActive = now().Format(MauticTimeLayout)
	}
	c.OverwriteWithBlank = ""
	c.Owner = "1"

	if m.calc != nil {
		c.PricingDisplay = m.calc.DisplayForPlan(c.SubscriptionPlan, detectCountryCode(p))
	}

	return c
}

// mapDate coerces a date-like property, leaving the field empty when the
// profile does not carry the key at all.
func mapDate(p models.Profile, key string) string {
	raw := p.StringProp(key)
	if raw == "" {
		return ""
	}
	return ToMauticDatetime(raw)
}

// mapNumber coerces a numeric property. Present-but-unparseable values
// become 0.0; absent values stay unset.
func mapNumber(p models.Profile, key string) *float64 {
	v, ok := p.Props[key]
	if !ok || v == nil || v == "" {
		return nil
	}
	n := toNumber(v)
	return &n
}

// ToMauticDatetime converts any date/time string Mixpanel emits into
// Mautic's "YYYY-MM-DD HH:MM:SS" format. Falls back to the current time
// when parsing fails; never errors.
func ToMauticDatetime(value string) string {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(MauticTimeLayout)
		}
	}
	slog.Debug("unparseable datetime, using current time", "value", value)
	return now().Format(MauticTimeLayout)
}

// toNumber converts a profile value (string or JSON number) to float64,
// falling back to 0.0.
func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

// CountryName translates a two-letter ISO code into the country's English
// display name. Unrecognized or empty codes yield "".
func CountryName(alpha2 string) string {
	if alpha2 == "" {
		return ""
	}
	cc := countries.ByName(strings.ToUpper(alpha2))
	if !cc.IsValid() {
		return ""
	}
	return cc.String()
}

// CountryCodeOf translates a full country name back into its alpha-2 code,
// defaulting to US when the name is empty or unrecognized.
func CountryCodeOf(name string) string {
	if name == "" {
		return "US"
	}
	cc := countries.ByName(name)
	if !cc.IsValid() {
		return "US"
	}
	return cc.Alpha2()
}

// detectCountryCode resolves a profile's country for pricing: explicit code
// properties win, then the full-name properties are translated back.
func detectCountryCode(p models.Profile) string {
	if code := p.StringProp("$country_code"); code != "" {
		return code
	}
	if code := p.StringProp("country_code"); code != "" {
		return code
	}
	name := p.StringProp("country")
	if name == "" {
		name = p.StringProp("$country")
	}
	return CountryCodeOf(name)
}
