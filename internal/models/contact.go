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

// Contact is the Mautic-facing projection of a Profile. JSON tags are the
// Mautic contact field aliases; the Mautic API takes these at the top level
// of the request body (not nested under "contact").
//
// Optional fields use omitempty so properties absent from the source profile
// are never sent. Numeric fields are pointers so a genuine 0.0 still
// serialises. The four bookkeeping fields (ipAddress, lastActive,
// overwriteWithBlank, owner) are always injected by the mapper and always
// serialise.
type Contact struct {
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"firstname,omitempty"`
	LastName   string `json:"lastname,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
	Platform   string `json:"platform,omitempty"`
	AppUserID  string `json:"app_user_id,omitempty"`
	Currency   string `json:"currency,omitempty"`

	Membership                       string   `json:"membership,omitempty"`
	SubscriptionCost                 string   `json:"subscription_cost,omitempty"`
	SubscriptionName                 string   `json:"subscription_name,omitempty"`
	SubscriptionStatus               string   `json:"subscription_status,omitempty"`
	SubscriptionPlan                 string   `json:"subscription_plan,omitempty"`
	SubscriptionExpireDate           string   `json:"subscription_expire_date,omitempty"`
	SubscriptionOriginalPurchaseDate string   `json:"subscription_original_purchase_date,omitempty"`
	SubscriptionPurchasedDate        string   `json:"subscription_purchased_date,omitempty"`
	UserSubscribed                   string   `json:"user_subscribed,omitempty"`
	LastUsed                         string   `json:"last_used,omitempty"`
	TotalEntries                     *float64 `json:"total_entries,omitempty"`
	JobCount                         *float64 `json:"job_count,omitempty"`
	TotalEarns                       *float64 `json:"total_earns,omitempty"`
	TotalHours                       *float64 `json:"total_hours,omitempty"`

	// Always injected by the mapper.
	IPAddress          string `json:"ipAddress"`
	LastActive         string `json:"lastActive"`
	OverwriteWithBlank string `json:"overwriteWithBlank"`
	Owner              string `json:"owner"`

	// Computed by the sync driver.
	MixpanelDistinctID string          `json:"mixpanel_distinct_id,omitempty"`
	EventSummary       string          `json:"mixpanel_event_summary,omitempty"`
	FirstEmailTS       string          `json:"mixpanel_first_email_ts,omitempty"`
	FirstEmailSubject  string          `json:"mixpanel_first_email_subj"`
	FirstEmailBody     string          `json:"mixpanel_first_email_body"`
	FirstEmailError    string          `json:"mixpanel_first_email_erro"`
	PricingDisplay     *PricingDisplay `json:"pricing_display,omitempty"`
}

// PricingDisplay is the localized pricing block attached to a contact for
// email templating. Paid plans carry the current/yearly/savings trio; the
// free plan carries only the weekly teaser price.
type PricingDisplay struct {
	CurrentPlan  string `json:"current_plan"`
	CurrentUSD   string `json:"current_usd,omitempty"`
	CurrentLocal string `json:"current_local,omitempty"`
	YearlyUSD    string `json:"yearly_usd,omitempty"`
	YearlyLocal  string `json:"yearly_local,omitempty"`
	SavingsUSD   string `json:"savings_usd,omitempty"`
	SavingsLocal string `json:"savings_local,omitempty"`
	WeeklyUSD    string `json:"weekly_usd,omitempty"`
	WeeklyLocal  string `json:"weekly_local,omitempty"`
	CurrencyCode string `json:"currency_code"`
}
