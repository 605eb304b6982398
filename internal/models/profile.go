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

// Package models defines the data structures shared across the sync pipeline.
package models

import (
	"fmt"
	"strings"
)

// Profile is a Mixpanel user profile: a stable distinct id plus the loose
// property bag returned by the Engage API. There is no fixed schema — unknown
// keys pass through untouched and each consumer reads only the keys it knows.
type Profile struct {
	DistinctID string
	Props      map[string]any
}

// StringProp returns the named property rendered as a string. Non-string
// values (numbers, booleans) are formatted, absent values yield "".
func (p Profile) StringProp(key string) string {
	v, ok := p.Props[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Email returns the $email property lower-cased and trimmed, or "" when
// the profile carries no email.
func (p Profile) Email() string {
	return strings.ToLower(strings.TrimSpace(p.StringProp("$email")))
}

// MauticID returns the locally recorded Mautic contact id carried on the
// profile, or "" when the contact has never been created.
func (p Profile) MauticID() string {
	return p.StringProp("mautic_id")
}
