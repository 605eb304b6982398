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

// Package pricing loads the static App Store price matrix and computes
// localized subscription prices and yearly-upgrade savings for display.
// The matrix is read-only and loaded once per process; every lookup
// degrades to a USD pass-through rather than failing.
package pricing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spaceo/mautic-sync/internal/models"
)

// Plan reference prices in USD. Weekly plans annualize ×52, monthly ×12,
// both compared against the yearly plan price.
const (
	WeeklyPlanUSD  = 4.99
	MonthlyPlanUSD = 6.99
	YearlyPlanUSD  = 49.99

	// tierTolerance is the maximum |row − target| difference for a matrix
	// row to count as the tier for a USD reference price.
	tierTolerance = 0.01
)

// Matrix is the raw price matrix: one header column per currency/country,
// one row per price tier.
type Matrix struct {
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

// countryColumns maps ISO alpha-2 country codes to the matrix column key and
// display currency. Countries not listed here fall through to USD.
var countryColumns = map[string]struct {
	columnKey string
	currency  string
}{
	"US": {"USD", "USD"},
	"GB": {"GBP", "GBP"},
	"DE": {"Germany_EUR", "EUR"},
	"FR": {"France_EUR", "EUR"},
	"IT": {"Italy_EUR", "EUR"},
	"ES": {"Spain_EUR", "EUR"},
	"NL": {"Netherlands_EUR", "EUR"},
	"IE": {"Ireland_EUR", "EUR"},
	"FI": {"Finland_EUR", "EUR"},
	"BE": {"Belgium_EUR", "EUR"},
	"AT": {"Austria_EUR", "EUR"},
}

// euroCountries are the euro-zone countries with their own matrix column,
// labeled "<Country> (EUR)".
var euroCountries = []string{
	"Germany", "France", "Austria", "Belgium", "Spain",
	"Italy", "Netherlands", "Ireland", "Finland",
}

// Calculator resolves local prices against the matrix. A Calculator built
// from a nil matrix is valid and answers every query with the USD
// pass-through.
type Calculator struct {
	matrix      *Matrix
	columnIndex map[string]int
}

// New builds a calculator over the given matrix. nil is allowed.
func New(m *Matrix) *Calculator {
	c := &Calculator{matrix: m, columnIndex: make(map[string]int)}
	if m == nil {
		return c
	}
	for i, col := range m.Header {
		if strings.Contains(col, "(Customer Price)") {
			currency := strings.SplitN(col, " ", 2)[0]
			c.columnIndex[currency] = i
		}
	}
	for _, country := range euroCountries {
		label := country + " (EUR)"
		for i, col := range m.Header {
			if col == label {
				c.columnIndex[country+"_EUR"] = i
				break
			}
		}
	}
	return c
}

// Load reads the price matrix from a JSON file. On any failure it logs and
// returns a pass-through calculator, mirroring the tool's
// degrade-instead-of-fail policy for pricing.
func Load(path string) *Calculator {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("failed to load pricing data", "path", path, "error", err)
		return New(nil)
	}
	var m Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Error("failed to parse pricing data", "path", path, "error", err)
		return New(nil)
	}
	return New(&m)
}

// findTier returns the matrix row whose USD Customer Price is within
// tierTolerance of the target, or nil.
func (c *Calculator) findTier(usdPrice float64) []any {
	if c.matrix == nil {
		return nil
	}
	usdIndex, ok := c.columnIndex["USD"]
	if !ok {
		return nil
	}
	for _, row := range c.matrix.Rows {
		if usdIndex >= len(row) {
			continue
		}
		v, ok := toFloat(row[usdIndex])
		if !ok {
			continue
		}
		if diff := v - usdPrice; diff < tierTolerance && diff > -tierTolerance {
			return row
		}
	}
	return nil
}

// PricesForCountry returns (usd price, local price, currency code) for a
// USD reference price. Unknown country codes and missing columns pass the
// USD price through in both slots.
func (c *Calculator) PricesForCountry(usdPrice float64, countryCode string) (float64, float64, string) {
	if countryCode == "" {
		return usdPrice, usdPrice, "USD"
	}
	mapping, ok := countryColumns[strings.ToUpper(countryCode)]
	if !ok {
		return usdPrice, usdPrice, "USD"
	}
	priceIndex, ok := c.columnIndex[mapping.columnKey]
	if !ok {
		slog.Warn("price column not found", "currency", mapping.currency, "column", mapping.columnKey)
		return usdPrice, usdPrice, mapping.currency
	}
	tier := c.findTier(usdPrice)
	if tier == nil || priceIndex >= len(tier) {
		return usdPrice, usdPrice, mapping.currency
	}
	local, ok := toFloat(tier[priceIndex])
	if !ok {
		return usdPrice, usdPrice, mapping.currency
	}
	return usdPrice, local, mapping.currency
}

// Savings is the result of comparing a recurring plan against the yearly
// plan, in USD and in the local currency.
type Savings struct {
	USD   PlanSavings
	Local PlanSavings

	Currency string
}

// PlanSavings holds the annualized comparison for one currency.
type PlanSavings struct {
	Original       float64
	Target         float64
	OriginalYearly float64
	TargetYearly   float64
	Savings        float64
}

// CalculateSavings annualizes the base plan (×52 for weekly prices at or
// below 5 USD, ×12 otherwise) and compares against the target yearly price.
func (c *Calculator) CalculateSavings(basePlanUSD, targetPlanUSD float64, countryCode string) Savings {
	baseUSD, baseLocal, currency := c.PricesForCountry(basePlanUSD, countryCode)
	targetUSD, targetLocal, _ := c.PricesForCountry(targetPlanUSD, countryCode)

	multiplier := 12.0
	if basePlanUSD <= 5.0 { // weekly plan
		multiplier = 52.0
	}
	baseYearlyLocal := baseLocal * multiplier
	baseYearlyUSD := baseUSD * multiplier

	return Savings{
		USD: PlanSavings{
			Original:       baseUSD,
			Target:         targetUSD,
			OriginalYearly: baseYearlyUSD,
			TargetYearly:   targetUSD,
			Savings:        baseYearlyUSD - targetUSD,
		},
		Local: PlanSavings{
			Original:       baseLocal,
			Target:         targetLocal,
			OriginalYearly: baseYearlyLocal,
			TargetYearly:   targetLocal,
			Savings:        baseYearlyLocal - targetLocal,
		},
		Currency: currency,
	}
}

// DisplayForPlan builds the pricing block for a contact given its
// subscription_plan value and country code. Unrecognized plans get the
// free-plan teaser pricing.
func (c *Calculator) DisplayForPlan(subscriptionPlan, countryCode string) *models.PricingDisplay {
	switch {
	case strings.Contains(subscriptionPlan, "weeklyNew2"):
		return c.paidDisplay("weekly", WeeklyPlanUSD, countryCode)
	case strings.Contains(subscriptionPlan, "monthlyNew"):
		return c.paidDisplay("monthly", MonthlyPlanUSD, countryCode)
	default:
		_, weeklyLocal, currency := c.PricesForCountry(WeeklyPlanUSD, countryCode)
		return &models.PricingDisplay{
			CurrentPlan:  "free",
			WeeklyUSD:    FormatPrice(WeeklyPlanUSD, "USD"),
			WeeklyLocal:  FormatPrice(weeklyLocal, currency),
			CurrencyCode: currency,
		}
	}
}

func (c *Calculator) paidDisplay(plan string, planUSD float64, countryCode string) *models.PricingDisplay {
	s := c.CalculateSavings(planUSD, YearlyPlanUSD, countryCode)
	return &models.PricingDisplay{
		CurrentPlan:  plan,
		CurrentUSD:   FormatPrice(planUSD, "USD"),
		CurrentLocal: FormatPrice(s.Local.Original, s.Currency),
		YearlyUSD:    FormatPrice(YearlyPlanUSD, "USD"),
		YearlyLocal:  FormatPrice(s.Local.Target, s.Currency),
		SavingsUSD:   FormatPrice(s.USD.Savings, "USD"),
		SavingsLocal: FormatPrice(s.Local.Savings, s.Currency),
		CurrencyCode: s.Currency,
	}
}

// FormatPrice renders an amount with its currency symbol and two decimals.
// Unknown currencies fall back to the dollar prefix.
func FormatPrice(amount float64, currency string) string {
	symbol := "$"
	switch currency {
	case "EUR":
		symbol = "€"
	case "GBP":
		symbol = "£"
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// toFloat converts a matrix cell (JSON number or numeric string) to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
