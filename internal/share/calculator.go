// Package share computes the provider payout for a billable session. This is
// the single implementation used by list views, the bulk recompute pass and
// the financial aggregator; the payout is never persisted, so recomputing is
// always idempotent.
package share

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenure tiers. Providers with at least one year of service (365.25 days,
// leap-adjusted) earn 50% of the session value; everyone else 45%. A missing
// start-of-service date falls back to the junior tier, never to zero.
var (
	tierSenior = decimal.NewFromInt(50)
	tierJunior = decimal.NewFromInt(45)
	oneHundred = decimal.NewFromInt(100)
)

// minTenureSeconds is one year with the leap-day fraction included.
const minTenureSeconds = 365.25 * 24 * 60 * 60

// Result is the payout for one session value.
type Result struct {
	Payout     decimal.Decimal
	Percent    decimal.Decimal // informational, rounded to 2 places
	Overridden bool
}

// Calculate returns the payout for amount. When override is non-nil it wins
// outright and the percent is derived from it for display. at is the
// evaluation time; the zero value means now.
func Calculate(amount decimal.Decimal, startOfService *time.Time, at time.Time, override *decimal.Decimal) Result {
	if override != nil {
		percent := decimal.Zero
		if !amount.IsZero() {
			percent = override.Div(amount).Mul(oneHundred).Round(2)
		}
		return Result{Payout: *override, Percent: percent, Overridden: true}
	}
	if at.IsZero() {
		at = time.Now()
	}
	tier := tierJunior
	if startOfService != nil && at.Sub(*startOfService).Seconds() >= minTenureSeconds {
		tier = tierSenior
	}
	payout := amount.Mul(tier).Div(oneHundred).Round(2)
	return Result{Payout: payout, Percent: tier}
}
