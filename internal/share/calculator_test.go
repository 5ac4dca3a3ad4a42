package share

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTenureBoundary(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	amount := dec("200.00")

	cases := []struct {
		name        string
		daysBefore  float64
		wantPercent string
		wantPayout  string
	}{
		{"364 days is junior", 364, "45", "90"},
		{"exactly 365.25 days is senior", 365.25, "50", "100"},
		{"366 days is senior", 366, "50", "100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := at.Add(-time.Duration(tc.daysBefore * 24 * float64(time.Hour)))
			got := Calculate(amount, &start, at, nil)
			assert.True(t, got.Percent.Equal(dec(tc.wantPercent)), "percent: got %s", got.Percent)
			assert.True(t, got.Payout.Equal(dec(tc.wantPayout)), "payout: got %s", got.Payout)
			assert.False(t, got.Overridden)
		})
	}
}

func TestMissingStartOfServiceFallsBackToJunior(t *testing.T) {
	got := Calculate(dec("100"), nil, time.Now(), nil)
	assert.True(t, got.Percent.Equal(dec("45")))
	assert.True(t, got.Payout.Equal(dec("45")))
}

func TestOverrideAlwaysWins(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	senior := at.AddDate(-5, 0, 0)
	override := dec("70")
	got := Calculate(dec("200"), &senior, at, &override)
	assert.True(t, got.Overridden)
	assert.True(t, got.Payout.Equal(dec("70")))
	assert.True(t, got.Percent.Equal(dec("35")), "got %s", got.Percent)
}

func TestOverrideWithZeroAmount(t *testing.T) {
	override := dec("30")
	got := Calculate(decimal.Zero, nil, time.Time{}, &override)
	assert.True(t, got.Payout.Equal(dec("30")))
	assert.True(t, got.Percent.IsZero())
}

func TestZeroEvaluationTimeMeansNow(t *testing.T) {
	start := time.Now().AddDate(-2, 0, 0)
	got := Calculate(dec("150"), &start, time.Time{}, nil)
	assert.True(t, got.Percent.Equal(dec("50")))
	assert.True(t, got.Payout.Equal(dec("75")))
}
