// Package finance computes per-month financial summaries: gross revenue from
// paid sessions, therapist payouts, manual ledger entries and the resulting
// net. Two implementations exist on purpose — a naive one that fetches rows
// and computes in Go, and an optimized one that pushes the same formulas into
// SQL — and tests hold them to identical results.
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/cache"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/share"
)

// Store is the read side the aggregator needs.
type Store interface {
	SessionRowsForPeriod(ctx context.Context, from, to time.Time) ([]repo.SessionFinanceRow, error)
	PeriodTotalsOptimized(ctx context.Context, from, to time.Time) (repo.PeriodTotals, error)
	LedgerTotalsByPeriod(ctx context.Context, from, to time.Time) (in, out decimal.Decimal, err error)
}

// PeriodSummary is the derived month summary; it is never persisted.
type PeriodSummary struct {
	Period       string          `json:"period"` // "YYYY-MM"
	Revenue      decimal.Decimal `json:"revenue"`
	Payouts      decimal.Decimal `json:"payouts"`
	ManualIn     decimal.Decimal `json:"manual_in"`
	ManualOut    decimal.Decimal `json:"manual_out"`
	Net          decimal.Decimal `json:"net"`
	SessionCount int             `json:"session_count"`
}

// RepoStore binds the session finance queries and the manual ledger into a
// single Store.
type RepoStore struct {
	Finance *repo.FinanceRepo
	Ledger  *repo.LedgerRepo
}

func (s RepoStore) SessionRowsForPeriod(ctx context.Context, from, to time.Time) ([]repo.SessionFinanceRow, error) {
	return s.Finance.SessionRowsForPeriod(ctx, from, to)
}

func (s RepoStore) PeriodTotalsOptimized(ctx context.Context, from, to time.Time) (repo.PeriodTotals, error) {
	return s.Finance.PeriodTotalsOptimized(ctx, from, to)
}

func (s RepoStore) LedgerTotalsByPeriod(ctx context.Context, from, to time.Time) (in, out decimal.Decimal, err error) {
	return s.Ledger.TotalsByPeriod(ctx, from, to)
}

type Aggregator struct {
	Store Store
	Cache *cache.TTL
	// Optimized switches SummarizePeriod to the SQL-side aggregation.
	Optimized bool
}

func NewAggregator(store Store, c *cache.TTL) *Aggregator {
	return &Aggregator{Store: store, Cache: c, Optimized: true}
}

// Options control a single summarize call.
type Options struct {
	// BypassCache forces a fresh computation; the result still refreshes
	// the cache entry.
	BypassCache bool
}

// SummarizePeriod computes the summary for one calendar month. Errors bubble
// up as-is; there is no silent fallback to stale cache data.
func (a *Aggregator) SummarizePeriod(ctx context.Context, year int, month time.Month, opts Options) (*PeriodSummary, error) {
	if month < time.January || month > time.December {
		return nil, apperr.Validationf("invalid month %d", month)
	}
	key := fmt.Sprintf("finance:summary:%04d-%02d:optimized=%t", year, month, a.Optimized)
	if a.Cache != nil && !opts.BypassCache {
		if v, ok := a.Cache.Get(key); ok {
			if s, ok := v.(*PeriodSummary); ok {
				return s, nil
			}
		}
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var (
		totals repo.PeriodTotals
		err    error
	)
	if a.Optimized {
		totals, err = a.Store.PeriodTotalsOptimized(ctx, from, to)
	} else {
		totals, err = a.naiveTotals(ctx, from, to)
	}
	if err != nil {
		return nil, err
	}
	manualIn, manualOut, err := a.Store.LedgerTotalsByPeriod(ctx, from, to)
	if err != nil {
		return nil, err
	}

	s := &PeriodSummary{
		Period:       fmt.Sprintf("%04d-%02d", year, month),
		Revenue:      totals.Revenue,
		Payouts:      totals.Payouts,
		ManualIn:     manualIn,
		ManualOut:    manualOut,
		Net:          totals.Revenue.Add(manualIn).Sub(totals.Payouts.Add(manualOut)),
		SessionCount: totals.SessionCount,
	}
	if a.Cache != nil {
		a.Cache.Set(key, s)
	}
	return s, nil
}

// naiveTotals fetches the session rows and applies the share rules in Go.
// It must stay formula-identical to FinanceRepo.PeriodTotalsOptimized.
func (a *Aggregator) naiveTotals(ctx context.Context, from, to time.Time) (repo.PeriodTotals, error) {
	rows, err := a.Store.SessionRowsForPeriod(ctx, from, to)
	if err != nil {
		return repo.PeriodTotals{}, err
	}
	totals := repo.PeriodTotals{
		Revenue: decimal.Zero,
		Payouts: decimal.Zero,
	}
	now := time.Now()
	for _, r := range rows {
		totals.SessionCount++
		if r.PaymentDone {
			totals.Revenue = totals.Revenue.Add(r.Value)
		}
		if r.ShareDone {
			res := share.Calculate(r.Value, r.StartOfService, now, r.OverrideShare)
			totals.Payouts = totals.Payouts.Add(res.Payout)
		}
	}
	return totals, nil
}

// HistoryLastNMonths returns summaries for the n months ending at the
// current month, oldest first.
func (a *Aggregator) HistoryLastNMonths(ctx context.Context, n int, opts Options) ([]PeriodSummary, error) {
	if n <= 0 || n > 36 {
		return nil, apperr.Validationf("months must be between 1 and 36")
	}
	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	out := make([]PeriodSummary, 0, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		s, err := a.SummarizePeriod(ctx, m.Year(), m.Month(), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// YearlySummary aggregates the twelve month summaries of a year.
type YearlySummary struct {
	Year         int             `json:"year"`
	Revenue      decimal.Decimal `json:"revenue"`
	Payouts      decimal.Decimal `json:"payouts"`
	ManualIn     decimal.Decimal `json:"manual_in"`
	ManualOut    decimal.Decimal `json:"manual_out"`
	Net          decimal.Decimal `json:"net"`
	SessionCount int             `json:"session_count"`
	Months       []PeriodSummary `json:"months"`
}

func (a *Aggregator) YearlySummary(ctx context.Context, year int, opts Options) (*YearlySummary, error) {
	if year < 2000 || year > 2100 {
		return nil, apperr.Validationf("invalid year %d", year)
	}
	out := &YearlySummary{
		Year:      year,
		Revenue:   decimal.Zero,
		Payouts:   decimal.Zero,
		ManualIn:  decimal.Zero,
		ManualOut: decimal.Zero,
		Net:       decimal.Zero,
	}
	for m := time.January; m <= time.December; m++ {
		s, err := a.SummarizePeriod(ctx, year, m, opts)
		if err != nil {
			return nil, err
		}
		out.Revenue = out.Revenue.Add(s.Revenue)
		out.Payouts = out.Payouts.Add(s.Payouts)
		out.ManualIn = out.ManualIn.Add(s.ManualIn)
		out.ManualOut = out.ManualOut.Add(s.ManualOut)
		out.Net = out.Net.Add(s.Net)
		out.SessionCount += s.SessionCount
		out.Months = append(out.Months, *s)
	}
	return out, nil
}

// InvalidateAll drops every cached summary; called after bulk mutations.
func (a *Aggregator) InvalidateAll() {
	if a.Cache != nil {
		a.Cache.DeletePrefix("finance:")
	}
}
