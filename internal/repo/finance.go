package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionFinanceRow is one billable session joined with its booking date and
// the therapist's start of service, as needed by the naive aggregation.
type SessionFinanceRow struct {
	Value          decimal.Decimal
	OverrideShare  *decimal.Decimal
	PaymentDone    bool
	ShareDone      bool
	StartOfService *time.Time
}

// PeriodTotals is the result of the SQL-side aggregation.
type PeriodTotals struct {
	Revenue      decimal.Decimal
	Payouts      decimal.Decimal
	SessionCount int
}

type FinanceRepo struct {
	DB *gorm.DB
}

func NewFinanceRepo(db *gorm.DB) *FinanceRepo { return &FinanceRepo{DB: db} }

// SessionRowsForPeriod fetches the rows for the naive (in-application)
// aggregation: billable sessions whose booking date falls in [from, to).
func (r *FinanceRepo) SessionRowsForPeriod(ctx context.Context, from, to time.Time) ([]SessionFinanceRow, error) {
	var list []SessionFinanceRow
	err := r.DB.WithContext(ctx).Raw(`
		SELECT s.value, s.override_share, s.payment_done, s.share_done, t.start_of_service
		FROM sessions s
		JOIN bookings b ON b.id = s.booking_id
		LEFT JOIN therapists t ON t.id = s.therapist_id
		WHERE b.date >= ? AND b.date < ?
		ORDER BY b.date, b.start_time
	`, from, to).Scan(&list).Error
	return list, err
}

// PeriodTotalsOptimized pushes the same formulas into the query: revenue is
// the sum of paid session values, payouts apply the override or the tenure
// tier (>= 365.25 days of service -> 50%, else 45%, missing start -> 45%),
// rounded to 2 places per session exactly like the application-side path.
// Tenure is real elapsed time from the start date at UTC midnight, the same
// instant the driver scans a DATE column as.
func (r *FinanceRepo) PeriodTotalsOptimized(ctx context.Context, from, to time.Time) (PeriodTotals, error) {
	var row struct {
		Revenue      decimal.Decimal
		Payouts      decimal.Decimal
		SessionCount int
	}
	err := r.DB.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN s.payment_done THEN s.value END), 0) AS revenue,
			COALESCE(SUM(CASE WHEN s.share_done THEN
				COALESCE(s.override_share,
					ROUND(s.value * (CASE
						WHEN t.start_of_service IS NOT NULL
						 AND now() - (t.start_of_service::timestamp AT TIME ZONE 'UTC') >= interval '365.25 days' THEN 0.50
						ELSE 0.45
					END), 2))
			END), 0) AS payouts,
			COUNT(s.id) AS session_count
		FROM sessions s
		JOIN bookings b ON b.id = s.booking_id
		LEFT JOIN therapists t ON t.id = s.therapist_id
		WHERE b.date >= ? AND b.date < ?
	`, from, to).Scan(&row).Error
	if err != nil {
		return PeriodTotals{}, err
	}
	return PeriodTotals{Revenue: row.Revenue, Payouts: row.Payouts, SessionCount: row.SessionCount}, nil
}
