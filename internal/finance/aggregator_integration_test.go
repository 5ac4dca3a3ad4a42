package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/cache"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/finance"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/share"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/testutil"
)

// Compara o caminho ingênuo com o agregado em SQL contra Postgres real, com
// terapeutas em volta da fronteira de um ano de casa (364, 365 e 366 dias) e
// um repasse com override. O terapeuta de 365 dias troca de faixa conforme a
// hora do dia; os dois caminhos precisam concordar sempre. Roda apenas com
// DATABASE_URL.
func TestPeriodSummaryPathsAgreeOnTenureBoundary(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	bookings := repo.NewBookingRepo(db)
	sessions := repo.NewSessionRepo(db)

	var row struct{ ID uuid.UUID }
	require.NoError(t, db.WithContext(ctx).Raw(`
		INSERT INTO patients (full_name) VALUES ('Paciente Fronteira') RETURNING id
	`).Scan(&row).Error)
	patientID := row.ID

	override := decimal.RequireFromString("70.00")
	today := time.Now().UTC().Truncate(24 * time.Hour)
	fixtures := []struct {
		daysOfService int
		value         string
		override      *decimal.Decimal
	}{
		{364, "200.00", nil},  // júnior em qualquer hora do dia
		{365, "180.00", nil},  // fronteira: 365 dias + hora atual
		{366, "150.00", nil},  // sênior em qualquer hora do dia
		{1100, "220.00", &override},
	}

	// Mês antigo para não colidir com dados existentes do banco.
	from := time.Date(2001, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	therapistIDs := make([]uuid.UUID, 0, len(fixtures))
	bookingIDs := make([]uuid.UUID, 0, len(fixtures))
	sess := make([]repo.Session, 0, len(fixtures))
	for i, f := range fixtures {
		start := today.AddDate(0, 0, -f.daysOfService)
		require.NoError(t, db.WithContext(ctx).Raw(`
			INSERT INTO therapists (full_name, start_of_service) VALUES ('Terapeuta Fronteira', ?) RETURNING id
		`, start).Scan(&row).Error)
		therapistID := row.ID
		therapistIDs = append(therapistIDs, therapistID)

		b := repo.Booking{
			TherapistID: therapistID,
			PatientID:   patientID,
			Date:        from.AddDate(0, 0, i),
			StartTime:   "14:00",
			Type:        "Sessão",
			Value:       decimal.RequireFromString(f.value),
			Status:      repo.BookingConfirmed,
		}
		require.NoError(t, bookings.Create(ctx, &b))
		bookingIDs = append(bookingIDs, b.ID)

		id := b.ID
		sess = append(sess, repo.Session{
			TherapistID:   therapistID,
			PatientID:     patientID,
			BookingID:     &id,
			Type:          b.Type,
			Value:         b.Value,
			OverrideShare: f.override,
			PaymentDone:   true,
			ShareDone:     true,
			InvoiceStatus: repo.InvoiceNotIssued,
			Status:        repo.SessionScheduled,
		})
	}
	require.NoError(t, sessions.CreateBatch(ctx, sess))
	t.Cleanup(func() {
		_, _ = sessions.DeleteByBookingIDs(ctx, bookingIDs)
		for _, id := range bookingIDs {
			_ = bookings.Delete(ctx, id)
		}
		_ = db.Exec(`DELETE FROM patients WHERE id = ?`, patientID).Error
		for _, id := range therapistIDs {
			_ = db.Exec(`DELETE FROM therapists WHERE id = ?`, id).Error
		}
	})

	store := finance.RepoStore{Finance: repo.NewFinanceRepo(db), Ledger: repo.NewLedgerRepo(db)}
	cacheOpt := cache.New(time.Minute)
	defer cacheOpt.Stop()
	cacheNaive := cache.New(time.Minute)
	defer cacheNaive.Stop()
	optimized := finance.NewAggregator(store, cacheOpt)
	naive := finance.NewAggregator(store, cacheNaive)
	naive.Optimized = false

	opts := finance.Options{BypassCache: true}
	sqlSide, err := optimized.SummarizePeriod(ctx, 2001, time.March, opts)
	require.NoError(t, err)
	goSide, err := naive.SummarizePeriod(ctx, 2001, time.March, opts)
	require.NoError(t, err)

	assert.True(t, sqlSide.Revenue.Equal(goSide.Revenue), "revenue: sql=%s go=%s", sqlSide.Revenue, goSide.Revenue)
	assert.True(t, sqlSide.Payouts.Equal(goSide.Payouts), "payouts: sql=%s go=%s", sqlSide.Payouts, goSide.Payouts)
	assert.True(t, sqlSide.Net.Equal(goSide.Net), "net: sql=%s go=%s", sqlSide.Net, goSide.Net)
	assert.Equal(t, goSide.SessionCount, sqlSide.SessionCount)

	assert.True(t, sqlSide.Revenue.Equal(decimal.RequireFromString("750.00")), "revenue: %s", sqlSide.Revenue)
	assert.Equal(t, len(fixtures), sqlSide.SessionCount)

	// Conferência independente do agregador: a mesma fórmula linha a linha.
	rows, err := store.SessionRowsForPeriod(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, rows, len(fixtures))
	expected := decimal.Zero
	now := time.Now()
	for _, r := range rows {
		if r.ShareDone {
			expected = expected.Add(share.Calculate(r.Value, r.StartOfService, now, r.OverrideShare).Payout)
		}
	}
	assert.True(t, sqlSide.Payouts.Equal(expected), "payouts: sql=%s calculado=%s", sqlSide.Payouts, expected)
}
