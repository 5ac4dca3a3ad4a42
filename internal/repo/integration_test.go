package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/testutil"
)

// Fluxo completo contra Postgres real: série de agendamentos, sessões em
// lote, update em massa e agregação financeira. Roda apenas com DATABASE_URL.
func TestBookingSeriesRoundTrip(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	bookings := repo.NewBookingRepo(db)
	sessions := repo.NewSessionRepo(db)

	var therapistID, patientID uuid.UUID
	var row struct{ ID uuid.UUID }
	start := time.Now().AddDate(-2, 0, 0)
	require.NoError(t, db.WithContext(ctx).Raw(`
		INSERT INTO therapists (full_name, start_of_service) VALUES ('Integração', ?) RETURNING id
	`, start).Scan(&row).Error)
	therapistID = row.ID
	require.NoError(t, db.WithContext(ctx).Raw(`
		INSERT INTO patients (full_name) VALUES ('Paciente Integração') RETURNING id
	`).Scan(&row).Error)
	patientID = row.ID

	recurrenceID := uuid.New()
	dates := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	created := make([]repo.Booking, 0, len(dates))
	for _, d := range dates {
		b := repo.Booking{
			TherapistID:  therapistID,
			PatientID:    patientID,
			RecurrenceID: &recurrenceID,
			Date:         d,
			StartTime:    "14:00",
			Type:         "Sessão",
			Value:        decimal.RequireFromString("180.00"),
			Status:       repo.BookingConfirmed,
		}
		require.NoError(t, bookings.Create(ctx, &b))
		created = append(created, b)
	}
	t.Cleanup(func() {
		_, _ = bookings.DeleteByRecurrenceID(ctx, recurrenceID)
		_ = db.Exec(`DELETE FROM patients WHERE id = ?`, patientID).Error
		_ = db.Exec(`DELETE FROM therapists WHERE id = ?`, therapistID).Error
	})

	list, err := bookings.ByRecurrenceID(ctx, recurrenceID)
	require.NoError(t, err)
	require.Len(t, list, 3)

	sess := make([]repo.Session, 0, len(created))
	for _, b := range created {
		id := b.ID
		sess = append(sess, repo.Session{
			TherapistID:   therapistID,
			PatientID:     patientID,
			BookingID:     &id,
			Type:          b.Type,
			Value:         b.Value,
			InvoiceStatus: repo.InvoiceNotIssued,
			Status:        repo.SessionScheduled,
		})
	}
	require.NoError(t, sessions.CreateBatch(ctx, sess))
	t.Cleanup(func() {
		ids := make([]uuid.UUID, len(created))
		for i, b := range created {
			ids[i] = b.ID
		}
		_, _ = sessions.DeleteByBookingIDs(ctx, ids)
	})

	ids := []uuid.UUID{created[0].ID, created[1].ID}
	rows, err := bookings.SetFlagBatch(ctx, "completed", ids, []bool{true, true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	got, err := bookings.ByID(ctx, created[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	owners, err := bookings.TherapistsForBookings(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, therapistID, owners[created[0].ID])
}

func TestFinanceTotalsAgainstDatabase(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	finRepo := repo.NewFinanceRepo(db)
	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	// Janela antiga e vazia: totais zerados sem erro.
	totals, err := finRepo.PeriodTotalsOptimized(ctx, from, to)
	require.NoError(t, err)
	assert.True(t, totals.Revenue.IsZero())
	assert.True(t, totals.Payouts.IsZero())
	assert.Zero(t, totals.SessionCount)

	rows, err := finRepo.SessionRowsForPeriod(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
