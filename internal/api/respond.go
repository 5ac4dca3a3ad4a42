package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/batch"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/cache"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/config"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/finance"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/series"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/session"
)

// SeriesService is the slice of the series manager the handlers use.
type SeriesService interface {
	Create(ctx context.Context, in series.CreateInput) (*series.CreateResult, error)
	UpdateAll(ctx context.Context, in series.UpdateInput) (*series.UpdateResult, error)
	DeleteAll(ctx context.Context, recurrenceID uuid.UUID) (*series.DeleteResult, error)
}

// BatchService runs mixed per-booking updates.
type BatchService interface {
	Run(ctx context.Context, ops []batch.Operation, scope batch.Scope) (*batch.Result, error)
}

// FinanceService serves the month and year summaries.
type FinanceService interface {
	SummarizePeriod(ctx context.Context, year int, month time.Month, opts finance.Options) (*finance.PeriodSummary, error)
	HistoryLastNMonths(ctx context.Context, n int, opts finance.Options) ([]finance.PeriodSummary, error)
	YearlySummary(ctx context.Context, year int, opts finance.Options) (*finance.YearlySummary, error)
	InvalidateAll()
}

// BookingsStore is the slice of the booking repository the handlers use.
type BookingsStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*repo.Booking, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]repo.Booking, error)
	UpdateFields(ctx context.Context, id uuid.UUID, p repo.BookingPatch) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type TherapistsStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*repo.Therapist, error)
	List(ctx context.Context) ([]repo.Therapist, error)
}

type LedgerStore interface {
	Create(ctx context.Context, e *repo.LedgerEntry) error
	ListByPeriod(ctx context.Context, from, to time.Time) ([]repo.LedgerEntry, error)
}

type SessionsStore interface {
	ByBookingID(ctx context.Context, bookingID uuid.UUID) (*repo.Session, error)
	UpdateByBookingID(ctx context.Context, bookingID uuid.UUID, updates map[string]interface{}) error
}

// SyncService keeps sessions aligned after single-booking writes.
type SyncService interface {
	Ensure(ctx context.Context, b repo.Booking) (created, removed bool, err error)
	PropagateFieldChange(ctx context.Context, bookingID uuid.UUID, ch session.FieldChanges) error
}

type Handler struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Cache      *cache.TTL
	Bookings   BookingsStore
	Sessions   SessionsStore
	Ledger     LedgerStore
	Therapists TherapistsStore
	Series     SeriesService
	Batch      BatchService
	Finance    FinanceService
	Sync       SyncService
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is an opaque 500; the details stay in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperr.IsAccess(err):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		logging.L.Errorw("[api] internal error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro interno"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo inválido"})
		return false
	}
	return true
}

func parseUUIDVar(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " inválido"})
		return uuid.Nil, false
	}
	return id, true
}
