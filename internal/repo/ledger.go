package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
)

type LedgerKind string

const (
	LedgerIn  LedgerKind = "ENTRADA"
	LedgerOut LedgerKind = "SAIDA"
)

func (k LedgerKind) Valid() bool { return k == LedgerIn || k == LedgerOut }

// LedgerEntry is a manual financial entry outside the session flow (rent,
// supplies, one-off income).
type LedgerEntry struct {
	ID          uuid.UUID
	Kind        LedgerKind
	Value       decimal.Decimal
	Description string
	EntryDate   time.Time
	CreatedAt   time.Time
}

type LedgerRepo struct {
	DB *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) *LedgerRepo { return &LedgerRepo{DB: db} }

func (r *LedgerRepo) Create(ctx context.Context, e *LedgerEntry) error {
	if !e.Kind.Valid() {
		return apperr.Validationf("invalid ledger kind %q", e.Kind)
	}
	var res struct{ ID uuid.UUID }
	err := r.DB.WithContext(ctx).Raw(`
		INSERT INTO ledger_entries (kind, value, description, entry_date)
		VALUES (?, ?, ?, ?) RETURNING id
	`, e.Kind, e.Value, e.Description, e.EntryDate).Scan(&res).Error
	if err != nil {
		return err
	}
	e.ID = res.ID
	return nil
}

func (r *LedgerRepo) ListByPeriod(ctx context.Context, from, to time.Time) ([]LedgerEntry, error) {
	var list []LedgerEntry
	err := r.DB.WithContext(ctx).Raw(`
		SELECT id, kind, value, description, entry_date, created_at
		FROM ledger_entries
		WHERE entry_date >= ? AND entry_date < ?
		ORDER BY entry_date
	`, from, to).Scan(&list).Error
	return list, err
}

// TotalsByPeriod aggregates manual entries in the half-open window [from, to).
func (r *LedgerRepo) TotalsByPeriod(ctx context.Context, from, to time.Time) (in, out decimal.Decimal, err error) {
	var row struct {
		TotalIn  decimal.Decimal
		TotalOut decimal.Decimal
	}
	err = r.DB.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'ENTRADA' THEN value END), 0) AS total_in,
			COALESCE(SUM(CASE WHEN kind = 'SAIDA' THEN value END), 0) AS total_out
		FROM ledger_entries
		WHERE entry_date >= ? AND entry_date < ?
	`, from, to).Scan(&row).Error
	return row.TotalIn, row.TotalOut, err
}
