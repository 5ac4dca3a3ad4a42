package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
)

// Therapist is read-only for this engine; start_of_service drives the
// payout tenure tier.
type Therapist struct {
	ID             uuid.UUID
	FullName       string
	StartOfService *time.Time
}

type TherapistRepo struct {
	DB *gorm.DB
}

func NewTherapistRepo(db *gorm.DB) *TherapistRepo { return &TherapistRepo{DB: db} }

func (r *TherapistRepo) ByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	var t Therapist
	err := r.DB.WithContext(ctx).Raw(`
		SELECT id, full_name, start_of_service FROM therapists WHERE id = ?
	`, id).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == uuid.Nil {
		return nil, apperr.NotFoundf("therapist %s", id)
	}
	return &t, nil
}

func (r *TherapistRepo) List(ctx context.Context) ([]Therapist, error) {
	var list []Therapist
	err := r.DB.WithContext(ctx).Raw(`
		SELECT id, full_name, start_of_service FROM therapists ORDER BY full_name
	`).Scan(&list).Error
	return list, err
}
