package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
)

// BookingStatus is a closed enumeration; handlers reject anything else before
// it reaches the core.
type BookingStatus string

const (
	BookingConfirmed   BookingStatus = "CONFIRMADO"
	BookingRescheduled BookingStatus = "REMARCADO"
	BookingCancelled   BookingStatus = "CANCELADO"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingConfirmed, BookingRescheduled, BookingCancelled:
		return true
	}
	return false
}

// Billable reports whether a booking in this status carries a billable
// session. Cancelled bookings never do.
func (s BookingStatus) Billable() bool { return s != BookingCancelled }

// Booking is one calendar appointment between a therapist and a patient.
// StartTime is a string ("HH:MM:SS"); PostgreSQL TIME is returned as string
// by the driver. RecurrenceID groups the bookings of one recurring series.
type Booking struct {
	ID           uuid.UUID
	TherapistID  uuid.UUID
	PatientID    uuid.UUID
	RecurrenceID *uuid.UUID
	Date         time.Time
	StartTime    string
	Location     string
	Modality     string
	Type         string
	Value        decimal.Decimal
	Status       BookingStatus
	Completed    bool
	NoShow       bool
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookingPatch carries a partial update; only non-nil fields are written.
type BookingPatch struct {
	Date      *time.Time
	StartTime *string
	Location  *string
	Modality  *string
	Type      *string
	Value     *decimal.Decimal
	Status    *BookingStatus
	Completed *bool
	NoShow    *bool
	Notes     *string
}

const bookingColumns = `
	id, therapist_id, patient_id, recurrence_id, date, start_time, location,
	modality, type, value, status, completed, no_show, notes, created_at, updated_at
`

type BookingRepo struct {
	DB *gorm.DB
}

func NewBookingRepo(db *gorm.DB) *BookingRepo { return &BookingRepo{DB: db} }

func (r *BookingRepo) Create(ctx context.Context, b *Booking) error {
	var res struct{ ID uuid.UUID }
	err := r.DB.WithContext(ctx).Raw(`
		INSERT INTO bookings (therapist_id, patient_id, recurrence_id, date, start_time, location, modality, type, value, status, completed, no_show, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id
	`, b.TherapistID, b.PatientID, b.RecurrenceID, b.Date, b.StartTime, b.Location,
		b.Modality, b.Type, b.Value, b.Status, b.Completed, b.NoShow, b.Notes).Scan(&res).Error
	if err != nil {
		return err
	}
	b.ID = res.ID
	return nil
}

func (r *BookingRepo) ByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+bookingColumns+` FROM bookings WHERE id = ?
	`, id).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, apperr.NotFoundf("booking %s", id)
	}
	return &b, nil
}

func (r *BookingRepo) ByIDs(ctx context.Context, ids []uuid.UUID) ([]Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []Booking
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+bookingColumns+` FROM bookings WHERE id IN ? ORDER BY date, start_time
	`, ids).Scan(&list).Error
	return list, err
}

func (r *BookingRepo) ByRecurrenceID(ctx context.Context, recurrenceID uuid.UUID) ([]Booking, error) {
	var list []Booking
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+bookingColumns+` FROM bookings WHERE recurrence_id = ? ORDER BY date, start_time
	`, recurrenceID).Scan(&list).Error
	return list, err
}

func (r *BookingRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]Booking, error) {
	var list []Booking
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE date >= ? AND date <= ?
		ORDER BY date, start_time
	`, from, to).Scan(&list).Error
	return list, err
}

// UpdateFields writes only the fields present in the patch, always bumping
// updated_at. Returns NotFound when no row matches.
func (r *BookingRepo) UpdateFields(ctx context.Context, id uuid.UUID, p BookingPatch) error {
	updates := map[string]interface{}{"updated_at": gorm.Expr("now()")}
	if p.Date != nil {
		updates["date"] = *p.Date
	}
	if p.StartTime != nil {
		updates["start_time"] = *p.StartTime
	}
	if p.Location != nil {
		updates["location"] = *p.Location
	}
	if p.Modality != nil {
		updates["modality"] = *p.Modality
	}
	if p.Type != nil {
		updates["type"] = *p.Type
	}
	if p.Value != nil {
		updates["value"] = *p.Value
	}
	if p.Status != nil {
		updates["status"] = string(*p.Status)
	}
	if p.Completed != nil {
		updates["completed"] = *p.Completed
	}
	if p.NoShow != nil {
		updates["no_show"] = *p.NoShow
	}
	if p.Notes != nil {
		updates["notes"] = *p.Notes
	}
	result := r.DB.WithContext(ctx).Table("bookings").Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("booking %s", id)
	}
	return nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.DB.WithContext(ctx).Exec(`DELETE FROM bookings WHERE id = ?`, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("booking %s", id)
	}
	return nil
}

func (r *BookingRepo) DeleteByRecurrenceID(ctx context.Context, recurrenceID uuid.UUID) (int64, error) {
	result := r.DB.WithContext(ctx).Exec(`DELETE FROM bookings WHERE recurrence_id = ?`, recurrenceID)
	return result.RowsAffected, result.Error
}

// TherapistsForBookings maps booking id to its therapist id, for scope
// checks before batch updates.
func (r *BookingRepo) TherapistsForBookings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]uuid.UUID{}, nil
	}
	var rows []struct {
		ID          uuid.UUID
		TherapistID uuid.UUID
	}
	err := r.DB.WithContext(ctx).Raw(`
		SELECT id, therapist_id FROM bookings WHERE id IN ?
	`, ids).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, row := range rows {
		out[row.ID] = row.TherapistID
	}
	return out, nil
}

// SetFlagBatch applies per-id boolean values for one flag column in a single
// statement (one UPDATE ... FROM (VALUES ...) covering all ids). column must
// be "completed" or "no_show"; anything else is rejected before reaching SQL.
// Returns the number of rows actually updated, which is less than len(ids)
// when some ids do not exist.
func (r *BookingRepo) SetFlagBatch(ctx context.Context, column string, ids []uuid.UUID, values []bool) (int64, error) {
	if column != "completed" && column != "no_show" {
		return 0, apperr.Validationf("unknown flag column %q", column)
	}
	if len(ids) == 0 || len(ids) != len(values) {
		return 0, apperr.Validationf("ids and values must be non-empty and aligned")
	}
	args := make([]interface{}, 0, len(ids)*2)
	tuples := make([]string, 0, len(ids))
	for i := range ids {
		args = append(args, ids[i], values[i])
		tuples = append(tuples, "(?::uuid, ?::boolean)")
	}
	query := `
		UPDATE bookings AS b SET ` + column + ` = v.value, updated_at = now()
		FROM (VALUES ` + strings.Join(tuples, ", ") + `) AS v(id, value)
		WHERE b.id = v.id
	`
	result := r.DB.WithContext(ctx).Exec(query, args...)
	return result.RowsAffected, result.Error
}

// SetFlag is the per-item fallback for SetFlagBatch.
func (r *BookingRepo) SetFlag(ctx context.Context, column string, id uuid.UUID, value bool) error {
	if column != "completed" && column != "no_show" {
		return apperr.Validationf("unknown flag column %q", column)
	}
	result := r.DB.WithContext(ctx).Exec(`
		UPDATE bookings SET `+column+` = ?, updated_at = now() WHERE id = ?
	`, value, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("booking %s", id)
	}
	return nil
}

// SetStatusBatch applies per-id statuses in a single statement.
func (r *BookingRepo) SetStatusBatch(ctx context.Context, ids []uuid.UUID, statuses []BookingStatus) (int64, error) {
	if len(ids) == 0 || len(ids) != len(statuses) {
		return 0, apperr.Validationf("ids and statuses must be non-empty and aligned")
	}
	args := make([]interface{}, 0, len(ids)*2)
	tuples := make([]string, 0, len(ids))
	for i := range ids {
		args = append(args, ids[i], string(statuses[i]))
		tuples = append(tuples, "(?::uuid, ?::text)")
	}
	query := `
		UPDATE bookings AS b SET status = v.status, updated_at = now()
		FROM (VALUES ` + strings.Join(tuples, ", ") + `) AS v(id, status)
		WHERE b.id = v.id
	`
	result := r.DB.WithContext(ctx).Exec(query, args...)
	return result.RowsAffected, result.Error
}

// SetStatus is the per-item fallback for SetStatusBatch.
func (r *BookingRepo) SetStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error {
	result := r.DB.WithContext(ctx).Exec(`
		UPDATE bookings SET status = ?, updated_at = now() WHERE id = ?
	`, string(status), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundf("booking %s", id)
	}
	return nil
}

// TimeStringToHHMM returns "HH:MM" from a DB time string ("HH:MM:SS" or "HH:MM").
func TimeStringToHHMM(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}
