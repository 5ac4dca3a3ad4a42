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

type InvoiceStatus string

const (
	InvoiceNotIssued InvoiceStatus = "NAO_EMITIDA"
	InvoiceIssued    InvoiceStatus = "EMITIDA"
	InvoiceSent      InvoiceStatus = "ENVIADA"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceNotIssued, InvoiceIssued, InvoiceSent:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionScheduled   SessionStatus = "AGENDADA"
	SessionRescheduled SessionStatus = "REMARCADA"
)

// SessionStatusFor is the total mapping from booking status to session
// status. The second return is false for statuses that carry no session at
// all (cancelled bookings are not billable).
func SessionStatusFor(s BookingStatus) (SessionStatus, bool) {
	switch s {
	case BookingConfirmed:
		return SessionScheduled, true
	case BookingRescheduled:
		return SessionRescheduled, true
	case BookingCancelled:
		return "", false
	default:
		return "", false
	}
}

// Session is one billable unit. BookingID is a back-reference only, not
// ownership: a session may also exist standalone, in which case up to six
// candidate occurrence dates describe when it may have happened.
type Session struct {
	ID            uuid.UUID
	TherapistID   uuid.UUID
	PatientID     uuid.UUID
	BookingID     *uuid.UUID
	Type          string
	Value         decimal.Decimal
	OverrideShare *decimal.Decimal
	PaymentDone   bool
	ShareDone     bool
	InvoiceStatus InvoiceStatus
	Status        SessionStatus
	Date1         *time.Time
	Date2         *time.Time
	Date3         *time.Time
	Date4         *time.Time
	Date5         *time.Time
	Date6         *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CandidateDates returns the non-null candidate dates in order.
func (s *Session) CandidateDates() []time.Time {
	var out []time.Time
	for _, p := range []*time.Time{s.Date1, s.Date2, s.Date3, s.Date4, s.Date5, s.Date6} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// SetCandidateDates fills the six slots from the given dates (at most six).
func (s *Session) SetCandidateDates(dates []time.Time) error {
	if len(dates) > 6 {
		return apperr.Validationf("at most 6 candidate dates, got %d", len(dates))
	}
	slots := []**time.Time{&s.Date1, &s.Date2, &s.Date3, &s.Date4, &s.Date5, &s.Date6}
	for i := range slots {
		if i < len(dates) {
			d := dates[i]
			*slots[i] = &d
		} else {
			*slots[i] = nil
		}
	}
	return nil
}

const sessionColumns = `
	id, therapist_id, patient_id, booking_id, type, value, override_share,
	payment_done, share_done, invoice_status, status,
	date1, date2, date3, date4, date5, date6, created_at, updated_at
`

type SessionRepo struct {
	DB *gorm.DB
}

func NewSessionRepo(db *gorm.DB) *SessionRepo { return &SessionRepo{DB: db} }

func (r *SessionRepo) Create(ctx context.Context, s *Session) error {
	var res struct{ ID uuid.UUID }
	err := r.DB.WithContext(ctx).Raw(`
		INSERT INTO sessions (therapist_id, patient_id, booking_id, type, value, override_share, payment_done, share_done, invoice_status, status, date1, date2, date3, date4, date5, date6)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id
	`, s.TherapistID, s.PatientID, s.BookingID, s.Type, s.Value, s.OverrideShare,
		s.PaymentDone, s.ShareDone, s.InvoiceStatus, s.Status,
		s.Date1, s.Date2, s.Date3, s.Date4, s.Date5, s.Date6).Scan(&res).Error
	if err != nil {
		return err
	}
	s.ID = res.ID
	return nil
}

// CreateBatch inserts many sessions with one query (multiple VALUES tuples,
// avoiding N round-trips).
func (r *SessionRepo) CreateBatch(ctx context.Context, sessions []Session) error {
	if len(sessions) == 0 {
		return nil
	}
	const tuple = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := make([]interface{}, 0, len(sessions)*10)
	tuples := make([]string, 0, len(sessions))
	for _, s := range sessions {
		args = append(args, s.TherapistID, s.PatientID, s.BookingID, s.Type, s.Value,
			s.OverrideShare, s.PaymentDone, s.ShareDone, s.InvoiceStatus, s.Status)
		tuples = append(tuples, tuple)
	}
	query := `INSERT INTO sessions (therapist_id, patient_id, booking_id, type, value, override_share, payment_done, share_done, invoice_status, status) VALUES ` +
		strings.Join(tuples, ", ")
	return r.DB.WithContext(ctx).Exec(query, args...).Error
}

func (r *SessionRepo) ByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?
	`, id).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, apperr.NotFoundf("session %s", id)
	}
	return &s, nil
}

func (r *SessionRepo) ByBookingID(ctx context.Context, bookingID uuid.UUID) (*Session, error) {
	var s Session
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+sessionColumns+` FROM sessions WHERE booking_id = ? LIMIT 1
	`, bookingID).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

// ByBookingIDs returns the sessions linked to any of the given bookings with
// a single query.
func (r *SessionRepo) ByBookingIDs(ctx context.Context, bookingIDs []uuid.UUID) ([]Session, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	var list []Session
	err := r.DB.WithContext(ctx).Raw(`
		SELECT `+sessionColumns+` FROM sessions WHERE booking_id IN ?
	`, bookingIDs).Scan(&list).Error
	return list, err
}

func (r *SessionRepo) DeleteByBookingID(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	result := r.DB.WithContext(ctx).Exec(`DELETE FROM sessions WHERE booking_id = ?`, bookingID)
	return result.RowsAffected, result.Error
}

func (r *SessionRepo) DeleteByBookingIDs(ctx context.Context, bookingIDs []uuid.UUID) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, nil
	}
	result := r.DB.WithContext(ctx).Exec(`DELETE FROM sessions WHERE booking_id IN ?`, bookingIDs)
	return result.RowsAffected, result.Error
}

// UpdateByBookingID writes only the given columns on the sessions linked to
// the booking. Keys are column names already vetted by the synchronizer.
func (r *SessionRepo) UpdateByBookingID(ctx context.Context, bookingID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = gorm.Expr("now()")
	return r.DB.WithContext(ctx).Table("sessions").Where("booking_id = ?", bookingID).Updates(updates).Error
}
