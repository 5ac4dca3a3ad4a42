// Package session keeps the billable-session ledger in lockstep with
// booking lifecycle changes. Synchronization is best-effort: a booking write
// that already committed is never rolled back because its session write
// failed; failures are logged and surfaced to the caller as partial-success
// entries instead.
package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
)

// Store is the session persistence needed by the synchronizer. repo.SessionRepo
// implements it; tests use a mock.
type Store interface {
	ByBookingID(ctx context.Context, bookingID uuid.UUID) (*repo.Session, error)
	ByBookingIDs(ctx context.Context, bookingIDs []uuid.UUID) ([]repo.Session, error)
	Create(ctx context.Context, s *repo.Session) error
	CreateBatch(ctx context.Context, sessions []repo.Session) error
	DeleteByBookingID(ctx context.Context, bookingID uuid.UUID) (int64, error)
	DeleteByBookingIDs(ctx context.Context, bookingIDs []uuid.UUID) (int64, error)
	UpdateByBookingID(ctx context.Context, bookingID uuid.UUID, updates map[string]interface{}) error
}

// ItemError is one failed booking inside a batch synchronization.
type ItemError struct {
	BookingID uuid.UUID `json:"booking_id"`
	Err       string    `json:"error"`
}

// Report is the outcome of a batch synchronization pass.
type Report struct {
	Created int         `json:"created"`
	Removed int         `json:"removed"`
	Errors  []ItemError `json:"errors,omitempty"`
}

func (r Report) Ok() bool { return len(r.Errors) == 0 }

// FieldChanges mirrors booking field changes onto the linked session. Only
// non-nil fields are touched; unrelated session fields are never overwritten.
type FieldChanges struct {
	Type   *string
	Value  *decimal.Decimal
	Status *repo.BookingStatus
}

func (c FieldChanges) empty() bool {
	return c.Type == nil && c.Value == nil && c.Status == nil
}

type Synchronizer struct {
	Sessions Store
}

func New(store Store) *Synchronizer {
	return &Synchronizer{Sessions: store}
}

// billable reports whether the booking should carry a session: cancelled or
// no-show bookings do not bill.
func billable(b repo.Booking) bool {
	return b.Status.Billable() && !b.NoShow
}

// Ensure creates the session for a billable booking without one and removes
// the session of a non-billable booking. Idempotent: a second call on the
// same booking state is a no-op.
func (s *Synchronizer) Ensure(ctx context.Context, b repo.Booking) (created, removed bool, err error) {
	existing, err := s.Sessions.ByBookingID(ctx, b.ID)
	if err != nil {
		return false, false, err
	}
	if billable(b) {
		if existing != nil {
			return false, false, nil
		}
		sess := sessionFromBooking(b)
		if err := s.Sessions.Create(ctx, &sess); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if existing == nil {
		return false, false, nil
	}
	if _, err := s.Sessions.DeleteByBookingID(ctx, b.ID); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// BatchEnsure applies the Ensure contract across many bookings with one
// lookup and grouped writes. On a grouped-write failure the remaining items
// are retried one by one, and each individual failure becomes a report entry
// rather than aborting the batch.
func (s *Synchronizer) BatchEnsure(ctx context.Context, bookings []repo.Booking) Report {
	var report Report
	if len(bookings) == 0 {
		return report
	}
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	existing, err := s.Sessions.ByBookingIDs(ctx, ids)
	if err != nil {
		logging.L.Errorw("session sync: batched lookup failed", "err", err)
		for _, b := range bookings {
			report.Errors = append(report.Errors, ItemError{BookingID: b.ID, Err: err.Error()})
		}
		return report
	}
	linked := make(map[uuid.UUID]bool, len(existing))
	for _, e := range existing {
		if e.BookingID != nil {
			linked[*e.BookingID] = true
		}
	}

	var toCreate []repo.Session
	var createSources []repo.Booking
	var toRemove []uuid.UUID
	for _, b := range bookings {
		if billable(b) && !linked[b.ID] {
			toCreate = append(toCreate, sessionFromBooking(b))
			createSources = append(createSources, b)
		} else if !billable(b) && linked[b.ID] {
			toRemove = append(toRemove, b.ID)
		}
	}

	if len(toCreate) > 0 {
		if err := s.Sessions.CreateBatch(ctx, toCreate); err != nil {
			logging.L.Warnw("session sync: grouped create failed, retrying individually", "count", len(toCreate), "err", err)
			for _, b := range createSources {
				sess := sessionFromBooking(b)
				if errItem := s.Sessions.Create(ctx, &sess); errItem != nil {
					report.Errors = append(report.Errors, ItemError{BookingID: b.ID, Err: errItem.Error()})
					continue
				}
				report.Created++
			}
		} else {
			report.Created = len(toCreate)
		}
	}

	if len(toRemove) > 0 {
		n, err := s.Sessions.DeleteByBookingIDs(ctx, toRemove)
		if err != nil {
			logging.L.Warnw("session sync: grouped remove failed, retrying individually", "count", len(toRemove), "err", err)
			for _, id := range toRemove {
				nn, errItem := s.Sessions.DeleteByBookingID(ctx, id)
				if errItem != nil {
					report.Errors = append(report.Errors, ItemError{BookingID: id, Err: errItem.Error()})
					continue
				}
				report.Removed += int(nn)
			}
		} else {
			report.Removed = int(n)
		}
	}
	return report
}

// PropagateFieldChange mirrors the changed booking fields onto its linked
// session(s). A status change to a non-billable state removes the session
// instead of updating it.
func (s *Synchronizer) PropagateFieldChange(ctx context.Context, bookingID uuid.UUID, ch FieldChanges) error {
	if ch.empty() {
		return nil
	}
	if ch.Status != nil {
		mapped, ok := repo.SessionStatusFor(*ch.Status)
		if !ok {
			_, err := s.Sessions.DeleteByBookingID(ctx, bookingID)
			return err
		}
		updates := changesToUpdates(ch)
		updates["status"] = string(mapped)
		return s.Sessions.UpdateByBookingID(ctx, bookingID, updates)
	}
	return s.Sessions.UpdateByBookingID(ctx, bookingID, changesToUpdates(ch))
}

func changesToUpdates(ch FieldChanges) map[string]interface{} {
	updates := map[string]interface{}{}
	if ch.Type != nil {
		updates["type"] = *ch.Type
	}
	if ch.Value != nil {
		updates["value"] = *ch.Value
	}
	return updates
}

func sessionFromBooking(b repo.Booking) repo.Session {
	status, _ := repo.SessionStatusFor(b.Status)
	id := b.ID
	return repo.Session{
		TherapistID:   b.TherapistID,
		PatientID:     b.PatientID,
		BookingID:     &id,
		Type:          b.Type,
		Value:         b.Value,
		PaymentDone:   false,
		ShareDone:     false,
		InvoiceStatus: repo.InvoiceNotIssued,
		Status:        status,
	}
}
