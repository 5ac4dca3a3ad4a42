// Package series orchestrates the lifecycle of a recurring booking series:
// create the whole group, update all occurrences, delete the group. Date
// math is delegated to the recurrence package and ledger synchronization to
// the session package.
package series

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/recurrence"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/session"
)

// MaxOccurrences caps how many bookings one series may create. When the
// recurrence rule would exceed it, the end date is truncated deterministically
// and the response reports estimated vs final counts.
const MaxOccurrences = 35

// DefaultChunkSize bounds how many session propagations run in one grouped
// call, and how many chunks run concurrently, to limit connection pressure.
const DefaultChunkSize = 10

// BookingStore is the booking persistence needed by the manager.
type BookingStore interface {
	Create(ctx context.Context, b *repo.Booking) error
	ByRecurrenceID(ctx context.Context, recurrenceID uuid.UUID) ([]repo.Booking, error)
	UpdateFields(ctx context.Context, id uuid.UUID, p repo.BookingPatch) error
	DeleteByRecurrenceID(ctx context.Context, recurrenceID uuid.UUID) (int64, error)
}

// Synchronizer is the slice of the session synchronizer the manager uses.
type Synchronizer interface {
	Ensure(ctx context.Context, b repo.Booking) (created, removed bool, err error)
	BatchEnsure(ctx context.Context, bookings []repo.Booking) session.Report
	PropagateFieldChange(ctx context.Context, bookingID uuid.UUID, ch session.FieldChanges) error
}

// SessionRemover removes the sessions of many bookings; used by DeleteAll.
type SessionRemover interface {
	DeleteByBookingIDs(ctx context.Context, bookingIDs []uuid.UUID) (int64, error)
}

type Manager struct {
	Bookings  BookingStore
	Sync      Synchronizer
	Sessions  SessionRemover
	ChunkSize int
}

func NewManager(bookings BookingStore, sync *session.Synchronizer) *Manager {
	return &Manager{
		Bookings:  bookings,
		Sync:      sync,
		Sessions:  sync.Sessions,
		ChunkSize: DefaultChunkSize,
	}
}

// Template carries the shared fields of every booking in a new series.
type Template struct {
	TherapistID uuid.UUID
	PatientID   uuid.UUID
	StartTime   string
	Location    string
	Modality    string
	Type        string
	Value       decimal.Decimal
	Status      repo.BookingStatus
	Notes       *string
}

// CreateInput is a validated series-creation request.
type CreateInput struct {
	Template    Template
	Start       time.Time
	Weekdays    []time.Weekday
	Periodicity recurrence.Periodicity
	End         time.Time
}

// CreateResult reports what was persisted plus the truncation metadata.
type CreateResult struct {
	RecurrenceID   uuid.UUID
	Created        []repo.Booking
	EstimatedCount int
	FinalCount     int
	Truncated      bool
	Sync           session.Report
}

// Create expands the recurrence rule, caps it at MaxOccurrences, persists one
// booking per date under a fresh recurrence id and ensures sessions for the
// billable ones. Individual booking failures are logged and skipped; they
// never abort the series.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if in.Template.Status == "" {
		in.Template.Status = repo.BookingConfirmed
	}
	rule := recurrence.Rule{
		Start:       in.Start,
		Weekdays:    in.Weekdays,
		Periodicity: in.Periodicity,
		End:         in.End,
	}
	dates, err := recurrence.Expand(rule)
	if err != nil {
		return nil, err
	}
	estimated := len(dates)
	truncated := false
	if estimated > MaxOccurrences {
		rule.End = recurrence.TruncatedEnd(rule, MaxOccurrences)
		dates, err = recurrence.Expand(rule)
		if err != nil {
			return nil, err
		}
		truncated = true
	}
	if len(dates) == 0 {
		return nil, apperr.Validationf("recurrence rule produces no occurrences")
	}

	recurrenceID := uuid.New()
	result := &CreateResult{
		RecurrenceID:   recurrenceID,
		EstimatedCount: estimated,
		Truncated:      truncated,
	}
	for _, d := range dates {
		rid := recurrenceID
		b := repo.Booking{
			TherapistID:  in.Template.TherapistID,
			PatientID:    in.Template.PatientID,
			RecurrenceID: &rid,
			Date:         d,
			StartTime:    in.Template.StartTime,
			Location:     in.Template.Location,
			Modality:     in.Template.Modality,
			Type:         in.Template.Type,
			Value:        in.Template.Value,
			Status:       in.Template.Status,
			Notes:        in.Template.Notes,
		}
		if err := m.Bookings.Create(ctx, &b); err != nil {
			logging.L.Warnw("series create: booking skipped", "recurrence_id", recurrenceID, "date", d.Format("2006-01-02"), "err", err)
			continue
		}
		result.Created = append(result.Created, b)
	}
	result.FinalCount = len(result.Created)

	var billable []repo.Booking
	for _, b := range result.Created {
		if b.Status.Billable() {
			billable = append(billable, b)
		}
	}
	result.Sync = m.Sync.BatchEnsure(ctx, billable)
	if !result.Sync.Ok() {
		logging.L.Warnw("series create: session sync partial failure", "recurrence_id", recurrenceID, "errors", len(result.Sync.Errors))
	}
	return result, nil
}

// UpdateInput is a validated update-all request. Fields follows the patch
// convention: only non-nil fields are applied. Each occurrence keeps its own
// date unless the caller asks for a move: Date inside Fields puts the whole
// series on that one day, NewWeekday shifts each occurrence within its own
// week. The two are mutually exclusive.
type UpdateInput struct {
	RecurrenceID uuid.UUID
	Fields       repo.BookingPatch
	NewWeekday   *time.Weekday
}

// UpdateResult reports occurrence updates and the session propagation.
type UpdateResult struct {
	Updated         []uuid.UUID
	SessionsUpdated int
	Errors          []session.ItemError
}

// UpdateAll applies the patch to every booking of the series. Session
// propagation runs chunked with bounded concurrency; a failed chunk falls
// back to sequential per-item propagation instead of aborting.
func (m *Manager) UpdateAll(ctx context.Context, in UpdateInput) (*UpdateResult, error) {
	bookings, err := m.Bookings.ByRecurrenceID(ctx, in.RecurrenceID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, apperr.NotFoundf("series %s", in.RecurrenceID)
	}
	if in.Fields.Status != nil && !in.Fields.Status.Valid() {
		return nil, apperr.Validationf("invalid status %q", *in.Fields.Status)
	}
	if in.Fields.Date != nil && in.NewWeekday != nil {
		return nil, apperr.Validationf("date and new_weekday are mutually exclusive")
	}

	result := &UpdateResult{}
	var updated []repo.Booking
	for _, b := range bookings {
		patch := in.Fields
		if in.NewWeekday != nil {
			d := recurrence.ShiftToWeekday(b.Date, *in.NewWeekday)
			patch.Date = &d
		}
		if err := m.Bookings.UpdateFields(ctx, b.ID, patch); err != nil {
			logging.L.Warnw("series update: occurrence skipped", "booking_id", b.ID, "err", err)
			result.Errors = append(result.Errors, session.ItemError{BookingID: b.ID, Err: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, b.ID)
		updated = append(updated, b)
	}

	changes := session.FieldChanges{
		Type:   in.Fields.Type,
		Value:  in.Fields.Value,
		Status: in.Fields.Status,
	}
	if changes.Type != nil || changes.Value != nil || changes.Status != nil {
		n, errs := m.propagateChunked(ctx, updated, changes)
		result.SessionsUpdated = n
		result.Errors = append(result.Errors, errs...)
	}
	return result, nil
}

// propagateChunked splits the bookings into chunks and propagates each chunk
// in its own goroutine, bounded by the chunk count. Inside a chunk items run
// sequentially; any item failure is collected, never fatal.
func (m *Manager) propagateChunked(ctx context.Context, bookings []repo.Booking, ch session.FieldChanges) (int, []session.ItemError) {
	size := m.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		mu    sync.Mutex
		total int
		errs  []session.ItemError
		wg    sync.WaitGroup
	)
	for start := 0; start < len(bookings); start += size {
		end := start + size
		if end > len(bookings) {
			end = len(bookings)
		}
		chunk := bookings[start:end]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range chunk {
				if err := m.Sync.PropagateFieldChange(ctx, b.ID, ch); err != nil {
					mu.Lock()
					errs = append(errs, session.ItemError{BookingID: b.ID, Err: err.Error()})
					mu.Unlock()
					continue
				}
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return total, errs
}

// DeleteResult reports how many rows each phase removed.
type DeleteResult struct {
	DeletedBookings int
	DeletedSessions int
}

// DeleteAll removes the linked sessions first (best-effort, counted), then
// every booking of the series.
func (m *Manager) DeleteAll(ctx context.Context, recurrenceID uuid.UUID) (*DeleteResult, error) {
	bookings, err := m.Bookings.ByRecurrenceID(ctx, recurrenceID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, apperr.NotFoundf("series %s", recurrenceID)
	}
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	sessionsRemoved, err := m.Sessions.DeleteByBookingIDs(ctx, ids)
	if err != nil {
		// Best-effort: the bookings still go away; orphan sessions are
		// reported so the caller can retry the sync phase.
		logging.L.Warnw("series delete: session removal failed", "recurrence_id", recurrenceID, "err", err)
	}
	bookingsRemoved, err := m.Bookings.DeleteByRecurrenceID(ctx, recurrenceID)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{
		DeletedBookings: int(bookingsRemoved),
		DeletedSessions: int(sessionsRemoved),
	}, nil
}

func validateCreate(in CreateInput) error {
	if in.Template.TherapistID == uuid.Nil {
		return apperr.Validationf("therapist is required")
	}
	if in.Template.PatientID == uuid.Nil {
		return apperr.Validationf("patient is required")
	}
	if len(in.Weekdays) == 0 {
		return apperr.Validationf("at least one weekday is required")
	}
	if in.End.IsZero() {
		return apperr.Validationf("end date is required")
	}
	if in.Template.Status != "" && !in.Template.Status.Valid() {
		return apperr.Validationf("invalid status %q", in.Template.Status)
	}
	return nil
}
