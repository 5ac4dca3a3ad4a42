// Package batch applies mixed per-booking updates (completed, no_show,
// status) submitted as one request. Each field group is tried as a single
// bulk statement first; only when the bulk path fails or updates fewer
// rows than expected does it degrade to per-item writes, so partial
// results carry precise per-booking errors.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/session"
)

// MaxOperations bounds one batch request.
const MaxOperations = 50

const (
	FieldCompleted = "completed"
	FieldNoShow    = "no_show"
	FieldStatus    = "status"
)

// Operation is one requested change on one booking.
type Operation struct {
	BookingID uuid.UUID          `json:"booking_id"`
	Field     string             `json:"field"`
	Value     bool               `json:"value,omitempty"`
	Status    repo.BookingStatus `json:"status,omitempty"`
}

// Scope limits which therapists' bookings the caller may touch. Admins and
// professionals carry AllowAll; assistants carry an explicit list.
type Scope struct {
	AllowAll   bool
	Therapists map[uuid.UUID]bool
}

func (s Scope) Allows(therapistID uuid.UUID) bool {
	return s.AllowAll || s.Therapists[therapistID]
}

// BookingStore is the slice of the booking repository the processor uses.
type BookingStore interface {
	TherapistsForBookings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	ByIDs(ctx context.Context, ids []uuid.UUID) ([]repo.Booking, error)
	SetFlagBatch(ctx context.Context, column string, ids []uuid.UUID, values []bool) (int64, error)
	SetFlag(ctx context.Context, column string, id uuid.UUID, value bool) error
	SetStatusBatch(ctx context.Context, ids []uuid.UUID, statuses []repo.BookingStatus) (int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status repo.BookingStatus) error
}

// Synchronizer reconciles sessions after the booking rows change.
type Synchronizer interface {
	BatchEnsure(ctx context.Context, bookings []repo.Booking) session.Report
}

type Processor struct {
	Bookings BookingStore
	Sync     Synchronizer
}

func NewProcessor(bookings BookingStore, sync Synchronizer) *Processor {
	return &Processor{Bookings: bookings, Sync: sync}
}

// Result reports a finished batch. Processed counts booking writes that
// succeeded; Errors carries everything that did not, including session
// reconciliation failures.
type Result struct {
	Processed int                 `json:"processed"`
	Total     int                 `json:"total"`
	Errors    []session.ItemError `json:"errors,omitempty"`
	Duration  time.Duration       `json:"-"`
	DurationM int64               `json:"duration_ms"`
}

func (r *Result) Partial() bool { return len(r.Errors) > 0 && r.Processed > 0 }

// Run validates, scope-checks and applies the operations. A Validation error
// rejects the whole batch; an Access error aborts when more than half of the
// operations target bookings outside the caller's scope. Everything past
// those gates degrades per item instead of failing the batch.
func (p *Processor) Run(ctx context.Context, ops []Operation, scope Scope) (*Result, error) {
	started := time.Now()
	if len(ops) == 0 {
		return nil, apperr.Validationf("batch requires at least one operation")
	}
	if len(ops) > MaxOperations {
		return nil, apperr.Validationf("batch exceeds %d operations", MaxOperations)
	}
	for _, op := range ops {
		if op.BookingID == uuid.Nil {
			return nil, apperr.Validationf("operation without booking id")
		}
		switch op.Field {
		case FieldCompleted, FieldNoShow:
		case FieldStatus:
			if !op.Status.Valid() {
				return nil, apperr.Validationf("invalid status %q for booking %s", op.Status, op.BookingID)
			}
		default:
			return nil, apperr.Validationf("unknown batch field %q", op.Field)
		}
	}

	res := &Result{Total: len(ops)}

	allowed, err := p.filterScope(ctx, ops, scope, res)
	if err != nil {
		return nil, err
	}

	groups := map[string][]Operation{}
	for _, op := range allowed {
		groups[op.Field] = append(groups[op.Field], op)
	}

	var touched []uuid.UUID
	touched = append(touched, p.applyFlags(ctx, FieldCompleted, groups[FieldCompleted], res)...)
	touched = append(touched, p.applyFlags(ctx, FieldNoShow, groups[FieldNoShow], res)...)
	touched = append(touched, p.applyStatuses(ctx, groups[FieldStatus], res)...)

	p.reconcileSessions(ctx, touched, res)

	res.Duration = time.Since(started)
	res.DurationM = res.Duration.Milliseconds()
	return res, nil
}

// filterScope resolves each booking's therapist and drops operations the
// caller may not perform. Unknown bookings become item errors; a majority of
// out-of-scope operations aborts the whole batch.
func (p *Processor) filterScope(ctx context.Context, ops []Operation, scope Scope, res *Result) ([]Operation, error) {
	ids := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.BookingID)
	}
	owners, err := p.Bookings.TherapistsForBookings(ctx, ids)
	if err != nil {
		return nil, err
	}

	denied := 0
	for _, op := range ops {
		therapist, ok := owners[op.BookingID]
		if ok && !scope.Allows(therapist) {
			denied++
		}
	}
	if denied*2 > len(ops) {
		return nil, apperr.Accessf("%d of %d operations target bookings outside caller scope", denied, len(ops))
	}

	allowed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		therapist, ok := owners[op.BookingID]
		switch {
		case !ok:
			res.Errors = append(res.Errors, session.ItemError{BookingID: op.BookingID, Err: "booking not found"})
		case !scope.Allows(therapist):
			res.Errors = append(res.Errors, session.ItemError{BookingID: op.BookingID, Err: "booking outside caller scope"})
		default:
			allowed = append(allowed, op)
		}
	}
	return allowed, nil
}

func (p *Processor) applyFlags(ctx context.Context, column string, ops []Operation, res *Result) []uuid.UUID {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ops))
	values := make([]bool, len(ops))
	for i, op := range ops {
		ids[i] = op.BookingID
		values[i] = op.Value
	}
	rows, err := p.Bookings.SetFlagBatch(ctx, column, ids, values)
	if err == nil && rows == int64(len(ops)) {
		res.Processed += len(ops)
		return ids
	}
	if err != nil {
		logging.L.Warnw("[batch] bulk flag update failed, retrying per item", "column", column, "error", err)
	} else {
		logging.L.Warnw("[batch] bulk flag update incomplete, retrying per item", "column", column, "updated", rows, "expected", len(ops))
	}

	ok := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		if err := p.Bookings.SetFlag(ctx, column, op.BookingID, op.Value); err != nil {
			res.Errors = append(res.Errors, session.ItemError{BookingID: op.BookingID, Err: err.Error()})
			continue
		}
		res.Processed++
		ok = append(ok, op.BookingID)
	}
	return ok
}

func (p *Processor) applyStatuses(ctx context.Context, ops []Operation, res *Result) []uuid.UUID {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ops))
	statuses := make([]repo.BookingStatus, len(ops))
	for i, op := range ops {
		ids[i] = op.BookingID
		statuses[i] = op.Status
	}
	rows, err := p.Bookings.SetStatusBatch(ctx, ids, statuses)
	if err == nil && rows == int64(len(ops)) {
		res.Processed += len(ops)
		return ids
	}
	if err != nil {
		logging.L.Warnw("[batch] bulk status update failed, retrying per item", "error", err)
	} else {
		logging.L.Warnw("[batch] bulk status update incomplete, retrying per item", "updated", rows, "expected", len(ops))
	}

	ok := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		if err := p.Bookings.SetStatus(ctx, op.BookingID, op.Status); err != nil {
			res.Errors = append(res.Errors, session.ItemError{BookingID: op.BookingID, Err: err.Error()})
			continue
		}
		res.Processed++
		ok = append(ok, op.BookingID)
	}
	return ok
}

// reconcileSessions re-reads the updated bookings and brings their sessions
// in line. Failures here do not undo the booking writes; they are reported
// alongside the rest.
func (p *Processor) reconcileSessions(ctx context.Context, ids []uuid.UUID, res *Result) {
	if len(ids) == 0 || p.Sync == nil {
		return
	}
	bookings, err := p.Bookings.ByIDs(ctx, ids)
	if err != nil {
		logging.L.Errorw("[batch] could not reload bookings for session sync", "error", err)
		res.Errors = append(res.Errors, session.ItemError{Err: "session sync skipped: " + err.Error()})
		return
	}
	report := p.Sync.BatchEnsure(ctx, bookings)
	res.Errors = append(res.Errors, report.Errors...)
}
