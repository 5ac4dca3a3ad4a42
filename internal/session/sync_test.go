package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
)

// mockStore is an in-memory Store with injectable failures.
type mockStore struct {
	sessions map[uuid.UUID]repo.Session // keyed by booking id

	failCreateBatch bool
	failDeleteBatch bool
	failCreateFor   map[uuid.UUID]bool

	createCalls      int
	createBatchCalls int
	lookupCalls      int
	updates          map[uuid.UUID]map[string]interface{}
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions:      map[uuid.UUID]repo.Session{},
		failCreateFor: map[uuid.UUID]bool{},
		updates:       map[uuid.UUID]map[string]interface{}{},
	}
}

func (m *mockStore) ByBookingID(_ context.Context, bookingID uuid.UUID) (*repo.Session, error) {
	m.lookupCalls++
	if s, ok := m.sessions[bookingID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *mockStore) ByBookingIDs(_ context.Context, ids []uuid.UUID) ([]repo.Session, error) {
	m.lookupCalls++
	var out []repo.Session
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) Create(_ context.Context, s *repo.Session) error {
	m.createCalls++
	if s.BookingID != nil && m.failCreateFor[*s.BookingID] {
		return errors.New("insert failed")
	}
	s.ID = uuid.New()
	if s.BookingID != nil {
		m.sessions[*s.BookingID] = *s
	}
	return nil
}

func (m *mockStore) CreateBatch(ctx context.Context, sessions []repo.Session) error {
	m.createBatchCalls++
	if m.failCreateBatch {
		return errors.New("batch insert failed")
	}
	for i := range sessions {
		if err := m.Create(ctx, &sessions[i]); err != nil {
			return err
		}
		m.createCalls-- // batch path does not count as individual creates
	}
	return nil
}

func (m *mockStore) DeleteByBookingID(_ context.Context, bookingID uuid.UUID) (int64, error) {
	if _, ok := m.sessions[bookingID]; !ok {
		return 0, nil
	}
	delete(m.sessions, bookingID)
	return 1, nil
}

func (m *mockStore) DeleteByBookingIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	if m.failDeleteBatch {
		return 0, errors.New("batch delete failed")
	}
	var n int64
	for _, id := range ids {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) UpdateByBookingID(_ context.Context, bookingID uuid.UUID, updates map[string]interface{}) error {
	m.updates[bookingID] = updates
	return nil
}

func booking(status repo.BookingStatus) repo.Booking {
	return repo.Booking{
		ID:          uuid.New(),
		TherapistID: uuid.New(),
		PatientID:   uuid.New(),
		Date:        time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00:00",
		Type:        "Terapia individual",
		Value:       decimal.NewFromInt(200),
		Status:      status,
	}
}

func TestEnsureCreatesForBillable(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	b := booking(repo.BookingConfirmed)

	created, removed, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, removed)

	s := store.sessions[b.ID]
	assert.Equal(t, b.TherapistID, s.TherapistID)
	assert.Equal(t, repo.SessionScheduled, s.Status)
	assert.Equal(t, repo.InvoiceNotIssued, s.InvoiceStatus)
	assert.False(t, s.PaymentDone)
	assert.False(t, s.ShareDone)
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	b := booking(repo.BookingConfirmed)

	created, _, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)
	require.True(t, created)

	created, removed, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, removed)
	assert.Len(t, store.sessions, 1, "second call must not create a duplicate")
}

func TestEnsureRemovesForCancelled(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	b := booking(repo.BookingConfirmed)
	_, _, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)

	b.Status = repo.BookingCancelled
	created, removed, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, removed)
	assert.Empty(t, store.sessions)
}

func TestEnsureNoShowIsNotBillable(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	b := booking(repo.BookingConfirmed)
	b.NoShow = true

	created, removed, err := sync.Ensure(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, removed)
}

func TestBatchEnsureUsesSingleLookupAndGroupedWrites(t *testing.T) {
	store := newMockStore()
	sync := New(store)

	bookings := []repo.Booking{
		booking(repo.BookingConfirmed),
		booking(repo.BookingConfirmed),
		booking(repo.BookingRescheduled),
	}
	cancelled := booking(repo.BookingCancelled)
	store.sessions[cancelled.ID] = repo.Session{ID: uuid.New(), BookingID: &cancelled.ID}
	bookings = append(bookings, cancelled)

	report := sync.BatchEnsure(context.Background(), bookings)
	assert.True(t, report.Ok())
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, store.lookupCalls, "must batch the existence lookup")
	assert.Equal(t, 1, store.createBatchCalls)
}

func TestBatchEnsureFallsBackToIndividualOnGroupFailure(t *testing.T) {
	store := newMockStore()
	store.failCreateBatch = true
	sync := New(store)

	good1 := booking(repo.BookingConfirmed)
	bad := booking(repo.BookingConfirmed)
	good2 := booking(repo.BookingConfirmed)
	store.failCreateFor[bad.ID] = true

	report := sync.BatchEnsure(context.Background(), []repo.Booking{good1, bad, good2})
	assert.Equal(t, 2, report.Created)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].BookingID)
	// The two good bookings still got their sessions.
	assert.Len(t, store.sessions, 2)
}

func TestBatchEnsureEmptyInput(t *testing.T) {
	sync := New(newMockStore())
	report := sync.BatchEnsure(context.Background(), nil)
	assert.True(t, report.Ok())
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Removed)
}

func TestPropagateFieldChangeOnlyTouchesPresentFields(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	id := uuid.New()

	v := decimal.NewFromInt(250)
	err := sync.PropagateFieldChange(context.Background(), id, FieldChanges{Value: &v})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"value": v}, store.updates[id])
}

func TestPropagateStatusMapsThroughLookupTable(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	id := uuid.New()

	st := repo.BookingRescheduled
	err := sync.PropagateFieldChange(context.Background(), id, FieldChanges{Status: &st})
	require.NoError(t, err)
	assert.Equal(t, string(repo.SessionRescheduled), store.updates[id]["status"])
}

func TestPropagateCancellationRemovesSession(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	id := uuid.New()
	store.sessions[id] = repo.Session{ID: uuid.New(), BookingID: &id}

	st := repo.BookingCancelled
	err := sync.PropagateFieldChange(context.Background(), id, FieldChanges{Status: &st})
	require.NoError(t, err)
	assert.Empty(t, store.sessions)
	assert.Empty(t, store.updates)
}

func TestPropagateEmptyChangeSetIsNoOp(t *testing.T) {
	store := newMockStore()
	sync := New(store)
	require.NoError(t, sync.PropagateFieldChange(context.Background(), uuid.New(), FieldChanges{}))
	assert.Empty(t, store.updates)
}
