package registration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/models"
)

// memoryStore is an in-memory Store whose CreateRegistration holds one lock
// across the eligibility check and the insert, mirroring the transactional
// guarantee of the pgx repository.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*models.Event
	regs   map[int64]*models.Registration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events: make(map[int64]*models.Event),
		regs:   make(map[int64]*models.Registration),
	}
}

func (m *memoryStore) addEvent(evt models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[evt.ID] = &evt
}

func (m *memoryStore) eventRegs(eventID int64) []models.Registration {
	var out []models.Registration
	for _, r := range m.regs {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out
}

func (m *memoryStore) GetEventWithRegistrations(_ context.Context, eventID int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evt, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	out := *evt
	out.Registrations = m.eventRegs(eventID)
	return &out, nil
}

func (m *memoryStore) GetActiveRegistration(_ context.Context, userID uuid.UUID, eventID int64) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.UserID == userID && r.EventID == eventID && r.IsActive() {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateRegistration(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	evt, ok := m.events[reg.EventID]
	if !ok {
		return ErrEventNotFound
	}
	confirmed := models.ConfirmedCount(m.eventRegs(reg.EventID))
	hasActive := false
	for _, r := range m.regs {
		if r.UserID == reg.UserID && r.EventID == reg.EventID && r.IsActive() {
			hasActive = true
			break
		}
	}
	if err := checkEligibility(evt, confirmed, hasActive, time.Now().UTC()); err != nil {
		return err
	}

	m.nextID++
	reg.ID = m.nextID
	stored := *reg
	m.regs[reg.ID] = &stored
	return nil
}

func (m *memoryStore) UpdateRegistration(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[reg.ID]; !ok {
		return ErrRegistrationNotFound
	}
	stored := *reg
	m.regs[reg.ID] = &stored
	return nil
}

func (m *memoryStore) GetRegistrationByID(_ context.Context, id int64) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.regs {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memoryStore) ListByEvent(_ context.Context, eventID int64) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventRegs(eventID), nil
}

func upcomingEvent(id int64, capacity, daysAhead int) models.Event {
	return models.Event{
		ID:        id,
		Name:      "Summer Fair",
		EventDate: models.TruncateToDay(time.Now().UTC().AddDate(0, 0, daysAhead)),
		StartTime: "10:00:00",
		Capacity:  capacity,
		Status:    models.EventStatusUpcoming,
		VenueID:   1,
	}
}

func newTestService(store Store) *Service {
	return NewService(store, nil, zap.NewNop())
}

func TestRegisterSucceeds(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 100, 30))
	svc := newTestService(store)
	userID := uuid.New()

	reg, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusConfirmed, reg.Status)
	assert.Equal(t, userID, reg.UserID)
	assert.NotZero(t, reg.ID)
	assert.False(t, reg.RegistrationDate.IsZero())
	assert.Nil(t, reg.CancelledAt)

	evt, err := store.GetEventWithRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, evt.RegisteredCount())
	assert.Equal(t, 99, evt.AvailableSpots())
	assert.False(t, evt.IsFull())
}

func TestRegisterEventNotFound(t *testing.T) {
	svc := newTestService(newMemoryStore())

	_, err := svc.Register(context.Background(), uuid.New(), 42, nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRegisterEventFull(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 2, 7))
	svc := newTestService(store)

	for i := 0; i < 2; i++ {
		_, err := svc.Register(context.Background(), uuid.New(), 1, nil)
		require.NoError(t, err)
	}

	_, err := svc.Register(context.Background(), uuid.New(), 1, nil)
	assert.ErrorIs(t, err, ErrEventFull)
}

func TestRegisterNotUpcoming(t *testing.T) {
	tests := []struct {
		name string
		evt  models.Event
	}{
		{"past date, status never transitioned", upcomingEvent(1, 10, -10)},
		{"cancelled", func() models.Event {
			e := upcomingEvent(1, 10, 5)
			e.Status = models.EventStatusCancelled
			return e
		}()},
		{"completed", func() models.Event {
			e := upcomingEvent(1, 10, 5)
			e.Status = models.EventStatusCompleted
			return e
		}()},
		{"ongoing", func() models.Event {
			e := upcomingEvent(1, 10, 0)
			e.Status = models.EventStatusOngoing
			return e
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			store.addEvent(tt.evt)
			svc := newTestService(store)

			_, err := svc.Register(context.Background(), uuid.New(), 1, nil)
			assert.ErrorIs(t, err, ErrNotUpcoming)
		})
	}
}

func TestRegisterDuplicateThenCancelThenRegister(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 14))
	svc := newTestService(store)
	userID := uuid.New()

	first, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), userID, 1, nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	cancelled, err := svc.Cancel(context.Background(), first.ID, userID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	second, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegisterWaitlistedDoesNotBlock(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 1, 5))
	svc := newTestService(store)

	// A stored waitlisted row must neither consume capacity nor count as an
	// active registration for the same user.
	userID := uuid.New()
	store.mu.Lock()
	store.nextID++
	store.regs[store.nextID] = &models.Registration{
		ID:               store.nextID,
		UserID:           userID,
		EventID:          1,
		RegistrationDate: time.Now().UTC(),
		Status:           models.RegistrationStatusWaitlisted,
	}
	store.mu.Unlock()

	_, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)
}

func TestRegisterNotesTooLong(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 5))
	svc := newTestService(store)

	notes := strings.Repeat("x", models.MaxNotesLength+1)
	_, err := svc.Register(context.Background(), uuid.New(), 1, &notes)
	assert.ErrorIs(t, err, ErrNotesTooLong)

	// The bound counts runes, not bytes: a max-length multibyte note is
	// twice the limit in bytes and still fits.
	multibyte := strings.Repeat("é", models.MaxNotesLength)
	_, err = svc.Register(context.Background(), uuid.New(), 1, &multibyte)
	require.NoError(t, err)

	tooLong := strings.Repeat("é", models.MaxNotesLength+1)
	_, err = svc.Register(context.Background(), uuid.New(), 1, &tooLong)
	assert.ErrorIs(t, err, ErrNotesTooLong)
}

func TestCancelOwnership(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 5))
	svc := newTestService(store)
	owner := uuid.New()
	other := uuid.New()

	reg, err := svc.Register(context.Background(), owner, 1, nil)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), reg.ID, other)
	require.NoError(t, err)
	assert.False(t, cancelled)

	stored, err := store.GetRegistrationByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusConfirmed, stored.Status)
	assert.Nil(t, stored.CancelledAt)
}

func TestCancelMissingRegistration(t *testing.T) {
	svc := newTestService(newMemoryStore())

	cancelled, err := svc.Cancel(context.Background(), 99, uuid.New())
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestCancelIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 5))
	svc := newTestService(store)
	userID := uuid.New()

	reg, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		cancelled, err := svc.Cancel(context.Background(), reg.ID, userID)
		require.NoError(t, err)
		assert.True(t, cancelled)

		stored, err := store.GetRegistrationByID(context.Background(), reg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusCancelled, stored.Status)
		require.NotNil(t, stored.CancelledAt)
	}
}

func TestIsRegistered(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 5))
	svc := newTestService(store)
	userID := uuid.New()

	registered, err := svc.IsRegistered(context.Background(), userID, 1)
	require.NoError(t, err)
	assert.False(t, registered)

	reg, err := svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)

	registered, err = svc.IsRegistered(context.Background(), userID, 1)
	require.NoError(t, err)
	assert.True(t, registered)

	_, err = svc.Cancel(context.Background(), reg.ID, userID)
	require.NoError(t, err)

	registered, err = svc.IsRegistered(context.Background(), userID, 1)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestCanRegister(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 1, 5))
	store.addEvent(upcomingEvent(2, 10, -1))
	svc := newTestService(store)
	userID := uuid.New()

	can, err := svc.CanRegister(context.Background(), 1, userID)
	require.NoError(t, err)
	assert.True(t, can)

	// Unknown event is a plain false, not an error.
	can, err = svc.CanRegister(context.Background(), 99, userID)
	require.NoError(t, err)
	assert.False(t, can)

	// Past event.
	can, err = svc.CanRegister(context.Background(), 2, userID)
	require.NoError(t, err)
	assert.False(t, can)

	// Registering consumes the single spot: full for others, duplicate for
	// the registrant.
	_, err = svc.Register(context.Background(), userID, 1, nil)
	require.NoError(t, err)

	can, err = svc.CanRegister(context.Background(), 1, userID)
	require.NoError(t, err)
	assert.False(t, can)

	can, err = svc.CanRegister(context.Background(), 1, uuid.New())
	require.NoError(t, err)
	assert.False(t, can)
}

func TestConcurrentSamePairSingleWinner(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 10, 5))
	svc := newTestService(store)
	userID := uuid.New()

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), userID, 1, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, duplicates := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, ErrAlreadyRegistered)
			duplicates++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
}

func TestConcurrentCapacityBound(t *testing.T) {
	store := newMemoryStore()
	store.addEvent(upcomingEvent(1, 2, 5))
	svc := newTestService(store)

	const attempts = 5
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), uuid.New(), 1, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, full := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, ErrEventFull)
			full++
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 3, full)

	evt, err := store.GetEventWithRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, evt.RegisteredCount())
	assert.True(t, evt.IsFull())
}
