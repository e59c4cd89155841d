package registration

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherpoint/backend/internal/models"
)

// Store is the persistence surface the engine needs. Every write happens
// inside one transaction boundary on the store side; the engine never holds
// a lock across two separate calls.
type Store interface {
	// GetEventWithRegistrations loads the event and all of its
	// registrations (any status). Returns ErrEventNotFound if absent.
	GetEventWithRegistrations(ctx context.Context, eventID int64) (*models.Event, error)
	// GetActiveRegistration returns the confirmed registration for the
	// pair, or nil when there is none.
	GetActiveRegistration(ctx context.Context, userID uuid.UUID, eventID int64) (*models.Registration, error)
	// CreateRegistration re-validates eligibility and inserts the
	// registration atomically. It fails with ErrEventNotFound,
	// ErrNotUpcoming, ErrEventFull or ErrAlreadyRegistered, and must not
	// let two concurrent calls both pass the capacity and uniqueness
	// checks.
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	// UpdateRegistration persists a status transition on an existing row.
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
	// GetRegistrationByID returns the registration or nil when absent.
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error)
}

// AvailabilityCache invalidates cached fill-state after a successful
// register or cancel. Implementations are best-effort; failures are logged
// and ignored.
type AvailabilityCache interface {
	Invalidate(ctx context.Context, eventID int64) error
}

// Service is the registration engine: it decides whether a registration
// attempt succeeds and how cancellation restores capacity.
type Service struct {
	store  Store
	cache  AvailabilityCache
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the registration engine. cache may be nil.
func NewService(store Store, cache AvailabilityCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// checkEligibility is the one eligibility rule shared by the probe
// (CanRegister) and the transactional insert path. confirmed is the
// confirmed-registration count observed in the same snapshot as the event.
func checkEligibility(evt *models.Event, confirmed int, hasActive bool, now time.Time) error {
	if !evt.IsUpcomingAt(now) {
		return ErrNotUpcoming
	}
	if models.SpotsRemaining(evt.Capacity, confirmed) <= 0 {
		return ErrEventFull
	}
	if hasActive {
		return ErrAlreadyRegistered
	}
	return nil
}

// Register registers the user for the event. On success it returns the new
// confirmed registration; otherwise one of the sentinel errors or a wrapped
// store failure. The store performs the eligibility re-check and the insert
// in a single transaction, so two racing calls cannot both succeed.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, eventID int64, notes *string) (*models.Registration, error) {
	// Bound in runes: the request binding and the DB CHECK both count
	// characters, not bytes.
	if notes != nil && utf8.RuneCountInString(*notes) > models.MaxNotesLength {
		return nil, ErrNotesTooLong
	}

	reg := &models.Registration{
		UserID:           userID,
		EventID:          eventID,
		Status:           models.RegistrationStatusConfirmed,
		RegistrationDate: s.now(),
		Notes:            notes,
	}
	if err := s.store.CreateRegistration(ctx, reg); err != nil {
		return nil, err
	}

	s.logger.Info("registration created",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("event_id", eventID),
		zap.String("user_id", userID.String()),
	)
	s.invalidate(ctx, eventID)
	return reg, nil
}

// Cancel cancels the registration if it exists and belongs to the user.
// A missing registration or one owned by someone else returns false without
// an error, so callers cannot distinguish the two. Cancelling an already
// cancelled registration re-applies the same terminal state and returns
// true.
func (s *Service) Cancel(ctx context.Context, registrationID int64, userID uuid.UUID) (bool, error) {
	reg, err := s.store.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return false, fmt.Errorf("get registration: %w", err)
	}
	if reg == nil || reg.UserID != userID {
		return false, nil
	}

	now := s.now()
	reg.Status = models.RegistrationStatusCancelled
	reg.CancelledAt = &now
	if err := s.store.UpdateRegistration(ctx, reg); err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}

	s.logger.Info("registration cancelled",
		zap.Int64("registration_id", registrationID),
		zap.Int64("event_id", reg.EventID),
		zap.String("user_id", userID.String()),
	)
	s.invalidate(ctx, reg.EventID)
	return true, nil
}

// IsRegistered reports whether the user holds a confirmed registration for
// the event.
func (s *Service) IsRegistered(ctx context.Context, userID uuid.UUID, eventID int64) (bool, error) {
	reg, err := s.store.GetActiveRegistration(ctx, userID, eventID)
	if err != nil {
		return false, fmt.Errorf("get active registration: %w", err)
	}
	return reg != nil, nil
}

// CanRegister is the non-erroring probe for Register: false covers
// not-found, not-upcoming, full and already-registered alike. Callers that
// need the reason call Register and inspect the error.
func (s *Service) CanRegister(ctx context.Context, eventID int64, userID uuid.UUID) (bool, error) {
	evt, err := s.store.GetEventWithRegistrations(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get event: %w", err)
	}
	active, err := s.store.GetActiveRegistration(ctx, userID, eventID)
	if err != nil {
		return false, fmt.Errorf("get active registration: %w", err)
	}
	return checkEligibility(evt, evt.RegisteredCount(), active != nil, s.now()) == nil, nil
}

// ListByUser returns all of a user's registrations, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListByEvent returns all registrations for an event in registration order.
func (s *Service) ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error) {
	return s.store.ListByEvent(ctx, eventID)
}

func (s *Service) invalidate(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.logger.Warn("availability cache invalidation failed",
			zap.Int64("event_id", eventID), zap.Error(err))
	}
}
