package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"homeserve/internal/database"
	"homeserve/internal/domain"
	"homeserve/internal/events"
	"homeserve/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingRequest carries the fields a caller supplies when creating a booking.
type BookingRequest struct {
	CustomerID     int64
	ServiceID      int64
	ScheduledDate  time.Time
	TimeSlot       models.TimeSlot
	ServiceAddress string
	Notes          string
}

// BookingService covers everything around the lifecycle: creation, provider
// assignment, reads and listings with per-role visibility rules.
type BookingService struct {
	store           domain.BookingStore
	eventBus        domain.EventPublisher
	taxRate         float64
	maxScheduleDays int
	logger          *zerolog.Logger
}

func NewBookingService(store domain.BookingStore, eventBus domain.EventPublisher, taxRate float64, maxScheduleDays int, logger *zerolog.Logger) *BookingService {
	if maxScheduleDays <= 0 {
		maxScheduleDays = models.DefaultMaxScheduleDays
	}
	return &BookingService{
		store:           store,
		eventBus:        eventBus,
		taxRate:         taxRate,
		maxScheduleDays: maxScheduleDays,
		logger:          logger,
	}
}

// newBookingID produces the external identifier, e.g. HS-1A2B3C4D.
func newBookingID() string {
	id := uuid.New().String()
	return "HS-" + strings.ToUpper(id[:8])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateBooking validates the request, snapshots the catalog price and
// persists a new booking in pending. Customers book for themselves; admins
// may book on any customer's behalf.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest, actor models.Actor) (*models.Booking, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsCustomer():
		if req.CustomerID == 0 {
			req.CustomerID = actor.ID
		}
		if req.CustomerID != actor.ID {
			return nil, fmt.Errorf("%w: customers may only create their own bookings", ErrForbidden)
		}
	default:
		return nil, fmt.Errorf("%w: providers may not create bookings", ErrForbidden)
	}

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	svc, err := s.store.GetServiceByID(ctx, req.ServiceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown service %d", ErrValidation, req.ServiceID)
	}
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("%w: service '%s' is not bookable", ErrValidation, svc.Name)
	}

	charge := round2(svc.BaseCharge)
	tax := round2(charge * s.taxRate)
	booking := &models.Booking{
		BookingID:      newBookingID(),
		CustomerID:     req.CustomerID,
		ServiceID:      svc.ID,
		ServiceName:    svc.Name,
		Status:         models.StatusPending,
		ScheduledDate:  req.ScheduledDate,
		TimeSlot:       req.TimeSlot,
		ServiceAddress: req.ServiceAddress,
		Pricing: models.Pricing{
			ServiceCharge: charge,
			Tax:           tax,
			Total:         round2(charge + tax),
		},
		Notes: req.Notes,
	}

	if err := s.store.CreateBooking(ctx, booking, actor); err != nil {
		if errors.Is(err, database.ErrDuplicateBookingID) {
			// UUID collision on the 8-char prefix; one retry is plenty.
			booking.BookingID = newBookingID()
			err = s.store.CreateBooking(ctx, booking, actor)
		}
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("booking_id", booking.BookingID).
		Int64("customer_id", booking.CustomerID).
		Str("service", booking.ServiceName).
		Time("scheduled", booking.ScheduledDate).
		Msg("booking created")

	if s.eventBus != nil {
		payload := events.BookingEventPayload{
			BookingID:   booking.BookingID,
			CustomerID:  booking.CustomerID,
			ServiceID:   booking.ServiceID,
			ServiceName: booking.ServiceName,
			Status:      booking.Status,
			Scheduled:   booking.ScheduledDate,
			ActorRole:   actor.Role,
			ActorID:     actor.ID,
		}
		if err := s.eventBus.PublishJSON(events.EventBookingCreated, payload); err != nil {
			s.logger.Error().Err(err).Str("booking_id", booking.BookingID).Msg("publish event error")
		}
	}

	return booking, nil
}

func (s *BookingService) validateRequest(req BookingRequest) error {
	if req.CustomerID == 0 {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if req.ServiceID == 0 {
		return fmt.Errorf("%w: service id is required", ErrValidation)
	}
	if strings.TrimSpace(req.ServiceAddress) == "" {
		return fmt.Errorf("%w: service address is required", ErrValidation)
	}
	if req.TimeSlot.Start == "" || req.TimeSlot.End == "" {
		return fmt.Errorf("%w: time slot is required", ErrValidation)
	}

	now := time.Now()
	day := req.ScheduledDate.Truncate(24 * time.Hour)
	today := now.Truncate(24 * time.Hour)
	if day.Before(today) {
		return fmt.Errorf("%w: scheduled date is in the past", ErrValidation)
	}
	if day.After(today.AddDate(0, 0, s.maxScheduleDays)) {
		return fmt.Errorf("%w: scheduled date is more than %d days ahead", ErrValidation, s.maxScheduleDays)
	}
	return nil
}

// AssignProvider binds a provider to a pending or confirmed booking.
// Admin only; assignment is not a status transition so no history row.
func (s *BookingService) AssignProvider(ctx context.Context, bookingID string, providerID int64, actor models.Actor) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins assign providers", ErrForbidden)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{BookingID: bookingID, Reason: ErrNotFound}
	}
	if err != nil {
		return nil, err
	}

	if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: provider can only be assigned while pending or confirmed (status %s)",
			ErrValidation, booking.Status)
	}

	provider, err := s.store.GetProvider(ctx, providerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown provider %d", ErrValidation, providerID)
	}
	if err != nil {
		return nil, err
	}
	if !provider.IsActive {
		return nil, fmt.Errorf("%w: provider '%s' is not active", ErrValidation, provider.Name)
	}

	fromVersion := booking.Version
	booking.ProviderID = &providerID
	if err := s.store.UpdateBookingWithVersion(ctx, booking, fromVersion, nil); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, &ConflictError{BookingID: bookingID}
		}
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", bookingID).
		Int64("provider_id", providerID).
		Msg("provider assigned")

	if s.eventBus != nil {
		payload := events.BookingEventPayload{
			BookingID:  booking.BookingID,
			CustomerID: booking.CustomerID,
			ProviderID: providerID,
			ServiceID:  booking.ServiceID,
			Status:     booking.Status,
			ActorRole:  actor.Role,
			ActorID:    actor.ID,
		}
		if err := s.eventBus.PublishJSON(events.EventProviderAssigned, payload); err != nil {
			s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("publish event error")
		}
	}

	return booking, nil
}

// GetBooking returns a booking the actor is allowed to see. Outsiders get
// the same not-found as a missing booking, so ids cannot be probed.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{BookingID: bookingID, Reason: ErrNotFound}
	}
	if err != nil {
		return nil, err
	}

	if !s.canSee(booking, actor) {
		return nil, &NotFoundError{BookingID: bookingID, Reason: ErrNotFound}
	}
	return booking, nil
}

// GetStatusHistory returns the append-only audit trail, oldest first.
func (s *BookingService) GetStatusHistory(ctx context.Context, bookingID string, actor models.Actor) ([]models.StatusHistoryEntry, error) {
	if _, err := s.GetBooking(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	return s.store.GetStatusHistory(ctx, bookingID)
}

// ListBookings returns the actor's own view: customers see their bookings,
// providers their assignments, admins may filter by status.
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor, status string) ([]*models.Booking, error) {
	switch {
	case actor.IsCustomer():
		return s.store.GetBookingsByCustomer(ctx, actor.ID)
	case actor.IsProvider():
		return s.store.GetBookingsByProvider(ctx, actor.ID)
	case actor.IsAdmin():
		if status != "" {
			if !IsValidStatus(status) {
				return nil, fmt.Errorf("%w: unknown status '%s'", ErrValidation, status)
			}
			return s.store.GetBookingsByStatus(ctx, status)
		}
		now := time.Now()
		return s.store.GetBookingsByDateRange(ctx, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	}
	return nil, ErrForbidden
}

// GetServices returns the active catalog, sorted for display.
func (s *BookingService) GetServices() []models.Service {
	all := s.store.GetServices()
	out := make([]models.Service, 0, len(all))
	for _, svc := range all {
		if svc.IsActive {
			out = append(out, svc)
		}
	}
	return out
}

func (s *BookingService) canSee(booking *models.Booking, actor models.Actor) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsCustomer():
		return booking.CustomerID == actor.ID
	case actor.IsProvider():
		return booking.AssignedTo(actor.ID)
	}
	return false
}
