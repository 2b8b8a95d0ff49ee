package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"homeserve/internal/database"
	"homeserve/internal/domain"
	"homeserve/internal/events"
	"homeserve/internal/metrics"
	"homeserve/internal/models"

	"github.com/rs/zerolog"
)

// Lifecycle validates and applies booking status transitions and runs the
// completion-code handshake. Every mutation is a version-guarded
// read-modify-write against the store; losers of a race get ErrConflict.
type Lifecycle struct {
	store    domain.BookingStore
	states   domain.StateRepository
	notifier domain.NotificationEnqueuer
	eventBus domain.EventPublisher
	otp      OtpPolicy
	logger   *zerolog.Logger
}

func NewLifecycle(
	store domain.BookingStore,
	states domain.StateRepository,
	notifier domain.NotificationEnqueuer,
	eventBus domain.EventPublisher,
	otp OtpPolicy,
	logger *zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		store:    store,
		states:   states,
		notifier: notifier,
		eventBus: eventBus,
		otp:      otp.withDefaults(),
		logger:   logger,
	}
}

// Transition moves a booking along one edge of the transition table.
// Entering work_completed issues a completion code and schedules its
// delivery as part of the same call; delivery is never on the critical path.
func (s *Lifecycle) Transition(ctx context.Context, bookingID, target string, actor models.Actor) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !IsValidStatus(target) {
		return nil, &TransitionError{
			BookingID: bookingID,
			From:      booking.Status,
			To:        target,
			Allowed:   directTargets(booking.Status),
		}
	}

	role, ok := requiredRole(booking.Status, target)
	if !ok || target == models.StatusCompleted {
		// completed is reachable only through VerifyCompletionCode.
		return nil, &TransitionError{
			BookingID: bookingID,
			From:      booking.Status,
			To:        target,
			Allowed:   directTargets(booking.Status),
		}
	}

	if err := s.checkActor(booking, role, target, actor); err != nil {
		return nil, err
	}

	fromVersion := booking.Version
	fromStatus := booking.Status
	booking.Status = target

	var issuedCode string
	if target == models.StatusWorkCompleted {
		otp, err := s.otp.newCompletionOTP(time.Now())
		if err != nil {
			return nil, err
		}
		booking.CompletionOTP = otp
		issuedCode = otp.Code
	}

	entry := &models.StatusHistoryEntry{
		BookingID: booking.BookingID,
		Status:    target,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}
	if err := s.save(ctx, booking, fromVersion, entry); err != nil {
		return nil, err
	}

	metrics.IncTransition(fromStatus, target)
	s.logger.Info().
		Str("booking_id", booking.BookingID).
		Str("from", fromStatus).
		Str("to", target).
		Str("actor", actor.String()).
		Msg("booking transition applied")

	s.publishEvent(eventTypeFor(target), booking, actor)

	if issuedCode != "" {
		metrics.IncOtpIssued()
		s.deliverCompletionCode(ctx, booking, issuedCode)
	} else {
		s.notifyStatus(ctx, booking)
	}

	return booking, nil
}

// RequestCompletionCode re-issues the completion code while the booking
// remains in work_completed. The previous code is invalidated wholesale.
func (s *Lifecycle) RequestCompletionCode(ctx context.Context, bookingID string, actor models.Actor) error {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.checkOtpActor(booking, actor); err != nil {
		return err
	}

	if booking.Status != models.StatusWorkCompleted {
		return &NotFoundError{BookingID: bookingID, Status: booking.Status, Reason: ErrOtpNotActive}
	}

	allowed, err := s.states.CheckRateLimit(ctx,
		fmt.Sprintf("otp_request:%s", bookingID),
		s.otp.RequestLimit, s.otp.RequestWindow)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("otp rate limit check failed")
	} else if !allowed {
		return ErrOtpRequestLimited
	}

	otp, err := s.otp.newCompletionOTP(time.Now())
	if err != nil {
		return err
	}
	fromVersion := booking.Version
	booking.CompletionOTP = otp

	// Re-issuance is not a transition: no history entry is appended.
	if err := s.save(ctx, booking, fromVersion, nil); err != nil {
		return err
	}

	metrics.IncOtpIssued()
	s.logger.Info().
		Str("booking_id", booking.BookingID).
		Str("actor", actor.String()).
		Msg("completion code re-issued")

	s.deliverCompletionCode(ctx, booking, otp.Code)
	return nil
}

// VerifyCompletionCode checks the submitted code and, on a match, finalizes
// the booking as completed. The attempt counter and the transition share one
// version-guarded save, so concurrent verifications cannot both succeed.
func (s *Lifecycle) VerifyCompletionCode(ctx context.Context, bookingID, code string, actor models.Actor) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.checkOtpActor(booking, actor); err != nil {
		return nil, err
	}

	otp := booking.CompletionOTP
	if booking.Status != models.StatusWorkCompleted || otp == nil {
		return nil, &NotFoundError{BookingID: bookingID, Status: booking.Status, Reason: ErrOtpNotActive}
	}

	if time.Now().After(otp.ExpiresAt) {
		metrics.IncOtpVerify("expired")
		return nil, &NotFoundError{BookingID: bookingID, Status: booking.Status, Reason: ErrOtpExpired}
	}

	if otp.AttemptsRemaining <= 0 {
		metrics.IncOtpVerify("exhausted")
		return nil, &NotFoundError{BookingID: bookingID, Status: booking.Status, Reason: ErrOtpAttemptsExhausted}
	}

	fromVersion := booking.Version
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		otp.AttemptsRemaining--
		if err := s.save(ctx, booking, fromVersion, nil); err != nil {
			return nil, err
		}
		metrics.IncOtpVerify("mismatch")
		s.logger.Warn().
			Str("booking_id", bookingID).
			Int("attempts_remaining", otp.AttemptsRemaining).
			Msg("completion code mismatch")
		return nil, &InvalidOtpError{BookingID: bookingID, AttemptsRemaining: otp.AttemptsRemaining}
	}

	booking.CompletionOTP = nil
	booking.Status = models.StatusCompleted
	entry := &models.StatusHistoryEntry{
		BookingID: booking.BookingID,
		Status:    models.StatusCompleted,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}
	if err := s.save(ctx, booking, fromVersion, entry); err != nil {
		return nil, err
	}

	metrics.IncOtpVerify("ok")
	metrics.IncTransition(models.StatusWorkCompleted, models.StatusCompleted)
	s.logger.Info().
		Str("booking_id", booking.BookingID).
		Str("actor", actor.String()).
		Msg("booking completed after code verification")

	s.publishEvent(events.EventBookingCompleted, booking, actor)
	s.notifyStatus(ctx, booking)
	return booking, nil
}

func (s *Lifecycle) loadBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{BookingID: bookingID, Reason: ErrNotFound}
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Lifecycle) save(ctx context.Context, booking *models.Booking, fromVersion int64, entry *models.StatusHistoryEntry) error {
	err := s.store.UpdateBookingWithVersion(ctx, booking, fromVersion, entry)
	if errors.Is(err, database.ErrConcurrentModification) {
		metrics.IncTransitionConflict()
		return &ConflictError{BookingID: booking.BookingID}
	}
	return err
}

// checkActor enforces both the role required by the edge and the identity
// binding: customers act on their own bookings, providers on assigned ones.
func (s *Lifecycle) checkActor(booking *models.Booking, required, target string, actor models.Actor) error {
	forbidden := &ForbiddenError{
		BookingID: booking.BookingID,
		From:      booking.Status,
		To:        target,
		Actor:     actor,
		Required:  required,
	}

	if actor.Role != required {
		return forbidden
	}

	switch required {
	case models.RoleCustomer:
		if actor.ID != booking.CustomerID {
			return forbidden
		}
	case models.RoleProvider:
		if !booking.AssignedTo(actor.ID) {
			return forbidden
		}
	}
	return nil
}

// checkOtpActor gates the completion handshake: the assigned provider
// submits the code on the customer's behalf; admins may step in.
func (s *Lifecycle) checkOtpActor(booking *models.Booking, actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsProvider() && booking.AssignedTo(actor.ID) {
		return nil
	}
	return &ForbiddenError{
		BookingID: booking.BookingID,
		From:      booking.Status,
		To:        models.StatusCompleted,
		Actor:     actor,
		Required:  models.RoleProvider,
	}
}

func (s *Lifecycle) resolveContact(ctx context.Context, customerID int64) (*models.Contact, error) {
	if s.states != nil {
		contact, err := s.states.GetContact(ctx, customerID)
		if err == nil && contact != nil {
			return contact, nil
		}
	}

	contact, err := s.store.GetCustomerContact(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if s.states != nil {
		if err := s.states.SetContact(ctx, contact); err != nil {
			s.logger.Warn().Err(err).Int64("customer_id", customerID).Msg("contact cache write failed")
		}
	}
	return contact, nil
}

// deliverCompletionCode is fire-and-forget: any failure is logged and the
// already-persisted state change stands.
func (s *Lifecycle) deliverCompletionCode(ctx context.Context, booking *models.Booking, code string) {
	if s.notifier == nil {
		return
	}

	contact, err := s.resolveContact(ctx, booking.CustomerID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.BookingID).Msg("contact resolution failed, completion code not delivered")
		return
	}

	if err := s.notifier.EnqueueCompletionCode(ctx, booking, contact, code); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.BookingID).Msg("completion code enqueue failed")
	}
}

func (s *Lifecycle) notifyStatus(ctx context.Context, booking *models.Booking) {
	if s.notifier == nil {
		return
	}

	contact, err := s.resolveContact(ctx, booking.CustomerID)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.BookingID).Msg("contact resolution failed, status update not delivered")
		return
	}

	if err := s.notifier.EnqueueStatusUpdate(ctx, booking, contact); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.BookingID).Msg("status update enqueue failed")
	}
}

func (s *Lifecycle) publishEvent(eventType string, booking *models.Booking, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

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
	if booking.ProviderID != nil {
		payload.ProviderID = *booking.ProviderID
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.BookingID).Msg("publish event error")
	}
}

func eventTypeFor(status string) string {
	switch status {
	case models.StatusConfirmed:
		return events.EventBookingConfirmed
	case models.StatusProviderOnWay:
		return events.EventProviderOnWay
	case models.StatusInProgress:
		return events.EventWorkStarted
	case models.StatusWorkCompleted:
		return events.EventWorkCompleted
	case models.StatusCompleted:
		return events.EventBookingCompleted
	default:
		return events.EventBookingCancelled
	}
}
