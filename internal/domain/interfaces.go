package domain

import (
	"context"
	"time"

	"homeserve/internal/models"
)

// BookingStore persists bookings, their audit trail and related records.
// UpdateBookingWithVersion must be a single atomic read-modify-write: it
// fails with the store's concurrent-modification error when the version
// check does not match.
type BookingStore interface {
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking, actor models.Actor) error
	UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, fromVersion int64, entry *models.StatusHistoryEntry) error
	GetStatusHistory(ctx context.Context, bookingID string) ([]models.StatusHistoryEntry, error)
	GetBookingsByCustomer(ctx context.Context, customerID int64) ([]*models.Booking, error)
	GetBookingsByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	GetCustomerContact(ctx context.Context, customerID int64) (*models.Contact, error)
	GetServiceByID(ctx context.Context, id int64) (*models.Service, error)
	GetServices() []models.Service
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
}

// StateRepository caches customer contacts and tracks rate-limit windows.
// Implementations: redis, in-memory, and a failover pair.
type StateRepository interface {
	GetContact(ctx context.Context, customerID int64) (*models.Contact, error)
	SetContact(ctx context.Context, contact *models.Contact) error
	ClearContact(ctx context.Context, customerID int64) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventPublisher fans lifecycle events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationEnqueuer schedules deliveries without blocking the caller.
// Enqueue failures are reported to the caller for logging only; the state
// machine never rolls back because a notification could not be scheduled.
type NotificationEnqueuer interface {
	EnqueueCompletionCode(ctx context.Context, booking *models.Booking, contact *models.Contact, code string) error
	EnqueueStatusUpdate(ctx context.Context, booking *models.Booking, contact *models.Contact) error
}

// Sender delivers a rendered message to a resolved contact.
type Sender interface {
	SendMessage(ctx context.Context, contact *models.Contact, text string) error
}

// BookingLifecycle is the transition and completion-confirmation surface.
type BookingLifecycle interface {
	Transition(ctx context.Context, bookingID, target string, actor models.Actor) (*models.Booking, error)
	RequestCompletionCode(ctx context.Context, bookingID string, actor models.Actor) error
	VerifyCompletionCode(ctx context.Context, bookingID, code string, actor models.Actor) (*models.Booking, error)
}
