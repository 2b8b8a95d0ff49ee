package database

import (
	"context"
	"os"
	"testing"
	"time"

	"homeserve/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func testActor() models.Actor {
	return models.Actor{Role: models.RoleCustomer, ID: 100}
}

func makeBooking(customerID int64) *models.Booking {
	return &models.Booking{
		BookingID:      "HS-TEST0001",
		CustomerID:     customerID,
		ServiceID:      1,
		ServiceName:    "Deep Home Cleaning",
		Status:         models.StatusPending,
		ScheduledDate:  time.Now().AddDate(0, 0, 2),
		TimeSlot:       models.TimeSlot{Start: "10:00", End: "12:00"},
		ServiceAddress: "221B Baker Street",
		Pricing:        models.Pricing{ServiceCharge: 2499, Tax: 449.82, Total: 2948.82},
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))
	assert.Equal(t, int64(1), booking.Version)
	assert.NotZero(t, booking.ID)

	got, err := db.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID, got.BookingID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "10:00", got.TimeSlot.Start)
	assert.Equal(t, 2948.82, got.Pricing.Total)
	assert.Nil(t, got.CompletionOTP)
	assert.Nil(t, got.ProviderID)
	assert.Equal(t, int64(1), got.Version)
}

func TestCreateBooking_InitialHistoryEntry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))

	history, err := db.GetStatusHistory(ctx, booking.BookingID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].Status)
	assert.Equal(t, models.RoleCustomer, history[0].ActorRole)
	assert.Equal(t, int64(100), history[0].ActorID)
}

func TestCreateBooking_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, first, testActor()))

	second := makeBooking(200)
	err := db.CreateBooking(ctx, second, testActor())
	assert.ErrorIs(t, err, ErrDuplicateBookingID)
}

func TestGetBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetBooking(context.Background(), "HS-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBookingWithVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))

	booking.Status = models.StatusConfirmed
	entry := &models.StatusHistoryEntry{
		BookingID: booking.BookingID,
		Status:    models.StatusConfirmed,
		ActorRole: models.RoleAdmin,
		ActorID:   1,
	}
	require.NoError(t, db.UpdateBookingWithVersion(ctx, booking, 1, entry))
	assert.Equal(t, int64(2), booking.Version)

	got, err := db.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	history, err := db.GetStatusHistory(ctx, booking.BookingID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusConfirmed, history[1].Status)
}

func TestUpdateBookingWithVersion_StaleVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))

	booking.Status = models.StatusConfirmed
	require.NoError(t, db.UpdateBookingWithVersion(ctx, booking, 1, nil))

	// A writer still holding version 1 must lose.
	stale := makeBooking(100)
	stale.Status = models.StatusCancelledByCustomer
	err := db.UpdateBookingWithVersion(ctx, stale, 1, nil)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

func TestUpdateBookingWithVersion_StaleVersionKeepsHistoryClean(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))

	stale := makeBooking(100)
	stale.Status = models.StatusConfirmed
	entry := &models.StatusHistoryEntry{BookingID: stale.BookingID, Status: models.StatusConfirmed, ActorRole: models.RoleAdmin, ActorID: 1}
	err := db.UpdateBookingWithVersion(ctx, stale, 99, entry)
	require.ErrorIs(t, err, ErrConcurrentModification)

	history, err := db.GetStatusHistory(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateBookingWithVersion_OtpRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, booking, testActor()))

	issued := time.Now()
	booking.Status = models.StatusWorkCompleted
	booking.CompletionOTP = &models.CompletionOTP{
		Code:              "482913",
		ExpiresAt:         issued.Add(10 * time.Minute),
		AttemptsRemaining: 5,
		IssuedAt:          issued,
	}
	require.NoError(t, db.UpdateBookingWithVersion(ctx, booking, 1, nil))

	got, err := db.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletionOTP)
	assert.Equal(t, "482913", got.CompletionOTP.Code)
	assert.Equal(t, 5, got.CompletionOTP.AttemptsRemaining)
	assert.WithinDuration(t, issued.Add(10*time.Minute), got.CompletionOTP.ExpiresAt, time.Second)

	// Clearing the OTP nulls the columns.
	got.CompletionOTP = nil
	got.Status = models.StatusCompleted
	require.NoError(t, db.UpdateBookingWithVersion(ctx, got, got.Version, nil))

	final, err := db.GetBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Nil(t, final.CompletionOTP)
	assert.Equal(t, models.StatusCompleted, final.Status)
}

func TestBookingListings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	providerID := int64(55)

	first := makeBooking(100)
	require.NoError(t, db.CreateBooking(ctx, first, testActor()))

	second := makeBooking(200)
	second.BookingID = "HS-TEST0002"
	second.ProviderID = &providerID
	second.Status = models.StatusConfirmed
	require.NoError(t, db.CreateBooking(ctx, second, models.Actor{Role: models.RoleAdmin, ID: 1}))

	byCustomer, err := db.GetBookingsByCustomer(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)
	assert.Equal(t, "HS-TEST0001", byCustomer[0].BookingID)

	byProvider, err := db.GetBookingsByProvider(ctx, providerID)
	require.NoError(t, err)
	assert.Len(t, byProvider, 1)
	assert.Equal(t, "HS-TEST0002", byProvider[0].BookingID)

	byStatus, err := db.GetBookingsByStatus(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	byRange, err := db.GetBookingsByDateRange(ctx, time.Now(), time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, byRange, 2)
}
