package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"homeserve/internal/models"
)

const bookingColumns = `id, booking_id, customer_id, provider_id, service_id, service_name,
                 status, scheduled_date, slot_start, slot_end, service_address,
                 service_charge, tax, total,
                 otp_code, otp_expires_at, otp_attempts_remaining, otp_issued_at,
                 notes, created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking, actor models.Actor) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO bookings (
				booking_id, customer_id, provider_id, service_id, service_name,
				status, scheduled_date, slot_start, slot_end, service_address,
				service_charge, tax, total, notes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		booking.BookingID,
		booking.CustomerID,
		booking.ProviderID,
		booking.ServiceID,
		booking.ServiceName,
		booking.Status,
		booking.ScheduledDate,
		booking.TimeSlot.Start,
		booking.TimeSlot.End,
		booking.ServiceAddress,
		booking.Pricing.ServiceCharge,
		booking.Pricing.Tax,
		booking.Pricing.Total,
		booking.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateBookingID
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	historyQuery := `INSERT INTO booking_status_history (booking_id, status, actor_role, actor_id, created_at)
                     VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, historyQuery,
		booking.BookingID, booking.Status, actor.Role, actor.ID, now,
	); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, bookingID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", bookingID, err)
	}
	return booking, nil
}

// UpdateBookingWithVersion persists the mutable fields of a booking in a
// single atomic read-modify-write guarded by the version column, and appends
// the history entry in the same transaction. Callers retry on
// ErrConcurrentModification against a freshly loaded booking.
func (db *DB) UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, fromVersion int64, entry *models.StatusHistoryEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var otpCode *string
	var otpExpiresAt, otpIssuedAt *time.Time
	var otpAttempts *int
	if booking.CompletionOTP != nil {
		otpCode = &booking.CompletionOTP.Code
		otpExpiresAt = &booking.CompletionOTP.ExpiresAt
		otpIssuedAt = &booking.CompletionOTP.IssuedAt
		otpAttempts = &booking.CompletionOTP.AttemptsRemaining
	}

	now := time.Now()
	query := `UPDATE bookings SET
				status = ?, provider_id = ?,
				otp_code = ?, otp_expires_at = ?, otp_attempts_remaining = ?, otp_issued_at = ?,
				updated_at = ?, version = version + 1
			  WHERE booking_id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		booking.Status,
		booking.ProviderID,
		otpCode,
		otpExpiresAt,
		otpAttempts,
		otpIssuedAt,
		now,
		booking.BookingID,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.BookingID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if entry != nil {
		historyQuery := `INSERT INTO booking_status_history (booking_id, status, actor_role, actor_id, created_at)
                         VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, historyQuery,
			entry.BookingID, entry.Status, entry.ActorRole, entry.ActorID, now,
		); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	booking.Version = fromVersion + 1
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetStatusHistory(ctx context.Context, bookingID string) ([]models.StatusHistoryEntry, error) {
	query := `SELECT id, booking_id, status, actor_role, actor_id, created_at
              FROM booking_status_history WHERE booking_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var entries []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Status, &e.ActorRole, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *DB) GetBookingsByCustomer(ctx context.Context, customerID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, customerID)
}

func (db *DB) GetBookingsByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_id = ? ORDER BY scheduled_date ASC`
	return db.queryBookings(ctx, query, providerID)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE date(scheduled_date) >= ? AND date(scheduled_date) <= ?
              ORDER BY scheduled_date ASC`
	return db.queryBookings(ctx, query,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
}

func (db *DB) GetBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY scheduled_date ASC`
	return db.queryBookings(ctx, query, status)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var otpCode sql.NullString
	var otpExpiresAt, otpIssuedAt sql.NullTime
	var otpAttempts sql.NullInt64
	var notes sql.NullString

	err := row.Scan(
		&b.ID, &b.BookingID, &b.CustomerID, &b.ProviderID, &b.ServiceID, &b.ServiceName,
		&b.Status, &b.ScheduledDate, &b.TimeSlot.Start, &b.TimeSlot.End, &b.ServiceAddress,
		&b.Pricing.ServiceCharge, &b.Pricing.Tax, &b.Pricing.Total,
		&otpCode, &otpExpiresAt, &otpAttempts, &otpIssuedAt,
		&notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if otpCode.Valid {
		b.CompletionOTP = &models.CompletionOTP{
			Code:              otpCode.String,
			ExpiresAt:         otpExpiresAt.Time,
			AttemptsRemaining: int(otpAttempts.Int64),
			IssuedAt:          otpIssuedAt.Time,
		}
	}
	b.Notes = notes.String
	return &b, nil
}
