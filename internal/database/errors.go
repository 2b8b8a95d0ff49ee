package database

import "errors"

var (
	// ErrNotFound booking, customer or service does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification the version check failed; the record was
	// changed by another request between load and save.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateBookingID booking_id uniqueness violated on insert.
	ErrDuplicateBookingID = errors.New("duplicate booking id")
)
