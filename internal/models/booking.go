package models

import "time"

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Pricing struct {
	ServiceCharge float64 `json:"service_charge"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
}

// CompletionOTP is present only while a booking awaits completion
// confirmation (status work_completed). It is cleared on successful
// verification and replaced wholesale on re-issuance.
type CompletionOTP struct {
	Code              string    `json:"-"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	IssuedAt          time.Time `json:"issued_at"`
}

// StatusHistoryEntry is one append-only audit record per transition.
type StatusHistoryEntry struct {
	ID        int64     `json:"id"`
	BookingID string    `json:"booking_id"`
	Status    string    `json:"status"`
	ActorRole string    `json:"actor_role"`
	ActorID   int64     `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Booking struct {
	ID             int64          `json:"id"`
	BookingID      string         `json:"booking_id"`
	CustomerID     int64          `json:"customer_id"`
	ProviderID     *int64         `json:"provider_id"`
	ServiceID      int64          `json:"service_id"`
	ServiceName    string         `json:"service_name"`
	Status         string         `json:"status"`
	ScheduledDate  time.Time      `json:"scheduled_date"`
	TimeSlot       TimeSlot       `json:"time_slot"`
	ServiceAddress string         `json:"service_address"`
	Pricing        Pricing        `json:"pricing"`
	CompletionOTP  *CompletionOTP `json:"completion_otp,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Version        int64          `json:"version"`
}

// IsTerminal reports whether no further transitions are accepted.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusCompleted, StatusCancelledByCustomer, StatusCancelledByProvider, StatusCancelledByAdmin:
		return true
	}
	return false
}

// AssignedTo reports whether the given provider id is the assigned one.
func (b *Booking) AssignedTo(providerID int64) bool {
	return b.ProviderID != nil && *b.ProviderID == providerID
}
