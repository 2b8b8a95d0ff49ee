package notify

import (
	"fmt"

	"homeserve/internal/models"
)

var statusLines = map[string]string{
	models.StatusConfirmed:           "Your booking %s (%s) is confirmed for %s, %s-%s.",
	models.StatusProviderOnWay:       "Your provider is on the way for booking %s (%s).",
	models.StatusInProgress:          "Work has started on booking %s (%s).",
	models.StatusCompleted:           "Booking %s (%s) is completed. Thank you!",
	models.StatusCancelledByCustomer: "Booking %s (%s) was cancelled.",
	models.StatusCancelledByProvider: "Booking %s (%s) was cancelled by the provider. We will reschedule shortly.",
	models.StatusCancelledByAdmin:    "Booking %s (%s) was cancelled by support.",
}

// RenderCompletionCode builds the message carrying the completion code.
// The customer reads this code to the provider once the work is done.
func RenderCompletionCode(booking *models.Booking, code string) string {
	return fmt.Sprintf(
		"Completion code for booking %s (%s): %s\nShare it with your provider only after the work is done to your satisfaction.",
		booking.BookingID, booking.ServiceName, code)
}

// RenderStatusUpdate builds the customer-facing status message.
func RenderStatusUpdate(booking *models.Booking) string {
	line, ok := statusLines[booking.Status]
	if !ok {
		return fmt.Sprintf("Booking %s (%s) status: %s.", booking.BookingID, booking.ServiceName, booking.Status)
	}
	if booking.Status == models.StatusConfirmed {
		return fmt.Sprintf(line, booking.BookingID, booking.ServiceName,
			booking.ScheduledDate.Format("02.01.2006"), booking.TimeSlot.Start, booking.TimeSlot.End)
	}
	return fmt.Sprintf(line, booking.BookingID, booking.ServiceName)
}
