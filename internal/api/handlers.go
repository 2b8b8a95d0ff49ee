package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"homeserve/internal/models"
	"homeserve/internal/service"
)

func (s *HTTPServer) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
		return models.Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		bookings, err := s.bookings.ListBookings(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("status")))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	case http.MethodPost:
		s.handleCreateBooking(w, r, actor)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	type request struct {
		CustomerID     int64           `json:"customer_id"`
		ServiceID      int64           `json:"service_id"`
		ScheduledDate  string          `json:"scheduled_date"`
		TimeSlot       models.TimeSlot `json:"time_slot"`
		ServiceAddress string          `json:"service_address"`
		Notes          string          `json:"notes"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(body.ScheduledDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid scheduled_date; expected YYYY-MM-DD")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), service.BookingRequest{
		CustomerID:     body.CustomerID,
		ServiceID:      body.ServiceID,
		ScheduledDate:  date,
		TimeSlot:       body.TimeSlot,
		ServiceAddress: body.ServiceAddress,
		Notes:          body.Notes,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

// handleBookingByID dispatches /api/v1/bookings/{id} and its subresources.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found", "booking id is required")
		return
	}
	bookingID := parts[0]
	sub := strings.Join(parts[1:], "/")

	switch {
	case sub == "" && r.Method == http.MethodGet:
		booking, err := s.bookings.GetBooking(r.Context(), bookingID, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"booking": booking})

	case sub == "history" && r.Method == http.MethodGet:
		history, err := s.bookings.GetStatusHistory(r.Context(), bookingID, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})

	case sub == "transition" && r.Method == http.MethodPost:
		s.handleTransition(w, r, bookingID, actor)

	case sub == "otp/request" && r.Method == http.MethodPost:
		if err := s.lifecycle.RequestCompletionCode(r.Context(), bookingID, actor); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_requested"})

	case sub == "otp/verify" && r.Method == http.MethodPost:
		s.handleVerify(w, r, bookingID, actor)

	case sub == "assign" && r.Method == http.MethodPost:
		s.handleAssign(w, r, bookingID, actor)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, bookingID string, actor models.Actor) {
	type request struct {
		TargetStatus string `json:"target_status"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.TargetStatus) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "target_status is required")
		return
	}

	booking, err := s.lifecycle.Transition(r.Context(), bookingID, body.TargetStatus, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleVerify(w http.ResponseWriter, r *http.Request, bookingID string, actor models.Actor) {
	type request struct {
		Code string `json:"code"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "code is required")
		return
	}

	booking, err := s.lifecycle.VerifyCompletionCode(r.Context(), bookingID, strings.TrimSpace(body.Code), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request, bookingID string, actor models.Actor) {
	type request struct {
		ProviderID int64 `json:"provider_id"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if body.ProviderID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "provider_id is required")
		return
	}

	booking, err := s.bookings.AssignProvider(r.Context(), bookingID, body.ProviderID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	services := s.bookings.GetServices()
	sort.Slice(services, func(i, j int) bool {
		if services[i].SortOrder == services[j].SortOrder {
			return services[i].ID < services[j].ID
		}
		return services[i].SortOrder < services[j].SortOrder
	})

	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}
