package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"homeserve/internal/config"
	"homeserve/internal/database"
	"homeserve/internal/events"
	"homeserve/internal/models"
	"homeserve/internal/repository"
	"homeserve/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apiSeedCounter int64

type noopNotifier struct{}

func (noopNotifier) EnqueueCompletionCode(ctx context.Context, booking *models.Booking, contact *models.Contact, code string) error {
	return nil
}

func (noopNotifier) EnqueueStatusUpdate(ctx context.Context, booking *models.Booking, contact *models.Contact) error {
	return nil
}

type apiFixture struct {
	ts         *httptest.Server
	db         *database.DB
	customerID int64
	providerID int64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	customer := &models.Customer{
		Name:           "Priya",
		Phone:          "+911234567890",
		ContactChannel: models.ChannelTelegram,
		TelegramChatID: 424242,
	}
	require.NoError(t, db.CreateCustomer(ctx, customer))

	provider := &models.Provider{Name: "Ravi", Phone: "+919876543210", IsActive: true}
	require.NoError(t, db.CreateProvider(ctx, provider))

	db.SetServices([]models.Service{
		{ID: 1, Name: "Deep Home Cleaning", Vertical: "cleaning", BaseCharge: 2499, SortOrder: 2, IsActive: true},
		{ID: 2, Name: "AC Service", Vertical: "appliances", BaseCharge: 599, SortOrder: 1, IsActive: true},
		{ID: 3, Name: "Salon at Home", Vertical: "beauty", BaseCharge: 899, SortOrder: 3, IsActive: false},
	})

	states := repository.NewMemoryStateRepository(time.Hour)
	bus := events.NewEventBus()
	lifecycle := service.NewLifecycle(db, states, noopNotifier{}, bus, service.OtpPolicy{}, &logger)
	bookings := service.NewBookingService(db, bus, 0.18, 90, &logger)

	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "admin-key", Extra: "admin-extra", Name: "back-office", Role: models.RoleAdmin, Subject: 1},
				{Key: "cust-key", Extra: "cust-extra", Name: "app", Role: models.RoleCustomer, Subject: customer.ID},
				{Key: "prov-key", Extra: "prov-extra", Name: "partner", Role: models.RoleProvider, Subject: provider.ID},
			},
		},
	}

	server := NewHTTPServer(cfg, bookings, lifecycle, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, db: db, customerID: customer.ID, providerID: provider.ID}
}

// seedBooking inserts a booking at the given status with the provider assigned.
func (f *apiFixture) seedBooking(t *testing.T, status string) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		BookingID:      fmt.Sprintf("HS-API%05d", atomic.AddInt64(&apiSeedCounter, 1)),
		CustomerID:     f.customerID,
		ProviderID:     &f.providerID,
		ServiceID:      1,
		ServiceName:    "Deep Home Cleaning",
		Status:         status,
		ScheduledDate:  time.Now().AddDate(0, 0, 1),
		TimeSlot:       models.TimeSlot{Start: "10:00", End: "12:00"},
		ServiceAddress: "221B Baker Street",
		Pricing:        models.Pricing{ServiceCharge: 2499, Tax: 449.82, Total: 2948.82},
	}
	require.NoError(t, f.db.CreateBooking(context.Background(), booking, models.Actor{Role: models.RoleAdmin, ID: 1}))
	return booking
}

func (f *apiFixture) do(t *testing.T, method, path, key, extra string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("x-api-key", key)
	req.Header.Set("x-api-extra", extra)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func bookingField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	booking, ok := body["booking"].(map[string]any)
	require.True(t, ok, "response carries no booking object: %v", body)
	return booking[field]
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "admin-key", "admin-extra", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestUnauthenticatedRequest(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/api/v1/bookings", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestCreateAndFetchBooking(t *testing.T) {
	f := newAPIFixture(t)

	payload := map[string]any{
		"service_id":      2,
		"scheduled_date":  time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		"time_slot":       map[string]string{"start": "14:00", "end": "15:00"},
		"service_address": "221B Baker Street",
	}
	status, body := f.do(t, http.MethodPost, "/api/v1/bookings", "cust-key", "cust-extra", payload)
	require.Equal(t, http.StatusCreated, status)

	bookingID, _ := bookingField(t, body, "booking_id").(string)
	assert.Regexp(t, `^HS-[0-9A-F]{8}$`, bookingID)
	assert.Equal(t, models.StatusPending, bookingField(t, body, "status"))

	pricing, _ := bookingField(t, body, "pricing").(map[string]any)
	require.NotNil(t, pricing)
	assert.InDelta(t, 599.0, pricing["service_charge"], 0.001)
	assert.InDelta(t, 107.82, pricing["tax"], 0.001)

	// The owning customer sees it, an unassigned provider does not.
	status, _ = f.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID, "cust-key", "cust-extra", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID, "prov-key", "prov-extra", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}

func TestCreateBookingBadDate(t *testing.T) {
	f := newAPIFixture(t)
	payload := map[string]any{
		"service_id":      1,
		"scheduled_date":  "31-12-2026",
		"time_slot":       map[string]string{"start": "10:00", "end": "12:00"},
		"service_address": "somewhere",
	}
	status, body := f.do(t, http.MethodPost, "/api/v1/bookings", "cust-key", "cust-extra", payload)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["code"])
}

func TestTransitionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusPending)

	path := "/api/v1/bookings/" + booking.BookingID + "/transition"
	status, body := f.do(t, http.MethodPost, path, "admin-key", "admin-extra",
		map[string]string{"target_status": models.StatusConfirmed})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusConfirmed, bookingField(t, body, "status"))
	assert.EqualValues(t, 2, bookingField(t, body, "version"))
}

func TestTransitionInvalidEdge(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusPending)

	path := "/api/v1/bookings/" + booking.BookingID + "/transition"
	status, body := f.do(t, http.MethodPost, path, "admin-key", "admin-extra",
		map[string]string{"target_status": models.StatusInProgress})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_transition", body["code"])

	allowed, ok := body["allowed"].([]any)
	require.True(t, ok, "expected allowed list, got %v", body)
	assert.Contains(t, allowed, models.StatusConfirmed)
	assert.NotContains(t, allowed, models.StatusCompleted)
}

func TestTransitionForbiddenRole(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusPending)

	path := "/api/v1/bookings/" + booking.BookingID + "/transition"
	status, body := f.do(t, http.MethodPost, path, "cust-key", "cust-extra",
		map[string]string{"target_status": models.StatusConfirmed})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])
}

func TestTransitionUnknownBooking(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodPost, "/api/v1/bookings/HS-NOPE0000/transition",
		"admin-key", "admin-extra", map[string]string{"target_status": models.StatusConfirmed})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}

func TestOtpVerifyFlow(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusInProgress)
	base := "/api/v1/bookings/" + booking.BookingID

	// Provider finishes the work; this arms the completion code.
	status, _ := f.do(t, http.MethodPost, base+"/transition", "prov-key", "prov-extra",
		map[string]string{"target_status": models.StatusWorkCompleted})
	require.Equal(t, http.StatusOK, status)

	var code string
	require.NoError(t, f.db.QueryRow(
		`SELECT otp_code FROM bookings WHERE booking_id = ?`, booking.BookingID).Scan(&code))
	require.Len(t, code, 6)

	// Wrong code burns an attempt.
	status, body := f.do(t, http.MethodPost, base+"/otp/verify", "prov-key", "prov-extra",
		map[string]string{"code": "000000"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_otp", body["code"])
	assert.EqualValues(t, 4, body["attempts_remaining"])

	// The customer cannot verify at all.
	status, body = f.do(t, http.MethodPost, base+"/otp/verify", "cust-key", "cust-extra",
		map[string]string{"code": code})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])

	// Right code completes the booking.
	status, body = f.do(t, http.MethodPost, base+"/otp/verify", "prov-key", "prov-extra",
		map[string]string{"code": code})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusCompleted, bookingField(t, body, "status"))
	assert.Nil(t, bookingField(t, body, "completion_otp"))
}

func TestOtpRequestEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusInProgress)
	base := "/api/v1/bookings/" + booking.BookingID

	status, _ := f.do(t, http.MethodPost, base+"/transition", "prov-key", "prov-extra",
		map[string]string{"target_status": models.StatusWorkCompleted})
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, base+"/otp/request", "prov-key", "prov-extra", nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "code_requested", body["status"])
}

func TestOtpNotActive(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusConfirmed)

	path := "/api/v1/bookings/" + booking.BookingID + "/otp/verify"
	status, body := f.do(t, http.MethodPost, path, "prov-key", "prov-extra",
		map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "otp_not_active", body["code"])
}

func TestAssignEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusPending)
	path := "/api/v1/bookings/" + booking.BookingID + "/assign"

	status, body := f.do(t, http.MethodPost, path, "admin-key", "admin-extra",
		map[string]int64{"provider_id": f.providerID})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, f.providerID, bookingField(t, body, "provider_id"))

	status, body = f.do(t, http.MethodPost, path, "cust-key", "cust-extra",
		map[string]int64{"provider_id": f.providerID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["code"])
}

func TestListBookingsByStatus(t *testing.T) {
	f := newAPIFixture(t)
	f.seedBooking(t, models.StatusPending)
	f.seedBooking(t, models.StatusConfirmed)

	status, body := f.do(t, http.MethodGet, "/api/v1/bookings?status=confirmed", "admin-key", "admin-extra", nil)
	require.Equal(t, http.StatusOK, status)

	bookings, ok := body["bookings"].([]any)
	require.True(t, ok)
	require.Len(t, bookings, 1)
	first := bookings[0].(map[string]any)
	assert.Equal(t, models.StatusConfirmed, first["status"])
}

func TestServicesEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/api/v1/services", "cust-key", "cust-extra", nil)
	require.Equal(t, http.StatusOK, status)

	services, ok := body["services"].([]any)
	require.True(t, ok)
	require.Len(t, services, 2) // inactive catalog entries are hidden

	first := services[0].(map[string]any)
	assert.Equal(t, "AC Service", first["name"]) // sorted by sort_order
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	booking := f.seedBooking(t, models.StatusPending)

	status, _ := f.do(t, http.MethodDelete, "/api/v1/bookings/"+booking.BookingID, "admin-key", "admin-extra", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}
