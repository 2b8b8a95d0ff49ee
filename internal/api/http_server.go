package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"homeserve/internal/config"
	"homeserve/internal/domain"
	"homeserve/internal/metrics"
	"homeserve/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg       config.APIConfig
	bookings  *service.BookingService
	lifecycle domain.BookingLifecycle
	server    *http.Server
	auth      *HTTPAuth
	logger    *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings *service.BookingService, lifecycle domain.BookingLifecycle, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, bookings: bookings, lifecycle: lifecycle, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/services", srv.handleServices)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]string{"code": code, "error": message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses with
// machine-readable codes. Details ride along where a typed error carries them.
func writeServiceError(w http.ResponseWriter, err error) {
	var transitionErr *service.TransitionError
	if errors.As(err, &transitionErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":    "invalid_transition",
			"error":   transitionErr.Error(),
			"allowed": transitionErr.Allowed,
		})
		return
	}

	var otpErr *service.InvalidOtpError
	if errors.As(err, &otpErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":               "invalid_otp",
			"error":              otpErr.Error(),
			"attempts_remaining": otpErr.AttemptsRemaining,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrOtpExpired):
		writeError(w, http.StatusUnprocessableEntity, "otp_expired", err.Error())
	case errors.Is(err, service.ErrOtpAttemptsExhausted):
		writeError(w, http.StatusTooManyRequests, "otp_attempts_exhausted", err.Error())
	case errors.Is(err, service.ErrOtpRequestLimited):
		writeError(w, http.StatusTooManyRequests, "otp_request_limited", err.Error())
	case errors.Is(err, service.ErrOtpNotActive):
		writeError(w, http.StatusNotFound, "otp_not_active", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
