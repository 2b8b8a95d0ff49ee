package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"homeserve/internal/models"
)

// OtpPolicy holds the tunables of the completion handshake. Values come
// from config; zero fields fall back to the model defaults.
type OtpPolicy struct {
	Length        int
	TTL           time.Duration
	MaxAttempts   int
	RequestLimit  int
	RequestWindow time.Duration
}

func (p OtpPolicy) withDefaults() OtpPolicy {
	if p.Length <= 0 {
		p.Length = models.DefaultOtpLength
	}
	if p.TTL <= 0 {
		p.TTL = models.DefaultOtpTTLMinutes * time.Minute
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = models.DefaultOtpMaxAttempts
	}
	if p.RequestLimit <= 0 {
		p.RequestLimit = models.DefaultOtpRequestLimit
	}
	if p.RequestWindow <= 0 {
		p.RequestWindow = models.DefaultOtpRequestWindow * time.Second
	}
	return p
}

// generateCode draws a fixed-length numeric code from crypto/rand.
func generateCode(length int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate completion code: %w", err)
	}
	for i := range buf {
		buf[i] = digits[buf[i]%byte(len(digits))]
	}
	return string(buf), nil
}

// newCompletionOTP builds a fresh challenge; any prior code is replaced
// wholesale so at most one valid code exists per booking.
func (p OtpPolicy) newCompletionOTP(now time.Time) (*models.CompletionOTP, error) {
	code, err := generateCode(p.Length)
	if err != nil {
		return nil, err
	}
	return &models.CompletionOTP{
		Code:              code,
		ExpiresAt:         now.Add(p.TTL),
		AttemptsRemaining: p.MaxAttempts,
		IssuedAt:          now,
	}, nil
}
