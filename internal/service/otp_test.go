package service

import (
	"testing"
	"time"

	"homeserve/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in code %q", code)
		}
		seen[code] = true
	}
	// 50 draws from a million-value space colliding down to a handful
	// would mean the generator is broken.
	assert.Greater(t, len(seen), 40)
}

func TestOtpPolicyDefaults(t *testing.T) {
	p := OtpPolicy{}.withDefaults()
	assert.Equal(t, models.DefaultOtpLength, p.Length)
	assert.Equal(t, models.DefaultOtpTTLMinutes*time.Minute, p.TTL)
	assert.Equal(t, models.DefaultOtpMaxAttempts, p.MaxAttempts)
	assert.Equal(t, models.DefaultOtpRequestLimit, p.RequestLimit)
	assert.Equal(t, models.DefaultOtpRequestWindow*time.Second, p.RequestWindow)

	// Explicit values survive.
	p = OtpPolicy{Length: 8, TTL: time.Minute, MaxAttempts: 2}.withDefaults()
	assert.Equal(t, 8, p.Length)
	assert.Equal(t, time.Minute, p.TTL)
	assert.Equal(t, 2, p.MaxAttempts)
}

func TestNewCompletionOTP(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := OtpPolicy{Length: 6, TTL: 10 * time.Minute, MaxAttempts: 5}

	otp, err := p.newCompletionOTP(now)
	require.NoError(t, err)
	assert.Len(t, otp.Code, 6)
	assert.Equal(t, now, otp.IssuedAt)
	assert.Equal(t, now.Add(10*time.Minute), otp.ExpiresAt)
	assert.Equal(t, 5, otp.AttemptsRemaining)
}
