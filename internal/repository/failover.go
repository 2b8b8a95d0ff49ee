package repository

import (
	"context"
	"sync/atomic"
	"time"

	"homeserve/internal/domain"
	"homeserve/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStateRepository prefers the primary (redis) and silently degrades
// to the fallback (memory) when it errors, retrying the primary once a minute.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetContact(ctx context.Context, customerID int64) (*models.Contact, error) {
	if !r.isDown.Load() {
		contact, err := r.primary.GetContact(ctx, customerID)
		if err == nil {
			return contact, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		contact, err := r.primary.GetContact(ctx, customerID)
		if err == nil {
			r.isDown.Store(false)
			return contact, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetContact(ctx, customerID)
}

func (r *FailoverStateRepository) SetContact(ctx context.Context, contact *models.Contact) error {
	if !r.isDown.Load() {
		err := r.primary.SetContact(ctx, contact)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetContact(ctx, contact)
}

func (r *FailoverStateRepository) ClearContact(ctx context.Context, customerID int64) error {
	if !r.isDown.Load() {
		err := r.primary.ClearContact(ctx, customerID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearContact(ctx, customerID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
