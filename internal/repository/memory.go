package repository

import (
	"context"
	"sync"
	"time"

	"homeserve/internal/models"
)

type MemoryStateRepository struct {
	contacts   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		ttl: ttl,
	}
}

type contactEntry struct {
	contact   *models.Contact
	expiresAt time.Time
}

func (r *MemoryStateRepository) GetContact(ctx context.Context, customerID int64) (*models.Contact, error) {
	val, ok := r.contacts.Load(customerID)
	if !ok {
		return nil, nil
	}
	entry := val.(*contactEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.contacts.Delete(customerID)
		return nil, nil
	}
	return entry.contact, nil
}

func (r *MemoryStateRepository) SetContact(ctx context.Context, contact *models.Contact) error {
	r.contacts.Store(contact.CustomerID, &contactEntry{
		contact:   contact,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryStateRepository) ClearContact(ctx context.Context, customerID int64) error {
	r.contacts.Delete(customerID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
