package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homeserve/internal/models"
)

func (db *DB) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `INSERT INTO customers (name, phone, contact_channel, telegram_chat_id, is_blacklisted, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		customer.Name,
		customer.Phone,
		customer.ContactChannel,
		customer.TelegramChatID,
		customer.IsBlacklisted,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	customer.ID = id
	customer.CreatedAt = now
	customer.UpdatedAt = now
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	query := `SELECT id, name, phone, contact_channel, telegram_chat_id, is_blacklisted, created_at, updated_at
              FROM customers WHERE id = ?`
	var c models.Customer
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.ContactChannel, &c.TelegramChatID,
		&c.IsBlacklisted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// GetCustomerContact resolves the delivery target for a customer.
func (db *DB) GetCustomerContact(ctx context.Context, customerID int64) (*models.Contact, error) {
	customer, err := db.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &models.Contact{
		CustomerID:     customer.ID,
		Channel:        customer.ContactChannel,
		Phone:          customer.Phone,
		TelegramChatID: customer.TelegramChatID,
	}, nil
}

func (db *DB) CreateProvider(ctx context.Context, provider *models.Provider) error {
	query := `INSERT INTO providers (name, phone, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		provider.Name, provider.Phone, provider.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	provider.ID = id
	provider.CreatedAt = now
	provider.UpdatedAt = now
	return nil
}

func (db *DB) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	query := `SELECT id, name, phone, is_active, created_at, updated_at FROM providers WHERE id = ?`
	var p models.Provider
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Phone, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}
