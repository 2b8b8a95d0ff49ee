package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"homeserve/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	mu            sync.RWMutex
	servicesCache map[int64]models.Service
	sortedCache   []models.Service
	logger        *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:            db,
		servicesCache: make(map[int64]models.Service),
		logger:        logger,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS customers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            phone TEXT NOT NULL,
            contact_channel TEXT NOT NULL DEFAULT 'telegram',
            telegram_chat_id INTEGER,
            is_blacklisted BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS providers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            phone TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            description TEXT,
            vertical TEXT NOT NULL DEFAULT 'on_demand',
            base_charge REAL NOT NULL DEFAULT 0,
            sort_order INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id TEXT UNIQUE NOT NULL,
            customer_id INTEGER NOT NULL,
            provider_id INTEGER,
            service_id INTEGER NOT NULL,
            service_name TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            scheduled_date DATETIME NOT NULL,
            slot_start TEXT NOT NULL,
            slot_end TEXT NOT NULL,
            service_address TEXT NOT NULL,
            service_charge REAL NOT NULL DEFAULT 0,
            tax REAL NOT NULL DEFAULT 0,
            total REAL NOT NULL DEFAULT 0,
            otp_code TEXT,
            otp_expires_at DATETIME,
            otp_attempts_remaining INTEGER,
            otp_issued_at DATETIME,
            notes TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS booking_status_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id TEXT NOT NULL,
            status TEXT NOT NULL,
            actor_role TEXT NOT NULL,
            actor_id INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS notification_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_booking_id ON bookings(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer_id ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider_id ON bookings(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_booking_id ON booking_status_history(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_queue_status ON notification_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SyncServices upserts catalog services from config and refreshes the cache.
func (db *DB) SyncServices(ctx context.Context, services []models.Service) error {
	query := `INSERT INTO services (id, name, description, vertical, base_charge, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  description = excluded.description,
                  vertical = excluded.vertical,
                  base_charge = excluded.base_charge,
                  sort_order = excluded.sort_order,
                  is_active = excluded.is_active,
                  updated_at = CURRENT_TIMESTAMP`

	for _, svc := range services {
		if _, err := db.ExecContext(ctx, query,
			svc.ID, svc.Name, svc.Description, svc.Vertical,
			svc.BaseCharge, svc.SortOrder, svc.IsActive,
		); err != nil {
			return fmt.Errorf("failed to sync service %d: %w", svc.ID, err)
		}
	}

	db.SetServices(services)
	return nil
}

// SetServices устанавливает кэш каталога услуг
func (db *DB) SetServices(services []models.Service) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.servicesCache = make(map[int64]models.Service, len(services))
	for _, svc := range services {
		db.servicesCache[svc.ID] = svc
	}
	db.sortedCache = services
}

func (db *DB) GetServices() []models.Service {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]models.Service, len(db.sortedCache))
	copy(out, db.sortedCache)
	return out
}

func (db *DB) GetServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	db.mu.RLock()
	svc, ok := db.servicesCache[id]
	db.mu.RUnlock()
	if ok {
		return &svc, nil
	}

	query := `SELECT id, name, description, vertical, base_charge, sort_order, is_active, created_at, updated_at
              FROM services WHERE id = ?`
	var s models.Service
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Description, &s.Vertical, &s.BaseCharge,
		&s.SortOrder, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	db.mu.Lock()
	db.servicesCache[s.ID] = s
	db.mu.Unlock()
	return &s, nil
}
