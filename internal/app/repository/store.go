package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrStoreUnavailable means no connection could be acquired, or a statement ran past its deadline.
var ErrStoreUnavailable = errors.New("store unavailable")

const defaultQueryTimeout = 15 * time.Second

// Store owns the gorm handle and the per-call deadline shared by every repository.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewStore wraps db. A non-positive timeout uses the default.
func NewStore(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect is the gorm dialector name, "postgres" or "sqlite".
func (s *Store) Dialect() string {
	return s.db.Dialector.Name()
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Health is the connectivity probe result.
type Health struct {
	Database   string `json:"database"`
	ServerTime string `json:"server_time"`
	Version    string `json:"pg_version"`
}

// Health runs one round trip against the store.
func (s *Store) Health(ctx context.Context) (*Health, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	query := "SELECT NOW() AS server_time, version() AS version"
	name := "PostgreSQL"
	if s.Dialect() == "sqlite" {
		query = "SELECT CURRENT_TIMESTAMP AS server_time, sqlite_version() AS version"
		name = "SQLite"
	}

	var row struct {
		ServerTime string
		Version    string
	}
	if err := db.Raw(query).Scan(&row).Error; err != nil {
		return nil, wrapErr("health", err)
	}
	return &Health{Database: name, ServerTime: row.ServerTime, Version: row.Version}, nil
}

// Transaction runs fn in one transaction. Any error or panic inside fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Transaction(fn); err != nil {
		return wrapErr("transaction", err)
	}
	return nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
