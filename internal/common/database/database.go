package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-records/internal/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open opens the configured store and verifies the connection.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.IsSQLite() {
		return NewSQLiteDB(cfg)
	}
	return NewPostgresDB(cfg)
}

// NewSQLiteDB opens the embedded store.
// SQLite serializes writers itself; a single connection keeps in-memory
// databases alive and gives read-your-writes across callers.
func NewSQLiteDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := ping(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresDB opens a PostgreSQL connection pool.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := ping(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes db when it is non-nil.
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
