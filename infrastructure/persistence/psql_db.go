package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"crosspost/infrastructure/configuration"

	_ "github.com/lib/pq"
)

// NewPsqlDb opens the Postgres connection used by the SQL token repository.
func NewPsqlDb(cfg configuration.Db) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureTokenSchema creates the token table when it is missing. Safe to call
// at startup.
func EnsureTokenSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS platform_tokens (
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		oauth1a_token TEXT,
		oauth1a_secret TEXT,
		platform_user_id TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, platform)
	)`)
	return err
}
