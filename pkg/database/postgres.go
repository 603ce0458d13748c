package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Flexitaim/api-flexitaim/pkg/config"
)

// Postgres error codes the scheduling layer reacts to.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeExclusionViolation   = "23P01"
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// TxOptions maps a configured isolation name onto sql.TxOptions. Unknown or
// "default" values return nil so the server default applies.
func TxOptions(isolation string) *sql.TxOptions {
	switch isolation {
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	case "repeatable_read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case "read_committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	default:
		return nil
	}
}

// PQCode extracts the SQLSTATE of a Postgres error, if any.
func PQCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsRetryable reports whether a transaction failed for reasons a retry can fix.
func IsRetryable(err error) bool {
	switch PQCode(err) {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return true
	}
	return false
}
