package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/pkg/database"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxConfig controls isolation and serialization retries for write transactions.
type TxConfig struct {
	Isolation  string
	MaxRetries int
}

// txRunner executes a unit of work in a single transaction, retrying when
// Postgres aborts it with a serialization failure or deadlock.
type txRunner struct {
	provider   txProvider
	opts       *sql.TxOptions
	maxRetries int
	metrics    *MetricsService
	logger     *zap.Logger
}

func newTxRunner(provider txProvider, cfg TxConfig, metrics *MetricsService, logger *zap.Logger) *txRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &txRunner{
		provider:   provider,
		opts:       database.TxOptions(cfg.Isolation),
		maxRetries: cfg.MaxRetries,
		metrics:    metrics,
		logger:     logger,
	}
}

func (r *txRunner) run(ctx context.Context, label string, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.attempt(ctx, fn)
		if err == nil || attempt >= r.maxRetries || !database.IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.metrics.RecordTxRetry(label)
		r.logger.Info("retrying transaction", zap.String("operation", label), zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func (r *txRunner) attempt(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.provider.BeginTxx(ctx, r.opts)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// storeError maps persistence failures onto the API error taxonomy.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "operation cancelled")
	}
	switch database.PQCode(err) {
	case database.CodeExclusionViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "time range overlaps an existing record")
	case database.CodeUniqueViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "record already exists")
	case database.CodeForeignKeyViolation:
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced record not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// notFoundOr maps sql.ErrNoRows to NOT_FOUND and anything else to INTERNAL.
func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
