// Package db is the PostgreSQL ledger store. Query functions take a Querier
// so they run the same against the pool or inside a unit of work.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/plaid"
	"budgee-ledger/src/rules"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxAttempts = 3

var (
	_ ledger.Store           = (*Store)(nil)
	_ ledger.AutomationQueue = (*Store)(nil)
	_ ledger.UserDirectory   = (*Store)(nil)
	_ ledger.Tx              = (*Tx)(nil)
	_ rules.Store            = (*Store)(nil)
	_ plaid.ItemStore        = (*Store)(nil)
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool        *pgxpool.Pool
	log         *logging.Logger
	maxAttempts int
}

func New(pool *pgxpool.Pool, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		pool:        pool,
		log:         log.WithComponent(logging.ComponentStorage),
		maxAttempts: defaultMaxAttempts,
	}
}

// WithinUserTx runs fn in one database transaction holding the user's
// advisory lock. Serialization failures and deadlocks are retried.
func (s *Store) WithinUserTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, userID, fn)
		if err == nil || !retryable(err) || attempt >= s.maxAttempts {
			return err
		}
		s.log.WarnContext(ctx, "Retrying unit of work",
			logging.FieldUserID, userID,
			"attempt", attempt,
			logging.FieldError, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}
}

func (s *Store) runTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("lock user %d: %w", userID, err)
	}
	if err = fn(&Tx{q: tx, userID: userID}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// notFound maps pgx.ErrNoRows onto the ledger's NotFound error.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.NotFound(entity, id)
	}
	return fmt.Errorf("get %s %d: %w", entity, id, err)
}

func notFoundBy(err error, entity, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &ledger.Error{Kind: ledger.KindNotFound, Entity: entity, Msg: fmt.Sprintf(format, args...)}
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

// affected turns a zero-row write into NotFound.
func affected(tag pgconn.CommandTag, err error, entity string, id int64) error {
	if err != nil {
		return fmt.Errorf("write %s %d: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.NotFound(entity, id)
	}
	return nil
}

// Tx is one unit of work for one user. Every query is scoped by user id.
type Tx struct {
	q      Querier
	userID int64
}

func (tx *Tx) UserID() int64 { return tx.userID }
