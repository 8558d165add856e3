package postgres

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type txCtxKey struct{}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// ext returns the transaction carried by ctx if one is open, otherwise the
// pooled connection. Repositories route every query through this so a call
// made inside WithReservation joins the reserving transaction.
func (r *BaseRepository) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

// WithTx executes fn within a transaction. Repository calls made with the
// ctx passed to fn run inside that transaction.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, txCtxKey{}, tx)
	if err := fn(txCtx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// WithReservation opens a transaction and takes a Postgres advisory lock
// keyed by (companyID, locationID) before running fn. The lock serializes
// every reserving writer for the location through the availability re-check
// and the write, and releases automatically at commit or rollback.
func (r *BaseRepository) WithReservation(ctx context.Context, companyID, locationID uuid.UUID, fn func(ctx context.Context) error) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		tx := txCtx.Value(txCtxKey{}).(*sqlx.Tx)
		if _, err := tx.ExecContext(txCtx, `SELECT pg_advisory_xact_lock($1)`, reservationLockKey(companyID, locationID)); err != nil {
			return err
		}
		return fn(txCtx)
	})
}

// reservationLockKey hashes the scope to the signed 64-bit key space
// pg_advisory_xact_lock expects.
func reservationLockKey(companyID, locationID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(companyID[:])
	h.Write(locationID[:])
	return int64(h.Sum64())
}
