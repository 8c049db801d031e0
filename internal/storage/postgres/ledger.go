package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/savdobot/internal/ledger"
)

const (
	orderColumns  = "user_id, idx, product_id, product_name, quantity, unit_price, total, status, photo_file_id, created_at"
	appendRetries = 3
)

// LedgerStore keeps orders in the orders table. Indexes are assigned as
// MAX(idx)+1 per user by a sub-select inside VALUES, so every parameter
// takes its type from the target column. The (user_id, idx) primary key
// rejects duplicates and Append retries on conflict.
type LedgerStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLedgerStore wraps db.
func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db, now: time.Now}
}

var _ ledger.Store = (*LedgerStore)(nil)

func (s *LedgerStore) Append(ctx context.Context, o ledger.Order) (ledger.Order, error) {
	if o.Status == "" {
		o.Status = ledger.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}

	var err error
	for attempt := 0; attempt < appendRetries; attempt++ {
		err = s.db.QueryRowxContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, (SELECT COALESCE(MAX(idx) + 1, 0) FROM orders WHERE user_id = $1), $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING idx`,
			o.UserID, o.ProductID, o.ProductName, o.Quantity, o.UnitPrice, o.Total, o.Status, o.PhotoFileID, o.CreatedAt,
		).Scan(&o.Index)
		if err == nil {
			return o, nil
		}
		if !isUniqueViolation(err) {
			break
		}
	}
	return ledger.Order{}, fmt.Errorf("append order for %d: %w", o.UserID, err)
}

func (s *LedgerStore) List(ctx context.Context, userID int64) ([]ledger.Order, error) {
	var out []ledger.Order
	if err := s.db.SelectContext(ctx, &out,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY idx`, userID,
	); err != nil {
		return nil, fmt.Errorf("list orders for %d: %w", userID, err)
	}
	return out, nil
}

func (s *LedgerStore) Get(ctx context.Context, userID int64, index int) (ledger.Order, error) {
	var o ledger.Order
	err := s.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idx = $2`, userID, index)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Order{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Order{}, fmt.Errorf("get order %d/%d: %w", userID, index, err)
	}
	return o, nil
}

func (s *LedgerStore) Transition(ctx context.Context, userID int64, index int, to ledger.Status) (ledger.Order, error) {
	var o ledger.Order
	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &o,
			`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idx = $2 FOR UPDATE`, userID, index)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order %d/%d: %w", userID, index, err)
		}
		if !ledger.CanTransition(o.Status, to) {
			return &ledger.FinalError{Current: o.Status}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $3 WHERE user_id = $1 AND idx = $2`, userID, index, to,
		); err != nil {
			return fmt.Errorf("update order %d/%d: %w", userID, index, err)
		}
		o.Status = to
		return nil
	})
	if err != nil {
		return ledger.Order{}, err
	}
	return o, nil
}
