// Package ledger keeps the per-user append-only order lists. An order is
// addressed by (user id, index) and its index never changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for an unknown (user, index) pair.
	ErrNotFound = errors.New("ledger: order not found")
	// ErrFinal is returned when moving an order out of a final status.
	ErrFinal = errors.New("ledger: order status is final")
)

// Status is the lifecycle of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusRejected: true},
	StatusConfirmed: {},
	StatusRejected:  {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Order is a snapshot of what was ordered; catalog edits do not reach it.
type Order struct {
	Index       int       `json:"index" db:"idx"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ProductID   string    `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	Total       int64     `json:"total" db:"total"`
	Status      Status    `json:"status" db:"status"`
	PhotoFileID string    `json:"photo_file_id" db:"photo_file_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Store is the ledger contract used by the conversation engine.
type Store interface {
	// Append stores o as the user's next order and returns it with Index set.
	Append(ctx context.Context, o Order) (Order, error)
	// List returns the user's orders in index order.
	List(ctx context.Context, userID int64) ([]Order, error)
	// Get returns one order or ErrNotFound.
	Get(ctx context.Context, userID int64, index int) (Order, error)
	// Transition moves the order to status to, returning ErrFinal when the
	// current status does not allow it.
	Transition(ctx context.Context, userID int64, index int, to Status) (Order, error)
}

// FinalError wraps ErrFinal with the status the order already has.
type FinalError struct {
	Current Status
}

func (e *FinalError) Error() string {
	return fmt.Sprintf("%s: already %s", ErrFinal.Error(), e.Current)
}

func (e *FinalError) Unwrap() error { return ErrFinal }

// LatestPending returns the newest Pending order of the user that matches,
// or ErrNotFound.
func LatestPending(ctx context.Context, store Store, userID int64, match func(Order) bool) (Order, error) {
	orders, err := store.List(ctx, userID)
	if err != nil {
		return Order{}, err
	}
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if o.Status == StatusPending && (match == nil || match(o)) {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}
