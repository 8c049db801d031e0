package state

import (
	"context"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session holds the phase and scratch data of one user's conversation.
type Session[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the session is past Idle.
func (s Session[T]) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Store keeps sessions by user identity. Get on an unknown or expired user
// returns an Idle session with zero Data and no error.
type Store[T any] interface {
	Get(ctx context.Context, userID int64) (Session[T], error)
	Set(ctx context.Context, userID int64, s Session[T]) error
	Clear(ctx context.Context, userID int64) error
}

func idle[T any]() Session[T] {
	return Session[T]{State: StateIdle}
}
