// Package flow is the conversation engine: the buyer order machine, the
// admin catalog sub-machine, order confirmation and the read-only views.
// It talks to the messenger only through Notifier.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/savdobot/core/logger"
	"github.com/m3rciful/savdobot/core/telegram/keyboard"
	"github.com/m3rciful/savdobot/core/telegram/state"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/ledger"
)

// Phase is a conversation step.
type Phase = state.State

// Conversation phases.
const (
	PhaseIdle      = state.StateIdle
	PhaseProductID = state.State("awaiting_product_id")
	PhaseQuantity  = state.State("awaiting_quantity")
	PhasePayment   = state.State("awaiting_payment_proof")
	PhaseAddID     = state.State("admin_add_id")
	PhaseAddName   = state.State("admin_add_name")
	PhaseAddPrice  = state.State("admin_add_price")
	PhaseAddMax    = state.State("admin_add_max")
	PhaseAddPost   = state.State("admin_add_post")
	PhaseEditField = state.State("admin_edit_field")
	PhaseEditValue = state.State("admin_edit_value")
	PhaseDeleteID  = state.State("admin_delete_select")
)

const defaultCurrency = "UZS"

// Scratch is the per-user data carried between phases. Product is a
// snapshot for buyers and a draft for the admin add flow.
type Scratch struct {
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity,omitempty"`
	Total     int64           `json:"total,omitempty"`
	EditID    string          `json:"edit_id,omitempty"`
	EditField command.Field   `json:"edit_field,omitempty"`
}

// Session is the stored conversation of one user.
type Session = state.Session[Scratch]

// Button is an inline button with raw callback data.
type Button = keyboard.InlineBtn

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Message is an outbound text. Plain disables Markdown parsing.
type Message struct {
	Text     string
	Keyboard Keyboard
	Plain    bool
}

// MessageRef addresses a sent message. Caption marks a media message
// whose caption, not text, is edited.
type MessageRef struct {
	ChatID    int64
	MessageID int
	Caption   bool
}

// Callback is an inline button press.
type Callback struct {
	ID      string
	Command command.Command
	Message MessageRef
	// Text is the current text or caption of Message.
	Text string
}

// Event is one inbound update.
type Event struct {
	UserID      int64
	ChatID      int64
	FullName    string
	Text        string
	PhotoFileID string
	Callback    *Callback
}

// Notifier delivers outbound messages. Implementations log their own
// failures; only ForwardPost reports an error so the caller can fall back.
type Notifier interface {
	Send(ctx context.Context, chatID int64, msg Message)
	SendPhoto(ctx context.Context, chatID int64, fileID string, msg Message)
	ForwardPost(ctx context.Context, to int64, postID int) error
	// Edit replaces the text or caption of ref and drops its keyboard.
	Edit(ctx context.Context, ref MessageRef, msg Message)
	Answer(ctx context.Context, callbackID, text string, alert bool)
}

// Options wires the engine.
type Options struct {
	Catalog     catalog.Store
	Ledger      ledger.Store
	Sessions    state.Store[Scratch]
	Notifier    Notifier
	Events      events.Publisher
	AdminID     int64
	PaymentCard string
	Currency    string
	Now         func() time.Time
}

// Engine runs conversations. It serializes updates per user.
type Engine struct {
	catalog  catalog.Store
	ledger   ledger.Store
	sessions state.Store[Scratch]
	notify   Notifier
	events   events.Publisher
	adminID  int64
	card     string
	currency string
	now      func() time.Time
	locks    userLocks
}

// New creates an engine. Catalog, Ledger, Sessions and Notifier are required.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Catalog == nil:
		return nil, fmt.Errorf("flow: catalog store is required")
	case opts.Ledger == nil:
		return nil, fmt.Errorf("flow: ledger store is required")
	case opts.Sessions == nil:
		return nil, fmt.Errorf("flow: session store is required")
	case opts.Notifier == nil:
		return nil, fmt.Errorf("flow: notifier is required")
	}
	e := &Engine{
		catalog:  opts.Catalog,
		ledger:   opts.Ledger,
		sessions: opts.Sessions,
		notify:   opts.Notifier,
		events:   opts.Events,
		adminID:  opts.AdminID,
		card:     opts.PaymentCard,
		currency: opts.Currency,
		now:      opts.Now,
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.currency == "" {
		e.currency = defaultCurrency
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// IsAdmin reports whether userID is the configured administrator.
func (e *Engine) IsAdmin(userID int64) bool {
	return e.adminID != 0 && userID == e.adminID
}

// InProgress reports whether the user has an active conversation.
func (e *Engine) InProgress(ctx context.Context, userID int64) bool {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "flow", "session.get_failed",
			slog.Int64("user_id", userID),
			slog.Any("err", err),
		)
		return false
	}
	return s.Active()
}

// Phase returns the user's current phase.
func (e *Engine) Phase(ctx context.Context, userID int64) (state.State, error) {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return PhaseIdle, err
	}
	if !s.Active() {
		return PhaseIdle, nil
	}
	return s.State, nil
}

func (e *Engine) session(ctx context.Context, userID int64) (Session, error) {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("flow: load session: %w", err)
	}
	return s, nil
}

// advance stores data under phase to and logs the transition.
func (e *Engine) advance(ctx context.Context, userID int64, from, to state.State, data Scratch) error {
	if err := e.sessions.Set(ctx, userID, Session{State: to, Data: data}); err != nil {
		return fmt.Errorf("flow: save session: %w", err)
	}
	logTransition(ctx, userID, from, to)
	return nil
}

func (e *Engine) reset(ctx context.Context, userID int64, from state.State) error {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("flow: clear session: %w", err)
	}
	if from != PhaseIdle && from != "" {
		logTransition(ctx, userID, from, PhaseIdle)
	}
	return nil
}

func logTransition(ctx context.Context, userID int64, from, to state.State) {
	logger.Debug(ctx, "flow", "flow.transition",
		slog.Int64("user_id", userID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// fail tells the user something went wrong and returns err for the handler summary.
func (e *Engine) fail(ctx context.Context, chatID int64, err error) error {
	e.notify.Send(ctx, chatID, Message{Text: textTryAgain})
	return err
}

func (e *Engine) publish(ctx context.Context, t events.Type, key string, payload any) {
	env, err := events.New(t, key, logger.RIDFrom(ctx), payload)
	if err == nil {
		err = e.events.Publish(ctx, env)
	}
	if err != nil {
		logger.Warn(ctx, "events", "event.publish_failed",
			slog.String("type", string(t)),
			slog.String("key", key),
			slog.Any("err", err),
		)
	}
}

// userLocks is a refcounted keyed mutex.
type userLocks struct {
	mu sync.Mutex
	m  map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*userLock)
	}
	ul := l.m[id]
	if ul == nil {
		ul = &userLock{}
		l.m[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
