package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/savdobot/core/logger"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/ledger"
)

// Start greets the user with the main menu and asks for a product id.
func (e *Engine) Start(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()
	return e.beginOrder(ctx, ev, true)
}

// NewOrder resets any conversation and asks for a product id.
func (e *Engine) NewOrder(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()
	return e.beginOrder(ctx, ev, false)
}

func (e *Engine) beginOrder(ctx context.Context, ev Event, greet bool) error {
	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if err := e.advance(ctx, ev.UserID, s.State, PhaseProductID, Scratch{}); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	msg := Message{Text: textAskProductID}
	if greet {
		msg = Message{Text: textGreeting + textAskProductID, Keyboard: e.menuKeyboard(ev.UserID)}
	}
	e.notify.Send(ctx, ev.ChatID, msg)
	return nil
}

// Cancel clears the conversation and shows the main menu.
func (e *Engine) Cancel(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()
	return e.cancel(ctx, ev)
}

func (e *Engine) cancel(ctx context.Context, ev Event) error {
	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textMainMenu, Keyboard: e.menuKeyboard(ev.UserID)})
	return nil
}

// Status lists the user's orders in ledger order.
func (e *Engine) Status(ctx context.Context, ev Event) error {
	orders, err := e.ledger.List(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: list orders: %w", err))
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: e.statusText(orders), Keyboard: backKeyboard()})
	return nil
}

// Help renders the static instructions.
func (e *Engine) Help(ctx context.Context, ev Event) error {
	e.notify.Send(ctx, ev.ChatID, Message{Text: textHelp, Keyboard: backKeyboard()})
	return nil
}

// HandleText feeds free text to the user's current phase.
func (e *Engine) HandleText(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()

	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	switch s.State {
	case PhaseProductID:
		return e.onProductID(ctx, ev, s)
	case PhaseQuantity:
		return e.onQuantity(ctx, ev, s)
	case PhasePayment:
		logger.Debug(ctx, "flow", "payment.non_photo_ignored", slog.Int64("user_id", ev.UserID))
		return nil
	case PhaseAddID, PhaseAddName, PhaseAddPrice, PhaseAddMax, PhaseAddPost,
		PhaseEditField, PhaseEditValue, PhaseDeleteID:
		return e.onAdminText(ctx, ev, s)
	}
	return nil
}

// HandlePhoto accepts the payment proof. Photos in any other phase are ignored.
func (e *Engine) HandlePhoto(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()

	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if s.State != PhasePayment || ev.PhotoFileID == "" {
		logger.Debug(ctx, "flow", "photo.ignored",
			slog.Int64("user_id", ev.UserID),
			slog.String("phase", string(s.State)),
		)
		return nil
	}

	d := s.Data
	order, err := e.ledger.Append(ctx, ledger.Order{
		UserID:      ev.UserID,
		ProductID:   d.Product.ID,
		ProductName: d.Product.Name,
		Quantity:    d.Quantity,
		UnitPrice:   d.Product.Price,
		Total:       d.Total,
		PhotoFileID: ev.PhotoFileID,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: append order: %w", err))
	}

	e.notify.SendPhoto(ctx, e.adminID, ev.PhotoFileID, Message{
		Text:     e.adminCaption(ev.FullName, order),
		Keyboard: decisionKeyboard(order),
		Plain:    true,
	})
	e.notify.Send(ctx, ev.ChatID, Message{Text: textProofReceived})

	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return err
	}
	e.publish(ctx, events.OrderPlaced, orderKey(order), orderPayload(order))
	logger.Info(ctx, "flow", "order.placed",
		slog.Int64("user_id", order.UserID),
		slog.Int("index", order.Index),
		slog.String("product_id", order.ProductID),
		slog.Int("quantity", order.Quantity),
		slog.Int64("total", order.Total),
	)
	return nil
}

func (e *Engine) onProductID(ctx context.Context, ev Event, s Session) error {
	id := catalog.NormalizeID(ev.Text)
	p, err := e.catalog.Get(ctx, id)
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrInvalidID):
		logger.Debug(ctx, "flow", "product.unknown", slog.String("input", logger.Sanitize(ev.Text)))
		e.notify.Send(ctx, ev.ChatID, Message{Text: textUnknownProduct})
		return nil
	case err != nil:
		return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: get product: %w", err))
	}

	if err := e.advance(ctx, ev.UserID, s.State, PhaseQuantity, Scratch{Product: p}); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.showProduct(ctx, ev.ChatID, p)
	e.notify.Send(ctx, ev.ChatID, Message{Text: askQuantity(p)})
	return nil
}

// showProduct forwards the promotional post, falling back to a text card.
func (e *Engine) showProduct(ctx context.Context, chatID int64, p catalog.Product) {
	if p.PostID > 0 {
		err := e.notify.ForwardPost(ctx, chatID, p.PostID)
		if err == nil {
			return
		}
		logger.Warn(ctx, "flow", "product.forward_failed",
			slog.String("product_id", p.ID),
			slog.Int("post_id", p.PostID),
			slog.Any("err", err),
		)
	}
	e.notify.Send(ctx, chatID, Message{Text: e.productFallback(p)})
}

func (e *Engine) onQuantity(ctx context.Context, ev Event, s Session) error {
	p := s.Data.Product
	raw := strings.TrimSpace(ev.Text)
	if !isDigits(raw) {
		e.notify.Send(ctx, ev.ChatID, Message{Text: textDigitsOnly})
		return nil
	}
	qty, err := strconv.Atoi(raw)
	if err != nil || qty < 1 || qty > p.MaxQuantity {
		logger.Debug(ctx, "flow", "quantity.out_of_range",
			slog.String("input", logger.Sanitize(raw)),
			slog.Int("max", p.MaxQuantity),
		)
		e.notify.Send(ctx, ev.ChatID, Message{Text: outOfRange(p)})
		return nil
	}

	data := s.Data
	data.Quantity = qty
	data.Total = int64(qty) * p.Price
	if err := e.advance(ctx, ev.UserID, s.State, PhasePayment, data); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: e.paymentPrompt(data.Total)})
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orderKey(o ledger.Order) string {
	return strconv.FormatInt(o.UserID, 10)
}

func orderPayload(o ledger.Order) events.OrderPayload {
	return events.OrderPayload{
		UserID:    o.UserID,
		Index:     o.Index,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Total:     o.Total,
		Status:    string(o.Status),
	}
}
