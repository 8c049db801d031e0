package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/savdobot/core/logger"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/ledger"
)

// ack is the single answer given to a callback.
type ack struct {
	text  string
	alert bool
}

// HandleCallback runs a decoded button press. The callback is answered
// exactly once, whatever the outcome.
func (e *Engine) HandleCallback(ctx context.Context, ev Event) error {
	if ev.Callback == nil {
		return nil
	}
	a, err := e.callback(ctx, ev)
	e.notify.Answer(ctx, ev.Callback.ID, a.text, a.alert)
	return err
}

func (e *Engine) callback(ctx context.Context, ev Event) (ack, error) {
	cmd := ev.Callback.Command
	switch cmd.Kind {
	case command.NewOrder:
		return ack{}, e.NewOrder(ctx, ev)
	case command.MyStatus:
		return ack{}, e.Status(ctx, ev)
	case command.Help:
		return ack{}, e.Help(ctx, ev)
	case command.Back:
		return ack{}, e.Cancel(ctx, ev)
	case command.AddProduct, command.DeleteProduct, command.AdminBack,
		command.EditProduct, command.EditField, command.DeleteProductID:
		return e.adminCallback(ctx, ev, cmd)
	case command.Confirm:
		return e.decide(ctx, ev, cmd.UserID, cmd.OrderIndex, ledger.StatusConfirmed)
	case command.Reject:
		return e.decide(ctx, ev, cmd.UserID, cmd.OrderIndex, ledger.StatusRejected)
	case command.LegacyConfirm:
		return e.decideLegacy(ctx, ev, cmd, ledger.StatusConfirmed)
	case command.LegacyReject:
		return e.decideLegacy(ctx, ev, cmd, ledger.StatusRejected)
	case command.Unknown:
		logger.Debug(ctx, "flow", "callback.unknown", slog.Int64("user_id", ev.UserID))
		return ack{text: textStale}, nil
	}
	return ack{text: textStale}, nil
}

func (e *Engine) adminCallback(ctx context.Context, ev Event, cmd command.Command) (ack, error) {
	defer e.locks.lock(ev.UserID)()
	if !e.IsAdmin(ev.UserID) {
		return ack{text: textForbidden, alert: true}, e.deny(ctx, ev)
	}
	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return ack{text: textTryAgain}, err
	}

	switch cmd.Kind {
	case command.AddProduct:
		err = e.startAdd(ctx, ev, s)
	case command.DeleteProduct:
		err = e.startDelete(ctx, ev, s)
	case command.AdminBack:
		if err = e.reset(ctx, ev.UserID, s.State); err == nil {
			err = e.renderPanel(ctx, ev.ChatID)
		}
	case command.EditProduct:
		ok, err := e.startEdit(ctx, ev, s, cmd.ProductID)
		if err == nil && !ok {
			return ack{text: textProductMissing, alert: true}, nil
		}
		return ackFor(err), err
	case command.EditField:
		ok, err := e.pickField(ctx, ev, s, cmd.Field)
		if err == nil && !ok {
			return ack{text: textStale}, nil
		}
		return ackFor(err), err
	case command.DeleteProductID:
		ok, err := e.deleteProduct(ctx, ev, s, cmd.ProductID)
		if err == nil && !ok {
			return ack{text: textProductMissing, alert: true}, nil
		}
		return ackFor(err), err
	}
	return ackFor(err), err
}

func ackFor(err error) ack {
	if err != nil {
		return ack{text: textTryAgain}
	}
	return ack{}
}

// decide moves (userID, index) to status to. Only Pending orders move; a
// repeated tap on a decided order is answered with an alert and changes nothing.
func (e *Engine) decide(ctx context.Context, ev Event, userID int64, index int, to ledger.Status) (ack, error) {
	if !e.IsAdmin(ev.UserID) {
		logger.Warn(ctx, "flow", "order.decide_denied",
			slog.Int64("user_id", ev.UserID),
			slog.Int64("order_user_id", userID),
		)
		return ack{text: textForbidden, alert: true}, nil
	}

	current, err := e.ledger.Get(ctx, userID, index)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return ack{text: textOrderNotFound, alert: true}, nil
	case err != nil:
		return ack{text: textTryAgain}, fmt.Errorf("flow: get order: %w", err)
	case !ledger.CanTransition(current.Status, to):
		logger.Debug(ctx, "flow", "order.already_decided",
			slog.Int64("order_user_id", userID),
			slog.Int("index", index),
			slog.String("status", string(current.Status)),
		)
		return ack{text: textOrderFinal, alert: true}, nil
	}

	// Transition re-checks the status; another admin may have decided meanwhile.
	order, err := e.ledger.Transition(ctx, userID, index, to)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return ack{text: textOrderNotFound, alert: true}, nil
	case errors.Is(err, ledger.ErrFinal):
		logger.Debug(ctx, "flow", "order.already_decided",
			slog.Int64("order_user_id", userID),
			slog.Int("index", index),
			slog.Any("err", err),
		)
		return ack{text: textOrderFinal, alert: true}, nil
	case err != nil:
		return ack{text: textTryAgain}, fmt.Errorf("flow: transition order: %w", err)
	}

	buyer := Message{Text: textRejected}
	suffix, reply, evType := suffixRejected, textRejectedAck, events.OrderRejected
	if to == ledger.StatusConfirmed {
		buyer = Message{Text: e.confirmedText(order)}
		suffix, reply, evType = suffixConfirmed, textConfirmedAck, events.OrderConfirmed
	}
	e.notify.Send(ctx, order.UserID, buyer)

	original := ev.Callback.Text
	if original == "" {
		original = e.orderSummary(order)
	}
	e.notify.Edit(ctx, ev.Callback.Message, Message{Text: original + suffix, Plain: true})
	e.publish(ctx, evType, orderKey(order), orderPayload(order))

	logger.Info(ctx, "flow", "order.decided",
		slog.Int64("order_user_id", order.UserID),
		slog.Int("index", order.Index),
		slog.String("status", string(order.Status)),
	)
	return ack{text: reply}, nil
}

// decideLegacy resolves buttons sent before orders carried their index to
// the newest matching Pending order of the buyer.
func (e *Engine) decideLegacy(ctx context.Context, ev Event, cmd command.Command, to ledger.Status) (ack, error) {
	if !e.IsAdmin(ev.UserID) {
		return ack{text: textForbidden, alert: true}, nil
	}
	var match func(ledger.Order) bool
	if cmd.Kind == command.LegacyConfirm {
		match = func(o ledger.Order) bool {
			return o.ProductID == cmd.ProductID && o.Quantity == cmd.Quantity
		}
	}
	order, err := ledger.LatestPending(ctx, e.ledger, cmd.UserID, match)
	if errors.Is(err, ledger.ErrNotFound) {
		return ack{text: textOrderNotFound, alert: true}, nil
	}
	if err != nil {
		return ack{text: textTryAgain}, fmt.Errorf("flow: find legacy order: %w", err)
	}
	return e.decide(ctx, ev, order.UserID, order.Index, to)
}
