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
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/events"
)

// AdminPanel clears the admin's conversation and renders the catalog menu.
func (e *Engine) AdminPanel(ctx context.Context, ev Event) error {
	defer e.locks.lock(ev.UserID)()
	if !e.IsAdmin(ev.UserID) {
		return e.deny(ctx, ev)
	}
	s, err := e.session(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	return e.renderPanel(ctx, ev.ChatID)
}

func (e *Engine) renderPanel(ctx context.Context, chatID int64) error {
	products, err := e.catalog.List(ctx)
	if err != nil {
		return e.fail(ctx, chatID, fmt.Errorf("flow: list products: %w", err))
	}
	e.notify.Send(ctx, chatID, Message{Text: adminPanelText(products), Keyboard: adminPanelKeyboard(products)})
	return nil
}

// deny answers a non-admin caller of a catalog action and drops whatever
// conversation the caller had.
func (e *Engine) deny(ctx context.Context, ev Event) error {
	logger.Warn(ctx, "flow", "admin.denied", slog.Int64("user_id", ev.UserID))
	if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
		logger.Warn(ctx, "flow", "session.clear_failed", slog.Any("err", err))
	}
	if ev.Callback == nil {
		e.notify.Send(ctx, ev.ChatID, Message{Text: textForbidden})
	}
	return nil
}

func (e *Engine) startAdd(ctx context.Context, ev Event, s Session) error {
	if err := e.advance(ctx, ev.UserID, s.State, PhaseAddID, Scratch{}); err != nil {
		return err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textAddAskID})
	return nil
}

func (e *Engine) startDelete(ctx context.Context, ev Event, s Session) error {
	products, err := e.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("flow: list products: %w", err)
	}
	if err := e.advance(ctx, ev.UserID, s.State, PhaseDeleteID, Scratch{}); err != nil {
		return err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textDeleteAsk, Keyboard: deleteKeyboard(products)})
	return nil
}

// startEdit selects the product to edit. It reports false when the product
// no longer exists.
func (e *Engine) startEdit(ctx context.Context, ev Event, s Session, id string) (bool, error) {
	p, err := e.catalog.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("flow: get product: %w", err)
	}
	if err := e.advance(ctx, ev.UserID, s.State, PhaseEditField, Scratch{EditID: p.ID}); err != nil {
		return false, err
	}
	e.notify.Send(ctx, ev.ChatID, Message{
		Text:     e.productCard(p) + "\n\n" + textEditPickField,
		Keyboard: fieldKeyboard(),
	})
	return true, nil
}

// pickField moves PhaseEditField to PhaseEditValue. It reports false for a
// stale button.
func (e *Engine) pickField(ctx context.Context, ev Event, s Session, f command.Field) (bool, error) {
	if s.State != PhaseEditField || s.Data.EditID == "" {
		return false, nil
	}
	data := s.Data
	data.EditField = f
	if err := e.advance(ctx, ev.UserID, s.State, PhaseEditValue, data); err != nil {
		return false, err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: fieldPrompts[f]})
	return true, nil
}

// deleteProduct removes id and re-renders the panel. It reports false
// when id is unknown.
func (e *Engine) deleteProduct(ctx context.Context, ev Event, s Session, id string) (bool, error) {
	err := e.catalog.Delete(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("flow: delete product: %w", err)
	}
	logger.Info(ctx, "catalog", "product.deleted", slog.String("product_id", id))
	e.publish(ctx, events.ProductDeleted, id, events.ProductPayload{ID: id})

	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return true, err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: fmt.Sprintf(textDeletedFmt, id)})
	return true, e.renderPanel(ctx, ev.ChatID)
}

func (e *Engine) onAdminText(ctx context.Context, ev Event, s Session) error {
	if !e.IsAdmin(ev.UserID) {
		return e.deny(ctx, ev)
	}
	text := strings.TrimSpace(ev.Text)
	d := s.Data

	switch s.State {
	case PhaseAddID:
		id := catalog.NormalizeID(text)
		if err := catalog.ValidateID(id); err != nil {
			e.notify.Send(ctx, ev.ChatID, Message{Text: textAddBadID})
			return nil
		}
		_, err := e.catalog.Get(ctx, id)
		switch {
		case err == nil:
			e.notify.Send(ctx, ev.ChatID, Message{Text: textAddDuplicate})
			return nil
		case !errors.Is(err, catalog.ErrNotFound):
			return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: get product: %w", err))
		}
		d.Product.ID = id
		return e.prompt(ctx, ev, s.State, PhaseAddName, d, textAddAskName)

	case PhaseAddName:
		if text == "" {
			e.notify.Send(ctx, ev.ChatID, Message{Text: textAddEmptyName})
			return nil
		}
		d.Product.Name = text
		return e.prompt(ctx, ev, s.State, PhaseAddPrice, d, textAddAskPrice)

	case PhaseAddPrice:
		v, ok := e.digits(ctx, ev, text)
		if !ok {
			return nil
		}
		d.Product.Price = v
		return e.prompt(ctx, ev, s.State, PhaseAddMax, d, textAddAskMax)

	case PhaseAddMax:
		v, ok := e.digits(ctx, ev, text)
		if !ok {
			return nil
		}
		d.Product.MaxQuantity = int(v)
		return e.prompt(ctx, ev, s.State, PhaseAddPost, d, textAddAskPost)

	case PhaseAddPost:
		v, ok := e.digits(ctx, ev, text)
		if !ok {
			return nil
		}
		d.Product.PostID = int(v)
		return e.finishAdd(ctx, ev, s, d.Product)

	case PhaseEditField:
		e.notify.Send(ctx, ev.ChatID, Message{Text: textPickButton, Keyboard: fieldKeyboard()})
		return nil

	case PhaseEditValue:
		return e.applyEdit(ctx, ev, s, text)

	case PhaseDeleteID:
		ok, err := e.deleteProduct(ctx, ev, s, catalog.NormalizeID(text))
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if !ok {
			e.notify.Send(ctx, ev.ChatID, Message{Text: textUnknownProduct})
		}
		return nil
	}
	return nil
}

func (e *Engine) prompt(ctx context.Context, ev Event, from, to Phase, d Scratch, text string) error {
	if err := e.advance(ctx, ev.UserID, from, to, d); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: text})
	return nil
}

// digits parses a non-negative integer or re-prompts.
func (e *Engine) digits(ctx context.Context, ev Event, text string) (int64, bool) {
	if isDigits(text) {
		if v, err := strconv.ParseInt(text, 10, 32); err == nil {
			return v, true
		}
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textDigitsOnly})
	return 0, false
}

func (e *Engine) finishAdd(ctx context.Context, ev Event, s Session, p catalog.Product) error {
	err := e.catalog.Add(ctx, p)
	switch {
	case errors.Is(err, catalog.ErrExists):
		if err := e.advance(ctx, ev.UserID, s.State, PhaseAddID, Scratch{}); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		e.notify.Send(ctx, ev.ChatID, Message{Text: textAddDuplicate})
		return nil
	case err != nil:
		return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: add product: %w", err))
	}

	logger.Info(ctx, "catalog", "product.added", slog.String("product_id", p.ID))
	e.publish(ctx, events.ProductAdded, p.ID, productPayload(p))
	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textAdded + e.productCard(p)})
	return e.renderPanel(ctx, ev.ChatID)
}

func (e *Engine) applyEdit(ctx context.Context, ev Event, s Session, text string) error {
	d := s.Data
	var set func(*catalog.Product)
	if d.EditField == command.FieldName {
		if text == "" {
			e.notify.Send(ctx, ev.ChatID, Message{Text: textAddEmptyName})
			return nil
		}
		set = func(p *catalog.Product) { p.Name = text }
	} else {
		v, ok := e.digits(ctx, ev, text)
		if !ok {
			return nil
		}
		switch d.EditField {
		case command.FieldPrice:
			set = func(p *catalog.Product) { p.Price = v }
		case command.FieldMax:
			set = func(p *catalog.Product) { p.MaxQuantity = int(v) }
		case command.FieldPost:
			set = func(p *catalog.Product) { p.PostID = int(v) }
		default:
			return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: unknown edit field %q", d.EditField))
		}
	}

	p, err := e.catalog.Update(ctx, d.EditID, func(p *catalog.Product) error {
		set(p)
		return nil
	})
	if errors.Is(err, catalog.ErrNotFound) {
		if err := e.reset(ctx, ev.UserID, s.State); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		e.notify.Send(ctx, ev.ChatID, Message{Text: textProductMissing})
		return e.renderPanel(ctx, ev.ChatID)
	}
	if err != nil {
		return e.fail(ctx, ev.ChatID, fmt.Errorf("flow: update product: %w", err))
	}

	logger.Info(ctx, "catalog", "product.updated",
		slog.String("product_id", p.ID),
		slog.String("field", string(d.EditField)),
	)
	e.publish(ctx, events.ProductUpdated, p.ID, productPayload(p))
	if err := e.reset(ctx, ev.UserID, s.State); err != nil {
		return err
	}
	e.notify.Send(ctx, ev.ChatID, Message{Text: textUpdated + e.productCard(p)})
	return e.renderPanel(ctx, ev.ChatID)
}

func productPayload(p catalog.Product) events.ProductPayload {
	return events.ProductPayload{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		MaxQuantity: p.MaxQuantity,
		PostID:      p.PostID,
	}
}
