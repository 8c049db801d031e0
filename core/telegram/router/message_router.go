package router

import (
	"time"

	tg "github.com/m3rciful/savdobot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation handler consulted for non-command input.
type FSM interface {
	InProgress(c tele.Context) bool
	Handle(c tele.Context) error
}

// TextOptions controls fallback behaviour for text and photo updates.
type TextOptions struct {
	AdminID      int64
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// TextRoutes routes text and photo messages. Registered commands win over an
// active conversation so /start and /cancel always work.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				if cmd.AdminOnly && c.Sender().ID != opts.AdminID {
					logHandlerSummary(c, normalizeHandlerName(key), start, "skip", nil)
					return nil
				}
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if fsm != nil && fsm.InProgress(c) {
			return handleWithSummary(c, "fsm", start, func() error { return fsm.Handle(c) })
		}

		fallback := opts.UnknownText
		if reg != nil && reg.TextFallback() != nil {
			fallback = reg.TextFallback()
		}
		if fallback != nil {
			return handleWithSummary(c, "fallback", start, func() error { return fallback(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if fsm != nil && fsm.InProgress(c) {
			return handleWithSummary(c, "fsm_photo", start, func() error { return fsm.Handle(c) })
		}
		if opts.UnknownPhoto != nil {
			return handleWithSummary(c, "unexpected_photo", start, func() error { return opts.UnknownPhoto(c) })
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnPhoto, Handler: photoHandler},
	}
}
