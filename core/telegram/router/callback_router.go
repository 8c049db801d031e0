package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/savdobot/core/telegram"
	"github.com/m3rciful/savdobot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions configures the generic callback route. Handle owns the
// callback answer; NotFound runs when Handle is nil.
type CallbackOptions struct {
	Handle   tele.HandlerFunc
	NotFound tele.HandlerFunc
	// Name maps raw callback data to a handler name for logs.
	Name func(data string) string
}

// CallbackRoute returns the OnCallback route.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		data := callbacks.RawData(cb)
		key := callbacks.CallbackKey(c)
		if opts.Name != nil {
			key = opts.Name(data)
		}
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", data)}

		h := opts.Handle
		if h == nil {
			h = opts.NotFound
			if reg != nil && reg.CallbackNotFound() != nil {
				h = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}
		if h == nil {
			return c.Respond()
		}
		return handleWithSummary(c, name, start, func() error { return h(c) }, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
