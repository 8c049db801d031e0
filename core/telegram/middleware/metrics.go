package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/savdobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type countersKey struct{}

// Counters track outbound messages produced while handling one update.
type Counters struct {
	messages atomic.Int32
	kb       atomic.Bool
}

// RecordMessage counts one outbound message on the counters carried by ctx.
func RecordMessage(ctx context.Context, hasKeyboard bool) {
	if ctx == nil {
		return
	}
	c, _ := ctx.Value(countersKey{}).(*Counters)
	if c == nil {
		return
	}
	c.messages.Add(1)
	if hasKeyboard {
		c.kb.Store(true)
	}
}

// MessageMetricsMiddleware attaches fresh counters to the update context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		tghelpers.StoreContext(c, context.WithValue(ctx, countersKey{}, &Counters{}))
		return next(c)
	}
}

// GetCounters reads message count and keyboard presence for the update.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	counters, _ := ctx.Value(countersKey{}).(*Counters)
	if counters == nil {
		return 0, false
	}
	return int(counters.messages.Load()), counters.kb.Load()
}
