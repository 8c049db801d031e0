package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/savdobot/core/logger"
	"github.com/m3rciful/savdobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/savdobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const seenTTL = 10 * time.Second

// seen remembers recently logged update IDs so re-entrant chains log once.
var seen = struct {
	sync.Mutex
	ids map[int]time.Time
}{ids: make(map[int]time.Time)}

func alreadyLogged(updateID int, now time.Time) bool {
	seen.Lock()
	defer seen.Unlock()
	for id, ts := range seen.ids {
		if now.Sub(ts) > seenTTL {
			delete(seen.ids, id)
		}
	}
	if _, ok := seen.ids[updateID]; ok {
		return true
	}
	seen.ids[updateID] = now
	return false
}

// LoggerMiddleware builds the update context (rid plus update/user/chat ids)
// and logs one update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		ctx := tghelpers.NewContext(c)
		c.Set("rid", logger.RIDFrom(ctx))
		tghelpers.StoreContext(c, ctx)

		if !logger.ShouldSampleDebug() || alreadyLogged(upd.ID, time.Now()) {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		switch {
		case upd.Callback != nil:
			attrs = append(attrs,
				slog.String("kind", "callback"),
				slog.String("cb_key", logger.SanitizeLimit(callbacks.RawData(upd.Callback), 64)),
			)
		case upd.Message != nil && upd.Message.Photo != nil:
			attrs = append(attrs, slog.String("kind", "photo"))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("kind", "message"))
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		}
		logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
