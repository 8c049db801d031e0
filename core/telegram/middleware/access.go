package middleware

import (
	"log/slog"

	"github.com/m3rciful/savdobot/core/logger"
	tghelpers "github.com/m3rciful/savdobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RequireAdmin passes updates from adminID to next. Anyone else gets
// onReject, or silence when it is nil. A zero adminID admits nobody.
func RequireAdmin(adminID int64, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); adminID != 0 && u != nil && u.ID == adminID {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			logger.Warn(ctx, "tg", "admin.reject", slog.String("handler", logger.HandlerFrom(ctx)))
			if onReject == nil {
				return nil
			}
			return onReject(c)
		}
	}
}
