// Package callbacks reads callback data from inline button presses.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits Telebot's "\f<unique>|<payload>" encoding. Plain
// data without the prefix is returned as unique with an empty payload.
func ParseCallbackData(raw string) (string, string) {
	raw = strings.TrimPrefix(raw, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// RawData returns the callback data exactly as the button carried it,
// undoing Telebot's unique/payload split when it happened.
func RawData(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique == "" {
		return strings.TrimPrefix(cb.Data, "\f")
	}
	if cb.Data == "" {
		return cb.Unique
	}
	return cb.Unique + "|" + cb.Data
}

// CallbackKey returns the unique part used for handler lookup and logging.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb.Data)
	return k
}
