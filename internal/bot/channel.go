package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ChatResolver looks up a public chat by its @username.
type ChatResolver interface {
	ChatByUsername(name string) (*tele.Chat, error)
}

// ResolveChannel turns CHANNEL_ID into a numeric chat id. Numeric values
// are used as is; "@name" is looked up through r.
func ResolveChannel(r ChatResolver, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("bot: empty channel id")
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	if !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	chat, err := r.ChatByUsername(raw)
	if err != nil {
		return 0, fmt.Errorf("bot: resolve channel %s: %w", raw, err)
	}
	return chat.ID, nil
}
