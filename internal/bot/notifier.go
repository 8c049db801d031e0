package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/savdobot/core/logger"
	"github.com/m3rciful/savdobot/core/telegram/keyboard"
	"github.com/m3rciful/savdobot/core/telegram/middleware"
	tgsender "github.com/m3rciful/savdobot/core/telegram/sender"
	"github.com/m3rciful/savdobot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// ErrNoChannel is returned by ForwardPost when no source channel is set.
var ErrNoChannel = errors.New("bot: promo channel is not configured")

// API is the part of *tele.Bot the notifier calls.
type API interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Forward(to tele.Recipient, msg tele.Editable, opts ...any) (*tele.Message, error)
	Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error)
	EditCaption(msg tele.Editable, caption string, opts ...any) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Notifier sends engine output through the chat-keyed dispatcher. Only
// ForwardPost waits for the result.
type Notifier struct {
	api     API
	sender  *tgsender.Dispatcher
	channel int64
}

// NewNotifier builds a notifier forwarding promo posts from channelID.
func NewNotifier(api API, sender *tgsender.Dispatcher, channelID int64) *Notifier {
	return &Notifier{api: api, sender: sender, channel: channelID}
}

var _ flow.Notifier = (*Notifier)(nil)

func sendOptions(msg flow.Message, markup *tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	if !msg.Plain {
		opts.ParseMode = tele.ModeMarkdown
	}
	return opts
}

func (n *Notifier) Send(ctx context.Context, chatID int64, msg flow.Message) {
	markup := keyboard.InlineRows(msg.Keyboard...)
	err := n.sender.Enqueue(ctx, chatID, "send", "sendMessage", func() error {
		_, err := n.api.Send(tele.ChatID(chatID), msg.Text, sendOptions(msg, markup))
		return err
	})
	n.queued(ctx, "send", chatID, err, markup != nil)
}

func (n *Notifier) SendPhoto(ctx context.Context, chatID int64, fileID string, msg flow.Message) {
	markup := keyboard.InlineRows(msg.Keyboard...)
	err := n.sender.Enqueue(ctx, chatID, "send_photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: msg.Text}
		_, err := n.api.Send(tele.ChatID(chatID), photo, sendOptions(msg, markup))
		return err
	})
	n.queued(ctx, "send_photo", chatID, err, markup != nil)
}

func (n *Notifier) ForwardPost(ctx context.Context, to int64, postID int) error {
	if n.channel == 0 {
		return ErrNoChannel
	}
	post := tele.StoredMessage{MessageID: strconv.Itoa(postID), ChatID: n.channel}
	err := n.sender.Do(ctx, to, "forward", "forwardMessage", func() error {
		_, err := n.api.Forward(tele.ChatID(to), post)
		return err
	})
	if err == nil {
		middleware.RecordMessage(ctx, false)
	}
	return err
}

func (n *Notifier) Edit(ctx context.Context, ref flow.MessageRef, msg flow.Message) {
	stored := tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
	opts := sendOptions(msg, keyboard.InlineRows(msg.Keyboard...))
	action, endpoint := "edit", "editMessageText"
	if ref.Caption {
		action, endpoint = "edit_caption", "editMessageCaption"
	}
	err := n.sender.Enqueue(ctx, ref.ChatID, action, endpoint, func() error {
		var err error
		if ref.Caption {
			_, err = n.api.EditCaption(stored, msg.Text, opts)
		} else {
			_, err = n.api.Edit(stored, msg.Text, opts)
		}
		return err
	})
	n.queued(ctx, action, ref.ChatID, err, false)
}

func (n *Notifier) Answer(ctx context.Context, callbackID, text string, alert bool) {
	key := logger.UserIDFrom(ctx)
	err := n.sender.Enqueue(ctx, key, "answer", "answerCallbackQuery", func() error {
		return n.api.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
	})
	if err != nil {
		logger.Warn(ctx, "tg.sender", "send.enqueue_failed",
			slog.String("action", "answer"),
			slog.String("err", err.Error()),
		)
	}
}

func (n *Notifier) queued(ctx context.Context, action string, chatID int64, err error, hasKeyboard bool) {
	if err != nil {
		logger.Warn(ctx, "tg.sender", "send.enqueue_failed",
			slog.String("action", action),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	middleware.RecordMessage(ctx, hasKeyboard)
}
