// Package bot adapts telebot updates to the conversation engine and
// implements the engine's Notifier on top of the outbound dispatcher.
package bot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/m3rciful/savdobot/core/telegram"
	"github.com/m3rciful/savdobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/savdobot/core/telegram/helpers"
	"github.com/m3rciful/savdobot/core/telegram/router"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Engine is the conversation surface the handlers drive.
type Engine interface {
	Start(ctx context.Context, ev flow.Event) error
	NewOrder(ctx context.Context, ev flow.Event) error
	Cancel(ctx context.Context, ev flow.Event) error
	Status(ctx context.Context, ev flow.Event) error
	Help(ctx context.Context, ev flow.Event) error
	AdminPanel(ctx context.Context, ev flow.Event) error
	HandleText(ctx context.Context, ev flow.Event) error
	HandlePhoto(ctx context.Context, ev flow.Event) error
	HandleCallback(ctx context.Context, ev flow.Event) error
	InProgress(ctx context.Context, userID int64) bool
}

var _ Engine = (*flow.Engine)(nil)

// Handlers binds telebot endpoints to an Engine.
type Handlers struct {
	engine  Engine
	adminID int64
}

// NewHandlers creates handlers for engine.
func NewHandlers(engine Engine, adminID int64) *Handlers {
	return &Handlers{engine: engine, adminID: adminID}
}

var _ router.FSM = (*Handlers)(nil)

// EventFrom converts a telebot update into an engine event.
func EventFrom(c tele.Context) flow.Event {
	var ev flow.Event
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.FullName = fullName(u)
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	} else {
		ev.ChatID = ev.UserID
	}

	if m := c.Message(); m != nil && c.Callback() == nil {
		ev.Text = m.Text
		if m.Photo != nil {
			ev.PhotoFileID = m.Photo.FileID
			ev.Text = m.Caption
		}
	}

	if cb := c.Callback(); cb != nil {
		cmd, _ := command.Parse(callbacks.RawData(cb))
		ev.Callback = &flow.Callback{ID: cb.ID, Command: cmd}
		if m := cb.Message; m != nil {
			ev.Callback.Message = flow.MessageRef{MessageID: m.ID, Caption: m.Photo != nil}
			if m.Chat != nil {
				ev.Callback.Message.ChatID = m.Chat.ID
			}
			ev.Callback.Text = m.Text
			if ev.Callback.Message.Caption {
				ev.Callback.Text = m.Caption
			}
		}
	}
	return ev
}

func fullName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	}
	return fmt.Sprintf("id%d", u.ID)
}

func (h *Handlers) run(c tele.Context, fn func(context.Context, flow.Event) error) error {
	return fn(tghelpers.BuildContext(c), EventFrom(c))
}

// InProgress reports whether the sender has an active conversation.
func (h *Handlers) InProgress(c tele.Context) bool {
	if c.Sender() == nil {
		return false
	}
	return h.engine.InProgress(tghelpers.BuildContext(c), c.Sender().ID)
}

// Handle feeds a text or photo message to the conversation.
func (h *Handlers) Handle(c tele.Context) error {
	if m := c.Message(); m != nil && m.Photo != nil {
		return h.run(c, h.engine.HandlePhoto)
	}
	return h.run(c, h.engine.HandleText)
}

// Callback decodes and runs an inline button press.
func (h *Handlers) Callback(c tele.Context) error {
	return h.run(c, h.engine.HandleCallback)
}

// RegisterCommands adds the bot's slash commands to reg.
func (h *Handlers) RegisterCommands(reg *tg.Registry) {
	cmds := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Description: "Botni ishga tushirish", Handler: h.wrap(h.engine.Start)}},
		{"/neworder", tg.Command{Description: "Yangi buyurtma", Handler: h.wrap(h.engine.NewOrder)}},
		{"/status", tg.Command{Description: "Buyurtmalarim", Handler: h.wrap(h.engine.Status)}},
		{"/help", tg.Command{Description: "Yordam", Handler: h.wrap(h.engine.Help)}},
		{"/cancel", tg.Command{Description: "Bekor qilish", Handler: h.wrap(h.engine.Cancel), Aliases: []string{"/back"}}},
		{"/admin", tg.Command{Description: "Admin panel", Handler: h.wrap(h.engine.AdminPanel), AdminOnly: true}},
	}
	for _, c := range cmds {
		reg.RegisterCommand(c.name, c.cmd)
	}
	reg.SetTextFallback(h.wrap(h.engine.Cancel))
}

func (h *Handlers) wrap(fn func(context.Context, flow.Event) error) tele.HandlerFunc {
	return func(c tele.Context) error { return h.run(c, fn) }
}

// Routes returns every route of the bot. RegisterCommands must run first.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: h.adminID})
	routes = append(routes, router.TextRoutes(h, reg, router.TextOptions{AdminID: h.adminID})...)
	return append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		Handle: h.Callback,
		Name:   command.Name,
	}))
}
