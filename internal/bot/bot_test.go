package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	tg "github.com/m3rciful/savdobot/core/telegram"
	tgsender "github.com/m3rciful/savdobot/core/telegram/sender"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(upd)
}

func TestEventFromText(t *testing.T) {
	c := newContext(t, tele.Update{ID: 1, Message: &tele.Message{
		ID:     5,
		Sender: &tele.User{ID: 42, FirstName: "Ali", LastName: "Valiyev"},
		Chat:   &tele.Chat{ID: 42},
		Text:   "mf1",
	}})
	ev := EventFrom(c)
	assert.Equal(t, flow.Event{UserID: 42, ChatID: 42, FullName: "Ali Valiyev", Text: "mf1"}, ev)
}

func TestEventFromPhoto(t *testing.T) {
	c := newContext(t, tele.Update{ID: 2, Message: &tele.Message{
		Sender:  &tele.User{ID: 42, Username: "ali"},
		Chat:    &tele.Chat{ID: 42},
		Photo:   &tele.Photo{File: tele.File{FileID: "file-1"}},
		Caption: "chek",
	}})
	ev := EventFrom(c)
	assert.Equal(t, "file-1", ev.PhotoFileID)
	assert.Equal(t, "chek", ev.Text)
	assert.Equal(t, "@ali", ev.FullName)
}

func TestEventFromCallback(t *testing.T) {
	c := newContext(t, tele.Update{ID: 3, Callback: &tele.Callback{
		ID:     "cb-1",
		Data:   "done_42_3",
		Sender: &tele.User{ID: 1000},
		Message: &tele.Message{
			ID:      77,
			Chat:    &tele.Chat{ID: 1000},
			Photo:   &tele.Photo{File: tele.File{FileID: "file-1"}},
			Caption: "🆕 BUYURTMA",
		},
	}})
	ev := EventFrom(c)
	require.NotNil(t, ev.Callback)
	assert.Equal(t, int64(1000), ev.UserID)
	assert.Equal(t, "id1000", ev.FullName)
	assert.Empty(t, ev.PhotoFileID)
	assert.Equal(t, &flow.Callback{
		ID:      "cb-1",
		Command: command.Command{Kind: command.Confirm, UserID: 42, OrderIndex: 3},
		Message: flow.MessageRef{ChatID: 1000, MessageID: 77, Caption: true},
		Text:    "🆕 BUYURTMA",
	}, ev.Callback)

	c = newContext(t, tele.Update{ID: 4, Callback: &tele.Callback{
		ID:      "cb-2",
		Data:    "nonsense",
		Sender:  &tele.User{ID: 5},
		Message: &tele.Message{ID: 8, Chat: &tele.Chat{ID: 5}, Text: "menu"},
	}})
	ev = EventFrom(c)
	assert.Equal(t, command.Unknown, ev.Callback.Command.Kind)
	assert.False(t, ev.Callback.Message.Caption)
	assert.Equal(t, "menu", ev.Callback.Text)
}

type fakeEngine struct {
	calls      []string
	inProgress bool
}

func (f *fakeEngine) record(name string) func(context.Context, flow.Event) error {
	return func(context.Context, flow.Event) error {
		f.calls = append(f.calls, name)
		return nil
	}
}

func (f *fakeEngine) Start(ctx context.Context, ev flow.Event) error {
	return f.record("start")(ctx, ev)
}
func (f *fakeEngine) NewOrder(ctx context.Context, ev flow.Event) error {
	return f.record("new_order")(ctx, ev)
}
func (f *fakeEngine) Cancel(ctx context.Context, ev flow.Event) error {
	return f.record("cancel")(ctx, ev)
}
func (f *fakeEngine) Status(ctx context.Context, ev flow.Event) error {
	return f.record("status")(ctx, ev)
}
func (f *fakeEngine) Help(ctx context.Context, ev flow.Event) error {
	return f.record("help")(ctx, ev)
}
func (f *fakeEngine) AdminPanel(ctx context.Context, ev flow.Event) error {
	return f.record("admin")(ctx, ev)
}
func (f *fakeEngine) HandleText(ctx context.Context, ev flow.Event) error {
	return f.record("text:" + ev.Text)(ctx, ev)
}
func (f *fakeEngine) HandlePhoto(ctx context.Context, ev flow.Event) error {
	return f.record("photo:" + ev.PhotoFileID)(ctx, ev)
}
func (f *fakeEngine) HandleCallback(ctx context.Context, ev flow.Event) error {
	return f.record("callback:" + ev.Callback.Command.Kind.String())(ctx, ev)
}
func (f *fakeEngine) InProgress(context.Context, int64) bool { return f.inProgress }

func TestHandlersDispatch(t *testing.T) {
	eng := &fakeEngine{inProgress: true}
	h := NewHandlers(eng, 1000)

	text := newContext(t, tele.Update{ID: 10, Message: &tele.Message{Sender: &tele.User{ID: 1}, Chat: &tele.Chat{ID: 1}, Text: "5"}})
	photo := newContext(t, tele.Update{ID: 11, Message: &tele.Message{Sender: &tele.User{ID: 1}, Chat: &tele.Chat{ID: 1}, Photo: &tele.Photo{File: tele.File{FileID: "p"}}}})
	cb := newContext(t, tele.Update{ID: 12, Callback: &tele.Callback{ID: "x", Data: "help", Sender: &tele.User{ID: 1}}})

	assert.True(t, h.InProgress(text))
	require.NoError(t, h.Handle(text))
	require.NoError(t, h.Handle(photo))
	require.NoError(t, h.Callback(cb))
	assert.Equal(t, []string{"text:5", "photo:p", "callback:help"}, eng.calls)
}

func TestRegisterCommands(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandlers(eng, 1000)
	reg := tg.NewRegistry()
	h.RegisterCommands(reg)

	assert.Len(t, reg.Commands(), 6)
	var public []string
	for _, c := range reg.ListCommands(true) {
		public = append(public, c.Text)
	}
	assert.Equal(t, []string{"cancel", "help", "neworder", "start", "status"}, public)

	key, cmd, ok := reg.LookupCommand("/back")
	require.True(t, ok)
	assert.Equal(t, "/cancel", key)

	c := newContext(t, tele.Update{ID: 20, Message: &tele.Message{Sender: &tele.User{ID: 1}, Chat: &tele.Chat{ID: 1}, Text: "/back"}})
	require.NoError(t, cmd.Handler(c))
	require.NoError(t, reg.TextFallback()(c))
	assert.Equal(t, []string{"cancel", "cancel"}, eng.calls)

	routes := h.Routes(reg)
	endpoints := map[any]bool{}
	for _, r := range routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/start", "/admin", "/back", tele.OnText, tele.OnPhoto, tele.OnCallback} {
		assert.True(t, endpoints[e], e)
	}
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []any
	opts     []*tele.SendOptions
	to       []tele.Recipient
	forwards []tele.StoredMessage
	edits    []string
	answers  []*tele.CallbackResponse
	err      error
}

func (f *fakeAPI) note(to tele.Recipient, what any, opts []any) {
	f.sent = append(f.sent, what)
	f.to = append(f.to, to)
	if len(opts) > 0 {
		o, _ := opts[0].(*tele.SendOptions)
		f.opts = append(f.opts, o)
	}
}

func (f *fakeAPI) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.note(to, what, opts)
	return &tele.Message{}, nil
}

func (f *fakeAPI) Forward(to tele.Recipient, msg tele.Editable, _ ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.to = append(f.to, to)
	f.forwards = append(f.forwards, msg.(tele.StoredMessage))
	return &tele.Message{}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what any, _ ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	f.edits = append(f.edits, "text:"+id+":"+what.(string))
	return &tele.Message{}, nil
}

func (f *fakeAPI) EditCaption(msg tele.Editable, caption string, _ ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	f.edits = append(f.edits, "caption:"+id+":"+caption)
	return &tele.Message{}, nil
}

func (f *fakeAPI) Respond(_ *tele.Callback, resp ...*tele.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, resp...)
	return nil
}

func TestNotifierSends(t *testing.T) {
	api := &fakeAPI{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1})
	n := NewNotifier(api, d, -100123)
	ctx := context.Background()

	n.Send(ctx, 42, flow.Message{Text: "*hi*", Keyboard: flow.Keyboard{{{Text: "Menu", Data: "back"}}}})
	n.SendPhoto(ctx, 1000, "file-1", flow.Message{Text: "caption", Plain: true})
	n.Edit(ctx, flow.MessageRef{ChatID: 1000, MessageID: 77, Caption: true}, flow.Message{Text: "done", Plain: true})
	n.Edit(ctx, flow.MessageRef{ChatID: 1000, MessageID: 78}, flow.Message{Text: "menu"})
	n.Answer(ctx, "cb-1", "Ruxsat yo‘q", true)
	d.Close()

	require.Len(t, api.sent, 2)
	assert.Equal(t, "*hi*", api.sent[0])
	assert.Equal(t, tele.ChatID(42), api.to[0])
	assert.Equal(t, tele.ModeMarkdown, api.opts[0].ParseMode)
	require.NotNil(t, api.opts[0].ReplyMarkup)
	assert.Equal(t, "back", api.opts[0].ReplyMarkup.InlineKeyboard[0][0].Data)

	photo, ok := api.sent[1].(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "file-1", photo.FileID)
	assert.Equal(t, "caption", photo.Caption)
	assert.Equal(t, tele.ParseMode(""), api.opts[1].ParseMode)
	assert.Nil(t, api.opts[1].ReplyMarkup)

	assert.Equal(t, []string{"caption:77:done", "text:78:menu"}, api.edits)
	require.Len(t, api.answers, 1)
	assert.Equal(t, &tele.CallbackResponse{Text: "Ruxsat yo‘q", ShowAlert: true}, api.answers[0])
}

func TestNotifierForwardPost(t *testing.T) {
	api := &fakeAPI{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1})
	defer d.Close()
	ctx := context.Background()

	err := NewNotifier(api, d, 0).ForwardPost(ctx, 42, 454)
	assert.ErrorIs(t, err, ErrNoChannel)

	n := NewNotifier(api, d, -100123)
	require.NoError(t, n.ForwardPost(ctx, 42, 454))
	assert.Equal(t, []tele.StoredMessage{{MessageID: "454", ChatID: -100123}}, api.forwards)

	api.err = errors.New("telegram: message to forward not found (400)")
	assert.Error(t, n.ForwardPost(ctx, 42, 999))
}

type fakeResolver struct {
	chats map[string]int64
}

func (f fakeResolver) ChatByUsername(name string) (*tele.Chat, error) {
	id, ok := f.chats[name]
	if !ok {
		return nil, errors.New("telegram: chat not found (400)")
	}
	return &tele.Chat{ID: id}, nil
}

func TestResolveChannel(t *testing.T) {
	r := fakeResolver{chats: map[string]int64{"@savdo_shop": -1001}}

	id, err := ResolveChannel(r, " -100500 ")
	require.NoError(t, err)
	assert.Equal(t, int64(-100500), id)

	id, err = ResolveChannel(r, "@savdo_shop")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), id)

	id, err = ResolveChannel(r, "savdo_shop")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), id)

	_, err = ResolveChannel(r, "@missing")
	assert.ErrorContains(t, err, "@missing")
	_, err = ResolveChannel(r, "")
	assert.Error(t, err)
}
