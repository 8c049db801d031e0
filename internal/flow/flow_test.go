package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/savdobot/core/telegram/state"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/ledger"

	"github.com/stretchr/testify/require"
)

const (
	adminID int64 = 1000
	buyerID int64 = 42
	card          = "9860 1701 0904 2573"
)

type outbound struct {
	Kind   string
	ChatID int64
	FileID string
	PostID int
	Ref    MessageRef
	Msg    Message
}

type answer struct {
	ID    string
	Text  string
	Alert bool
}

type fakeNotifier struct {
	mu         sync.Mutex
	out        []outbound
	answers    []answer
	forwardErr error
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outbound{Kind: "send", ChatID: chatID, Msg: msg})
}

func (f *fakeNotifier) SendPhoto(_ context.Context, chatID int64, fileID string, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outbound{Kind: "photo", ChatID: chatID, FileID: fileID, Msg: msg})
}

func (f *fakeNotifier) ForwardPost(_ context.Context, to int64, postID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outbound{Kind: "forward", ChatID: to, PostID: postID})
	return f.forwardErr
}

func (f *fakeNotifier) Edit(_ context.Context, ref MessageRef, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outbound{Kind: "edit", Ref: ref, Msg: msg})
}

func (f *fakeNotifier) Answer(_ context.Context, id, text string, alert bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{ID: id, Text: text, Alert: alert})
}

func (f *fakeNotifier) last() outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return outbound{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeNotifier) kinds(kind string) []outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []outbound
	for _, o := range f.out {
		if o.Kind == kind {
			res = append(res, o)
		}
	}
	return res
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = nil
	f.answers = nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	types     []events.Type
	err       error
	onPublish func(events.Envelope)
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, env.EventType)
	if p.onPublish != nil {
		p.onPublish(env)
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type harness struct {
	t        *testing.T
	engine   *Engine
	catalog  *catalog.MemoryStore
	ledger   *ledger.MemoryStore
	sessions *state.MemoryStore[Scratch]
	notify   *fakeNotifier
	events   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		catalog:  catalog.NewMemoryStore(),
		ledger:   ledger.NewMemoryStore(),
		sessions: state.NewMemoryStore[Scratch](time.Hour),
		notify:   &fakeNotifier{},
		events:   &recordingPublisher{},
	}
	_, err := catalog.Seed(context.Background(), h.catalog, catalog.Defaults())
	require.NoError(t, err)

	h.engine, err = New(Options{
		Catalog:     h.catalog,
		Ledger:      h.ledger,
		Sessions:    h.sessions,
		Notifier:    h.notify,
		Events:      h.events,
		AdminID:     adminID,
		PaymentCard: card,
		Now:         func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return h
}

func user(id int64) Event {
	return Event{UserID: id, ChatID: id, FullName: "Ali Valiyev"}
}

func text(id int64, s string) Event {
	ev := user(id)
	ev.Text = s
	return ev
}

func photo(id int64, fileID string) Event {
	ev := user(id)
	ev.PhotoFileID = fileID
	return ev
}

func (h *harness) callback(id int64, data string, caption string) Event {
	h.t.Helper()
	cmd, err := command.Parse(data)
	require.NoError(h.t, err, data)
	ev := user(id)
	ev.Callback = &Callback{
		ID:      "cb-" + data,
		Command: cmd,
		Message: MessageRef{ChatID: id, MessageID: 77},
		Text:    caption,
	}
	return ev
}

func (h *harness) session(id int64) Session {
	h.t.Helper()
	s, err := h.sessions.Get(context.Background(), id)
	require.NoError(h.t, err)
	return s
}

func (h *harness) phase(id int64) Phase {
	h.t.Helper()
	p, err := h.engine.Phase(context.Background(), id)
	require.NoError(h.t, err)
	return p
}

// order drives a full buyer flow for product id and quantity qty.
func (h *harness) order(id int64, productID, qty, fileID string) {
	h.t.Helper()
	ctx := context.Background()
	require.NoError(h.t, h.engine.NewOrder(ctx, user(id)))
	require.NoError(h.t, h.engine.HandleText(ctx, text(id, productID)))
	require.NoError(h.t, h.engine.HandleText(ctx, text(id, qty)))
	require.NoError(h.t, h.engine.HandlePhoto(ctx, photo(id, fileID)))
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Catalog: catalog.NewMemoryStore(), Ledger: ledger.NewMemoryStore()})
	require.ErrorContains(t, err, "session")
}

func TestUserLocksReleaseEntries(t *testing.T) {
	var l userLocks
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(7)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Empty(t, l.m)
}

var errBoom = errors.New("boom")
