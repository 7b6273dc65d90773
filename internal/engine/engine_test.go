package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/presence"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

// fakeConn records every event it receives.
type fakeConn struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *fakeConn) Send(ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) recorded() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Event, len(c.events))
	copy(out, c.events)
	return out
}

// byName returns the recorded events with the given name.
func (c *fakeConn) byName(name string) []events.Event {
	var out []events.Event
	for _, ev := range c.recorded() {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// fakeReleaser counts media destroys per handle.
type fakeReleaser struct {
	mu        sync.Mutex
	destroyed map[string]int
	fail      map[string]bool
}

func newFakeReleaser() *fakeReleaser {
	return &fakeReleaser{destroyed: make(map[string]int), fail: make(map[string]bool)}
}

func (r *fakeReleaser) Destroy(ctx context.Context, publicID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[publicID] {
		return context.DeadlineExceeded
	}
	r.destroyed[publicID]++
	return nil
}

func (r *fakeReleaser) count(publicID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed[publicID]
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness bundles an engine over an in-memory store with two registered
// users and their chat.
type harness struct {
	engine   *Engine
	store    *store.MemoryStore
	releaser *fakeReleaser
	clock    *fakeClock
	alice    *models.User
	bob      *models.User
	chat     *models.Chat
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	releaser := newFakeReleaser()
	clock := newFakeClock()
	dispatcher := events.NewDispatcher(zerolog.Nop())
	registry := presence.NewRegistry()

	eng := New(st, releaser, registry, dispatcher, zerolog.Nop(), WithClock(clock))

	alice := &models.User{Name: "Alice", Email: "alice@example.com"}
	bob := &models.User{Name: "Bob", Email: "bob@example.com"}
	if err := st.CreateUser(ctx, alice); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateUser(ctx, bob); err != nil {
		t.Fatal(err)
	}

	chat, err := st.CreateChat(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	return &harness{
		engine:   eng,
		store:    st,
		releaser: releaser,
		clock:    clock,
		alice:    alice,
		bob:      bob,
		chat:     chat,
	}
}

// connect joins a user with a fresh fake connection, registered with the
// dispatcher like the gateway would.
func (h *harness) connect(t *testing.T, user *models.User) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	h.engine.Dispatcher().Register(conn)
	if err := h.engine.Join(context.Background(), user.ID, conn); err != nil {
		t.Fatal(err)
	}
	return conn
}

// send creates a fresh message from sender to receiver.
func (h *harness) send(t *testing.T, sender, receiver *models.User, content string) *models.Message {
	t.Helper()
	msg, err := h.engine.SendMessage(context.Background(), SendRequest{
		ChatID:     h.chat.ID,
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    content,
	})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}
