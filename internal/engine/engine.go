// Package engine implements the message lifecycle and presence
// coordination core: delivery-state transitions, edit/delete/undo,
// chat visibility, and the events each operation emits.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/media"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/presence"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

var (
	// ErrUnauthorized means the acting user attempted a sender-only
	// mutation on someone else's message.
	ErrUnauthorized = errors.New("engine: not the message sender")

	// ErrForbidden means the acting user is not a participant of the chat.
	ErrForbidden = errors.New("engine: not a chat participant")

	// ErrNotFound mirrors the store sentinel for absent records.
	ErrNotFound = store.ErrNotFound

	// errUnchanged aborts an atomic update without writing. It never
	// escapes the engine.
	errUnchanged = errors.New("engine: record unchanged")
)

// Clock abstracts wall time so tests can control it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DefaultStoreTimeout bounds every durable-store call made by the engine.
const DefaultStoreTimeout = 5 * time.Second

// Engine coordinates the presence registry, the durable store, the media
// store and the event dispatcher. All methods are safe for concurrent use;
// per-record consistency comes from the store's atomic updates.
type Engine struct {
	store        store.Store
	media        media.Releaser
	presence     *presence.Registry
	dispatcher   *events.Dispatcher
	logger       zerolog.Logger
	clock        Clock
	storeTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithStoreTimeout bounds durable-store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) { e.storeTimeout = d }
}

// New creates an Engine.
func New(st store.Store, rel media.Releaser, reg *presence.Registry, d *events.Dispatcher, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		media:        rel,
		presence:     reg,
		dispatcher:   d,
		logger:       logger,
		clock:        systemClock{},
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Presence exposes the registry for the gateway and handlers.
func (e *Engine) Presence() *presence.Registry { return e.presence }

// Dispatcher exposes the dispatcher for the gateway.
func (e *Engine) Dispatcher() *events.Dispatcher { return e.dispatcher }

// storeCtx bounds a store or media call so no operation blocks forever.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}
