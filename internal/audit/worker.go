package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher ships audit events to an external sink (e.g. a Kafka topic).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const defaultInboxSize = 256

// Trail collects audit events on a buffered channel and drains them on a
// background worker: every event is appended to the store, and forwarded to
// the publisher when one is configured. Emitting never blocks domain logic;
// when the inbox is full the event is dropped and counted in the log.
type Trail struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	inbox     chan Event
}

type Option func(*Trail)

func WithPublisher(publisher Publisher) Option {
	return func(t *Trail) {
		t.publisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{
		store:  store,
		logger: slog.Default(),
		inbox:  make(chan Event, defaultInboxSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Emit queues one event. Safe to call on a nil Trail so components can treat
// auditing as optional.
func (t *Trail) Emit(action Action, identity, subject, reason string) {
	if t == nil {
		return
	}
	event := Event{
		Timestamp: time.Now(),
		Action:    action,
		Identity:  identity,
		Subject:   subject,
		Reason:    reason,
	}
	select {
	case t.inbox <- event:
	default:
		t.logger.Warn("audit inbox full, dropping event", "action", action)
	}
}

// Run drains the inbox until the context is cancelled. Store and publisher
// failures are logged and never stop the worker; losing one audit record
// must not take the access-control pipeline down with it.
func (t *Trail) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-t.inbox:
			if err := t.store.Append(ctx, event); err != nil {
				t.logger.Error("append audit event failed", "action", event.Action, "error", err)
			}
			if t.publisher != nil {
				if err := t.publisher.Publish(ctx, event); err != nil {
					t.logger.Error("publish audit event failed", "action", event.Action, "error", err)
				}
			}
		}
	}
}
