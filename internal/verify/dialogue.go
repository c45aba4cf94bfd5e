package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"gatebot/internal/audit"
	"gatebot/internal/directory"
	"gatebot/internal/lockout"
	"gatebot/internal/platform/metrics"
	"gatebot/internal/telegram"
)

// State is the per-candidate conversation position.
type State int

const (
	// StateStart is the initial state; the next message triggers either the
	// already-verified short-circuit or the verification prompt.
	StateStart State = iota
	// StateAwaitingName means the candidate was prompted and the next text
	// message is treated as identifying input.
	StateAwaitingName
)

type sessionKey struct {
	chatID   int64
	senderID int64
}

// session state is process-lifetime only: a restart drops it and the
// candidate is simply re-prompted. Each session carries its own lock so two
// in-flight messages from the same candidate serialize without contending
// with other candidates.
type session struct {
	mu    sync.Mutex
	state State
}

// Engine drives the per-candidate verification conversation.
type Engine struct {
	store      directory.Store
	client     telegram.Client
	matcher    Matcher
	inviteLink string

	lockouts *lockout.Service
	trail    *audit.Trail
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

type Option func(*Engine)

func WithLockouts(lockouts *lockout.Service) Option {
	return func(e *Engine) {
		e.lockouts = lockouts
	}
}

func WithAuditTrail(trail *audit.Trail) Option {
	return func(e *Engine) {
		e.trail = trail
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(store directory.Store, client telegram.Client, matcher Matcher, inviteLink string, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	if client == nil {
		return nil, errors.New("platform client is required")
	}
	e := &Engine{
		store:      store,
		client:     client,
		matcher:    matcher,
		inviteLink: inviteLink,
		logger:     slog.Default(),
		sessions:   make(map[sessionKey]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Handle processes one private message. Messages from the same candidate
// are serialized on the session lock; different candidates proceed
// concurrently.
func (e *Engine) Handle(ctx context.Context, event telegram.Event) error {
	s := e.session(sessionKey{chatID: event.Chat.ID, senderID: event.Sender.ID})
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAwaitingName:
		return e.handleAwaitingName(ctx, event, s)
	default:
		return e.handleStart(ctx, event, s)
	}
}

func (e *Engine) session(key sessionKey) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		s = &session{}
		e.sessions[key] = s
	}
	return s
}

func (e *Engine) handleStart(ctx context.Context, event telegram.Event, s *session) error {
	identity := identityOf(event.Sender)

	rec, err := e.store.FindByIdentity(ctx, identity)
	switch {
	case err == nil:
		// Already verified in a previous run or conversation; binding
		// survives restarts even though the session does not.
		return e.reply(ctx, event, alreadyVerifiedMessage(rec.FullName, e.inviteLink))
	case errors.Is(err, directory.ErrNotFound):
		// Fall through to the prompt.
	default:
		e.metrics.IncStoreErrors()
		e.replyBestEffort(ctx, event, msgTechnical)
		return fmt.Errorf("lookup by identity %s: %w", identity, err)
	}

	if err := e.reply(ctx, event, promptMessage(e.matcher.RequireSuffix)); err != nil {
		// The prompt never went out, so keep the session in Start; the
		// candidate's next message retries the whole exchange.
		return err
	}
	s.state = StateAwaitingName
	return nil
}

func (e *Engine) handleAwaitingName(ctx context.Context, event telegram.Event, s *session) error {
	if !event.HasText {
		return e.reply(ctx, event, formatMessage(e.matcher.RequireSuffix))
	}

	name, suffix, ok := e.matcher.ParseInput(event.Text)
	if !ok {
		return e.reply(ctx, event, formatMessage(e.matcher.RequireSuffix))
	}

	identity := identityOf(event.Sender)

	if e.lockouts != nil && !e.lockouts.Allowed(ctx, identity) {
		return e.reply(ctx, event, msgLocked)
	}

	rec, err := e.store.FindByName(ctx, name)
	found := err == nil
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		e.metrics.IncStoreErrors()
		e.replyBestEffort(ctx, event, msgTechnical)
		return fmt.Errorf("lookup by name %q: %w", name, err)
	}

	switch e.matcher.Evaluate(rec, found, suffix) {
	case OutcomeNotFound:
		return e.reply(ctx, event, msgNotFound)

	case OutcomeAlreadyBound:
		e.metrics.IncBindingsRejected()
		e.trail.Emit(audit.ActionBindingRejected, identity, rec.FullName, "record already bound")
		s.state = StateStart
		return e.reply(ctx, event, msgAlreadyBound)

	case OutcomeUnverifiable:
		return e.reply(ctx, event, msgUnverifiable)

	case OutcomeSuffixMismatch:
		// Same outward reply as not-found: a partial match must not be
		// observable.
		if e.lockouts != nil && e.lockouts.Failure(ctx, identity) {
			e.metrics.IncLockouts()
			return e.reply(ctx, event, msgLocked)
		}
		return e.reply(ctx, event, msgNotFound)

	case OutcomeVerified:
		return e.bind(ctx, event, s, rec, identity)
	}
	return nil
}

func (e *Engine) bind(ctx context.Context, event telegram.Event, s *session, rec directory.Record, identity string) error {
	err := e.store.Bind(ctx, rec.FullName, identity)
	switch {
	case err == nil:
		// Bound.
	case errors.Is(err, directory.ErrAlreadyBound):
		// Lost the race to another identity between lookup and bind; the
		// existing binding stands.
		e.metrics.IncBindingsRejected()
		e.trail.Emit(audit.ActionBindingRejected, identity, rec.FullName, "lost bind race")
		s.state = StateStart
		return e.reply(ctx, event, msgAlreadyBound)
	default:
		e.metrics.IncStoreErrors()
		e.replyBestEffort(ctx, event, msgTechnical)
		return fmt.Errorf("bind %q to %s: %w", rec.FullName, identity, err)
	}

	if e.lockouts != nil {
		e.lockouts.Success(ctx, identity)
	}
	e.metrics.IncVerifications()
	e.trail.Emit(audit.ActionCandidateVerified, identity, rec.FullName, "")
	e.logger.Info("candidate verified", "identity", identity, "name", rec.FullName)

	s.state = StateStart
	return e.reply(ctx, event, welcomeMessage(e.inviteLink))
}

func (e *Engine) reply(ctx context.Context, event telegram.Event, text string) error {
	if err := e.client.SendMessage(ctx, event.Chat.ID, text); err != nil {
		return fmt.Errorf("reply in chat %d: %w", event.Chat.ID, err)
	}
	return nil
}

// replyBestEffort is used on error paths where a store failure is the real
// problem; a failed send on top of it is only worth a log line.
func (e *Engine) replyBestEffort(ctx context.Context, event telegram.Event, text string) {
	if err := e.reply(ctx, event, text); err != nil {
		e.logger.Error("send reply failed", "chat", event.Chat.ID, "error", err)
	}
}

func identityOf(user telegram.User) string {
	return strconv.FormatInt(user.ID, 10)
}
