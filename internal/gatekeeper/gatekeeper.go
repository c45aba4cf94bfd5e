// Package gatekeeper evicts members who joined the monitored group without
// having completed verification.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"gatebot/internal/audit"
	"gatebot/internal/directory"
	"gatebot/internal/platform/metrics"
	"gatebot/internal/telegram"
)

// Store is the subset of the directory contract the gatekeeper needs.
type Store interface {
	FindByIdentity(ctx context.Context, identity string) (directory.Record, error)
}

// Outcome is the result of evaluating one joined member. A batch always
// produces one outcome per member; a failure on one never suppresses the
// evaluation of its siblings.
type Outcome struct {
	Member  telegram.User
	Evicted bool
	Err     error
}

type Gatekeeper struct {
	store  Store
	client telegram.Client
	// unban lifts the ban right after the kick so the evicted member can
	// rejoin once verified; some deployments prefer kick-only.
	unban bool

	trail   *audit.Trail
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Gatekeeper)

func WithUnban(unban bool) Option {
	return func(g *Gatekeeper) {
		g.unban = unban
	}
}

func WithAuditTrail(trail *audit.Trail) Option {
	return func(g *Gatekeeper) {
		g.trail = trail
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gatekeeper) {
		g.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatekeeper) {
		g.logger = logger
	}
}

func New(store Store, client telegram.Client, opts ...Option) (*Gatekeeper, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	if client == nil {
		return nil, errors.New("platform client is required")
	}
	g := &Gatekeeper{
		store:  store,
		client: client,
		unban:  true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Handle satisfies the router contract: it evaluates the whole batch and
// folds per-member failures into one joined error for logging.
func (g *Gatekeeper) Handle(ctx context.Context, event telegram.Event) error {
	outcomes := g.EvaluateJoin(ctx, event)
	var errs []error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("member %d: %w", outcome.Member.ID, outcome.Err))
		}
	}
	return errors.Join(errs...)
}

// EvaluateJoin checks every joined member concurrently and independently:
// goroutines only report through their outcome slot, so a platform failure
// on one member cannot short-circuit the rest of the batch.
func (g *Gatekeeper) EvaluateJoin(ctx context.Context, event telegram.Event) []Outcome {
	outcomes := make([]Outcome, len(event.Joined))

	var group errgroup.Group
	for i, member := range event.Joined {
		group.Go(func() error {
			outcomes[i] = g.evaluateMember(ctx, event.Chat.ID, member)
			return nil
		})
	}
	_ = group.Wait()

	return outcomes
}

func (g *Gatekeeper) evaluateMember(ctx context.Context, chatID int64, member telegram.User) Outcome {
	outcome := Outcome{Member: member}
	identity := strconv.FormatInt(member.ID, 10)

	_, err := g.store.FindByIdentity(ctx, identity)
	switch {
	case err == nil:
		// Legitimate member; no platform calls at all.
		return outcome
	case errors.Is(err, directory.ErrNotFound):
		// Unverified; evict.
	default:
		g.metrics.IncStoreErrors()
		outcome.Err = fmt.Errorf("lookup identity: %w", err)
		return outcome
	}

	if err := g.client.KickMember(ctx, chatID, member.ID); err != nil {
		g.metrics.IncEvictionFailures()
		g.trail.Emit(audit.ActionEvictionFailed, identity, "", err.Error())
		outcome.Err = fmt.Errorf("kick: %w", err)
		return outcome
	}

	if g.unban {
		if err := g.client.UnbanMember(ctx, chatID, member.ID); err != nil {
			// The eviction itself succeeded; the member just cannot rejoin
			// until an administrator lifts the ban.
			g.logger.Warn("unban after eviction failed",
				"identity", identity, "error", err)
		}
	}

	outcome.Evicted = true
	g.metrics.IncEvictions()
	g.trail.Emit(audit.ActionMemberEvicted, identity, "", "joined without verification")
	g.logger.Info("evicted unverified member", "identity", identity, "chat", chatID)
	return outcome
}
