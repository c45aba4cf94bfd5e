// Package router classifies each inbound event into exactly one route and
// dispatches it. It has no side effects of its own; downstream failures are
// logged here and never allowed to stop event processing.
package router

import (
	"context"
	"log/slog"
	"sync"

	"gatebot/internal/platform/metrics"
	"gatebot/internal/telegram"
)

// Route is the classification of one inbound event.
type Route string

const (
	RouteAdminCommand    Route = "admin_command"
	RoutePrivateDialogue Route = "private_dialogue"
	RouteGroupJoin       Route = "group_join"
	RouteIgnored         Route = "ignored"
)

// Handler processes events for one route.
type Handler interface {
	Handle(ctx context.Context, event telegram.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event telegram.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event telegram.Event) error {
	return f(ctx, event)
}

type Router struct {
	groupID  int64
	admins   map[int64]struct{}
	handlers map[Route]Handler

	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New creates a router for the monitored group and administrator allow-list.
func New(groupID int64, adminIDs []int64, opts ...Option) *Router {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	r := &Router{
		groupID:  groupID,
		admins:   admins,
		handlers: make(map[Route]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the handler for a route.
func (r *Router) Register(route Route, handler Handler) {
	r.handlers[route] = handler
}

// Classify assigns exactly one route per event, in fixed priority order:
// administrator command, private dialogue, monitored-group join, ignored.
// Pure, so routing is testable without a live transport.
func (r *Router) Classify(event telegram.Event) Route {
	if event.IsCommand() {
		if _, ok := r.admins[event.Sender.ID]; ok {
			return RouteAdminCommand
		}
	}
	if event.Chat.Type == telegram.ChatPrivate {
		return RoutePrivateDialogue
	}
	if event.Chat.ID == r.groupID && len(event.Joined) > 0 {
		return RouteGroupJoin
	}
	return RouteIgnored
}

// Dispatch routes one event onto its own goroutine. Handler errors and
// panics are logged; they never terminate processing of other events.
func (r *Router) Dispatch(ctx context.Context, event telegram.Event) {
	route := r.Classify(event)
	r.metrics.IncRouted(string(route))

	if route == RouteIgnored {
		return
	}
	handler, ok := r.handlers[route]
	if !ok {
		r.logger.Warn("no handler registered for route, skipping event", "route", route)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("handler panicked", "route", route, "panic", rec)
			}
		}()
		if err := handler.Handle(ctx, event); err != nil {
			r.logger.Error("handler failed", "route", route, "error", err)
		}
	}()
}

// Wait blocks until all in-flight handlers finish; used on shutdown.
func (r *Router) Wait() {
	r.wg.Wait()
}
