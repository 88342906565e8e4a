// Package bot turns inbound messenger updates into task workflows.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/maypok86/otter"
	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/taskruntime"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

type Config struct {
	// HandlerTimeout bounds the store and gateway work done for one update.
	HandlerTimeout time.Duration
	Location       *time.Location
	TitleCacheTTL  time.Duration
	TitleCacheSize int
}

type Deps struct {
	Gateway  gateway.Gateway
	Store    tasks.Store
	Runtime  *taskruntime.Service
	Sessions *session.Manager
	Resolver *policy.Resolver
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

type Bot struct {
	cfg      Config
	gw       gateway.Gateway
	store    tasks.Store
	runtime  *taskruntime.Service
	sessions *session.Manager
	auth     *policy.Resolver
	metrics  *observability.Metrics
	logger   zerolog.Logger
	titles   otter.Cache[int64, string]
	format   view.Formatter
	now      func() time.Time

	routes   []route
	dispatch *dispatcher
}

func New(cfg Config, deps Deps) (*Bot, error) {
	if deps.Gateway == nil || deps.Store == nil || deps.Runtime == nil || deps.Sessions == nil || deps.Resolver == nil {
		return nil, errors.New("bot: gateway, store, runtime, sessions and resolver are required")
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TitleCacheTTL <= 0 {
		cfg.TitleCacheTTL = 10 * time.Minute
	}
	if cfg.TitleCacheSize <= 0 {
		cfg.TitleCacheSize = 1024
	}

	titles, err := otter.MustBuilder[int64, string](cfg.TitleCacheSize).WithTTL(cfg.TitleCacheTTL).Build()
	if err != nil {
		return nil, fmt.Errorf("bot: build chat title cache: %w", err)
	}

	b := &Bot{
		cfg:      cfg,
		gw:       deps.Gateway,
		store:    deps.Store,
		runtime:  deps.Runtime,
		sessions: deps.Sessions,
		auth:     deps.Resolver,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "bot").Logger(),
		titles:   titles,
		format:   view.NewFormatter(cfg.Location),
		now:      time.Now,
	}
	b.routes = b.routeTable()
	b.dispatch = newDispatcher(b.Handle)
	deps.Sessions.SetExpireHook(b.notifyExpired)
	return b, nil
}

// Enqueue hands an update to the per-user dispatcher and returns immediately.
func (b *Bot) Enqueue(ctx context.Context, upd gateway.Update) {
	b.dispatch.enqueue(ctx, upd)
}

// Wait blocks until every queued update has been handled.
func (b *Bot) Wait() {
	b.dispatch.wait()
}

// Handle runs one update through the route table synchronously.
func (b *Bot) Handle(ctx context.Context, upd gateway.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()

	ev := b.newEvent(upd)
	log := b.logger.With().Int("update_id", upd.ID).Int64("user_id", ev.userID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("update handler panicked")
		}
	}()

	for _, r := range b.routes {
		if !r.match(ev) {
			continue
		}
		b.metrics.ObserveInbound(ev.kind(), r.name)
		if err := r.handle(ctx, ev); err != nil {
			log.Error().Err(err).Str("route", r.name).Msg("update handling failed")
			b.fail(ctx, ev)
		}
		b.metrics.SetActiveSessions(b.sessions.ActiveCount())
		return
	}
	b.metrics.ObserveInbound(ev.kind(), "unmatched")
}

// notifyExpired tells a user that the janitor dropped their unfinished workflow.
func (b *Bot) notifyExpired(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandlerTimeout)
	defer cancel()
	b.metrics.ObserveTransition(string(s.Workflow), "expired")
	b.say(ctx, s.UserID, "⌛ Your unfinished action has expired. Start again from the menu.")
}
