package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/taskbot/internal/activity"
	"github.com/ent0n29/taskbot/internal/bot"
	"github.com/ent0n29/taskbot/internal/config"
	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/httpapi"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/reminder"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/taskruntime"
	"github.com/ent0n29/taskbot/internal/tasks"
)

const (
	activityHistory = 256
	janitorInterval = 30 * time.Second
)

// Poller delivers inbound updates until ctx is cancelled.
type Poller interface {
	Run(ctx context.Context, handle func(gateway.Update)) error
}

type BuildResult struct {
	Config   config.Config
	Gateway  gateway.Gateway
	Store    tasks.Store
	Sessions *session.Manager
	Runtime  *taskruntime.Service
	Bot      *bot.Bot
	Scanner  *reminder.Scanner
	API      *httpapi.Server
	Metrics  *observability.Metrics

	poller Poller
	logger zerolog.Logger

	// Cleanup should be called on shutdown to release the store.
	Cleanup func() error
}

// Build connects to Telegram and assembles every component against the
// default Prometheus registry.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	tg, err := gateway.NewTelegram(gateway.TelegramConfig{
		Token:         cfg.BotToken,
		Debug:         cfg.BotDebug,
		UpdateTimeout: cfg.BotUpdateTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram gateway init failed: %w", err)
	}
	return Assemble(ctx, cfg, tg, tg, prometheus.DefaultRegisterer, logger)
}

// Assemble wires the components around an existing gateway and update source.
func Assemble(ctx context.Context, cfg config.Config, gw gateway.Gateway, poller Poller, reg prometheus.Registerer, logger zerolog.Logger) (*BuildResult, error) {
	if gw == nil || poller == nil {
		return nil, errors.New("app: gateway and poller are required")
	}

	store, err := tasks.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("task store init failed: %w", err)
	}

	metrics := observability.NewMetricsWith(cfg.MetricsNamespace, reg)
	hub := activity.NewHub(activityHistory)
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	resolver := policy.NewResolver(gw, sessions, cfg.GatewayCallTimeout, logger.With().Str("component", "policy").Logger())
	runtime := taskruntime.New(store, hub, metrics, logger)
	loc := cfg.Location()

	b, err := bot.New(bot.Config{
		HandlerTimeout: 3 * cfg.GatewayCallTimeout,
		Location:       loc,
		TitleCacheTTL:  cfg.ChatTitleCacheTTL,
	}, bot.Deps{
		Gateway:  gw,
		Store:    store,
		Runtime:  runtime,
		Sessions: sessions,
		Resolver: resolver,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	scanner := reminder.New(reminder.Config{
		Interval:       cfg.ScanInterval,
		UpcomingWindow: cfg.UpcomingWindow,
		SendTimeout:    cfg.GatewayCallTimeout,
		Location:       loc,
	}, store, gw, hub, metrics, logger)

	api := httpapi.New(cfg, store, hub, sessions, metrics, logger)

	logger.Info().
		Str("store", runtime.StoreMode()).
		Str("timezone", loc.String()).
		Str("bot", gw.Me().Username).
		Msg("components assembled")

	return &BuildResult{
		Config:   cfg,
		Gateway:  gw,
		Store:    store,
		Sessions: sessions,
		Runtime:  runtime,
		Bot:      b,
		Scanner:  scanner,
		API:      api,
		Metrics:  metrics,
		poller:   poller,
		logger:   logger,
		Cleanup:  store.Close,
	}, nil
}

// Run serves updates, deadline scans and the HTTP API until ctx is cancelled
// or one of them fails. In-flight updates are drained before it returns.
func (r *BuildResult) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	r.Sessions.StartJanitor(ctx, janitorInterval)

	g.Go(func() error {
		err := r.poller.Run(ctx, func(upd gateway.Update) {
			r.Bot.Enqueue(ctx, upd)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("update polling: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return r.Scanner.Run(ctx)
	})

	httpServer := &http.Server{
		Addr:              r.Config.BindAddr,
		Handler:           r.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		r.logger.Info().Str("addr", r.Config.BindAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.Config.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn().Err(err).Msg("graceful http shutdown failed")
			_ = httpServer.Close()
		}
		return nil
	})

	err := g.Wait()
	r.Bot.Wait()
	return err
}
