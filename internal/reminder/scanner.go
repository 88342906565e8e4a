// Package reminder periodically scans for overdue and upcoming tasks and
// nags their owners in private chat.
package reminder

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/taskbot/internal/activity"
	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

type Config struct {
	Interval       time.Duration
	UpcomingWindow time.Duration
	// SendTimeout bounds each notification; a slow recipient never stalls the cycle.
	SendTimeout time.Duration
	Location    *time.Location
}

// Report summarizes one scan cycle.
type Report struct {
	CycleID    string
	Kind       view.NoticeKind
	Candidates int
	Sent       int
	Failed     int
	Skipped    int
}

type Scanner struct {
	cfg     Config
	store   tasks.Store
	gw      gateway.Gateway
	hub     *activity.Hub
	metrics *observability.Metrics
	logger  zerolog.Logger
	format  view.Formatter
	now     func() time.Time
}

func New(cfg Config, store tasks.Store, gw gateway.Gateway, hub *activity.Hub, metrics *observability.Metrics, logger zerolog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Scanner{
		cfg:     cfg,
		store:   store,
		gw:      gw,
		hub:     hub,
		metrics: metrics,
		logger:  logger.With().Str("component", "reminder").Logger(),
		format:  view.NewFormatter(cfg.Location),
		now:     time.Now,
	}
}

// Run drives the overdue and upcoming loops until ctx is cancelled. Each
// loop scans immediately, then once per interval. A failed cycle is logged
// and the loop keeps going.
func (s *Scanner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range []view.NoticeKind{view.NoticeOverdue, view.NoticeUpcoming} {
		kind := kind
		g.Go(func() error {
			s.loop(ctx, kind)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scanner) loop(ctx context.Context, kind view.NoticeKind) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.cycle(ctx, kind)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) cycle(ctx context.Context, kind view.NoticeKind) {
	started := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
			s.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("scan", string(kind)).Msg("deadline scan panicked")
		}
		s.metrics.ObserveScan(string(kind), time.Since(started), err)
		if err != nil {
			s.hub.Publish(activity.Event{Type: activity.EventScanFailed, Kind: string(kind), Detail: err.Error()})
		}
	}()

	var report Report
	report, err = s.ScanOnce(ctx, kind)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Str("scan", string(kind)).Str("cycle_id", report.CycleID).Msg("deadline scan failed")
		}
		return
	}
	if report.Candidates > 0 {
		s.logger.Info().
			Str("scan", string(kind)).
			Str("cycle_id", report.CycleID).
			Int("candidates", report.Candidates).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Msg("deadline scan finished")
	}
}

// ScanOnce runs a single cycle of the given kind. Only listing the tasks can
// fail the cycle; per-task delivery failures are counted in the report.
func (s *Scanner) ScanOnce(ctx context.Context, kind view.NoticeKind) (Report, error) {
	report := Report{CycleID: uuid.NewString(), Kind: kind}
	now := s.now()

	filter := tasks.TaskFilter{Completed: tasks.Bool(false), WithUser: true}
	switch kind {
	case view.NoticeOverdue:
		filter.DueBefore = now
	case view.NoticeUpcoming:
		filter.DueFrom = now
		filter.DueUntil = now.Add(s.cfg.UpcomingWindow)
	default:
		return report, fmt.Errorf("unknown scan kind %q", kind)
	}

	list, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return report, fmt.Errorf("list %s tasks: %w", kind, err)
	}
	report.Candidates = len(list)

	for _, task := range list {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if task.User == nil {
			report.Skipped++
			s.logger.Warn().Int64("task_id", task.ID).Int64("user_id", task.UserID).Msg("task owner unknown, skipping notice")
			continue
		}
		if err := s.notify(ctx, kind, task); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Int64("task_id", task.ID).Int64("user_id", task.UserID).Str("scan", string(kind)).Msg("deadline notice failed")
			continue
		}
		report.Sent++
	}
	return report, nil
}

func (s *Scanner) notify(ctx context.Context, kind view.NoticeKind, task tasks.Task) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notice for task %d panicked: %v", task.ID, r)
		}
		s.metrics.ObserveNotification(string(kind), err)
		evt := activity.Event{
			Type:   activity.EventNotificationSent,
			ChatID: task.ChatID,
			TaskID: task.ID,
			UserID: task.UserID,
			Kind:   string(kind),
		}
		if err != nil {
			evt.Type = activity.EventNotificationFailed
			evt.Detail = err.Error()
		}
		s.hub.Publish(evt)
	}()

	text, kb := s.format.DeadlineNotice(kind, task)
	_, err = s.gw.Send(ctx, gateway.OutgoingMessage{
		ChatID:    task.UserID,
		Text:      text,
		ParseMode: gateway.ParseModeHTML,
		Inline:    kb,
	})
	if err != nil {
		s.metrics.ObserveGatewayError("send")
	}
	return err
}
