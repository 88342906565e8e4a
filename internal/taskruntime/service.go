// Package taskruntime applies task mutations and fans out their side effects
// (activity events and metrics). Permission checks happen in the caller.
package taskruntime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/activity"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/tasks"
)

var (
	ErrInvalidBounds    = errors.New("task end must be after its start")
	ErrEmptyDescription = errors.New("task description is empty")
)

type Service struct {
	store   tasks.Store
	hub     *activity.Hub
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func New(store tasks.Store, hub *activity.Hub, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	return &Service{store: store, hub: hub, metrics: metrics, logger: logger}
}

func (s *Service) StoreMode() string {
	return tasks.Mode(s.store)
}

// CreateTask persists a fully collected draft. The returned task carries its owner.
func (s *Service) CreateTask(ctx context.Context, actorID int64, in tasks.NewTask) (tasks.Task, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return tasks.Task{}, ErrEmptyDescription
	}
	if !in.End.After(in.Start) {
		return tasks.Task{}, ErrInvalidBounds
	}
	task, err := s.store.InsertTask(ctx, in)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("create task: %w", err)
	}
	if full, err := s.store.GetTask(ctx, task.ID, true); err == nil {
		task = full
	}
	s.record(activity.EventTaskCreated, actorID, task, "")
	return task, nil
}

func (s *Service) CompleteTask(ctx context.Context, actorID, taskID int64) (tasks.Task, error) {
	task, err := s.store.UpdateTask(ctx, taskID, tasks.TaskPatch{Completed: tasks.Bool(true)})
	if err != nil {
		return tasks.Task{}, fmt.Errorf("complete task %d: %w", taskID, err)
	}
	s.record(activity.EventTaskCompleted, actorID, task, "")
	return task, nil
}

func (s *Service) UpdateDescription(ctx context.Context, actorID, taskID int64, description string) (tasks.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return tasks.Task{}, ErrEmptyDescription
	}
	task, err := s.store.UpdateTask(ctx, taskID, tasks.TaskPatch{Description: &description})
	if err != nil {
		return tasks.Task{}, fmt.Errorf("update task %d: %w", taskID, err)
	}
	s.record(activity.EventTaskUpdated, actorID, task, "description")
	return task, nil
}

// UpdateEnd moves the deadline. The new end must stay after the stored start.
func (s *Service) UpdateEnd(ctx context.Context, actorID, taskID int64, end time.Time) (tasks.Task, error) {
	current, err := s.store.GetTask(ctx, taskID, false)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("load task %d: %w", taskID, err)
	}
	if !end.After(current.Start) {
		return tasks.Task{}, ErrInvalidBounds
	}
	task, err := s.store.UpdateTask(ctx, taskID, tasks.TaskPatch{End: &end})
	if err != nil {
		return tasks.Task{}, fmt.Errorf("update task %d: %w", taskID, err)
	}
	s.record(activity.EventTaskUpdated, actorID, task, "end")
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, actorID int64, task tasks.Task) error {
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task %d: %w", task.ID, err)
	}
	s.record(activity.EventTaskDeleted, actorID, task, "")
	return nil
}

func (s *Service) record(typ activity.EventType, actorID int64, task tasks.Task, detail string) {
	s.metrics.ObserveTaskEvent(string(typ))
	s.hub.Publish(activity.Event{
		Type:    typ,
		ChatID:  task.ChatID,
		TaskID:  task.ID,
		UserID:  task.UserID,
		ActorID: actorID,
		Detail:  detail,
	})
	s.logger.Info().
		Str("event", string(typ)).
		Int64("task_id", task.ID).
		Int64("chat_id", task.ChatID).
		Int64("actor_id", actorID).
		Msg("task changed")
}
