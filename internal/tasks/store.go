package tasks

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrTaskNotFound = errors.New("task not found in store")
	ErrUserNotFound = errors.New("user not found in store")
)

// Store persists chat members and their tasks.
type Store interface {
	UpsertUser(ctx context.Context, obs UserObservation) (User, error)
	GetUser(ctx context.Context, userID, chatID int64) (User, error)
	ListUsersByChat(ctx context.Context, chatID int64) ([]User, error)
	// ListChatIDs returns every chat with at least one observed member.
	ListChatIDs(ctx context.Context) ([]int64, error)

	GetTask(ctx context.Context, taskID int64, withUser bool) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	InsertTask(ctx context.Context, task NewTask) (Task, error)
	UpdateTask(ctx context.Context, taskID int64, patch TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, taskID int64) error

	Ping(ctx context.Context) error
	Close() error
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
