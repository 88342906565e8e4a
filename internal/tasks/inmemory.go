package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

type userKey struct {
	userID int64
	chatID int64
}

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	users  map[userKey]User
	tasks  map[int64]Task
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[userKey]User),
		tasks: make(map[int64]Task),
	}
}

func (s *InMemoryStore) UpsertUser(_ context.Context, obs UserObservation) (User, error) {
	seen := obs.SeenAt
	if seen.IsZero() {
		seen = time.Now().UTC()
	}
	key := userKey{userID: obs.UserID, chatID: obs.ChatID}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[key]
	if !ok {
		user = User{
			UserID:    obs.UserID,
			ChatID:    obs.ChatID,
			Status:    MemberStatusMember,
			FirstSeen: seen,
		}
	}
	if obs.Username != "" {
		user.Username = obs.Username
	}
	if obs.FullName != "" {
		user.FullName = obs.FullName
	}
	if obs.Status != "" {
		user.Status = obs.Status
	}
	user.LastSeen = seen
	s.users[key] = user
	return user, nil
}

func (s *InMemoryStore) GetUser(_ context.Context, userID, chatID int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userKey{userID: userID, chatID: chatID}]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *InMemoryStore) ListUsersByChat(_ context.Context, chatID int64) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for key, user := range s.users {
		if key.chatID == chatID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *InMemoryStore) ListChatIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var out []int64
	for key := range s.users {
		if _, ok := seen[key.chatID]; ok {
			continue
		}
		seen[key.chatID] = struct{}{}
		out = append(out, key.chatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) GetTask(_ context.Context, taskID int64, withUser bool) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if withUser {
		s.attachUserLocked(&task)
	}
	return task, nil
}

func (s *InMemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, task := range s.tasks {
		if !filter.matches(task) {
			continue
		}
		if filter.WithUser {
			s.attachUserLocked(&task)
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ChatID != b.ChatID {
			return a.ChatID < b.ChatID
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) InsertTask(_ context.Context, in NewTask) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userKey{userID: in.UserID, chatID: in.ChatID}]; !ok {
		return Task{}, ErrUserNotFound
	}
	s.nextID++
	task := Task{
		ID:          s.nextID,
		UserID:      in.UserID,
		ChatID:      in.ChatID,
		Start:       in.Start,
		End:         in.End,
		Description: in.Description,
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *InMemoryStore) UpdateTask(_ context.Context, taskID int64, patch TaskPatch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.End != nil {
		task.End = *patch.End
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	s.tasks[taskID] = task
	return task, nil
}

func (s *InMemoryStore) DeleteTask(_ context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) attachUserLocked(task *Task) {
	if user, ok := s.users[userKey{userID: task.UserID, chatID: task.ChatID}]; ok {
		u := user
		task.User = &u
	}
}
