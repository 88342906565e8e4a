package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/taskbot/internal/tasks"
)

type taskResponse struct {
	ID          int64     `json:"id"`
	ChatID      int64     `json:"chat_id"`
	UserID      int64     `json:"user_id"`
	Assignee    string    `json:"assignee,omitempty"`
	Username    string    `json:"username,omitempty"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Completed   bool      `json:"completed"`
	Overdue     bool      `json:"overdue"`
}

func toTaskResponse(t tasks.Task, now time.Time) taskResponse {
	out := taskResponse{
		ID:          t.ID,
		ChatID:      t.ChatID,
		UserID:      t.UserID,
		Description: t.Description,
		StartAt:     t.Start,
		EndAt:       t.End,
		Completed:   t.Completed,
		Overdue:     !t.Completed && t.End.Before(now),
	}
	if t.User != nil {
		out.Assignee = t.User.DisplayName()
		out.Username = t.User.Username
	}
	return out
}

// handleListChatTasks lists a chat's tasks. status narrows the list to
// open, completed or overdue tasks.
func (s *Server) handleListChatTasks(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || chatID == 0 {
		respondError(w, http.StatusBadRequest, "invalid_chat_id", "chat id must be a non-zero integer")
		return
	}
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"), 100, 500)
	if !ok {
		return
	}

	now := s.now()
	filter := tasks.TaskFilter{ChatID: chatID, WithUser: true, Limit: limit}
	switch status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))); status {
	case "", "all":
	case "open":
		filter.Completed = tasks.Bool(false)
	case "completed":
		filter.Completed = tasks.Bool(true)
	case "overdue":
		filter.Completed = tasks.Bool(false)
		filter.DueBefore = now
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be one of all|open|completed|overdue")
		return
	}
	if userID, ok := parseOptionalInt64(w, r.URL.Query().Get("user_id"), "user_id"); ok {
		filter.UserID = userID
	} else {
		return
	}

	list, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("list tasks failed")
		respondError(w, http.StatusInternalServerError, "store_error", "could not list tasks")
		return
	}
	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTaskResponse(t, now))
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": out})
}
