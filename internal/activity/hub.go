// Package activity fans domain events out to in-process subscribers such as
// the operator websocket feed.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTaskCreated        EventType = "task_created"
	EventTaskCompleted      EventType = "task_completed"
	EventTaskUpdated        EventType = "task_updated"
	EventTaskDeleted        EventType = "task_deleted"
	EventNotificationSent   EventType = "notification_sent"
	EventNotificationFailed EventType = "notification_failed"
	EventScanFailed         EventType = "scan_failed"
)

type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	ChatID int64     `json:"chat_id,omitempty"`
	TaskID int64     `json:"task_id,omitempty"`
	UserID int64     `json:"user_id,omitempty"`
	// ActorID is the user who caused the event, zero for the scheduler.
	ActorID int64     `json:"actor_id,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Hub keeps a bounded history and broadcasts to subscribers. Slow
// subscribers drop events rather than block publishers.
type Hub struct {
	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]subscriber
	history     []Event
	historyMax  int
	now         func() time.Time
}

type subscriber struct {
	ch     chan Event
	chatID int64
}

func NewHub(historyMax int) *Hub {
	if historyMax <= 0 {
		historyMax = 200
	}
	return &Hub{
		subscribers: make(map[int]subscriber),
		historyMax:  historyMax,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers a listener. chatID 0 receives every event.
func (h *Hub) Subscribe(chatID int64) (<-chan Event, func()) {
	if h == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Event, 256)
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	h.subscribers[id] = subscriber{ch: ch, chatID: chatID}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub.ch)
		}
	}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.At.IsZero() {
		evt.At = h.now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, evt)
	if len(h.history) > h.historyMax {
		trimFrom := len(h.history) - h.historyMax
		h.history = append([]Event(nil), h.history[trimFrom:]...)
	}
	for _, sub := range h.subscribers {
		if sub.chatID != 0 && sub.chatID != evt.ChatID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Recent returns up to limit most recent events, oldest first. chatID 0 means all chats.
func (h *Hub) Recent(chatID int64, limit int) []Event {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for i := len(h.history) - 1; i >= 0; i-- {
		evt := h.history[i]
		if chatID != 0 && evt.ChatID != chatID {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
