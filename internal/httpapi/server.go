package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/activity"
	"github.com/ent0n29/taskbot/internal/config"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/protocol"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
)

// Server exposes health, metrics and a read-only operator view of tasks and
// bot activity.
type Server struct {
	cfg      config.Config
	store    tasks.Store
	hub      *activity.Hub
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(cfg config.Config, store tasks.Store, hub *activity.Hub, sessions *session.Manager, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only connect from the same origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/chats/{chatID}/tasks", s.handleListChatTasks)
	r.Get("/v1/events", s.handleListEvents)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"store_mode":       tasks.Mode(s.store),
		"active_workflows": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "task store is not reachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": tasks.Mode(s.store),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseOptionalInt64(w, r.URL.Query().Get("chat_id"), "chat_id")
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"), 50, 500)
	if !ok {
		return
	}
	events := s.hub.Recent(chatID, limit)
	if events == nil {
		events = []activity.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleEventsWS streams activity events. The client may narrow the feed with
// a subscribe message and keep the connection alive with pings.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseOptionalInt64(w, r.URL.Query().Get("chat_id"), "chat_id")
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.ObserveInbound("websocket", "connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	subscriptions := make(chan protocol.ClientSubscribe, 4)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		events, unsubscribe := s.hub.Subscribe(chatID)
		defer func() { unsubscribe() }()

		write := func(msg any) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				return false
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case sub := <-subscriptions:
				unsubscribe()
				events, unsubscribe = s.hub.Subscribe(sub.ChatID)
				if sub.Replay > 0 {
					for _, evt := range s.hub.Recent(sub.ChatID, sub.Replay) {
						if !write(protocol.NewActivityEvent(evt)) {
							return
						}
					}
				}
				if !write(protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "subscribed", Detail: strconv.FormatInt(sub.ChatID, 10)}) {
					return
				}
			case evt, ok := <-events:
				if !ok {
					return
				}
				if !write(protocol.NewActivityEvent(evt)) {
					return
				}
			case msg := <-outbound:
				if !write(msg) {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		var reply any
		parsed, err := protocol.ParseClientMessage(data)
		switch msg := parsed.(type) {
		case protocol.ClientSubscribe:
			select {
			case subscriptions <- msg:
			case <-ctx.Done():
				break readLoop
			}
			continue
		case protocol.ClientPing:
			reply = protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "pong", Detail: strconv.FormatInt(msg.TSMs, 10)}
		default:
			detail := "unsupported message"
			if err != nil {
				detail = err.Error()
			}
			reply = protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_client_message", Detail: detail}
		}
		select {
		case outbound <- reply:
		default:
			// Keep writes single-threaded; drop the reply if the queue is full.
		}
	}

	cancel()
	<-writerDone
	s.metrics.ObserveInbound("websocket", "disconnected")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func parseOptionalInt64(w http.ResponseWriter, raw, name string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func parseLimit(w http.ResponseWriter, raw string, def, max int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}
