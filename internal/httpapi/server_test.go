package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/activity"
	"github.com/ent0n29/taskbot/internal/config"
	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/protocol"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
)

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, store tasks.Store) (*httptest.Server, *activity.Hub) {
	t.Helper()
	hub := activity.NewHub(20)
	metrics := observability.NewMetricsWith("test_httpapi", prometheus.NewRegistry())
	srv := New(config.Config{}, store, hub, session.NewManager(time.Hour), metrics, zerolog.Nop())
	srv.now = func() time.Time { return testNow }
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, hub
}

func seedStore(t *testing.T) *tasks.InMemoryStore {
	t.Helper()
	ctx := context.Background()
	store := tasks.NewInMemoryStore()
	if _, err := store.UpsertUser(ctx, tasks.UserObservation{UserID: 2, ChatID: 100, FullName: "Bob", Username: "bob"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	for _, end := range []time.Time{testNow.Add(-time.Hour), testNow.Add(time.Hour)} {
		if _, err := store.InsertTask(ctx, tasks.NewTask{UserID: 2, ChatID: 100, Start: end.Add(-8 * time.Hour), End: end, Description: "Ship report"}); err != nil {
			t.Fatalf("InsertTask() error = %v", err)
		}
	}
	return store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t, tasks.NewInMemoryStore())

	var health map[string]any
	if code := getJSON(t, ts.URL+"/healthz", &health); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	if health["store_mode"] != "in-memory" {
		t.Fatalf("store_mode = %v", health["store_mode"])
	}
	if code := getJSON(t, ts.URL+"/readyz", nil); code != http.StatusOK {
		t.Fatalf("readyz status = %d", code)
	}
}

type downStore struct{ tasks.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreOutage(t *testing.T) {
	ts, _ := newTestServer(t, downStore{Store: tasks.NewInMemoryStore()})
	var body errorResponse
	if code := getJSON(t, ts.URL+"/readyz", &body); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", code)
	}
	if body.Code != "store_unavailable" {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestListChatTasks(t *testing.T) {
	ts, _ := newTestServer(t, seedStore(t))

	var all struct {
		Tasks []taskResponse `json:"tasks"`
	}
	if code := getJSON(t, ts.URL+"/v1/chats/100/tasks", &all); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(all.Tasks) != 2 || all.Tasks[0].Assignee != "Bob" || !all.Tasks[0].Overdue || all.Tasks[1].Overdue {
		t.Fatalf("unexpected tasks: %+v", all.Tasks)
	}

	var overdue struct {
		Tasks []taskResponse `json:"tasks"`
	}
	getJSON(t, ts.URL+"/v1/chats/100/tasks?status=overdue", &overdue)
	if len(overdue.Tasks) != 1 {
		t.Fatalf("overdue tasks = %+v", overdue.Tasks)
	}

	for _, bad := range []string{"/v1/chats/abc/tasks", "/v1/chats/100/tasks?status=late", "/v1/chats/100/tasks?limit=-1"} {
		if code := getJSON(t, ts.URL+bad, nil); code != http.StatusBadRequest {
			t.Fatalf("GET %s status = %d, want 400", bad, code)
		}
	}
}

func TestListEvents(t *testing.T) {
	ts, hub := newTestServer(t, tasks.NewInMemoryStore())
	hub.Publish(activity.Event{Type: activity.EventTaskCreated, ChatID: 100, TaskID: 1})
	hub.Publish(activity.Event{Type: activity.EventTaskCreated, ChatID: 200, TaskID: 2})

	var body struct {
		Events []activity.Event `json:"events"`
	}
	getJSON(t, ts.URL+"/v1/events?chat_id=200", &body)
	if len(body.Events) != 1 || body.Events[0].TaskID != 2 {
		t.Fatalf("events = %+v", body.Events)
	}
}

func TestEventsWebsocket(t *testing.T) {
	ts, hub := newTestServer(t, tasks.NewInMemoryStore())
	hub.Publish(activity.Event{Type: activity.EventTaskCreated, ChatID: 100, TaskID: 1})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(protocol.ClientSubscribe{Type: protocol.TypeClientSubscribe, ChatID: 100, Replay: 5}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var replayed protocol.ActivityEvent
	if err := conn.ReadJSON(&replayed); err != nil {
		t.Fatalf("read replay: %v", err)
	}
	if replayed.Type != protocol.TypeActivityEvent || replayed.Event.TaskID != 1 {
		t.Fatalf("replayed = %+v", replayed)
	}
	var ack protocol.SystemEvent
	if err := conn.ReadJSON(&ack); err != nil || ack.Code != "subscribed" {
		t.Fatalf("ack = %+v, err = %v", ack, err)
	}

	hub.Publish(activity.Event{Type: activity.EventTaskDeleted, ChatID: 200, TaskID: 9})
	hub.Publish(activity.Event{Type: activity.EventTaskCompleted, ChatID: 100, TaskID: 1})
	var live protocol.ActivityEvent
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("read live: %v", err)
	}
	if live.Event.Type != activity.EventTaskCompleted {
		t.Fatalf("live = %+v, want the chat 100 completion only", live)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	var errEvt protocol.ErrorEvent
	if err := conn.ReadJSON(&errEvt); err != nil || errEvt.Code != "invalid_client_message" {
		t.Fatalf("error event = %+v, err = %v", errEvt, err)
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	ts, _ := newTestServer(t, tasks.NewInMemoryStore())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, res, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatalf("dial succeeded from foreign origin")
	} else if res != nil && res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
}
