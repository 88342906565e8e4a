package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/ent0n29/taskbot/internal/gateway"
)

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int64][]int)
	d := newDispatcher(func(_ context.Context, upd gateway.Update) {
		mu.Lock()
		defer mu.Unlock()
		seen[upd.SenderID()] = append(seen[upd.SenderID()], upd.ID)
	})

	for i := 0; i < 200; i++ {
		user := int64(i%4 + 1)
		d.enqueue(context.Background(), gateway.Update{
			ID:      i,
			Message: &gateway.Message{From: gateway.Sender{ID: user}},
		})
	}
	d.wait()

	for user, ids := range seen {
		if len(ids) != 50 {
			t.Fatalf("user %d handled %d updates, want 50", user, len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("user %d order broken: %v", user, ids)
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queues) != 0 {
		t.Fatalf("queues not drained: %d", len(d.queues))
	}
}
