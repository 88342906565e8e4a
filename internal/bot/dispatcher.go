package bot

import (
	"context"
	"sync"

	"github.com/ent0n29/taskbot/internal/gateway"
)

// dispatcher serializes updates per sender. Each sender with pending
// updates gets one drain goroutine which exits once its queue is empty.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]gateway.Update
	wg     sync.WaitGroup
	handle func(context.Context, gateway.Update)
}

func newDispatcher(handle func(context.Context, gateway.Update)) *dispatcher {
	return &dispatcher{
		queues: make(map[int64][]gateway.Update),
		handle: handle,
	}
}

func (d *dispatcher) enqueue(ctx context.Context, upd gateway.Update) {
	key := upd.SenderID()

	d.mu.Lock()
	queue, draining := d.queues[key]
	d.queues[key] = append(queue, upd)
	if draining {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.drain(ctx, key)
}

func (d *dispatcher) drain(ctx context.Context, key int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		upd := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, upd)
	}
}

// wait blocks until every drain goroutine has finished.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
