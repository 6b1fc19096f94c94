// Package eventbus is the Event Bus (spec.md §4.11): a process-local,
// multi-producer multi-consumer broadcast with bounded per-subscriber
// buffers. Slow subscribers lose messages rather than slow down publishers.
package eventbus

import (
	"sync"
	"sync/atomic"

	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

// defaultBufferSize is used when Subscribe is called with bufferSize <= 0.
const defaultBufferSize = 32

// Bus implements ports.EventBus. Unlike the teacher's wsHub — a dedicated
// register/unregister/broadcast actor goroutine serving one websocket
// connection lifecycle at a time — subscription bookkeeping here is a plain
// mutex-guarded set: there is no per-bus goroutine to run or shut down,
// since Subscribe/Unsubscribe are synchronous set operations and Publish's
// fan-out is itself non-blocking per subscriber.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ ports.EventBus = (*Bus)(nil)

func New() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

type subscription struct {
	bus     *Bus
	ch      chan ports.Event
	dropped int64 // atomic
}

func (s *subscription) Events() <-chan ports.Event { return s.ch }

func (s *subscription) Unsubscribe() { s.bus.unsubscribe(s) }

// Subscribe returns a Subscription whose channel receives every event
// published after this call. bufferSize bounds how many events may queue
// before the subscriber starts losing messages.
func (b *Bus) Subscribe(bufferSize int) ports.Subscription {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	s := &subscription{bus: b, ch: make(chan ports.Event, bufferSize)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	metrics.EventBusSubscribersGauge.Set(float64(count))
	return s
}

func (b *Bus) unsubscribe(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
		metrics.EventBusSubscribersGauge.Set(float64(len(b.subs)))
	}
}

// Publish fans evt out to every current subscriber. A subscriber whose
// buffer is full drops the event (count tracked in subscription.dropped);
// the bus then makes a best-effort, also-non-blocking attempt to hand that
// subscriber a LaggedEvent reporting the running total, mirroring the
// teacher's hub "broadcast channel full, skip this update" drop policy but
// surfacing the drop to the subscriber instead of silently discarding it.
func (b *Bus) Publish(evt ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.EventBusPublishedTotal.WithLabelValues(string(evt.Category)).Inc()

	for s := range b.subs {
		select {
		case s.ch <- evt:
			continue
		default:
		}

		dropped := atomic.AddInt64(&s.dropped, 1)
		metrics.EventBusLaggedTotal.Inc()
		select {
		case s.ch <- ports.Event{Category: evt.Category, Payload: ports.LaggedEvent{Dropped: int(dropped)}}:
		default:
		}
	}
}
