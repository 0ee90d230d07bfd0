package service

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/runner"
)

// subscriberBuffer sizes each stream's queue. Tick events arrive once a second, so a
// slow socket drops ticks long before it drops anything else.
const subscriberBuffer = 64

// Subscription is one listener on a run's event stream.
type Subscription struct {
	C       <-chan runner.Event
	ch      chan runner.Event
	dropped atomic.Int64
}

// Hub fans runner events out to the streams watching each run.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
	log  zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log.With().Str("component", "event_hub").Logger(),
	}
}

// Sink returns the runner.EventSink that publishes into the run's subscribers.
func (h *Hub) Sink(testSessionID string) runner.EventSink {
	return runner.SinkFunc(func(e runner.Event) {
		h.Publish(testSessionID, e)
	})
}

// Publish delivers e to every subscriber of the run without blocking.
func (h *Hub) Publish(testSessionID string, e runner.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[testSessionID] {
		select {
		case sub.ch <- e:
		default:
			if n := sub.dropped.Add(1); n%subscriberBuffer == 1 {
				h.log.Warn().Str("test_session_id", testSessionID).Str("event", string(e.Type)).
					Int64("dropped", n).Msg("Subscriber is falling behind, dropping events")
			}
		}
	}
}

// Subscribe registers a listener. Call the returned func to unsubscribe.
func (h *Hub) Subscribe(testSessionID string) (*Subscription, func()) {
	ch := make(chan runner.Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	if h.subs[testSessionID] == nil {
		h.subs[testSessionID] = make(map[*Subscription]struct{})
	}
	h.subs[testSessionID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[testSessionID], sub)
			if len(h.subs[testSessionID]) == 0 {
				delete(h.subs, testSessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of listeners on a run.
func (h *Hub) Subscribers(testSessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[testSessionID])
}
