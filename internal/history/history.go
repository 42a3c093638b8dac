// Package history records the lifecycle of status commands (spawn, exit,
// stop, reload) to an optional sink.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventSpawn    EventType = "spawn"
	EventExit     EventType = "exit"
	EventStop     EventType = "stop"
	EventReload   EventType = "reload"
	EventShutdown EventType = "shutdown"
)

// Record identifies the subprocess an event is about. Generation-wide events
// (reload, shutdown) leave Slot at -1 and PID at 0.
type Record struct {
	Generation string `json:"generation"`
	Slot       int    `json:"slot"`
	Command    string `json:"command"`
	PID        int    `json:"pid"`
	Detail     string `json:"detail,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// DefaultQueue is the Recorder queue length used when none is given.
const DefaultQueue = 256

// Recorder delivers events to a sink from its own goroutine so callers never
// block on the sink. Events are dropped when the queue is full.
type Recorder struct {
	sink Sink
	log  *slog.Logger
	q    chan Event
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a Recorder for sink. A nil sink yields a Recorder whose
// Record is a no-op.
func NewRecorder(sink Sink, queue int, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{sink: sink, log: log}
	if sink == nil {
		return r
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	r.q = make(chan Event, queue)
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for e := range r.q {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Send(ctx, e); err != nil {
			r.log.Warn("history sink failed", "event", e.Type, "error", err)
		}
		cancel()
	}
}

// Record enqueues an event stamped with the current time.
func (r *Recorder) Record(t EventType, rec Record) {
	if r == nil || r.q == nil {
		return
	}
	e := Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.q <- e:
	default:
		r.log.Warn("history queue full, dropping event", "event", t)
	}
}

// Close drains the queue and waits for pending sends. Events recorded after
// Close are dropped.
func (r *Recorder) Close() {
	if r == nil || r.q == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.q)
	r.mu.Unlock()
	r.wg.Wait()
}
