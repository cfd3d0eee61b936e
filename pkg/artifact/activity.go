package artifact

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ActivityEvent is a fire-and-forget notification of a call outcome,
// consumed by dashboards and other modules.
type ActivityEvent struct {
	Name      string
	Time      time.Time
	SessionID string
	ContactID string
	Outcome   string
	Fields    map[string]any
}

// ActivityObserver receives activity events. Record must not block.
type ActivityObserver interface {
	Record(ev ActivityEvent)
}

// AsyncActivityLog decouples activity producers from the observer
// behind a bounded channel. Events are dropped, never blocked on, when
// the buffer is full.
type AsyncActivityLog struct {
	inner   ActivityObserver
	ch      chan ActivityEvent
	dropped int64
	closed  atomic.Bool
	once    sync.Once
}

func NewAsyncActivityLog(inner ActivityObserver, buffer int) *AsyncActivityLog {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncActivityLog{
		inner: inner,
		ch:    make(chan ActivityEvent, buffer),
	}
	go a.loop()
	return a
}

func (a *AsyncActivityLog) Record(ev ActivityEvent) {
	if a == nil || a.closed.Load() {
		return
	}
	select {
	case a.ch <- ev:
	default:
		atomic.AddInt64(&a.dropped, 1)
	}
}

func (a *AsyncActivityLog) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

func (a *AsyncActivityLog) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.ch)
	})
}

func (a *AsyncActivityLog) loop() {
	for ev := range a.ch {
		a.inner.Record(ev)
	}
}

// JSONLActivityLog writes one JSON document per event.
type JSONLActivityLog struct {
	logger *slog.Logger
}

func NewJSONLActivityLog(w io.Writer) *JSONLActivityLog {
	if w == nil {
		return &JSONLActivityLog{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	}
	return &JSONLActivityLog{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

func (o *JSONLActivityLog) Record(ev ActivityEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.String("session_id", ev.SessionID),
		slog.String("contact_id", ev.ContactID),
		slog.String("outcome", ev.Outcome),
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(context.TODO(), slog.LevelInfo, "activity", attrs...)
}

// MemoryActivityLog collects events for tests.
type MemoryActivityLog struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{}
}

func (m *MemoryActivityLog) Record(ev ActivityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *MemoryActivityLog) Events() []ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActivityEvent, len(m.events))
	copy(out, m.events)
	return out
}
