package playback

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolektra/voiceops/pkg/audio"
	"github.com/kolektra/voiceops/pkg/logging"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sink receives decoded PCM in playback order.
type Sink interface {
	Write(pcm []byte) error
	Close() error
}

type scheduled struct {
	startAt time.Time
	buf     []byte
}

// Scheduler owns the audio output clock. Buffers are scheduled
// back-to-back from a forward-only cursor so playback never gaps or
// overlaps no matter how bursty delivery is.
type Scheduler struct {
	sink       Sink
	sampleRate int
	clock      Clock
	logger     *slog.Logger

	mu     sync.Mutex
	cursor time.Time
	queue  []scheduled
	wake   chan struct{}

	stopped atomic.Bool
	done    chan struct{}
}

func NewScheduler(sink Sink, sampleRate int) *Scheduler {
	return newScheduler(sink, sampleRate, realClock{})
}

func newScheduler(sink Sink, sampleRate int, clock Clock) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	s := &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		clock:      clock,
		logger:     logging.NewComponentLogger(slog.Default(), "playback"),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go s.loop()
	return s
}

// Enqueue schedules a buffer to start at max(now, cursor) and advances
// the cursor by the buffer's duration. The returned time is the
// scheduled start; the zero time means the buffer was discarded
// because the scheduler is already stopped.
func (s *Scheduler) Enqueue(pcm []byte) time.Time {
	if s.stopped.Load() || len(pcm) == 0 {
		return time.Time{}
	}
	now := s.clock.Now()
	s.mu.Lock()
	start := now
	if s.cursor.After(now) {
		start = s.cursor
	}
	s.cursor = start.Add(audio.PCM16Duration(pcm, s.sampleRate))
	s.queue = append(s.queue, scheduled{startAt: start, buf: pcm})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return start
}

// Pending reports buffers scheduled but not yet handed to the sink.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop discards all unplayed buffers and closes the sink. Idempotent.
func (s *Scheduler) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
	if dropped > 0 {
		s.logger.Debug("playback_stopped_with_pending", "dropped", dropped)
	}
	if s.sink != nil {
		return s.sink.Close()
	}
	return nil
}

func (s *Scheduler) loop() {
	for {
		s.mu.Lock()
		var next scheduled
		have := false
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue = s.queue[1:]
			have = true
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.done:
				return
			case <-s.wake:
				continue
			}
		}

		if wait := next.startAt.Sub(s.clock.Now()); wait > 0 {
			select {
			case <-s.done:
				return
			case <-s.clock.After(wait):
			}
		}
		if s.stopped.Load() {
			return
		}
		if s.sink != nil {
			if err := s.sink.Write(next.buf); err != nil {
				s.logger.Warn("playback_sink_write_failed", "error", err.Error())
			}
		}
	}
}
