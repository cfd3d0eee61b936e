package stt

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mock is an in-memory Transcriber for tests. Results are injected
// with Emit and every audio frame is recorded.
type Mock struct {
	out     chan Result
	started atomic.Bool
	closed  atomic.Bool

	mu       sync.Mutex
	frames   [][]byte
	startErr error
}

func NewMock() *Mock {
	return &Mock{out: make(chan Result, 64)}
}

// FailWith makes Start return err.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	err := m.startErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.started.Store(true)
	return nil
}

func (m *Mock) SendAudio(pcm []byte) error {
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.mu.Lock()
	m.frames = append(m.frames, buf)
	m.mu.Unlock()
	return nil
}

// Emit injects a transcription result.
func (m *Mock) Emit(res Result) {
	if m.closed.Load() {
		return
	}
	select {
	case m.out <- res:
	default:
	}
}

func (m *Mock) Results() <-chan Result { return m.out }

func (m *Mock) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.out)
	}
	return nil
}

func (m *Mock) Started() bool { return m.started.Load() }

// Frames returns every audio frame forwarded so far.
func (m *Mock) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}

var _ Transcriber = (*Mock)(nil)
