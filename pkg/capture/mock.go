package capture

import (
	"context"
	"sync/atomic"
)

// MockSource is an in-memory Source for tests and local runs without a
// microphone.
type MockSource struct {
	out     chan []byte
	started atomic.Bool
	closed  atomic.Bool
	failErr error
}

func NewMockSource() *MockSource {
	return &MockSource{out: make(chan []byte, 64)}
}

// FailWith makes Start return the given error, simulating a refused
// device.
func (m *MockSource) FailWith(err error) { m.failErr = err }

func (m *MockSource) Start(ctx context.Context) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.started.Store(true)
	return nil
}

// Push injects one captured frame.
func (m *MockSource) Push(frame []byte) {
	if m.closed.Load() {
		return
	}
	select {
	case m.out <- frame:
	default:
	}
}

func (m *MockSource) Frames() <-chan []byte { return m.out }

func (m *MockSource) Stop() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.out)
	}
	return nil
}

func (m *MockSource) Started() bool { return m.started.Load() }
