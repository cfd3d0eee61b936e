package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolektra/voiceops/pkg/dialogue"
	"github.com/kolektra/voiceops/pkg/errorsx"
)

// Provider is an in-memory dialogue provider for tests and local runs.
// Each Connect hands out a Conn that replays the configured script and
// records every audio frame sent to it.
type Provider struct {
	mu          sync.Mutex
	script      []dialogue.Event
	failConnect error
	conns       []*Conn
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "mock" }

// Script sets the events each new connection replays after Connect.
func (p *Provider) Script(events ...dialogue.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = events
}

// FailConnect makes subsequent Connect calls fail.
func (p *Provider) FailConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failConnect = err
}

func (p *Provider) Connect(ctx context.Context, cfg dialogue.ConnectConfig) (dialogue.Conn, error) {
	p.mu.Lock()
	script := make([]dialogue.Event, len(p.script))
	copy(script, p.script)
	failErr := p.failConnect
	p.mu.Unlock()
	if failErr != nil {
		return nil, errorsx.Wrap(failErr, errorsx.ReasonConnectionFailed)
	}
	c := &Conn{
		events: make(chan dialogue.Event, 256),
		cfg:    cfg,
	}
	p.mu.Lock()
	p.conns = append(p.conns, c)
	p.mu.Unlock()
	go c.replay(script)
	return c, nil
}

// Conns returns every connection handed out so far.
func (p *Provider) Conns() []*Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Conn, len(p.conns))
	copy(out, p.conns)
	return out
}

// Conn is a scripted in-memory dialogue connection.
type Conn struct {
	cfg    dialogue.ConnectConfig
	events chan dialogue.Event
	closed atomic.Bool

	mu   sync.Mutex
	sent [][]byte
}

func (c *Conn) replay(script []dialogue.Event) {
	for _, ev := range script {
		if c.closed.Load() {
			return
		}
		if ev.At.IsZero() {
			ev.At = time.Now()
		}
		c.Push(ev)
		if ev.Kind == dialogue.EventClosed {
			return
		}
	}
}

// Push injects one event, as if the provider had emitted it. A Closed
// event also closes the events channel.
func (c *Conn) Push(ev dialogue.Event) {
	if c.closed.Load() {
		return
	}
	if ev.Kind == dialogue.EventClosed {
		if !c.closed.CompareAndSwap(false, true) {
			return
		}
		c.events <- ev
		close(c.events)
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Conn) SendAudio(frame []byte) error {
	if c.closed.Load() {
		return nil
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	c.mu.Lock()
	c.sent = append(c.sent, buf)
	c.mu.Unlock()
	return nil
}

func (c *Conn) Events() <-chan dialogue.Event { return c.events }

func (c *Conn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.events)
	}
	return nil
}

// SentFrames returns every audio frame forwarded to the provider.
func (c *Conn) SentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Config returns the ConnectConfig the session seeded this connection
// with.
func (c *Conn) Config() dialogue.ConnectConfig { return c.cfg }
