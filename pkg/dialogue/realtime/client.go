package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kolektra/voiceops/pkg/dialogue"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/logging"
)

// Config for the realtime websocket dialogue provider.
type Config struct {
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	SampleRate  int    `mapstructure:"sample_rate"`
	DialTimeout int    `mapstructure:"dial_timeout_ms"`
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10000
	}
	return c
}

// Provider connects to a realtime bidirectional audio/text streaming
// endpoint speaking a JSON event protocol over websocket.
type Provider struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Provider {
	return &Provider{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(slog.Default(), "realtime_provider"),
	}
}

func (p *Provider) Name() string { return "realtime" }

func (p *Provider) Connect(ctx context.Context, cfg dialogue.ConnectConfig) (dialogue.Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	header := http.Header{}
	if p.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: time.Duration(p.cfg.DialTimeout) * time.Millisecond}
	ws, _, err := dialer.DialContext(ctx, p.cfg.URL, header)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConnectionFailed)
	}
	c := &conn{
		ws:     ws,
		sendCh: make(chan []byte, 256),
		done:   make(chan struct{}),
		events: make(chan dialogue.Event, 256),
		logger: p.logger,
	}
	go c.writeLoop()
	go c.readLoop()

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = p.cfg.SampleRate
	}
	setup := wireMessage{
		Type: "session.update",
		Session: &wireSession{
			Model:        p.cfg.Model,
			Voice:        cfg.Voice,
			Instructions: cfg.Instructions,
			Modalities:   cfg.Modalities,
			SampleRate:   sampleRate,
		},
	}
	if err := c.enqueue(setup); err != nil {
		_ = c.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonConnectionFailed)
	}
	return c, nil
}

type conn struct {
	ws     *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	events chan dialogue.Event
	closed atomic.Bool
	logger *slog.Logger
}

func (c *conn) SendAudio(frame []byte) error {
	if c.closed.Load() {
		return nil
	}
	msg := wireMessage{
		Type:  "input_audio.append",
		Audio: base64.StdEncoding.EncodeToString(frame),
	}
	if err := c.enqueue(msg); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderSend)
	}
	return nil
}

func (c *conn) Events() <-chan dialogue.Event { return c.events }

func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// sendCh stays open so a racing SendAudio cannot panic; the write
	// loop exits via done instead.
	close(c.done)
	return c.ws.Close()
}

func (c *conn) enqueue(msg wireMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if c.closed.Load() {
		return nil
	}
	select {
	case c.sendCh <- b:
	default:
		// Bounded latency beats completeness for live audio.
	}
	return nil
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("realtime_write_failed", "error", err.Error())
				return
			}
		}
	}
}

func (c *conn) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.emit(dialogue.Event{
					Kind: dialogue.EventError,
					Err:  errorsx.Wrap(err, errorsx.ReasonProviderRecv),
					At:   time.Now(),
				})
			}
			c.emit(dialogue.Event{Kind: dialogue.EventClosed, Reason: "transport_closed", At: time.Now()})
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "session.opened":
			c.emit(dialogue.Event{Kind: dialogue.EventOpened, At: time.Now()})
		case "response.audio.delta":
			payload, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				continue
			}
			c.emit(dialogue.Event{Kind: dialogue.EventAudio, Audio: payload, At: time.Now()})
		case "response.transcript.delta":
			c.emit(dialogue.Event{
				Kind:      dialogue.EventTranscript,
				Text:      msg.Text,
				Direction: dialogue.DirectionAgent,
				At:        time.Now(),
			})
		case "input.transcript":
			c.emit(dialogue.Event{
				Kind:      dialogue.EventTranscript,
				Text:      msg.Text,
				Direction: dialogue.DirectionRemote,
				At:        time.Now(),
			})
		case "error":
			c.emit(dialogue.Event{
				Kind: dialogue.EventError,
				Err:  errorsx.New(errorsx.ReasonDropped, msg.Message),
				At:   time.Now(),
			})
		case "session.closed":
			c.emit(dialogue.Event{Kind: dialogue.EventClosed, Reason: msg.Reason, At: time.Now()})
			return
		}
	}
}

func (c *conn) emit(ev dialogue.Event) {
	select {
	case c.events <- ev:
	default:
	}
}

type wireSession struct {
	Model        string   `json:"model,omitempty"`
	Voice        string   `json:"voice,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Modalities   []string `json:"modalities,omitempty"`
	SampleRate   int      `json:"sample_rate,omitempty"`
}

type wireMessage struct {
	Type    string       `json:"type"`
	Session *wireSession `json:"session,omitempty"`
	Audio   string       `json:"audio,omitempty"`
	Text    string       `json:"text,omitempty"`
	Message string       `json:"message,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}
