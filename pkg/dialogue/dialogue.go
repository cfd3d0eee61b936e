package dialogue

import (
	"context"
	"time"
)

// EventKind tags events arriving from a dialogue provider connection.
type EventKind string

const (
	EventOpened     EventKind = "opened"
	EventAudio      EventKind = "audio"
	EventTranscript EventKind = "transcript"
	EventError      EventKind = "error"
	EventClosed     EventKind = "closed"
)

// Direction identifies which party a transcript event belongs to.
type Direction string

const (
	// DirectionAgent is speech synthesized by the provider's persona.
	DirectionAgent Direction = "agent"
	// DirectionRemote is the counterparty's transcribed speech.
	DirectionRemote Direction = "remote"
)

// Event is one provider callback, surfaced as a channel message so the
// session state machine can be driven by scripted sequences in tests.
type Event struct {
	Kind      EventKind
	Audio     []byte
	Text      string
	Direction Direction
	Err       error
	Reason    string
	At        time.Time
}

// ConnectConfig seeds a new provider connection.
type ConnectConfig struct {
	Voice        string
	Instructions string
	Modalities   []string
	SampleRate   int
	Meta         map[string]string
}

// Conn is one live duplex connection to the dialogue provider. The
// Events channel carries Opened, Audio, Transcript, Error and Closed
// events in arrival order and is closed after the final Closed event.
type Conn interface {
	SendAudio(frame []byte) error
	Events() <-chan Event
	Close() error
}

// Provider opens duplex dialogue connections.
type Provider interface {
	Name() string
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
}
