// Package session drives one live call: a duplex dialogue-provider
// connection fed by microphone capture, with provider audio scheduled
// for playback and transcript events accumulated in an ordered log.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kolektra/voiceops/pkg/audio"
	"github.com/kolektra/voiceops/pkg/capture"
	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/dialogue"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/logging"
	"github.com/kolektra/voiceops/pkg/persona"
	"github.com/kolektra/voiceops/pkg/playback"
	"github.com/kolektra/voiceops/pkg/region"
	"github.com/kolektra/voiceops/pkg/stt"
	"github.com/kolektra/voiceops/pkg/transcript"
)

// State is the call lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

// Outcome tags how a call ended.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeConnectionFailed Outcome = "connection_failed"
	OutcomeDropped          Outcome = "dropped"
)

var validTransitions = map[State][]State{
	StateIdle:       {StateConnecting, StateClosed},
	StateConnecting: {StateActive, StateClosing, StateIdle},
	StateActive:     {StateClosing},
	StateClosing:    {StateClosed},
	StateClosed:     {},
}

// Summary is the frozen view of a terminated call handed to the
// finalizer. Lines is a snapshot and is never mutated afterwards.
type Summary struct {
	ID        string
	Contact   contacts.Contact
	Persona   string
	Tactic    persona.Tactic
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Outcome   Outcome
	Lines     []transcript.Line
}

// Finalizer consumes exactly one Summary per terminated session.
type Finalizer interface {
	Finalize(s Summary) error
}

// Config wires one session's collaborators.
type Config struct {
	Contact  contacts.Contact
	Persona  persona.Persona
	Tactic   persona.Tactic
	Provider dialogue.Provider
	Source   capture.Source
	Playback *playback.Scheduler

	// Finalizer receives the frozen summary on every terminal path.
	Finalizer Finalizer

	// Backup transcribes microphone audio when the provider does not
	// emit input transcripts. Optional; failures disable it without
	// affecting the call.
	Backup stt.Transcriber

	// ConnectTimeout bounds the connecting state. The provider must
	// confirm the channel within this window or the session aborts as
	// connection failed.
	ConnectTimeout time.Duration

	// SampleRate of the provider wire format (G.711 runs at 8 kHz).
	SampleRate int
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 8000
	}
	return c
}

// Session is one live call. All state mutation happens inside the
// session itself; collaborators only observe it.
type Session struct {
	id     string
	cfg    Config
	log    *transcript.Log
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	startedAt time.Time
	endedAt   time.Time
	outcome   Outcome

	conn    dialogue.Conn
	backup  stt.Transcriber
	closing atomic.Bool
	done    chan struct{}
}

func New(cfg Config) *Session {
	return &Session{
		id:     uuid.NewString(),
		cfg:    cfg.withDefaults(),
		log:    transcript.NewLog(),
		logger: logging.NewComponentLogger(slog.Default(), "call_session"),
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Contact() contacts.Contact { return s.cfg.Contact }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome is valid once Done is closed.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done is closed after the session reached closed and the finalizer
// ran.
func (s *Session) Done() <-chan struct{} { return s.done }

// Transcript is the live dialogue log.
func (s *Session) Transcript() *transcript.Log { return s.log }

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
}

// Open requests microphone access, connects the dialogue provider and
// returns while the session is still connecting. The session turns
// active only once the provider confirms the channel; until then no
// audio is forwarded.
//
// A refused microphone leaves the session idle: the call never started,
// so nothing is finalized. A failed provider connection does reach the
// finalizer, with outcome connection failed, so the queue can decide to
// retry or skip.
func (s *Session) Open(ctx context.Context) error {
	if err := s.transition(StateConnecting); err != nil {
		return err
	}

	prof := region.Resolve(s.cfg.Contact.City, s.cfg.Contact.Province)
	instructions := persona.Instructions(s.cfg.Persona, prof, s.cfg.Contact, s.cfg.Tactic)

	if err := s.cfg.Source.Start(ctx); err != nil {
		_ = s.transition(StateIdle)
		s.logger.Warn("microphone_start_failed",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonMediaAccessDenied)
	}

	if s.cfg.Backup != nil {
		if err := s.cfg.Backup.Start(ctx); err != nil {
			s.logger.Warn("backup_transcriber_unavailable",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()))
		} else {
			s.mu.Lock()
			s.backup = s.cfg.Backup
			s.mu.Unlock()
		}
	}

	conn, err := s.cfg.Provider.Connect(ctx, dialogue.ConnectConfig{
		Voice:        s.cfg.Persona.Voice,
		Instructions: instructions,
		Modalities:   []string{"audio", "text"},
		SampleRate:   s.cfg.SampleRate,
		Meta: map[string]string{
			"session_id": s.id,
			"contact_id": s.cfg.Contact.ID,
		},
	})
	if err != nil {
		s.logger.Warn("provider_connect_failed",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		s.Close(OutcomeConnectionFailed)
		return errorsx.Wrap(err, errorsx.ReasonConnectionFailed)
	}

	s.mu.Lock()
	if s.closing.Load() {
		// A concurrent Close already tore the session down without
		// seeing this connection; release it here instead of leaking.
		s.mu.Unlock()
		_ = conn.Close()
		return errorsx.New(errorsx.ReasonConnectionFailed, "session closed while connecting")
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("session_connecting",
		slog.String("session_id", s.id),
		slog.String("contact_id", s.cfg.Contact.ID),
		slog.String("persona", s.cfg.Persona.Name),
		slog.String("tactic", string(s.cfg.Tactic)),
		slog.String("dialect", prof.Dialect))

	go s.run()
	return nil
}

func (s *Session) run() {
	connectTimer := time.After(s.cfg.ConnectTimeout)
	for {
		select {
		case ev, ok := <-s.conn.Events():
			if !ok {
				s.Close(OutcomeConnectionFailed)
				return
			}
			switch ev.Kind {
			case dialogue.EventOpened:
				if !s.markActive() {
					return
				}
				s.active()
				return
			case dialogue.EventError, dialogue.EventClosed:
				s.Close(OutcomeConnectionFailed)
				return
			}
			// Audio or transcript before the channel is confirmed is
			// ignored.
		case <-connectTimer:
			s.logger.Warn("connect_timeout",
				slog.String("session_id", s.id),
				slog.Duration("timeout", s.cfg.ConnectTimeout))
			s.Close(OutcomeConnectionFailed)
			return
		case <-s.done:
			return
		}
	}
}

func (s *Session) markActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionLocked(StateActive) != nil {
		return false
	}
	s.startedAt = time.Now()
	s.logger.Info("session_active", slog.String("session_id", s.id))
	return true
}

func (s *Session) active() {
	frames := s.cfg.Source.Frames()
	var results <-chan stt.Result
	if s.backup != nil {
		results = s.backup.Results()
	}
	for {
		select {
		case ev, ok := <-s.conn.Events():
			if !ok {
				s.Close(OutcomeDropped)
				return
			}
			switch ev.Kind {
			case dialogue.EventAudio:
				s.cfg.Playback.Enqueue(audio.DecodeMuLaw(ev.Audio))
			case dialogue.EventTranscript:
				role := transcript.RoleAgent
				if ev.Direction == dialogue.DirectionRemote {
					role = transcript.RoleRemote
				}
				s.log.Append(role, ev.Text)
			case dialogue.EventError:
				msg := "provider error"
				if ev.Err != nil {
					msg = ev.Err.Error()
				}
				s.logger.Warn("provider_error",
					slog.String("session_id", s.id),
					slog.String("error", msg))
				s.Close(OutcomeDropped)
				return
			case dialogue.EventClosed:
				s.Close(OutcomeCompleted)
				return
			}
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if err := s.conn.SendAudio(audio.EncodePCM16(frame)); err != nil {
				s.logger.Warn("audio_forward_failed",
					slog.String("session_id", s.id),
					slog.String("error", err.Error()))
			}
			if s.backup != nil {
				_ = s.backup.SendAudio(frame)
			}
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if res.Final {
				s.log.Append(transcript.RoleRemote, res.Text)
			}
		case <-s.done:
			return
		}
	}
}

// Close tears the session down and finalizes it. Idempotent: it is
// safe to call from a user action, a provider error and the event loop
// concurrently; only the first call does anything. Late capture frames
// after the first Close are discarded silently.
func (s *Session) Close(outcome Outcome) {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.state == StateIdle {
		// Never dialed, nothing to tear down or finalize.
		_ = s.transitionLocked(StateClosed)
		s.outcome = outcome
		s.mu.Unlock()
		close(s.done)
		return
	}
	_ = s.transitionLocked(StateClosing)
	started := s.startedAt
	conn := s.conn
	backup := s.backup
	s.mu.Unlock()

	_ = s.cfg.Source.Stop()
	if backup != nil {
		_ = backup.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if s.cfg.Playback != nil {
		_ = s.cfg.Playback.Stop()
	}

	ended := time.Now()
	var duration time.Duration
	if !started.IsZero() {
		duration = ended.Sub(started)
	}

	s.log.Append(transcript.RoleSystem, fmt.Sprintf("call ended: %s", outcome))

	s.mu.Lock()
	_ = s.transitionLocked(StateClosed)
	s.outcome = outcome
	s.endedAt = ended
	s.mu.Unlock()

	summary := Summary{
		ID:        s.id,
		Contact:   s.cfg.Contact,
		Persona:   s.cfg.Persona.Name,
		Tactic:    s.cfg.Tactic,
		StartedAt: started,
		EndedAt:   ended,
		Duration:  duration,
		Outcome:   outcome,
		Lines:     s.log.Lines(),
	}
	if s.cfg.Finalizer != nil {
		if err := s.cfg.Finalizer.Finalize(summary); err != nil {
			s.logger.Error("finalize_failed",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()))
		}
	}

	s.logger.Info("session_closed",
		slog.String("session_id", s.id),
		slog.String("outcome", string(outcome)),
		slog.Duration("duration", duration))

	close(s.done)
}
