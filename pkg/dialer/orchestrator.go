// Package dialer sequences outbound calls: an ordered contact queue
// with auto-advance on session termination, plus the PSTN leg for
// placing the actual phone call.
package dialer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/logging"
	"github.com/kolektra/voiceops/pkg/session"
)

// Call is the slice of a live session the orchestrator drives.
type Call interface {
	Open(ctx context.Context) error
	Close(outcome session.Outcome)
	Done() <-chan struct{}
	Outcome() session.Outcome
}

// Factory builds a fresh session for one contact. Called once per
// dial attempt.
type Factory func(c contacts.Contact) Call

// Config tunes the autodialer.
type Config struct {
	// Cooldown is the fixed pause between a session closing and the
	// next contact being dialed.
	Cooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = 3 * time.Second
	}
	return c
}

// Orchestrator walks an ordered contact list, opening one session at a
// time. Only one call may be live per console; manual dials and the
// queue share that constraint.
type Orchestrator struct {
	factory  Factory
	cooldown time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	queue   []contacts.Contact
	cursor  int
	current Call

	running atomic.Bool

	opened   int64
	attempts map[string]int
	outcomes map[session.Outcome]int64
}

// QueueState is a point-in-time snapshot of the autodial run.
type QueueState struct {
	Running  bool
	Cursor   int
	Total    int
	Opened   int64
	Attempts map[string]int
}

func New(factory Factory, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		factory:  factory,
		cooldown: cfg.Cooldown,
		logger:   logging.NewComponentLogger(slog.Default(), "autodialer"),
		attempts: map[string]int{},
		outcomes: map[session.Outcome]int64{},
	}
}

// Start begins the autodial run over the given contacts, dialing the
// first one immediately. It returns once the run is launched.
func (o *Orchestrator) Start(ctx context.Context, list []contacts.Contact) error {
	if len(list) == 0 {
		return errors.New("empty contact list")
	}
	o.mu.Lock()
	if o.running.Load() || o.current != nil {
		o.mu.Unlock()
		return errors.New("autodialer already running")
	}
	o.queue = make([]contacts.Contact, len(list))
	copy(o.queue, list)
	o.cursor = 0
	o.running.Store(true)
	o.mu.Unlock()

	o.logger.Info("autodial_started", slog.Int("contacts", len(list)))
	go o.loop(ctx)
	return nil
}

// Stop flips the running flag. The in-flight session finishes
// naturally; the queue halts when that session finalizes.
func (o *Orchestrator) Stop() {
	if o.running.CompareAndSwap(true, false) {
		o.logger.Info("autodial_stop_requested")
	}
}

// Running reports whether the queue is still advancing.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Cursor is the index of the contact currently (or last) dialed.
func (o *Orchestrator) Cursor() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor
}

// Opened counts sessions opened so far, manual dials included.
func (o *Orchestrator) Opened() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// Outcomes is a snapshot of terminal outcome counts.
func (o *Orchestrator) Outcomes() map[session.Outcome]int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[session.Outcome]int64, len(o.outcomes))
	for k, v := range o.outcomes {
		out[k] = v
	}
	return out
}

// State returns a snapshot of the queue, including per-contact
// attempt counts keyed by contact ID.
func (o *Orchestrator) State() QueueState {
	o.mu.Lock()
	defer o.mu.Unlock()
	attempts := make(map[string]int, len(o.attempts))
	for k, v := range o.attempts {
		attempts[k] = v
	}
	return QueueState{
		Running:  o.running.Load(),
		Cursor:   o.cursor,
		Total:    len(o.queue),
		Opened:   o.opened,
		Attempts: attempts,
	}
}

// DialOne places a single manual call outside the queue. It does not
// auto-advance anything on close. Fails while another call is live.
func (o *Orchestrator) DialOne(ctx context.Context, c contacts.Contact) (Call, error) {
	o.mu.Lock()
	if o.running.Load() || o.current != nil {
		o.mu.Unlock()
		return nil, errors.New("a call is already live")
	}
	call := o.factory(c)
	o.current = call
	o.attempts[c.ID]++
	o.mu.Unlock()

	if err := call.Open(ctx); err != nil {
		o.clearCurrent(call)
		return nil, err
	}
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()

	go func() {
		<-call.Done()
		o.recordOutcome(call.Outcome())
		o.clearCurrent(call)
	}()
	return call, nil
}

func (o *Orchestrator) loop(ctx context.Context) {
	for {
		o.mu.Lock()
		contact := o.queue[o.cursor]
		call := o.factory(contact)
		o.current = call
		o.attempts[contact.ID]++
		o.mu.Unlock()

		o.logger.Info("dialing_contact",
			slog.Int("position", o.Cursor()),
			slog.String("contact_id", contact.ID),
			slog.String("name", contact.Name))

		if err := call.Open(ctx); err != nil {
			if errorsx.HasReason(err, errorsx.ReasonMediaAccessDenied) {
				// No microphone means no call can start at all.
				o.logger.Error("autodial_halted_no_microphone",
					slog.String("error", err.Error()))
				o.running.Store(false)
				o.clearCurrent(call)
				return
			}
			// The session finalized itself as connection failed; the
			// advance decision below still applies.
			o.logger.Warn("dial_open_failed",
				slog.String("contact_id", contact.ID),
				slog.String("error", err.Error()))
		} else {
			o.mu.Lock()
			o.opened++
			o.mu.Unlock()
		}

		select {
		case <-call.Done():
		case <-ctx.Done():
			call.Close(session.OutcomeCompleted)
			<-call.Done()
			o.recordOutcome(call.Outcome())
			o.running.Store(false)
			o.clearCurrent(call)
			return
		}
		outcome := call.Outcome()
		o.recordOutcome(outcome)
		o.clearCurrent(call)

		o.mu.Lock()
		atEnd := o.cursor+1 >= len(o.queue)
		halt := !o.running.Load() || atEnd
		if halt {
			o.mu.Unlock()
			o.running.Store(false)
			o.logger.Info("autodial_finished",
				slog.Bool("exhausted", atEnd),
				slog.String("last_outcome", string(outcome)))
			return
		}
		o.cursor++
		o.mu.Unlock()

		select {
		case <-time.After(o.cooldown):
		case <-ctx.Done():
			o.running.Store(false)
			return
		}
	}
}

func (o *Orchestrator) recordOutcome(outcome session.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *Orchestrator) clearCurrent(call Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == call {
		o.current = nil
	}
}
