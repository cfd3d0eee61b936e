package dialer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/session"
)

type fakeCall struct {
	contact contacts.Contact
	openErr error
	// autoClose ends the call naturally after the given delay.
	autoClose time.Duration

	mu      sync.Mutex
	opened  bool
	forced  bool
	outcome session.Outcome
	done    chan struct{}
	once    sync.Once
}

func (c *fakeCall) Open(ctx context.Context) error {
	if c.openErr != nil {
		if !errorsx.HasReason(c.openErr, errorsx.ReasonMediaAccessDenied) {
			// A failed connection still finalizes, like the real session.
			c.finish(session.OutcomeConnectionFailed, false)
		}
		return c.openErr
	}
	c.mu.Lock()
	c.opened = true
	c.mu.Unlock()
	if c.autoClose > 0 {
		time.AfterFunc(c.autoClose, func() { c.finish(session.OutcomeCompleted, false) })
	}
	return nil
}

func (c *fakeCall) Close(outcome session.Outcome) { c.finish(outcome, true) }

func (c *fakeCall) finish(outcome session.Outcome, forced bool) {
	c.once.Do(func() {
		c.mu.Lock()
		c.outcome = outcome
		c.forced = forced
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeCall) Done() <-chan struct{} { return c.done }

func (c *fakeCall) isOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *fakeCall) Outcome() session.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

type fakeFactory struct {
	mu    sync.Mutex
	calls []*fakeCall
	build func(c contacts.Contact) *fakeCall
}

func (f *fakeFactory) factory(c contacts.Contact) Call {
	call := f.build(c)
	call.contact = c
	call.done = make(chan struct{})
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return call
}

func (f *fakeFactory) snapshot() []*fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func contactList(n int) []contacts.Contact {
	list := make([]contacts.Contact, n)
	for i := range list {
		list[i] = contacts.Contact{ID: string(rune('a' + i)), Name: "Contact", Phone: "+63917"}
	}
	return list
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueueDialsEveryContactInOrder(t *testing.T) {
	ff := &fakeFactory{build: func(contacts.Contact) *fakeCall {
		return &fakeCall{autoClose: 10 * time.Millisecond}
	}}
	o := New(ff.factory, Config{Cooldown: 5 * time.Millisecond})

	list := contactList(3)
	if err := o.Start(context.Background(), list); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitUntil(t, "run to finish", func() bool { return !o.Running() && len(ff.snapshot()) == 3 })

	calls := ff.snapshot()
	for i, call := range calls {
		if call.contact.ID != list[i].ID {
			t.Fatalf("contact %d dialed out of order: %s", i, call.contact.ID)
		}
		if !call.isOpened() {
			t.Fatalf("contact %d never opened", i)
		}
	}
	if o.Opened() != 3 {
		t.Fatalf("expected 3 opened sessions, got %d", o.Opened())
	}
	if o.Outcomes()[session.OutcomeCompleted] != 3 {
		t.Fatalf("expected 3 completed outcomes, got %v", o.Outcomes())
	}
	state := o.State()
	if state.Running || state.Total != 3 || state.Opened != 3 {
		t.Fatalf("unexpected queue state: %+v", state)
	}
	for _, c := range list {
		if state.Attempts[c.ID] != 1 {
			t.Fatalf("expected 1 attempt for %s, got %d", c.ID, state.Attempts[c.ID])
		}
	}
}

func TestStopLetsInFlightSessionFinish(t *testing.T) {
	ff := &fakeFactory{build: func(contacts.Contact) *fakeCall {
		return &fakeCall{autoClose: 60 * time.Millisecond}
	}}
	o := New(ff.factory, Config{Cooldown: time.Millisecond})

	if err := o.Start(context.Background(), contactList(3)); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitUntil(t, "first session open", func() bool {
		calls := ff.snapshot()
		return len(calls) == 1 && calls[0].isOpened()
	})

	o.Stop()
	first := ff.snapshot()[0]
	<-first.Done()
	if first.forced {
		t.Fatalf("stop must not force-close the in-flight session")
	}
	if first.Outcome() != session.OutcomeCompleted {
		t.Fatalf("expected natural completion, got %s", first.Outcome())
	}

	// Give the loop a chance to (wrongly) advance.
	time.Sleep(30 * time.Millisecond)
	if len(ff.snapshot()) != 1 {
		t.Fatalf("queue advanced after stop: %d sessions", len(ff.snapshot()))
	}
	if o.Running() {
		t.Fatalf("expected halted orchestrator")
	}
}

func TestConnectionFailureAdvancesAfterCooldown(t *testing.T) {
	var n int
	var mu sync.Mutex
	ff := &fakeFactory{}
	ff.build = func(contacts.Contact) *fakeCall {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return &fakeCall{openErr: errorsx.New(errorsx.ReasonConnectionFailed, "provider refused")}
		}
		return &fakeCall{autoClose: 10 * time.Millisecond}
	}
	o := New(ff.factory, Config{Cooldown: 10 * time.Millisecond})

	if err := o.Start(context.Background(), contactList(2)); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitUntil(t, "run to finish", func() bool { return !o.Running() && len(ff.snapshot()) == 2 })

	outcomes := o.Outcomes()
	if outcomes[session.OutcomeConnectionFailed] != 1 || outcomes[session.OutcomeCompleted] != 1 {
		t.Fatalf("unexpected outcome counts: %v", outcomes)
	}
	if ff.snapshot()[1].contact.ID != "b" {
		t.Fatalf("second contact was not dialed after failure")
	}
}

func TestMicrophoneDeniedHaltsQueue(t *testing.T) {
	ff := &fakeFactory{build: func(contacts.Contact) *fakeCall {
		return &fakeCall{openErr: errorsx.New(errorsx.ReasonMediaAccessDenied, "no device")}
	}}
	o := New(ff.factory, Config{Cooldown: time.Millisecond})

	if err := o.Start(context.Background(), contactList(3)); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitUntil(t, "halt", func() bool { return !o.Running() })
	time.Sleep(20 * time.Millisecond)
	if len(ff.snapshot()) != 1 {
		t.Fatalf("expected no further dials without a microphone, got %d", len(ff.snapshot()))
	}
}

func TestDialOneBypassesAutoAdvance(t *testing.T) {
	ff := &fakeFactory{build: func(contacts.Contact) *fakeCall {
		return &fakeCall{}
	}}
	o := New(ff.factory, Config{})

	call, err := o.DialOne(context.Background(), contacts.Contact{ID: "manual"})
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}

	if _, err := o.DialOne(context.Background(), contacts.Contact{ID: "second"}); err == nil {
		t.Fatalf("expected rejection while a call is live")
	}

	call.Close(session.OutcomeCompleted)
	<-call.Done()
	waitUntil(t, "current cleared", func() bool {
		_, err := o.DialOne(context.Background(), contacts.Contact{ID: "third"})
		return err == nil
	})

	// Manual dials never advance a queue.
	if o.Running() {
		t.Fatalf("manual dialing must not start the queue")
	}
}
