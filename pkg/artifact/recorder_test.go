package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/session"
	"github.com/kolektra/voiceops/pkg/transcript"
)

func remoteLine(sent transcript.Sentiment, at time.Time) transcript.Line {
	return transcript.Line{Role: transcript.RoleRemote, Sentiment: sent, At: at}
}

func testSummary(lines []transcript.Line) session.Summary {
	started := time.Now().Add(-90 * time.Second)
	return session.Summary{
		ID:        "s-1",
		Contact:   contacts.Contact{ID: "c-1", Name: "Maria Santos"},
		Persona:   "Amihan",
		StartedAt: started,
		EndedAt:   started.Add(90 * time.Second),
		Duration:  90 * time.Second,
		Outcome:   session.OutcomeCompleted,
		Lines:     lines,
	}
}

func TestFinalizePersistsRecord(t *testing.T) {
	sink := NewMemorySink()
	activity := NewMemoryActivityLog()
	r := NewRecorder(sink, WithActivity(activity))

	lines := []transcript.Line{
		remoteLine(transcript.SentimentPositive, time.Now()),
		{Role: transcript.RoleSystem, Text: "call ended: completed"},
	}
	if err := r.Finalize(testSummary(lines)); err != nil {
		t.Fatalf("finalize error: %v", err)
	}

	recs := sink.Records()
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Agent != "Amihan" || rec.ContactName != "Maria Santos" {
		t.Fatalf("unexpected identities: %+v", rec)
	}
	if rec.DurationMS != 90000 {
		t.Fatalf("expected 90000ms duration, got %d", rec.DurationMS)
	}
	if rec.Sentiment != transcript.SentimentPositive {
		t.Fatalf("expected positive rollup, got %s", rec.Sentiment)
	}
	if len(rec.Transcript) != 2 {
		t.Fatalf("expected full transcript packaged, got %d lines", len(rec.Transcript))
	}

	evs := activity.Events()
	if len(evs) != 1 || evs[0].Name != "call_finalized" || evs[0].SessionID != "s-1" {
		t.Fatalf("expected one call_finalized activity event, got %+v", evs)
	}
}

func TestAppendFailureBuffersAndRetriesSameRecord(t *testing.T) {
	sink := NewMemorySink()
	sink.FailWith(errors.New("disk full"))
	r := NewRecorder(sink)

	err := r.Finalize(testSummary(nil))
	if err == nil {
		t.Fatalf("expected finalize failure")
	}
	if !errorsx.HasReason(err, errorsx.ReasonPersistenceFailure) {
		t.Fatalf("expected persistence failure reason, got %v", err)
	}
	if r.PendingRetries() != 1 {
		t.Fatalf("expected one buffered record, got %d", r.PendingRetries())
	}

	sink.FailWith(nil)
	if err := r.FlushRetries(); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	if r.PendingRetries() != 0 {
		t.Fatalf("expected empty retry buffer, got %d", r.PendingRetries())
	}
	recs := sink.Records()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", len(recs))
	}
}

func TestFlushRetriesStopsAtFirstFailure(t *testing.T) {
	sink := NewMemorySink()
	sink.FailWith(errors.New("unavailable"))
	r := NewRecorder(sink)

	_ = r.Finalize(testSummary(nil))
	_ = r.Finalize(testSummary(nil))
	if r.PendingRetries() != 2 {
		t.Fatalf("expected two buffered records, got %d", r.PendingRetries())
	}

	if err := r.FlushRetries(); err == nil {
		t.Fatalf("expected flush failure while sink is down")
	}
	if r.PendingRetries() != 2 {
		t.Fatalf("failed flush must not lose records, got %d", r.PendingRetries())
	}
}

func TestRollupSentiment(t *testing.T) {
	base := time.Now()
	cases := []struct {
		name  string
		lines []transcript.Line
		want  transcript.Sentiment
	}{
		{"no remote lines", []transcript.Line{{Role: transcript.RoleAgent, Sentiment: transcript.SentimentNeutral}}, transcript.SentimentNeutral},
		{"majority wins", []transcript.Line{
			remoteLine(transcript.SentimentNegative, base),
			remoteLine(transcript.SentimentNegative, base.Add(time.Second)),
			remoteLine(transcript.SentimentPositive, base.Add(2 * time.Second)),
		}, transcript.SentimentNegative},
		{"tie breaks toward latest", []transcript.Line{
			remoteLine(transcript.SentimentNegative, base),
			remoteLine(transcript.SentimentPositive, base.Add(time.Second)),
		}, transcript.SentimentPositive},
		{"agent lines ignored", []transcript.Line{
			{Role: transcript.RoleAgent, Sentiment: transcript.SentimentNeutral},
			{Role: transcript.RoleAgent, Sentiment: transcript.SentimentNeutral},
			remoteLine(transcript.SentimentPositive, base),
		}, transcript.SentimentPositive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RollupSentiment(tc.lines); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestJSONLSinkAppendsParsableLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLSink(&buf)
	rec := CallRecord{ID: "r-1", Agent: "Amihan", Outcome: session.OutcomeDropped, Sentiment: transcript.SentimentNeutral}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("append error: %v", err)
	}
	var parsed CallRecord
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("unparsable line: %v", err)
	}
	if parsed.ID != "r-1" || parsed.Outcome != session.OutcomeDropped {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestAsyncActivityLogDelivers(t *testing.T) {
	inner := NewMemoryActivityLog()
	a := NewAsyncActivityLog(inner, 8)
	a.Record(ActivityEvent{Name: "call_finalized", SessionID: "s-9"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(inner.Events()) == 1 {
			a.Close()
			a.Record(ActivityEvent{Name: "late"})
			if len(inner.Events()) != 1 {
				t.Fatalf("expected no delivery after close")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event never delivered")
}
