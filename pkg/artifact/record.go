// Package artifact turns terminated sessions into immutable archival
// call records and hands them to an append-only persistence sink.
package artifact

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/kolektra/voiceops/pkg/session"
	"github.com/kolektra/voiceops/pkg/transcript"
)

// CallRecord is the archival artifact produced exactly once per
// terminated session. Immutable after creation.
type CallRecord struct {
	ID          string               `json:"id"`
	Agent       string               `json:"agent"`
	ContactID   string               `json:"contact_id"`
	ContactName string               `json:"contact_name"`
	At          time.Time            `json:"at"`
	DurationMS  int64                `json:"duration_ms"`
	Outcome     session.Outcome      `json:"outcome"`
	Sentiment   transcript.Sentiment `json:"sentiment"`
	Notes       string               `json:"notes,omitempty"`
	Transcript  []transcript.Line    `json:"transcript"`
}

// RecordingSink is the append-only persistence boundary. No update or
// delete.
type RecordingSink interface {
	Append(rec CallRecord) error
}

// JSONLSink appends one JSON document per record to a writer.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) Append(rec CallRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}

// MemorySink keeps records in memory, for tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	records []CallRecord
	failErr error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes subsequent Append calls fail until cleared with nil.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemorySink) Append(rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns a snapshot in append order.
func (s *MemorySink) Records() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.records))
	copy(out, s.records)
	return out
}
