package artifact

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kolektra/voiceops/pkg/errorsx"
	"github.com/kolektra/voiceops/pkg/logging"
	"github.com/kolektra/voiceops/pkg/session"
	"github.com/kolektra/voiceops/pkg/transcript"
)

// Recorder builds the CallRecord for a terminated session and appends
// it to the persistence sink. A failed append keeps the record in a
// retry buffer instead of dropping it; FlushRetries re-appends the
// same records.
type Recorder struct {
	sink     RecordingSink
	activity ActivityObserver
	logger   *slog.Logger

	mu    sync.Mutex
	retry []CallRecord
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithActivity attaches a fire-and-forget activity feed.
func WithActivity(obs ActivityObserver) Option {
	return func(r *Recorder) { r.activity = obs }
}

func NewRecorder(sink RecordingSink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:   sink,
		logger: logging.NewComponentLogger(slog.Default(), "artifact_recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Finalize builds and persists the record for one terminated session.
// The session guarantees this runs exactly once per call; on sink
// failure the record is retained for retry and a recoverable error is
// returned.
func (r *Recorder) Finalize(s session.Summary) error {
	rec := CallRecord{
		ID:          uuid.NewString(),
		Agent:       s.Persona,
		ContactID:   s.Contact.ID,
		ContactName: s.Contact.Name,
		At:          s.EndedAt,
		DurationMS:  s.Duration.Milliseconds(),
		Outcome:     s.Outcome,
		Sentiment:   RollupSentiment(s.Lines),
		Transcript:  s.Lines,
	}

	if r.activity != nil {
		r.activity.Record(ActivityEvent{
			Name:      "call_finalized",
			Time:      s.EndedAt,
			SessionID: s.ID,
			ContactID: s.Contact.ID,
			Outcome:   string(s.Outcome),
			Fields: map[string]any{
				"duration_ms": s.Duration.Milliseconds(),
				"sentiment":   string(rec.Sentiment),
				"lines":       len(s.Lines),
			},
		})
	}

	if err := r.sink.Append(rec); err != nil {
		r.mu.Lock()
		r.retry = append(r.retry, rec)
		pending := len(r.retry)
		r.mu.Unlock()
		r.logger.Error("record_append_failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
			slog.Int("pending_retries", pending))
		return errorsx.Wrap(err, errorsx.ReasonPersistenceFailure)
	}

	r.logger.Info("record_persisted",
		slog.String("session_id", s.ID),
		slog.String("outcome", string(s.Outcome)),
		slog.String("sentiment", string(rec.Sentiment)))
	return nil
}

// FlushRetries re-appends buffered records in order. It stops at the
// first failure, keeping that record and everything after it buffered.
func (r *Recorder) FlushRetries() error {
	r.mu.Lock()
	pending := r.retry
	r.retry = nil
	r.mu.Unlock()

	for i, rec := range pending {
		if err := r.sink.Append(rec); err != nil {
			r.mu.Lock()
			r.retry = append(pending[i:], r.retry...)
			r.mu.Unlock()
			return errorsx.Wrap(err, errorsx.ReasonPersistenceFailure)
		}
	}
	return nil
}

// PendingRetries reports records awaiting a successful re-append.
func (r *Recorder) PendingRetries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retry)
}

// RollupSentiment buckets a whole call from its per-line tags:
// majority vote over the counterparty's lines, ties broken toward the
// most recent tied bucket. Calls with no counterparty lines are
// neutral.
func RollupSentiment(lines []transcript.Line) transcript.Sentiment {
	counts := map[transcript.Sentiment]int{}
	for _, line := range lines {
		if line.Role != transcript.RoleRemote {
			continue
		}
		counts[line.Sentiment]++
	}
	if len(counts) == 0 {
		return transcript.SentimentNeutral
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	tied := map[transcript.Sentiment]bool{}
	for sent, n := range counts {
		if n == max {
			tied[sent] = true
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].Role != transcript.RoleRemote {
			continue
		}
		if tied[lines[i].Sentiment] {
			return lines[i].Sentiment
		}
	}
	return transcript.SentimentNeutral
}
