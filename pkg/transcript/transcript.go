package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a dialogue line.
type Role string

const (
	RoleSystem Role = "system"
	RoleAgent  Role = "agent"
	RoleRemote Role = "remote"
)

// Line is one utterance. Immutable once appended; ordering is append order.
type Line struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
	At        time.Time `json:"at"`
}

// Log is an append-only ordered dialogue log. It feeds both the live
// view (via Subscribe) and the archived transcript (via Lines).
type Log struct {
	mu    sync.Mutex
	lines []Line
	subs  []chan Line
}

func NewLog() *Log {
	return &Log{}
}

// Append classifies and appends one line, returning the stored copy.
// Sentiment is derived only for the remote party; agent and system
// lines are tagged neutral.
func (l *Log) Append(role Role, text string) Line {
	sentiment := SentimentNeutral
	if role == RoleRemote {
		sentiment = Classify(text)
	}
	line := Line{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Sentiment: sentiment,
		At:        time.Now(),
	}
	l.mu.Lock()
	l.lines = append(l.lines, line)
	subs := make([]chan Line, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- line:
		default:
		}
	}
	return line
}

// Lines returns a snapshot copy in append order.
func (l *Log) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Subscribe returns a buffered feed of appended lines for the live
// view. Slow consumers miss lines rather than block the session.
func (l *Log) Subscribe() <-chan Line {
	ch := make(chan Line, 64)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}
