package transcript

import "strings"

// Sentiment is a coarse per-line bucket derived from keyword matching.
// It is deterministic, not a judgment call.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var positiveKeywords = []string{
	"yes", "sure", "okay", "ok", "sige", "oo", "salamat", "thanks",
	"pay", "babayaran", "magbabayad", "settle", "agree", "pwede",
}

var negativeKeywords = []string{
	"no", "hindi", "ayaw", "wala", "can't", "cannot", "huwag",
	"stop calling", "harass", "scam", "angry", "galit",
	"complaint", "lawyer", "abogado",
}

// Classify buckets a remote-party utterance by keyword match.
// Negative keywords win over positive ones; no match means neutral.
func Classify(text string) Sentiment {
	t := strings.ToLower(strings.TrimSpace(text))
	if matchesAny(t, negativeKeywords) {
		return SentimentNegative
	}
	if matchesAny(t, positiveKeywords) {
		return SentimentPositive
	}
	return SentimentNeutral
}

func matchesAny(t string, keywords []string) bool {
	words := strings.FieldsFunc(t, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(t, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == kw {
				return true
			}
		}
	}
	return false
}
