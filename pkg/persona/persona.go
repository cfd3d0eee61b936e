package persona

import (
	"fmt"
	"strings"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/region"
)

// Status is the persona training lifecycle.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusTrained Status = "trained"
)

// Persona is a named voice/behavior profile. Created at configuration
// time and selected, never mutated, per session.
type Persona struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Traits   string `json:"traits"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Status   Status `json:"status"`
}

// Tactic is the closed set of collection approaches a session can be
// seeded with.
type Tactic string

const (
	TacticEmpathic   Tactic = "empathic"
	TacticFirm       Tactic = "firm"
	TacticNegotiator Tactic = "negotiator"
)

// ParseTactic maps free-form config input to a Tactic, defaulting to
// empathic.
func ParseTactic(v string) Tactic {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(TacticFirm):
		return TacticFirm
	case string(TacticNegotiator):
		return TacticNegotiator
	default:
		return TacticEmpathic
	}
}

var tacticGuidance = map[Tactic]string{
	TacticEmpathic:   "Be warm and understanding. Acknowledge hardship before discussing payment options.",
	TacticFirm:       "Be direct and professional. State the overdue amount and the consequences of non-payment clearly.",
	TacticNegotiator: "Offer structured options: partial payment, installment plans, or a settlement date.",
}

// Instructions builds the system instruction that seeds a dialogue
// session: persona traits, the contact's regional profile, and the
// selected tactic.
func Instructions(p Persona, prof region.Profile, c contacts.Contact, tactic Tactic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a collections agent. %s\n", p.Name, strings.TrimSpace(p.Traits))
	fmt.Fprintf(&b, "Speak %s with a %s flavor. Open with: %q\n", p.Language, prof.Dialect, prof.Greeting)
	fmt.Fprintf(&b, "You are calling %s about an overdue balance of %.2f %s.\n", c.Name, c.Amount, c.Currency)
	b.WriteString(tacticGuidance[tactic])
	return b.String()
}
