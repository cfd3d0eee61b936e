package persona

import (
	"strings"
	"testing"

	"github.com/kolektra/voiceops/pkg/contacts"
	"github.com/kolektra/voiceops/pkg/region"
)

func TestParseTactic(t *testing.T) {
	cases := map[string]Tactic{
		"firm":       TacticFirm,
		" FIRM ":     TacticFirm,
		"negotiator": TacticNegotiator,
		"empathic":   TacticEmpathic,
		"":           TacticEmpathic,
		"garbage":    TacticEmpathic,
	}
	for in, want := range cases {
		if got := ParseTactic(in); got != want {
			t.Fatalf("ParseTactic(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInstructionsSeedsAllInputs(t *testing.T) {
	p := Persona{Name: "Marites", Traits: "Patient, detail oriented.", Language: "Tagalog", Status: StatusTrained}
	c := contacts.Contact{Name: "Ana Reyes", Amount: 12500, Currency: "PHP", City: "Cebu City", Province: "Cebu"}
	prof := region.Resolve(c.City, c.Province)

	got := Instructions(p, prof, c, TacticFirm)
	for _, want := range []string{"Marites", "Ana Reyes", "12500.00 PHP", "Cebuano", prof.Greeting, "direct and professional"} {
		if !strings.Contains(got, want) {
			t.Fatalf("instructions missing %q:\n%s", want, got)
		}
	}
}
