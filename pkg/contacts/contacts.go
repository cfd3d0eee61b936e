package contacts

import "context"

// Contact is an immutable snapshot of a person to call, taken at
// queue-build time. It is never mutated mid-call.
type Contact struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	City     string  `json:"city"`
	Province string  `json:"province"`
	Phone    string  `json:"phone"`
}

// Filter narrows a directory listing.
type Filter struct {
	MinAmount float64
	Province  string
	Limit     int
}

// Directory is the read-only source of overdue contact records.
type Directory interface {
	ListOverdue(ctx context.Context, filter Filter) ([]Contact, error)
}
