package contacts

import (
	"context"
	"strings"
	"sync"
)

// MemoryDirectory is an in-memory Directory, seeded at startup.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records []Contact
}

func NewMemoryDirectory(seed []Contact) *MemoryDirectory {
	records := make([]Contact, len(seed))
	copy(records, seed)
	return &MemoryDirectory{records: records}
}

func (d *MemoryDirectory) ListOverdue(ctx context.Context, filter Filter) ([]Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Contact, 0, len(d.records))
	for _, c := range d.records {
		if c.Amount < filter.MinAmount {
			continue
		}
		if filter.Province != "" && !strings.EqualFold(c.Province, filter.Province) {
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
