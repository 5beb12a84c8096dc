package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/MaxiNavarro97/proyectAR/pkg/models"
)

// Range keeps the estimates between From and To, both inclusive and written
// as "YYYY-MM" or "YYYY". Empty bounds are open.
type Range struct {
	From string
	To   string
}

// Filter turns r into a FilterFunc. It returns nil when both bounds are empty.
func (r Range) Filter() (FilterFunc, error) {
	if r.From == "" && r.To == "" {
		return nil, nil
	}
	from, err := parseBound(r.From, false)
	if err != nil {
		return nil, fmt.Errorf("invalid from %q: %w", r.From, err)
	}
	to, err := parseBound(r.To, true)
	if err != nil {
		return nil, fmt.Errorf("invalid to %q: %w", r.To, err)
	}
	if to < from {
		return nil, fmt.Errorf("empty range %s..%s", r.From, r.To)
	}
	return func(e models.Estimate) bool {
		k := e.Year*12 + e.Month - 1
		return k >= from && k <= to
	}, nil
}

// parseBound returns a month index. A bare year covers January for the lower
// bound and December for the upper one.
func parseBound(s string, upper bool) (int, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" && upper:
		return int(^uint(0) >> 1), nil
	case s == "":
		return 0, nil
	case len(s) == 4:
		t, err := time.Parse("2006", s)
		if err != nil {
			return 0, err
		}
		if upper {
			return t.Year()*12 + 11, nil
		}
		return t.Year() * 12, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, err
	}
	return t.Year()*12 + int(t.Month()) - 1, nil
}
