package alerts

import (
	"fmt"
	"strings"
)

// Placement is the outcome of one submitted group of orders.
type Placement struct {
	Label  string
	Placed int
	Total  int
}

// CycleSummary renders a one-message report of a finished cycle. Groups with
// nothing to submit are left out.
func CycleSummary(symbol string, placements []Placement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s cycle done", symbol)
	for _, p := range placements {
		if p.Total == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: placed %d/%d", p.Label, p.Placed, p.Total)
	}
	return b.String()
}

func CycleFailed(symbol string, err error) string {
	return fmt.Sprintf("%s cycle failed: %v", symbol, err)
}
