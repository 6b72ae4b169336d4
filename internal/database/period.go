package database

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/tuneiq/internal/records"
)

// MakePeriodID creates a period_id from the first and last month.
// If start == end, returns just the month (e.g., "2024-01").
// Otherwise returns a range (e.g., "2024-01..2024-02").
func MakePeriodID(start, end string) string {
	if start == end {
		return start
	}
	return start + ".." + end
}

// PeriodOf returns the period_id covering every month label in recs, or
// "unknown" when no record carries one.
func PeriodOf(recs []records.StreamRecord) string {
	var months []string
	for _, r := range recs {
		if r.Month != "" {
			months = append(months, r.Month)
		}
	}
	if len(months) == 0 {
		return "unknown"
	}
	sort.Strings(months)
	return MakePeriodID(months[0], months[len(months)-1])
}

// FormatPeriodDisplay formats a period_id for human-readable display.
// Single month: "Jan 2024"
// Range: "Jan 2024 - Feb 2024"
func FormatPeriodDisplay(periodID string) string {
	if start, end, ok := strings.Cut(periodID, ".."); ok {
		s, err := time.Parse("2006-01", start)
		if err != nil {
			return periodID
		}
		e, err := time.Parse("2006-01", end)
		if err != nil {
			return periodID
		}
		return fmt.Sprintf("%s - %s", s.Format("Jan 2006"), e.Format("Jan 2006"))
	}

	d, err := time.Parse("2006-01", periodID)
	if err != nil {
		return periodID
	}
	return d.Format("Jan 2006")
}
