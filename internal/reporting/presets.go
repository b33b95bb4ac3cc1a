package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
)

const (
	PresetDaily   = "daily"
	PresetWeekly  = "weekly"
	PresetMonthly = "monthly"
)

// ResolveRange turns a report preset plus optional explicit dates into a
// range. Explicit dates win over the preset; if either end is still unknown
// the last 30 days are used.
func ResolveRange(preset, startDate, endDate string, now time.Time) (domain.DateRange, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var start, end time.Time
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", PresetDaily:
		start, end = today, today
	case PresetWeekly:
		start, end = today.AddDate(0, 0, -7), today
	case PresetMonthly:
		start, end = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today
	case "custom":
	default:
		return domain.DateRange{}, fmt.Errorf("%w: unknown report type %q", domain.ErrInvalidRange, preset)
	}

	if s := strings.TrimSpace(startDate); s != "" {
		parsed, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("%w: start date %q", domain.ErrInvalidRange, s)
		}
		start = parsed
	}
	if e := strings.TrimSpace(endDate); e != "" {
		parsed, err := time.Parse(domain.DateLayout, e)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("%w: end date %q", domain.ErrInvalidRange, e)
		}
		end = parsed
	}

	if start.IsZero() || end.IsZero() {
		start, end = today.AddDate(0, 0, -30), today
	}
	return domain.NewDateRange(start, end)
}
