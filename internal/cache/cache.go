package cache

import (
	"context"
	"time"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.Report, bool, error)
	Set(ctx context.Context, key string, value *domain.Report, ttl time.Duration) error
}

// reportKeyPrefix carries a layout version; bump it when domain.Report
// changes shape so old payloads are never decoded into the new one.
const reportKeyPrefix = "pos:report:v1:"

// ReportKey identifies a cached report by its inclusive date range,
// namespaced by the kind of period: a single day, a whole calendar month,
// or any other span.
func ReportKey(r domain.DateRange) string {
	switch {
	case r.Days() == 1:
		return reportKeyPrefix + "day:" + r.Start.Format(domain.DateLayout)
	case isCalendarMonth(r):
		return reportKeyPrefix + "month:" + r.Start.Format("2006-01")
	}
	return reportKeyPrefix + "range:" + r.String()
}

func isCalendarMonth(r domain.DateRange) bool {
	return r.Start.Day() == 1 && r.End.AddDate(0, 0, 1).Equal(r.Start.AddDate(0, 1, 0))
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.Report, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.Report, _ time.Duration) error {
	return nil
}
