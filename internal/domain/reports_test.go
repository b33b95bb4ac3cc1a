package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-03-01", "2024-03-07")
	require.NoError(t, err)
	assert.Equal(t, 7, r.Days())

	from, to := r.Bounds()
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), to)
}

func TestDateRangeSingleDay(t *testing.T) {
	day := time.Date(2024, 2, 29, 18, 30, 0, 0, time.UTC)
	r, err := NewDateRange(day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Days())
	from, to := r.Bounds()
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestDateRangeRejectsInverted(t *testing.T) {
	_, err := ParseDateRange("2024-03-07", "2024-03-01")
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseDateRange("03/01/2024", "2024-03-01")
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestDateRangeRejectsHugeSpan(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewDateRange(start, start.AddDate(20, 0, 0))
	require.ErrorIs(t, err, ErrInvalidRange)
}
