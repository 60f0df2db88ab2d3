package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDates(t *testing.T) {
	got, err := Dates("2024-02-27", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, got)

	got, err = Dates("2023-12-31", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-31", "2024-01-01"}, got)

	got, err = Dates("2024-01-05", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-05"}, got)
}

func TestMonths(t *testing.T) {
	got, err := Months("2024-11", "2025-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01", "2025-02"}, got)
}

func TestMonthsFromRollsOverYear(t *testing.T) {
	got, err := MonthsFrom("2024-11", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01"}, got)

	_, err = MonthsFrom("2024-11", 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestInvalidRanges(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		months   bool
	}{
		{"malformed start", "2024-1-01", "2024-01-31", false},
		{"malformed end", "2024-01-01", "yesterday", false},
		{"inverted", "2024-02-01", "2024-01-31", false},
		{"month as date", "2024-01", "2024-02", false},
		{"inverted months", "2025-01", "2024-12", true},
		{"bad month", "2024-13", "2025-01", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.months {
				_, err = Months(tc.from, tc.to)
			} else {
				_, err = Dates(tc.from, tc.to)
			}
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestConsecutiveRangesConcatenate(t *testing.T) {
	splits := []struct{ a, b, c string }{
		{"2024-01-01", "2024-01-15", "2024-02-10"},
		{"2023-12-20", "2023-12-31", "2024-01-03"},
		{"2024-02-28", "2024-02-28", "2024-03-01"},
	}
	for _, s := range splits {
		left, err := Dates(s.a, s.b)
		require.NoError(t, err)
		bNext := mustNextDay(t, s.b)
		right, err := Dates(bNext, s.c)
		require.NoError(t, err)
		whole, err := Dates(s.a, s.c)
		require.NoError(t, err)
		assert.Equal(t, whole, append(left, right...), "split %v", s)
	}
}

func mustNextDay(t *testing.T, d string) string {
	t.Helper()
	day, err := time.Parse("2006-01-02", d)
	require.NoError(t, err)
	return day.AddDate(0, 0, 1).Format("2006-01-02")
}

func TestRangeHelpers(t *testing.T) {
	r, err := MonthRange("2024-02")
	require.NoError(t, err)
	cols, err := r.Columns()
	require.NoError(t, err)
	assert.Len(t, cols, 29)

	y := YearRange(2024)
	cols, err = y.Columns()
	require.NoError(t, err)
	assert.Len(t, cols, 12)
	from, to, err := y.DateBounds()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", from)
	assert.Equal(t, "2024-12-31", to)

	_, err = MonthRange("2024-2")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
