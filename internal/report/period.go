// Package report turns flat lists of summaries into the row/column shapes
// needed by monthly and yearly reports and their charts.
//
// The flow is: compute the column axis (Dates or Months), index categories
// and columns, fold summaries into a Grid, then present the grid as a Table
// or a Chart. Every step is a pure function of its inputs.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/cityteam/stats-sub000/internal/core"
)

// ErrInvalidRange is returned for malformed bounds or a start after the end.
var ErrInvalidRange = errors.New("invalid range")

// Granularity selects the width of one report column.
type Granularity int

const (
	Daily Granularity = iota
	Monthly
)

func (g Granularity) String() string {
	switch g {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

func (g Granularity) layout() string {
	if g == Monthly {
		return core.MonthLayout
	}
	return core.DateLayout
}

func (g Granularity) step(t time.Time) time.Time {
	if g == Monthly {
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

// Range is an inclusive span of dates (YYYY-MM-DD) or months (YYYY-MM).
type Range struct {
	Granularity Granularity
	From        string
	To          string
}

// MonthRange returns the daily range covering one YYYY-MM month.
func MonthRange(month string) (Range, error) {
	from, to, err := core.MonthBounds(month)
	if err != nil {
		return Range{}, fmt.Errorf("%w: month %q", ErrInvalidRange, month)
	}
	return Range{Granularity: Daily, From: from, To: to}, nil
}

// YearRange returns the monthly range covering one calendar year.
func YearRange(year int) Range {
	return Range{
		Granularity: Monthly,
		From:        fmt.Sprintf("%04d-01", year),
		To:          fmt.Sprintf("%04d-12", year),
	}
}

// Columns expands the range into its ordered, gap-free column labels.
func (r Range) Columns() ([]string, error) {
	return expand(r.Granularity, r.From, r.To)
}

// DateBounds returns the first and last day covered by the range.
func (r Range) DateBounds() (from, to string, err error) {
	if r.Granularity == Daily {
		if _, err := Dates(r.From, r.To); err != nil {
			return "", "", err
		}
		return r.From, r.To, nil
	}
	if _, err := Months(r.From, r.To); err != nil {
		return "", "", err
	}
	from, _, _ = core.MonthBounds(r.From)
	_, to, _ = core.MonthBounds(r.To)
	return from, to, nil
}

// Dates returns every day from from to to inclusive.
func Dates(from, to string) ([]string, error) {
	return expand(Daily, from, to)
}

// Months returns every month from from to to inclusive, rolling over years.
func Months(from, to string) ([]string, error) {
	return expand(Monthly, from, to)
}

// MonthsFrom returns n consecutive months starting at start.
func MonthsFrom(start string, n int) ([]string, error) {
	t, err := time.Parse(core.MonthLayout, start)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: %q for %d months", ErrInvalidRange, start, n)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, t.Format(core.MonthLayout))
		t = t.AddDate(0, 1, 0)
	}
	return out, nil
}

func expand(g Granularity, from, to string) ([]string, error) {
	layout := g.layout()
	start, err := time.Parse(layout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q is not %s", ErrInvalidRange, from, layout)
	}
	end, err := time.Parse(layout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q is not %s", ErrInvalidRange, to, layout)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}
	var out []string
	for t := start; !t.After(end); t = g.step(t) {
		out = append(out, t.Format(layout))
	}
	return out, nil
}
