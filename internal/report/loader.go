package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cityteam/stats-sub000/internal/core"
)

// ErrStale is returned by Loader.Load when a newer load was issued while
// this one was in flight. Its result is discarded.
var ErrStale = errors.New("stale report load")

// SectionFetcher returns the sections of a facility with nested categories.
type SectionFetcher interface {
	Sections(ctx context.Context, facilityID int64, activeOnly bool) ([]core.Section, error)
}

// SummaryFetcher returns the summaries matching a query.
type SummaryFetcher interface {
	Summaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error)
}

// Request names one report to load.
type Request struct {
	FacilityID int64
	SectionID  int64
	Range      Range
	ActiveOnly bool
}

// Loaded is a result tagged with the sequence number of the load that made it.
type Loaded struct {
	Seq     uint64
	Request Request
	Result  Result
}

// Loader fetches and aggregates reports, keeping only the result of the
// most recently issued load.
type Loader struct {
	sections  SectionFetcher
	summaries SummaryFetcher

	issued atomic.Uint64

	mu     sync.Mutex
	latest *Loaded
}

func NewLoader(sections SectionFetcher, summaries SummaryFetcher) *Loader {
	return &Loader{sections: sections, summaries: summaries}
}

// Load issues a new sequence number, fetches and aggregates. If another
// Load was issued before this one finishes, it returns ErrStale and leaves
// Latest untouched.
func (l *Loader) Load(ctx context.Context, req Request) (Loaded, error) {
	seq := l.issued.Add(1)

	from, to, err := req.Range.DateBounds()
	if err != nil {
		return Loaded{}, err
	}
	sections, err := l.sections.Sections(ctx, req.FacilityID, false)
	if err != nil {
		return Loaded{}, fmt.Errorf("fetch sections: %w", err)
	}
	var section *core.Section
	for i := range sections {
		if sections[i].ID == req.SectionID {
			section = &sections[i]
			break
		}
	}
	if section == nil {
		return Loaded{}, fmt.Errorf("section %d: %w", req.SectionID, core.ErrNotFound)
	}
	summaries, err := l.summaries.Summaries(ctx, core.SummaryQuery{
		FacilityID: req.FacilityID,
		From:       from,
		To:         to,
		SectionID:  req.SectionID,
		Monthly:    req.Range.Granularity == Monthly,
	})
	if err != nil {
		return Loaded{}, fmt.Errorf("fetch summaries: %w", err)
	}

	res, err := Build(req.SectionID, ReportedCategories(section.Categories, req.ActiveOnly), req.Range, summaries)
	if err != nil {
		return Loaded{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.issued.Load() {
		return Loaded{}, ErrStale
	}
	loaded := Loaded{Seq: seq, Request: req, Result: res}
	l.latest = &loaded
	return loaded, nil
}

// Latest returns the result of the newest load that completed, if any.
func (l *Loader) Latest() (Loaded, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return Loaded{}, false
	}
	return *l.latest, true
}

// ReportedCategories keeps the enterable categories, optionally only the
// active ones, in ordinal order.
func ReportedCategories(categories []core.Category, activeOnly bool) []core.Category {
	out := make([]core.Category, 0, len(categories))
	for _, c := range categories {
		if !c.Enterable() {
			continue
		}
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	core.SortCategories(out)
	return out
}
