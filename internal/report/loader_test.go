package report

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cityteam/stats-sub000/internal/core"
)

type fakeSections struct {
	sections []core.Section
	err      error
}

func (f fakeSections) Sections(context.Context, int64, bool) ([]core.Section, error) {
	return f.sections, f.err
}

// gatedSummaries blocks each call until the test releases the gate for
// the call's From date.
type gatedSummaries struct {
	mu      sync.Mutex
	byFrom  map[string][]core.Summary
	gates   map[string]chan struct{}
	started chan string
	queries []core.SummaryQuery
}

func newGatedSummaries() *gatedSummaries {
	return &gatedSummaries{
		byFrom:  map[string][]core.Summary{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 8),
	}
}

func (g *gatedSummaries) gate(from string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[from]
	if !ok {
		ch = make(chan struct{})
		g.gates[from] = ch
	}
	return ch
}

func (g *gatedSummaries) Summaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error) {
	g.mu.Lock()
	g.queries = append(g.queries, q)
	out := g.byFrom[q.From]
	g.mu.Unlock()

	g.started <- q.From
	select {
	case <-g.gate(q.From):
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func mealSection() core.Section {
	return core.Section{
		ID: 9, FacilityID: 1, Slug: "meals", Active: true,
		Categories: append(mealCategories(), core.Category{ID: 5, SectionID: 9, Ordinal: 0, Slug: "Meals", Type: core.CategoryHeader}),
	}
}

func TestLoaderDiscardsStaleResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	sums := newGatedSummaries()
	sums.byFrom["2024-01-01"] = []core.Summary{{SectionID: 9, Date: "2024-01-03", Values: map[int64]*int64{1: core.Int64(1)}}}
	sums.byFrom["2024-02-01"] = []core.Summary{{SectionID: 9, Date: "2024-02-03", Values: map[int64]*int64{1: core.Int64(2)}}}

	l := NewLoader(fakeSections{sections: []core.Section{mealSection()}}, sums)
	jan, err := MonthRange("2024-01")
	require.NoError(t, err)
	feb, err := MonthRange("2024-02")
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), Request{FacilityID: 1, SectionID: 9, Range: jan})
		firstErr <- err
	}()
	require.Equal(t, "2024-01-01", <-sums.started)

	secondDone := make(chan Loaded, 1)
	go func() {
		loaded, err := l.Load(context.Background(), Request{FacilityID: 1, SectionID: 9, Range: feb})
		assert.NoError(t, err)
		secondDone <- loaded
	}()
	require.Equal(t, "2024-02-01", <-sums.started)

	close(sums.gate("2024-02-01"))
	second := <-secondDone
	assert.EqualValues(t, 2, second.Seq)

	close(sums.gate("2024-01-01"))
	assert.True(t, errors.Is(<-firstErr, ErrStale))

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 2, latest.Seq)
	assert.Equal(t, "2024-02-01", latest.Result.Table.Columns[0])
	assert.Equal(t, "2", latest.Result.Table.Rows[0].Cells[2].String())
}

func TestLoaderQueriesAndHeaders(t *testing.T) {
	sums := newGatedSummaries()
	close(sums.gate("2024-01-01"))
	l := NewLoader(fakeSections{sections: []core.Section{mealSection()}}, sums)

	loaded, err := l.Load(context.Background(), Request{FacilityID: 1, SectionID: 9, Range: YearRange(2024)})
	require.NoError(t, err)

	require.Len(t, sums.queries, 1)
	assert.Equal(t, core.SummaryQuery{FacilityID: 1, From: "2024-01-01", To: "2024-12-31", SectionID: 9, Monthly: true}, sums.queries[0])

	// Header categories never become rows.
	require.Len(t, loaded.Result.Table.Rows, 2)
	assert.Equal(t, "Breakfast", loaded.Result.Table.Rows[0].Label)
	assert.Len(t, loaded.Result.Table.Columns, 12)
}

func TestLoaderUnknownSection(t *testing.T) {
	l := NewLoader(fakeSections{sections: []core.Section{mealSection()}}, newGatedSummaries())
	r, err := MonthRange("2024-01")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), Request{FacilityID: 1, SectionID: 404, Range: r})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, ok := l.Latest()
	assert.False(t, ok)
}

func TestLoaderPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLoader(fakeSections{err: boom}, newGatedSummaries())
	r, err := MonthRange("2024-01")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), Request{FacilityID: 1, SectionID: 9, Range: r})
	assert.ErrorIs(t, err, boom)
}
