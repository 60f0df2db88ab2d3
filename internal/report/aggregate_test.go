package report

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityteam/stats-sub000/internal/core"
)

func mealCategories() []core.Category {
	// Deliberately out of ordinal order.
	return []core.Category{
		{ID: 2, SectionID: 9, Ordinal: 2, Slug: "Lunch", Type: core.CategoryDetail, Active: true},
		{ID: 1, SectionID: 9, Ordinal: 1, Slug: "Breakfast", Type: core.CategoryDetail, Active: true},
	}
}

func TestAggregateBreakfastLunchScenario(t *testing.T) {
	dates := []string{"2024-01-01", "2024-01-02"}
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(10), 2: nil}},
	}

	table := Aggregate(9, mealCategories(), dates, Daily, summaries).Table()

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Breakfast", table.Rows[0].Label)
	assert.Equal(t, []string{"10", ""}, table.Rows[0].Texts())
	assert.EqualValues(t, 10, table.Rows[0].Total)

	assert.Equal(t, "Lunch", table.Rows[1].Label)
	assert.Equal(t, []string{"", ""}, table.Rows[1].Texts())
	assert.EqualValues(t, 0, table.Rows[1].Total)

	assert.Equal(t, TotalsLabel, table.Totals.Label)
	assert.Equal(t, []string{"10", ""}, table.Totals.Texts())
	assert.EqualValues(t, 10, table.Totals.Total)
}

func TestAggregateZeroIsNotBlank(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-02", Values: map[int64]*int64{2: core.Int64(0)}},
	}
	table := Aggregate(9, mealCategories(), []string{"2024-01-01", "2024-01-02"}, Daily, summaries).Table()
	assert.Equal(t, []string{"", "0"}, table.Rows[1].Texts())
	assert.Equal(t, []string{"", "0"}, table.Totals.Texts())
}

func TestAggregateSkipsUnresolvableReferences(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(3), 77: core.Int64(100)}},
		{SectionID: 9, Date: "2023-12-31", Values: map[int64]*int64{1: core.Int64(50)}},
		{SectionID: 8, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(60)}},
	}
	var grid *Grid
	require.NotPanics(t, func() {
		grid = Aggregate(9, mealCategories(), []string{"2024-01-01"}, Daily, summaries)
	})
	table := grid.Table()
	for _, row := range table.Rows {
		assert.NotEqual(t, int64(77), row.CategoryID)
	}
	assert.EqualValues(t, 3, table.Rows[0].Total)
	assert.EqualValues(t, 3, table.Totals.Total)
}

func TestAggregateDuplicateSummaryLastWins(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(4)}},
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(7)}},
	}
	grid := Aggregate(9, mealCategories(), []string{"2024-01-01"}, Daily, summaries)
	assert.Equal(t, Value{N: 7, Valid: true}, grid.Cell(0, 0))
	assert.EqualValues(t, 7, grid.RowTotal(0))
}

func TestAggregateNilDoesNotClearEarlierValue(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(4)}},
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: nil}},
	}
	grid := Aggregate(9, mealCategories(), []string{"2024-01-01"}, Daily, summaries)
	assert.Equal(t, Value{N: 4, Valid: true}, grid.Cell(0, 0))
}

func TestAggregateMonthlyMatchesByPrefix(t *testing.T) {
	months := []string{"2024-01", "2024-02"}
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01", Values: map[int64]*int64{1: core.Int64(31)}},
		{SectionID: 9, Date: "2024-02-15", Values: map[int64]*int64{2: core.Int64(5)}},
		{SectionID: 9, Date: "2025-01", Values: map[int64]*int64{1: core.Int64(99)}},
	}
	table := Aggregate(9, mealCategories(), months, Monthly, summaries).Table()
	assert.Equal(t, []string{"31", ""}, table.Rows[0].Texts())
	assert.Equal(t, []string{"", "5"}, table.Rows[1].Texts())
	assert.EqualValues(t, 36, table.Totals.Total)
}

func TestTableProperties(t *testing.T) {
	dates, err := Dates("2024-03-01", "2024-03-10")
	require.NoError(t, err)
	cats := append(mealCategories(), core.Category{ID: 3, SectionID: 9, Ordinal: 3, Slug: "Dinner", Type: core.CategoryDetail})

	var summaries []core.Summary
	for i, d := range dates {
		values := map[int64]*int64{}
		if i%2 == 0 {
			values[1] = core.Int64(int64(i * 3))
		}
		if i%3 == 0 {
			values[2] = core.Int64(int64(i + 1))
		} else {
			values[2] = nil
		}
		values[3] = core.Int64(int64(10 - i))
		summaries = append(summaries, core.Summary{SectionID: 9, Date: d, Values: values})
	}

	table := Aggregate(9, cats, dates, Daily, summaries).Table()

	for _, row := range table.Rows {
		var sum int64
		for _, c := range row.Cells {
			if c.Valid {
				sum += c.N
			}
		}
		assert.Equal(t, row.Total, sum, "row %s", row.Label)
	}
	for j := range dates {
		var col int64
		for _, row := range table.Rows {
			col += row.Cells[j].N
		}
		assert.Equal(t, col, table.Totals.Cells[j].N, "column %d", j)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(10), 2: core.Int64(2)}},
		{SectionID: 9, Date: "2024-01-02", Values: map[int64]*int64{2: nil}},
	}
	r := Range{Granularity: Daily, From: "2024-01-01", To: "2024-01-03"}
	first, err := Build(9, mealCategories(), r, summaries)
	require.NoError(t, err)
	second, err := Build(9, mealCategories(), r, summaries)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("results differ (-first +second):\n%s", diff)
	}
}

func TestAggregateDoesNotAliasInputs(t *testing.T) {
	cats := mealCategories()
	cols := []string{"2024-01-01"}
	grid := Aggregate(9, cats, cols, Daily, nil)
	cats[0].Slug = "changed"
	cols[0] = "changed"
	table := grid.Table()
	assert.Equal(t, "Breakfast", table.Rows[0].Label)
	assert.Equal(t, "Lunch", table.Rows[1].Label)
	assert.Equal(t, []string{"2024-01-01"}, table.Columns)

	table.Rows[0].Cells = append(table.Rows[0].Cells, Value{N: 1, Valid: true})
	assert.Len(t, grid.Table().Rows[0].Cells, 1)
}

func TestChartUsesNullForMissing(t *testing.T) {
	summaries := []core.Summary{
		{SectionID: 9, Date: "2024-01-02", Values: map[int64]*int64{1: core.Int64(0)}},
	}
	res, err := Build(9, mealCategories(), Range{Granularity: Daily, From: "2024-01-01", To: "2024-01-02"}, summaries)
	require.NoError(t, err)

	require.Len(t, res.Chart.Series, 2)
	assert.Equal(t, "Breakfast", res.Chart.Series[0].Name)
	b, err := json.Marshal(res.Chart.Series[0].Points)
	require.NoError(t, err)
	assert.JSONEq(t, `[null, 0]`, string(b))
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, res.Chart.Labels)
}

func TestValueJSONRoundTrip(t *testing.T) {
	var vs []Value
	require.NoError(t, json.Unmarshal([]byte(`[null, 0, 12]`), &vs))
	assert.Equal(t, []Value{{}, {N: 0, Valid: true}, {N: 12, Valid: true}}, vs)
}

func TestBuildInvalidRange(t *testing.T) {
	_, err := Build(9, mealCategories(), Range{Granularity: Daily, From: "2024-02-01", To: "2024-01-01"}, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuildEmptyReport(t *testing.T) {
	res, err := Build(9, nil, YearRange(2024), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Table.Rows)
	assert.Len(t, res.Table.Totals.Cells, 12)
	assert.Equal(t, "monthly", res.Granularity)
}

func TestReportedCategories(t *testing.T) {
	cats := []core.Category{
		{ID: 1, Ordinal: 3, Type: core.CategoryDetail, Active: true},
		{ID: 2, Ordinal: 1, Type: core.CategoryHeader, Active: true},
		{ID: 3, Ordinal: 2, Type: core.CategoryDetail, Active: false},
	}
	all := ReportedCategories(cats, false)
	require.Len(t, all, 2)
	assert.EqualValues(t, 3, all[0].ID)
	assert.EqualValues(t, 1, all[1].ID)

	active := ReportedCategories(cats, true)
	require.Len(t, active, 1)
	assert.EqualValues(t, 1, active[0].ID)
}
