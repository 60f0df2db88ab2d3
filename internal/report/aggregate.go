package report

import (
	"github.com/cityteam/stats-sub000/internal/core"
)

// Value is a report cell: an entered number, or no data at all.
type Value struct {
	N     int64
	Valid bool
}

// Grid is the folded category x column matrix. It is never modified after
// Aggregate returns; accessors hand out copies.
type Grid struct {
	categories []core.Category
	columns    []string
	cells      [][]Value
	rowTotals  []int64
}

// Aggregate folds the summaries of one section into a grid whose rows are
// the categories (ordinal order) and whose columns are the given labels.
//
// Summaries of other sections, unknown categories, dates outside the
// columns and nil values are skipped. When two summaries land on the same
// cell the later one in iteration order wins.
func Aggregate(sectionID int64, categories []core.Category, columns []string, g Granularity, summaries []core.Summary) *Grid {
	ix := NewIndex(categories, columns, g)
	cats := ix.Categories()

	grid := &Grid{
		categories: cats,
		columns:    append([]string(nil), columns...),
		cells:      make([][]Value, len(cats)),
		rowTotals:  make([]int64, len(cats)),
	}
	for i := range grid.cells {
		grid.cells[i] = make([]Value, len(columns))
	}

	for _, s := range summaries {
		if s.SectionID != sectionID {
			continue
		}
		j, ok := ix.Column(s.Date)
		if !ok {
			continue
		}
		for categoryID, v := range s.Values {
			if v == nil {
				continue
			}
			i, ok := ix.Category(categoryID)
			if !ok {
				continue
			}
			grid.cells[i][j] = Value{N: *v, Valid: true}
		}
	}

	// Totals come from the final cells so a duplicate summary cannot count twice.
	for i, row := range grid.cells {
		for _, c := range row {
			if c.Valid {
				grid.rowTotals[i] += c.N
			}
		}
	}
	return grid
}

// Rows is the number of categories.
func (g *Grid) Rows() int {
	return len(g.categories)
}

// Columns returns a copy of the column labels.
func (g *Grid) Columns() []string {
	return append([]string(nil), g.columns...)
}

// Categories returns a copy of the row categories.
func (g *Grid) Categories() []core.Category {
	return append([]core.Category(nil), g.categories...)
}

// Cell returns the value at row i, column j.
func (g *Grid) Cell(i, j int) Value {
	return g.cells[i][j]
}

// RowTotal returns the sum of the entered values of row i.
func (g *Grid) RowTotal(i int) int64 {
	return g.rowTotals[i]
}

// ColumnTotal sums column j. The result has no data when no row has any.
func (g *Grid) ColumnTotal(j int) Value {
	var total Value
	for i := range g.cells {
		if c := g.cells[i][j]; c.Valid {
			total.N += c.N
			total.Valid = true
		}
	}
	return total
}

// GrandTotal sums every row total.
func (g *Grid) GrandTotal() int64 {
	var total int64
	for _, t := range g.rowTotals {
		total += t
	}
	return total
}
