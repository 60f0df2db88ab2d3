package report

import (
	"github.com/cityteam/stats-sub000/internal/core"
)

// Index resolves category ids and summary dates to grid positions.
// A miss is an expected outcome: summaries may name categories that have
// since been deactivated or dates outside the reported columns.
type Index struct {
	granularity Granularity
	categories  []core.Category
	rows        map[int64]int
	columns     map[string]int
}

// NewIndex orders categories by ordinal and indexes them together with the
// column labels. The inputs are copied.
func NewIndex(categories []core.Category, columns []string, g Granularity) *Index {
	cats := append([]core.Category(nil), categories...)
	core.SortCategories(cats)

	ix := &Index{
		granularity: g,
		categories:  cats,
		rows:        make(map[int64]int, len(cats)),
		columns:     make(map[string]int, len(columns)),
	}
	for i, c := range cats {
		ix.rows[c.ID] = i
	}
	for j, col := range columns {
		ix.columns[col] = j
	}
	return ix
}

// Category returns the row of a category id.
func (ix *Index) Category(id int64) (int, bool) {
	i, ok := ix.rows[id]
	return i, ok
}

// Column returns the column of a summary date. For monthly columns a full
// YYYY-MM-DD date is matched by its YYYY-MM prefix.
func (ix *Index) Column(date string) (int, bool) {
	if ix.granularity == Monthly && len(date) > len(core.MonthLayout) {
		date = date[:len(core.MonthLayout)]
	}
	j, ok := ix.columns[date]
	return j, ok
}

// Categories returns the indexed categories in row order.
func (ix *Index) Categories() []core.Category {
	return append([]core.Category(nil), ix.categories...)
}
