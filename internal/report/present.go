package report

import (
	"strconv"

	"github.com/cityteam/stats-sub000/internal/core"
)

// TotalsLabel names the trailing totals row of a table.
const TotalsLabel = "Totals"

// String renders a cell for tables: blank for no data, digits otherwise.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.N, 10)
}

// MarshalJSON writes null for no data so charts do not draw a zero.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, v.N, 10), nil
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*v = Value{N: n, Valid: true}
	return nil
}

type (
	TableRow struct {
		CategoryID int64   `json:"categoryId,omitempty"`
		Label      string  `json:"label"`
		Cells      []Value `json:"cells"`
		Total      int64   `json:"total"`
	}

	Table struct {
		Columns []string   `json:"columns"`
		Rows    []TableRow `json:"rows"`
		Totals  TableRow   `json:"totals"`
	}

	Series struct {
		CategoryID int64   `json:"categoryId"`
		Name       string  `json:"name"`
		Points     []Value `json:"points"`
	}

	Chart struct {
		Labels []string `json:"labels"`
		Series []Series `json:"series"`
	}

	// Result bundles both presentations of one aggregation.
	Result struct {
		SectionID   int64  `json:"sectionId"`
		Granularity string `json:"granularity"`
		Table       Table  `json:"table"`
		Chart       Chart  `json:"chart"`
	}
)

// Texts renders the row's cells with String.
func (r TableRow) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

// Table converts the grid into labelled rows plus a totals row.
func (g *Grid) Table() Table {
	t := Table{
		Columns: g.Columns(),
		Rows:    make([]TableRow, 0, len(g.categories)),
	}
	for i, c := range g.categories {
		t.Rows = append(t.Rows, TableRow{
			CategoryID: c.ID,
			Label:      c.Slug,
			Cells:      append([]Value(nil), g.cells[i]...),
			Total:      g.rowTotals[i],
		})
	}
	t.Totals = TableRow{Label: TotalsLabel, Cells: make([]Value, len(g.columns)), Total: g.GrandTotal()}
	for j := range g.columns {
		t.Totals.Cells[j] = g.ColumnTotal(j)
	}
	return t
}

// Chart converts the grid into one series per category on the column axis.
func (g *Grid) Chart() Chart {
	c := Chart{
		Labels: g.Columns(),
		Series: make([]Series, 0, len(g.categories)),
	}
	for i, cat := range g.categories {
		c.Series = append(c.Series, Series{
			CategoryID: cat.ID,
			Name:       cat.Slug,
			Points:     append([]Value(nil), g.cells[i]...),
		})
	}
	return c
}

// Build aggregates the summaries of a section over a range and returns both
// presentations. The only error is ErrInvalidRange.
func Build(sectionID int64, categories []core.Category, r Range, summaries []core.Summary) (Result, error) {
	columns, err := r.Columns()
	if err != nil {
		return Result{}, err
	}
	grid := Aggregate(sectionID, categories, columns, r.Granularity, summaries)
	return Result{
		SectionID:   sectionID,
		Granularity: r.Granularity.String(),
		Table:       grid.Table(),
		Chart:       grid.Chart(),
	}, nil
}
