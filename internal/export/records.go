// Package export renders report tables and entity dumps as CSV and XLSX.
package export

import (
	"strconv"

	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/report"
)

// CategoryColumn heads the label column of a report table.
const CategoryColumn = "Category"

// TotalColumn heads the row total column of a report table.
const TotalColumn = "Total"

var (
	CategoryHeader = []string{"id", "active", "notes", "ordinal", "sectionId", "slug"}
	DetailHeader   = []string{"sectionId", "categoryId", "date", "value"}
)

// TableRecords lays a report table out as a header, one record per
// category and the totals record. Blank cells stay empty strings.
func TableRecords(t report.Table) [][]string {
	out := make([][]string, 0, len(t.Rows)+2)
	header := make([]string, 0, len(t.Columns)+2)
	header = append(header, CategoryColumn)
	header = append(header, t.Columns...)
	header = append(header, TotalColumn)
	out = append(out, header)
	for _, r := range t.Rows {
		out = append(out, rowRecord(r))
	}
	return append(out, rowRecord(t.Totals))
}

func rowRecord(r report.TableRow) []string {
	rec := make([]string, 0, len(r.Cells)+2)
	rec = append(rec, r.Label)
	rec = append(rec, r.Texts()...)
	return append(rec, strconv.FormatInt(r.Total, 10))
}

func CategoryRecords(categories []core.Category) [][]string {
	out := make([][]string, 0, len(categories)+1)
	out = append(out, CategoryHeader)
	for _, c := range categories {
		out = append(out, []string{
			strconv.FormatInt(c.ID, 10),
			strconv.FormatBool(c.Active),
			c.Notes,
			strconv.Itoa(c.Ordinal),
			strconv.FormatInt(c.SectionID, 10),
			c.Slug,
		})
	}
	return out
}

func DetailRecords(details []core.Detail) [][]string {
	out := make([][]string, 0, len(details)+1)
	out = append(out, DetailHeader)
	for _, d := range details {
		out = append(out, []string{
			strconv.FormatInt(d.SectionID, 10),
			strconv.FormatInt(d.CategoryID, 10),
			d.Date,
			strconv.FormatInt(d.Value, 10),
		})
	}
	return out
}
