package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/report"
)

func mealTable(t *testing.T) report.Table {
	t.Helper()
	cats := []core.Category{
		{ID: 1, SectionID: 9, Ordinal: 1, Slug: "Breakfast", Type: core.CategoryDetail, Active: true},
		{ID: 2, SectionID: 9, Ordinal: 2, Slug: "Lunch", Type: core.CategoryDetail, Active: true},
	}
	res, err := report.Build(9, cats, report.Range{Granularity: report.Daily, From: "2024-01-01", To: "2024-01-02"}, []core.Summary{
		{SectionID: 9, Date: "2024-01-01", Values: map[int64]*int64{1: core.Int64(10), 2: core.Int64(12)}},
		{SectionID: 9, Date: "2024-01-02", Values: map[int64]*int64{1: core.Int64(8)}},
	})
	require.NoError(t, err)
	return res.Table
}

func TestTableCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, TableRecords(mealTable(t))))

	want := strings.Join([]string{
		"Category,2024-01-01,2024-01-02,Total",
		"Breakfast,10,8,18",
		"Lunch,12,,12",
		"Totals,22,8,30",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestCategoryAndDetailCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, CategoryRecords([]core.Category{
		{ID: 3, SectionID: 9, Ordinal: 2, Slug: "Lunch", Active: true, Notes: "noon, weekdays"},
	})))
	assert.Equal(t, "id,active,notes,ordinal,sectionId,slug\n3,true,\"noon, weekdays\",2,9,Lunch\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, DetailRecords([]core.Detail{
		{ID: 1, SectionID: 9, CategoryID: 3, Date: "2024-01-05", Value: 0},
	})))
	assert.Equal(t, "sectionId,categoryId,date,value\n9,3,2024-01-05,0\n", buf.String())
}

func TestTableXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "pdx-meals-2024-01", TableRecords(mealTable(t))))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"pdx-meals-2024-01"}, f.GetSheetList())
	rows, err := f.GetRows("pdx-meals-2024-01")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Category", "2024-01-01", "2024-01-02", "Total"}, rows[0])
	assert.Equal(t, "12", rows[2][1])
	assert.Equal(t, "", rows[2][2], "no data stays blank")

	typ, err := f.GetCellType("pdx-meals-2024-01", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "counts are stored as numbers")
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pdx-meals-2024-01", "pdx-meals-2024-01"},
		{"a/b:c", "a-b-c"},
		{"", "Sheet1"},
		{"'quoted'", "quoted"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SheetName(tt.in), tt.in)
	}
}
