// Package sheets defines where monthly reports are exported to.
package sheets

import (
	"context"
	"strings"
)

// ReportExporter writes a block of records to a named tab, replacing
// whatever the tab held before and creating it when missing.
type ReportExporter interface {
	ExportReport(ctx context.Context, tab string, records [][]string) (ref string, err error)
}

// TabName names the tab holding one section's report for one month,
// e.g. "pdx-meals-2024-01".
func TabName(facilityScope, sectionSlug, month string) string {
	slug := strings.Join(strings.Fields(sectionSlug), "_")
	return facilityScope + "-" + slug + "-" + month
}
