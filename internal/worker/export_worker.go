package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cityteam/stats-sub000/internal/amqp"
	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/export"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/report"
	"github.com/cityteam/stats-sub000/internal/sheets"
)

// Catalog resolves the names a sheet tab is built from.
type Catalog interface {
	ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error)
	GetFacility(ctx context.Context, id int64) (core.Facility, error)
	ListSections(ctx context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error)
	GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error)
}

// MonthlyReporter builds the report of one section for one month.
type MonthlyReporter interface {
	Monthly(ctx context.Context, facilityID, sectionID int64, month string, activeOnly bool) (report.Result, error)
}

// ExportWorker keeps one sheet tab per section and month in step with the
// entered statistics.
type ExportWorker struct {
	catalog Catalog
	reports MonthlyReporter
	sheets  sheets.ReportExporter
	timeout time.Duration
}

func NewExportWorker(catalog Catalog, reports MonthlyReporter, exporter sheets.ReportExporter, timeout time.Duration) *ExportWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExportWorker{
		catalog: catalog,
		reports: reports,
		sheets:  exporter,
		timeout: timeout,
	}
}

// HandleSummaryUpdated re-exports the month the message falls in. Messages
// about facilities or sections that no longer exist are acknowledged
// without exporting.
func (w *ExportWorker) HandleSummaryUpdated(ctx context.Context, msg amqp.SummaryUpdated) error {
	slog.InfoContext(ctx, "Processing summary.updated",
		"facility_id", msg.FacilityID,
		"section_id", msg.SectionID,
		"date", msg.Date)

	err := w.ExportMonth(ctx, msg.FacilityID, msg.SectionID, msg.Month())
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Skipping export of deleted facility or section",
			"facility_id", msg.FacilityID,
			"section_id", msg.SectionID,
			"error", err)
		return nil
	}
	return err
}

// ExportMonth writes the monthly report of a section to its tab.
func (w *ExportWorker) ExportMonth(ctx context.Context, facilityID, sectionID int64, month string) error {
	facility, err := w.catalog.GetFacility(ctx, facilityID)
	if err != nil {
		return fmt.Errorf("get facility: %w", err)
	}
	section, err := w.catalog.GetSection(ctx, facilityID, sectionID, false)
	if err != nil {
		return fmt.Errorf("get section: %w", err)
	}
	return w.export(ctx, facility, section, month)
}

func (w *ExportWorker) export(ctx context.Context, facility core.Facility, section core.Section, month string) error {
	res, err := w.reports.Monthly(ctx, facility.ID, section.ID, month, false)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	tab := sheets.TabName(facility.Scope, section.Slug, month)
	exportCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	ref, err := w.sheets.ExportReport(exportCtx, tab, export.TableRecords(res.Table))
	if err != nil {
		return fmt.Errorf("export %s: %w", tab, err)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentWorker).InfoContext(ctx, "Successfully exported report",
		applog.FieldSheetTab, tab,
		"ref", ref,
		"rows", len(res.Table.Rows),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ExportAll exports the month for every active section of every active
// facility. The worker runs it at startup to recover from messages lost
// while it was down. Failures are logged and counted, not returned, so one
// broken section does not block the rest.
func (w *ExportWorker) ExportAll(ctx context.Context, month string) (exported, failed int, err error) {
	if _, err := core.ParseMonth(month); err != nil {
		return 0, 0, fmt.Errorf("%w: month %q", report.ErrInvalidRange, month)
	}
	facilities, err := w.catalog.ListFacilities(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("list facilities: %w", err)
	}
	for _, f := range facilities {
		sections, err := w.catalog.ListSections(ctx, f.ID, true, false)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list sections", "facility_id", f.ID, "error", err)
			failed++
			continue
		}
		for _, s := range sections {
			if err := ctx.Err(); err != nil {
				return exported, failed, err
			}
			if err := w.export(ctx, f, s, month); err != nil {
				slog.ErrorContext(ctx, "Failed to export section",
					"facility_id", f.ID,
					"section_id", s.ID,
					"month", month,
					"error", err)
				failed++
				continue
			}
			exported++
		}
	}
	slog.InfoContext(ctx, "Startup export completed",
		"month", month,
		"exported", exported,
		"errors", failed)
	return exported, failed, nil
}
