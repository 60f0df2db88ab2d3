package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cityteam/stats-sub000/internal/export"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/report"
)

// Report output formats selected by ?format=.
const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

type reportParams struct {
	sectionID int64
	active    bool
	format    string
}

func parseReportParams(r *http.Request) (reportParams, error) {
	var p reportParams
	var err error
	if p.sectionID, err = queryID(r, "section", true); err != nil {
		return p, err
	}
	if p.active, err = queryBool(r, "active"); err != nil {
		return p, err
	}
	p.format = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch p.format {
	case "":
		p.format = formatJSON
	case formatJSON, formatCSV, formatXLSX:
	default:
		return p, badRequest("format must be json, csv or xlsx, got %q", p.format)
	}
	return p, nil
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	p, err := parseReportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryRequired(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Reports.Monthly(r.Context(), facilityFrom(r).ID, p.sectionID, month, p.active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReport(w, r, p, month, res)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	p, err := parseReportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw, err := queryRequired(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, badRequest("year must be a number, got %q", raw))
		return
	}
	res, err := s.deps.Reports.Yearly(r.Context(), facilityFrom(r).ID, p.sectionID, year, p.active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReport(w, r, p, raw, res)
}

// writeReport sends res as JSON, or its table as a CSV or XLSX attachment
// named after the facility, section and period.
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, p reportParams, period string, res report.Result) {
	if p.format == formatJSON {
		writeJSON(w, http.StatusOK, res)
		return
	}

	f := facilityFrom(r)
	name := fmt.Sprintf("%s-%d-%s", f.Scope, p.sectionID, period)
	if sec, err := s.deps.Statistics.GetSection(r.Context(), f.ID, p.sectionID, false); err == nil {
		name = fmt.Sprintf("%s-%s-%s", f.Scope, sec.Slug, period)
	}

	records := export.TableRecords(res.Table)
	var buf bytes.Buffer
	var contentType string
	var err error
	switch p.format {
	case formatCSV:
		contentType = export.CSVContentType
		err = export.WriteCSV(&buf, records)
	case formatXLSX:
		contentType = export.XLSXContentType
		err = export.WriteXLSX(&buf, period, records)
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("encode %s report: %w", p.format, err))
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Report exported",
		applog.FieldSectionID, p.sectionID, "format", p.format, "bytes", buf.Len())
	sendAttachment(w, contentType, name+"."+p.format, buf.Bytes())
}

func (s *Server) handleExportCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Statistics.ListAllCategories(r.Context(), facilityFrom(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.CategoryRecords(cats)); err != nil {
		writeError(w, r, fmt.Errorf("encode categories: %w", err))
		return
	}
	sendAttachment(w, export.CSVContentType, facilityFrom(r).Scope+"-categories.csv", buf.Bytes())
}

func (s *Server) handleExportDetails(w http.ResponseWriter, r *http.Request) {
	from, err := queryRequired(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryRequired(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := facilityFrom(r)
	details, err := s.deps.Statistics.ListDetails(r.Context(), f.ID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.DetailRecords(details)); err != nil {
		writeError(w, r, fmt.Errorf("encode details: %w", err))
		return
	}
	sendAttachment(w, export.CSVContentType, fmt.Sprintf("%s-details-%s-%s.csv", f.Scope, from, to), buf.Bytes())
}

func sendAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
