package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
)

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
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
	sectionID, err := queryID(r, "section", false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	monthly, err := queryBool(r, "monthly")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sums, err := s.deps.Statistics.ListSummaries(r.Context(), core.SummaryQuery{
		FacilityID: facilityFrom(r).ID,
		From:       from,
		To:         to,
		SectionID:  sectionID,
		Monthly:    monthly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sums))
}

func (s *Server) handleReadSummary(w http.ResponseWriter, r *http.Request) {
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.deps.Statistics.ReadSummary(r.Context(), facilityFrom(r).ID, sectionID, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleWriteSummary stores the values of one section on one day. The path
// names the section and date; a body that names different ones is rejected.
func (s *Server) handleWriteSummary(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date := chi.URLParam(r, "date")
	sec, err := s.deps.Statistics.GetSection(r.Context(), f.ID, sectionID, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.CanWriteSummary(principal(r), f, sec); err != nil {
		writeError(w, r, err)
		return
	}

	var sum core.Summary
	if err := decodeJSON(w, r, &sum); err != nil {
		writeError(w, r, err)
		return
	}
	if sum.SectionID != 0 && sum.SectionID != sectionID {
		writeError(w, r, badRequest("body section %d does not match path section %d", sum.SectionID, sectionID))
		return
	}
	if sum.Date != "" && sum.Date != date {
		writeError(w, r, badRequest("body date %q does not match path date %q", sum.Date, date))
		return
	}
	sum.SectionID, sum.Date = sectionID, date

	out, err := s.deps.Statistics.WriteSummary(r.Context(), f.ID, sum)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
