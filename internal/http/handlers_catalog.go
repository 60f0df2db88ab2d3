package http

import (
	"net/http"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
)

// Facilities

// handleListFacilities returns the facilities the caller holds any grant on.
func (s *Server) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := s.deps.Statistics.ListFacilities(r.Context(), active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := principal(r)
	visible := make([]core.Facility, 0, len(all))
	for _, f := range all {
		if auth.CanRead(p, f) == nil {
			visible = append(visible, f)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (s *Server) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireSuperuser(principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	var f core.Facility
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	f.ID = 0
	out, err := s.deps.Statistics.CreateFacility(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, facilityFrom(r))
}

func (s *Server) handleUpdateFacility(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireSuperuser(principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	var f core.Facility
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	f.ID = facilityFrom(r).ID
	out, err := s.deps.Statistics.UpdateFacility(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteFacility(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireSuperuser(principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Statistics.DeleteFacility(r.Context(), facilityFrom(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sections

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	withCategories, err := queryBool(r, "withCategories")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sections, err := s.deps.Statistics.ListSections(r.Context(), facilityFrom(r).ID, active, withCategories)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sections))
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sec, err := s.deps.Statistics.GetSection(r.Context(), facilityFrom(r).ID, id, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	var sec core.Section
	if err := decodeJSON(w, r, &sec); err != nil {
		writeError(w, r, err)
		return
	}
	sec.ID, sec.FacilityID, sec.Categories = 0, f.ID, nil
	out, err := s.deps.Statistics.CreateSection(r.Context(), sec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sec core.Section
	if err := decodeJSON(w, r, &sec); err != nil {
		writeError(w, r, err)
		return
	}
	sec.ID, sec.FacilityID, sec.Categories = id, f.ID, nil
	out, err := s.deps.Statistics.UpdateSection(r.Context(), sec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Statistics.DeleteSection(r.Context(), f.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.deps.Statistics.ListCategories(r.Context(), facilityFrom(r).ID, sectionID, active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cats))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "categoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Statistics.GetCategory(r.Context(), facilityFrom(r).ID, sectionID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c.ID, c.SectionID = 0, sectionID
	out, err := s.deps.Statistics.CreateCategory(r.Context(), f.ID, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "categoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c.ID, c.SectionID = id, sectionID
	out, err := s.deps.Statistics.UpdateCategory(r.Context(), f.ID, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	f := facilityFrom(r)
	if err := auth.CanAdmin(principal(r), f); err != nil {
		writeError(w, r, err)
		return
	}
	sectionID, err := idParam(r, "sectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "categoryID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Statistics.DeleteCategory(r.Context(), f.ID, sectionID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
