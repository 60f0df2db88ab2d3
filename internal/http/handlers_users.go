package http

import (
	"net/http"

	"github.com/cityteam/stats-sub000/internal/core"
)

// Every route here sits behind requireSuperuser.

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := s.deps.Users.ListUsers(r.Context(), active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(users))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u core.User
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = 0
	out, err := s.deps.Users.CreateUser(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var u core.User
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	u.ID = id
	out, err := s.deps.Users.UpdateUser(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
