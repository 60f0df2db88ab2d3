package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
)

type facilityKey struct{}

// authenticate requires a valid bearer token, stores its principal in the
// request context and swaps in a logger that carries the username. A
// "log:<level>" scope token sets that logger's minimum level.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", core.ErrUnauthorized))
			return
		}
		p, err := s.deps.Tokens.Verify(token)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Rejected bearer token",
				applog.NewFields().WithError(err).WithClientIP(s.detector.ExtractClientIP(r)).ToSlice()...)
			writeError(w, r, err)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		logger := applog.FromContext(ctx).With(applog.FieldUsername, p.Username)
		if lvl, ok := p.Scope.LogLevel(); ok {
			logger = logger.WithLevel(lvl)
		}
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func (s *Server) requireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireSuperuser(principal(r)); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loadFacility resolves {facilityID}, checks that the caller may read it
// and stores it in the request context.
func (s *Server) loadFacility(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "facilityID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		f, err := s.deps.Statistics.GetFacility(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := auth.CanRead(principal(r), f); err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), facilityKey{}, f)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldFacilityID, f.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func facilityFrom(r *http.Request) core.Facility {
	f, _ := r.Context().Value(facilityKey{}).(core.Facility)
	return f
}
