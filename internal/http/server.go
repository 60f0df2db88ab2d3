// Package http serves the statistics REST API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/middleware/ratelimit"
	"github.com/cityteam/stats-sub000/internal/middleware/security"
	"github.com/cityteam/stats-sub000/internal/middleware/trace"
	"github.com/cityteam/stats-sub000/internal/report"
)

// StatisticsService is the catalog and summary surface the handlers use.
type StatisticsService interface {
	ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error)
	GetFacility(ctx context.Context, id int64) (core.Facility, error)
	CreateFacility(ctx context.Context, f core.Facility) (core.Facility, error)
	UpdateFacility(ctx context.Context, f core.Facility) (core.Facility, error)
	DeleteFacility(ctx context.Context, id int64) error

	ListSections(ctx context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error)
	GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error)
	CreateSection(ctx context.Context, s core.Section) (core.Section, error)
	UpdateSection(ctx context.Context, s core.Section) (core.Section, error)
	DeleteSection(ctx context.Context, facilityID, sectionID int64) error

	ListCategories(ctx context.Context, facilityID, sectionID int64, activeOnly bool) ([]core.Category, error)
	GetCategory(ctx context.Context, facilityID, sectionID, categoryID int64) (core.Category, error)
	CreateCategory(ctx context.Context, facilityID int64, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, facilityID int64, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, facilityID, sectionID, categoryID int64) error
	ListAllCategories(ctx context.Context, facilityID int64) ([]core.Category, error)

	WriteSummary(ctx context.Context, facilityID int64, s core.Summary) (core.Summary, error)
	ReadSummary(ctx context.Context, facilityID, sectionID int64, date string) (core.Summary, error)
	ListSummaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error)
	ListDetails(ctx context.Context, facilityID int64, from, to string) ([]core.Detail, error)
}

type ReportService interface {
	Monthly(ctx context.Context, facilityID, sectionID int64, month string, activeOnly bool) (report.Result, error)
	Yearly(ctx context.Context, facilityID, sectionID int64, year int, activeOnly bool) (report.Result, error)
}

type UserService interface {
	ListUsers(ctx context.Context, activeOnly bool) ([]core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) (core.User, error)
	DeleteUser(ctx context.Context, id int64) error
	Authenticate(ctx context.Context, username, password string) (auth.Token, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer is anything with a current entry count, such as the report cache.
type Sizer interface {
	Size() int
}

// Deps are the collaborators of the server.
type Deps struct {
	Statistics StatisticsService
	Reports    ReportService
	Users      UserService
	Tokens     TokenVerifier
	Storage    Pinger
	// ReportCache is optional and only feeds /readyz and /metrics.
	ReportCache Sizer
}

// Options tune the middleware stack.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	deps Deps

	logger   *applog.Logger
	trace    *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	rlCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		deps:     deps,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		trace:    trace.NewMiddleware(logger, detector.ExtractClientIP),
		limiter:  ratelimit.NewLimiter(rlCfg),
		detector: detector,
		headers:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		started:  time.Now(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.trace.Middleware)
	r.Use(s.headers.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/openapi.yaml", s.handleOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP))
		r.Post("/oauth/token", s.handleToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/facilities", func(r chi.Router) {
				r.Get("/", s.handleListFacilities)
				r.Post("/", s.handleCreateFacility)

				r.Route("/{facilityID}", func(r chi.Router) {
					r.Use(s.loadFacility)
					r.Get("/", s.handleGetFacility)
					r.Put("/", s.handleUpdateFacility)
					r.Delete("/", s.handleDeleteFacility)

					r.Route("/sections", func(r chi.Router) {
						r.Get("/", s.handleListSections)
						r.Post("/", s.handleCreateSection)
						r.Route("/{sectionID}", func(r chi.Router) {
							r.Get("/", s.handleGetSection)
							r.Put("/", s.handleUpdateSection)
							r.Delete("/", s.handleDeleteSection)
							r.Get("/categories", s.handleListCategories)
							r.Post("/categories", s.handleCreateCategory)
							r.Get("/categories/{categoryID}", s.handleGetCategory)
							r.Put("/categories/{categoryID}", s.handleUpdateCategory)
							r.Delete("/categories/{categoryID}", s.handleDeleteCategory)
						})
					})

					r.Get("/summaries", s.handleListSummaries)
					r.Get("/summaries/{sectionID}/{date}", s.handleReadSummary)
					r.Put("/summaries/{sectionID}/{date}", s.handleWriteSummary)

					r.Get("/reports/monthly", s.handleMonthlyReport)
					r.Get("/reports/yearly", s.handleYearlyReport)

					r.Get("/export/categories.csv", s.handleExportCategories)
					r.Get("/export/details.csv", s.handleExportDetails)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(s.requireSuperuser)
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{userID}", s.handleGetUser)
				r.Put("/{userID}", s.handleUpdateUser)
				r.Delete("/{userID}", s.handleDeleteUser)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed"})
	})
	return r
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the rate limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.logger.InfoContext(ctx, "HTTP server stopped", applog.FieldOperation, applog.OpShutdown)
	})
	return err
}
