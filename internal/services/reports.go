package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cityteam/stats-sub000/internal/cache"
	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/report"
	"github.com/cityteam/stats-sub000/internal/storage"
)

// ReportSource is the subset of the repository reports are built from.
type ReportSource interface {
	GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error)
	ListSummaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error)
}

var _ ReportSource = (storage.Repository)(nil)

// ReportService builds monthly and yearly section reports and memoizes
// them per facility until a write invalidates them. Cached results are
// shared between callers and must be treated as read-only.
type ReportService struct {
	source ReportSource
	cache  cache.Cache[report.Result]
	group  singleflight.Group

	// generations counts invalidations per facility. A build only caches
	// its result if no invalidation happened while it ran.
	mu          sync.Mutex
	generations map[int64]uint64
}

// NewReportService memoizes in c. A nil c disables memoization.
func NewReportService(source ReportSource, c cache.Cache[report.Result]) *ReportService {
	if c == nil {
		c = cache.NewLRUCache[report.Result](0, time.Minute)
	}
	return &ReportService{source: source, cache: c, generations: make(map[int64]uint64)}
}

// Monthly reports one column per day of a YYYY-MM month.
func (s *ReportService) Monthly(ctx context.Context, facilityID, sectionID int64, month string, activeOnly bool) (report.Result, error) {
	r, err := report.MonthRange(month)
	if err != nil {
		return report.Result{}, err
	}
	return s.Build(ctx, facilityID, sectionID, r, activeOnly)
}

// Yearly reports one column per month of a calendar year, from the
// monthly rollup of the stored details.
func (s *ReportService) Yearly(ctx context.Context, facilityID, sectionID int64, year int, activeOnly bool) (report.Result, error) {
	if year < 1 || year > 9999 {
		return report.Result{}, fmt.Errorf("%w: year %d", report.ErrInvalidRange, year)
	}
	return s.Build(ctx, facilityID, sectionID, report.YearRange(year), activeOnly)
}

// Build returns the report of a section of the facility over r.
func (s *ReportService) Build(ctx context.Context, facilityID, sectionID int64, r report.Range, activeOnly bool) (report.Result, error) {
	from, to, err := r.DateBounds()
	if err != nil {
		return report.Result{}, err
	}
	key := cacheKey(facilityID, sectionID, r, activeOnly)
	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	// Builds started before and after a write never share a flight.
	gen := s.generation(facilityID)
	flight := fmt.Sprintf("%s#%d", key, gen)
	// The shared build outlives any single caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		res, err := s.build(buildCtx, facilityID, sectionID, r, from, to, activeOnly)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(facilityID, gen, key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return report.Result{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return report.Result{}, out.Err
		}
		if out.Shared {
			applog.FromContext(ctx).WithComponent(applog.ComponentReport).DebugContext(ctx, "Shared in-flight report build", "key", key)
		}
		return out.Val.(report.Result), nil
	}
}

func (s *ReportService) generation(facilityID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[facilityID]
}

// storeIfCurrent caches res unless the facility was invalidated since gen.
func (s *ReportService) storeIfCurrent(facilityID int64, gen uint64, key string, res report.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[facilityID] != gen {
		return
	}
	s.cache.Set(key, res)
}

func (s *ReportService) build(ctx context.Context, facilityID, sectionID int64, r report.Range, from, to string, activeOnly bool) (report.Result, error) {
	start := time.Now()
	var (
		section   core.Section
		summaries []core.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		section, err = s.source.GetSection(gctx, facilityID, sectionID, true)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = s.source.ListSummaries(gctx, core.SummaryQuery{
			FacilityID: facilityID,
			From:       from,
			To:         to,
			SectionID:  sectionID,
			Monthly:    r.Granularity == report.Monthly,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return report.Result{}, err
	}

	res, err := report.Build(section.ID, report.ReportedCategories(section.Categories, activeOnly), r, summaries)
	if err != nil {
		return report.Result{}, err
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentReport).InfoContext(ctx, "Report built",
		applog.NewFields().
			WithReport(facilityID, sectionID, r.From, r.To).
			WithOperation(applog.OpBuild).
			ToSlice()...,
	)
	applog.FromContext(ctx).DebugContext(ctx, "Report build timing",
		"granularity", r.Granularity.String(),
		"rows", len(res.Table.Rows),
		"summaries", len(summaries),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// Invalidate drops every memoized report of the facility.
func (s *ReportService) Invalidate(facilityID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[facilityID]++
	s.cache.DeletePrefix(facilityPrefix(facilityID))
}

func facilityPrefix(facilityID int64) string {
	return fmt.Sprintf("%d/", facilityID)
}

func cacheKey(facilityID, sectionID int64, r report.Range, activeOnly bool) string {
	return fmt.Sprintf("%s%d/%s/%s/%t", facilityPrefix(facilityID), sectionID, r.From, r.To, activeOnly)
}
