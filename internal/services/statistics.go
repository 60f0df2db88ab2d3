package services

import (
	"context"
	"fmt"

	"github.com/cityteam/stats-sub000/internal/amqp"
	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/storage"
)

// EventPublisher announces summary changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishSummaryUpdated(ctx context.Context, msg amqp.SummaryUpdated) error
}

// ReportInvalidator drops memoized reports of a facility.
type ReportInvalidator interface {
	Invalidate(facilityID int64)
}

// StatisticsService owns the facility catalog and the entered statistics.
// Every write invalidates the facility's memoized reports; summary writes
// are also published when an event publisher is configured.
type StatisticsService struct {
	repo    storage.Repository
	events  EventPublisher
	reports ReportInvalidator
}

func NewStatisticsService(repo storage.Repository, events EventPublisher, reports ReportInvalidator) *StatisticsService {
	return &StatisticsService{repo: repo, events: events, reports: reports}
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentStatistics)
}

func (s *StatisticsService) invalidate(facilityID int64) {
	if s.reports != nil {
		s.reports.Invalidate(facilityID)
	}
}

// WriteSummary validates and stores the values of one section on one date.
// Every key must name an enterable category of that section.
func (s *StatisticsService) WriteSummary(ctx context.Context, facilityID int64, sum core.Summary) (core.Summary, error) {
	if err := sum.Validate(); err != nil {
		return core.Summary{}, err
	}
	section, err := s.repo.GetSection(ctx, facilityID, sum.SectionID, true)
	if err != nil {
		return core.Summary{}, err
	}
	enterable := make(map[int64]bool, len(section.Categories))
	for _, c := range section.Categories {
		enterable[c.ID] = c.Enterable()
	}
	for _, id := range sum.CategoryIDs() {
		if !enterable[id] {
			return core.Summary{}, fmt.Errorf("%w: category %d is not an enterable category of section %d", core.ErrInvalidSummary, id, sum.SectionID)
		}
	}

	stored, err := s.repo.WriteSummary(ctx, sum)
	if err != nil {
		return core.Summary{}, fmt.Errorf("write summary: %w", err)
	}
	s.invalidate(facilityID)

	log := logger(ctx)
	log.InfoContext(ctx, "Summary written",
		applog.NewFields().WithSummary(facilityID, sum.SectionID, sum.Date, len(sum.Values)).WithOperation(applog.OpWrite).ToSlice()...)

	if err := s.publish(ctx, amqp.NewSummaryUpdated(facilityID, sum.SectionID, sum.Date)); err != nil {
		// The write succeeded; the export will catch up on the next change.
		log.ErrorContext(ctx, "Failed to publish summary.updated",
			applog.NewFields().WithSummary(facilityID, sum.SectionID, sum.Date, len(sum.Values)).WithError(err).ToSlice()...)
	}
	return stored, nil
}

func (s *StatisticsService) publish(ctx context.Context, msg amqp.SummaryUpdated) error {
	if s.events == nil {
		logger(ctx).DebugContext(ctx, "No event publisher configured, skipping summary.updated")
		return nil
	}
	return s.events.PublishSummaryUpdated(ctx, msg)
}

// ReadSummary returns the summary of a section of the facility with every
// enterable category keyed.
func (s *StatisticsService) ReadSummary(ctx context.Context, facilityID, sectionID int64, date string) (core.Summary, error) {
	if _, err := core.ParseDate(date); err != nil {
		return core.Summary{}, fmt.Errorf("%w: date %q", core.ErrValidation, date)
	}
	if _, err := s.repo.GetSection(ctx, facilityID, sectionID, false); err != nil {
		return core.Summary{}, err
	}
	return s.repo.ReadSummary(ctx, sectionID, date)
}

func (s *StatisticsService) ListSummaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListSummaries(ctx, q)
}

func (s *StatisticsService) ListDetails(ctx context.Context, facilityID int64, from, to string) ([]core.Detail, error) {
	q := core.SummaryQuery{FacilityID: facilityID, From: from, To: to}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListDetails(ctx, facilityID, from, to)
}
