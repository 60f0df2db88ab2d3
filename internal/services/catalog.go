package services

import (
	"context"

	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
)

// Facilities

func (s *StatisticsService) ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error) {
	return s.repo.ListFacilities(ctx, activeOnly)
}

func (s *StatisticsService) GetFacility(ctx context.Context, id int64) (core.Facility, error) {
	return s.repo.GetFacility(ctx, id)
}

func (s *StatisticsService) CreateFacility(ctx context.Context, f core.Facility) (core.Facility, error) {
	if err := f.Validate(); err != nil {
		return core.Facility{}, err
	}
	return s.repo.CreateFacility(ctx, f)
}

func (s *StatisticsService) UpdateFacility(ctx context.Context, f core.Facility) (core.Facility, error) {
	if err := f.Validate(); err != nil {
		return core.Facility{}, err
	}
	out, err := s.repo.UpdateFacility(ctx, f)
	if err == nil {
		s.invalidate(f.ID)
	}
	return out, err
}

func (s *StatisticsService) DeleteFacility(ctx context.Context, id int64) error {
	if err := s.repo.DeleteFacility(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	logger(ctx).InfoContext(ctx, "Facility deleted", applog.FieldFacilityID, id, applog.FieldOperation, applog.OpDelete)
	return nil
}

// Sections

func (s *StatisticsService) ListSections(ctx context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error) {
	if _, err := s.repo.GetFacility(ctx, facilityID); err != nil {
		return nil, err
	}
	return s.repo.ListSections(ctx, facilityID, activeOnly, withCategories)
}

func (s *StatisticsService) GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error) {
	return s.repo.GetSection(ctx, facilityID, sectionID, withCategories)
}

func (s *StatisticsService) CreateSection(ctx context.Context, sec core.Section) (core.Section, error) {
	if err := sec.Validate(); err != nil {
		return core.Section{}, err
	}
	out, err := s.repo.CreateSection(ctx, sec)
	if err == nil {
		s.invalidate(sec.FacilityID)
	}
	return out, err
}

func (s *StatisticsService) UpdateSection(ctx context.Context, sec core.Section) (core.Section, error) {
	if err := sec.Validate(); err != nil {
		return core.Section{}, err
	}
	out, err := s.repo.UpdateSection(ctx, sec)
	if err == nil {
		s.invalidate(sec.FacilityID)
	}
	return out, err
}

func (s *StatisticsService) DeleteSection(ctx context.Context, facilityID, sectionID int64) error {
	if err := s.repo.DeleteSection(ctx, facilityID, sectionID); err != nil {
		return err
	}
	s.invalidate(facilityID)
	return nil
}

// Categories are addressed through their section, which must belong to
// the facility.

func (s *StatisticsService) ListCategories(ctx context.Context, facilityID, sectionID int64, activeOnly bool) ([]core.Category, error) {
	if _, err := s.repo.GetSection(ctx, facilityID, sectionID, false); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, sectionID, activeOnly)
}

func (s *StatisticsService) GetCategory(ctx context.Context, facilityID, sectionID, categoryID int64) (core.Category, error) {
	if _, err := s.repo.GetSection(ctx, facilityID, sectionID, false); err != nil {
		return core.Category{}, err
	}
	return s.repo.GetCategory(ctx, sectionID, categoryID)
}

func (s *StatisticsService) CreateCategory(ctx context.Context, facilityID int64, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := s.repo.GetSection(ctx, facilityID, c.SectionID, false); err != nil {
		return core.Category{}, err
	}
	out, err := s.repo.CreateCategory(ctx, c)
	if err == nil {
		s.invalidate(facilityID)
	}
	return out, err
}

func (s *StatisticsService) UpdateCategory(ctx context.Context, facilityID int64, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := s.repo.GetSection(ctx, facilityID, c.SectionID, false); err != nil {
		return core.Category{}, err
	}
	out, err := s.repo.UpdateCategory(ctx, c)
	if err == nil {
		s.invalidate(facilityID)
	}
	return out, err
}

func (s *StatisticsService) DeleteCategory(ctx context.Context, facilityID, sectionID, categoryID int64) error {
	if _, err := s.repo.GetSection(ctx, facilityID, sectionID, false); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, sectionID, categoryID); err != nil {
		return err
	}
	s.invalidate(facilityID)
	return nil
}

// ListAllCategories returns every category of every section of a facility.
func (s *StatisticsService) ListAllCategories(ctx context.Context, facilityID int64) ([]core.Category, error) {
	sections, err := s.ListSections(ctx, facilityID, false, true)
	if err != nil {
		return nil, err
	}
	var out []core.Category
	for _, sec := range sections {
		out = append(out, sec.Categories...)
	}
	return out, nil
}
