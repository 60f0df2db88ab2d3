// Package storage defines the persistence ports of the statistics service
// and their SQLite implementation.
package storage

import (
	"context"

	"github.com/cityteam/stats-sub000/internal/core"
)

type FacilityRepository interface {
	ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error)
	GetFacility(ctx context.Context, id int64) (core.Facility, error)
	CreateFacility(ctx context.Context, f core.Facility) (core.Facility, error)
	UpdateFacility(ctx context.Context, f core.Facility) (core.Facility, error)
	DeleteFacility(ctx context.Context, id int64) error
}

type SectionRepository interface {
	// ListSections returns the facility's sections in ordinal order. With
	// withCategories every section carries all of its categories.
	ListSections(ctx context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error)
	GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error)
	CreateSection(ctx context.Context, s core.Section) (core.Section, error)
	UpdateSection(ctx context.Context, s core.Section) (core.Section, error)
	DeleteSection(ctx context.Context, facilityID, sectionID int64) error
}

type CategoryRepository interface {
	ListCategories(ctx context.Context, sectionID int64, activeOnly bool) ([]core.Category, error)
	GetCategory(ctx context.Context, sectionID, categoryID int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, sectionID, categoryID int64) error
}

type SummaryRepository interface {
	// WriteSummary stores every non-nil value and removes the detail of
	// every nil one, then returns the stored summary.
	WriteSummary(ctx context.Context, s core.Summary) (core.Summary, error)
	// ReadSummary keys every Detail category of the section, nil where
	// nothing was entered.
	ReadSummary(ctx context.Context, sectionID int64, date string) (core.Summary, error)
	// ListSummaries builds summaries from stored details. Only entered
	// values are keyed. With q.Monthly the values are summed per month and
	// each summary is dated YYYY-MM.
	ListSummaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error)
	ListDetails(ctx context.Context, facilityID int64, from, to string) ([]core.Detail, error)
}

type UserRepository interface {
	// ListUsers and GetUser never return password hashes.
	ListUsers(ctx context.Context, activeOnly bool) ([]core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	// GetUserByUsername returns the user with Password set to the stored hash.
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	// CreateUser and UpdateUser expect Password to already be hashed. An
	// empty Password on update keeps the stored hash.
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) (core.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Repository is everything a backend must provide.
type Repository interface {
	FacilityRepository
	SectionRepository
	CategoryRepository
	SummaryRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
