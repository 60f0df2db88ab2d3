package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityteam/stats-sub000/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seed creates a facility with one section holding a header, Breakfast and Lunch.
func seed(t *testing.T, repo *SQLiteRepository) (core.Facility, core.Section, []core.Category) {
	t.Helper()
	ctx := context.Background()

	f, err := repo.CreateFacility(ctx, core.Facility{Name: "Portland Men's Shelter", Scope: "pdx", Active: true})
	require.NoError(t, err)
	s, err := repo.CreateSection(ctx, core.Section{FacilityID: f.ID, Ordinal: 1, Slug: "meals", Scope: "meals", Active: true})
	require.NoError(t, err)

	var cats []core.Category
	for _, c := range []core.Category{
		{SectionID: s.ID, Ordinal: 1, Slug: "Meals", Type: core.CategoryHeader, Active: true},
		{SectionID: s.ID, Ordinal: 2, Slug: "Breakfast", Type: core.CategoryDetail, Active: true},
		{SectionID: s.ID, Ordinal: 3, Slug: "Lunch", Type: core.CategoryDetail, Active: true},
	} {
		created, err := repo.CreateCategory(ctx, c)
		require.NoError(t, err)
		cats = append(cats, created)
	}
	return f, s, cats
}

func TestFacilityCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	f, err := repo.CreateFacility(ctx, core.Facility{Name: "North", Scope: "north", Active: true, City: "Portland"})
	require.NoError(t, err)
	assert.NotZero(t, f.ID)
	assert.Equal(t, "Portland", f.City)

	_, err = repo.CreateFacility(ctx, core.Facility{Name: "Other", Scope: "north"})
	assert.ErrorIs(t, err, core.ErrConflict)

	f.Active = false
	f.Name = "North Campus"
	updated, err := repo.UpdateFacility(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "North Campus", updated.Name)

	active, err := repo.ListFacilities(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := repo.ListFacilities(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteFacility(ctx, f.ID))
	_, err = repo.GetFacility(ctx, f.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteFacility(ctx, f.ID), core.ErrNotFound)
}

func TestSectionOrdinalConflictAndScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, s, _ := seed(t, repo)

	_, err := repo.CreateSection(ctx, core.Section{FacilityID: f.ID, Ordinal: s.Ordinal, Slug: "other", Scope: "other"})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = repo.GetSection(ctx, f.ID+100, s.ID, false)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.CreateSection(ctx, core.Section{FacilityID: 999, Ordinal: 1, Slug: "x", Scope: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	sections, err := repo.ListSections(ctx, f.ID, false, true)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Categories, 3)
	assert.Equal(t, "Meals", sections[0].Categories[0].Slug)
	assert.Equal(t, core.CategoryHeader, sections[0].Categories[0].Type)
}

func TestWriteAndReadSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, s, cats := seed(t, repo)
	breakfast, lunch := cats[1].ID, cats[2].ID

	empty, err := repo.ReadSummary(ctx, s.ID, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, map[int64]*int64{breakfast: nil, lunch: nil}, empty.Values, "headers are never keyed")

	got, err := repo.WriteSummary(ctx, core.Summary{
		SectionID: s.ID, Date: "2024-01-01",
		Values: map[int64]*int64{breakfast: core.Int64(10), lunch: core.Int64(0)},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 10, *got.Values[breakfast])
	require.NotNil(t, got.Values[lunch], "zero is stored")
	assert.EqualValues(t, 0, *got.Values[lunch])

	got, err = repo.WriteSummary(ctx, core.Summary{
		SectionID: s.ID, Date: "2024-01-01",
		Values: map[int64]*int64{breakfast: core.Int64(12), lunch: nil},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 12, *got.Values[breakfast])
	assert.Nil(t, got.Values[lunch], "null removes the entry")
}

func TestListSummariesDailyAndMonthly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, s, cats := seed(t, repo)
	breakfast, lunch := cats[1].ID, cats[2].ID

	writes := []core.Summary{
		{SectionID: s.ID, Date: "2024-01-01", Values: map[int64]*int64{breakfast: core.Int64(10)}},
		{SectionID: s.ID, Date: "2024-01-15", Values: map[int64]*int64{breakfast: core.Int64(5), lunch: core.Int64(7)}},
		{SectionID: s.ID, Date: "2024-02-03", Values: map[int64]*int64{lunch: core.Int64(2)}},
		{SectionID: s.ID, Date: "2024-03-01", Values: map[int64]*int64{lunch: core.Int64(100)}},
	}
	for _, w := range writes {
		_, err := repo.WriteSummary(ctx, w)
		require.NoError(t, err)
	}

	daily, err := repo.ListSummaries(ctx, core.SummaryQuery{FacilityID: f.ID, From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-01-01", daily[0].Date)
	assert.Equal(t, "2024-01-15", daily[1].Date)
	assert.EqualValues(t, 7, *daily[1].Values[lunch])

	monthly, err := repo.ListSummaries(ctx, core.SummaryQuery{FacilityID: f.ID, From: "2024-01-01", To: "2024-02-29", SectionID: s.ID, Monthly: true})
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-01", monthly[0].Date)
	assert.EqualValues(t, 15, *monthly[0].Values[breakfast])
	assert.EqualValues(t, 7, *monthly[0].Values[lunch])
	assert.Equal(t, "2024-02", monthly[1].Date)
	assert.EqualValues(t, 2, *monthly[1].Values[lunch])

	details, err := repo.ListDetails(ctx, f.ID, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, details, 5)
	assert.Equal(t, s.ID, details[0].SectionID)
}

func TestDeleteSectionCascadesToDetails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f, s, cats := seed(t, repo)

	_, err := repo.WriteSummary(ctx, core.Summary{SectionID: s.ID, Date: "2024-01-01", Values: map[int64]*int64{cats[1].ID: core.Int64(1)}})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSection(ctx, f.ID, s.ID))
	details, err := repo.ListDetails(ctx, f.ID, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Empty(t, details)
	cs, err := repo.ListCategories(ctx, s.ID, false)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, core.User{Name: "Ada", Username: "ada", Password: "hash-1", Scope: "superuser", Active: true})
	require.NoError(t, err)
	assert.Empty(t, u.Password, "hash is not returned")

	_, err = repo.CreateUser(ctx, core.User{Name: "Other", Username: "ada", Password: "x", Scope: "superuser"})
	assert.ErrorIs(t, err, core.ErrConflict)

	u.Scope = "pdx:admin"
	_, err = repo.UpdateUser(ctx, u)
	require.NoError(t, err)

	stored, err := repo.GetUserByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.Password, "empty password keeps hash")
	assert.Equal(t, "pdx:admin", stored.Scope)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	v, _, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, RunMigrations(path))
	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.False(t, dirty)

	require.NoError(t, RollbackMigrations(path, 1))
	v, _, err = MigrationVersion(path)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestGroupDetails(t *testing.T) {
	got := GroupDetails([]core.Detail{
		{CategoryID: 1, SectionID: 9, Date: "2024-01-01", Value: 1},
		{CategoryID: 2, SectionID: 9, Date: "2024-01-01", Value: 2},
		{CategoryID: 1, SectionID: 9, Date: "2024-01-02", Value: 3},
	})
	require.Len(t, got, 2)
	assert.Len(t, got[0].Values, 2)
	assert.EqualValues(t, 3, *got[1].Values[1])
}
