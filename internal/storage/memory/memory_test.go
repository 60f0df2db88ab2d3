package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityteam/stats-sub000/internal/core"
)

func seeded(t *testing.T) (*Store, core.Facility, core.Section, core.Category, core.Category) {
	t.Helper()
	ctx := context.Background()
	s := New()
	f, err := s.CreateFacility(ctx, core.Facility{Name: "Shelter", Scope: "pdx", Active: true})
	require.NoError(t, err)
	sec, err := s.CreateSection(ctx, core.Section{FacilityID: f.ID, Ordinal: 1, Slug: "meals", Scope: "meals", Active: true})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, core.Category{SectionID: sec.ID, Ordinal: 1, Slug: "Meals", Type: core.CategoryHeader})
	require.NoError(t, err)
	b, err := s.CreateCategory(ctx, core.Category{SectionID: sec.ID, Ordinal: 2, Slug: "Breakfast", Type: core.CategoryDetail, Active: true})
	require.NoError(t, err)
	l, err := s.CreateCategory(ctx, core.Category{SectionID: sec.ID, Ordinal: 3, Slug: "Lunch", Type: core.CategoryDetail})
	require.NoError(t, err)
	return s, f, sec, b, l
}

func TestConflicts(t *testing.T) {
	s, f, sec, b, _ := seeded(t)
	ctx := context.Background()

	_, err := s.CreateFacility(ctx, core.Facility{Name: "Shelter", Scope: "other"})
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = s.CreateSection(ctx, core.Section{FacilityID: f.ID, Ordinal: 1, Slug: "x", Scope: "x"})
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = s.CreateCategory(ctx, core.Category{SectionID: sec.ID, Ordinal: b.Ordinal, Slug: "Dinner", Type: core.CategoryDetail})
	assert.ErrorIs(t, err, core.ErrConflict)

	// Updating an entity onto its own ordinal is fine.
	b.Notes = "morning"
	_, err = s.UpdateCategory(ctx, b)
	assert.NoError(t, err)
}

func TestSectionsAreScopedToFacility(t *testing.T) {
	s, f, sec, _, _ := seeded(t)
	ctx := context.Background()

	_, err := s.GetSection(ctx, f.ID+1, sec.ID, false)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetSection(ctx, f.ID, sec.ID, true)
	require.NoError(t, err)
	require.Len(t, got.Categories, 3)
	assert.Equal(t, "Meals", got.Categories[0].Slug)
}

func TestSummaryRoundTrip(t *testing.T) {
	s, f, sec, b, l := seeded(t)
	ctx := context.Background()

	got, err := s.WriteSummary(ctx, core.Summary{SectionID: sec.ID, Date: "2024-01-01", Values: map[int64]*int64{b.ID: core.Int64(10), l.ID: nil}})
	require.NoError(t, err)
	assert.EqualValues(t, 10, *got.Values[b.ID])
	assert.Contains(t, got.Values, l.ID)
	assert.Nil(t, got.Values[l.ID])
	assert.Len(t, got.Values, 2)

	_, err = s.WriteSummary(ctx, core.Summary{SectionID: sec.ID, Date: "2024-01-20", Values: map[int64]*int64{b.ID: core.Int64(4), l.ID: core.Int64(0)}})
	require.NoError(t, err)
	_, err = s.WriteSummary(ctx, core.Summary{SectionID: sec.ID, Date: "2024-02-02", Values: map[int64]*int64{l.ID: core.Int64(3)}})
	require.NoError(t, err)

	daily, err := s.ListSummaries(ctx, core.SummaryQuery{FacilityID: f.ID, From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-01-01", daily[0].Date)
	assert.Len(t, daily[0].Values, 1, "only entered values are keyed")

	monthly, err := s.ListSummaries(ctx, core.SummaryQuery{FacilityID: f.ID, From: "2024-01-01", To: "2024-12-31", Monthly: true})
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-01", monthly[0].Date)
	assert.EqualValues(t, 14, *monthly[0].Values[b.ID])
	assert.EqualValues(t, 0, *monthly[0].Values[l.ID])
	assert.EqualValues(t, 3, *monthly[1].Values[l.ID])

	_, err = s.WriteSummary(ctx, core.Summary{SectionID: sec.ID, Date: "2024-01-01", Values: map[int64]*int64{999: core.Int64(1)}})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteFacilityCascades(t *testing.T) {
	s, f, sec, b, _ := seeded(t)
	ctx := context.Background()
	_, err := s.WriteSummary(ctx, core.Summary{SectionID: sec.ID, Date: "2024-01-01", Values: map[int64]*int64{b.ID: core.Int64(1)}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFacility(ctx, f.ID))
	assert.Empty(t, s.sections)
	assert.Empty(t, s.categories)
	assert.Empty(t, s.details)
}

func TestUsersHideHashes(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, core.User{Name: "A", Username: "a", Password: "hash", Scope: "superuser", Active: true})
	require.NoError(t, err)
	assert.Empty(t, u.Password)

	list, err := s.ListUsers(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Password)

	u.Name = "Renamed"
	_, err = s.UpdateUser(ctx, u)
	require.NoError(t, err)
	stored, err := s.GetUserByUsername(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hash", stored.Password)
	assert.Equal(t, "Renamed", stored.Name)
}
