// Package memory is an in-process storage backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/storage"
)

type detailKey struct {
	categoryID int64
	date       string
}

type Store struct {
	mu         sync.Mutex
	nextID     int64
	facilities map[int64]core.Facility
	sections   map[int64]core.Section
	categories map[int64]core.Category
	details    map[detailKey]int64
	users      map[int64]core.User
}

func New() *Store {
	return &Store{
		facilities: map[int64]core.Facility{},
		sections:   map[int64]core.Section{},
		categories: map[int64]core.Category{},
		details:    map[detailKey]int64{},
		users:      map[int64]core.User{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// Facilities

func (s *Store) ListFacilities(_ context.Context, activeOnly bool) ([]core.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetFacility(_ context.Context, id int64) (core.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[id]
	if !ok {
		return core.Facility{}, fmt.Errorf("facility %d: %w", id, core.ErrNotFound)
	}
	return f, nil
}

func (s *Store) facilityConflict(f core.Facility) error {
	for _, other := range s.facilities {
		if other.ID == f.ID {
			continue
		}
		if other.Name == f.Name || other.Scope == f.Scope {
			return fmt.Errorf("facility %q/%q: %w", f.Name, f.Scope, core.ErrConflict)
		}
	}
	return nil
}

func (s *Store) CreateFacility(_ context.Context, f core.Facility) (core.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = 0
	if err := s.facilityConflict(f); err != nil {
		return core.Facility{}, err
	}
	f.ID = s.id()
	s.facilities[f.ID] = f
	return f, nil
}

func (s *Store) UpdateFacility(_ context.Context, f core.Facility) (core.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[f.ID]; !ok {
		return core.Facility{}, fmt.Errorf("update facility %d: %w", f.ID, core.ErrNotFound)
	}
	if err := s.facilityConflict(f); err != nil {
		return core.Facility{}, err
	}
	s.facilities[f.ID] = f
	return f, nil
}

func (s *Store) DeleteFacility(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[id]; !ok {
		return fmt.Errorf("delete facility %d: %w", id, core.ErrNotFound)
	}
	for sid, sec := range s.sections {
		if sec.FacilityID == id {
			s.deleteSectionLocked(sid)
		}
	}
	delete(s.facilities, id)
	return nil
}

// Sections

func (s *Store) categoriesOf(sectionID int64, activeOnly bool) []core.Category {
	var out []core.Category
	for _, c := range s.categories {
		if c.SectionID != sectionID || (activeOnly && !c.Active) {
			continue
		}
		out = append(out, c)
	}
	core.SortCategories(out)
	return out
}

func (s *Store) ListSections(_ context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Section
	for _, sec := range s.sections {
		if sec.FacilityID != facilityID || (activeOnly && !sec.Active) {
			continue
		}
		if withCategories {
			sec.Categories = s.categoriesOf(sec.ID, false)
		}
		out = append(out, sec)
	}
	core.SortSections(out)
	return out, nil
}

func (s *Store) getSectionLocked(facilityID, sectionID int64) (core.Section, error) {
	sec, ok := s.sections[sectionID]
	if !ok || sec.FacilityID != facilityID {
		return core.Section{}, fmt.Errorf("section %d: %w", sectionID, core.ErrNotFound)
	}
	return sec, nil
}

func (s *Store) GetSection(_ context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, err := s.getSectionLocked(facilityID, sectionID)
	if err != nil {
		return core.Section{}, err
	}
	if withCategories {
		sec.Categories = s.categoriesOf(sec.ID, false)
	}
	return sec, nil
}

func (s *Store) sectionConflict(sec core.Section) error {
	for _, other := range s.sections {
		if other.ID == sec.ID || other.FacilityID != sec.FacilityID {
			continue
		}
		if other.Ordinal == sec.Ordinal || other.Slug == sec.Slug {
			return fmt.Errorf("section ordinal %d slug %q: %w", sec.Ordinal, sec.Slug, core.ErrConflict)
		}
	}
	return nil
}

func (s *Store) CreateSection(_ context.Context, sec core.Section) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[sec.FacilityID]; !ok {
		return core.Section{}, fmt.Errorf("create section: facility %d: %w", sec.FacilityID, core.ErrNotFound)
	}
	sec.ID = 0
	sec.Categories = nil
	if err := s.sectionConflict(sec); err != nil {
		return core.Section{}, err
	}
	sec.ID = s.id()
	s.sections[sec.ID] = sec
	return sec, nil
}

func (s *Store) UpdateSection(_ context.Context, sec core.Section) (core.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getSectionLocked(sec.FacilityID, sec.ID); err != nil {
		return core.Section{}, err
	}
	sec.Categories = nil
	if err := s.sectionConflict(sec); err != nil {
		return core.Section{}, err
	}
	s.sections[sec.ID] = sec
	return sec, nil
}

func (s *Store) DeleteSection(_ context.Context, facilityID, sectionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getSectionLocked(facilityID, sectionID); err != nil {
		return err
	}
	s.deleteSectionLocked(sectionID)
	return nil
}

func (s *Store) deleteSectionLocked(sectionID int64) {
	for cid, c := range s.categories {
		if c.SectionID == sectionID {
			s.deleteCategoryLocked(cid)
		}
	}
	delete(s.sections, sectionID)
}

// Categories

func (s *Store) ListCategories(_ context.Context, sectionID int64, activeOnly bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoriesOf(sectionID, activeOnly), nil
}

func (s *Store) GetCategory(_ context.Context, sectionID, categoryID int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.SectionID != sectionID {
		return core.Category{}, fmt.Errorf("category %d: %w", categoryID, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) categoryConflict(c core.Category) error {
	for _, other := range s.categories {
		if other.ID != c.ID && other.SectionID == c.SectionID && other.Ordinal == c.Ordinal {
			return fmt.Errorf("category ordinal %d: %w", c.Ordinal, core.ErrConflict)
		}
	}
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sections[c.SectionID]; !ok {
		return core.Category{}, fmt.Errorf("create category: section %d: %w", c.SectionID, core.ErrNotFound)
	}
	c.ID = 0
	if err := s.categoryConflict(c); err != nil {
		return core.Category{}, err
	}
	c.ID = s.id()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.categories[c.ID]
	if !ok || old.SectionID != c.SectionID {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, core.ErrNotFound)
	}
	if err := s.categoryConflict(c); err != nil {
		return core.Category{}, err
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, sectionID, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.SectionID != sectionID {
		return fmt.Errorf("delete category %d: %w", categoryID, core.ErrNotFound)
	}
	s.deleteCategoryLocked(categoryID)
	return nil
}

func (s *Store) deleteCategoryLocked(categoryID int64) {
	for k := range s.details {
		if k.categoryID == categoryID {
			delete(s.details, k)
		}
	}
	delete(s.categories, categoryID)
}

// Summaries

func (s *Store) WriteSummary(ctx context.Context, sum core.Summary) (core.Summary, error) {
	s.mu.Lock()
	for _, id := range sum.CategoryIDs() {
		if _, ok := s.categories[id]; !ok {
			s.mu.Unlock()
			return core.Summary{}, fmt.Errorf("write category %d: %w", id, core.ErrNotFound)
		}
	}
	for id, v := range sum.Values {
		k := detailKey{id, sum.Date}
		if v == nil {
			delete(s.details, k)
		} else {
			s.details[k] = *v
		}
	}
	s.mu.Unlock()
	return s.ReadSummary(ctx, sum.SectionID, sum.Date)
}

func (s *Store) ReadSummary(_ context.Context, sectionID int64, date string) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := s.categoriesOf(sectionID, false)
	var details []core.Detail
	for _, c := range cats {
		if v, ok := s.details[detailKey{c.ID, date}]; ok {
			details = append(details, core.Detail{CategoryID: c.ID, SectionID: sectionID, Date: date, Value: v})
		}
	}
	return core.NewSummary(sectionID, date, cats, details), nil
}

// detailsLocked returns the details of a facility in range, ordered the
// same way the SQLite backend orders them.
func (s *Store) detailsLocked(facilityID int64, from, to string, sectionID int64) []core.Detail {
	var out []core.Detail
	for k, v := range s.details {
		if k.date < from || k.date > to {
			continue
		}
		c, ok := s.categories[k.categoryID]
		if !ok {
			continue
		}
		sec, ok := s.sections[c.SectionID]
		if !ok || sec.FacilityID != facilityID || (sectionID != 0 && sec.ID != sectionID) {
			continue
		}
		out = append(out, core.Detail{CategoryID: c.ID, SectionID: sec.ID, Date: k.date, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		ca, cb := s.categories[a.CategoryID], s.categories[b.CategoryID]
		if ca.Ordinal != cb.Ordinal {
			return ca.Ordinal < cb.Ordinal
		}
		return a.CategoryID < b.CategoryID
	})
	return out
}

func (s *Store) ListSummaries(_ context.Context, q core.SummaryQuery) ([]core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	details := s.detailsLocked(q.FacilityID, q.From, q.To, q.SectionID)
	if !q.Monthly {
		return storage.GroupDetails(details), nil
	}

	type monthKey struct {
		section  int64
		month    string
		category int64
	}
	sums := map[monthKey]int64{}
	var order []monthKey
	for _, d := range details {
		k := monthKey{d.SectionID, d.Date[:len(core.MonthLayout)], d.CategoryID}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += d.Value
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].section != order[j].section {
			return order[i].section < order[j].section
		}
		return order[i].month < order[j].month
	})
	rolled := make([]core.Detail, 0, len(order))
	for _, k := range order {
		rolled = append(rolled, core.Detail{CategoryID: k.category, SectionID: k.section, Date: k.month, Value: sums[k]})
	}
	return storage.GroupDetails(rolled), nil
}

func (s *Store) ListDetails(_ context.Context, facilityID int64, from, to string) ([]core.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailsLocked(facilityID, from, to, 0), nil
}

// Users

func withoutHash(u core.User) core.User {
	u.Password = ""
	return u
}

func (s *Store) ListUsers(_ context.Context, activeOnly bool) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.User
	for _, u := range s.users {
		if activeOnly && !u.Active {
			continue
		}
		out = append(out, withoutHash(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return withoutHash(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username = strings.TrimSpace(username)
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

func (s *Store) userConflict(u core.User) error {
	for _, other := range s.users {
		if other.ID != u.ID && other.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = 0
	if err := s.userConflict(u); err != nil {
		return core.User{}, err
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return withoutHash(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return core.User{}, fmt.Errorf("update user %d: %w", u.ID, core.ErrNotFound)
	}
	if err := s.userConflict(u); err != nil {
		return core.User{}, err
	}
	if u.Password == "" {
		u.Password = old.Password
	}
	s.users[u.ID] = u
	return withoutHash(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("delete user %d: %w", id, core.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

var _ storage.Repository = (*Store)(nil)
