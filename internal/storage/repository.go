package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN returns the connection string used for dbPath: foreign keys on, so
// deletes cascade, and a busy timeout for concurrent writers.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// mapError turns driver errors into domain sentinels.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", what, core.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: parent does not exist", what, core.ErrNotFound)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%s: %w: %v", what, core.ErrValidation, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affected(n int64, err error, what string) error {
	if err != nil {
		return mapError(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

// Facilities

func (r *SQLiteRepository) ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error) {
	fs, err := r.queries.ListFacilities(ctx, activeOnly)
	return fs, mapError(err, "list facilities")
}

func (r *SQLiteRepository) GetFacility(ctx context.Context, id int64) (core.Facility, error) {
	f, err := r.queries.GetFacility(ctx, id)
	return f, mapError(err, fmt.Sprintf("facility %d", id))
}

func (r *SQLiteRepository) CreateFacility(ctx context.Context, f core.Facility) (core.Facility, error) {
	id, err := r.queries.CreateFacility(ctx, f)
	if err != nil {
		return core.Facility{}, mapError(err, "create facility")
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).InfoContext(ctx, "Facility created", "id", id, "scope", f.Scope)
	return r.GetFacility(ctx, id)
}

func (r *SQLiteRepository) UpdateFacility(ctx context.Context, f core.Facility) (core.Facility, error) {
	n, err := r.queries.UpdateFacility(ctx, f)
	if err := affected(n, err, fmt.Sprintf("update facility %d", f.ID)); err != nil {
		return core.Facility{}, err
	}
	return r.GetFacility(ctx, f.ID)
}

func (r *SQLiteRepository) DeleteFacility(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteFacility(ctx, id)
	return affected(n, err, fmt.Sprintf("delete facility %d", id))
}

// Sections

func (r *SQLiteRepository) ListSections(ctx context.Context, facilityID int64, activeOnly, withCategories bool) ([]core.Section, error) {
	sections, err := r.queries.ListSections(ctx, facilityID, activeOnly)
	if err != nil {
		return nil, mapError(err, "list sections")
	}
	if !withCategories || len(sections) == 0 {
		return sections, nil
	}
	cats, err := r.queries.ListFacilityCategories(ctx, facilityID)
	if err != nil {
		return nil, mapError(err, "list categories")
	}
	bySection := make(map[int64][]core.Category, len(sections))
	for _, c := range cats {
		bySection[c.SectionID] = append(bySection[c.SectionID], c)
	}
	for i := range sections {
		sections[i].Categories = bySection[sections[i].ID]
	}
	return sections, nil
}

func (r *SQLiteRepository) GetSection(ctx context.Context, facilityID, sectionID int64, withCategories bool) (core.Section, error) {
	s, err := r.queries.GetSection(ctx, facilityID, sectionID)
	if err != nil {
		return core.Section{}, mapError(err, fmt.Sprintf("section %d", sectionID))
	}
	if withCategories {
		s.Categories, err = r.queries.ListCategories(ctx, sectionID, false)
		if err != nil {
			return core.Section{}, mapError(err, "list categories")
		}
	}
	return s, nil
}

func (r *SQLiteRepository) CreateSection(ctx context.Context, s core.Section) (core.Section, error) {
	id, err := r.queries.CreateSection(ctx, s)
	if err != nil {
		return core.Section{}, mapError(err, "create section")
	}
	return r.GetSection(ctx, s.FacilityID, id, false)
}

func (r *SQLiteRepository) UpdateSection(ctx context.Context, s core.Section) (core.Section, error) {
	n, err := r.queries.UpdateSection(ctx, s)
	if err := affected(n, err, fmt.Sprintf("update section %d", s.ID)); err != nil {
		return core.Section{}, err
	}
	return r.GetSection(ctx, s.FacilityID, s.ID, false)
}

func (r *SQLiteRepository) DeleteSection(ctx context.Context, facilityID, sectionID int64) error {
	n, err := r.queries.DeleteSection(ctx, facilityID, sectionID)
	return affected(n, err, fmt.Sprintf("delete section %d", sectionID))
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context, sectionID int64, activeOnly bool) ([]core.Category, error) {
	cs, err := r.queries.ListCategories(ctx, sectionID, activeOnly)
	return cs, mapError(err, "list categories")
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, sectionID, categoryID int64) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, sectionID, categoryID)
	return c, mapError(err, fmt.Sprintf("category %d", categoryID))
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	id, err := r.queries.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, mapError(err, "create category")
	}
	return r.GetCategory(ctx, c.SectionID, id)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	n, err := r.queries.UpdateCategory(ctx, c)
	if err := affected(n, err, fmt.Sprintf("update category %d", c.ID)); err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, c.SectionID, c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, sectionID, categoryID int64) error {
	n, err := r.queries.DeleteCategory(ctx, sectionID, categoryID)
	return affected(n, err, fmt.Sprintf("delete category %d", categoryID))
}

// Summaries

func (r *SQLiteRepository) WriteSummary(ctx context.Context, s core.Summary) (core.Summary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Summary{}, fmt.Errorf("begin summary write: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, categoryID := range s.CategoryIDs() {
		v := s.Values[categoryID]
		if v == nil {
			err = q.DeleteDetail(ctx, categoryID, s.Date)
		} else {
			err = q.UpsertDetail(ctx, categoryID, s.Date, *v)
		}
		if err != nil {
			return core.Summary{}, mapError(err, fmt.Sprintf("write category %d on %s", categoryID, s.Date))
		}
	}
	if err := tx.Commit(); err != nil {
		return core.Summary{}, fmt.Errorf("commit summary write: %w", err)
	}
	return r.ReadSummary(ctx, s.SectionID, s.Date)
}

func (r *SQLiteRepository) ReadSummary(ctx context.Context, sectionID int64, date string) (core.Summary, error) {
	cats, err := r.queries.ListCategories(ctx, sectionID, false)
	if err != nil {
		return core.Summary{}, mapError(err, "list categories")
	}
	details, err := r.queries.ListSectionDetails(ctx, sectionID, date)
	if err != nil {
		return core.Summary{}, mapError(err, "list details")
	}
	return core.NewSummary(sectionID, date, cats, details), nil
}

func (r *SQLiteRepository) ListSummaries(ctx context.Context, q core.SummaryQuery) ([]core.Summary, error) {
	var (
		details []core.Detail
		err     error
	)
	if q.Monthly {
		details, err = r.queries.ListMonthlyTotals(ctx, q.FacilityID, q.From, q.To, q.SectionID)
	} else {
		details, err = r.queries.ListDetails(ctx, q.FacilityID, q.From, q.To, q.SectionID)
	}
	if err != nil {
		return nil, mapError(err, "list summaries")
	}
	return GroupDetails(details), nil
}

func (r *SQLiteRepository) ListDetails(ctx context.Context, facilityID int64, from, to string) ([]core.Detail, error) {
	ds, err := r.queries.ListDetails(ctx, facilityID, from, to, 0)
	return ds, mapError(err, "list details")
}

// Users

func (r *SQLiteRepository) ListUsers(ctx context.Context, activeOnly bool) ([]core.User, error) {
	us, err := r.queries.ListUsers(ctx, activeOnly)
	return us, mapError(err, "list users")
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	return u, mapError(err, fmt.Sprintf("user %d", id))
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	return u, mapError(err, fmt.Sprintf("user %q", username))
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	id, err := r.queries.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, mapError(err, "create user")
	}
	return r.GetUser(ctx, id)
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	n, err := r.queries.UpdateUser(ctx, u)
	if err := affected(n, err, fmt.Sprintf("update user %d", u.ID)); err != nil {
		return core.User{}, err
	}
	return r.GetUser(ctx, u.ID)
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteUser(ctx, id)
	return affected(n, err, fmt.Sprintf("delete user %d", id))
}

// GroupDetails folds details ordered by section and date into one summary
// per (section, date), keyed only by the entered values.
func GroupDetails(details []core.Detail) []core.Summary {
	type key struct {
		section int64
		date    string
	}
	var out []core.Summary
	index := make(map[key]int)
	for _, d := range details {
		k := key{d.SectionID, d.Date}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, core.Summary{SectionID: d.SectionID, Date: d.Date, Values: map[int64]*int64{}})
		}
		out[i].Values[d.CategoryID] = core.Int64(d.Value)
	}
	return out
}

var _ Repository = (*SQLiteRepository)(nil)
