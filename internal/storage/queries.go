package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cityteam/stats-sub000/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds every SQL statement of the schema.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

// Facilities

const facilityColumns = `id, name, scope, active, address1, address2, city, state, zip_code, email, phone`

func scanFacility(row scanner) (core.Facility, error) {
	var f core.Facility
	err := row.Scan(&f.ID, &f.Name, &f.Scope, &f.Active, &f.Address1, &f.Address2, &f.City, &f.State, &f.ZipCode, &f.Email, &f.Phone)
	return f, err
}

func (q *Queries) ListFacilities(ctx context.Context, activeOnly bool) ([]core.Facility, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE (? = 0 OR active = 1) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (q *Queries) GetFacility(ctx context.Context, id int64) (core.Facility, error) {
	return scanFacility(q.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id))
}

func (q *Queries) CreateFacility(ctx context.Context, f core.Facility) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO facilities (name, scope, active, address1, address2, city, state, zip_code, email, phone)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.Scope, f.Active, f.Address1, f.Address2, f.City, f.State, f.ZipCode, f.Email, f.Phone)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateFacility(ctx context.Context, f core.Facility) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE facilities SET name = ?, scope = ?, active = ?, address1 = ?, address2 = ?, city = ?,
    state = ?, zip_code = ?, email = ?, phone = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
		f.Name, f.Scope, f.Active, f.Address1, f.Address2, f.City, f.State, f.ZipCode, f.Email, f.Phone, f.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteFacility(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM facilities WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Sections

const sectionColumns = `id, facility_id, ordinal, slug, title, scope, active, notes`

func scanSection(row scanner) (core.Section, error) {
	var s core.Section
	err := row.Scan(&s.ID, &s.FacilityID, &s.Ordinal, &s.Slug, &s.Title, &s.Scope, &s.Active, &s.Notes)
	return s, err
}

func (q *Queries) ListSections(ctx context.Context, facilityID int64, activeOnly bool) ([]core.Section, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE facility_id = ? AND (? = 0 OR active = 1) ORDER BY ordinal, id`,
		facilityID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) GetSection(ctx context.Context, facilityID, sectionID int64) (core.Section, error) {
	return scanSection(q.db.QueryRowContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE facility_id = ? AND id = ?`, facilityID, sectionID))
}

func (q *Queries) CreateSection(ctx context.Context, s core.Section) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO sections (facility_id, ordinal, slug, title, scope, active, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.FacilityID, s.Ordinal, s.Slug, s.Title, s.Scope, s.Active, s.Notes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateSection(ctx context.Context, s core.Section) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE sections SET ordinal = ?, slug = ?, title = ?, scope = ?, active = ?, notes = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE facility_id = ? AND id = ?`,
		s.Ordinal, s.Slug, s.Title, s.Scope, s.Active, s.Notes, s.FacilityID, s.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteSection(ctx context.Context, facilityID, sectionID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sections WHERE facility_id = ? AND id = ?`, facilityID, sectionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Categories

const categoryColumns = `id, section_id, ordinal, slug, service, type, active, notes`

func scanCategory(row scanner) (core.Category, error) {
	var c core.Category
	var typ string
	err := row.Scan(&c.ID, &c.SectionID, &c.Ordinal, &c.Slug, &c.Service, &typ, &c.Active, &c.Notes)
	c.Type = core.CategoryType(typ)
	return c, err
}

func (q *Queries) listCategories(ctx context.Context, query string, args ...any) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) ListCategories(ctx context.Context, sectionID int64, activeOnly bool) ([]core.Category, error) {
	return q.listCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE section_id = ? AND (? = 0 OR active = 1) ORDER BY ordinal, id`,
		sectionID, activeOnly)
}

// ListFacilityCategories returns the categories of every section of a
// facility, ordered by section then ordinal.
func (q *Queries) ListFacilityCategories(ctx context.Context, facilityID int64) ([]core.Category, error) {
	return q.listCategories(ctx, `
SELECT c.id, c.section_id, c.ordinal, c.slug, c.service, c.type, c.active, c.notes
FROM categories c JOIN sections s ON s.id = c.section_id
WHERE s.facility_id = ?
ORDER BY c.section_id, c.ordinal, c.id`, facilityID)
}

func (q *Queries) GetCategory(ctx context.Context, sectionID, categoryID int64) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE section_id = ? AND id = ?`, sectionID, categoryID))
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO categories (section_id, ordinal, slug, service, type, active, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.SectionID, c.Ordinal, c.Slug, c.Service, string(c.Type), c.Active, c.Notes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE categories SET ordinal = ?, slug = ?, service = ?, type = ?, active = ?, notes = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE section_id = ? AND id = ?`,
		c.Ordinal, c.Slug, c.Service, string(c.Type), c.Active, c.Notes, c.SectionID, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteCategory(ctx context.Context, sectionID, categoryID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE section_id = ? AND id = ?`, sectionID, categoryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Details

func (q *Queries) UpsertDetail(ctx context.Context, categoryID int64, date string, value int64) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO details (category_id, date, value) VALUES (?, ?, ?)
ON CONFLICT (category_id, date) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		categoryID, date, value)
	return err
}

func (q *Queries) DeleteDetail(ctx context.Context, categoryID int64, date string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM details WHERE category_id = ? AND date = ?`, categoryID, date)
	return err
}

func scanDetails(rows *sql.Rows) ([]core.Detail, error) {
	defer rows.Close()
	var out []core.Detail
	for rows.Next() {
		var d core.Detail
		if err := rows.Scan(&d.ID, &d.CategoryID, &d.SectionID, &d.Date, &d.Value); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) ListSectionDetails(ctx context.Context, sectionID int64, date string) ([]core.Detail, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT d.id, d.category_id, c.section_id, d.date, d.value
FROM details d JOIN categories c ON c.id = d.category_id
WHERE c.section_id = ? AND d.date = ?
ORDER BY c.ordinal, c.id`, sectionID, date)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

// ListDetails returns the details of a facility in a date range. A
// sectionID of 0 matches every section.
func (q *Queries) ListDetails(ctx context.Context, facilityID int64, from, to string, sectionID int64) ([]core.Detail, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT d.id, d.category_id, c.section_id, d.date, d.value
FROM details d
JOIN categories c ON c.id = d.category_id
JOIN sections s ON s.id = c.section_id
WHERE s.facility_id = ? AND d.date BETWEEN ? AND ? AND (? = 0 OR c.section_id = ?)
ORDER BY c.section_id, d.date, c.ordinal, c.id`, facilityID, from, to, sectionID, sectionID)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

// ListMonthlyTotals sums details per section, month and category. The
// returned details carry the month (YYYY-MM) as their date and no id.
func (q *Queries) ListMonthlyTotals(ctx context.Context, facilityID int64, from, to string, sectionID int64) ([]core.Detail, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT 0, d.category_id, c.section_id, substr(d.date, 1, 7) AS month, SUM(d.value)
FROM details d
JOIN categories c ON c.id = d.category_id
JOIN sections s ON s.id = c.section_id
WHERE s.facility_id = ? AND d.date BETWEEN ? AND ? AND (? = 0 OR c.section_id = ?)
GROUP BY c.section_id, month, d.category_id
ORDER BY c.section_id, month, d.category_id`, facilityID, from, to, sectionID, sectionID)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

// Users

const userColumns = `id, name, username, scope, active`

func scanUser(row scanner, withHash bool) (core.User, error) {
	var u core.User
	dest := []any{&u.ID, &u.Name, &u.Username, &u.Scope, &u.Active}
	if withHash {
		dest = append(dest, &u.Password)
	}
	err := row.Scan(dest...)
	return u, err
}

func (q *Queries) ListUsers(ctx context.Context, activeOnly bool) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE (? = 0 OR active = 1) ORDER BY username`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id), false)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = ?`, strings.TrimSpace(username)), true)
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (name, username, password_hash, scope, active) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Username, u.Password, u.Scope, u.Active)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE users SET name = ?, username = ?, scope = ?, active = ?,
    password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`,
		u.Name, u.Username, u.Scope, u.Active, u.Password, u.Password, u.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteUser(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
