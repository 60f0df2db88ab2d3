package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CategoryType distinguishes enterable statistics from grouping lines.
type CategoryType string

const (
	CategoryDetail CategoryType = "Detail"
	CategoryHeader CategoryType = "Header"
)

// DateLayout is the wire format of a single day.
const DateLayout = "2006-01-02"

// MonthLayout is the wire format of a calendar month.
const MonthLayout = "2006-01"

type (
	Facility struct {
		ID       int64  `json:"id"`
		Name     string `json:"name" validate:"required,max=255"`
		Scope    string `json:"scope" validate:"required,alphanum,max=64"`
		Active   bool   `json:"active"`
		Address1 string `json:"address1,omitempty" validate:"max=255"`
		Address2 string `json:"address2,omitempty" validate:"max=255"`
		City     string `json:"city,omitempty" validate:"max=255"`
		State    string `json:"state,omitempty" validate:"omitempty,len=2"`
		ZipCode  string `json:"zipCode,omitempty" validate:"omitempty,max=10"`
		Email    string `json:"email,omitempty" validate:"omitempty,email"`
		Phone    string `json:"phone,omitempty" validate:"max=32"`
	}

	Section struct {
		ID         int64      `json:"id"`
		FacilityID int64      `json:"facilityId" validate:"required,gt=0"`
		Ordinal    int        `json:"ordinal" validate:"gt=0"`
		Slug       string     `json:"slug" validate:"required,max=255"`
		Title      string     `json:"title,omitempty" validate:"max=255"`
		Scope      string     `json:"scope" validate:"required,alphanum,max=64"`
		Active     bool       `json:"active"`
		Notes      string     `json:"notes,omitempty"`
		Categories []Category `json:"categories,omitempty" validate:"-"`
	}

	Category struct {
		ID        int64        `json:"id"`
		SectionID int64        `json:"sectionId" validate:"required,gt=0"`
		Ordinal   int          `json:"ordinal" validate:"gt=0"`
		Slug      string       `json:"slug" validate:"required,max=255"`
		Service   string       `json:"service,omitempty" validate:"max=255"`
		Type      CategoryType `json:"type" validate:"required,oneof=Detail Header"`
		Active    bool         `json:"active"`
		Notes     string       `json:"notes,omitempty"`
	}

	// Detail is one persisted value: the count entered for a category on a day.
	Detail struct {
		ID         int64  `json:"id"`
		CategoryID int64  `json:"categoryId"`
		SectionID  int64  `json:"sectionId"`
		Date       string `json:"date"`
		Value      int64  `json:"value"`
	}

	// Summary carries the values of every category of one section for one
	// date (or, when rolled up, one month). A nil value means "not entered"
	// and is different from an entered zero.
	Summary struct {
		SectionID int64            `json:"sectionId"`
		Date      string           `json:"date"`
		Values    map[int64]*int64 `json:"values"`
	}

	// SummaryQuery selects summaries of a facility for an inclusive date range.
	SummaryQuery struct {
		FacilityID int64
		From       string
		To         string
		SectionID  int64 // 0 means every section
		Monthly    bool
	}

	User struct {
		ID       int64  `json:"id"`
		Name     string `json:"name" validate:"required,max=255"`
		Username string `json:"username" validate:"required,max=64"`
		Password string `json:"password,omitempty" validate:"omitempty,min=6"`
		Scope    string `json:"scope" validate:"required"`
		Active   bool   `json:"active"`
	}
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidSummary = errors.New("invalid summary")
	ErrInvalidScope   = errors.New("invalid scope")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct tags and folds the result into ErrValidation.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Validate also rejects the scope names ParseScope reserves, since no grant
// on such a facility could ever be written.
func (f Facility) Validate() error {
	if err := validateStruct(f); err != nil {
		return err
	}
	if IsReservedScope(f.Scope) {
		return fmt.Errorf("%w: facility scope %q is reserved", ErrValidation, f.Scope)
	}
	return nil
}

func (s Section) Validate() error {
	return validateStruct(s)
}

func (c Category) Validate() error {
	return validateStruct(c)
}

// Enterable reports whether values may be recorded against the category.
func (c Category) Enterable() bool {
	return c.Type != CategoryHeader
}

func (u User) Validate() error {
	if err := validateStruct(u); err != nil {
		return err
	}
	if _, err := ParseScope(u.Scope); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Validate checks the date format and that no value is negative. Whether
// every key belongs to the section is checked by the caller, which knows
// the section's categories.
func (s Summary) Validate() error {
	if s.SectionID <= 0 {
		return fmt.Errorf("%w: missing section id", ErrInvalidSummary)
	}
	if _, err := ParseDate(s.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	for id, v := range s.Values {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: negative value for category %d", ErrInvalidSummary, id)
		}
	}
	return nil
}

// Validate checks that the query names a facility and a well-formed range.
func (q SummaryQuery) Validate() error {
	if q.FacilityID <= 0 {
		return fmt.Errorf("%w: missing facility id", ErrValidation)
	}
	from, err := ParseDate(q.From)
	if err != nil {
		return fmt.Errorf("%w: from: %v", ErrValidation, err)
	}
	to, err := ParseDate(q.To)
	if err != nil {
		return fmt.Errorf("%w: to: %v", ErrValidation, err)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: from %s is after to %s", ErrValidation, q.From, q.To)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD day in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ParseMonth parses a YYYY-MM month in UTC.
func ParseMonth(s string) (time.Time, error) {
	return time.Parse(MonthLayout, strings.TrimSpace(s))
}

// MonthBounds returns the first and last day of a YYYY-MM month.
func MonthBounds(month string) (from, to string, err error) {
	m, err := ParseMonth(month)
	if err != nil {
		return "", "", err
	}
	return m.Format(DateLayout), m.AddDate(0, 1, -1).Format(DateLayout), nil
}

// Int64 returns a pointer to v, handy for building summary values.
func Int64(v int64) *int64 {
	return &v
}
