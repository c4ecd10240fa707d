package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// CourseOption is a distinct course code with its first known title.
type CourseOption struct {
	Code  string  `db:"course_code"`
	Title *string `db:"course_title"`
}

// FilterOptionRepository lists distinct dimension values from attendance_fact.
type FilterOptionRepository struct {
	db *sqlx.DB
}

// NewFilterOptionRepository constructs the repository.
func NewFilterOptionRepository(db *sqlx.DB) *FilterOptionRepository {
	return &FilterOptionRepository{db: db}
}

// Schools returns distinct school names in ascending order.
func (r *FilterOptionRepository) Schools(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "school", "ASC", nil)
}

// AcademicYears returns distinct academic years, newest first.
func (r *FilterOptionRepository) AcademicYears(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "academic_year", "DESC", nil)
}

// ProgrammeLevels returns distinct programme levels.
func (r *FilterOptionRepository) ProgrammeLevels(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "programme_level", "ASC", nil)
}

// ProgrammeNames returns distinct programme names, optionally within one school.
func (r *FilterOptionRepository) ProgrammeNames(ctx context.Context, school *string) ([]string, error) {
	return r.distinct(ctx, "programme_name", "ASC", map[string]*string{"school": school})
}

// CohortYears returns distinct cohort years, newest first.
func (r *FilterOptionRepository) CohortYears(ctx context.Context) ([]int, error) {
	const query = `SELECT DISTINCT cohort_year FROM attendance_fact WHERE cohort_year IS NOT NULL ORDER BY cohort_year DESC`
	var years []int
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list cohort years: %w", err)
	}
	return years, nil
}

// Courses returns one entry per course code, ordered by code, optionally scoped to a
// school and programme.
func (r *FilterOptionRepository) Courses(ctx context.Context, school, programme *string) ([]CourseOption, error) {
	where, args := scopeClause(map[string]*string{"school": school, "programme_name": programme})
	query := `SELECT DISTINCT ON (course_code) course_code, course_title FROM attendance_fact WHERE course_code IS NOT NULL AND course_code <> ''` +
		where + ` ORDER BY course_code, course_title`

	var courses []CourseOption
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// distinct interpolates column and direction; both come from the fixed call sites above.
func (r *FilterOptionRepository) distinct(ctx context.Context, column, direction string, scope map[string]*string) ([]string, error) {
	where, args := scopeClause(scope)
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM attendance_fact WHERE %[1]s IS NOT NULL AND %[1]s <> ''%[2]s ORDER BY %[1]s %[3]s`, column, where, direction)

	var values []string
	if err := r.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}
	return values, nil
}

// scopeClause renders equality constraints in a stable column order.
func scopeClause(scope map[string]*string) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(scope))
	for _, column := range []string{"school", "programme_name"} {
		value, ok := scope[column]
		if !ok || value == nil || *value == "" {
			continue
		}
		args = append(args, *value)
		sb.WriteString(fmt.Sprintf(" AND %s = $%d", column, len(args)))
	}
	return sb.String(), args
}
