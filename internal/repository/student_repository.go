package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// StudentRepository reads the students_dim dimension table.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByIDs returns the profiles of the given students keyed by student id. Unknown
// ids are absent from the result.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.StudentProfile, error) {
	result := make(map[string]models.StudentProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	const query = `SELECT student_id, student_number, first_name, last_name, school, programme_level, programme_name, cohort_year, study_mode, status
FROM students_dim WHERE student_id = ANY($1)`
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students by ids: %w", err)
	}
	for _, p := range profiles {
		result[p.StudentID] = p
	}
	return result, nil
}
