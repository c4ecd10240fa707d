package models

// StudentProfile is a row of students_dim used to enrich at-risk entries.
type StudentProfile struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	StudentNumber  string  `db:"student_number" json:"student_number"`
	FirstName      string  `db:"first_name" json:"first_name"`
	LastName       string  `db:"last_name" json:"last_name"`
	School         string  `db:"school" json:"school"`
	ProgrammeLevel string  `db:"programme_level" json:"programme_level"`
	ProgrammeName  string  `db:"programme_name" json:"programme_name"`
	CohortYear     int     `db:"cohort_year" json:"cohort_year"`
	StudyMode      *string `db:"study_mode" json:"study_mode,omitempty"`
	Status         *string `db:"status" json:"status,omitempty"`
}
