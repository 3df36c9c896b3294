package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mess/internal/apperr"
)

// Directory is the student/plan lookup boundary.
type Directory interface {
	// Lookup returns the student joined with their plan meal text.
	Lookup(ctx context.Context, studentID string) (Student, error)
	// CountActive returns how many students are active on the given day.
	CountActive(ctx context.Context, day time.Time) (int, error)
}

// Repository reads the directory from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a directory backed by the students and plans tables.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Lookup(ctx context.Context, studentID string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.name, s.roll_number, s.plan_id, COALESCE(p.meals_text, ''),
		       s.is_active, s.join_date, s.end_date
		FROM students s
		LEFT JOIN plans p ON p.id = s.plan_id
		WHERE s.id = $1
	`, studentID)
	var st Student
	var planID sql.NullString
	if err := row.Scan(&st.ID, &st.Name, &st.RollNumber, &planID, &st.PlanMeals,
		&st.IsActive, &st.JoinDate, &st.EndDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFoundf("student %s not found", studentID)
		}
		return Student{}, apperr.Transient(err, "directory lookup failed")
	}
	st.PlanID = planID.String
	return st, nil
}

func (r *Repository) CountActive(ctx context.Context, day time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM students
		WHERE is_active = TRUE AND join_date <= $1 AND end_date >= $1
	`, dayOf(day))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Transient(err, "active student count failed")
	}
	return n, nil
}
