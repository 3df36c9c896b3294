package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"mess/internal/apperr"
	"mess/internal/meal"
)

// Repository persists attendance rows in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// nullableFlag returns the mark for m, or nil when the request leaves it
// untouched.
func nullableFlag(marks Marks, m meal.Meal) *bool {
	if v, ok := marks[m]; ok {
		return &v
	}
	return nil
}

// Upsert inserts or partially updates the (student, day) row in one
// statement; the unique key keeps concurrent writers from duplicating it.
func (r *Repository) Upsert(ctx context.Context, studentID string, day time.Time, marks Marks, now time.Time) (Record, error) {
	id := uuid.NewString()
	breakfast := nullableFlag(marks, meal.Breakfast)
	lunch := nullableFlag(marks, meal.Lunch)
	dinner := nullableFlag(marks, meal.Dinner)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_days (id, student_id, day, breakfast, lunch, dinner, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, FALSE), COALESCE($5, FALSE), COALESCE($6, FALSE), $7)
		ON CONFLICT (student_id, day) DO UPDATE SET
			breakfast  = COALESCE($4, attendance_days.breakfast),
			lunch      = COALESCE($5, attendance_days.lunch),
			dinner     = COALESCE($6, attendance_days.dinner),
			updated_at = $7
		RETURNING id, breakfast, lunch, dinner, updated_at
	`, id, studentID, Day(day), breakfast, lunch, dinner, now.UTC())

	rec := Record{StudentID: studentID, Day: Day(day)}
	var gotID string
	if err := row.Scan(&gotID, &rec.Breakfast, &rec.Lunch, &rec.Dinner, &rec.UpdatedAt); err != nil {
		return Record{}, apperr.Transient(err, "attendance upsert failed")
	}
	rec.ID = &gotID
	return rec, nil
}

// QueryUpdatedBetween returns the day's rows touched within [from, to].
func (r *Repository) QueryUpdatedBetween(ctx context.Context, day, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, day, breakfast, lunch, dinner, updated_at
		FROM attendance_days
		WHERE day = $1 AND updated_at >= $2 AND updated_at <= $3
		ORDER BY updated_at
	`, Day(day), from.UTC(), to.UTC())
	if err != nil {
		return nil, apperr.Transient(err, "attendance window query failed")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RowsForDay returns every row for the day.
func (r *Repository) RowsForDay(ctx context.Context, day time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, day, breakfast, lunch, dinner, updated_at
		FROM attendance_days
		WHERE day = $1
		ORDER BY student_id
	`, Day(day))
	if err != nil {
		return nil, apperr.Transient(err, "attendance day query failed")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes a row by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_days WHERE id = $1`, id)
	if err != nil {
		return apperr.Transient(err, "attendance delete failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("attendance record %s not found", id)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var id string
		if err := rows.Scan(&id, &rec.StudentID, &rec.Day, &rec.Breakfast, &rec.Lunch, &rec.Dinner, &rec.UpdatedAt); err != nil {
			return nil, apperr.Transient(err, "attendance scan failed")
		}
		rec.ID = &id
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Transient(err, "attendance rows failed")
	}
	return out, nil
}
