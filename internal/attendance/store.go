package attendance

import (
	"context"
	"time"
)

// Store is the attendance persistence boundary. Upsert must be atomic on
// (studentID, day) so concurrent writers never create duplicate rows.
type Store interface {
	// Upsert creates the day's row with the marked flags, or partially
	// updates an existing one. Meals absent from marks are left as stored.
	Upsert(ctx context.Context, studentID string, day time.Time, marks Marks, now time.Time) (Record, error)
	// QueryUpdatedBetween returns the day's rows whose UpdatedAt falls in
	// [from, to].
	QueryUpdatedBetween(ctx context.Context, day, from, to time.Time) ([]Record, error)
	// RowsForDay returns every row for the day.
	RowsForDay(ctx context.Context, day time.Time) ([]Record, error)
	// Delete removes a persisted row by id.
	Delete(ctx context.Context, id string) error
}
