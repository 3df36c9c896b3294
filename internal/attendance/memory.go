package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mess/internal/apperr"
	"mess/internal/meal"
)

// InMemoryStore is a map-backed Store for dev and tests. It mirrors the
// Postgres upsert semantics, including the one-row-per-(student, day) key.
type InMemoryStore struct {
	mu   sync.Mutex
	rows map[string]Record // keyed by studentID + "|" + day
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]Record)}
}

func storeKey(studentID string, day time.Time) string {
	return studentID + "|" + Day(day).Format("2006-01-02")
}

func (s *InMemoryStore) Upsert(_ context.Context, studentID string, day time.Time, marks Marks, now time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(studentID, day)
	rec, ok := s.rows[key]
	if !ok {
		id := uuid.NewString()
		rec = Record{ID: &id, StudentID: studentID, Day: Day(day)}
	}
	for _, m := range meal.Order {
		if v, ok := marks[m]; ok {
			switch m {
			case meal.Breakfast:
				rec.Breakfast = v
			case meal.Lunch:
				rec.Lunch = v
			case meal.Dinner:
				rec.Dinner = v
			}
		}
	}
	rec.UpdatedAt = now.UTC()
	s.rows[key] = rec
	return rec, nil
}

func (s *InMemoryStore) QueryUpdatedBetween(_ context.Context, day, from, to time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.rows {
		if !rec.Day.Equal(Day(day)) {
			continue
		}
		if rec.UpdatedAt.Before(from) || rec.UpdatedAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *InMemoryStore) RowsForDay(_ context.Context, day time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.rows {
		if rec.Day.Equal(Day(day)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.rows {
		if rec.ID != nil && *rec.ID == id {
			delete(s.rows, key)
			return nil
		}
	}
	return apperr.NotFoundf("attendance record %s not found", id)
}

// Len reports the number of stored rows.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
