package roster

import (
	"context"
	"sync"
	"time"

	"mess/internal/apperr"
)

// InMemoryDirectory is a map-backed Directory for dev and tests.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	students map[string]Student
}

// NewInMemoryDirectory seeds a directory with the given students.
func NewInMemoryDirectory(students ...Student) *InMemoryDirectory {
	d := &InMemoryDirectory{students: make(map[string]Student)}
	for _, s := range students {
		d.students[s.ID] = s
	}
	return d
}

// Put adds or replaces a student.
func (d *InMemoryDirectory) Put(s Student) {
	d.mu.Lock()
	d.students[s.ID] = s
	d.mu.Unlock()
}

func (d *InMemoryDirectory) Lookup(_ context.Context, studentID string) (Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.students[studentID]
	if !ok {
		return Student{}, apperr.NotFoundf("student %s not found", studentID)
	}
	return s, nil
}

func (d *InMemoryDirectory) CountActive(_ context.Context, day time.Time) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, s := range d.students {
		if s.ActiveOn(dayOf(day)) {
			n++
		}
	}
	return n, nil
}
