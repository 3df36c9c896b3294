package attendance

import (
	"context"
	"fmt"
	"time"

	"mess/internal/apperr"
	"mess/internal/meal"
	"mess/internal/roster"
)

// Service is the single rule set for attendance mutations. Every call
// site (QR scan, manual toggle, bulk modal, edit-all modal) goes through
// the same eligibility gate and upsert path.
type Service struct {
	store    Store
	dir      roster.Directory
	resolver *meal.Resolver
	now      func() time.Time
}

// NewService creates a mutation service.
func NewService(store Store, dir roster.Directory, resolver *meal.Resolver) *Service {
	if resolver == nil {
		resolver = meal.NewResolver()
	}
	return &Service{store: store, dir: dir, resolver: resolver, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Mark upserts the (student, day) row with a partial set of meal flags.
// Requests that would turn on a meal outside the student's plan are
// rejected before any store write.
func (s *Service) Mark(ctx context.Context, studentID string, day time.Time, marks Marks) (Record, error) {
	if studentID == "" {
		return Record{}, apperr.Validationf("student id required")
	}
	if len(marks) == 0 {
		return Record{}, apperr.Validationf("no meals in request")
	}
	for m := range marks {
		if !m.Valid() {
			return Record{}, apperr.Validationf("unknown meal %q", m)
		}
	}
	if day.IsZero() {
		day = s.now()
	}

	student, err := s.dir.Lookup(ctx, studentID)
	if err != nil {
		return Record{}, err
	}
	eligible := s.resolver.Resolve(student.PlanID, student.PlanMeals)
	for _, m := range marks.RequestedTrue() {
		if !eligible.Has(m) {
			return Record{}, apperr.Validationf("%s is not included in %s's plan", m.Title(), student.Name)
		}
	}

	return s.store.Upsert(ctx, studentID, day, marks, s.now())
}

// EditDay replaces all three flags for the day through the same gate as
// Mark; the edit-all modal uses it.
func (s *Service) EditDay(ctx context.Context, studentID string, day time.Time, breakfast, lunch, dinner bool) (Record, error) {
	return s.Mark(ctx, studentID, day, Marks{
		meal.Breakfast: breakfast,
		meal.Lunch:     lunch,
		meal.Dinner:    dinner,
	})
}

// BulkFailure identifies one student whose upsert failed.
type BulkFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkResult reports a bulk mark outcome per student; there is no
// cross-student transaction.
type BulkResult struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failures  []BulkFailure `json:"failures,omitempty"`
}

// Summary renders the "X of N succeeded" line.
func (r BulkResult) Summary() string {
	return fmt.Sprintf("%d of %d succeeded", r.Succeeded, r.Total)
}

// BulkMark issues one independent upsert per selected student. Partial
// failure is reported as such, never collapsed into all-or-nothing.
func (s *Service) BulkMark(ctx context.Context, studentIDs []string, day time.Time, marks Marks) (BulkResult, error) {
	if len(studentIDs) == 0 {
		return BulkResult{}, apperr.Validationf("no students selected")
	}
	res := BulkResult{Total: len(studentIDs)}
	for _, id := range studentIDs {
		if _, err := s.Mark(ctx, id, day, marks); err != nil {
			res.Failures = append(res.Failures, BulkFailure{StudentID: id, Reason: err.Error()})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// Delete removes the whole day's row. A nil id means the record was never
// persisted, so there is nothing to delete.
func (s *Service) Delete(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return apperr.NotFoundf("nothing to delete: record was never saved")
	}
	return s.store.Delete(ctx, *id)
}
