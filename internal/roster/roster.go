package roster

import (
	"time"
)

// Student is the directory view of a mess member, joined with the plan
// meal text eligibility is derived from.
type Student struct {
	ID         string
	Name       string
	RollNumber string
	PlanID     string
	PlanMeals  string
	IsActive   bool
	JoinDate   time.Time
	EndDate    time.Time
}

// ActiveOn reports whether the student's membership covers the given day.
func (s Student) ActiveOn(day time.Time) bool {
	if !s.IsActive {
		return false
	}
	if !s.JoinDate.IsZero() && day.Before(dayOf(s.JoinDate)) {
		return false
	}
	if !s.EndDate.IsZero() && day.After(dayOf(s.EndDate)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
