package guard

import (
	"errors"
	"time"
)

var (
	ErrTemplateInactive = errors.New("template_inactive")
	ErrTemplateNotDue   = errors.New("template_not_due")
)

// EnsureTemplateDue is the date-filter idempotency guard: a template may run
// only while active and once its cadence anchor has been reached. The guard
// assumes the job fires at most once per day per template window.
func EnsureTemplateDue(active bool, nextRunDate, today time.Time) error {
	if !active {
		return ErrTemplateInactive
	}
	if nextRunDate.After(today) {
		return ErrTemplateNotDue
	}
	return nil
}

// WeekStart truncates t to the Sunday that opens its Sunday–Saturday payroll
// window, in UTC.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// SameWeek reports whether two instants fall inside the same payroll window.
func SameWeek(a, b time.Time) bool {
	return WeekStart(a).Equal(WeekStart(b))
}
