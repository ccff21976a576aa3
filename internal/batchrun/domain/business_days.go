package domain

import "time"

// IsBusinessDay reports whether t falls on a weekday. Holidays are not excluded.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// BusinessDaysBetween counts business days in the half-open date range (from, to],
// comparing calendar dates in loc. Returns zero when to is not after from.
func BusinessDaysBetween(from, to time.Time, loc *time.Location) int {
	start := dateOf(from.In(loc))
	end := dateOf(to.In(loc))

	count := 0
	for day := start.AddDate(0, 0, 1); !day.After(end); day = day.AddDate(0, 0, 1) {
		if IsBusinessDay(day) {
			count++
		}
	}
	return count
}

// LookbackStart returns the earliest instant a run can start and still be within
// businessDays business days of now. The calendar window of 2n+7 days always covers
// n business days.
func LookbackStart(now time.Time, businessDays int, loc *time.Location) time.Time {
	return dateOf(now.In(loc)).AddDate(0, 0, -(2*businessDays + 7))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
