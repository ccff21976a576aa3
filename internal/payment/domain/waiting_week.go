package domain

import "time"

// WaitingWeekStatus is the three-way waiting week classification of a payment.
type WaitingWeekStatus string

const (
	// WaitingWeekNotComputed means a required date is missing.
	WaitingWeekNotComputed WaitingWeekStatus = "not_computed"
	// WaitingWeekNotIn means the pay period starts after the waiting week.
	WaitingWeekNotIn WaitingWeekStatus = "not_in_waiting_week"
	// WaitingWeekIn means the pay period starts inside the unpaid waiting week.
	WaitingWeekIn WaitingWeekStatus = "in_waiting_week"
)

// ClassifyWaitingWeek compares the pay period start with the absence period start plus
// offsetDays at date granularity. A period starting on or before that date is in the
// waiting week.
func ClassifyWaitingWeek(periodStart, absenceStart *time.Time, offsetDays int) WaitingWeekStatus {
	if periodStart == nil || absenceStart == nil {
		return WaitingWeekNotComputed
	}
	limit := dateOf(*absenceStart).AddDate(0, 0, offsetDays)
	if dateOf(*periodStart).After(limit) {
		return WaitingWeekNotIn
	}
	return WaitingWeekIn
}
