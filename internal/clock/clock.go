// Package clock maps the real season calendar onto game days and validates
// the daily simulation window. Everything here is a pure function of its
// arguments; callers pass an explicit season context instead of reading
// ambient globals.
package clock

import (
	"time"

	"github.com/emrys/duskball/internal/domain"
)

// SeasonContext is an immutable snapshot of the active season passed to
// day/window calculations.
type SeasonContext struct {
	SeasonNumber int
	StartDate    time.Time
	Location     *time.Location
}

// DayInCycle returns the 1-indexed game day for now relative to the season
// start, wrapping at the 17-day cycle. A start date in the future yields
// day 1, never a negative or zero day.
func DayInCycle(now, start time.Time) int {
	if !now.After(start) {
		return 1
	}
	days := int(now.Sub(start).Hours() / 24)
	return days%domain.SeasonCycleDays + 1
}

// PhaseForDay returns the season phase for a day in the cycle.
func PhaseForDay(day int) string {
	switch {
	case day <= domain.RegularSeasonDays:
		return domain.PhaseRegularSeason
	case day == domain.PlayoffDay:
		return domain.PhasePlayoffs
	default:
		return domain.PhaseOffseason
	}
}

// Window is the daily band of local hours in which matches may simulate.
// OpenHour is inclusive, CloseHour exclusive.
type Window struct {
	OpenHour  int
	CloseHour int
}

// Contains reports whether now falls inside the window in the given location.
func (w Window) Contains(now time.Time, loc *time.Location) bool {
	h := now.In(loc).Hour()
	return h >= w.OpenHour && h < w.CloseHour
}

// Slot is a fixed daily kickoff time, local to the league timezone.
type Slot struct {
	Hour   int
	Minute int
}

// SlotTimes returns the absolute kickoff timestamps for a given game day.
// Day 1 slots land on the season's start date.
func SlotTimes(day int, start time.Time, loc *time.Location, slots []Slot) []time.Time {
	base := start.In(loc).AddDate(0, 0, day-1)
	times := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		times = append(times, time.Date(base.Year(), base.Month(), base.Day(), s.Hour, s.Minute, 0, 0, loc))
	}
	return times
}
