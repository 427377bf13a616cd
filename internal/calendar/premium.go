// Package calendar classifies dates for the attribution scorer.  A
// (date, slot) pair is "premium" when the slot's reference day is a
// weekend day or a recognized holiday; premium days concentrate demand
// and trigger stricter eligibility rules for lower tiers.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/quadrille/attribution/internal/model"
)

// ErrYearOutOfRange is returned for years the Gregorian computus does
// not cover.  It fails scoring for the affected session only.
var ErrYearOutOfRange = errors.New("calendar: year out of Gregorian computus range")

// fixedHolidays lists the eight fixed-date holidays as {month, day}.
var fixedHolidays = [8][2]int{
	{1, 1},   // New Year's Day
	{5, 1},   // Labour Day
	{5, 8},   // Victory Day
	{7, 14},  // National Day
	{8, 15},  // Assumption
	{11, 1},  // All Saints' Day
	{11, 11}, // Armistice Day
	{12, 25}, // Christmas
}

// easterOffsets are the day offsets from Easter Sunday of the three
// moving holidays: Easter Monday, Ascension and Whit Monday.
var easterOffsets = [3]int{1, 39, 50}

// Easter returns Easter Sunday for the given year in the Gregorian
// calendar, using the anonymous Gauss algorithm.  Years before the
// Gregorian reform are rejected.
func Easter(year int) (time.Time, error) {
	if year < 1583 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrYearOutOfRange, year)
	}
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// IsPremiumDay reports whether the given date is a premium day for the
// given slot.  For Evening and After slots the reference day shifts
// forward one day: the premium signal is keyed to the eve of the
// outing for late slots.  The date's time-of-day component is ignored.
func IsPremiumDay(date time.Time, slot model.Slot) (bool, error) {
	ref := date
	if slot == model.SlotEvening || slot == model.SlotAfter {
		ref = ref.AddDate(0, 0, 1)
	}
	if wd := ref.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true, nil
	}
	month, day := int(ref.Month()), ref.Day()
	for _, h := range fixedHolidays {
		if h[0] == month && h[1] == day {
			return true, nil
		}
	}
	easter, err := Easter(ref.Year())
	if err != nil {
		return false, err
	}
	for _, off := range easterOffsets {
		h := easter.AddDate(0, 0, off)
		if h.Month() == ref.Month() && h.Day() == ref.Day() {
			return true, nil
		}
	}
	return false, nil
}
