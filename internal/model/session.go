package model

import "time"

// Slot identifies the time-of-day window of a session.  The numeric
// values are stored in the sessions.slot column and must not be
// reordered: the After slot relies on its position for the day
// rollover rule in Start().
type Slot uint8

const (
	SlotMorning   Slot = 1 // sessions.slot = 1
	SlotAfternoon Slot = 2 // sessions.slot = 2
	SlotEvening   Slot = 3 // sessions.slot = 3
	SlotAfter     Slot = 4 // sessions.slot = 4, starts past midnight the next day
)

// String returns the lowercase name of the slot for logging and events.
func (s Slot) String() string {
	switch s {
	case SlotMorning:
		return "morning"
	case SlotAfternoon:
		return "afternoon"
	case SlotEvening:
		return "evening"
	case SlotAfter:
		return "after"
	default:
		return "unknown"
	}
}

// Valid reports whether the slot is one of the four known values.
func (s Slot) Valid() bool { return s >= SlotMorning && s <= SlotAfter }

// Session represents a bookable (location, date, slot) time-slot that
// zero or more applications compete for.  Identifiers are kept
// chronologically monotonic by the rekey routine.
//
// Fields:
//  ID            – primary key identifier, monotonic in Start() order.
//  LocationID    – location where the session takes place.
//  Slot          – time-of-day window (morning/afternoon/evening/after).
//  Date          – calendar date of the session (midnight UTC).
//  Begin         – offset of the session start from midnight.
//  Length        – duration of the session.
//  Premium       – cached premium-day flag (nullable, re-derivable).
//  Locked        – when set, the session is exempt from automatic
//                  attribution and immutable with respect to it.
//  ApplicationID – the currently winning application, if any.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Session struct {
	ID            uint64        // sessions.id
	LocationID    uint64        // sessions.location_id
	Slot          Slot          // sessions.slot
	Date          time.Time     // sessions.date
	Begin         time.Duration // sessions.begin (seconds from midnight)
	Length        time.Duration // sessions.length (seconds)
	Premium       *bool         // sessions.premium (nullable cache)
	Locked        *time.Time    // sessions.locked (nullable)
	ApplicationID *uint64       // sessions.application_id (nullable)
	CreatedAt     time.Time     // sessions.created_at
	UpdatedAt     time.Time     // sessions.updated_at
}

// SessionStart derives the start timestamp for a session date, slot and
// begin offset.  The After slot belongs to the evening of its calendar
// date but starts past midnight, so it rolls over to the next day.
func SessionStart(date time.Time, slot Slot, begin time.Duration) time.Time {
	day := date
	if slot == SlotAfter {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(begin)
}

// Start returns the derived start timestamp of the session.
func (s *Session) Start() time.Time { return SessionStart(s.Date, s.Slot, s.Begin) }

// Stop returns the derived end timestamp of the session.
func (s *Session) Stop() time.Time { return s.Start().Add(s.Length) }

// Granted reports whether the session has a winning application.
func (s *Session) Granted() bool { return s.ApplicationID != nil }

// IsLocked reports whether an admin has locked the session against
// further automatic attribution.
func (s *Session) IsLocked() bool { return s.Locked != nil }
