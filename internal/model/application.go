package model

import "time"

// CancellationGrace is the session-relative window within which a
// cancellation does not deactivate an application: a bid canceled less
// than one day before its session's start still counts for ranking and
// fairness history.
const CancellationGrace = 24 * time.Hour

// Application records one user's bid for a session, carrying a dance
// type and the last computed fairness score.  Many applications may
// reference the same session; at most one is linked back from
// sessions.application_id.
//
// Fields:
//  ID        – primary key identifier.
//  SessionID – session being bid for.
//  UserID    – user who placed the bid.
//  DanceID   – dance type proposed for the session.
//  Score     – last computed rank value (nullable, written for audit
//              even for losing bids).
//  Canceled  – when the bid was withdrawn (null if still standing).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Application struct {
	ID        uint64     // applications.id
	SessionID uint64     // applications.session_id
	UserID    uint64     // applications.user_id
	DanceID   uint64     // applications.dance_id
	Score     *float64   // applications.score (nullable)
	Canceled  *time.Time // applications.canceled (nullable)
	CreatedAt time.Time  // applications.created_at
	UpdatedAt time.Time  // applications.updated_at
}

// ActiveAt reports whether the application counts as active relative to
// the given session start: never canceled, or canceled inside the
// one-day grace window before the start.
func (a *Application) ActiveAt(sessionStart time.Time) bool {
	if a.Canceled == nil {
		return true
	}
	return sessionStart.Sub(*a.Canceled) < CancellationGrace
}
