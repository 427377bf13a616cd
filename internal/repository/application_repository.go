package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/quadrille/attribution/internal/model"
)

// ApplicationRepo provides access to the applications table and the
// joined history rows the scorer consumes.  All timestamp fields are
// assumed to be stored in UTC.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo returns a new ApplicationRepo bound to the given
// database.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// Bid is one active application on a session, joined with the
// applicant for the eligibility gate.
type Bid struct {
	ApplicationID uint64
	DanceID       uint64
	User          model.User
	Created       time.Time
}

// ActiveBySession returns the active applications competing for the
// given session, with the applicant's tier.  An application is active
// when it was never canceled or canceled less than one day before the
// session's start.  Results are ordered by creation time for
// deterministic processing.
func (r *ApplicationRepo) ActiveBySession(ctx context.Context, sessionID uint64, start time.Time) ([]Bid, error) {
	const q = `SELECT a.id, a.dance_id, u.id, u.tier, u.created_at, u.updated_at, a.created_at
	           FROM applications a
	           JOIN users u ON u.id = a.user_id
	           WHERE a.session_id = ?
	             AND (a.canceled IS NULL OR a.canceled > ?)
	           ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.db.QueryContext(ctx, q, sessionID, start.Add(-model.CancellationGrace))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Bid, 0)
	for rows.Next() {
		var (
			b    Bid
			tier uint8
		)
		if err := rows.Scan(&b.ApplicationID, &b.DanceID, &b.User.ID, &tier,
			&b.User.CreatedAt, &b.User.UpdatedAt, &b.Created); err != nil {
			return nil, err
		}
		b.User.Tier = model.Tier(tier)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryRecord is one prior application of a candidate user, joined
// with its session and optional weather row.  Premium is the cached
// session flag and may be null, in which case the caller re-derives it
// from the calendar classifier.  Weather is nil when no conditions
// were recorded for the session.
type HistoryRecord struct {
	UserID     uint64
	SessionID  uint64
	LocationID uint64
	Date       time.Time
	Slot       model.Slot
	Begin      time.Duration
	Premium    *bool
	Canceled   *time.Time
	Weather    *model.Weather
}

// Start derives the session start of the record, including the After
// slot day rollover.
func (h HistoryRecord) Start() time.Time { return model.SessionStart(h.Date, h.Slot, h.Begin) }

// HistoryByUsers loads, for every given user, their applications to
// granted and unlocked sessions within one year around the reference
// time.  The scorer applies the exact trailing-window and activity
// rules; this query only bounds the data volume.  Passing no user ids
// returns an empty map.
func (r *ApplicationRepo) HistoryByUsers(ctx context.Context, userIDs []uint64, around time.Time) (map[uint64][]HistoryRecord, error) {
	out := make(map[uint64][]HistoryRecord)
	if len(userIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(userIDs))
	args := make([]interface{}, 0, len(userIDs)+2)
	for _, id := range userIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	args = append(args, around, around)
	q := `SELECT a.user_id, a.session_id, s.location_id, s.date, s.slot, s.begin,
	             s.premium, a.canceled, w.temperature, w.rainfall
	      FROM applications a
	      JOIN sessions s ON s.id = a.session_id
	      LEFT JOIN weathers w ON w.session_id = s.id
	      WHERE a.user_id IN (` + strings.Join(placeholders, ",") + `)
	        AND s.application_id IS NOT NULL
	        AND s.locked IS NULL
	        AND s.date >= DATE_SUB(?, INTERVAL 1 YEAR)
	        AND s.date <= DATE_ADD(?, INTERVAL 1 YEAR)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			h        HistoryRecord
			slot     uint8
			beginSec int64
			premium  sql.NullBool
			canceled sql.NullTime
			temp     sql.NullFloat64
			rain     sql.NullFloat64
		)
		if err := rows.Scan(&h.UserID, &h.SessionID, &h.LocationID, &h.Date, &slot, &beginSec,
			&premium, &canceled, &temp, &rain); err != nil {
			return nil, err
		}
		h.Slot = model.Slot(slot)
		h.Begin = time.Duration(beginSec) * time.Second
		if premium.Valid {
			p := premium.Bool
			h.Premium = &p
		}
		if canceled.Valid {
			t := canceled.Time
			h.Canceled = &t
		}
		if temp.Valid {
			h.Weather = &model.Weather{
				SessionID:   h.SessionID,
				Temperature: temp.Float64,
				Rainfall:    rain.Float64,
			}
		}
		out[h.UserID] = append(out[h.UserID], h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateScore writes the computed rank value back to an application
// and bumps its updated timestamp.  Scores are persisted for losers
// too, both for audit and as a "last considered" stamp.
func (r *ApplicationRepo) UpdateScore(ctx context.Context, id uint64, score float64, now time.Time) error {
	const q = `UPDATE applications SET score = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, score, now, id)
	return err
}
