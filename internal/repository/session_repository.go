package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/quadrille/attribution/internal/model"
)

// startExpr computes a session's start timestamp in SQL, including the
// day rollover of the After slot (slot = 4).  It must stay consistent
// with model.SessionStart.
const startExpr = `TIMESTAMPADD(SECOND, s.begin, IF(s.slot = 4, DATE_ADD(s.date, INTERVAL 1 DAY), s.date))`

// SessionRepo provides read and conditional-write access to the
// sessions table.  All timestamp fields are assumed to be stored in
// UTC.  Renumbering of session ids is handled by the rekey routine,
// not here.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Candidate is a session returned by the candidate query, joined with
// its location and the creation time of its earliest active
// application.  LocationOK is false when the location row is missing,
// which is a data error the batch reports and skips.
type Candidate struct {
	Session     model.Session
	Location    model.Location
	LocationOK  bool
	EarliestBid time.Time
}

// Candidates returns the sessions that may be attributed now: not
// locked, without a winner, not yet started, and having at least one
// active application.  The sliding deadline is applied by the caller,
// which needs the configured delay windows.  Results are ordered by
// ascending start time, then creation time.
func (r *SessionRepo) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	const q = `SELECT s.id, s.location_id, s.slot, s.date, s.begin, s.length,
	                  s.premium, s.locked, s.application_id, s.created_at, s.updated_at,
	                  l.name, l.hotspot,
	                  MIN(a.created_at)
	           FROM sessions s
	           LEFT JOIN locations l ON l.id = s.location_id
	           JOIN applications a ON a.session_id = s.id
	           WHERE s.locked IS NULL
	             AND s.application_id IS NULL
	             AND ` + startExpr + ` > ?
	             AND (a.canceled IS NULL
	                  OR TIMESTAMPDIFF(SECOND, a.canceled, ` + startExpr + `) < 86400)
	           GROUP BY s.id, s.location_id, s.slot, s.date, s.begin, s.length,
	                    s.premium, s.locked, s.application_id, s.created_at, s.updated_at,
	                    l.name, l.hotspot
	           ORDER BY ` + startExpr + ` ASC, s.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCandidate loads a single session with its location join, without
// any deadline or state filtering.  It is used by the manual
// best-candidate path, which bypasses the batch deadline gate.  It
// returns ErrSessionNotFound when the id does not exist.
func (r *SessionRepo) GetCandidate(ctx context.Context, id uint64) (Candidate, error) {
	const q = `SELECT s.id, s.location_id, s.slot, s.date, s.begin, s.length,
	                  s.premium, s.locked, s.application_id, s.created_at, s.updated_at,
	                  l.name, l.hotspot,
	                  s.created_at
	           FROM sessions s
	           LEFT JOIN locations l ON l.id = s.location_id
	           WHERE s.id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return Candidate{}, ErrSessionNotFound
	}
	if err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(sc scanner) (Candidate, error) {
	var (
		c          Candidate
		slot       uint8
		beginSec   int64
		lengthSec  int64
		premium    sql.NullBool
		locked     sql.NullTime
		winner     sql.NullInt64
		locName    sql.NullString
		locHotspot sql.NullBool
	)
	err := sc.Scan(
		&c.Session.ID, &c.Session.LocationID, &slot, &c.Session.Date, &beginSec, &lengthSec,
		&premium, &locked, &winner, &c.Session.CreatedAt, &c.Session.UpdatedAt,
		&locName, &locHotspot,
		&c.EarliestBid,
	)
	if err != nil {
		return Candidate{}, err
	}
	c.Session.Slot = model.Slot(slot)
	c.Session.Begin = time.Duration(beginSec) * time.Second
	c.Session.Length = time.Duration(lengthSec) * time.Second
	if premium.Valid {
		p := premium.Bool
		c.Session.Premium = &p
	}
	if locked.Valid {
		t := locked.Time
		c.Session.Locked = &t
	}
	if winner.Valid {
		w := uint64(winner.Int64)
		c.Session.ApplicationID = &w
	}
	if locName.Valid && locHotspot.Valid {
		c.Location = model.Location{
			ID:      c.Session.LocationID,
			Name:    locName.String,
			Hotspot: locHotspot.Bool,
		}
		c.LocationOK = true
	}
	return c, nil
}

// Attribute links the winning application to the session in its own
// transaction.  The winner row is locked and re-checked for a late
// cancellation first, then the session write runs conditionally.
// ErrConflict covers both races and is treated as a no-op by the
// batch: a concurrent writer or canceller simply got there first.
func (r *SessionRepo) Attribute(ctx context.Context, sessionID, applicationID uint64, start, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const checkQ = `SELECT canceled FROM applications WHERE id = ? FOR UPDATE`
	var canceled sql.NullTime
	if err := tx.QueryRowContext(ctx, checkQ, applicationID).Scan(&canceled); err != nil {
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		return err
	}
	if canceled.Valid && start.Sub(canceled.Time) >= model.CancellationGrace {
		return ErrConflict
	}
	if err := r.AttributeTx(ctx, tx, sessionID, applicationID, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AttributeTx links the winning application to the session within the
// given transaction.  The write is conditional on the session still
// being unlocked and without a winner; ErrConflict is returned when a
// concurrent writer got there first.
func (r *SessionRepo) AttributeTx(ctx context.Context, tx *sql.Tx, sessionID, applicationID uint64, now time.Time) error {
	const q = `UPDATE sessions
	           SET application_id = ?, updated_at = ?
	           WHERE id = ? AND locked IS NULL AND application_id IS NULL`
	res, err := tx.ExecContext(ctx, q, applicationID, now, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CachePremium stores the derived premium flag on the session row.
// The flag is a memoization detail and always re-derivable, so errors
// can be ignored by callers.
func (r *SessionRepo) CachePremium(ctx context.Context, sessionID uint64, premium bool) error {
	const q = `UPDATE sessions SET premium = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, premium, sessionID)
	return err
}
