// Package rekey renumbers session identifiers into chronological
// start order.  The scorer's days-between arithmetic and the display
// ordering both rely on session ids being monotonic in start time;
// this routine restores that invariant after out-of-order bookings.
package rekey

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/quadrille/attribution/internal/model"
	"github.com/quadrille/attribution/internal/monitoring"
)

// Entry is a session reduced to the two fields the planner needs.
type Entry struct {
	ID    uint64
	Start time.Time
}

// Move renumbers one session from its old id to its new id.  The
// matching applications.session_id rows move with it.
type Move struct {
	Old uint64
	New uint64
}

// Plan computes the renumbering for the given sessions: ids 1..n with
// no gaps, strictly increasing in start order, ties broken by old id.
// Only sessions whose id actually changes are returned; an already
// consistent table yields an empty plan.
func Plan(entries []Entry) []Move {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].Start.Before(ordered[j].Start)
		}
		return ordered[i].ID < ordered[j].ID
	})
	moves := make([]Move, 0)
	for i, e := range ordered {
		if want := uint64(i + 1); e.ID != want {
			moves = append(moves, Move{Old: e.ID, New: want})
		}
	}
	return moves
}

// Rekeyer executes renumbering plans against the database.  It must
// never run concurrently with the attribution selector or with manual
// attribute/cancel/lock actions; the scheduler enforces that through
// its mutex.
type Rekeyer struct {
	db *sql.DB
}

// NewRekeyer returns a Rekeyer bound to the given database.
func NewRekeyer(db *sql.DB) *Rekeyer { return &Rekeyer{db: db} }

// Run loads all sessions, plans the renumbering and applies it in a
// single transaction.  Old and new id ranges overlap and the primary
// key is unique, so every affected pair is first staged into a
// disjoint temporary id space (old + max + 1) and then moved to its
// final id.  Any failure rolls the whole transaction back; partial
// renumbering never survives.  It returns the number of moved
// sessions.
func (r *Rekeyer) Run(ctx context.Context) (int, error) {
	entries, maxID, err := r.load(ctx)
	if err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, fmt.Errorf("rekey: load sessions: %w", err)
	}
	moves := Plan(entries)
	if len(moves) == 0 {
		monitoring.ObserveRekey(0, false)
		return 0, nil
	}

	// A dedicated connection keeps the FOREIGN_KEY_CHECKS toggle
	// scoped to this session only.
	conn, err := r.db.Conn(ctx)
	if err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, fmt.Errorf("rekey: acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SET FOREIGN_KEY_CHECKS = 0`); err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, fmt.Errorf("rekey: disable fk checks: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), `SET FOREIGN_KEY_CHECKS = 1`); err != nil {
			log.Printf("rekey: re-enable fk checks: %v", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, fmt.Errorf("rekey: begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := apply(ctx, tx, moves, maxID); err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		monitoring.ObserveRekey(0, true)
		return 0, fmt.Errorf("rekey: commit: %w", err)
	}
	committed = true

	// The id sequence is reset outside the transaction: MySQL DDL
	// commits implicitly. A failure here only leaves a gap before the
	// next insert, which the next rekey closes.
	next := uint64(len(entries)) + 1
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE sessions AUTO_INCREMENT = %d`, next)); err != nil {
		log.Printf("rekey: reset auto_increment to %d: %v", next, err)
	}

	log.Printf("rekey: renumbered %d of %d sessions", len(moves), len(entries))
	monitoring.ObserveRekey(len(moves), false)
	return len(moves), nil
}

func (r *Rekeyer) load(ctx context.Context) ([]Entry, uint64, error) {
	const q = `SELECT id, date, slot, begin FROM sessions`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		entries []Entry
		maxID   uint64
	)
	for rows.Next() {
		var (
			id       uint64
			date     time.Time
			slot     uint8
			beginSec int64
		)
		if err := rows.Scan(&id, &date, &slot, &beginSec); err != nil {
			return nil, 0, err
		}
		entries = append(entries, Entry{
			ID:    id,
			Start: model.SessionStart(date, model.Slot(slot), time.Duration(beginSec)*time.Second),
		})
		if id > maxID {
			maxID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, maxID, nil
}

// apply executes the two staging passes.  Pass one parks every
// affected session/application pair at old+offset, pass two moves it
// to its final id.  The offset keeps the staged range disjoint from
// both the old and the new id ranges.
func apply(ctx context.Context, tx *sql.Tx, moves []Move, maxID uint64) error {
	offset := maxID + 1
	for _, m := range moves {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET id = ? WHERE id = ?`, m.Old+offset, m.Old); err != nil {
			return fmt.Errorf("rekey: stage session %d: %w", m.Old, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE applications SET session_id = ? WHERE session_id = ?`, m.Old+offset, m.Old); err != nil {
			return fmt.Errorf("rekey: stage applications of session %d: %w", m.Old, err)
		}
	}
	for _, m := range moves {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET id = ? WHERE id = ?`, m.New, m.Old+offset); err != nil {
			return fmt.Errorf("rekey: move session %d to %d: %w", m.Old, m.New, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE applications SET session_id = ? WHERE session_id = ?`, m.New, m.Old+offset); err != nil {
			return fmt.Errorf("rekey: move applications of session %d to %d: %w", m.Old, m.New, err)
		}
	}
	return nil
}
