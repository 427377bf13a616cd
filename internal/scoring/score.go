// Package scoring computes per-application fairness scorecards and
// decides eligibility.  Everything here is plain arithmetic over
// history slices loaded by the caller; nothing touches the database,
// the clock or the network.
package scoring

import (
	"math"
	"time"

	"github.com/quadrille/attribution/internal/model"
)

// HistoryWindow bounds how far back prior applications count toward
// the fairness scores.
const HistoryWindow = 365 * 24 * time.Hour

// HistoryEntry is one prior application of a candidate user, joined
// with its session and optional weather record.  Only entries whose
// session was granted and not locked contribute to scores; the
// repository pre-filters on those columns and this package re-checks
// activity and the trailing window.
type HistoryEntry struct {
	SessionID   uint64
	LocationID  uint64
	Start       time.Time
	Premium     bool
	Canceled    *time.Time
	Temperature *float64
	Rainfall    *float64
}

// Active reports whether the entry's application still counts:
// never canceled, or canceled inside the one-day grace window before
// its own session's start.
func (e HistoryEntry) Active() bool {
	if e.Canceled == nil {
		return true
	}
	return e.Start.Sub(*e.Canceled) < model.CancellationGrace
}

// Target is the session being attributed, reduced to the fields the
// scorer needs.
type Target struct {
	SessionID  uint64
	LocationID uint64
	Start      time.Time
	Premium    bool
	Hotspot    bool
}

// Candidate is one active application competing for the target,
// carrying the applicant's tier for the eligibility gate.
type Candidate struct {
	ApplicationID uint64
	UserID        uint64
	DanceID       uint64
	Tier          model.Tier
	Created       time.Time
}

// Scorecard is the computed fairness profile of one candidate on one
// target session.  Lower LocationScore and GlobalScore rank higher.
type Scorecard struct {
	ApplicationID uint64        `json:"application_id"`
	UserID        uint64        `json:"user_id"`
	DanceID       uint64        `json:"dance_id"`
	Tier          model.Tier    `json:"tier"`
	Created       time.Time     `json:"created"`
	LocationCount int           `json:"location_count"`
	LocationScore float64       `json:"location_score"`
	LocationTemp  float64       `json:"location_temperature_ratio"`
	LocationPrem  float64       `json:"location_premium_ratio"`
	LocationPrev  *float64      `json:"location_previous,omitempty"` // days, nil if no prior
	GlobalScore   float64       `json:"global_score"`
	GlobalTemp    float64       `json:"global_temperature_ratio"`
	Remaining     time.Duration `json:"remaining"`
	Premium       bool          `json:"premium"`
	Hotspot       bool          `json:"hotspot"`
}

// Compute derives the scorecard for one candidate from their prior
// application history.  Entries outside the trailing one-year window,
// inactive entries and the target session itself are ignored; the
// repository already restricts entries to granted, unlocked sessions.
func Compute(target Target, cand Candidate, history []HistoryEntry, now time.Time) Scorecard {
	card := Scorecard{
		ApplicationID: cand.ApplicationID,
		UserID:        cand.UserID,
		DanceID:       cand.DanceID,
		Tier:          cand.Tier,
		Created:       cand.Created,
		Remaining:     target.Start.Sub(now),
		Premium:       target.Premium,
		Hotspot:       target.Hotspot,
	}

	var (
		locTempSum   float64
		locTempCount int
		glbTempSum   float64
		glbTempCount int
		premiumWins  int
		plainWins    int
	)

	for _, e := range history {
		if e.SessionID == target.SessionID || !e.Active() {
			continue
		}
		gap := target.Start.Sub(e.Start)
		if gap < 0 {
			gap = -gap
		}
		if gap > HistoryWindow {
			continue
		}
		days := gap.Hours() / 24

		// The reciprocal sums floor the gap at one day so a same-day
		// prior session cannot divide by zero.
		weight := 1 / math.Max(days, 1)
		card.GlobalScore += weight

		if e.LocationID != target.LocationID {
			if e.Temperature != nil {
				glbTempSum += tempRatio(e)
				glbTempCount++
			}
			continue
		}

		card.LocationCount++
		card.LocationScore += weight
		if card.LocationPrev == nil || days < *card.LocationPrev {
			d := days
			card.LocationPrev = &d
		}
		if e.Temperature != nil {
			locTempSum += tempRatio(e)
			locTempCount++
		}
		if e.Premium {
			premiumWins++
		} else {
			plainWins++
		}
	}

	if locTempCount > 0 {
		card.LocationTemp = locTempSum / float64(locTempCount)
	}
	if glbTempCount > 0 {
		card.GlobalTemp = glbTempSum / float64(glbTempCount)
	}
	// Laplace smoothing keeps the ratio defined for empty histories.
	card.LocationPrem = float64(premiumWins+1) / float64(plainWins+1)
	return card
}

func tempRatio(e HistoryEntry) float64 {
	rain := 0.0
	if e.Rainfall != nil {
		rain = *e.Rainfall
	}
	return *e.Temperature / (1 + rain)
}

// Less orders scorecards for winner selection: ascending location
// score, then global score, then application creation time, then user
// id.  The four keys make the order total for any pair of distinct
// applications.
func Less(a, b Scorecard) bool {
	if a.LocationScore != b.LocationScore {
		return a.LocationScore < b.LocationScore
	}
	if a.GlobalScore != b.GlobalScore {
		return a.GlobalScore < b.GlobalScore
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return a.UserID < b.UserID
}
