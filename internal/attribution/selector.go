// Package attribution implements the batch decision loop that grants
// contested sessions to their best-ranked eligible application.  The
// loop is designed to run unattended from a scheduler and to be safe
// to re-run: granted, locked and not-yet-due sessions are simply
// re-evaluated with fresh scores on the next pass.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/quadrille/attribution/internal/calendar"
	"github.com/quadrille/attribution/internal/model"
	"github.com/quadrille/attribution/internal/monitoring"
	"github.com/quadrille/attribution/internal/queue"
	"github.com/quadrille/attribution/internal/repository"
	"github.com/quadrille/attribution/internal/scoring"
)

// ErrNoCandidate is returned by Best when a session has no eligible
// application right now.
var ErrNoCandidate = errors.New("no eligible candidate")

// Publisher sends an attribution event to the message broker.  It is a
// function type so tests can capture events without a broker.
type Publisher func(ctx context.Context, event queue.SessionAttributedEvent) error

// SessionStore is the slice of the session repository the selector
// depends on.  repository.SessionRepo satisfies it.
type SessionStore interface {
	Candidates(ctx context.Context, now time.Time) ([]repository.Candidate, error)
	GetCandidate(ctx context.Context, id uint64) (repository.Candidate, error)
	Attribute(ctx context.Context, sessionID, applicationID uint64, start, now time.Time) error
	CachePremium(ctx context.Context, sessionID uint64, premium bool) error
}

// ApplicationStore is the slice of the application repository the
// selector depends on.  repository.ApplicationRepo satisfies it.
type ApplicationStore interface {
	ActiveBySession(ctx context.Context, sessionID uint64, start time.Time) ([]repository.Bid, error)
	HistoryByUsers(ctx context.Context, userIDs []uint64, around time.Time) (map[uint64][]repository.HistoryRecord, error)
	UpdateScore(ctx context.Context, id uint64, score float64, now time.Time) error
}

// Selector orchestrates candidate selection, scoring, eligibility and
// the transactional winner write.  It is a single-writer batch job; no
// internal concurrency is used.
type Selector struct {
	Sessions     SessionStore
	Applications ApplicationStore
	Calendar     *calendar.Memo
	Delays       scoring.Delays
	Publish      Publisher // optional, nil disables event publishing
	Now          func() time.Time
}

// NewSelector constructs a Selector over the given stores.  The
// calendar memo may wrap a nil redis client; Publish may be nil.
func NewSelector(sessions SessionStore, applications ApplicationStore, cal *calendar.Memo, delays scoring.Delays, publish Publisher) *Selector {
	if sessions == nil || applications == nil {
		panic("nil store passed to NewSelector")
	}
	return &Selector{
		Sessions:     sessions,
		Applications: applications,
		Calendar:     cal,
		Delays:       delays,
		Publish:      publish,
		Now:          time.Now,
	}
}

// Report summarizes one batch run.  Sessions lists the ids that were
// granted a winner during the run.
type Report struct {
	Examined   int      `json:"examined"`
	Attributed int      `json:"attributed"`
	NoEligible int      `json:"no_eligible"`
	Conflicts  int      `json:"conflicts"`
	Errors     int      `json:"errors"`
	Sessions   []uint64 `json:"sessions,omitempty"`
}

// SlidingDeadline computes how close to its start a session must be
// before the batch may attribute it.  Sessions opened far in advance
// get a deadline scaled down from the Senior window toward the Regular
// window, capped at the Senior window; time-from-creation-to-start is
// measured from the earliest active application's creation.
func SlidingDeadline(earliestBid, start time.Time, d scoring.Delays) time.Duration {
	ttc := start.Sub(earliestBid)
	if ttc < 0 {
		ttc = 0
	}
	scaled := time.Duration(math.Round(float64(ttc) * float64(d.Regular) / float64(d.Senior)))
	if scaled > d.Senior {
		return d.Senior
	}
	return scaled
}

// Rank sorts scorecards in winning order: ascending location score,
// then global score, then application creation, then user id.
func Rank(cards []scoring.Scorecard) {
	sort.Slice(cards, func(i, j int) bool { return scoring.Less(cards[i], cards[j]) })
}

// Run executes one attribution batch: it selects the sessions past
// their sliding deadline, scores every active application, persists
// the scores, and writes at most one winner per session inside a
// transaction.  Per-session failures are logged and counted without
// aborting the batch; only the candidate query itself fails the run.
func (s *Selector) Run(ctx context.Context) (Report, error) {
	started := s.now()
	var report Report
	candidates, err := s.Sessions.Candidates(ctx, started)
	if err != nil {
		monitoring.ObserveRun(0, 0, time.Since(started), true)
		return report, fmt.Errorf("attribution: candidate query: %w", err)
	}
	for _, cand := range candidates {
		start := cand.Session.Start()
		if start.Sub(started) > SlidingDeadline(cand.EarliestBid, start, s.Delays) {
			continue // not yet due, retried on a later run
		}
		report.Examined++
		if !cand.LocationOK {
			log.Printf("attribution: session %d references missing location %d, skipping",
				cand.Session.ID, cand.Session.LocationID)
			monitoring.ObserveSkip(monitoring.SkipDataError)
			report.Errors++
			continue
		}
		if err := s.attribute(ctx, cand, started, &report); err != nil {
			log.Printf("attribution: session %d: %v", cand.Session.ID, err)
			report.Errors++
		}
	}
	monitoring.ObserveRun(report.Examined, report.Attributed, time.Since(started), false)
	return report, nil
}

// Best returns the best-ranked eligible application for one session,
// bypassing the batch's sliding deadline.  It backs the manual
// auto-attribute action and persists nothing.  ErrNoCandidate is
// returned when the session is locked, already granted, or no
// application clears the gate.
func (s *Selector) Best(ctx context.Context, sessionID uint64) (scoring.Scorecard, error) {
	cand, err := s.Sessions.GetCandidate(ctx, sessionID)
	if err != nil {
		return scoring.Scorecard{}, err
	}
	if cand.Session.IsLocked() || cand.Session.Granted() {
		return scoring.Scorecard{}, ErrNoCandidate
	}
	if !cand.LocationOK {
		return scoring.Scorecard{}, fmt.Errorf("session %d references missing location %d",
			cand.Session.ID, cand.Session.LocationID)
	}
	cards, err := s.score(ctx, cand, s.now())
	if err != nil {
		return scoring.Scorecard{}, err
	}
	eligible := cards[:0]
	for _, c := range cards {
		if scoring.Eligible(c, s.Delays) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return scoring.Scorecard{}, ErrNoCandidate
	}
	Rank(eligible)
	return eligible[0], nil
}

// attribute scores one candidate session, persists the scores and
// writes the winner if any application is eligible.
func (s *Selector) attribute(ctx context.Context, cand repository.Candidate, now time.Time, report *Report) error {
	cards, err := s.score(ctx, cand, now)
	if err != nil {
		monitoring.ObserveSkip(monitoring.SkipScoring)
		return err
	}
	// Scores are written for every scored application, winner or not:
	// near-misses stay visible and the updated stamp marks the bid as
	// considered.
	for _, c := range cards {
		if err := s.Applications.UpdateScore(ctx, c.ApplicationID, c.LocationScore, now); err != nil {
			return fmt.Errorf("persist score for application %d: %w", c.ApplicationID, err)
		}
	}
	eligible := make([]scoring.Scorecard, 0, len(cards))
	for _, c := range cards {
		if scoring.Eligible(c, s.Delays) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		// Left untouched; the session is retried on the next run.
		monitoring.ObserveSkip(monitoring.SkipNoEligible)
		report.NoEligible++
		return nil
	}
	Rank(eligible)
	winner := eligible[0]

	start := cand.Session.Start()
	if err := s.Sessions.Attribute(ctx, cand.Session.ID, winner.ApplicationID, start, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Locked, granted or canceled between selection and
			// write: a no-op.
			monitoring.ObserveSkip(monitoring.SkipConflict)
			report.Conflicts++
			return nil
		}
		return fmt.Errorf("attribute session %d: %w", cand.Session.ID, err)
	}
	report.Attributed++
	report.Sessions = append(report.Sessions, cand.Session.ID)
	log.Printf("attribution: session %d granted to application %d (user %d, score %g)",
		cand.Session.ID, winner.ApplicationID, winner.UserID, winner.LocationScore)

	if s.Publish != nil {
		_ = s.Publish(ctx, queue.SessionAttributedEvent{
			SessionID:     cand.Session.ID,
			ApplicationID: winner.ApplicationID,
			UserID:        winner.UserID,
			DanceID:       winner.DanceID,
			LocationID:    cand.Session.LocationID,
			LocationName:  cand.Location.Name,
			Slot:          cand.Session.Slot.String(),
			StartsAt:      start.UTC().Format(time.RFC3339),
			Score:         winner.LocationScore,
			Premium:       winner.Premium,
			AttributedAt:  now.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// score computes the scorecards of every active application on the
// candidate session.  Premium flags come from the session cache when
// present and from the calendar classifier otherwise; classifier
// failures abort scoring for this session only.
func (s *Selector) score(ctx context.Context, cand repository.Candidate, now time.Time) ([]scoring.Scorecard, error) {
	start := cand.Session.Start()
	premium, err := s.premiumFor(ctx, cand.Session)
	if err != nil {
		return nil, fmt.Errorf("classify session %d: %w", cand.Session.ID, err)
	}
	bids, err := s.Applications.ActiveBySession(ctx, cand.Session.ID, start)
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}
	userIDs := make([]uint64, 0, len(bids))
	for _, b := range bids {
		userIDs = append(userIDs, b.User.ID)
	}
	records, err := s.Applications.HistoryByUsers(ctx, userIDs, start)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	histories := make(map[uint64][]scoring.HistoryEntry, len(records))
	for userID, recs := range records {
		entries := make([]scoring.HistoryEntry, 0, len(recs))
		for _, rec := range recs {
			p := rec.Premium
			if p == nil {
				derived, err := s.classify(ctx, rec.Date, rec.Slot)
				if err != nil {
					return nil, fmt.Errorf("classify history session %d: %w", rec.SessionID, err)
				}
				p = &derived
			}
			entry := scoring.HistoryEntry{
				SessionID:  rec.SessionID,
				LocationID: rec.LocationID,
				Start:      rec.Start(),
				Premium:    *p,
				Canceled:   rec.Canceled,
			}
			if rec.Weather != nil {
				temp := rec.Weather.Temperature
				rain := rec.Weather.Rainfall
				entry.Temperature = &temp
				entry.Rainfall = &rain
			}
			entries = append(entries, entry)
		}
		histories[userID] = entries
	}
	target := scoring.Target{
		SessionID:  cand.Session.ID,
		LocationID: cand.Session.LocationID,
		Start:      start,
		Premium:    premium,
		Hotspot:    cand.Location.Hotspot,
	}
	cards := make([]scoring.Scorecard, 0, len(bids))
	for _, b := range bids {
		cards = append(cards, scoring.Compute(target, scoring.Candidate{
			ApplicationID: b.ApplicationID,
			UserID:        b.User.ID,
			DanceID:       b.DanceID,
			Tier:          b.User.Tier,
			Created:       b.Created,
		}, histories[b.User.ID], now))
	}
	return cards, nil
}

// premiumFor resolves the premium flag of the target session, caching
// the derived value on Afternoon and Evening sessions the way the
// booking collaborator does.
func (s *Selector) premiumFor(ctx context.Context, sess model.Session) (bool, error) {
	if sess.Premium != nil {
		return *sess.Premium, nil
	}
	premium, err := s.classify(ctx, sess.Date, sess.Slot)
	if err != nil {
		return false, err
	}
	if sess.Slot == model.SlotAfternoon || sess.Slot == model.SlotEvening {
		if err := s.Sessions.CachePremium(ctx, sess.ID, premium); err != nil {
			log.Printf("attribution: cache premium for session %d: %v", sess.ID, err)
		}
	}
	return premium, nil
}

func (s *Selector) classify(ctx context.Context, date time.Time, slot model.Slot) (bool, error) {
	if s.Calendar != nil {
		return s.Calendar.IsPremiumDay(ctx, date, slot)
	}
	return calendar.IsPremiumDay(date, slot)
}

func (s *Selector) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
