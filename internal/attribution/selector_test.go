package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrille/attribution/internal/model"
	"github.com/quadrille/attribution/internal/repository"
	"github.com/quadrille/attribution/internal/scoring"
)

func TestSlidingDeadlineScalesWithLeadTime(t *testing.T) {
	d := scoring.DefaultDelays() // 48h / 72h / 96h
	start := time.Date(2025, time.June, 10, 20, 0, 0, 0, time.UTC)

	// Short lead time: deadline shrinks proportionally (72/96 = 3/4).
	got := SlidingDeadline(start.Add(-48*time.Hour), start, d)
	assert.Equal(t, 36*time.Hour, got)

	// Long lead time: capped at the senior window.
	got = SlidingDeadline(start.Add(-30*24*time.Hour), start, d)
	assert.Equal(t, d.Senior, got)

	// Application created after the start never yields a negative deadline.
	got = SlidingDeadline(start.Add(time.Hour), start, d)
	assert.Equal(t, time.Duration(0), got)
}

func TestRankPrefersLowerLocationScore(t *testing.T) {
	created := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	cards := []scoring.Scorecard{
		{ApplicationID: 1, UserID: 1, LocationScore: 0.5, Created: created},
		{ApplicationID: 2, UserID: 2, LocationScore: 0.3, Created: created},
	}
	Rank(cards)
	assert.Equal(t, uint64(2), cards[0].ApplicationID)
}

func TestRankAppliesAllFourKeys(t *testing.T) {
	created := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	cards := []scoring.Scorecard{
		{ApplicationID: 1, UserID: 9, LocationScore: 0.3, GlobalScore: 0.9, Created: created},
		{ApplicationID: 2, UserID: 8, LocationScore: 0.3, GlobalScore: 0.4, Created: created},
		{ApplicationID: 3, UserID: 7, LocationScore: 0.3, GlobalScore: 0.4, Created: created.Add(-time.Hour)},
		{ApplicationID: 4, UserID: 6, LocationScore: 0.3, GlobalScore: 0.4, Created: created.Add(-time.Hour)},
		{ApplicationID: 5, UserID: 5, LocationScore: 0.1, GlobalScore: 2.0, Created: created},
	}
	Rank(cards)

	order := make([]uint64, 0, len(cards))
	for _, c := range cards {
		order = append(order, c.ApplicationID)
	}
	// Lowest location score first, then global score, then earlier
	// creation, then lower user id.
	assert.Equal(t, []uint64{5, 4, 3, 2, 1}, order)
}

func TestRankIsDeterministicUnderShuffle(t *testing.T) {
	created := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	a := scoring.Scorecard{ApplicationID: 1, UserID: 3, LocationScore: 0.2, Created: created}
	b := scoring.Scorecard{ApplicationID: 2, UserID: 2, LocationScore: 0.2, Created: created}
	c := scoring.Scorecard{ApplicationID: 3, UserID: 1, LocationScore: 0.4, Created: created}

	first := []scoring.Scorecard{a, b, c}
	second := []scoring.Scorecard{c, b, a}
	Rank(first)
	Rank(second)

	for i := range first {
		assert.Equal(t, first[i].ApplicationID, second[i].ApplicationID)
	}
}

// fakeSessionStore mimics the session repository over in-memory state.
// Granted sessions drop out of the candidate set, the way the real
// candidate query filters on application_id IS NULL.
type fakeSessionStore struct {
	candidates []repository.Candidate
	attributed map[uint64]uint64
	conflict   bool
	cached     map[uint64]bool
}

func (f *fakeSessionStore) Candidates(ctx context.Context, now time.Time) ([]repository.Candidate, error) {
	out := make([]repository.Candidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		if _, granted := f.attributed[c.Session.ID]; granted {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeSessionStore) GetCandidate(ctx context.Context, id uint64) (repository.Candidate, error) {
	for _, c := range f.candidates {
		if c.Session.ID == id {
			if winner, granted := f.attributed[id]; granted {
				w := winner
				c.Session.ApplicationID = &w
			}
			return c, nil
		}
	}
	return repository.Candidate{}, repository.ErrSessionNotFound
}

func (f *fakeSessionStore) Attribute(ctx context.Context, sessionID, applicationID uint64, start, now time.Time) error {
	if f.conflict {
		return repository.ErrConflict
	}
	if _, granted := f.attributed[sessionID]; granted {
		return repository.ErrConflict
	}
	if f.attributed == nil {
		f.attributed = make(map[uint64]uint64)
	}
	f.attributed[sessionID] = applicationID
	return nil
}

func (f *fakeSessionStore) CachePremium(ctx context.Context, sessionID uint64, premium bool) error {
	if f.cached == nil {
		f.cached = make(map[uint64]bool)
	}
	f.cached[sessionID] = premium
	return nil
}

type fakeApplicationStore struct {
	bids        map[uint64][]repository.Bid
	history     map[uint64][]repository.HistoryRecord
	scores      map[uint64]float64
	scoreWrites int
}

func (f *fakeApplicationStore) ActiveBySession(ctx context.Context, sessionID uint64, start time.Time) ([]repository.Bid, error) {
	return f.bids[sessionID], nil
}

func (f *fakeApplicationStore) HistoryByUsers(ctx context.Context, userIDs []uint64, around time.Time) (map[uint64][]repository.HistoryRecord, error) {
	out := make(map[uint64][]repository.HistoryRecord, len(userIDs))
	for _, id := range userIDs {
		if recs, ok := f.history[id]; ok {
			out[id] = recs
		}
	}
	return out, nil
}

func (f *fakeApplicationStore) UpdateScore(ctx context.Context, id uint64, score float64, now time.Time) error {
	if f.scores == nil {
		f.scores = make(map[uint64]float64)
	}
	f.scores[id] = score
	f.scoreWrites++
	return nil
}

func priorWin(sessionID, locationID uint64, date time.Time) repository.HistoryRecord {
	plain := false
	return repository.HistoryRecord{
		SessionID:  sessionID,
		LocationID: locationID,
		Date:       date,
		Slot:       model.SlotMorning,
		Begin:      2 * time.Hour,
		Premium:    &plain,
	}
}

// contestedFixture sets up one due session with two regular-tier
// bidders.  User 2 won longer ago at the location (five days versus
// two), so their lower recency sum must win.
func contestedFixture() (*fakeSessionStore, *fakeApplicationStore, *Selector) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(50 * time.Hour)
	plain := false
	sessions := &fakeSessionStore{
		candidates: []repository.Candidate{{
			Session: model.Session{
				ID:         100,
				LocationID: 1,
				Slot:       model.SlotMorning,
				Date:       time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC),
				Begin:      2 * time.Hour,
				Premium:    &plain,
			},
			Location:    model.Location{ID: 1, Name: "grande halle"},
			LocationOK:  true,
			EarliestBid: start.Add(-96 * time.Hour),
		}},
	}
	applications := &fakeApplicationStore{
		bids: map[uint64][]repository.Bid{
			100: {
				{ApplicationID: 500, DanceID: 7, User: model.User{ID: 1, Tier: model.TierRegular}, Created: now.Add(-3 * time.Hour)},
				{ApplicationID: 501, DanceID: 7, User: model.User{ID: 2, Tier: model.TierRegular}, Created: now.Add(-2 * time.Hour)},
			},
		},
		history: map[uint64][]repository.HistoryRecord{
			1: {priorWin(10, 1, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))},
			2: {priorWin(11, 1, time.Date(2025, time.May, 29, 0, 0, 0, 0, time.UTC))},
		},
	}
	selector := NewSelector(sessions, applications, nil, scoring.DefaultDelays(), nil)
	selector.Now = func() time.Time { return now }
	return sessions, applications, selector
}

func TestRunAttributesBestRankedApplication(t *testing.T) {
	sessions, applications, selector := contestedFixture()

	report, err := selector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Attributed)
	assert.Equal(t, []uint64{100}, report.Sessions)
	assert.Equal(t, uint64(501), sessions.attributed[100])

	// Losers keep their computed score too.
	assert.Equal(t, 2, applications.scoreWrites)
	assert.InDelta(t, 0.5, applications.scores[500], 1e-9)
	assert.InDelta(t, 0.2, applications.scores[501], 1e-9)
}

func TestRunDoesNotReattributeOnSecondPass(t *testing.T) {
	sessions, applications, selector := contestedFixture()

	first, err := selector.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Attributed)

	second, err := selector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Examined)
	assert.Equal(t, 0, second.Attributed)
	assert.Equal(t, map[uint64]uint64{100: 501}, sessions.attributed, "winner must not change")
	assert.Equal(t, 2, applications.scoreWrites, "no further score writes on a no-op pass")
}

func TestRunCountsConflictAsNoOp(t *testing.T) {
	sessions, _, selector := contestedFixture()
	sessions.conflict = true

	report, err := selector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 0, report.Attributed)
	assert.Equal(t, 0, report.Errors)
	assert.Empty(t, sessions.attributed)
}

func TestRunCountsNoEligibleWithoutWinnerWrite(t *testing.T) {
	sessions, applications, selector := contestedFixture()
	bids := applications.bids[100]
	for i := range bids {
		bids[i].User.Tier = model.TierUser
	}

	report, err := selector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NoEligible)
	assert.Equal(t, 0, report.Attributed)
	assert.Empty(t, sessions.attributed)
	assert.Equal(t, 2, applications.scoreWrites, "scores persist even when nobody clears the gate")
}

func TestBestPreviewPersistsNothing(t *testing.T) {
	sessions, applications, selector := contestedFixture()

	card, err := selector.Best(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(501), card.ApplicationID)
	assert.Empty(t, sessions.attributed)
	assert.Zero(t, applications.scoreWrites)

	_, err = selector.Best(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
