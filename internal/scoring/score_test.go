package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoreNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func scoreTarget() Target {
	return Target{
		SessionID:  100,
		LocationID: 1,
		Start:      scoreNow.Add(60 * time.Hour),
		Premium:    false,
		Hotspot:    false,
	}
}

func scoreCandidate() Candidate {
	return Candidate{ApplicationID: 500, UserID: 7, DanceID: 3, Created: scoreNow.Add(-time.Hour)}
}

func entry(sessionID, locationID uint64, daysBefore float64) HistoryEntry {
	return HistoryEntry{
		SessionID:  sessionID,
		LocationID: locationID,
		Start:      scoreTarget().Start.Add(-time.Duration(daysBefore * 24 * float64(time.Hour))),
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	card := Compute(scoreTarget(), scoreCandidate(), nil, scoreNow)

	assert.Zero(t, card.LocationCount)
	assert.Zero(t, card.LocationScore)
	assert.Zero(t, card.GlobalScore)
	assert.Nil(t, card.LocationPrev)
	assert.Equal(t, 1.0, card.LocationPrem) // Laplace smoothing on empty history
	assert.Equal(t, 60*time.Hour, card.Remaining)
}

func TestComputeRecencyWeightedSums(t *testing.T) {
	history := []HistoryEntry{
		entry(10, 1, 10), // same location, 10 days before
		entry(11, 2, 5),  // other location, 5 days before
	}
	card := Compute(scoreTarget(), scoreCandidate(), history, scoreNow)

	assert.Equal(t, 1, card.LocationCount)
	assert.InDelta(t, 0.1, card.LocationScore, 1e-9)
	assert.InDelta(t, 0.3, card.GlobalScore, 1e-9) // 1/10 + 1/5
	require.NotNil(t, card.LocationPrev)
	assert.InDelta(t, 10, *card.LocationPrev, 1e-9)
}

func TestComputeFloorsSameDayGap(t *testing.T) {
	history := []HistoryEntry{entry(10, 1, 0)}
	card := Compute(scoreTarget(), scoreCandidate(), history, scoreNow)

	assert.InDelta(t, 1.0, card.LocationScore, 1e-9)
	require.NotNil(t, card.LocationPrev)
	assert.Zero(t, *card.LocationPrev)
}

func TestComputeIgnoresEntriesOutsideTrailingYear(t *testing.T) {
	history := []HistoryEntry{entry(10, 1, 400)}
	card := Compute(scoreTarget(), scoreCandidate(), history, scoreNow)

	assert.Zero(t, card.LocationCount)
	assert.Zero(t, card.GlobalScore)
	assert.Nil(t, card.LocationPrev)
}

func TestComputeIgnoresTargetSession(t *testing.T) {
	history := []HistoryEntry{entry(100, 1, 10)} // the target itself
	card := Compute(scoreTarget(), scoreCandidate(), history, scoreNow)

	assert.Zero(t, card.LocationCount)
}

func TestComputeCancellationGrace(t *testing.T) {
	late := entry(10, 1, 10)
	lateCancel := late.Start.Add(-2 * time.Hour) // canceled inside the grace window
	late.Canceled = &lateCancel

	early := entry(11, 1, 20)
	earlyCancel := early.Start.Add(-72 * time.Hour) // canceled well before
	early.Canceled = &earlyCancel

	card := Compute(scoreTarget(), scoreCandidate(), []HistoryEntry{late, early}, scoreNow)

	// Only the late cancellation still counts.
	assert.Equal(t, 1, card.LocationCount)
	assert.InDelta(t, 0.1, card.LocationScore, 1e-9)
}

func TestComputeTemperatureRatios(t *testing.T) {
	temp20, temp30 := 20.0, 30.0
	rain1 := 1.0

	local := entry(10, 1, 10)
	local.Temperature = &temp20
	local.Rainfall = &rain1 // 20/(1+1) = 10

	other := entry(11, 2, 5)
	other.Temperature = &temp30 // 30/(1+0) = 30

	noWeather := entry(12, 1, 3)

	card := Compute(scoreTarget(), scoreCandidate(), []HistoryEntry{local, other, noWeather}, scoreNow)

	assert.InDelta(t, 10, card.LocationTemp, 1e-9)
	assert.InDelta(t, 30, card.GlobalTemp, 1e-9)
}

func TestComputePremiumRatio(t *testing.T) {
	a := entry(10, 1, 10)
	a.Premium = true
	b := entry(11, 1, 20)
	b.Premium = true
	c := entry(12, 1, 30)

	card := Compute(scoreTarget(), scoreCandidate(), []HistoryEntry{a, b, c}, scoreNow)

	// (2 premium + 1) / (1 plain + 1)
	assert.InDelta(t, 1.5, card.LocationPrem, 1e-9)
}

func TestLessIsATotalOrder(t *testing.T) {
	base := Scorecard{LocationScore: 0.3, GlobalScore: 0.2, Created: scoreNow, UserID: 1}

	better := base
	better.LocationScore = 0.1
	assert.True(t, Less(better, base))
	assert.False(t, Less(base, better))

	tieLoc := base
	tieLoc.GlobalScore = 0.1
	assert.True(t, Less(tieLoc, base))

	tieBoth := base
	tieBoth.Created = scoreNow.Add(-time.Minute)
	assert.True(t, Less(tieBoth, base))

	tieAll := base
	tieAll.UserID = 2
	assert.True(t, Less(base, tieAll))
	assert.False(t, Less(tieAll, base))
}
