package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStartRollsAfterSlotToNextDay(t *testing.T) {
	date := time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC)
	begin := 2 * time.Hour

	evening := SessionStart(date, SlotEvening, 20*time.Hour)
	assert.Equal(t, time.Date(2025, time.July, 4, 20, 0, 0, 0, time.UTC), evening)

	after := SessionStart(date, SlotAfter, begin)
	assert.Equal(t, time.Date(2025, time.July, 5, 2, 0, 0, 0, time.UTC), after)
}

func TestSessionStopAddsLength(t *testing.T) {
	s := Session{
		Date:   time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC),
		Slot:   SlotMorning,
		Begin:  9 * time.Hour,
		Length: 3 * time.Hour,
	}
	assert.Equal(t, time.Date(2025, time.July, 4, 12, 0, 0, 0, time.UTC), s.Stop())
}

func TestApplicationActiveAt(t *testing.T) {
	start := time.Date(2025, time.July, 4, 20, 0, 0, 0, time.UTC)

	a := Application{}
	assert.True(t, a.ActiveAt(start))

	lateCancel := start.Add(-2 * time.Hour)
	a.Canceled = &lateCancel
	assert.True(t, a.ActiveAt(start), "cancellation inside the one-day grace still counts")

	earlyCancel := start.Add(-48 * time.Hour)
	a.Canceled = &earlyCancel
	assert.False(t, a.ActiveAt(start))
}

func TestSlotNames(t *testing.T) {
	assert.Equal(t, "after", SlotAfter.String())
	assert.True(t, SlotAfternoon.Valid())
	assert.False(t, Slot(9).Valid())
}
