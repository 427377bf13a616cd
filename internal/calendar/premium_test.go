package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrille/attribution/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEasterKnownYears(t *testing.T) {
	cases := map[int]time.Time{
		2016: day(2016, time.March, 27), // leap year
		2021: day(2021, time.April, 4),
		2024: day(2024, time.March, 31), // leap year
		2025: day(2025, time.April, 20),
		2026: day(2026, time.April, 5),
	}
	for year, want := range cases {
		got, err := Easter(year)
		require.NoError(t, err)
		assert.Equal(t, want, got, "easter %d", year)
	}
}

func TestEasterRejectsPreGregorian(t *testing.T) {
	_, err := Easter(1500)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrYearOutOfRange)
}

func TestIsPremiumDayWeekend(t *testing.T) {
	sat := day(2025, time.August, 23)
	wed := day(2025, time.August, 20)

	premium, err := IsPremiumDay(sat, model.SlotMorning)
	require.NoError(t, err)
	assert.True(t, premium)

	premium, err = IsPremiumDay(wed, model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestIsPremiumDayLateSlotsUseTheEve(t *testing.T) {
	// An evening outing on Friday is keyed to Saturday and is premium;
	// the same outing on Sunday is keyed to Monday and is not.
	fri := day(2025, time.August, 22)
	sun := day(2025, time.August, 24)

	for _, slot := range []model.Slot{model.SlotEvening, model.SlotAfter} {
		premium, err := IsPremiumDay(fri, slot)
		require.NoError(t, err)
		assert.True(t, premium, "friday %s", slot)

		premium, err = IsPremiumDay(sun, slot)
		require.NoError(t, err)
		assert.False(t, premium, "sunday %s", slot)
	}
}

func TestIsPremiumDayFixedHolidays(t *testing.T) {
	holidays := []time.Time{
		day(2026, time.January, 1),
		day(2026, time.May, 1),
		day(2026, time.May, 8),
		day(2026, time.July, 14),
		day(2026, time.August, 15),
		day(2026, time.November, 1),
		day(2026, time.November, 11),
		day(2026, time.December, 25),
	}
	for _, h := range holidays {
		premium, err := IsPremiumDay(h, model.SlotAfternoon)
		require.NoError(t, err)
		assert.True(t, premium, "%s", h.Format("2006-01-02"))
	}

	premium, err := IsPremiumDay(day(2026, time.July, 15), model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestIsPremiumDayEasterRelative(t *testing.T) {
	// Easter Sunday 2024 is March 31 (leap year): Easter Monday,
	// Ascension and Whit Monday follow at +1, +39 and +50 days.
	moving := []time.Time{
		day(2024, time.April, 1),
		day(2024, time.May, 9),
		day(2024, time.May, 20),
	}
	for _, h := range moving {
		premium, err := IsPremiumDay(h, model.SlotMorning)
		require.NoError(t, err)
		assert.True(t, premium, "%s", h.Format("2006-01-02"))
	}

	premium, err := IsPremiumDay(day(2024, time.May, 14), model.SlotMorning)
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestIsPremiumDayIsStable(t *testing.T) {
	d := day(2025, time.April, 21) // Easter Monday 2025
	for i := 0; i < 3; i++ {
		premium, err := IsPremiumDay(d, model.SlotMorning)
		require.NoError(t, err)
		assert.True(t, premium)
	}
}

func TestIsPremiumDayPropagatesComputusError(t *testing.T) {
	_, err := IsPremiumDay(day(1400, time.March, 3), model.SlotMorning)
	assert.ErrorIs(t, err, ErrYearOutOfRange)
}
