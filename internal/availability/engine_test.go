package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var monday = Date{Year: 2026, Month: time.October, Day: 19}

func at(h, m int) time.Time {
	return time.Date(2026, time.October, 19, h, m, 0, 0, time.UTC)
}

func nineToFive() Settings {
	week := make([]DaySchedule, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		week = append(week, DaySchedule{
			DayOfWeek:   d,
			IsAvailable: d != time.Saturday && d != time.Sunday,
			StartTime:   Clock{Hour: 9},
			EndTime:     Clock{Hour: 17},
		})
	}
	return Settings{WeeklySchedule: week, MaximumAdvance: 60}
}

func starts(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime.Format("15:04")
	}
	return out
}

func TestComputeAvailableSlots_Scenarios(t *testing.T) {
	midnight := at(0, 0)

	t.Run("full day on a 30 minute grid", func(t *testing.T) {
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), nil, midnight)
		require.NoError(t, err)
		require.Len(t, slots, 16)
		assert.Equal(t, at(9, 0), slots[0].StartTime)
		assert.Equal(t, at(16, 30), slots[15].StartTime)
		assert.Equal(t, at(17, 0), slots[15].EndTime)
		for _, s := range slots {
			assert.True(t, s.IsAvailable)
		}
	})

	t.Run("existing booking removes exactly its slot", func(t *testing.T) {
		busy := []Interval{{Start: at(10, 0), End: at(10, 30)}}
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), busy, midnight)
		require.NoError(t, err)
		require.Len(t, slots, 15)
		assert.NotContains(t, starts(slots), "10:00")
		assert.Contains(t, starts(slots), "09:30")
		assert.Contains(t, starts(slots), "10:30")
	})

	t.Run("minimum notice rounds up to the next grid point", func(t *testing.T) {
		s := nineToFive()
		s.MinimumNotice = 120
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, at(9, 15))
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		assert.Equal(t, at(11, 30), slots[0].StartTime)
	})

	t.Run("buffer after widens the grid step", func(t *testing.T) {
		s := nineToFive()
		s.BufferTimeAfter = 15
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, midnight)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(slots), 3)
		assert.Equal(t, []string{"09:00", "09:45", "10:30"}, starts(slots)[:3])
	})

	t.Run("blackout date yields nothing", func(t *testing.T) {
		s := nineToFive()
		s.BlackoutDates = []Date{monday}
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, midnight)
		require.NoError(t, err)
		assert.Empty(t, slots)
		assert.NotNil(t, slots)
	})

	t.Run("unavailable weekday yields nothing", func(t *testing.T) {
		saturday := Date{Year: 2026, Month: time.October, Day: 24}
		slots, err := ComputeAvailableSlots(saturday, 30, nineToFive(), nil, midnight)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}

func TestComputeAvailableSlots_EdgeCases(t *testing.T) {
	midnight := at(0, 0)

	t.Run("rejects non-positive duration", func(t *testing.T) {
		_, err := ComputeAvailableSlots(monday, 0, nineToFive(), nil, midnight)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = ComputeAvailableSlots(monday, -30, nineToFive(), nil, midnight)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects zero date", func(t *testing.T) {
		_, err := ComputeAvailableSlots(Date{}, 30, nineToFive(), nil, midnight)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing weekday entry is an empty result", func(t *testing.T) {
		s := nineToFive()
		s.WeeklySchedule = s.WeeklySchedule[:1]
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, midnight)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("date beyond horizon is empty", func(t *testing.T) {
		s := nineToFive()
		s.MaximumAdvance = 7
		now := at(8, 0).AddDate(0, 0, -8)
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, now)
		require.NoError(t, err)
		assert.Empty(t, slots)

		now = at(8, 0).AddDate(0, 0, -7)
		slots, err = ComputeAvailableSlots(monday, 30, s, nil, now)
		require.NoError(t, err)
		assert.Len(t, slots, 16)
	})

	t.Run("zero maximum advance means no horizon", func(t *testing.T) {
		s := nineToFive()
		s.MaximumAdvance = 0
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, midnight.AddDate(-1, 0, 0))
		require.NoError(t, err)
		assert.Len(t, slots, 16)
	})

	t.Run("buffer before shifts the grid origin", func(t *testing.T) {
		s := nineToFive()
		s.BufferTimeBefore = 10
		slots, err := ComputeAvailableSlots(monday, 60, s, nil, midnight)
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		assert.Equal(t, at(9, 10), slots[0].StartTime)
		last := slots[len(slots)-1]
		assert.Equal(t, at(15, 10), last.StartTime)
	})

	t.Run("slot ending exactly at closing is kept", func(t *testing.T) {
		slots, err := ComputeAvailableSlots(monday, 480, nineToFive(), nil, midnight)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, at(17, 0), slots[0].EndTime)
	})

	t.Run("duration longer than the day yields nothing", func(t *testing.T) {
		slots, err := ComputeAvailableSlots(monday, 481, nineToFive(), nil, midnight)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("touching bookings do not conflict", func(t *testing.T) {
		busy := []Interval{
			{Start: at(8, 0), End: at(9, 0)},
			{Start: at(9, 30), End: at(10, 0)},
		}
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), busy, midnight)
		require.NoError(t, err)
		assert.Equal(t, "09:00", starts(slots)[0])
		assert.Equal(t, "10:00", starts(slots)[1])
	})

	t.Run("partial overlap removes every touched candidate", func(t *testing.T) {
		busy := []Interval{{Start: at(10, 15), End: at(11, 15)}}
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), busy, midnight)
		require.NoError(t, err)
		got := starts(slots)
		assert.NotContains(t, got, "10:00")
		assert.NotContains(t, got, "10:30")
		assert.NotContains(t, got, "11:00")
		assert.Contains(t, got, "11:30")
		assert.Len(t, got, 13)
	})

	t.Run("bookings on other days are ignored", func(t *testing.T) {
		busy := []Interval{{Start: at(10, 0).AddDate(0, 0, 1), End: at(12, 0).AddDate(0, 0, 1)}}
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), busy, midnight)
		require.NoError(t, err)
		assert.Len(t, slots, 16)
	})

	t.Run("notice boundary is exclusive", func(t *testing.T) {
		slots, err := ComputeAvailableSlots(monday, 30, nineToFive(), nil, at(9, 0))
		require.NoError(t, err)
		assert.Equal(t, "09:30", starts(slots)[0])
	})

	t.Run("host location anchors the working day", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		s := nineToFive()
		s.Location = loc
		slots, err := ComputeAvailableSlots(monday, 30, s, nil, midnight.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, slots, 16)
		assert.True(t, slots[0].StartTime.Equal(at(7, 0)))
	})
}

func TestComputeAvailableSlots_Properties(t *testing.T) {
	s := nineToFive()
	s.BufferTimeBefore = 5
	s.BufferTimeAfter = 10
	s.MinimumNotice = 45
	now := at(9, 20)
	busy := []Interval{
		{Start: at(11, 0), End: at(11, 50)},
		{Start: at(14, 10), End: at(14, 20)},
	}
	dayWindow := s.DayWindow(monday)
	dayStart := monday.At(Clock{Hour: 9}, time.UTC).Add(5 * time.Minute)
	dayEnd := monday.At(Clock{Hour: 17}, time.UTC)

	slots, err := ComputeAvailableSlots(monday, 25, s, busy, now)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for i, slot := range slots {
		assert.Equal(t, 25*time.Minute, slot.EndTime.Sub(slot.StartTime))
		assert.False(t, slot.StartTime.Before(dayStart))
		assert.False(t, slot.EndTime.After(dayEnd))
		assert.True(t, slot.StartTime.After(now.Add(45*time.Minute)))
		assert.True(t, dayWindow.Overlaps(Interval{Start: slot.StartTime, End: slot.EndTime}))
		for _, b := range busy {
			assert.False(t, Interval{Start: slot.StartTime, End: slot.EndTime}.Overlaps(b))
		}
		if i > 0 {
			prev := slots[i-1]
			assert.True(t, slot.StartTime.After(prev.StartTime))
			assert.False(t, slot.StartTime.Before(prev.EndTime))
		}
	}

	again, err := ComputeAvailableSlots(monday, 25, s, busy, now)
	require.NoError(t, err)
	assert.Equal(t, slots, again)
}

func TestSlots_StopsWhenConsumerBreaks(t *testing.T) {
	seq, err := Slots(monday, 30, nineToFive(), nil, at(0, 0))
	require.NoError(t, err)

	var seen []TimeSlot
	for slot := range seq {
		seen = append(seen, slot)
		if len(seen) == 3 {
			break
		}
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, at(10, 0), seen[2].StartTime)
}

func TestSlots_DoesNotAliasCallerBookings(t *testing.T) {
	busy := []Interval{{Start: at(9, 0), End: at(9, 30)}}
	seq, err := Slots(monday, 30, nineToFive(), busy, at(0, 0))
	require.NoError(t, err)

	busy[0] = Interval{Start: at(12, 0), End: at(12, 30)}
	var got []string
	for slot := range seq {
		got = append(got, slot.StartTime.Format("15:04"))
	}
	assert.NotContains(t, got, "09:00")
	assert.Contains(t, got, "12:00")
}

func TestContains(t *testing.T) {
	busy := []Interval{{Start: at(10, 0), End: at(10, 30)}}

	ok, err := Contains(at(9, 30), monday, 30, nineToFive(), busy, at(0, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains(at(10, 0), monday, 30, nineToFive(), busy, at(0, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Contains(at(9, 10), monday, 30, nineToFive(), nil, at(0, 0))
	require.NoError(t, err)
	assert.False(t, ok, "off-grid start is not a slot")

	_, err = Contains(at(9, 0), monday, 0, nineToFive(), nil, at(0, 0))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSlots_RejectsOutOfRangeMinutes(t *testing.T) {
	midnight := at(0, 0)

	cases := map[string]struct {
		duration int
		mutate   func(*Settings)
	}{
		"duration past time.Duration range": {duration: 153722868},
		"duration longer than a day":        {duration: MaxDurationMinutes + 1},
		"huge after-buffer": {duration: 30, mutate: func(s *Settings) {
			s.BufferTimeAfter = 153722868
		}},
		"huge before-buffer": {duration: 30, mutate: func(s *Settings) {
			s.BufferTimeBefore = MaxBufferMinutes + 1
		}},
		"huge notice": {duration: 30, mutate: func(s *Settings) {
			s.MinimumNotice = 153722868
		}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := nineToFive()
			if tc.mutate != nil {
				tc.mutate(&s)
			}

			done := make(chan error, 1)
			go func() {
				_, err := ComputeAvailableSlots(monday, tc.duration, s, nil, midnight)
				done <- err
			}()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, ErrInvalidInput)
			case <-time.After(3 * time.Second):
				t.Fatal("slot computation did not return")
			}
		})
	}
}

func TestSlots_LongNoticeStillHidesSlots(t *testing.T) {
	s := nineToFive()
	s.MinimumNotice = MaxNoticeMinutes

	slots, err := ComputeAvailableSlots(monday, 30, s, nil, at(0, 0))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlots_DayEndingAtMidnight(t *testing.T) {
	s := nineToFive()
	s.WeeklySchedule[time.Monday] = DaySchedule{DayOfWeek: time.Monday, IsAvailable: true, StartTime: Clock{Hour: 22}, EndTime: EndOfDay}
	require.NoError(t, s.Validate())

	slots, err := ComputeAvailableSlots(monday, 60, s, nil, at(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"22:00", "23:00"}, starts(slots))
	assert.Equal(t, at(0, 0).AddDate(0, 0, 1), slots[1].EndTime)

	whole, err := ComputeAvailableSlots(monday, MaxDurationMinutes, Settings{
		WeeklySchedule: []DaySchedule{{DayOfWeek: time.Monday, IsAvailable: true, EndTime: EndOfDay}},
	}, nil, at(0, 0).AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, whole, 1)
	assert.Equal(t, 24*time.Hour, whole[0].EndTime.Sub(whole[0].StartTime))
}
