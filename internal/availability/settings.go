package availability

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	// Upper bounds keep every minute value well inside time.Duration.
	MaxDurationMinutes = MinutesPerDay
	MaxBufferMinutes   = MinutesPerDay
	MaxNoticeMinutes   = 365 * MinutesPerDay
	MaxAdvanceDays     = 5 * 365
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidSettings = errors.New("invalid availability settings")
)

// DaySchedule is a host's recurring working hours for one weekday.
type DaySchedule struct {
	DayOfWeek   time.Weekday `json:"day_of_week"`
	IsAvailable bool         `json:"is_available"`
	StartTime   Clock        `json:"start_time"`
	EndTime     Clock        `json:"end_time"`
}

// Settings is the read-only view of a host's availability configuration.
// Buffers and notice are minutes, MaximumAdvance is days.
type Settings struct {
	WeeklySchedule   []DaySchedule  `json:"weekly_schedule"`
	BufferTimeBefore int            `json:"buffer_time_before"`
	BufferTimeAfter  int            `json:"buffer_time_after"`
	MinimumNotice    int            `json:"minimum_notice"`
	MaximumAdvance   int            `json:"maximum_advance"`
	BlackoutDates    []Date         `json:"blackout_dates"`
	Location         *time.Location `json:"-"`
}

// ScheduleFor returns the schedule entry for a weekday, if one is configured.
func (s Settings) ScheduleFor(day time.Weekday) (DaySchedule, bool) {
	for _, ds := range s.WeeklySchedule {
		if ds.DayOfWeek == day {
			return ds, true
		}
	}
	return DaySchedule{}, false
}

func (s Settings) IsBlackout(d Date) bool {
	return slices.Contains(s.BlackoutDates, d)
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// DayWindow is [date 00:00, next day 00:00) in the host location. Callers use it to
// pre-filter existing bookings before invoking the engine.
func (s Settings) DayWindow(d Date) Interval {
	start := d.At(Clock{}, s.location())
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// Validate enforces the invariants a settings update must satisfy.
func (s Settings) Validate() error {
	if len(s.WeeklySchedule) > 7 {
		return fmt.Errorf("%w: weekly schedule has %d entries", ErrInvalidSettings, len(s.WeeklySchedule))
	}
	seen := make(map[time.Weekday]bool, len(s.WeeklySchedule))
	for _, ds := range s.WeeklySchedule {
		if ds.DayOfWeek < time.Sunday || ds.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidSettings, ds.DayOfWeek)
		}
		if seen[ds.DayOfWeek] {
			return fmt.Errorf("%w: duplicate entry for %s", ErrInvalidSettings, ds.DayOfWeek)
		}
		seen[ds.DayOfWeek] = true
		if !ds.StartTime.valid() || !ds.EndTime.valid() {
			return fmt.Errorf("%w: %s hours %s-%s out of range", ErrInvalidSettings, ds.DayOfWeek, ds.StartTime, ds.EndTime)
		}
		if ds.IsAvailable && !ds.StartTime.Before(ds.EndTime) {
			return fmt.Errorf("%w: %s start_time %s must be before end_time %s",
				ErrInvalidSettings, ds.DayOfWeek, ds.StartTime, ds.EndTime)
		}
	}
	if err := s.checkMinutes(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.MaximumAdvance < 1 || s.MaximumAdvance > MaxAdvanceDays {
		return fmt.Errorf("%w: maximum_advance must be between 1 and %d days", ErrInvalidSettings, MaxAdvanceDays)
	}
	return nil
}

// checkMinutes bounds the buffer and notice values the engine converts to durations.
func (s Settings) checkMinutes() error {
	if s.BufferTimeBefore < 0 || s.BufferTimeAfter < 0 ||
		s.BufferTimeBefore > MaxBufferMinutes || s.BufferTimeAfter > MaxBufferMinutes {
		return fmt.Errorf("buffer times must be between 0 and %d minutes", MaxBufferMinutes)
	}
	if s.MinimumNotice < 0 || s.MinimumNotice > MaxNoticeMinutes {
		return fmt.Errorf("minimum_notice must be between 0 and %d minutes", MaxNoticeMinutes)
	}
	return nil
}
