package availability

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// TimeSlot is a bookable interval. The engine only ever emits available slots.
type TimeSlot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}

// Slots returns the ordered, finite sequence of bookable slots of durationMinutes on date.
//
// Candidates sit on a fixed grid starting at opening time plus the before-buffer and stepping by
// duration plus the after-buffer. A candidate is skipped when it starts at or before
// now+MinimumNotice or overlaps an existing booking; the scan ends at the first candidate that
// would run past closing time. existing is not filtered by date.
func Slots(date Date, durationMinutes int, s Settings, existing []Interval, now time.Time) (iter.Seq[TimeSlot], error) {
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d minutes, got %d",
			ErrInvalidInput, MaxDurationMinutes, durationMinutes)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if err := s.checkMinutes(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	day, ok := s.ScheduleFor(date.Weekday())
	if !ok || !day.IsAvailable || s.IsBlackout(date) {
		return empty, nil
	}

	loc := s.location()
	if s.MaximumAdvance > 0 {
		horizon := now.AddDate(0, 0, s.MaximumAdvance)
		if date.At(Clock{}, loc).After(horizon) {
			return empty, nil
		}
	}

	length := time.Duration(durationMinutes) * time.Minute
	step := length + time.Duration(s.BufferTimeAfter)*time.Minute
	first := date.At(day.StartTime, loc).Add(time.Duration(s.BufferTimeBefore) * time.Minute)
	closing := date.At(day.EndTime, loc)
	earliest := now.Add(time.Duration(s.MinimumNotice) * time.Minute)

	busy := slices.Clone(existing)

	return func(yield func(TimeSlot) bool) {
		for start := first; ; start = start.Add(step) {
			candidate := Interval{Start: start, End: start.Add(length)}
			if candidate.End.After(closing) {
				return
			}
			if !start.After(earliest) {
				continue
			}
			if overlapsAny(candidate, busy) {
				continue
			}
			if !yield(TimeSlot{StartTime: candidate.Start, EndTime: candidate.End, IsAvailable: true}) {
				return
			}
		}
	}, nil
}

// ComputeAvailableSlots collects Slots into a slice. A day without availability yields an
// empty, non-nil slice.
func ComputeAvailableSlots(date Date, durationMinutes int, s Settings, existing []Interval, now time.Time) ([]TimeSlot, error) {
	seq, err := Slots(date, durationMinutes, s, existing, now)
	if err != nil {
		return nil, err
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []TimeSlot{}
	}
	return slots, nil
}

// Contains reports whether a slot starting at start is offered for the given inputs.
func Contains(start time.Time, date Date, durationMinutes int, s Settings, existing []Interval, now time.Time) (bool, error) {
	seq, err := Slots(date, durationMinutes, s, existing, now)
	if err != nil {
		return false, err
	}
	for slot := range seq {
		if slot.StartTime.Equal(start) {
			return true, nil
		}
		if slot.StartTime.After(start) {
			return false, nil
		}
	}
	return false, nil
}

func empty(func(TimeSlot) bool) {}
