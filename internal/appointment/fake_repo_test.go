package appointment

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hackgods/booking-availability/internal/availability"
)

// memRepo is an in-memory Repository mirroring the Postgres constraints the service relies on.
type memRepo struct {
	mu           sync.Mutex
	hosts        map[uuid.UUID]Host
	types        map[uuid.UUID]AppointmentType
	settings     map[uuid.UUID]availability.Settings
	appointments map[uuid.UUID]Appointment
	reminders    []Reminder
	events       []EventLog

	busyErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		hosts:        map[uuid.UUID]Host{},
		types:        map[uuid.UUID]AppointmentType{},
		settings:     map[uuid.UUID]availability.Settings{},
		appointments: map[uuid.UUID]Appointment{},
	}
}

func (r *memRepo) GetHostByID(_ context.Context, id uuid.UUID) (*Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return nil, ErrHostNotFound
	}
	return &h, nil
}

func (r *memRepo) UpdateHostTimezone(_ context.Context, id uuid.UUID, timezone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return ErrHostNotFound
	}
	h.Timezone = timezone
	r.hosts[id] = h
	return nil
}

func (r *memRepo) GetAppointmentTypeByID(_ context.Context, id uuid.UUID) (*AppointmentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.types[id]
	if !ok {
		return nil, ErrAppointmentTypeNotFound
	}
	return &t, nil
}

func (r *memRepo) ListAppointmentTypes(_ context.Context, hostID uuid.UUID) ([]AppointmentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentType
	for _, t := range r.types {
		if t.HostID == hostID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) CreateAppointmentType(_ context.Context, t AppointmentType) (*AppointmentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
	return &t, nil
}

func (r *memRepo) GetAvailabilitySettings(_ context.Context, hostID uuid.UUID) (*availability.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[hostID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	s.Location = nil
	return &s, nil
}

func (r *memRepo) UpsertAvailabilitySettings(_ context.Context, hostID uuid.UUID, s availability.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[hostID] = s
	return nil
}

func (r *memRepo) ListBusyIntervals(_ context.Context, hostID uuid.UUID, window availability.Interval, statuses []AppointmentStatus) ([]availability.Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busyErr != nil {
		return nil, r.busyErr
	}
	var out []availability.Interval
	for _, a := range r.appointments {
		if a.HostID == hostID && slices.Contains(statuses, a.Status) && a.Interval().Overlaps(window) {
			out = append(out, a.Interval())
		}
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAppointmentsByHost(_ context.Context, hostID uuid.UUID, from, to time.Time, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window := availability.Interval{Start: from, End: to}
	var out []Appointment
	for _, a := range r.appointments {
		if a.HostID == hostID && a.Interval().Overlaps(window) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int { return a.StartTime.Compare(b.StartTime) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// conflictsLocked mimics the exclusion constraint on confirmed appointments.
func (r *memRepo) conflictsLocked(a Appointment) bool {
	for _, other := range r.appointments {
		if other.ID != a.ID && other.HostID == a.HostID && other.Status == StatusConfirmed && other.Interval().Overlaps(a.Interval()) {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status == StatusConfirmed && r.conflictsLocked(a) {
		return nil, ErrSlotUnavailable
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if to == StatusConfirmed && r.conflictsLocked(a) {
		return nil, ErrSlotUnavailable
	}
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepo) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertReminders(_ context.Context, reminders []Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rem := range reminders {
		if rem.ID == uuid.Nil {
			rem.ID = uuid.New()
		}
		rem.Status = ReminderPending
		r.reminders = append(r.reminders, rem)
	}
	return nil
}

func (r *memRepo) CancelPendingReminders(_ context.Context, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rem := range r.reminders {
		if rem.AppointmentID == appointmentID && rem.Status == ReminderPending {
			r.reminders[i].Status = ReminderCancelled
		}
	}
	return nil
}

func (r *memRepo) FindDueReminders(_ context.Context, now time.Time, limit int) ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reminder
	for _, rem := range r.reminders {
		if rem.Status == ReminderPending && !rem.SendAt.After(now) {
			out = append(out, rem)
		}
	}
	slices.SortFunc(out, func(a, b Reminder) int { return a.SendAt.Compare(b.SendAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) MarkReminder(_ context.Context, id uuid.UUID, to ReminderStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rem := range r.reminders {
		if rem.ID == id && rem.Status == ReminderPending {
			r.reminders[i].Status = to
			if errMsg != "" {
				r.reminders[i].Error = &errMsg
			}
			return nil
		}
	}
	return ErrReminderNotFound
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) remindersFor(appointmentID uuid.UUID) []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reminder
	for _, rem := range r.reminders {
		if rem.AppointmentID == appointmentID {
			out = append(out, rem)
		}
	}
	return out
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) WithHostDayLock(ctx context.Context, hostID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	args := m.Called(hostID, day)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
