package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/availability"
)

var (
	ErrHostNotFound            = errors.New("host not found")
	ErrAppointmentTypeNotFound = errors.New("appointment type not found")
	ErrSettingsNotFound        = errors.New("availability settings not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrReminderNotFound        = errors.New("reminder not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetHostByID(ctx context.Context, id uuid.UUID) (*Host, error)
	UpdateHostTimezone(ctx context.Context, id uuid.UUID, timezone string) error

	GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error)
	ListAppointmentTypes(ctx context.Context, hostID uuid.UUID) ([]AppointmentType, error)
	CreateAppointmentType(ctx context.Context, t AppointmentType) (*AppointmentType, error)

	// Settings come back without a Location; the service attaches the host's.
	GetAvailabilitySettings(ctx context.Context, hostID uuid.UUID) (*availability.Settings, error)
	UpsertAvailabilitySettings(ctx context.Context, hostID uuid.UUID, s availability.Settings) error

	// For conflict checks
	ListBusyIntervals(ctx context.Context, hostID uuid.UUID, window availability.Interval, statuses []AppointmentStatus) ([]availability.Interval, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByHost(ctx context.Context, hostID uuid.UUID, from, to time.Time, limit, offset int) ([]Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Reminders
	InsertReminders(ctx context.Context, reminders []Reminder) error
	CancelPendingReminders(ctx context.Context, appointmentID uuid.UUID) error
	FindDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkReminder(ctx context.Context, id uuid.UUID, to ReminderStatus, errMsg string) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
