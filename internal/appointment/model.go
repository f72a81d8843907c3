package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/availability"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusExpired   AppointmentStatus = "expired"
)

type ReminderKind string

const (
	ReminderInitial  ReminderKind = "initial"
	ReminderFollowUp ReminderKind = "follow_up"
	ReminderHost     ReminderKind = "host"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderCancelled ReminderStatus = "cancelled"
	ReminderFailed    ReminderStatus = "failed"
)

type Host struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the host's IANA timezone, falling back to UTC.
func (h Host) Location() *time.Location {
	if h.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type AppointmentType struct {
	ID                   uuid.UUID
	HostID               uuid.UUID
	Name                 string
	DurationMinutes      int
	RequiresConfirmation bool
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Appointment struct {
	ID                uuid.UUID
	HostID            uuid.UUID
	AppointmentTypeID uuid.UUID
	CustomerName      string
	CustomerEmail     string
	Notes             string
	StartTime         time.Time
	EndTime           time.Time
	Status            AppointmentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         *time.Time
	CancelledAt       *time.Time
}

func (a Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.StartTime, End: a.EndTime}
}

type Reminder struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Kind          ReminderKind
	Recipient     string
	SendAt        time.Time
	Status        ReminderStatus
	Error         *string
	CreatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Type *AppointmentType
	Host *Host
}
