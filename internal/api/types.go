package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/appointment"
	"github.com/hackgods/booking-availability/internal/availability"
)

type CreateAppointmentRequest struct {
	HostID            string    `json:"host_id"`
	AppointmentTypeID string    `json:"appointment_type_id"`
	CustomerName      string    `json:"customer_name"`
	CustomerEmail     string    `json:"customer_email"`
	Notes             string    `json:"notes"`
	StartTime         time.Time `json:"start_time"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CreateAppointmentTypeRequest struct {
	Name                 string `json:"name"`
	DurationMinutes      int    `json:"duration_minutes"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

// AvailabilitySettingsBody is the wire form of availability.Settings, in and out.
type AvailabilitySettingsBody struct {
	WeeklySchedule   []availability.DaySchedule `json:"weekly_schedule"`
	BufferTimeBefore int                        `json:"buffer_time_before"`
	BufferTimeAfter  int                        `json:"buffer_time_after"`
	MinimumNotice    int                        `json:"minimum_notice"`
	MaximumAdvance   int                        `json:"maximum_advance"`
	BlackoutDates    []availability.Date        `json:"blackout_dates"`
	Timezone         string                     `json:"timezone,omitempty"`
}

// settings converts the body. An empty Timezone keeps the host's current one.
func (b AvailabilitySettingsBody) settings() (availability.Settings, error) {
	s := availability.Settings{
		WeeklySchedule:   b.WeeklySchedule,
		BufferTimeBefore: b.BufferTimeBefore,
		BufferTimeAfter:  b.BufferTimeAfter,
		MinimumNotice:    b.MinimumNotice,
		MaximumAdvance:   b.MaximumAdvance,
		BlackoutDates:    b.BlackoutDates,
	}
	if b.Timezone == "" {
		return s, nil
	}
	if b.Timezone == "Local" {
		return s, fmt.Errorf("%w: timezone must be an IANA name", availability.ErrInvalidInput)
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return s, fmt.Errorf("%w: unknown timezone %q", availability.ErrInvalidInput, b.Timezone)
	}
	s.Location = loc
	return s, nil
}

func toSettingsBody(s *availability.Settings) AvailabilitySettingsBody {
	body := AvailabilitySettingsBody{
		WeeklySchedule:   s.WeeklySchedule,
		BufferTimeBefore: s.BufferTimeBefore,
		BufferTimeAfter:  s.BufferTimeAfter,
		MinimumNotice:    s.MinimumNotice,
		MaximumAdvance:   s.MaximumAdvance,
		BlackoutDates:    s.BlackoutDates,
	}
	if body.WeeklySchedule == nil {
		body.WeeklySchedule = []availability.DaySchedule{}
	}
	if body.BlackoutDates == nil {
		body.BlackoutDates = []availability.Date{}
	}
	if s.Location != nil {
		body.Timezone = s.Location.String()
	}
	return body
}

type AvailabilityResponse struct {
	HostID            uuid.UUID               `json:"host_id"`
	AppointmentTypeID uuid.UUID               `json:"appointment_type_id"`
	Date              availability.Date       `json:"date"`
	Slots             []availability.TimeSlot `json:"slots"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	HostID            uuid.UUID  `json:"host_id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	CustomerName      string     `json:"customer_name"`
	CustomerEmail     string     `json:"customer_email"`
	Notes             string     `json:"notes,omitempty"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	Status            string     `json:"status"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		HostID:            a.HostID,
		AppointmentTypeID: a.AppointmentTypeID,
		CustomerName:      a.CustomerName,
		CustomerEmail:     a.CustomerEmail,
		Notes:             a.Notes,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            string(a.Status),
		ExpiresAt:         a.ExpiresAt,
		CancelledAt:       a.CancelledAt,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	AppointmentType *AppointmentTypeResponse `json:"appointment_type,omitempty"`
	HostName        string                   `json:"host_name,omitempty"`
}

type AppointmentTypeResponse struct {
	ID                   uuid.UUID `json:"id"`
	HostID               uuid.UUID `json:"host_id"`
	Name                 string    `json:"name"`
	DurationMinutes      int       `json:"duration_minutes"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	IsActive             bool      `json:"is_active"`
}

func toAppointmentTypeResponse(t *appointment.AppointmentType) AppointmentTypeResponse {
	return AppointmentTypeResponse{
		ID:                   t.ID,
		HostID:               t.HostID,
		Name:                 t.Name,
		DurationMinutes:      t.DurationMinutes,
		RequiresConfirmation: t.RequiresConfirmation,
		IsActive:             t.IsActive,
	}
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
