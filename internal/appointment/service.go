package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/availability"
	"github.com/hackgods/booking-availability/internal/config"
	redisclient "github.com/hackgods/booking-availability/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
	EventReminderDue          = "REMINDER_DUE"
)

var (
	ErrSlotUnavailable         = errors.New("requested time is no longer available")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrAppointmentExpiredState = errors.New("appointment is already expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAppointmentTypeInactive = errors.New("appointment type is not active")
	ErrUpstreamUnavailable     = errors.New("scheduling data unavailable")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, making notice and expiry checks deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateAppointmentInput struct {
	HostID            uuid.UUID
	AppointmentTypeID uuid.UUID
	CustomerName      string
	CustomerEmail     string
	Notes             string
	StartTime         time.Time
}

func (in *CreateAppointmentInput) normalize() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", availability.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return fmt.Errorf("%w: customer_email is invalid", availability.ErrInvalidInput)
	}
	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", availability.ErrInvalidInput)
	}
	return nil
}

// busyStatuses lists the appointment states that occupy time on a host's calendar.
func (s *Service) busyStatuses() []AppointmentStatus {
	if s.cfg.HoldPending {
		return []AppointmentStatus{StatusConfirmed, StatusPending}
	}
	return []AppointmentStatus{StatusConfirmed}
}

// bookingContext is everything the engine needs besides the busy intervals.
type bookingContext struct {
	host     *Host
	apptType *AppointmentType
	settings *availability.Settings
}

func (s *Service) loadBookingContext(ctx context.Context, hostID, appointmentTypeID uuid.UUID) (*bookingContext, error) {
	host, err := s.repo.GetHostByID(ctx, hostID)
	if err != nil {
		if errors.Is(err, ErrHostNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load host: %w", ErrUpstreamUnavailable, err)
	}

	apptType, err := s.repo.GetAppointmentTypeByID(ctx, appointmentTypeID)
	if err != nil {
		if errors.Is(err, ErrAppointmentTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load appointment type: %w", ErrUpstreamUnavailable, err)
	}
	if apptType.HostID != hostID {
		return nil, ErrAppointmentTypeNotFound
	}
	if !apptType.IsActive {
		return nil, ErrAppointmentTypeInactive
	}

	settings, err := s.repo.GetAvailabilitySettings(ctx, hostID)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		return nil, fmt.Errorf("%w: load availability settings: %w", ErrUpstreamUnavailable, err)
	}
	if settings != nil {
		settings.Location = host.Location()
	}

	return &bookingContext{host: host, apptType: apptType, settings: settings}, nil
}

func (s *Service) busyIntervals(ctx context.Context, hostID uuid.UUID, window availability.Interval) ([]availability.Interval, error) {
	busy, err := s.repo.ListBusyIntervals(ctx, hostID, window, s.busyStatuses())
	if err != nil {
		return nil, fmt.Errorf("%w: list busy intervals: %w", ErrUpstreamUnavailable, err)
	}
	return busy, nil
}

// GetAvailableSlots fetches the host's settings and bookings for date and runs the engine.
// A host without settings has no availability, which is an empty result.
func (s *Service) GetAvailableSlots(ctx context.Context, hostID, appointmentTypeID uuid.UUID, date availability.Date) ([]availability.TimeSlot, error) {
	bc, err := s.loadBookingContext(ctx, hostID, appointmentTypeID)
	if err != nil {
		return nil, err
	}
	if bc.settings == nil {
		return []availability.TimeSlot{}, nil
	}

	busy, err := s.busyIntervals(ctx, hostID, bc.settings.DayWindow(date))
	if err != nil {
		return nil, err
	}

	return availability.ComputeAvailableSlots(date, bc.apptType.DurationMinutes, *bc.settings, busy, s.now())
}

// CreateAppointment books a previously offered slot. Under a per host and day lock it
// re-reads the host's bookings and re-runs the engine; a start that is no longer offered
// fails with ErrSlotUnavailable and the caller should recompute slots.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	bc, err := s.loadBookingContext(ctx, in.HostID, in.AppointmentTypeID)
	if err != nil {
		return nil, err
	}
	if bc.settings == nil {
		return nil, ErrSlotUnavailable
	}

	start := in.StartTime.In(bc.settings.Location)
	date := availability.DateOf(start)
	duration := bc.apptType.DurationMinutes

	var created *Appointment

	err = s.locker.WithHostDayLock(ctx, in.HostID, date.String(), func(lockCtx context.Context) error {
		busy, err := s.busyIntervals(lockCtx, in.HostID, bc.settings.DayWindow(date))
		if err != nil {
			return err
		}

		now := s.now()
		offered, err := availability.Contains(start, date, duration, *bc.settings, busy, now)
		if err != nil {
			return err
		}
		if !offered {
			return ErrSlotUnavailable
		}

		appt := Appointment{
			ID:                uuid.New(),
			HostID:            in.HostID,
			AppointmentTypeID: in.AppointmentTypeID,
			CustomerName:      in.CustomerName,
			CustomerEmail:     in.CustomerEmail,
			Notes:             in.Notes,
			StartTime:         start.UTC(),
			EndTime:           start.Add(time.Duration(duration) * time.Minute).UTC(),
			Status:            StatusConfirmed,
		}
		if bc.apptType.RequiresConfirmation {
			expiresAt := now.Add(s.cfg.AppointmentTTL)
			appt.Status = StatusPending
			appt.ExpiresAt = &expiresAt
		}

		saved, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = saved

		s.logEvent(lockCtx, saved.ID, EventAppointmentCreated, map[string]any{
			"host_id":             saved.HostID.String(),
			"appointment_type_id": saved.AppointmentTypeID.String(),
			"status":              saved.Status,
			"start_time":          saved.StartTime,
			"end_time":            saved.EndTime,
			"expires_at":          saved.ExpiresAt,
		})

		if saved.Status == StatusConfirmed {
			s.scheduleReminders(lockCtx, saved, bc.host)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	now := s.now()

	if appt.Status == StatusExpired {
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status == StatusPending && appt.ExpiresAt != nil && appt.ExpiresAt.Before(now) {
		_, updErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if updErr != nil && !errors.Is(updErr, ErrAppointmentNotFound) {
			s.logger.Error("mark appointment expired during confirm failed", "appointment_id", appt.ID, "err", updErr)
		}
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "confirm_after_expiry",
		})
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, err
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})

	host, err := s.repo.GetHostByID(ctx, updated.HostID)
	if err != nil {
		s.logger.Warn("load host for reminders failed", "host_id", updated.HostID, "err", err)
		host = nil
	}
	s.scheduleReminders(ctx, updated, host)

	return updated, nil
}

// CancelAppointment cancels a pending or confirmed appointment and its outstanding reminders.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if err := s.repo.CancelPendingReminders(ctx, updated.ID); err != nil {
		s.logger.Error("cancel reminders failed", "appointment_id", updated.ID, "err", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"previous_status": appt.Status,
		"reason":          strings.TrimSpace(reason),
	})

	return updated, nil
}

// ExpirePendingAppointments is intended to be called by the worker periodically
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	expiredCandidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range expiredCandidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Error("expire appointment failed", "appointment_id", appt.ID, "err", err)
			}
			continue
		}
		expired++
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload failed", "event_type", eventType, "err", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log failed", "event_type", eventType, "appointment_id", appointmentID, "err", err)
	}
}

// GetAppointment retrieves an appointment with its type and host
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	detail := &AppointmentDetail{Appointment: *appt}

	if t, err := s.repo.GetAppointmentTypeByID(ctx, appt.AppointmentTypeID); err == nil {
		detail.Type = t
	} else if !errors.Is(err, ErrAppointmentTypeNotFound) {
		return nil, fmt.Errorf("get appointment type: %w", err)
	}

	if h, err := s.repo.GetHostByID(ctx, appt.HostID); err == nil {
		detail.Host = h
	} else if !errors.Is(err, ErrHostNotFound) {
		return nil, fmt.Errorf("get host: %w", err)
	}

	return detail, nil
}

// ListAppointmentsByHost retrieves a host's appointments intersecting [from, to)
func (s *Service) ListAppointmentsByHost(ctx context.Context, hostID uuid.UUID, from, to time.Time, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: to must be after from", availability.ErrInvalidInput)
	}

	appointments, err := s.repo.ListAppointmentsByHost(ctx, hostID, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by host: %w", err)
	}
	return appointments, nil
}
