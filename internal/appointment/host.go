package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/booking-availability/internal/availability"
)

// GetAvailabilitySettings returns the host's settings with the host's location attached.
func (s *Service) GetAvailabilitySettings(ctx context.Context, hostID uuid.UUID) (*availability.Settings, error) {
	host, err := s.repo.GetHostByID(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}

	settings, err := s.repo.GetAvailabilitySettings(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("get availability settings: %w", err)
	}
	settings.Location = host.Location()
	return settings, nil
}

// SaveAvailabilitySettings validates and stores the host's settings. A non-nil Location
// replaces the host's timezone. Existing appointments are left alone; only future slot
// queries see the change.
func (s *Service) SaveAvailabilitySettings(ctx context.Context, hostID uuid.UUID, settings availability.Settings) (*availability.Settings, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", availability.ErrInvalidInput, err)
	}

	host, err := s.repo.GetHostByID(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}

	if settings.Location != nil && settings.Location.String() != host.Timezone {
		if err := s.repo.UpdateHostTimezone(ctx, hostID, settings.Location.String()); err != nil {
			return nil, fmt.Errorf("update host timezone: %w", err)
		}
		host.Timezone = settings.Location.String()
	}

	if err := s.repo.UpsertAvailabilitySettings(ctx, hostID, settings); err != nil {
		return nil, fmt.Errorf("save availability settings: %w", err)
	}

	settings.Location = host.Location()
	s.logger.Info("availability settings saved", "host_id", hostID, "days", len(settings.WeeklySchedule), "timezone", host.Timezone)
	return &settings, nil
}

type CreateAppointmentTypeInput struct {
	Name                 string
	DurationMinutes      int
	RequiresConfirmation bool
}

func (s *Service) CreateAppointmentType(ctx context.Context, hostID uuid.UUID, in CreateAppointmentTypeInput) (*AppointmentType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", availability.ErrInvalidInput)
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > availability.MaxDurationMinutes {
		return nil, fmt.Errorf("%w: duration_minutes must be between 1 and %d",
			availability.ErrInvalidInput, availability.MaxDurationMinutes)
	}

	if _, err := s.repo.GetHostByID(ctx, hostID); err != nil {
		return nil, fmt.Errorf("get host: %w", err)
	}

	t, err := s.repo.CreateAppointmentType(ctx, AppointmentType{
		ID:                   uuid.New(),
		HostID:               hostID,
		Name:                 name,
		DurationMinutes:      in.DurationMinutes,
		RequiresConfirmation: in.RequiresConfirmation,
		IsActive:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment type: %w", err)
	}
	return t, nil
}

func (s *Service) ListAppointmentTypes(ctx context.Context, hostID uuid.UUID) ([]AppointmentType, error) {
	if _, err := s.repo.GetHostByID(ctx, hostID); err != nil {
		if errors.Is(err, ErrHostNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get host: %w", err)
	}

	types, err := s.repo.ListAppointmentTypes(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	if types == nil {
		types = []AppointmentType{}
	}
	return types, nil
}
