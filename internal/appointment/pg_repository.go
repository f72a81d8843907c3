package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/booking-availability/internal/availability"
)

const appointmentColumns = `id, host_id, appointment_type_id, customer_name, customer_email, notes,
	start_time, end_time, status, created_at, updated_at, expires_at, cancelled_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// IsConflict reports whether err is an exclusion or unique violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01" || pgErr.Code == "23505"
	}
	return false
}

// Helpers

func scanHost(row pgx.Row) (*Host, error) {
	var h Host
	var email *string

	err := row.Scan(
		&h.ID,
		&h.Name,
		&email,
		&h.Timezone,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHostNotFound
		}
		return nil, err
	}

	h.Email = email
	return &h, nil
}

func scanAppointmentType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType

	err := row.Scan(
		&t.ID,
		&t.HostID,
		&t.Name,
		&t.DurationMinutes,
		&t.RequiresConfirmation,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentTypeNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var expiresAt, cancelledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.HostID,
		&a.AppointmentTypeID,
		&a.CustomerName,
		&a.CustomerEmail,
		&a.Notes,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&expiresAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ExpiresAt = expiresAt
	a.CancelledAt = cancelledAt
	return &a, nil
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.Kind,
		&r.Recipient,
		&r.SendAt,
		&r.Status,
		&r.Error,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}

	return &r, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetHostByID(ctx context.Context, id uuid.UUID) (*Host, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, timezone, created_at, updated_at
		FROM hosts
		WHERE id = $1
	`, id)
	return scanHost(row)
}

func (r *PgRepository) UpdateHostTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE hosts
		SET timezone = $2, updated_at = now()
		WHERE id = $1
	`, id, timezone)
	if err != nil {
		return fmt.Errorf("update host timezone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrHostNotFound
	}
	return nil
}

func (r *PgRepository) GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, host_id, name, duration_minutes, requires_confirmation, is_active, created_at, updated_at
		FROM appointment_types
		WHERE id = $1
	`, id)
	return scanAppointmentType(row)
}

func (r *PgRepository) ListAppointmentTypes(ctx context.Context, hostID uuid.UUID) ([]AppointmentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, host_id, name, duration_minutes, requires_confirmation, is_active, created_at, updated_at
		FROM appointment_types
		WHERE host_id = $1
		ORDER BY name
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentType
	for rows.Next() {
		t, err := scanAppointmentType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateAppointmentType(ctx context.Context, t AppointmentType) (*AppointmentType, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_types (id, host_id, name, duration_minutes, requires_confirmation, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, host_id, name, duration_minutes, requires_confirmation, is_active, created_at, updated_at
	`, t.ID, t.HostID, t.Name, t.DurationMinutes, t.RequiresConfirmation, t.IsActive)

	return scanAppointmentType(row)
}

func (r *PgRepository) GetAvailabilitySettings(ctx context.Context, hostID uuid.UUID) (*availability.Settings, error) {
	var s availability.Settings
	var schedule []byte
	var blackout []time.Time

	err := r.pool.QueryRow(ctx, `
		SELECT weekly_schedule, buffer_time_before, buffer_time_after, minimum_notice, maximum_advance, blackout_dates
		FROM availability_settings
		WHERE host_id = $1
	`, hostID).Scan(
		&schedule,
		&s.BufferTimeBefore,
		&s.BufferTimeAfter,
		&s.MinimumNotice,
		&s.MaximumAdvance,
		&blackout,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(schedule, &s.WeeklySchedule); err != nil {
		return nil, fmt.Errorf("decode weekly schedule: %w", err)
	}
	for _, d := range blackout {
		s.BlackoutDates = append(s.BlackoutDates, availability.DateOf(d))
	}

	return &s, nil
}

func (r *PgRepository) UpsertAvailabilitySettings(ctx context.Context, hostID uuid.UUID, s availability.Settings) error {
	schedule, err := json.Marshal(s.WeeklySchedule)
	if err != nil {
		return fmt.Errorf("encode weekly schedule: %w", err)
	}

	blackout := make([]time.Time, 0, len(s.BlackoutDates))
	for _, d := range s.BlackoutDates {
		blackout = append(blackout, d.At(availability.Clock{}, time.UTC))
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO availability_settings
			(host_id, weekly_schedule, buffer_time_before, buffer_time_after, minimum_notice, maximum_advance, blackout_dates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (host_id) DO UPDATE
		SET weekly_schedule = EXCLUDED.weekly_schedule,
		    buffer_time_before = EXCLUDED.buffer_time_before,
		    buffer_time_after = EXCLUDED.buffer_time_after,
		    minimum_notice = EXCLUDED.minimum_notice,
		    maximum_advance = EXCLUDED.maximum_advance,
		    blackout_dates = EXCLUDED.blackout_dates,
		    updated_at = now()
	`, hostID, schedule, s.BufferTimeBefore, s.BufferTimeAfter, s.MinimumNotice, s.MaximumAdvance, blackout)
	if err != nil {
		return fmt.Errorf("upsert availability settings: %w", err)
	}
	return nil
}

func (r *PgRepository) ListBusyIntervals(ctx context.Context, hostID uuid.UUID, window availability.Interval, statuses []AppointmentStatus) ([]availability.Interval, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE host_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND end_time > $3
		ORDER BY start_time
	`, hostID, names, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByHost(ctx context.Context, hostID uuid.UUID, from, to time.Time, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE host_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
		LIMIT $4 OFFSET $5
	`, hostID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, host_id, appointment_type_id, customer_name, customer_email, notes, start_time, end_time, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), $10)
		RETURNING `+appointmentColumns,
		a.ID, a.HostID, a.AppointmentTypeID, a.CustomerName, a.CustomerEmail, a.Notes,
		a.StartTime, a.EndTime, a.Status, a.ExpiresAt)

	created, err := scanAppointment(row)
	if err != nil {
		if IsConflict(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now(),
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	updated, err := scanAppointment(row)
	if err != nil {
		if IsConflict(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertReminders(ctx context.Context, reminders []Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rem := range reminders {
		id := rem.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO reminders (id, appointment_id, kind, recipient, send_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', now(), now())
		`, id, rem.AppointmentID, rem.Kind, rem.Recipient, rem.SendAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert reminders: %w", err)
	}
	return nil
}

func (r *PgRepository) CancelPendingReminders(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	return nil
}

func (r *PgRepository) FindDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, kind, recipient, send_at, status, error, created_at
		FROM reminders
		WHERE status = 'pending'
		  AND send_at <= $1
		ORDER BY send_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// MarkReminder moves a pending reminder to its final state. A reminder another worker already
// handled reports ErrReminderNotFound.
func (r *PgRepository) MarkReminder(ctx context.Context, id uuid.UUID, to ReminderStatus, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET status = $2,
		    error = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id, to, msg)
	if err != nil {
		return fmt.Errorf("mark reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
