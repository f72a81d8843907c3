package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/booking-availability/internal/appointment"
	"github.com/hackgods/booking-availability/internal/availability"
	"github.com/hackgods/booking-availability/internal/config"
	"github.com/hackgods/booking-availability/internal/db"
	"github.com/hackgods/booking-availability/internal/logging"
)

var timezones = []string{
	"UTC",
	"Europe/London",
	"Europe/Berlin",
	"America/New_York",
	"America/Los_Angeles",
	"Asia/Dhaka",
	"Asia/Tokyo",
	"Australia/Sydney",
}

var meetingKinds = []struct {
	name                 string
	minutes              int
	requiresConfirmation bool
}{
	{"Intro call", 15, false},
	{"Consultation", 30, false},
	{"Deep dive", 60, true},
	{"Workshop", 90, true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("seed", "info").Error("config load error", "err", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.LogLevel)
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	gofakeit.Seed(0)

	hostIDs, err := seedHosts(ctx, pool, logger, 100)
	if err != nil {
		logger.Error("seed hosts", "err", err)
		os.Exit(1)
	}

	repo := appointment.NewPgRepository(pool)
	if err := seedCalendars(ctx, repo, logger, hostIDs); err != nil {
		logger.Error("seed calendars", "err", err)
		os.Exit(1)
	}

	logger.Info("seed complete", "hosts", len(hostIDs))
}

func seedHosts(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, count int) ([]uuid.UUID, error) {
	logger.Info("seeding hosts", "count", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO hosts (id, name, email, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Name(), gofakeit.Email(), tz)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info("hosts seeded", "count", len(ids))
	return ids, nil
}

// seedCalendars gives each host two or three appointment types and a working week.
func seedCalendars(ctx context.Context, repo *appointment.PgRepository, logger *slog.Logger, hostIDs []uuid.UUID) error {
	for i, hostID := range hostIDs {
		kinds := gofakeit.Number(2, len(meetingKinds))
		for _, k := range meetingKinds[:kinds] {
			_, err := repo.CreateAppointmentType(ctx, appointment.AppointmentType{
				ID:                   uuid.New(),
				HostID:               hostID,
				Name:                 k.name,
				DurationMinutes:      k.minutes,
				RequiresConfirmation: k.requiresConfirmation,
				IsActive:             true,
			})
			if err != nil {
				return err
			}
		}

		settings := randomSettings()
		if err := settings.Validate(); err != nil {
			return err
		}
		if err := repo.UpsertAvailabilitySettings(ctx, hostID, settings); err != nil {
			return err
		}

		if (i+1)%25 == 0 {
			logger.Info("calendars seeded", "done", i+1, "total", len(hostIDs))
		}
	}
	return nil
}

func randomSettings() availability.Settings {
	open := availability.Clock{Hour: gofakeit.Number(7, 10)}
	closeAt := availability.Clock{Hour: gofakeit.Number(15, 19)}

	var week []availability.DaySchedule
	for d := time.Sunday; d <= time.Saturday; d++ {
		week = append(week, availability.DaySchedule{
			DayOfWeek:   d,
			IsAvailable: d != time.Saturday && d != time.Sunday,
			StartTime:   open,
			EndTime:     closeAt,
		})
	}

	var blackouts []availability.Date
	today := time.Now().UTC()
	for n := gofakeit.Number(0, 3); n > 0; n-- {
		blackouts = append(blackouts, availability.DateOf(today.AddDate(0, 0, gofakeit.Number(1, 60))))
	}

	buffers := []int{0, 5, 10, 15}
	return availability.Settings{
		WeeklySchedule:   week,
		BufferTimeBefore: buffers[gofakeit.Number(0, len(buffers)-1)],
		BufferTimeAfter:  buffers[gofakeit.Number(0, len(buffers)-1)],
		MinimumNotice:    gofakeit.Number(0, 24) * 60,
		MaximumAdvance:   gofakeit.Number(14, 90),
		BlackoutDates:    blackouts,
	}
}
