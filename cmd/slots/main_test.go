package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-availability/internal/availability"
)

const settingsJSON = `{
  "weekly_schedule": [
    {"day_of_week": 1, "is_available": true, "start_time": "09:00", "end_time": "12:00"}
  ],
  "buffer_time_before": 0,
  "buffer_time_after": 0,
  "minimum_notice": 60,
  "maximum_advance": 30,
  "blackout_dates": ["2026-12-25"]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSlotsCommand(t *testing.T) {
	settings := writeFile(t, "settings.json", settingsJSON)
	now := "2026-10-18T12:00:00Z"

	t.Run("table output", func(t *testing.T) {
		out, err := execute(t, "--settings", settings, "--date", "2026-10-19", "--duration", "60", "--now", now)
		require.NoError(t, err)
		assert.Equal(t, "09:00 - 10:00\n10:00 - 11:00\n11:00 - 12:00\n", out)
	})

	t.Run("bookings and json output", func(t *testing.T) {
		bookings := writeFile(t, "bookings.json", `[{"start_time":"2026-10-19T10:00:00Z","end_time":"2026-10-19T10:30:00Z"}]`)
		out, err := execute(t, "--settings", settings, "--bookings", bookings, "--date", "2026-10-19", "--duration", "60", "--now", now, "--json")
		require.NoError(t, err)

		var slots []availability.TimeSlot
		require.NoError(t, json.Unmarshal([]byte(out), &slots))
		require.Len(t, slots, 2)
		assert.Equal(t, 9, slots[0].StartTime.Hour())
		assert.Equal(t, 11, slots[1].StartTime.Hour())
	})

	t.Run("limit stops early", func(t *testing.T) {
		out, err := execute(t, "--settings", settings, "--date", "2026-10-19", "--duration", "30", "--now", now, "--limit", "2")
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	})

	t.Run("blackout day", func(t *testing.T) {
		out, err := execute(t, "--settings", settings, "--date", "2026-12-25", "--now", now)
		require.NoError(t, err)
		assert.Equal(t, "No slots on 2026-12-25.\n", out)
	})

	t.Run("timezone shifts output", func(t *testing.T) {
		out, err := execute(t, "--settings", settings, "--date", "2026-10-19", "--duration", "180", "--now", now, "--timezone", "Europe/Berlin", "--json")
		require.NoError(t, err)

		var slots []availability.TimeSlot
		require.NoError(t, json.Unmarshal([]byte(out), &slots))
		require.Len(t, slots, 1)
		assert.Equal(t, 7, slots[0].StartTime.UTC().Hour())
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := execute(t, "--settings", settings, "--date", "2026-10-19", "--duration", "0", "--now", now)
		assert.ErrorIs(t, err, availability.ErrInvalidInput)
	})

	t.Run("invalid settings file", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"weekly_schedule": [], "maximum_advance": 0}`)
		_, err := execute(t, "--settings", bad, "--date", "2026-10-19")
		assert.ErrorIs(t, err, availability.ErrInvalidSettings)
	})

	t.Run("missing required flag", func(t *testing.T) {
		_, err := execute(t, "--date", "2026-10-19")
		assert.Error(t, err)
	})
}
