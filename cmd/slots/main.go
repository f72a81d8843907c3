package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/booking-availability/internal/availability"
)

type options struct {
	settingsPath string
	bookingsPath string
	date         string
	duration     int
	now          string
	timezone     string
	limit        int
	asJSON       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Compute bookable slots offline",
		Long: `Compute the bookable slots of one day from an availability settings file.

The settings file uses the same JSON shape as the availability-settings endpoint.
Existing bookings are an optional JSON array of {"start_time","end_time"} objects.

Example:
  slots --settings host.json --date 2026-10-19 --duration 30 --timezone Europe/Berlin`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.settingsPath, "settings", "", "path to availability settings JSON")
	f.StringVar(&opts.bookingsPath, "bookings", "", "path to existing bookings JSON")
	f.StringVar(&opts.date, "date", "", "day to compute, YYYY-MM-DD")
	f.IntVar(&opts.duration, "duration", 30, "appointment length in minutes")
	f.StringVar(&opts.now, "now", "", "evaluation time, RFC 3339 (default current time)")
	f.StringVar(&opts.timezone, "timezone", "UTC", "host IANA timezone")
	f.IntVar(&opts.limit, "limit", 0, "stop after this many slots (0 for all)")
	f.BoolVar(&opts.asJSON, "json", false, "print slots as JSON")
	_ = cmd.MarkFlagRequired("settings")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func run(out io.Writer, opts *options) error {
	settings, err := readSettings(opts.settingsPath)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", opts.timezone, err)
	}
	settings.Location = loc

	date, err := availability.ParseDate(opts.date)
	if err != nil {
		return err
	}

	now := time.Now()
	if opts.now != "" {
		now, err = time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("parse --now: %w", err)
		}
	}

	var bookings []availability.Interval
	if opts.bookingsPath != "" {
		if err := readJSON(opts.bookingsPath, &bookings); err != nil {
			return fmt.Errorf("read bookings: %w", err)
		}
	}

	seq, err := availability.Slots(date, opts.duration, settings, bookings, now)
	if err != nil {
		return err
	}

	slots := []availability.TimeSlot{}
	for slot := range seq {
		slots = append(slots, slot)
		if opts.limit > 0 && len(slots) >= opts.limit {
			break
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(slots)
	}

	if len(slots) == 0 {
		fmt.Fprintf(out, "No slots on %s.\n", date)
		return nil
	}
	for _, s := range slots {
		fmt.Fprintf(out, "%s - %s\n", s.StartTime.In(loc).Format("15:04"), s.EndTime.In(loc).Format("15:04"))
	}
	return nil
}

func readSettings(path string) (availability.Settings, error) {
	var s availability.Settings
	if err := readJSON(path, &s); err != nil {
		return availability.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return availability.Settings{}, err
	}
	return s, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("file is empty")
	}
	return json.Unmarshal(data, v)
}
