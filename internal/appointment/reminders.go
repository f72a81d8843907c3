package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// reminderOffsets are how long before the start each reminder goes out.
var reminderOffsets = []struct {
	kind   ReminderKind
	before time.Duration
}{
	{ReminderInitial, 24 * time.Hour},
	{ReminderFollowUp, 2 * time.Hour},
	{ReminderHost, time.Hour},
}

const dueReminderBatch = 100

// planReminders builds the reminders for a confirmed appointment. Reminders whose send time
// has already passed are dropped, as is the host reminder when the host has no email.
func planReminders(appt *Appointment, host *Host, now time.Time) []Reminder {
	var out []Reminder
	for _, o := range reminderOffsets {
		sendAt := appt.StartTime.Add(-o.before)
		if !sendAt.After(now) {
			continue
		}

		recipient := appt.CustomerEmail
		if o.kind == ReminderHost {
			if host == nil || host.Email == nil || *host.Email == "" {
				continue
			}
			recipient = *host.Email
		}

		out = append(out, Reminder{
			AppointmentID: appt.ID,
			Kind:          o.kind,
			Recipient:     recipient,
			SendAt:        sendAt,
			Status:        ReminderPending,
		})
	}
	return out
}

func (s *Service) scheduleReminders(ctx context.Context, appt *Appointment, host *Host) {
	reminders := planReminders(appt, host, s.now())
	if len(reminders) == 0 {
		return
	}
	if err := s.repo.InsertReminders(ctx, reminders); err != nil {
		s.logger.Error("schedule reminders failed", "appointment_id", appt.ID, "err", err)
	}
}

// ProcessDueReminders marks reminders whose send time has come as sent and records a
// REMINDER_DUE event for each; delivery is done by whoever consumes the event stream.
// Reminders of appointments that are no longer confirmed are cancelled instead.
func (s *Service) ProcessDueReminders(ctx context.Context) (int, error) {
	due, err := s.repo.FindDueReminders(ctx, s.now(), dueReminderBatch)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, rem := range due {
		appt, err := s.repo.GetAppointmentByID(ctx, rem.AppointmentID)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Error("load appointment for reminder failed", "reminder_id", rem.ID, "err", err)
			continue
		}

		if appt == nil || appt.Status != StatusConfirmed {
			if err := s.repo.MarkReminder(ctx, rem.ID, ReminderCancelled, ""); err != nil && !errors.Is(err, ErrReminderNotFound) {
				s.logger.Error("cancel stale reminder failed", "reminder_id", rem.ID, "err", err)
			}
			continue
		}

		if err := s.repo.MarkReminder(ctx, rem.ID, ReminderSent, ""); err != nil {
			if !errors.Is(err, ErrReminderNotFound) {
				s.logger.Error("mark reminder sent failed", "reminder_id", rem.ID, "err", err)
			}
			continue
		}
		sent++

		s.logEvent(ctx, appt.ID, EventReminderDue, map[string]any{
			"reminder_id": rem.ID.String(),
			"kind":        rem.Kind,
			"recipient":   rem.Recipient,
			"start_time":  appt.StartTime,
		})
	}

	return sent, nil
}
