package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ListAll returns every appointment newest first plus the status tallies for
// the admin dashboard.
func (s *Service) ListAll(ctx context.Context) ([]*Appointment, Stats, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("appointments: list: %w", err)
	}
	return list, ComputeStats(list), nil
}

// findByID resolves an appointment id to its management token. Admin actions
// are keyed by id rather than token so the token never has to leave the
// client-facing emails.
func (s *Service) findByID(ctx context.Context, id string) (*Appointment, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	for _, a := range list {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// AdminUpdateStatus forces a status change through the transition table on
// behalf of an operator.
func (s *Service) AdminUpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	appt, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, appt.Token, func(a *Appointment) error {
		return a.ApplyStatus(status, time.Now().UTC(), "admin.update_status", "status set by admin")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin status update", "id", id, "status", status)
	return updated, nil
}

// AdminAddNote attaches an operator note to the appointment.
func (s *Service) AdminAddNote(ctx context.Context, id, note string) (*Appointment, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("%w: note is required", ErrValidation)
	}
	appt, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, appt.Token, func(a *Appointment) error {
		a.AdminNotes = append(a.AdminNotes, AdminNote{Note: note, CreatedAt: time.Now().UTC()})
		a.Touch(time.Now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin note added", "id", id)
	return updated, nil
}

// AdminDelete removes the appointment record entirely. The Zoom meeting and
// calendar event are torn down first when they exist.
func (s *Service) AdminDelete(ctx context.Context, id string) error {
	appt, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.CalendarEventID != "" && s.events != nil && s.events.IsConfigured() {
		if err := s.events.DeleteEvent(ctx, appt.CalendarEventID); err != nil {
			s.logger.Error("calendar event deletion failed, deleting record anyway", "error", err, "id", id)
		}
	}
	if appt.ZoomMeetingID != "" && s.meetings != nil && s.meetings.IsConfigured() {
		if err := s.meetings.DeleteMeeting(ctx, appt.ZoomMeetingID); err != nil {
			s.logger.Error("zoom meeting deletion failed, deleting record anyway", "error", err, "id", id)
		}
	}
	if err := s.store.Delete(ctx, appt.Token); err != nil {
		return err
	}
	s.logger.Info("appointment deleted by admin", "id", id)
	return nil
}
