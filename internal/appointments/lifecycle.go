package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/internal/zoom"
)

// HandleMeetingEvent applies a Zoom lifecycle event to the appointment that
// owns the meeting. It satisfies zoom.LifecycleSink.
func (s *Service) HandleMeetingEvent(ctx context.Context, evt zoom.LifecycleEvent) error {
	ctx, span := tracer.Start(ctx, "appointments.meeting_event")
	defer span.End()

	if evt.MeetingID == "" {
		return fmt.Errorf("appointments: lifecycle event %s without meeting id", evt.Type)
	}

	var apply func(a *Appointment) error
	switch evt.Type {
	case zoom.EventMeetingStarted:
		apply = func(a *Appointment) error {
			return a.ApplyStatus(StatusInProgress, evt.OccurredAt, evt.Type, "meeting started")
		}
	case zoom.EventMeetingEnded:
		apply = func(a *Appointment) error {
			return a.ApplyStatus(StatusCompleted, evt.OccurredAt, evt.Type, "meeting ended")
		}
	case zoom.EventMeetingUpdated:
		apply = func(a *Appointment) error {
			return a.ApplyStatus(StatusUpdated, evt.OccurredAt, evt.Type, evt.Detail)
		}
	case zoom.EventMeetingDeleted:
		apply = func(a *Appointment) error {
			return a.ApplyStatus(StatusCancelled, evt.OccurredAt, evt.Type, "meeting deleted in zoom")
		}
	case zoom.EventParticipantJoined:
		apply = func(a *Appointment) error {
			return applyParticipantJoined(a, evt)
		}
	case zoom.EventParticipantLeft:
		apply = func(a *Appointment) error {
			return applyParticipantLeft(a, evt)
		}
	case zoom.EventRecordingDone:
		apply = func(a *Appointment) error {
			return applyRecordings(a, evt)
		}
	default:
		s.logger.Debug("ignoring unhandled zoom event", "event", evt.Type, "meeting_id", evt.MeetingID)
		return nil
	}

	appt, err := s.store.UpdateByMeetingID(ctx, evt.MeetingID, apply)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("zoom event for unknown meeting", "event", evt.Type, "meeting_id", evt.MeetingID)
		case errors.Is(err, ErrStaleEvent):
			s.logger.Warn("dropping out-of-order zoom event", "event", evt.Type, "meeting_id", evt.MeetingID, "occurred_at", evt.OccurredAt)
		case errors.Is(err, ErrInvalidTransition):
			s.logger.Warn("dropping zoom event with invalid transition", "event", evt.Type, "meeting_id", evt.MeetingID)
		}
		return err
	}

	s.logger.Info("zoom event applied", "event", evt.Type, "id", appt.ID, "status", appt.Status)
	return nil
}

func applyParticipantJoined(a *Appointment, evt zoom.LifecycleEvent) error {
	if evt.Participant == nil {
		return fmt.Errorf("appointments: %s without participant payload", evt.Type)
	}
	a.Participants = append(a.Participants, Participant{
		Name:     evt.Participant.Name,
		Email:    evt.Participant.Email,
		UserID:   evt.Participant.UserID,
		JoinedAt: evt.OccurredAt,
	})
	a.recordActivity(evt.Type, fmt.Sprintf("%s joined", evt.Participant.Name), evt.OccurredAt)
	return nil
}

func applyParticipantLeft(a *Appointment, evt zoom.LifecycleEvent) error {
	if evt.Participant == nil {
		return fmt.Errorf("appointments: %s without participant payload", evt.Type)
	}
	// Close the most recent open join for this attendee.
	for i := len(a.Participants) - 1; i >= 0; i-- {
		p := &a.Participants[i]
		if p.UserID == evt.Participant.UserID && p.LeftAt == nil {
			left := evt.OccurredAt
			p.LeftAt = &left
			break
		}
	}
	a.recordActivity(evt.Type, fmt.Sprintf("%s left", evt.Participant.Name), evt.OccurredAt)
	return nil
}

func applyRecordings(a *Appointment, evt zoom.LifecycleEvent) error {
	for _, rec := range evt.Recordings {
		a.Recordings = append(a.Recordings, Recording{
			ID:             rec.ID,
			MeetingID:      rec.MeetingID,
			FileType:       rec.FileType,
			FileSize:       rec.FileSize,
			RecordingStart: rec.RecordingStart,
			RecordingEnd:   rec.RecordingEnd,
			DownloadURL:    rec.DownloadURL,
			PlayURL:        rec.PlayURL,
		})
	}
	a.recordActivity(evt.Type, fmt.Sprintf("%d recording files available", len(evt.Recordings)), evt.OccurredAt)
	return nil
}

// recordActivity appends a non-status activity entry and bumps the activity
// timestamps.
func (a *Appointment) recordActivity(event, detail string, at time.Time) {
	a.Activity = append(a.Activity, ActivityEntry{
		Event:      event,
		OccurredAt: at,
		Detail:     detail,
	})
	a.Touch(at)
}
