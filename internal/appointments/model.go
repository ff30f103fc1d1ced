// Package appointments holds the consultation booking domain: the appointment
// record, its status lifecycle, storage, and the HTTP surface for booking,
// self-service management, and admin operations.
package appointments

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusUpdated     Status = "updated"
)

var (
	// ErrNotFound is returned when no appointment matches a token or id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidTransition is returned when a status change violates the
	// transition table.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
	// ErrStaleEvent is returned when a lifecycle event is older than the last
	// applied one and is therefore ignored.
	ErrStaleEvent = errors.New("appointments: stale lifecycle event")
	// ErrCancelled is returned when a terminal cancelled appointment is
	// modified.
	ErrCancelled = errors.New("appointments: appointment is cancelled")
	// ErrSlotUnavailable is returned when the requested slot is already taken.
	ErrSlotUnavailable = errors.New("appointments: slot unavailable")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("appointments: invalid request")
)

// transitions is the allowed status transition table. Webhook handlers and
// admin actions go through ApplyStatus so an out-of-order meeting.ended can
// never resurrect a cancelled booking.
var transitions = map[Status]map[Status]struct{}{
	StatusConfirmed: {
		StatusInProgress:  {},
		StatusCancelled:   {},
		StatusRescheduled: {},
		StatusUpdated:     {},
	},
	StatusUpdated: {
		StatusInProgress:  {},
		StatusCancelled:   {},
		StatusRescheduled: {},
		StatusUpdated:     {},
	},
	StatusRescheduled: {
		StatusInProgress:  {},
		StatusCancelled:   {},
		StatusRescheduled: {},
		StatusUpdated:     {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusCancelled: {},
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusRescheduled, StatusUpdated:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition table allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// Participant is a meeting attendee observed through Zoom webhooks.
type Participant struct {
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	UserID   string     `json:"userId,omitempty"`
	JoinedAt time.Time  `json:"joinTime"`
	LeftAt   *time.Time `json:"leaveTime,omitempty"`
}

// Recording describes a cloud recording file reported by Zoom.
type Recording struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meetingId"`
	FileType       string    `json:"fileType"`
	FileSize       int64     `json:"fileSize"`
	RecordingStart time.Time `json:"recordingStart"`
	RecordingEnd   time.Time `json:"recordingEnd"`
	DownloadURL    string    `json:"downloadUrl"`
	PlayURL        string    `json:"playUrl,omitempty"`
}

// ActivityEntry records one applied lifecycle event for auditability.
type ActivityEntry struct {
	Event      string    `json:"event"`
	Status     Status    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Detail     string    `json:"detail,omitempty"`
}

// AdminNote is a free-form note attached by an operator.
type AdminNote struct {
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"timestamp"`
}

// Appointment is a booked consultation. Date and Time are kept as the
// client-facing strings ("2025-03-10", "10:00"); StartAt combines them.
type Appointment struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Service string `json:"service"`
	Message string `json:"message,omitempty"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Status  Status `json:"status"`

	ZoomMeetingID   string `json:"zoomMeetingId,omitempty"`
	ZoomJoinURL     string `json:"zoomJoinUrl,omitempty"`
	ZoomPassword    string `json:"zoomPassword,omitempty"`
	CalendarEventID string `json:"calendarEventId,omitempty"`

	Participants []Participant   `json:"participants,omitempty"`
	Recordings   []Recording     `json:"recordings,omitempty"`
	Activity     []ActivityEntry `json:"zoomActivity,omitempty"`
	AdminNotes   []AdminNote     `json:"adminNotes,omitempty"`

	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastActivity    *time.Time `json:"lastActivity,omitempty"`
	StatusChangedAt time.Time  `json:"statusChangedAt"`
}

// StartAt combines Date and Time into an instant in loc.
func (a *Appointment) StartAt(loc *time.Location) (time.Time, error) {
	return CombineDateTime(a.Date, a.Time, loc)
}

// CombineDateTime parses a "2006-01-02" date and "15:04" time string in loc.
func CombineDateTime(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("appointments: parse %q %q: %w", date, timeOfDay, err)
	}
	return t, nil
}

// FormatDate renders the client-facing long date ("Monday, March 10, 2025").
func FormatDate(date string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// ApplyStatus applies a lifecycle status change guarded by the transition
// table and the event timestamp. Events older than the last applied change
// return ErrStaleEvent; disallowed transitions return ErrInvalidTransition.
// event names the source ("meeting.started", "admin", "manage.cancel") and is
// recorded on the activity trail.
func (a *Appointment) ApplyStatus(next Status, occurredAt time.Time, event, detail string) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if occurredAt.Before(a.StatusChangedAt) {
		return fmt.Errorf("%w: %s at %s precedes %s", ErrStaleEvent, event, occurredAt.Format(time.RFC3339), a.StatusChangedAt.Format(time.RFC3339))
	}
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s on %s", ErrInvalidTransition, a.Status, next, event)
	}
	a.Status = next
	a.StatusChangedAt = occurredAt
	a.Touch(occurredAt)
	a.Activity = append(a.Activity, ActivityEntry{
		Event:      event,
		Status:     next,
		OccurredAt: occurredAt,
		Detail:     detail,
	})
	return nil
}

// Touch updates the activity timestamps without changing status.
func (a *Appointment) Touch(at time.Time) {
	a.UpdatedAt = at
	last := at
	a.LastActivity = &last
}

// Stats summarizes appointment counts per status for the admin dashboard.
type Stats struct {
	Total       int `json:"total"`
	Confirmed   int `json:"confirmed"`
	Cancelled   int `json:"cancelled"`
	Completed   int `json:"completed"`
	InProgress  int `json:"inProgress"`
	Rescheduled int `json:"rescheduled"`
}

// ComputeStats tallies stats over the given appointments.
func ComputeStats(list []*Appointment) Stats {
	s := Stats{Total: len(list)}
	for _, a := range list {
		switch a.Status {
		case StatusConfirmed, StatusUpdated:
			s.Confirmed++
		case StatusCancelled:
			s.Cancelled++
		case StatusCompleted:
			s.Completed++
		case StatusInProgress:
			s.InProgress++
		case StatusRescheduled:
			s.Rescheduled++
		}
	}
	return s
}
