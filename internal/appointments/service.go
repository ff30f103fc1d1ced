package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cvcwebsolutions/scheduling-api/internal/availability"
	"github.com/cvcwebsolutions/scheduling-api/internal/calendar"
	"github.com/cvcwebsolutions/scheduling-api/internal/observability/metrics"
	"github.com/cvcwebsolutions/scheduling-api/internal/slotlock"
	"github.com/cvcwebsolutions/scheduling-api/internal/zoom"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

var tracer = otel.Tracer("scheduling.internal.appointments")

// MeetingScheduler is the slice of the Zoom client the service uses.
type MeetingScheduler interface {
	IsConfigured() bool
	CreateMeeting(ctx context.Context, req zoom.MeetingRequest) (*zoom.Meeting, error)
	UpdateMeeting(ctx context.Context, meetingID string, req zoom.MeetingRequest) error
	DeleteMeeting(ctx context.Context, meetingID string) error
}

// CalendarScheduler is the slice of the Google Calendar client the service
// uses.
type CalendarScheduler interface {
	IsConfigured() bool
	CreateEvent(ctx context.Context, input calendar.EventInput) (string, error)
	UpdateEventTime(ctx context.Context, eventID string, start, end time.Time, timezone string) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Notifier sends the booking emails. Both calls are best-effort.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *Appointment) error
	HostAlert(ctx context.Context, appt *Appointment) error
}

// BookingRequest is the POST /api/appointments payload.
type BookingRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Message string `json:"message,omitempty"`
}

// Validate checks required fields and the date/slot formats.
func (r *BookingRequest) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", r.Name},
		{"email", r.Email},
		{"service", r.Service},
		{"date", r.Date},
		{"time", r.Time},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrValidation, r.Date)
	}
	if !availability.ValidSlot(r.Time) {
		return fmt.Errorf("%w: time %q is not a bookable slot", ErrValidation, r.Time)
	}
	return nil
}

// Service orchestrates booking, rescheduling, cancellation, and webhook
// lifecycle sync over the injected store and integrations.
type Service struct {
	store    Store
	checker  *availability.Checker
	meetings MeetingScheduler
	events   CalendarScheduler
	notifier Notifier
	locks    slotlock.Locker
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger

	duration time.Duration
	timezone string
	loc      *time.Location
}

// ServiceConfig wires the service dependencies.
type ServiceConfig struct {
	Store    Store
	Checker  *availability.Checker
	Meetings MeetingScheduler
	Events   CalendarScheduler
	Notifier Notifier
	Locks    slotlock.Locker
	Metrics  *metrics.SchedulingMetrics
	Logger   *logging.Logger

	MeetingDuration time.Duration
	Timezone        string
}

// NewService constructs the appointments service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("appointments: store required")
	}
	if cfg.Checker == nil {
		panic("appointments: availability checker required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	locks := cfg.Locks
	if locks == nil {
		locks = slotlock.NewMemoryLocker()
	}
	duration := cfg.MeetingDuration
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", "timezone", timezone)
		loc = time.UTC
		timezone = "UTC"
	}
	return &Service{
		store:    cfg.Store,
		checker:  cfg.Checker,
		meetings: cfg.Meetings,
		events:   cfg.Events,
		notifier: cfg.Notifier,
		locks:    locks,
		metrics:  cfg.Metrics,
		logger:   logger,
		duration: duration,
		timezone: timezone,
		loc:      loc,
	}
}

// Location returns the timezone the slot grid is interpreted in.
func (s *Service) Location() *time.Location { return s.loc }

// Availability returns the per-slot availability for a day.
func (s *Service) Availability(ctx context.Context, date time.Time) []availability.Slot {
	s.metrics.ObserveAvailabilityCheck()
	return s.checker.Day(ctx, date)
}

// Book creates an appointment: slot lock, availability re-check, best-effort
// Zoom + Calendar creation, store write, best-effort emails. Only validation
// and slot conflicts are hard failures.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.date", req.Date),
		attribute.String("scheduling.time", req.Time),
		attribute.String("scheduling.service", req.Service),
	)

	if err := req.Validate(); err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}

	startAt, err := CombineDateTime(req.Date, req.Time, s.loc)
	if err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Serialize check-then-create per slot. Holding the lock across the
	// availability check closes the double-booking race.
	release, ok, err := s.locks.Acquire(ctx, slotlock.Key(req.Date, req.Time), 30*time.Second)
	if err != nil {
		s.logger.Error("slot lock unavailable, proceeding unlocked", "error", err)
	} else if !ok {
		s.metrics.ObserveBooking("conflict")
		return nil, fmt.Errorf("%w: slot %s %s is being booked", ErrSlotUnavailable, req.Date, req.Time)
	} else {
		defer release()
	}

	if !s.checker.SlotAvailable(ctx, startAt, req.Time) {
		s.metrics.ObserveBooking("conflict")
		return nil, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, req.Date, req.Time)
	}

	now := time.Now().UTC()
	appt := &Appointment{
		ID:              "apt_" + uuid.NewString(),
		Token:           uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Company:         req.Company,
		Service:         req.Service,
		Message:         req.Message,
		Date:            req.Date,
		Time:            req.Time,
		Status:          StatusConfirmed,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusChangedAt: now,
	}

	s.createMeeting(ctx, appt, startAt)
	s.createCalendarEvent(ctx, appt, startAt)

	if err := s.store.Create(ctx, appt); err != nil {
		s.metrics.ObserveBooking("error")
		s.discardArtifacts(ctx, appt)
		return nil, fmt.Errorf("appointments: store booking: %w", err)
	}

	s.sendBookingEmails(ctx, appt)

	s.metrics.ObserveBooking("confirmed")
	s.logger.Info("appointment booked",
		"id", appt.ID,
		"service", appt.Service,
		"date", appt.Date,
		"time", appt.Time,
		"zoom_meeting_id", appt.ZoomMeetingID,
	)
	return appt, nil
}

func (s *Service) createMeeting(ctx context.Context, appt *Appointment, startAt time.Time) {
	if s.meetings == nil || !s.meetings.IsConfigured() {
		s.logger.Warn("zoom not configured, booking without meeting", "id", appt.ID)
		return
	}
	meeting, err := s.meetings.CreateMeeting(ctx, s.meetingRequest(appt, startAt))
	if err != nil {
		s.logger.Error("zoom meeting creation failed, continuing without meeting", "error", err, "id", appt.ID)
		return
	}
	appt.ZoomMeetingID = zoom.FormatMeetingID(meeting.ID)
	appt.ZoomJoinURL = meeting.JoinURL
	appt.ZoomPassword = meeting.Password
}

func (s *Service) meetingRequest(appt *Appointment, startAt time.Time) zoom.MeetingRequest {
	return zoom.MeetingRequest{
		Topic:     fmt.Sprintf("%s Consultation with %s", appt.Service, appt.Name),
		Type:      zoom.MeetingTypeScheduled,
		StartTime: startAt.UTC().Format(time.RFC3339),
		Duration:  int(s.duration.Minutes()),
		Timezone:  s.timezone,
		Settings: zoom.MeetingSettings{
			HostVideo:                    true,
			ParticipantVideo:             true,
			MuteUponEntry:                true,
			WaitingRoom:                  true,
			RegistrantsEmailNotification: true,
		},
	}
}

func (s *Service) createCalendarEvent(ctx context.Context, appt *Appointment, startAt time.Time) {
	if s.events == nil || !s.events.IsConfigured() {
		return
	}
	eventID, err := s.events.CreateEvent(ctx, calendar.EventInput{
		Summary:       eventSummary(appt),
		Description:   eventDescription(appt),
		Start:         startAt,
		End:           startAt.Add(s.duration),
		AttendeeEmail: appt.Email,
		AttendeeName:  appt.Name,
		Timezone:      s.timezone,
	})
	if err != nil {
		s.logger.Error("calendar event creation failed, continuing without event", "error", err, "id", appt.ID)
		return
	}
	appt.CalendarEventID = eventID
}

// discardArtifacts tears down the Zoom meeting and Calendar event created for
// a booking that could not be persisted, so failed bookings leave no orphaned
// meetings on either provider.
func (s *Service) discardArtifacts(ctx context.Context, appt *Appointment) {
	if appt.CalendarEventID != "" && s.events != nil {
		if err := s.events.DeleteEvent(ctx, appt.CalendarEventID); err != nil {
			s.logger.Error("orphaned calendar event not deleted", "error", err, "event_id", appt.CalendarEventID)
		}
	}
	if appt.ZoomMeetingID != "" && s.meetings != nil {
		if err := s.meetings.DeleteMeeting(ctx, appt.ZoomMeetingID); err != nil {
			s.logger.Error("orphaned zoom meeting not deleted", "error", err, "meeting_id", appt.ZoomMeetingID)
		}
	}
}

func eventSummary(appt *Appointment) string {
	summary := fmt.Sprintf("%s - %s", appt.Service, appt.Name)
	if appt.Company != "" {
		summary += fmt.Sprintf(" (%s)", appt.Company)
	}
	return summary
}

func eventDescription(appt *Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consultation: %s\n\n", appt.Service)
	fmt.Fprintf(&b, "Client: %s\n", appt.Name)
	if appt.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", appt.Company)
	}
	fmt.Fprintf(&b, "Email: %s\n", appt.Email)
	if appt.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", appt.Phone)
	}
	if appt.Message != "" {
		fmt.Fprintf(&b, "\nMessage:\n%s\n", appt.Message)
	}
	if appt.ZoomJoinURL != "" {
		fmt.Fprintf(&b, "\nZoom Meeting: %s", appt.ZoomJoinURL)
	}
	return b.String()
}

func (s *Service) sendBookingEmails(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingConfirmed(ctx, appt); err != nil {
		s.logger.Error("confirmation email failed", "error", err, "id", appt.ID)
	}
	if err := s.notifier.HostAlert(ctx, appt); err != nil {
		s.logger.Error("host alert email failed", "error", err, "id", appt.ID)
	}
}

// Get returns the appointment for a management token.
func (s *Service) Get(ctx context.Context, token string) (*Appointment, error) {
	return s.store.GetByToken(ctx, token)
}

// Cancel cancels the appointment behind token, tearing down the Zoom meeting
// and calendar event best-effort before recording the cancellation.
func (s *Service) Cancel(ctx context.Context, token string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()

	appt, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	if appt.CalendarEventID != "" && s.events != nil && s.events.IsConfigured() {
		if err := s.events.DeleteEvent(ctx, appt.CalendarEventID); err != nil {
			s.logger.Error("calendar event deletion failed, cancelling anyway", "error", err, "id", appt.ID)
		}
	}
	if appt.ZoomMeetingID != "" && s.meetings != nil && s.meetings.IsConfigured() {
		if err := s.meetings.DeleteMeeting(ctx, appt.ZoomMeetingID); err != nil {
			s.logger.Error("zoom meeting deletion failed, cancelling anyway", "error", err, "id", appt.ID)
		}
	}

	updated, err := s.store.Update(ctx, token, func(a *Appointment) error {
		return a.ApplyStatus(StatusCancelled, time.Now().UTC(), "manage.cancel", "cancelled by client")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled", "id", updated.ID)
	return updated, nil
}

// Reschedule moves the appointment behind token to a new slot, re-running the
// availability check under the slot lock and moving the upstream Zoom meeting
// and calendar event best-effort.
func (s *Service) Reschedule(ctx context.Context, token, newDate, newTime string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.date", newDate),
		attribute.String("scheduling.time", newTime),
	)

	if newDate == "" || newTime == "" {
		return nil, fmt.Errorf("%w: new date and time are required for rescheduling", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", newDate); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, newDate)
	}
	if !availability.ValidSlot(newTime) {
		return nil, fmt.Errorf("%w: time %q is not a bookable slot", ErrValidation, newTime)
	}

	appt, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	startAt, err := CombineDateTime(newDate, newTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	release, ok, err := s.locks.Acquire(ctx, slotlock.Key(newDate, newTime), 30*time.Second)
	if err != nil {
		s.logger.Error("slot lock unavailable, proceeding unlocked", "error", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: slot %s %s is being booked", ErrSlotUnavailable, newDate, newTime)
	} else {
		defer release()
	}

	if !s.checker.SlotAvailable(ctx, startAt, newTime) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, newDate, newTime)
	}

	if appt.CalendarEventID != "" && s.events != nil && s.events.IsConfigured() {
		if err := s.events.UpdateEventTime(ctx, appt.CalendarEventID, startAt, startAt.Add(s.duration), s.timezone); err != nil {
			s.logger.Error("calendar event move failed, rescheduling anyway", "error", err, "id", appt.ID)
		}
	}
	if appt.ZoomMeetingID != "" && s.meetings != nil && s.meetings.IsConfigured() {
		if err := s.meetings.UpdateMeeting(ctx, appt.ZoomMeetingID, s.meetingRequest(appt, startAt)); err != nil {
			s.logger.Error("zoom meeting move failed, rescheduling anyway", "error", err, "id", appt.ID)
		}
	}

	updated, err := s.store.Update(ctx, token, func(a *Appointment) error {
		if err := a.ApplyStatus(StatusRescheduled, time.Now().UTC(), "manage.reschedule", fmt.Sprintf("moved to %s %s", newDate, newTime)); err != nil {
			return err
		}
		a.Date = newDate
		a.Time = newTime
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment rescheduled", "id", updated.ID, "date", newDate, "time", newTime)
	return updated, nil
}
