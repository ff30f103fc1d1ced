// Package calendar wraps the Google Calendar API for consultation events and
// busy-slot detection. Authentication is a service account with domain-wide
// delegation impersonating the calendar owner.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/cvcwebsolutions/scheduling-api/internal/availability"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// Config holds the service account credentials and target calendar.
type Config struct {
	ClientEmail string
	// PrivateKey is the PEM key; literal "\n" sequences from env files are
	// unescaped.
	PrivateKey string
	CalendarID string
}

// EventInput describes the consultation event to create.
type EventInput struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
	Timezone      string
}

// Client talks to the Google Calendar API. An unconfigured client (missing
// credentials) reports IsConfigured() == false and is inert.
type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// New builds a calendar client. Missing credentials yield an inert client and
// a warning rather than an error, matching the booking flow's tolerance for
// unconfigured integrations.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		logger.Warn("google calendar credentials not found, calendar integration disabled")
		return &Client{calendarID: cfg.CalendarID, logger: logger}, nil
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{gcal.CalendarScope},
		TokenURL:   google.JWTTokenURL,
		// Domain-wide delegation: act as the calendar owner.
		Subject: cfg.CalendarID,
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("calendar: init service: %w", err)
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// IsConfigured reports whether the API client was initialized.
func (c *Client) IsConfigured() bool {
	return c.svc != nil
}

// Events lists the calendar's events overlapping the given day.
func (c *Client) Events(ctx context.Context, date time.Time) ([]*gcal.Event, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("calendar: client not configured")
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	res, err := c.svc.Events.List(c.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return res.Items, nil
}

// CreateEvent inserts a consultation event and returns its id. Invitations go
// out to the attendee (sendUpdates=all works through the delegated owner).
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("calendar: client not configured")
	}
	event := &gcal.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &gcal.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.Timezone,
		},
		Attendees: []*gcal.EventAttendee{
			{Email: input.AttendeeEmail, DisplayName: input.AttendeeName},
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "email", Minutes: 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	created, err := c.svc.Events.Insert(c.calendarID, event).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	c.logger.Info("calendar event created", "event_id", created.Id)
	return created.Id, nil
}

// UpdateEventTime moves an existing event to a new start/end.
func (c *Client) UpdateEventTime(ctx context.Context, eventID string, start, end time.Time, timezone string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("calendar: client not configured")
	}
	existing, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("calendar: get event: %w", err)
	}
	existing.Start = &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: timezone}
	existing.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: timezone}
	if _, err := c.svc.Events.Update(c.calendarID, eventID, existing).
		SendUpdates("all").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("calendar: update event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event, notifying attendees.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("calendar: client not configured")
	}
	if err := c.svc.Events.Delete(c.calendarID, eventID).
		SendUpdates("all").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	c.logger.Info("calendar event deleted", "event_id", eventID)
	return nil
}

// Name implements availability.Provider.
func (c *Client) Name() string { return "google-calendar" }

// BusyWindows implements availability.Provider: every timed event on the day
// blocks its [start, end). All-day events carry no DateTime and are skipped.
func (c *Client) BusyWindows(ctx context.Context, date time.Time) ([]availability.Window, error) {
	if !c.IsConfigured() {
		return nil, nil
	}
	events, err := c.Events(ctx, date)
	if err != nil {
		return nil, err
	}
	return WindowsFromEvents(events), nil
}

// WindowsFromEvents extracts busy windows from timed calendar events.
func WindowsFromEvents(events []*gcal.Event) []availability.Window {
	var windows []availability.Window
	for _, ev := range events {
		if ev.Start == nil || ev.End == nil || ev.Start.DateTime == "" || ev.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			continue
		}
		windows = append(windows, availability.Window{Start: start, End: end})
	}
	return windows
}
