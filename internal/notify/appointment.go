package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/internal/appointments"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// Service sends the two booking emails: a confirmation to the client and an
// alert to the host. Both are best-effort; the booking flow never fails on a
// mail error.
type Service struct {
	sender        EmailSender
	hostEmail     string
	publicBaseURL string
	loc           *time.Location
	logger        *logging.Logger
}

// NewService creates the appointment notification service.
func NewService(sender EmailSender, hostEmail, publicBaseURL string, loc *time.Location, logger *logging.Logger) *Service {
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sender:        sender,
		hostEmail:     hostEmail,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		loc:           loc,
		logger:        logger,
	}
}

// BookingConfirmed emails the client their confirmation with the Zoom join
// details and the self-service management link.
func (s *Service) BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error {
	msg := EmailMessage{
		To:      appt.Email,
		ToName:  appt.Name,
		Subject: fmt.Sprintf("Appointment Confirmed - %s Consultation", appt.Service),
		Body:    confirmationText(appt, s.loc, s.manageURL(appt.Token)),
		HTML:    confirmationHTML(appt, s.loc, s.manageURL(appt.Token)),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: confirmation email: %w", err)
	}
	return nil
}

// HostAlert emails the host about the new booking.
func (s *Service) HostAlert(ctx context.Context, appt *appointments.Appointment) error {
	if s.hostEmail == "" {
		s.logger.Debug("no host email configured, skipping host alert")
		return nil
	}
	msg := EmailMessage{
		To:      s.hostEmail,
		Subject: fmt.Sprintf("New Appointment: %s - %s", appt.Name, appt.Service),
		Body:    hostAlertText(appt, s.loc),
		HTML:    hostAlertHTML(appt, s.loc),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: host alert email: %w", err)
	}
	return nil
}

func (s *Service) manageURL(token string) string {
	return s.publicBaseURL + "/manage-appointment/" + token
}

func confirmationText(appt *appointments.Appointment, loc *time.Location, manageURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", appt.Name)
	b.WriteString("Thank you for scheduling a consultation with CVC Web Solutions.\n\n")
	fmt.Fprintf(&b, "Service: %s\n", appt.Service)
	fmt.Fprintf(&b, "Date: %s\n", appointments.FormatDate(appt.Date, loc))
	fmt.Fprintf(&b, "Time: %s\n", appt.Time)
	b.WriteString("Duration: 30 minutes\n")
	if appt.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", appt.Company)
	}
	if appt.ZoomJoinURL != "" {
		fmt.Fprintf(&b, "\nJoin Zoom Meeting: %s\n", appt.ZoomJoinURL)
		if appt.ZoomPassword != "" {
			fmt.Fprintf(&b, "Meeting Password: %s\n", appt.ZoomPassword)
		}
	}
	fmt.Fprintf(&b, "\nNeed to reschedule or cancel? Use this secure link:\n%s\n", manageURL)
	b.WriteString("\nBest regards,\nCVC Web Solutions Team\n")
	return b.String()
}

func confirmationHTML(appt *appointments.Appointment, loc *time.Location, manageURL string) string {
	var b strings.Builder
	b.WriteString("<h2>Your Consultation is Confirmed!</h2>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", appt.Name)
	b.WriteString("<p>Thank you for scheduling a consultation with CVC Web Solutions. Here are your appointment details:</p>")
	b.WriteString(`<div style="background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;"><h3>Appointment Details</h3>`)
	fmt.Fprintf(&b, "<p><strong>Service:</strong> %s</p>", appt.Service)
	fmt.Fprintf(&b, "<p><strong>Date:</strong> %s</p>", appointments.FormatDate(appt.Date, loc))
	fmt.Fprintf(&b, "<p><strong>Time:</strong> %s</p>", appt.Time)
	b.WriteString("<p><strong>Duration:</strong> 30 minutes</p>")
	if appt.Company != "" {
		fmt.Fprintf(&b, "<p><strong>Company:</strong> %s</p>", appt.Company)
	}
	b.WriteString("</div>")
	if appt.ZoomJoinURL != "" {
		b.WriteString(`<div style="background: #e3f2fd; padding: 20px; border-radius: 8px; margin: 20px 0;"><h3>Join Zoom Meeting</h3>`)
		fmt.Fprintf(&b, `<p><strong>Meeting URL:</strong> <a href="%s">%s</a></p>`, appt.ZoomJoinURL, appt.ZoomJoinURL)
		if appt.ZoomPassword != "" {
			fmt.Fprintf(&b, "<p><strong>Meeting Password:</strong> %s</p>", appt.ZoomPassword)
		}
		b.WriteString("</div>")
	}
	b.WriteString(`<div style="background: #f9f9f9; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #2196F3;"><h3>Manage Your Appointment</h3>`)
	b.WriteString("<p>Need to reschedule or cancel? Use this secure link:</p>")
	fmt.Fprintf(&b, `<p><a href="%s" style="color: #2196F3; font-weight: bold;">Manage Appointment</a></p></div>`, manageURL)
	b.WriteString("<p>Best regards,<br>CVC Web Solutions Team</p>")
	return b.String()
}

func hostAlertText(appt *appointments.Appointment, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New consultation booked.\n\n")
	fmt.Fprintf(&b, "Client: %s <%s>\n", appt.Name, appt.Email)
	if appt.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", appt.Phone)
	}
	if appt.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", appt.Company)
	}
	fmt.Fprintf(&b, "Service: %s\n", appt.Service)
	fmt.Fprintf(&b, "When: %s at %s\n", appointments.FormatDate(appt.Date, loc), appt.Time)
	if appt.Message != "" {
		fmt.Fprintf(&b, "\nMessage:\n%s\n", appt.Message)
	}
	if appt.ZoomJoinURL != "" {
		fmt.Fprintf(&b, "\nZoom: %s\n", appt.ZoomJoinURL)
	}
	return b.String()
}

func hostAlertHTML(appt *appointments.Appointment, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("<h2>New Consultation Booked</h2>")
	fmt.Fprintf(&b, "<p><strong>Client:</strong> %s &lt;%s&gt;</p>", appt.Name, appt.Email)
	if appt.Phone != "" {
		fmt.Fprintf(&b, "<p><strong>Phone:</strong> %s</p>", appt.Phone)
	}
	if appt.Company != "" {
		fmt.Fprintf(&b, "<p><strong>Company:</strong> %s</p>", appt.Company)
	}
	fmt.Fprintf(&b, "<p><strong>Service:</strong> %s</p>", appt.Service)
	fmt.Fprintf(&b, "<p><strong>When:</strong> %s at %s</p>", appointments.FormatDate(appt.Date, loc), appt.Time)
	if appt.Message != "" {
		fmt.Fprintf(&b, "<p><strong>Message:</strong> %s</p>", appt.Message)
	}
	if appt.ZoomJoinURL != "" {
		fmt.Fprintf(&b, `<p><strong>Zoom:</strong> <a href="%s">%s</a></p>`, appt.ZoomJoinURL, appt.ZoomJoinURL)
	}
	return b.String()
}
