package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// Handler serves the public booking endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates the public appointments handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// BookedAppointment is the client-facing view returned after booking. Date
// carries the human-readable form ("Monday, January 2, 2006") shown in the
// confirmation screen.
type BookedAppointment struct {
	ID           string `json:"id"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	ZoomJoinURL  string `json:"zoomJoinUrl,omitempty"`
	ZoomPassword string `json:"zoomPassword,omitempty"`
	Token        string `json:"token"`
}

// BookingResponse is the POST /api/appointments success payload.
type BookingResponse struct {
	Success     bool              `json:"success"`
	Appointment BookedAppointment `json:"appointment"`
}

// AvailabilityResponse is the GET /api/appointments?date= payload.
type AvailabilityResponse struct {
	Date         string `json:"date"`
	Availability any    `json:"availability"`
}

// Create books an appointment.
// POST /api/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		respondDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, BookingResponse{
		Success: true,
		Appointment: BookedAppointment{
			ID:           appt.ID,
			Service:      appt.Service,
			Date:         FormatDate(appt.Date, h.svc.Location()),
			Time:         appt.Time,
			ZoomJoinURL:  appt.ZoomJoinURL,
			ZoomPassword: appt.ZoomPassword,
			Token:        appt.Token,
		},
	})
}

// Availability returns the slot grid for a day.
// GET /api/appointments?date=2025-03-10
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		http.Error(w, `{"error":"date query parameter is required"}`, http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateParam, h.svc.Location())
	if err != nil {
		http.Error(w, `{"error":"invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	slots := h.svc.Availability(r.Context(), date)
	writeJSON(w, http.StatusOK, AvailabilityResponse{Date: dateParam, Availability: slots})
}

// respondDomainError maps domain errors onto HTTP statuses with a JSON body.
func respondDomainError(w http.ResponseWriter, err error, logger *logging.Logger) {
	switch {
	case errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "This time slot is no longer available. Please choose another time."})
	case errors.Is(err, ErrCancelled):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "This appointment has been cancelled and can no longer be changed."})
	case errors.Is(err, ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Appointment not found"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}
