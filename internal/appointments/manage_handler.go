package appointments

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// ManageHandler serves the token-based self-service endpoints.
type ManageHandler struct {
	svc    *Service
	logger *logging.Logger
}

// NewManageHandler creates the self-service management handler.
func NewManageHandler(svc *Service, logger *logging.Logger) *ManageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ManageHandler{svc: svc, logger: logger}
}

// ManageActionRequest is the PATCH /api/appointments/manage/{token} payload.
type ManageActionRequest struct {
	Action  string `json:"action"`
	NewDate string `json:"newDate,omitempty"`
	NewTime string `json:"newTime,omitempty"`
}

// ManageResponse wraps the appointment for management responses.
type ManageResponse struct {
	Success     bool         `json:"success"`
	Appointment *Appointment `json:"appointment"`
}

// Get looks up the appointment behind a management token.
// GET /api/appointments/manage/{token}
func (h *ManageHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Get(r.Context(), token)
	if err != nil {
		respondDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ManageResponse{Success: true, Appointment: appt})
}

// Act cancels or reschedules the appointment behind a management token.
// PATCH /api/appointments/manage/{token}
func (h *ManageHandler) Act(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusBadRequest)
		return
	}

	var req ManageActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	var (
		appt *Appointment
		err  error
	)
	switch req.Action {
	case "cancel":
		appt, err = h.svc.Cancel(r.Context(), token)
	case "reschedule":
		appt, err = h.svc.Reschedule(r.Context(), token, req.NewDate, req.NewTime)
	default:
		http.Error(w, `{"error":"Invalid action"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		respondDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ManageResponse{Success: true, Appointment: appt})
}
