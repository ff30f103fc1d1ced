package appointments

import (
	"encoding/json"
	"net/http"

	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// AdminHandler serves the operator endpoints behind admin JWT auth.
type AdminHandler struct {
	svc    *Service
	logger *logging.Logger
}

// NewAdminHandler creates the admin appointments handler.
func NewAdminHandler(svc *Service, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{svc: svc, logger: logger}
}

// AdminListResponse is the GET /admin/appointments payload.
type AdminListResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Stats        Stats          `json:"stats"`
}

// AdminActionRequest is the POST /admin/appointments payload.
type AdminActionRequest struct {
	Action        string `json:"action"`
	AppointmentID string `json:"appointmentId"`
	Status        Status `json:"status,omitempty"`
	Note          string `json:"note,omitempty"`
}

// List returns every appointment plus status tallies.
// GET /admin/appointments
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	list, stats, err := h.svc.ListAll(r.Context())
	if err != nil {
		respondDomainError(w, err, h.logger)
		return
	}
	if list == nil {
		list = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, AdminListResponse{Appointments: list, Stats: stats})
}

// Act applies an operator action to one appointment.
// POST /admin/appointments
func (h *AdminHandler) Act(w http.ResponseWriter, r *http.Request) {
	var req AdminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.AppointmentID == "" {
		http.Error(w, `{"error":"appointmentId is required"}`, http.StatusBadRequest)
		return
	}

	var (
		appt *Appointment
		err  error
	)
	switch req.Action {
	case "update_status":
		appt, err = h.svc.AdminUpdateStatus(r.Context(), req.AppointmentID, req.Status)
	case "add_note":
		appt, err = h.svc.AdminAddNote(r.Context(), req.AppointmentID, req.Note)
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

// Delete removes an appointment record.
// DELETE /admin/appointments?id=apt_...
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, `{"error":"id query parameter is required"}`, http.StatusBadRequest)
		return
	}

	if err := h.svc.AdminDelete(r.Context(), id); err != nil {
		respondDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
