package zoom

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/internal/observability/metrics"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

// Lifecycle event types handled by the webhook receiver.
const (
	EventMeetingStarted    = "meeting.started"
	EventMeetingEnded      = "meeting.ended"
	EventParticipantJoined = "meeting.participant_joined"
	EventParticipantLeft   = "meeting.participant_left"
	EventMeetingUpdated    = "meeting.updated"
	EventMeetingDeleted    = "meeting.deleted"
	EventRecordingDone     = "recording.completed"
	eventURLValidation     = "endpoint.url_validation"
)

// LifecycleSink consumes verified, deduplicated lifecycle events. The
// appointments service implements this to keep booking records in sync.
type LifecycleSink interface {
	HandleMeetingEvent(ctx context.Context, evt LifecycleEvent) error
}

// WebhookHandler verifies and dispatches Zoom webhook deliveries.
type WebhookHandler struct {
	secret  string
	sink    LifecycleSink
	dedup   Deduper
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature verification (logged on every delivery); a nil dedup disables
// replay detection.
func NewWebhookHandler(secret string, sink LifecycleSink, dedup Deduper, m *metrics.SchedulingMetrics, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{secret: secret, sink: sink, dedup: dedup, metrics: m, logger: logger}
}

// VerifySignature checks the x-zm-signature header value against the
// HMAC-SHA256 of the raw body, accepting the "v0=" and "sha256=" prefixes and
// comparing in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "v0=")
	signature = strings.TrimPrefix(signature, "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// HandleEvent handles POST deliveries: verify, dedup, parse, dispatch.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if h.secret != "" {
		if !VerifySignature(h.secret, body, r.Header.Get("x-zm-signature")) {
			h.logger.Error("invalid zoom webhook signature")
			h.metrics.ObserveWebhook("unknown", "unauthorized")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	} else {
		h.logger.Info("zoom webhook signature verification skipped (no secret configured)")
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Zoom validates the endpoint with a signed challenge before enabling
	// event delivery.
	if envelope.Event == eventURLValidation {
		h.respondChallenge(w, envelope.Payload.PlainToken)
		return
	}

	occurredAt := time.UnixMilli(envelope.EventTS).UTC()
	if envelope.EventTS == 0 {
		occurredAt = time.Now().UTC()
	}
	meetingID := envelope.Payload.Object.ID.String()

	dedupKey := fmt.Sprintf("%s:%s:%d", envelope.Event, meetingID, envelope.EventTS)
	if h.dedup != nil {
		if seen, err := h.dedup.Seen(r.Context(), dedupKey); err != nil {
			h.logger.Error("webhook dedup check failed", "error", err, "event", envelope.Event)
		} else if seen {
			h.logger.Info("dropping replayed zoom webhook", "event", envelope.Event, "meeting_id", meetingID)
			h.metrics.ObserveWebhook(envelope.Event, "duplicate")
			writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
			return
		}
	}

	evt, ok := parseLifecycleEvent(envelope, occurredAt)
	if !ok {
		h.logger.Info("unhandled zoom event type", "event", envelope.Event)
		h.metrics.ObserveWebhook(envelope.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	status := "applied"
	if err := h.sink.HandleMeetingEvent(r.Context(), evt); err != nil {
		// Delivery is acked regardless: sink rejections (unknown meeting,
		// stale event) are not transport failures. The event is only
		// recorded as seen after a successful apply, so a delivery that hit
		// a transient store error stays replayable by Zoom's retry.
		h.logger.Error("zoom lifecycle event not applied", "event", evt.Type, "meeting_id", evt.MeetingID, "error", err)
		status = "rejected"
	} else if h.dedup != nil {
		if err := h.dedup.Mark(r.Context(), dedupKey); err != nil {
			h.logger.Error("webhook dedup record failed", "error", err, "event", envelope.Event)
		}
	}
	h.metrics.ObserveWebhook(envelope.Event, status)
	h.metrics.ObserveWebhookLatency(envelope.Event, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleValidation answers the GET validation ping by echoing the challenge
// query parameter as plain text.
func (h *WebhookHandler) HandleValidation(w http.ResponseWriter, r *http.Request) {
	if challenge := r.URL.Query().Get("challenge"); challenge != "" {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, challenge)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Zoom webhook endpoint active"})
}

func (h *WebhookHandler) respondChallenge(w http.ResponseWriter, plainToken string) {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(plainToken))
	writeJSON(w, http.StatusOK, map[string]string{
		"plainToken":     plainToken,
		"encryptedToken": hex.EncodeToString(mac.Sum(nil)),
	})
}

func parseLifecycleEvent(envelope webhookEnvelope, occurredAt time.Time) (LifecycleEvent, bool) {
	obj := envelope.Payload.Object
	evt := LifecycleEvent{
		Type:       envelope.Event,
		MeetingID:  obj.ID.String(),
		Topic:      obj.Topic,
		OccurredAt: occurredAt,
	}

	switch envelope.Event {
	case EventMeetingStarted:
		evt.Detail = "started " + obj.StartTime
	case EventMeetingEnded:
		evt.Detail = fmt.Sprintf("ended %s after %d min", obj.EndTime, obj.Duration)
	case EventMeetingUpdated:
		evt.Detail = "meeting updated"
	case EventMeetingDeleted:
		evt.Detail = "meeting deleted in zoom"
	case EventParticipantJoined, EventParticipantLeft:
		evt.Participant = &ParticipantInfo{
			UserID: obj.Participant.UserID,
			Name:   obj.Participant.UserName,
			Email:  obj.Participant.Email,
		}
	case EventRecordingDone:
		for _, f := range obj.Recordings {
			rec := RecordingInfo{
				ID:          f.ID,
				MeetingID:   f.MeetingID,
				FileType:    f.FileType,
				FileSize:    f.FileSize,
				DownloadURL: f.DownloadURL,
				PlayURL:     f.PlayURL,
			}
			if t, err := time.Parse(time.RFC3339, f.RecordingStart); err == nil {
				rec.RecordingStart = t
			}
			if t, err := time.Parse(time.RFC3339, f.RecordingEnd); err == nil {
				rec.RecordingEnd = t
			}
			evt.Recordings = append(evt.Recordings, rec)
		}
	default:
		return LifecycleEvent{}, false
	}
	return evt, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
