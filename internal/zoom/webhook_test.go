package zoom

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type sinkRecorder struct {
	events []LifecycleEvent
	err    error
}

func (s *sinkRecorder) HandleMeetingEvent(_ context.Context, evt LifecycleEvent) error {
	s.events = append(s.events, evt)
	return s.err
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func startedPayload(ts int64) []byte {
	return []byte(`{
		"event": "meeting.started",
		"event_ts": ` + jsonInt(ts) + `,
		"payload": {
			"account_id": "acc",
			"object": {"id": 123456789, "topic": "Consultation"}
		}
	}`)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func postWebhook(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/zoom", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-zm-signature", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func TestWebhookValidSignatureDispatches(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("topsecret", sink, nil, nil, nil)

	body := startedPayload(1710064800000)
	rec := postWebhook(h, body, signBody("topsecret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events dispatched = %d", len(sink.events))
	}
	evt := sink.events[0]
	if evt.Type != EventMeetingStarted || evt.MeetingID != "123456789" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if !evt.OccurredAt.Equal(time.UnixMilli(1710064800000).UTC()) {
		t.Fatalf("occurredAt = %s", evt.OccurredAt)
	}
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("topsecret", sink, nil, nil, nil)

	body := startedPayload(time.Now().UnixMilli())
	rec := postWebhook(h, body, signBody("wrongsecret", body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("event dispatched despite bad signature")
	}
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("topsecret", sink, nil, nil, nil)

	rec := postWebhook(h, startedPayload(time.Now().UnixMilli()), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookNoSecretSkipsVerification(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("", sink, nil, nil, nil)

	rec := postWebhook(h, startedPayload(time.Now().UnixMilli()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatal("event not dispatched with verification disabled")
	}
}

func TestWebhookSignaturePrefixes(t *testing.T) {
	body := []byte(`{"event":"x"}`)
	mac := hmac.New(sha256.New, []byte("s"))
	mac.Write(body)
	raw := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range []string{raw, "v0=" + raw, "sha256=" + raw} {
		if !VerifySignature("s", body, sig) {
			t.Errorf("signature %q rejected", sig)
		}
	}
	if VerifySignature("s", body, "v0=zz") {
		t.Error("non-hex signature accepted")
	}
	if VerifySignature("s", body, "") {
		t.Error("empty signature accepted")
	}
}

func TestWebhookURLValidationChallenge(t *testing.T) {
	h := NewWebhookHandler("topsecret", &sinkRecorder{}, nil, nil, nil)

	body := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`)
	rec := postWebhook(h, body, signBody("topsecret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["plainToken"] != "abc123" {
		t.Fatalf("plainToken = %q", resp["plainToken"])
	}
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("abc123"))
	if resp["encryptedToken"] != hex.EncodeToString(mac.Sum(nil)) {
		t.Fatalf("encryptedToken mismatch: %q", resp["encryptedToken"])
	}
}

func TestWebhookDedupDropsReplay(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("", sink, NewMemoryDeduper(time.Hour), nil, nil)

	body := startedPayload(1710064800000)
	if rec := postWebhook(h, body, ""); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rec.Code)
	}
	if rec := postWebhook(h, body, ""); rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("replay reached sink, events = %d", len(sink.events))
	}

	// A different timestamp is a distinct delivery, not a replay.
	if rec := postWebhook(h, startedPayload(1710064860000), ""); rec.Code != http.StatusOK {
		t.Fatalf("second event status = %d", rec.Code)
	}
	if len(sink.events) != 2 {
		t.Fatalf("distinct event dropped, events = %d", len(sink.events))
	}
}

func TestWebhookAcksSinkErrors(t *testing.T) {
	sink := &sinkRecorder{err: context.DeadlineExceeded}
	h := NewWebhookHandler("", sink, nil, nil, nil)

	rec := postWebhook(h, startedPayload(time.Now().UnixMilli()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sink error changed response status to %d", rec.Code)
	}
}

type flakySink struct {
	sinkRecorder
	failures int
}

func (s *flakySink) HandleMeetingEvent(ctx context.Context, evt LifecycleEvent) error {
	if s.failures > 0 {
		s.failures--
		return context.DeadlineExceeded
	}
	return s.sinkRecorder.HandleMeetingEvent(ctx, evt)
}

func TestWebhookFailedApplyStaysRetriable(t *testing.T) {
	sink := &flakySink{failures: 1}
	h := NewWebhookHandler("", sink, NewMemoryDeduper(time.Hour), nil, nil)

	// The first delivery fails in the sink; the event must not be recorded
	// as processed, so Zoom's retry of the same delivery still applies.
	body := startedPayload(1710064800000)
	if rec := postWebhook(h, body, ""); rec.Code != http.StatusOK {
		t.Fatalf("failed delivery status = %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("failed apply recorded an event")
	}

	if rec := postWebhook(h, body, ""); rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("retry after failure was dropped, events = %d", len(sink.events))
	}

	// Once applied, the same delivery is a replay.
	if rec := postWebhook(h, body, ""); rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("replay reached sink, events = %d", len(sink.events))
	}
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("", sink, nil, nil, nil)

	body := []byte(`{"event":"webinar.started","payload":{"object":{"id":1}}}`)
	rec := postWebhook(h, body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatal("unknown event dispatched")
	}
}

func TestWebhookParsesParticipantAndRecording(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewWebhookHandler("", sink, nil, nil, nil)

	join := []byte(`{
		"event": "meeting.participant_joined",
		"event_ts": 1710064800000,
		"payload": {"object": {
			"id": 123456789,
			"participant": {"user_id": "u1", "user_name": "Grace Hopper", "email": "grace@example.com"}
		}}
	}`)
	if rec := postWebhook(h, join, ""); rec.Code != http.StatusOK {
		t.Fatalf("join status = %d", rec.Code)
	}

	// recording.completed delivers the meeting id as a string.
	recording := []byte(`{
		"event": "recording.completed",
		"event_ts": 1710066600000,
		"payload": {"object": {
			"id": "123456789",
			"recording_files": [{
				"id": "rec1",
				"meeting_id": "123456789",
				"file_type": "MP4",
				"file_size": 1048576,
				"recording_start": "2024-03-10T10:00:00Z",
				"recording_end": "2024-03-10T10:30:00Z",
				"download_url": "https://zoom.us/rec/download/rec1",
				"play_url": "https://zoom.us/rec/play/rec1"
			}]
		}}
	}`)
	if rec := postWebhook(h, recording, ""); rec.Code != http.StatusOK {
		t.Fatalf("recording status = %d", rec.Code)
	}

	if len(sink.events) != 2 {
		t.Fatalf("events = %d", len(sink.events))
	}
	joinEvt := sink.events[0]
	if joinEvt.Participant == nil || joinEvt.Participant.Name != "Grace Hopper" || joinEvt.Participant.UserID != "u1" {
		t.Fatalf("participant not parsed: %+v", joinEvt.Participant)
	}
	recEvt := sink.events[1]
	if recEvt.MeetingID != "123456789" {
		t.Fatalf("string meeting id not parsed: %q", recEvt.MeetingID)
	}
	if len(recEvt.Recordings) != 1 || recEvt.Recordings[0].FileType != "MP4" {
		t.Fatalf("recordings not parsed: %+v", recEvt.Recordings)
	}
	if recEvt.Recordings[0].RecordingStart.IsZero() {
		t.Fatal("recording start time not parsed")
	}
}

func TestWebhookGETChallengeEcho(t *testing.T) {
	h := NewWebhookHandler("", &sinkRecorder{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/zoom?challenge=ping123", nil)
	rec := httptest.NewRecorder()
	h.HandleValidation(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ping123" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestWebhookGETWithoutChallenge(t *testing.T) {
	h := NewWebhookHandler("", &sinkRecorder{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/zoom", nil)
	rec := httptest.NewRecorder()
	h.HandleValidation(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] == "" {
		t.Fatal("missing status field")
	}
}
