package zoom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeZoom struct {
	t *testing.T

	tokenCalls int
	apiCalls   []string

	tokenSrv *httptest.Server
	apiSrv   *httptest.Server
}

func newFakeZoom(t *testing.T, apiHandler http.HandlerFunc) *fakeZoom {
	t.Helper()
	f := &fakeZoom{t: t}
	f.tokenSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if r.Method != http.MethodPost {
			t.Errorf("token method = %s", r.Method)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("token auth = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "account_credentials" || r.Form.Get("account_id") != "acc-1" {
			t.Errorf("unexpected token form: %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "expires_in": 3600})
	}))
	t.Cleanup(f.tokenSrv.Close)

	f.apiSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls = append(f.apiCalls, r.Method+" "+r.URL.String())
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("api auth = %q", got)
		}
		apiHandler(w, r)
	}))
	t.Cleanup(f.apiSrv.Close)
	return f
}

func (f *fakeZoom) client() *Client {
	return NewClient(Config{
		AccountID:    "acc-1",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      f.apiSrv.URL,
		TokenURL:     f.tokenSrv.URL,
	}, nil)
}

func TestCreateMeeting(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/me/meetings" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		var req MeetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Topic != "Web Development Consultation with Ada" || req.Type != MeetingTypeScheduled {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(Meeting{
			ID:      123456789,
			Topic:   req.Topic,
			JoinURL: "https://zoom.us/j/123456789",
		})
	})

	meeting, err := f.client().CreateMeeting(context.Background(), MeetingRequest{
		Topic:    "Web Development Consultation with Ada",
		Type:     MeetingTypeScheduled,
		Duration: 30,
	})
	if err != nil {
		t.Fatalf("CreateMeeting returned error: %v", err)
	}
	if meeting.ID != 123456789 || meeting.JoinURL == "" {
		t.Fatalf("unexpected meeting: %+v", meeting)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Meeting{ID: 1})
	})
	c := f.client()

	for i := 0; i < 3; i++ {
		if _, err := c.CreateMeeting(context.Background(), MeetingRequest{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if f.tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", f.tokenCalls)
	}
}

func TestUpdateAndDeleteMeeting(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meetings/123456789" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := f.client()

	if err := c.UpdateMeeting(context.Background(), "123456789", MeetingRequest{Topic: "moved"}); err != nil {
		t.Fatalf("UpdateMeeting returned error: %v", err)
	}
	if err := c.DeleteMeeting(context.Background(), "123456789"); err != nil {
		t.Fatalf("DeleteMeeting returned error: %v", err)
	}
	if len(f.apiCalls) != 2 || !strings.HasPrefix(f.apiCalls[0], "PATCH ") || !strings.HasPrefix(f.apiCalls[1], "DELETE ") {
		t.Fatalf("unexpected api calls: %v", f.apiCalls)
	}
}

func TestListMeetingsQuery(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "scheduled" || q.Get("from") != "2025-03-10" || q.Get("to") != "2025-03-10" {
			t.Errorf("unexpected query: %v", q)
		}
		json.NewEncoder(w).Encode(meetingList{Meetings: []Meeting{
			{ID: 1, StartTime: "2025-03-10T10:00:00Z", Duration: 30},
		}})
	})

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	meetings, err := f.client().ListMeetings(context.Background(), day, day)
	if err != nil {
		t.Fatalf("ListMeetings returned error: %v", err)
	}
	if len(meetings) != 1 || meetings[0].ID != 1 {
		t.Fatalf("unexpected meetings: %+v", meetings)
	}
}

func TestBusyWindowsFromMeetings(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(meetingList{Meetings: []Meeting{
			{ID: 1, StartTime: "2025-03-10T10:00:00Z", Duration: 30},
			{ID: 2, StartTime: "not-a-time", Duration: 30}, // skipped
			{ID: 3, StartTime: "2025-03-10T14:00:00Z", Duration: 60},
		}})
	})

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	windows, err := f.client().BusyWindows(context.Background(), day)
	if err != nil {
		t.Fatalf("BusyWindows returned error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	if !windows[0].Start.Equal(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("window start = %s", windows[0].Start)
	}
	if !windows[1].End.Equal(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("hour-long window end = %s", windows[1].End)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient(Config{}, nil)

	if c.IsConfigured() {
		t.Fatal("empty config reported configured")
	}
	if _, err := c.CreateMeeting(context.Background(), MeetingRequest{}); err == nil {
		t.Fatal("expected error from unconfigured client")
	}
	windows, err := c.BusyWindows(context.Background(), time.Now())
	if err != nil || windows != nil {
		t.Fatalf("unconfigured provider should be silent, got %v, %v", windows, err)
	}
}

func TestAPIErrorMessageSurfaced(t *testing.T) {
	f := newFakeZoom(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(apiError{Code: 3001, Message: "Meeting does not exist"})
	})

	err := f.client().DeleteMeeting(context.Background(), "999")
	if err == nil || !strings.Contains(err.Error(), "Meeting does not exist") {
		t.Fatalf("api message not surfaced: %v", err)
	}
}

func TestFlexibleIDDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`123456789`, "123456789"},
		{`"987654321"`, "987654321"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var id flexibleID
		if err := json.Unmarshal([]byte(tc.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if id.String() != tc.want {
			t.Errorf("%s decoded to %q, want %q", tc.in, id, tc.want)
		}
	}
}

func TestFormatMeetingID(t *testing.T) {
	if got := FormatMeetingID(85512345678); got != "85512345678" {
		t.Fatalf("FormatMeetingID = %q", got)
	}
}
