// Package zoom wraps the Zoom REST API (server-to-server OAuth) and the
// webhook intake that keeps appointment records in sync with meeting
// lifecycle events.
package zoom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cvcwebsolutions/scheduling-api/internal/availability"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

const (
	defaultBaseURL  = "https://api.zoom.us/v2"
	defaultTokenURL = "https://zoom.us/oauth/token"
)

// Config holds the server-to-server OAuth app credentials.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string

	// Overridable in tests.
	BaseURL  string
	TokenURL string
}

// Client talks to the Zoom REST API. The zero-credential client reports
// IsConfigured() == false and every call fails fast; callers treat that as
// "Zoom disabled" rather than an error.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Zoom API client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// IsConfigured reports whether OAuth credentials are present.
func (c *Client) IsConfigured() bool {
	return c.cfg.AccountID != "" && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// token returns a cached access token, refreshing it when within a minute of
// expiry. Zoom server-to-server tokens live one hour.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"account_credentials"},
		"account_id": {c.cfg.AccountID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("zoom: build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom: token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zoom: token request failed: %s", resp.Status)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("zoom: decode token: %w", err)
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.IsConfigured() {
		return fmt.Errorf("zoom: client not configured")
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zoom: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("zoom: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zoom: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("zoom: %s %s: %s", method, path, apiErr.Message)
		}
		return fmt.Errorf("zoom: %s %s: %s", method, path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zoom: decode response: %w", err)
	}
	return nil
}

// CreateMeeting schedules a meeting for the account owner.
func (c *Client) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	var meeting Meeting
	if err := c.do(ctx, http.MethodPost, "/users/me/meetings", req, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// UpdateMeeting patches an existing meeting.
func (c *Client) UpdateMeeting(ctx context.Context, meetingID string, req MeetingRequest) error {
	return c.do(ctx, http.MethodPatch, "/meetings/"+url.PathEscape(meetingID), req, nil)
}

// DeleteMeeting removes a scheduled meeting.
func (c *Client) DeleteMeeting(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(meetingID), nil, nil)
}

// ListMeetings returns the account owner's scheduled meetings between from
// and to (dates inclusive).
func (c *Client) ListMeetings(ctx context.Context, from, to time.Time) ([]Meeting, error) {
	params := url.Values{
		"type":      {"scheduled"},
		"page_size": {"100"},
		"from":      {from.Format("2006-01-02")},
		"to":        {to.Format("2006-01-02")},
	}
	var list meetingList
	if err := c.do(ctx, http.MethodGet, "/users/me/meetings?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return list.Meetings, nil
}

// Name implements availability.Provider.
func (c *Client) Name() string { return "zoom" }

// BusyWindows implements availability.Provider using the scheduled-meetings
// list: each meeting blocks [start, start+duration).
func (c *Client) BusyWindows(ctx context.Context, date time.Time) ([]availability.Window, error) {
	if !c.IsConfigured() {
		return nil, nil
	}
	meetings, err := c.ListMeetings(ctx, date, date)
	if err != nil {
		return nil, err
	}
	windows := make([]availability.Window, 0, len(meetings))
	for _, m := range meetings {
		start, err := time.Parse(time.RFC3339, m.StartTime)
		if err != nil {
			c.logger.Warn("skipping meeting with unparseable start time", "meeting_id", m.ID, "start_time", m.StartTime)
			continue
		}
		windows = append(windows, availability.Window{
			Start: start,
			End:   start.Add(time.Duration(m.Duration) * time.Minute),
		})
	}
	return windows, nil
}

// flexibleID decodes a JSON value that may be a number or a string.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string { return string(f) }

// FormatMeetingID renders a numeric Zoom meeting id as the string key used
// throughout the appointment store.
func FormatMeetingID(id int64) string {
	return strconv.FormatInt(id, 10)
}
