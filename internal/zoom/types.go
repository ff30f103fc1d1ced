package zoom

import "time"

// Meeting types per the Zoom REST API; 2 is a scheduled meeting.
const MeetingTypeScheduled = 2

// MeetingSettings mirrors the settings block of the meetings API.
type MeetingSettings struct {
	HostVideo                    bool `json:"host_video"`
	ParticipantVideo             bool `json:"participant_video"`
	JoinBeforeHost               bool `json:"join_before_host"`
	MuteUponEntry                bool `json:"mute_upon_entry"`
	WaitingRoom                  bool `json:"waiting_room"`
	RegistrantsEmailNotification bool `json:"registrants_email_notification"`
}

// MeetingRequest is the payload for creating or updating a meeting.
type MeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"` // ISO 8601
	Duration  int             `json:"duration"`   // minutes
	Timezone  string          `json:"timezone"`
	Password  string          `json:"password,omitempty"`
	Settings  MeetingSettings `json:"settings"`
}

// Meeting is a scheduled meeting as returned by the Zoom API. The id comes
// back as a number; json.Number keeps it usable as the string key the rest of
// the system uses.
type Meeting struct {
	ID        int64  `json:"id"`
	HostID    string `json:"host_id"`
	Topic     string `json:"topic"`
	Type      int    `json:"type"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone"`
	JoinURL   string `json:"join_url"`
	Password  string `json:"password"`
}

type meetingList struct {
	Meetings []Meeting `json:"meetings"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// webhookEnvelope is the outer shape of every Zoom webhook POST.
type webhookEnvelope struct {
	Event   string         `json:"event"`
	EventTS int64          `json:"event_ts"` // unix millis
	Payload webhookPayload `json:"payload"`
}

type webhookPayload struct {
	AccountID  string        `json:"account_id"`
	PlainToken string        `json:"plainToken"`
	Object     webhookObject `json:"object"`
}

// webhookObject carries the meeting fields shared by the lifecycle events.
// The meeting id arrives as a number for meeting.* events and as a string for
// recording.completed, so it is decoded leniently.
type webhookObject struct {
	ID          flexibleID         `json:"id"`
	UUID        string             `json:"uuid"`
	HostID      string             `json:"host_id"`
	Topic       string             `json:"topic"`
	StartTime   string             `json:"start_time"`
	EndTime     string             `json:"end_time"`
	Duration    int                `json:"duration"`
	Participant webhookParticipant `json:"participant"`
	Recordings  []recordingFile    `json:"recording_files"`
}

type webhookParticipant struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

type recordingFile struct {
	ID             string `json:"id"`
	MeetingID      string `json:"meeting_id"`
	RecordingStart string `json:"recording_start"`
	RecordingEnd   string `json:"recording_end"`
	FileType       string `json:"file_type"`
	FileSize       int64  `json:"file_size"`
	DownloadURL    string `json:"download_url"`
	PlayURL        string `json:"play_url"`
}

// LifecycleEvent is the parsed, verified webhook event handed to the sink.
type LifecycleEvent struct {
	Type       string
	MeetingID  string
	Topic      string
	OccurredAt time.Time
	Detail     string

	// Set for participant_joined / participant_left.
	Participant *ParticipantInfo
	// Set for recording.completed.
	Recordings []RecordingInfo
}

// ParticipantInfo identifies a joining or leaving attendee.
type ParticipantInfo struct {
	UserID string
	Name   string
	Email  string
}

// RecordingInfo describes one completed recording file.
type RecordingInfo struct {
	ID             string
	MeetingID      string
	FileType       string
	FileSize       int64
	RecordingStart time.Time
	RecordingEnd   time.Time
	DownloadURL    string
	PlayURL        string
}
