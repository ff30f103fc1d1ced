package appointments

import (
	"context"
	"sort"
	"sync"
)

// Store defines the interface for appointment persistence. Implementations
// must serialize Update callbacks per record so concurrent webhook and
// management mutations cannot clobber each other.
type Store interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByToken(ctx context.Context, token string) (*Appointment, error)
	// GetByMeetingID resolves an appointment through the Zoom meeting id
	// secondary index.
	GetByMeetingID(ctx context.Context, meetingID string) (*Appointment, error)
	// Update loads the appointment for token, applies fn under the store's
	// mutation guard, and persists the result. fn returning an error aborts
	// the update.
	Update(ctx context.Context, token string, fn func(*Appointment) error) (*Appointment, error)
	// UpdateByMeetingID is Update keyed by the meeting id index.
	UpdateByMeetingID(ctx context.Context, meetingID string, fn func(*Appointment) error) (*Appointment, error)
	Delete(ctx context.Context, token string) error
	// List returns all appointments, newest first.
	List(ctx context.Context) ([]*Appointment, error)
}

// MemoryStore is the process-lifetime implementation of Store. It is a
// mutex-guarded map keyed by token, with a meetingID -> token index so
// webhook lookups avoid a linear scan.
type MemoryStore struct {
	mu        sync.RWMutex
	byToken   map[string]*Appointment
	byMeeting map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:   make(map[string]*Appointment),
		byMeeting: make(map[string]string),
	}
}

// Create stores a new appointment keyed by its token.
func (s *MemoryStore) Create(ctx context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := appt.clone()
	s.byToken[cp.Token] = cp
	if cp.ZoomMeetingID != "" {
		s.byMeeting[cp.ZoomMeetingID] = cp.Token
	}
	return nil
}

// GetByToken returns a copy of the appointment for token.
func (s *MemoryStore) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return appt.clone(), nil
}

// GetByMeetingID returns a copy of the appointment whose Zoom meeting id
// matches.
func (s *MemoryStore) GetByMeetingID(ctx context.Context, meetingID string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byMeeting[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	appt, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return appt.clone(), nil
}

// Update applies fn to the stored appointment while holding the write lock.
func (s *MemoryStore) Update(ctx context.Context, token string, fn func(*Appointment) error) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(token, fn)
}

// UpdateByMeetingID applies fn to the appointment resolved via the meeting
// id index.
func (s *MemoryStore) UpdateByMeetingID(ctx context.Context, meetingID string, fn func(*Appointment) error) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byMeeting[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.updateLocked(token, fn)
}

func (s *MemoryStore) updateLocked(token string, fn func(*Appointment) error) (*Appointment, error) {
	appt, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	oldMeeting := appt.ZoomMeetingID
	cp := appt.clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	s.byToken[token] = cp
	if cp.ZoomMeetingID != oldMeeting {
		if oldMeeting != "" {
			delete(s.byMeeting, oldMeeting)
		}
		if cp.ZoomMeetingID != "" {
			s.byMeeting[cp.ZoomMeetingID] = token
		}
	}
	return cp.clone(), nil
}

// Delete removes the appointment and its meeting index entry.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.byToken[token]
	if !ok {
		return ErrNotFound
	}
	if appt.ZoomMeetingID != "" {
		delete(s.byMeeting, appt.ZoomMeetingID)
	}
	delete(s.byToken, token)
	return nil
}

// List returns all appointments sorted by creation time, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Appointment, 0, len(s.byToken))
	for _, appt := range s.byToken {
		out = append(out, appt.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (a *Appointment) clone() *Appointment {
	cp := *a
	if a.LastActivity != nil {
		last := *a.LastActivity
		cp.LastActivity = &last
	}
	cp.Participants = append([]Participant(nil), a.Participants...)
	cp.Recordings = append([]Recording(nil), a.Recordings...)
	cp.Activity = append([]ActivityEntry(nil), a.Activity...)
	cp.AdminNotes = append([]AdminNote(nil), a.AdminNotes...)
	return &cp
}
