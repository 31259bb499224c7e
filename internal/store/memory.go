package store

import (
	"context"
	"sync"

	"github.com/crewdesk/meetlive/internal/domain"
)

// MemoryStore is an in-memory MeetingStore. It is the explicit fixture
// double for the meeting-status collaborator; tests and local "no real
// backing meeting" setups use it instead of branching inside the relay
// path.
type MemoryStore struct {
	mu           sync.Mutex
	meetings     map[domain.MeetingID]domain.Meeting
	participants map[participantKey]*domain.Participant
	attendance   []domain.AttendanceInterval
}

type participantKey struct {
	meeting domain.MeetingID
	person  domain.PersonID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meetings:     make(map[domain.MeetingID]domain.Meeting),
		participants: make(map[participantKey]*domain.Participant),
	}
}

// Put seeds or replaces a meeting record.
func (s *MemoryStore) Put(m domain.Meeting) {
	s.mu.Lock()
	s.meetings[m.ID] = m
	s.mu.Unlock()
}

func (s *MemoryStore) GetMeeting(_ context.Context, id domain.MeetingID) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrMeetingNotFound
	}
	return m, nil
}

func (s *MemoryStore) StartMeeting(_ context.Context, id domain.MeetingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.ErrMeetingNotFound
	}
	switch m.Status {
	case domain.StatusScheduled:
		m.Status = domain.StatusLive
		s.meetings[id] = m
		return nil
	case domain.StatusLive:
		return nil
	default:
		return domain.ErrMeetingNotLive
	}
}

func (s *MemoryStore) EndMeeting(_ context.Context, id domain.MeetingID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return false, domain.ErrMeetingNotFound
	}
	switch m.Status {
	case domain.StatusEnded:
		return true, nil
	case domain.StatusScheduled, domain.StatusLive:
		m.Status = domain.StatusEnded
		s.meetings[id] = m
		return false, nil
	default:
		return false, domain.ErrMeetingNotLive
	}
}

func (s *MemoryStore) EnsureParticipant(_ context.Context, meetingID domain.MeetingID, personID domain.PersonID, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{meetingID, personID}
	if p, ok := s.participants[key]; ok {
		p.Role = role
		return nil
	}
	s.participants[key] = &domain.Participant{
		MeetingID: meetingID,
		PersonID:  personID,
		Role:      role,
	}
	return nil
}

func (s *MemoryStore) IsBanned(_ context.Context, meetingID domain.MeetingID, personID domain.PersonID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantKey{meetingID, personID}]
	return ok && p.IsBanned, nil
}

func (s *MemoryStore) SetBanned(_ context.Context, meetingID domain.MeetingID, personID domain.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{meetingID, personID}
	p, ok := s.participants[key]
	if !ok {
		p = &domain.Participant{MeetingID: meetingID, PersonID: personID, Role: domain.RoleParticipant}
		s.participants[key] = p
	}
	p.IsBanned = true
	return nil
}

func (s *MemoryStore) RecordAttendance(_ context.Context, iv domain.AttendanceInterval) error {
	s.mu.Lock()
	s.attendance = append(s.attendance, iv)
	s.mu.Unlock()
	return nil
}

// Participant returns the durable per-meeting record, for assertions.
func (s *MemoryStore) Participant(meetingID domain.MeetingID, personID domain.PersonID) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantKey{meetingID, personID}]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Attendance returns a copy of all recorded intervals, for assertions.
func (s *MemoryStore) Attendance() []domain.AttendanceInterval {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AttendanceInterval, len(s.attendance))
	copy(out, s.attendance)
	return out
}
