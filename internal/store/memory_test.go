package store

import (
	"context"
	"errors"
	"testing"

	"github.com/crewdesk/meetlive/internal/domain"
)

func liveMeeting(id domain.MeetingID) domain.Meeting {
	return domain.Meeting{ID: id, RoomCode: "abc123", HostID: "host-1", Status: domain.StatusLive}
}

func TestMemoryStore_GetMeeting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetMeeting(ctx, "missing"); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Fatalf("expected ErrMeetingNotFound, got %v", err)
	}

	s.Put(liveMeeting("m1"))
	m, err := s.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Status != domain.StatusLive {
		t.Errorf("status = %q", m.Status)
	}
}

func TestMemoryStore_StartMeeting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(domain.Meeting{ID: "m1", Status: domain.StatusScheduled})

	if err := s.StartMeeting(ctx, "m1"); err != nil {
		t.Fatalf("start scheduled: %v", err)
	}
	if err := s.StartMeeting(ctx, "m1"); err != nil {
		t.Fatalf("starting a live meeting is a no-op: %v", err)
	}

	s.Put(domain.Meeting{ID: "m2", Status: domain.StatusEnded})
	if err := s.StartMeeting(ctx, "m2"); !errors.Is(err, domain.ErrMeetingNotLive) {
		t.Fatalf("expected ErrMeetingNotLive for ended meeting, got %v", err)
	}
}

func TestMemoryStore_EndMeetingIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(liveMeeting("m1"))

	already, err := s.EndMeeting(ctx, "m1")
	if err != nil || already {
		t.Fatalf("first end: already=%v err=%v", already, err)
	}
	already, err = s.EndMeeting(ctx, "m1")
	if err != nil {
		t.Fatalf("second end must succeed: %v", err)
	}
	if !already {
		t.Fatalf("second end must report alreadyEnded")
	}
}

func TestMemoryStore_BanIsSticky(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	banned, err := s.IsBanned(ctx, "m1", "p1")
	if err != nil || banned {
		t.Fatalf("unseen person must not be banned")
	}

	if err := s.SetBanned(ctx, "m1", "p1"); err != nil {
		t.Fatalf("set banned: %v", err)
	}
	// Churn other participants in between; the flag must survive.
	_ = s.EnsureParticipant(ctx, "m1", "p2", domain.RoleParticipant)
	_ = s.EnsureParticipant(ctx, "m1", "p1", domain.RoleParticipant)

	banned, err = s.IsBanned(ctx, "m1", "p1")
	if err != nil || !banned {
		t.Fatalf("ban must be terminal: banned=%v err=%v", banned, err)
	}
	if banned, _ := s.IsBanned(ctx, "m2", "p1"); banned {
		t.Fatalf("ban is scoped to the meeting")
	}
}

func TestMemoryStore_AttendanceAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	iv := domain.AttendanceInterval{MeetingID: "m1", PersonID: "p1", Seconds: 125}
	if err := s.RecordAttendance(ctx, iv); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordAttendance(ctx, iv); err != nil {
		t.Fatalf("record second interval: %v", err)
	}
	if got := len(s.Attendance()); got != 2 {
		t.Fatalf("reconnect yields independent intervals, got %d rows", got)
	}
}

func TestMemoryStore_RoleRefreshedOnReadmission(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.EnsureParticipant(ctx, "m1", "p1", domain.RoleParticipant); err != nil {
		t.Fatalf("first admission: %v", err)
	}
	if err := s.SetBanned(ctx, "m1", "p1"); err != nil {
		t.Fatalf("set banned: %v", err)
	}

	// Re-invited under a new role; the role updates, the ban flag stays.
	if err := s.EnsureParticipant(ctx, "m1", "p1", domain.RoleCohost); err != nil {
		t.Fatalf("readmission: %v", err)
	}
	p, ok := s.Participant("m1", "p1")
	if !ok || p.Role != domain.RoleCohost {
		t.Fatalf("participant = %+v ok=%v", p, ok)
	}
	if !p.IsBanned {
		t.Fatalf("role refresh must not clear the ban flag")
	}
}
