// Package store is the boundary to the durable meeting/participant
// records owned by the meeting-management service. This subsystem reads
// meeting status at admission and writes only status transitions, ban
// flags and attendance intervals.
package store

import (
	"context"

	"github.com/crewdesk/meetlive/internal/domain"
)

type MeetingStore interface {
	// GetMeeting returns the durable meeting record, or
	// domain.ErrMeetingNotFound.
	GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error)

	// StartMeeting transitions SCHEDULED to LIVE. Starting a LIVE meeting
	// is a no-op; an ENDED or CANCELED meeting returns
	// domain.ErrMeetingNotLive.
	StartMeeting(ctx context.Context, id domain.MeetingID) error

	// EndMeeting transitions the meeting to ENDED. Ending an already-ended
	// meeting is a no-op success with alreadyEnded=true.
	EndMeeting(ctx context.Context, id domain.MeetingID) (alreadyEnded bool, err error)

	// EnsureParticipant creates the participant record if absent and
	// refreshes the role on re-admission, so a re-invite under a new role
	// is reflected durably. The ban flag is never touched here.
	EnsureParticipant(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID, role domain.Role) error

	IsBanned(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID) (bool, error)
	SetBanned(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID) error

	// RecordAttendance appends one admission interval. Callers invoke it
	// exactly once per removal; the store does not merge intervals.
	RecordAttendance(ctx context.Context, iv domain.AttendanceInterval) error
}
