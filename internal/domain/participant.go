package domain

import "time"

type Role string

const (
	RoleHost        Role = "HOST"
	RoleCohost      Role = "COHOST"
	RoleParticipant Role = "PARTICIPANT"
)

// CanModerate reports whether the role may kick or ban.
func (r Role) CanModerate() bool {
	return r == RoleHost || r == RoleCohost
}

// Participant is the durable per-meeting per-person record. Attendance
// intervals are stored separately, one row per admission interval, so a
// reconnect always yields two independent intervals.
type Participant struct {
	MeetingID MeetingID
	PersonID  PersonID
	Role      Role
	IsBanned  bool
}

// AttendanceInterval is one admission-to-removal span.
type AttendanceInterval struct {
	MeetingID MeetingID
	PersonID  PersonID
	JoinedAt  time.Time
	LeftAt    time.Time
	Seconds   int64
}
