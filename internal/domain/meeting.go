// Package domain contains entities without logic, just meta-data
package domain

type (
	MeetingID string
	RoomCode  string
	PersonID  string
)

type MeetingStatus string

const (
	StatusScheduled MeetingStatus = "SCHEDULED"
	StatusLive      MeetingStatus = "LIVE"
	StatusEnded     MeetingStatus = "ENDED"
	StatusCanceled  MeetingStatus = "CANCELED"
)

// Meeting is the durable record owned by the meeting-management
// collaborator. This subsystem reads it at admission time and mutates
// only the status (host end) and ban fields.
type Meeting struct {
	ID           MeetingID
	RoomCode     RoomCode
	HostID       PersonID
	Status       MeetingStatus
	IsPersistent bool
	PasswordHash string
}

// AcceptsConnections reports whether the room may admit members or
// carry signaling traffic.
func (m Meeting) AcceptsConnections() bool {
	return m.Status == StatusLive
}
