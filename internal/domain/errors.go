package domain

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMeetingNotFound      = errors.New("meeting not found")
	ErrMeetingNotLive       = errors.New("meeting not live")
	ErrMeetingAlreadyEnded  = errors.New("meeting already ended")
	ErrBanned               = errors.New("banned from meeting")
	// ErrAlreadyConnected is returned when a second connection arrives for a
	// person already admitted to the same meeting. The first connection wins.
	ErrAlreadyConnected = errors.New("already connected")
	ErrTargetNotFound   = errors.New("target not in room")
	ErrRateLimited      = errors.New("rate limited")
	ErrForbidden        = errors.New("forbidden")
)
