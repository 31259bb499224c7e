// Package attendance finalizes admission intervals on member removal.
package attendance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/domain"
	"github.com/crewdesk/meetlive/internal/store"
)

// Accountant computes elapsed in-room time and hands it to the durable
// store. Callers invoke Finalize exactly once per removal; the room
// actor yields each removed member exactly once, which carries that
// guarantee here.
type Accountant struct {
	store store.MeetingStore
	now   func() time.Time
}

func NewAccountant(st store.MeetingStore) *Accountant {
	return &Accountant{store: st, now: time.Now}
}

// NewAccountantWithClock injects the clock, for deterministic tests.
func NewAccountantWithClock(st store.MeetingStore, now func() time.Time) *Accountant {
	return &Accountant{store: st, now: now}
}

// Finalize records the interval [joinedAt, now]. joinedAt must come from
// time.Now at admission so the subtraction uses the monotonic clock, not
// wall time subject to skew.
func (a *Accountant) Finalize(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID, joinedAt time.Time) {
	left := a.now()
	elapsed := left.Sub(joinedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int64(elapsed.Round(time.Second) / time.Second)

	err := a.store.RecordAttendance(ctx, domain.AttendanceInterval{
		MeetingID: meetingID,
		PersonID:  personID,
		JoinedAt:  joinedAt,
		LeftAt:    left,
		Seconds:   seconds,
	})
	if err != nil {
		// The live session must not fail because accounting did; the row is
		// lost and surfaced in logs for reconciliation.
		log.Error().Err(err).Str("module", "attendance").
			Str("meeting", string(meetingID)).
			Str("person", string(personID)).
			Int64("seconds", seconds).
			Msg("failed to record attendance")
		return
	}
	log.Info().Str("module", "attendance").
		Str("meeting", string(meetingID)).
		Str("person", string(personID)).
		Int64("seconds", seconds).
		Msg("attendance recorded")
}
