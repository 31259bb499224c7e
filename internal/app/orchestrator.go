// Package app coordinates the room registry, the durable store, the
// rate limiter and the attendance accountant. Every inbound event is a
// request: validate, snapshot what the store needs, mutate room state
// through the actor, then hand outbound frames to member send buffers.
// Store I/O never runs inside a room actor.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/attendance"
	"github.com/crewdesk/meetlive/internal/auth"
	"github.com/crewdesk/meetlive/internal/domain"
	"github.com/crewdesk/meetlive/internal/protocol"
	"github.com/crewdesk/meetlive/internal/ratelimit"
	"github.com/crewdesk/meetlive/internal/room"
	"github.com/crewdesk/meetlive/internal/store"
)

type Orchestrator struct {
	Store      store.MeetingStore
	Registry   *room.Registry
	Limiter    *ratelimit.Limiter
	Accountant *attendance.Accountant

	now func() time.Time
}

func NewOrchestrator(st store.MeetingStore, reg *room.Registry, lim *ratelimit.Limiter, acc *attendance.Accountant) *Orchestrator {
	return &Orchestrator{
		Store:      st,
		Registry:   reg,
		Limiter:    lim,
		Accountant: acc,
		now:        time.Now,
	}
}

// Session is the admitted connection's state, held by the transport
// adapter for the lifetime of the socket.
type Session struct {
	ConnID      room.ConnID
	PersonID    domain.PersonID
	DisplayName string
	Role        domain.Role
	MeetingID   domain.MeetingID
	JoinedAt    time.Time

	room   *room.Room
	sender room.Sender
}

func (s *Session) rosterEntry() protocol.RosterEntry {
	return protocol.RosterEntry{
		PersonID:     string(s.PersonID),
		DisplayName:  s.DisplayName,
		Role:         string(s.Role),
		ConnectionID: string(s.ConnID),
	}
}

func rosterEntries(members []room.MemberInfo) []protocol.RosterEntry {
	out := make([]protocol.RosterEntry, 0, len(members))
	for _, m := range members {
		out = append(out, protocol.RosterEntry{
			PersonID:     string(m.PersonID),
			DisplayName:  m.DisplayName,
			Role:         string(m.Role),
			ConnectionID: string(m.ConnID),
		})
	}
	return out
}

// Admit runs the full admission sequence: durable status check (fail
// closed on store outage), ban check, participant record, then the room
// mutation, which delivers the joined broadcast and the private roster
// reply inside the actor command. Liveness is re-validated afterwards
// and the admission rolled back if the meeting ended mid-flight.
func (o *Orchestrator) Admit(ctx context.Context, claims auth.Claims, connID room.ConnID, sender room.Sender) (*Session, error) {
	meeting, err := o.Store.GetMeeting(ctx, claims.MeetingID)
	if err != nil {
		return nil, err
	}

	if meeting.Status == domain.StatusScheduled && claims.Role == domain.RoleHost && claims.PersonID == meeting.HostID {
		if err := o.Store.StartMeeting(ctx, claims.MeetingID); err != nil {
			return nil, err
		}
		meeting.Status = domain.StatusLive
	}
	if !meeting.AcceptsConnections() {
		return nil, domain.ErrMeetingNotLive
	}

	banned, err := o.Store.IsBanned(ctx, claims.MeetingID, claims.PersonID)
	if err != nil {
		return nil, fmt.Errorf("ban check: %w", err)
	}
	if banned {
		return nil, domain.ErrBanned
	}

	if err := o.Store.EnsureParticipant(ctx, claims.MeetingID, claims.PersonID, claims.Role); err != nil {
		return nil, fmt.Errorf("participant record: %w", err)
	}

	sess := &Session{
		ConnID:      connID,
		PersonID:    claims.PersonID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		MeetingID:   claims.MeetingID,
		JoinedAt:    o.now(),
		sender:      sender,
	}
	sess.room = o.Registry.GetOrCreate(claims.MeetingID)

	err = sess.room.Admit(&room.Member{
		ConnID:      connID,
		PersonID:    claims.PersonID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		JoinedAt:    sess.JoinedAt,
		Sender:      sender,
	}, protocol.Joined(sess.rosterEntry()), func(members []room.MemberInfo) []byte {
		return protocol.Roster(rosterEntries(members))
	})
	if err != nil {
		return nil, err
	}

	// The host may have ended the meeting between the status check and the
	// actor mutation; End would then have closed and dropped the old room,
	// and GetOrCreate spun up a fresh open actor for an ended meeting.
	// Re-validate against the store and roll the admission back.
	meeting, recheckErr := o.Store.GetMeeting(ctx, claims.MeetingID)
	if recheckErr != nil || !meeting.AcceptsConnections() {
		sess.room.Remove(claims.PersonID, leftFrame)
		if recheckErr == nil && sess.room.Len() == 0 {
			sess.room.Close()
			o.Registry.Drop(claims.MeetingID, sess.room)
		}
		log.Warn().Str("module", "app").
			Str("meeting", string(claims.MeetingID)).
			Str("person", string(claims.PersonID)).
			AnErr("recheck", recheckErr).
			Msg("admission rolled back, meeting no longer live")
		if recheckErr != nil {
			return nil, recheckErr
		}
		return nil, domain.ErrMeetingNotLive
	}

	log.Info().Str("module", "app").
		Str("meeting", string(claims.MeetingID)).
		Str("person", string(claims.PersonID)).
		Str("conn", string(connID)).
		Str("role", string(claims.Role)).
		Msg("admitted")
	return sess, nil
}

// Announce re-broadcasts the joined event and resends the roster, for
// clients that want an explicit re-announce after admission. The fan-out
// amplifies one inbound frame to the whole room, so it draws from the
// same per-kind budget as the signaling kinds.
func (o *Orchestrator) Announce(sess *Session) error {
	if !o.Limiter.Allow(signalRateKey(sess.ConnID, protocol.TypePresenceJoin)) {
		log.Warn().Str("module", "app").
			Str("conn", string(sess.ConnID)).
			Str("kind", string(protocol.TypePresenceJoin)).
			Msg("announce rate limited")
		return domain.ErrRateLimited
	}
	members := sess.room.Members()
	joined := protocol.Joined(sess.rosterEntry())
	roster := make([]room.MemberInfo, 0, len(members))
	for _, m := range members {
		if m.PersonID == sess.PersonID {
			continue
		}
		roster = append(roster, m)
		_ = sess.room.Relay(m.PersonID, joined)
	}
	_ = sess.sender.TrySend(protocol.Roster(rosterEntries(roster)))
	return nil
}

// Leave removes the member on voluntary leave or socket teardown. The
// actor yields the removed entry at most once, so attendance is
// finalized exactly once per admission no matter how the connection
// ended.
func (o *Orchestrator) Leave(ctx context.Context, sess *Session) {
	removed, ok := sess.room.Remove(sess.PersonID, leftFrame)
	if !ok {
		// Already removed by kick, ban or meeting end; the remover owned the
		// departure broadcast and the attendance write.
		return
	}

	o.forgetLimits(sess.ConnID)
	o.Accountant.Finalize(ctx, sess.MeetingID, removed.PersonID, removed.JoinedAt)

	log.Info().Str("module", "app").
		Str("meeting", string(sess.MeetingID)).
		Str("person", string(removed.PersonID)).
		Msg("left")
}

// leftFrame encodes the departure broadcast; the room actor invokes it
// with the removed member's snapshot inside the removal command.
func leftFrame(m room.MemberInfo) []byte {
	return protocol.Left(m.PersonID, string(m.ConnID))
}

func signalRateKey(connID room.ConnID, kind protocol.MessageType) string {
	return string(connID) + "|" + string(kind)
}

func (o *Orchestrator) forgetLimits(connID room.ConnID) {
	kinds := []protocol.MessageType{
		protocol.TypePresenceJoin,
		protocol.TypeSignalOffer,
		protocol.TypeSignalAnswer,
		protocol.TypeSignalICE,
	}
	for _, kind := range kinds {
		o.Limiter.Forget(signalRateKey(connID, kind))
	}
}
