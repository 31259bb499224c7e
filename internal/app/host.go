package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/domain"
	"github.com/crewdesk/meetlive/internal/protocol"
)

// Kick removes the target from the room, notifies it with the reason and
// force-closes its socket. Transient: no ban flag, the target may rejoin.
func (o *Orchestrator) Kick(ctx context.Context, sess *Session, target domain.PersonID, reason string) error {
	if !sess.Role.CanModerate() {
		return domain.ErrForbidden
	}
	removed, ok := sess.room.Remove(target, leftFrame)
	if !ok {
		if sess.room.Closed() {
			return domain.ErrMeetingAlreadyEnded
		}
		return domain.ErrTargetNotFound
	}

	_ = removed.Sender.TrySend(protocol.Kicked(target, reason))
	removed.Sender.Kill()
	o.forgetLimits(removed.ConnID)
	o.Accountant.Finalize(ctx, sess.MeetingID, removed.PersonID, removed.JoinedAt)

	log.Info().Str("module", "app").
		Str("meeting", string(sess.MeetingID)).
		Str("by", string(sess.PersonID)).
		Str("target", string(target)).
		Msg("kicked")
	return nil
}

// Ban kicks the target and records the terminal ban flag. The flag is
// written after the removal so the error paths perform no mutation; a
// banned identity is rejected at every later admission for this meeting.
func (o *Orchestrator) Ban(ctx context.Context, sess *Session, target domain.PersonID, reason string) error {
	if !sess.Role.CanModerate() {
		return domain.ErrForbidden
	}
	removed, ok := sess.room.Remove(target, leftFrame)
	if !ok {
		if sess.room.Closed() {
			return domain.ErrMeetingAlreadyEnded
		}
		return domain.ErrTargetNotFound
	}

	_ = removed.Sender.TrySend(protocol.Banned(target, reason))
	removed.Sender.Kill()
	o.forgetLimits(removed.ConnID)
	o.Accountant.Finalize(ctx, sess.MeetingID, removed.PersonID, removed.JoinedAt)

	if err := o.Store.SetBanned(ctx, sess.MeetingID, target); err != nil {
		// The target is already out of the room; only the durable flag failed.
		return fmt.Errorf("ban flag: %w", err)
	}
	log.Info().Str("module", "app").
		Str("meeting", string(sess.MeetingID)).
		Str("by", string(sess.PersonID)).
		Str("target", string(target)).
		Msg("banned")
	return nil
}

// End transitions the meeting to ENDED, broadcasts the ended notice and
// force-disconnects every member including the invoker. Idempotent:
// ending an already-ended meeting succeeds without a second broadcast.
func (o *Orchestrator) End(ctx context.Context, sess *Session, reason string) error {
	if sess.Role != domain.RoleHost {
		return domain.ErrForbidden
	}

	alreadyEnded, err := o.Store.EndMeeting(ctx, sess.MeetingID)
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}

	members := sess.room.Close()
	o.Registry.Drop(sess.MeetingID, sess.room)
	if len(members) == 0 {
		log.Info().Str("module", "app").
			Str("meeting", string(sess.MeetingID)).
			Bool("already_ended", alreadyEnded).
			Msg("end with empty room")
		return nil
	}

	ended := protocol.Ended(reason)
	for _, m := range members {
		_ = m.Sender.TrySend(ended)
		m.Sender.Kill()
		o.forgetLimits(m.ConnID)
		o.Accountant.Finalize(ctx, sess.MeetingID, m.PersonID, m.JoinedAt)
	}
	log.Info().Str("module", "app").
		Str("meeting", string(sess.MeetingID)).
		Str("by", string(sess.PersonID)).
		Int("disconnected", len(members)).
		Msg("meeting ended")
	return nil
}
