package app

import (
	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/domain"
	"github.com/crewdesk/meetlive/internal/protocol"
)

// Relay forwards one signaling message to exactly one target in the
// sender's room. The payload is opaque and passed through byte-for-byte,
// tagged with the sender's person id. The per-kind budget is checked
// before any lookup.
func (o *Orchestrator) Relay(sess *Session, msg protocol.ClientMessage) error {
	if !o.Limiter.Allow(signalRateKey(sess.ConnID, msg.Type)) {
		log.Warn().Str("module", "app").
			Str("conn", string(sess.ConnID)).
			Str("kind", string(msg.Type)).
			Msg("signal rate limited")
		return domain.ErrRateLimited
	}

	frame := protocol.Signal(msg.Type, sess.PersonID, msg.SignalPayload())
	err := sess.room.Relay(domain.PersonID(msg.TargetPersonID), frame)
	if err != nil {
		log.Debug().Str("module", "app").
			Str("meeting", string(sess.MeetingID)).
			Str("from", string(sess.PersonID)).
			Str("to", msg.TargetPersonID).
			Str("kind", string(msg.Type)).
			Err(err).
			Msg("relay failed")
		return err
	}
	log.Debug().Str("module", "app").
		Str("meeting", string(sess.MeetingID)).
		Str("from", string(sess.PersonID)).
		Str("to", msg.TargetPersonID).
		Str("kind", string(msg.Type)).
		Int("bytes", len(frame)).
		Msg("relayed")
	return nil
}
