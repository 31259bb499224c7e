// Package signal is the websocket adapter of the meeting namespace. It
// authenticates the handshake, runs the per-connection pumps and turns
// inbound frames into orchestrator requests. All room-state decisions
// live in internal/app; this package only moves bytes.
package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/app"
	"github.com/crewdesk/meetlive/internal/auth"
	"github.com/crewdesk/meetlive/internal/config"
	"github.com/crewdesk/meetlive/internal/domain"
	"github.com/crewdesk/meetlive/internal/protocol"
	"github.com/crewdesk/meetlive/internal/ratelimit"
	"github.com/crewdesk/meetlive/internal/room"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Cfg         *config.Config
	Auth        *auth.Verifier
	Orch        *app.Orchestrator
	ConnLimiter *ratelimit.Limiter
}

func NewController(cfg *config.Config, verifier *auth.Verifier, orch *app.Orchestrator, connLimiter *ratelimit.Limiter) *Controller {
	return &Controller{Cfg: cfg, Auth: verifier, Orch: orch, ConnLimiter: connLimiter}
}

// credentialFrom pulls the access token from the query string or the
// Authorization header.
func credentialFrom(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// HandleMeeting runs the full lifecycle of one meeting connection:
// per-IP attempt limiting, upgrade, credential verification, admission,
// then the pump loop until disconnect.
func (ctl *Controller) HandleMeeting(ctx context.Context, c *gin.Context) {
	if !ctl.ConnLimiter.Allow(c.ClientIP()) {
		log.Warn().Str("module", "signal").Str("ip", c.ClientIP()).Msg("connection attempts rate limited")
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	connID := room.ConnID(uuid.NewString())
	conn := newWSConn(ws, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctl.writePump(ctx, conn)

	claims, err := ctl.Auth.Verify(credentialFrom(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("authentication refused")
		ctl.refuse(conn, protocol.CodeAuthFailed, "authentication failed")
		return
	}

	sess, err := ctl.Orch.Admit(ctx, claims, connID, conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("conn", string(connID)).
			Str("meeting", string(claims.MeetingID)).
			Str("person", string(claims.PersonID)).
			Msg("admission refused")
		code, msg := admissionError(err)
		ctl.refuse(conn, code, msg)
		return
	}

	ctl.readPump(ctx, sess, conn)
}

// refuse reports the handshake failure and terminates promptly; no
// half-admitted state may linger. The buffered error frame is drained by
// the write pump before it sees the closed queue.
func (ctl *Controller) refuse(conn *wsConn, code, message string) {
	_ = conn.TrySend(protocol.Error(code, message))
	conn.Close()
}

func admissionError(err error) (code, message string) {
	switch {
	case errors.Is(err, domain.ErrBanned):
		return protocol.CodeBanned, "you are banned from this meeting"
	case errors.Is(err, domain.ErrAlreadyConnected):
		return protocol.CodeAlreadyConnected, "already connected to this meeting"
	case errors.Is(err, domain.ErrMeetingNotLive), errors.Is(err, domain.ErrMeetingNotFound):
		return protocol.CodeMeetingNotLive, "meeting is not live"
	default:
		// Store outages fail closed; the client may retry later.
		return protocol.CodeMeetingNotLive, "meeting unavailable"
	}
}

func (ctl *Controller) readPump(ctx context.Context, sess *app.Session, conn *wsConn) {
	defer func() {
		ctl.Orch.Leave(ctx, sess)
		conn.Close()
		log.Info().Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("connection closed")
	}()

	if ctl.Cfg.ReadLimit > 0 {
		conn.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	}
	pongWait := ctl.Cfg.PingPeriod * 10 / 9
	if pongWait > 0 {
		_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.conn.SetPongHandler(func(string) error {
			return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("read error")
			return
		}
		if leave := ctl.handleMessage(ctx, sess, conn, data); leave {
			return
		}
	}
}

// handleMessage dispatches one inbound frame. Returns true when the
// connection should terminate (voluntary leave).
func (ctl *Controller) handleMessage(ctx context.Context, sess *app.Session, conn *wsConn, data []byte) bool {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.ConnID)).Msg("bad message")
		_ = conn.TrySend(protocol.Error(protocol.CodeRelayError, "bad message"))
		return false
	}

	switch msg.Type {
	case protocol.TypePresenceJoin:
		if err := ctl.Orch.Announce(sess); err != nil {
			_ = conn.TrySend(protocol.Error(relayError(err)))
		}
	case protocol.TypePresenceLeave:
		return true
	case protocol.TypeSignalOffer, protocol.TypeSignalAnswer, protocol.TypeSignalICE:
		if err := ctl.Orch.Relay(sess, msg); err != nil {
			_ = conn.TrySend(protocol.Error(relayError(err)))
		}
	case protocol.TypeHostKick:
		if err := ctl.Orch.Kick(ctx, sess, domain.PersonID(msg.TargetPersonID), "removed by host"); err != nil {
			_ = conn.TrySend(protocol.Error(hostError(err, protocol.CodeKickError)))
		}
	case protocol.TypeHostBan:
		if err := ctl.Orch.Ban(ctx, sess, domain.PersonID(msg.TargetPersonID), "banned by host"); err != nil {
			_ = conn.TrySend(protocol.Error(hostError(err, protocol.CodeBanError)))
		}
	case protocol.TypeHostEnd:
		if err := ctl.Orch.End(ctx, sess, "meeting ended by host"); err != nil {
			_ = conn.TrySend(protocol.Error(hostError(err, protocol.CodeEndError)))
		}
	}
	return false
}

func relayError(err error) (code, message string) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return protocol.CodeRateLimited, "signaling budget exceeded, back off"
	case errors.Is(err, domain.ErrTargetNotFound):
		return protocol.CodeTargetNotFound, "target not in room"
	case errors.Is(err, domain.ErrMeetingNotLive):
		return protocol.CodeMeetingNotLive, "meeting is not live"
	default:
		return protocol.CodeRelayError, "relay failed"
	}
}

func hostError(err error, fallback string) (code, message string) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return protocol.CodeForbidden, "host role required"
	case errors.Is(err, domain.ErrTargetNotFound):
		return protocol.CodeTargetNotFound, "target not in room"
	case errors.Is(err, domain.ErrMeetingAlreadyEnded):
		return fallback, "meeting already ended"
	default:
		return fallback, err.Error()
	}
}
