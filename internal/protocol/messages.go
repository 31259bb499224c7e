// Package protocol models the wire surface of the meeting namespace:
// strict parsing of client messages and construction of server frames.
// Signaling payloads (SDP, ICE candidates) stay opaque json.RawMessage
// and are forwarded byte-for-byte.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/crewdesk/meetlive/internal/domain"
)

type MessageType string

const (
	TypePresenceJoin  MessageType = "presence:join"
	TypePresenceLeave MessageType = "presence:leave"
	TypeSignalOffer   MessageType = "signal:offer"
	TypeSignalAnswer  MessageType = "signal:answer"
	TypeSignalICE     MessageType = "signal:ice"
	TypeHostKick      MessageType = "host:kick"
	TypeHostBan       MessageType = "host:ban"
	TypeHostEnd       MessageType = "host:end"

	TypePresenceRoster MessageType = "presence:roster"
	TypePresenceJoined MessageType = "presence:joined"
	TypePresenceLeft   MessageType = "presence:left"
	TypeHostKicked     MessageType = "host:kicked"
	TypeHostBanned     MessageType = "host:banned"
	TypeHostEnded      MessageType = "host:ended"
	TypeError          MessageType = "error"
)

// Stable error codes surfaced to clients.
const (
	CodeAuthFailed       = "AUTH_FAILED"
	CodeMeetingNotLive   = "MEETING_NOT_LIVE"
	CodeBanned           = "BANNED"
	CodeAlreadyConnected = "ALREADY_CONNECTED"
	CodeTargetNotFound   = "TARGET_NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeRelayError       = "RELAY_ERROR"
	CodeForbidden        = "FORBIDDEN"
	CodeKickError        = "KICK_ERROR"
	CodeBanError         = "BAN_ERROR"
	CodeEndError         = "END_ERROR"
)

// ClientMessage is the envelope for everything a client may send after
// admission.
type ClientMessage struct {
	Type           MessageType     `json:"type"`
	TargetPersonID string          `json:"targetPersonId,omitempty"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
}

// Parse decodes and validates one client message. Unknown fields,
// trailing data and per-type shape violations are all rejected.
func Parse(data []byte) (ClientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg ClientMessage
	if err := dec.Decode(&msg); err != nil {
		return ClientMessage{}, fmt.Errorf("bad message: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ClientMessage{}, fmt.Errorf("bad message: trailing data")
	}
	if err := msg.validate(); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

func (m ClientMessage) validate() error {
	switch m.Type {
	case TypePresenceJoin, TypePresenceLeave, TypeHostEnd:
		if m.TargetPersonID != "" || m.Offer != nil || m.Answer != nil || m.Candidate != nil {
			return fmt.Errorf("%s message has unexpected fields", m.Type)
		}
	case TypeSignalOffer:
		if m.TargetPersonID == "" || m.Offer == nil {
			return fmt.Errorf("offer message missing targetPersonId/offer")
		}
		if m.Answer != nil || m.Candidate != nil {
			return fmt.Errorf("offer message has unexpected fields")
		}
	case TypeSignalAnswer:
		if m.TargetPersonID == "" || m.Answer == nil {
			return fmt.Errorf("answer message missing targetPersonId/answer")
		}
		if m.Offer != nil || m.Candidate != nil {
			return fmt.Errorf("answer message has unexpected fields")
		}
	case TypeSignalICE:
		if m.TargetPersonID == "" || m.Candidate == nil {
			return fmt.Errorf("ice message missing targetPersonId/candidate")
		}
		if m.Offer != nil || m.Answer != nil {
			return fmt.Errorf("ice message has unexpected fields")
		}
	case TypeHostKick, TypeHostBan:
		if m.TargetPersonID == "" {
			return fmt.Errorf("%s message missing targetPersonId", m.Type)
		}
		if m.Offer != nil || m.Answer != nil || m.Candidate != nil {
			return fmt.Errorf("%s message has unexpected fields", m.Type)
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

// SignalPayload returns the opaque payload matching the message kind.
func (m ClientMessage) SignalPayload() json.RawMessage {
	switch m.Type {
	case TypeSignalOffer:
		return m.Offer
	case TypeSignalAnswer:
		return m.Answer
	case TypeSignalICE:
		return m.Candidate
	default:
		return nil
	}
}

// RosterEntry is the client-visible view of an admitted member.
type RosterEntry struct {
	PersonID     string `json:"personId"`
	DisplayName  string `json:"displayName"`
	Role         string `json:"role"`
	ConnectionID string `json:"connectionId"`
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All server frame types marshal cleanly; this is a programming error.
		panic(fmt.Sprintf("protocol: marshal: %v", err))
	}
	return b
}

func Roster(members []RosterEntry) []byte {
	return mustMarshal(struct {
		Type    MessageType   `json:"type"`
		Members []RosterEntry `json:"members"`
	}{TypePresenceRoster, members})
}

func Joined(entry RosterEntry) []byte {
	return mustMarshal(struct {
		Type MessageType `json:"type"`
		RosterEntry
	}{Type: TypePresenceJoined, RosterEntry: entry})
}

func Left(personID domain.PersonID, connectionID string) []byte {
	return mustMarshal(struct {
		Type         MessageType `json:"type"`
		PersonID     string      `json:"personId"`
		ConnectionID string      `json:"connectionId"`
	}{TypePresenceLeft, string(personID), connectionID})
}

// Signal builds a relayed frame tagged with the sender's identity. The
// payload is embedded verbatim under the kind's field name.
func Signal(kind MessageType, fromPersonID domain.PersonID, payload json.RawMessage) []byte {
	frame := map[string]json.RawMessage{
		"type":         mustMarshal(kind),
		"fromPersonId": mustMarshal(string(fromPersonID)),
	}
	switch kind {
	case TypeSignalOffer:
		frame["offer"] = payload
	case TypeSignalAnswer:
		frame["answer"] = payload
	case TypeSignalICE:
		frame["candidate"] = payload
	}
	return mustMarshal(frame)
}

func Kicked(target domain.PersonID, reason string) []byte {
	return mustMarshal(struct {
		Type           MessageType `json:"type"`
		TargetPersonID string      `json:"targetPersonId"`
		Reason         string      `json:"reason"`
	}{TypeHostKicked, string(target), reason})
}

func Banned(target domain.PersonID, reason string) []byte {
	return mustMarshal(struct {
		Type           MessageType `json:"type"`
		TargetPersonID string      `json:"targetPersonId"`
		Reason         string      `json:"reason"`
	}{TypeHostBanned, string(target), reason})
}

func Ended(reason string) []byte {
	return mustMarshal(struct {
		Type   MessageType `json:"type"`
		Reason string      `json:"reason"`
	}{TypeHostEnded, reason})
}

func Error(code, message string) []byte {
	return mustMarshal(struct {
		Type    MessageType `json:"type"`
		Code    string      `json:"code"`
		Message string      `json:"message"`
	}{TypeError, code, message})
}
