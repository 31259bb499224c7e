// Package room owns the in-memory membership state of live meetings.
// Each meeting gets one actor goroutine; all mutations for a meeting are
// serialized through it, while different meetings never block each other.
// The actor performs no store I/O and no network writes beyond
// non-blocking enqueues into member send buffers.
package room

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/domain"
)

type ConnID string

// Sender is an admitted member's transport endpoint. Frames are
// pre-encoded by the caller and opaque here. TrySend must never block;
// Kill force-closes the underlying socket without waiting for
// acknowledgment.
type Sender interface {
	TrySend(frame []byte) error
	Kill()
}

// Member is the live connected-member entry. Exactly one exists per
// (meeting, person) at a time; a second connection for the same person
// is rejected with domain.ErrAlreadyConnected.
type Member struct {
	ConnID      ConnID
	PersonID    domain.PersonID
	DisplayName string
	Role        domain.Role
	JoinedAt    time.Time // carries a monotonic reading
	Sender      Sender
}

// MemberInfo is a read-only snapshot without the transport handle.
type MemberInfo struct {
	ConnID      ConnID
	PersonID    domain.PersonID
	DisplayName string
	Role        domain.Role
}

func (m *Member) info() MemberInfo {
	return MemberInfo{
		ConnID:      m.ConnID,
		PersonID:    m.PersonID,
		DisplayName: m.DisplayName,
		Role:        m.Role,
	}
}

// Room is the handle to one meeting's actor. Methods are safe to call
// from any goroutine; each one runs as a single command in the actor.
type Room struct {
	meetingID domain.MeetingID
	cmds      chan func()
	done      chan struct{}

	// actor-owned state, touched only inside commands
	members   map[domain.PersonID]*Member
	joinOrder []domain.PersonID
}

func newRoom(meetingID domain.MeetingID) *Room {
	r := &Room{
		meetingID: meetingID,
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		members:   make(map[domain.PersonID]*Member),
	}
	go r.run()
	return r
}

func (r *Room) MeetingID() domain.MeetingID { return r.meetingID }

func (r *Room) run() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
			select {
			case <-r.done:
				r.drain()
				return
			default:
			}
		case <-r.done:
			r.drain()
			return
		}
	}
}

// drain unblocks callers that won the race into cmds after close.
func (r *Room) drain() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		default:
			return
		}
	}
}

// do runs fn in the actor and waits for it to complete. Returns false
// when the room is closed before the command could be accepted.
func (r *Room) do(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	ran := make(chan struct{})
	wrapped := func() {
		fn()
		close(ran)
	}
	select {
	case r.cmds <- wrapped:
		// The actor executes every accepted command, in run or in drain.
		<-ran
		return true
	case <-r.done:
		return false
	}
}

// Closed reports whether the actor has shut down (meeting ended).
func (r *Room) Closed() bool { return r.closed() }

func (r *Room) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Admit adds the member, enqueues the pre-encoded joined frame to every
// existing member and replies to the new member with the frame built by
// roster. Announcement and mutation run in one actor command, so every
// observer's send queue sees admissions and departures in the exact
// order the actor applied them. A nil joined or roster skips that
// delivery.
func (r *Room) Admit(m *Member, joined []byte, roster func([]MemberInfo) []byte) error {
	var err error
	ok := r.do(func() {
		if r.closed() {
			err = domain.ErrMeetingNotLive
			return
		}
		if _, exists := r.members[m.PersonID]; exists {
			err = domain.ErrAlreadyConnected
			return
		}
		r.members[m.PersonID] = m
		r.joinOrder = append(r.joinOrder, m.PersonID)
		entries := make([]MemberInfo, 0, len(r.members)-1)
		for _, pid := range r.joinOrder {
			if pid == m.PersonID {
				continue
			}
			member := r.members[pid]
			entries = append(entries, member.info())
			if joined != nil {
				_ = member.Sender.TrySend(joined)
			}
		}
		if roster != nil {
			_ = m.Sender.TrySend(roster(entries))
		}
		log.Info().Str("module", "room").
			Str("meeting", string(r.meetingID)).
			Str("person", string(m.PersonID)).
			Str("conn", string(m.ConnID)).
			Msg("member admitted")
	})
	if !ok {
		return domain.ErrMeetingNotLive
	}
	return err
}

// Remove deletes the member for personID and enqueues the frame built by
// left to every remaining member in the same actor command, so no
// observer can be told about a departure before the matching admission.
// The removed entry is returned exactly once across all callers. A nil
// left skips the broadcast.
func (r *Room) Remove(personID domain.PersonID, left func(removed MemberInfo) []byte) (removed *Member, ok bool) {
	r.do(func() {
		m, exists := r.members[personID]
		if !exists {
			return
		}
		delete(r.members, personID)
		for i, pid := range r.joinOrder {
			if pid == personID {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}
		removed = m
		ok = true
		if left != nil {
			frame := left(m.info())
			for _, pid := range r.joinOrder {
				_ = r.members[pid].Sender.TrySend(frame)
			}
		}
		log.Info().Str("module", "room").
			Str("meeting", string(r.meetingID)).
			Str("person", string(personID)).
			Msg("member removed")
	})
	return removed, ok
}

// Relay enqueues the frame to the member currently admitted as
// toPersonID. Lookup and delivery run in one actor command, so at most
// that one member receives it, and only while admitted.
func (r *Room) Relay(toPersonID domain.PersonID, frame []byte) error {
	var err error
	ok := r.do(func() {
		if r.closed() {
			err = domain.ErrMeetingNotLive
			return
		}
		target, exists := r.members[toPersonID]
		if !exists {
			err = domain.ErrTargetNotFound
			return
		}
		if sendErr := target.Sender.TrySend(frame); sendErr != nil {
			log.Warn().Str("module", "room").
				Str("meeting", string(r.meetingID)).
				Str("to", string(toPersonID)).
				Err(sendErr).
				Msg("relay dropped on backpressure")
		}
	})
	if !ok {
		return domain.ErrMeetingNotLive
	}
	return err
}

// Find returns the snapshot of the member admitted as personID.
func (r *Room) Find(personID domain.PersonID) (MemberInfo, bool) {
	var (
		info  MemberInfo
		found bool
	)
	r.do(func() {
		if m, exists := r.members[personID]; exists {
			info = m.info()
			found = true
		}
	})
	return info, found
}

// Members returns the roster in join order.
func (r *Room) Members() []MemberInfo {
	var out []MemberInfo
	r.do(func() {
		out = make([]MemberInfo, 0, len(r.members))
		for _, pid := range r.joinOrder {
			out = append(out, r.members[pid].info())
		}
	})
	return out
}

func (r *Room) Len() int {
	n := 0
	r.do(func() { n = len(r.members) })
	return n
}

// Close shuts the actor down and hands back every remaining member,
// each exactly once. Subsequent calls return nil.
func (r *Room) Close() []*Member {
	var members []*Member
	ok := r.do(func() {
		members = make([]*Member, 0, len(r.members))
		for _, pid := range r.joinOrder {
			members = append(members, r.members[pid])
		}
		r.members = make(map[domain.PersonID]*Member)
		r.joinOrder = nil
		close(r.done)
	})
	if !ok {
		return nil
	}
	log.Info().Str("module", "room").
		Str("meeting", string(r.meetingID)).
		Int("members", len(members)).
		Msg("room closed")
	return members
}
