package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/crewdesk/meetlive/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id            TEXT PRIMARY KEY,
	room_code     TEXT NOT NULL,
	host_id       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'SCHEDULED',
	is_persistent INTEGER NOT NULL DEFAULT 0,
	password_hash TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS participants (
	meeting_id TEXT NOT NULL,
	person_id  TEXT NOT NULL,
	role       TEXT NOT NULL,
	banned     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (meeting_id, person_id)
);
CREATE TABLE IF NOT EXISTS attendance (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id TEXT NOT NULL,
	person_id  TEXT NOT NULL,
	joined_at  TIMESTAMP NOT NULL,
	left_at    TIMESTAMP NOT NULL,
	seconds    INTEGER NOT NULL
);
`

// SQLiteStore is the default MeetingStore backed by the shared sqlite
// database the meeting-management service writes meeting metadata to.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateMeeting inserts a meeting row. Creation belongs to the meeting
// management service; this helper exists for local setups and tests.
func (s *SQLiteStore) CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	if m.ID == "" {
		m.ID = domain.MeetingID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.New(rand.NewSource(time.Now().UnixNano()))).String())
	}
	if m.Status == "" {
		m.Status = domain.StatusScheduled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, room_code, host_id, status, is_persistent, password_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID), string(m.RoomCode), string(m.HostID), string(m.Status), m.IsPersistent, m.PasswordHash)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("failed to insert meeting %q: %w", m.ID, err)
	}
	return m, nil
}

func (s *SQLiteStore) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var m domain.Meeting
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, room_code, host_id, status, is_persistent, password_hash FROM meetings WHERE id = ?`,
		string(id)).Scan(&m.ID, &m.RoomCode, &m.HostID, &status, &m.IsPersistent, &m.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, domain.ErrMeetingNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("error querying meeting %q: %w", id, err)
	}
	m.Status = domain.MeetingStatus(status)
	return m, nil
}

func (s *SQLiteStore) StartMeeting(ctx context.Context, id domain.MeetingID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ? WHERE id = ? AND status IN (?, ?)`,
		string(domain.StatusLive), string(id), string(domain.StatusScheduled), string(domain.StatusLive))
	if err != nil {
		return fmt.Errorf("failed to start meeting %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to start meeting %q: %w", id, err)
	}
	if n == 0 {
		if _, err := s.GetMeeting(ctx, id); err != nil {
			return err
		}
		return domain.ErrMeetingNotLive
	}
	return nil
}

func (s *SQLiteStore) EndMeeting(ctx context.Context, id domain.MeetingID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ? WHERE id = ? AND status IN (?, ?)`,
		string(domain.StatusEnded), string(id), string(domain.StatusScheduled), string(domain.StatusLive))
	if err != nil {
		return false, fmt.Errorf("failed to end meeting %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to end meeting %q: %w", id, err)
	}
	if n > 0 {
		return false, nil
	}
	m, err := s.GetMeeting(ctx, id)
	if err != nil {
		return false, err
	}
	if m.Status == domain.StatusEnded {
		return true, nil
	}
	return false, domain.ErrMeetingNotLive
}

func (s *SQLiteStore) EnsureParticipant(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID, role domain.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (meeting_id, person_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (meeting_id, person_id) DO UPDATE SET role = excluded.role`,
		string(meetingID), string(personID), string(role))
	if err != nil {
		return fmt.Errorf("failed to ensure participant %q/%q: %w", meetingID, personID, err)
	}
	return nil
}

func (s *SQLiteStore) IsBanned(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(ctx,
		`SELECT banned FROM participants WHERE meeting_id = ? AND person_id = ?`,
		string(meetingID), string(personID)).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error querying ban flag %q/%q: %w", meetingID, personID, err)
	}
	return banned, nil
}

func (s *SQLiteStore) SetBanned(ctx context.Context, meetingID domain.MeetingID, personID domain.PersonID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (meeting_id, person_id, role, banned) VALUES (?, ?, ?, 1)
		 ON CONFLICT (meeting_id, person_id) DO UPDATE SET banned = 1`,
		string(meetingID), string(personID), string(domain.RoleParticipant))
	if err != nil {
		return fmt.Errorf("failed to set ban %q/%q: %w", meetingID, personID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordAttendance(ctx context.Context, iv domain.AttendanceInterval) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (meeting_id, person_id, joined_at, left_at, seconds) VALUES (?, ?, ?, ?, ?)`,
		string(iv.MeetingID), string(iv.PersonID), iv.JoinedAt, iv.LeftAt, iv.Seconds)
	if err != nil {
		return fmt.Errorf("failed to record attendance %q/%q: %w", iv.MeetingID, iv.PersonID, err)
	}
	return nil
}
