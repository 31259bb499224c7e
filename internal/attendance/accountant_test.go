package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/crewdesk/meetlive/internal/store"
)

func TestFinalize_ElapsedSeconds(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAccountant(st)

	joined := time.Unix(1_700_000_000, 0)
	a.now = func() time.Time { return joined.Add(125 * time.Second) }

	a.Finalize(context.Background(), "m1", "p1", joined)

	rows := st.Attendance()
	if len(rows) != 1 {
		t.Fatalf("expected one interval, got %d", len(rows))
	}
	if rows[0].Seconds != 125 {
		t.Fatalf("seconds = %d, want 125", rows[0].Seconds)
	}
	if rows[0].LeftAt.Before(rows[0].JoinedAt) {
		t.Fatalf("leftAt before joinedAt")
	}
}

func TestFinalize_ClampsNegativeElapsed(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAccountant(st)

	joined := time.Unix(1_700_000_000, 0)
	a.now = func() time.Time { return joined.Add(-time.Minute) }

	a.Finalize(context.Background(), "m1", "p1", joined)

	rows := st.Attendance()
	if len(rows) != 1 || rows[0].Seconds != 0 {
		t.Fatalf("expected clamped zero interval, got %+v", rows)
	}
}

func TestFinalize_TwoAdmissionsTwoIntervals(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAccountant(st)

	base := time.Unix(1_700_000_000, 0)
	a.now = func() time.Time { return base.Add(10 * time.Second) }
	a.Finalize(context.Background(), "m1", "p1", base)
	a.now = func() time.Time { return base.Add(40 * time.Second) }
	a.Finalize(context.Background(), "m1", "p1", base.Add(20*time.Second))

	rows := st.Attendance()
	if len(rows) != 2 {
		t.Fatalf("expected two independent intervals, got %d", len(rows))
	}
	if rows[0].Seconds != 10 || rows[1].Seconds != 20 {
		t.Fatalf("seconds = %d, %d", rows[0].Seconds, rows[1].Seconds)
	}
}
