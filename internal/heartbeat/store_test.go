package heartbeat

import (
	"sync"
	"testing"
	"time"
)

func TestMarkAndLastSeen(t *testing.T) {
	s := NewStore()
	now := time.Now()

	if _, ok := s.LastSeen("agent-1"); ok {
		t.Fatal("expected no entry before Mark")
	}

	s.Mark("agent-1", now)
	got, ok := s.LastSeen("agent-1")
	if !ok {
		t.Fatal("expected entry after Mark")
	}
	if !got.Equal(now) {
		t.Errorf("LastSeen = %v, want %v", got, now)
	}
}

func TestMark_OverwriteIsIdempotent(t *testing.T) {
	s := NewStore()
	t0 := time.Now()
	t1 := t0.Add(5 * time.Second)

	s.Mark("agent-1", t0)
	s.Mark("agent-1", t1)
	s.Mark("agent-1", t1)

	got, _ := s.LastSeen("agent-1")
	if !got.Equal(t1) {
		t.Errorf("LastSeen = %v, want %v", got, t1)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStaleBefore(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.Mark("fresh", now)
	s.Mark("stale", now.Add(-2*time.Minute))

	ids := s.StaleBefore(now.Add(-45 * time.Second))
	if len(ids) != 1 || ids[0] != "stale" {
		t.Errorf("StaleBefore = %v, want [stale]", ids)
	}
}

func TestStaleBefore_BoundaryIsNotStale(t *testing.T) {
	s := NewStore()
	cutoff := time.Now()
	s.Mark("edge", cutoff)

	if ids := s.StaleBefore(cutoff); len(ids) != 0 {
		t.Errorf("entry at exactly the cutoff reported stale: %v", ids)
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Mark("agent-1", time.Now())
	s.Remove("agent-1")
	if _, ok := s.LastSeen("agent-1"); ok {
		t.Fatal("expected entry removed")
	}
	// Removing again is a no-op.
	s.Remove("agent-1")
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Mark("agent-1", time.Now())

	snap := s.Snapshot()
	delete(snap, "agent-1")

	if _, ok := s.LastSeen("agent-1"); !ok {
		t.Fatal("mutating snapshot affected store")
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Mark("a", time.Now())
	s.Mark("b", time.Now())
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Mark("agent-1", time.Now())
				s.LastSeen("agent-1")
				s.StaleBefore(time.Now().Add(-time.Second))
			}
		}()
	}
	wg.Wait()
}
