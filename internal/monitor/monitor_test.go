package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
)

// fakeCloser mimics the hub's close path: on success it removes the
// heartbeat entry, on failure it leaves it for the next tick.
type fakeCloser struct {
	mu      sync.Mutex
	hb      *heartbeat.Store
	calls   []string
	reasons []string
	fail    bool
}

func (f *fakeCloser) Disconnect(agentID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, agentID)
	f.reasons = append(f.reasons, reason)
	if f.fail {
		return fmt.Errorf("persistence unavailable")
	}
	f.hb.Remove(agentID)
	return nil
}

func (f *fakeCloser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNew_Validation(t *testing.T) {
	hb := heartbeat.NewStore()
	if _, err := New(nil, &fakeCloser{hb: hb}, 0, 0); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(hb, nil, 0, 0); err == nil {
		t.Error("expected error for nil closer")
	}
	m, err := New(hb, &fakeCloser{hb: hb}, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.timeout != DefaultTimeout || m.tick != DefaultTick {
		t.Errorf("defaults not applied: timeout=%v tick=%v", m.timeout, m.tick)
	}
}

func TestSweep_ClosesStaleSession(t *testing.T) {
	hb := heartbeat.NewStore()
	closer := &fakeCloser{hb: hb}
	m, _ := New(hb, closer, 45*time.Second, time.Second)

	now := time.Now()
	hb.Mark("dead", now.Add(-2*time.Minute))
	hb.Mark("alive", now)

	m.sweep(now)

	if closer.callCount() != 1 {
		t.Fatalf("Disconnect calls = %d, want 1", closer.callCount())
	}
	if closer.calls[0] != "dead" || closer.reasons[0] != ledger.ReasonInactivity {
		t.Errorf("call = %s/%s, want dead/inactivity", closer.calls[0], closer.reasons[0])
	}
	if _, ok := hb.LastSeen("alive"); !ok {
		t.Error("live agent's entry removed")
	}
}

// Repeated ticks after a successful close must not close again: the close
// path removed the heartbeat entry.
func TestSweep_ClosesExactlyOnce(t *testing.T) {
	hb := heartbeat.NewStore()
	closer := &fakeCloser{hb: hb}
	m, _ := New(hb, closer, 45*time.Second, time.Second)

	now := time.Now()
	hb.Mark("dead", now.Add(-2*time.Minute))

	m.sweep(now)
	m.sweep(now.Add(time.Second))
	m.sweep(now.Add(2 * time.Second))

	if closer.callCount() != 1 {
		t.Errorf("Disconnect calls = %d, want 1", closer.callCount())
	}
}

// A heartbeat arriving between the stale scan and the close must win.
func TestSweep_LateHeartbeatWins(t *testing.T) {
	hb := heartbeat.NewStore()
	closer := &fakeCloser{hb: hb}
	m, _ := New(hb, closer, 45*time.Second, time.Second)

	now := time.Now()
	hb.Mark("agent-7", now.Add(-2*time.Minute))
	m.afterScan = func(agentID string) {
		hb.Mark(agentID, time.Now())
	}

	m.sweep(now)

	if closer.callCount() != 0 {
		t.Errorf("Disconnect calls = %d, want 0 (heartbeat wins)", closer.callCount())
	}
	if _, ok := hb.LastSeen("agent-7"); !ok {
		t.Error("refreshed entry removed")
	}
}

// When the ledger close fails, the entry stays so the next tick retries.
func TestSweep_FailedCloseRetriesNextTick(t *testing.T) {
	hb := heartbeat.NewStore()
	closer := &fakeCloser{hb: hb, fail: true}
	m, _ := New(hb, closer, 45*time.Second, time.Second)

	now := time.Now()
	hb.Mark("dead", now.Add(-2*time.Minute))

	m.sweep(now)
	if _, ok := hb.LastSeen("dead"); !ok {
		t.Fatal("entry removed despite failed close")
	}

	// Persistence recovers; the next tick succeeds.
	closer.fail = false
	m.sweep(now.Add(time.Second))

	if closer.callCount() != 2 {
		t.Errorf("Disconnect calls = %d, want 2", closer.callCount())
	}
	if _, ok := hb.LastSeen("dead"); ok {
		t.Error("entry survived successful close")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	hb := heartbeat.NewStore()
	closer := &fakeCloser{hb: hb}
	m, _ := New(hb, closer, 45*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, nil) }()

	hb.Mark("dead", time.Now().Add(-2*time.Minute))

	deadline := time.Now().Add(2 * time.Second)
	for closer.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	if closer.callCount() == 0 {
		t.Error("monitor never reclaimed the stale session")
	}
}
