package agentclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.json")
	now := time.Now()

	c := &Cache{
		AgentID: "agent-7",
		Day:     now.Format("2006-01-02"),
		Status:  "available",
		Buckets: map[string]int64{"available": 120},
		SavedAt: now,
	}
	if err := saveCache(path, c); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	got, err := loadCache(path, "agent-7", now)
	if err != nil {
		t.Fatalf("loadCache: %v", err)
	}
	if got == nil {
		t.Fatal("cache not restored")
	}
	if got.Buckets["available"] != 120 || got.Status != "available" {
		t.Errorf("cache = %+v", got)
	}
}

func TestLoadCache_Missing(t *testing.T) {
	got, err := loadCache(filepath.Join(t.TempDir(), "none.json"), "agent-7", time.Now())
	if err != nil || got != nil {
		t.Errorf("got %+v, %v; want nil, nil", got, err)
	}
}

func TestLoadCache_WrongAgentDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.json")
	now := time.Now()
	saveCache(path, &Cache{AgentID: "someone-else", Day: now.Format("2006-01-02")})

	got, err := loadCache(path, "agent-7", now)
	if err != nil || got != nil {
		t.Errorf("got %+v, %v; want nil, nil", got, err)
	}
}

func TestLoadCache_StaleDayDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.json")
	now := time.Now()
	saveCache(path, &Cache{
		AgentID: "agent-7",
		Day:     now.AddDate(0, 0, -1).Format("2006-01-02"),
		Buckets: map[string]int64{"available": 9999},
	})

	got, err := loadCache(path, "agent-7", now)
	if err != nil || got != nil {
		t.Errorf("yesterday's timers restored: %+v, %v", got, err)
	}
}

func TestLoadCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	if _, err := loadCache(path, "agent-7", time.Now()); err == nil {
		t.Fatal("expected error for corrupt cache")
	}
}

func TestClearCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.json")
	saveCache(path, &Cache{AgentID: "agent-7"})

	if err := clearCache(path); err != nil {
		t.Fatalf("clearCache: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cache file survived clear")
	}
	// Clearing again is fine.
	if err := clearCache(path); err != nil {
		t.Fatalf("second clearCache: %v", err)
	}
}
