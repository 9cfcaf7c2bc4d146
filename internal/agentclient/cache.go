package agentclient

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Cache is the locally persisted timer state, restored across restarts of
// the agent app. It exists only for display responsiveness; any
// server-confirmed snapshot replaces it wholesale.
type Cache struct {
	AgentID string           `json:"agent_id"`
	Day     string           `json:"day"`
	Status  string           `json:"status"`
	Buckets map[string]int64 `json:"buckets"` // status code -> seconds
	SavedAt time.Time        `json:"saved_at"`
}

// loadCache reads the cache file. A missing file yields (nil, nil); a cache
// for another agent or another calendar day is discarded the same way,
// since stale timers are worse than empty ones.
func loadCache(path, agentID string, now time.Time) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("agentclient: read cache %s: %w", path, err)
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("agentclient: parse cache %s: %w", path, err)
	}
	if c.AgentID != agentID || c.Day != now.Format("2006-01-02") {
		return nil, nil
	}
	if c.Buckets == nil {
		c.Buckets = make(map[string]int64)
	}
	return &c, nil
}

// saveCache writes the cache file atomically via a rename.
func saveCache(path string, c *Cache) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("agentclient: marshal cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("agentclient: write cache %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("agentclient: rename cache: %w", err)
	}
	return nil
}

// clearCache removes the cache file. Missing files are fine.
func clearCache(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("agentclient: clear cache %s: %w", path, err)
	}
	return nil
}
