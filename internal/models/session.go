package models

import "time"

// AgentSession represents one connected interval for one agent. At most one
// session per agent is open (ended_at NULL) at any time; the ledger enforces
// this inside a transaction.
type AgentSession struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	AgentID string `gorm:"size:64;not null;index:idx_agent_open"`
	Status  string `gorm:"size:32;not null"`

	StartedAt time.Time
	EndedAt   *time.Time `gorm:"index:idx_agent_open"`
	EndReason string     `gorm:"size:16"` // logout, superseded, inactivity, forced

	// SliceStartedAt is the start of the in-progress time slice for the
	// current status. Cleared when the slice is closed, which makes a
	// repeated close with the same timestamp a no-op.
	SliceStartedAt *time.Time

	Slices []StatusSlice `gorm:"foreignKey:SessionID"`
}

// Open reports whether the session has not been ended.
func (s *AgentSession) Open() bool {
	return s.EndedAt == nil
}

// StatusSlice is one closed span of time an agent spent in a single status.
// Seconds is always non-negative; negative deltas from clock skew are
// clamped to zero before the row is written.
type StatusSlice struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID uint   `gorm:"not null;index"`
	AgentID   string `gorm:"size:64;not null;index:idx_slice_agent_day"`
	Status    string `gorm:"size:32;not null"`
	Day       string `gorm:"size:10;not null;index:idx_slice_agent_day"` // YYYY-MM-DD of StartedAt
	StartedAt time.Time
	EndedAt   time.Time
	Seconds   int64
}
