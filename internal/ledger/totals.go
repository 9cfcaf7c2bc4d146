package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/dialflow/floorwatch/internal/models"
)

// Snapshot is the per-status accumulated seconds for one agent on one day,
// combined with the live state of any open session. It is always recomputed
// from slice rows plus "now"; nothing stores it.
type Snapshot struct {
	AgentID string           `json:"agent_id"`
	Day     string           `json:"day"`
	Totals  map[string]int64 `json:"totals"` // status code -> seconds
	Live    bool             `json:"live"`
	Status  string           `json:"status,omitempty"`
	Since   *time.Time       `json:"since,omitempty"` // start of the live slice
}

// DailyTotals returns the per-status seconds for the agent on the calendar
// day of `now`. If a session is open, the in-progress slice is included
// computed against `now` at call time, so the result grows with wall-clock
// time without any writes.
func (l *Ledger) DailyTotals(agentID string, now time.Time) (*Snapshot, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	if agentID == "" {
		return nil, fmt.Errorf("ledger: agentID is required")
	}

	day := DayOf(now)
	totals, err := l.sliceTotals(agentID, day, day)
	if err != nil {
		return nil, fmt.Errorf("ledger: daily totals %s: %w", agentID, err)
	}

	snap := &Snapshot{AgentID: agentID, Day: day, Totals: totals}

	session, err := l.OpenSession(agentID)
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return snap, nil
		}
		return nil, err
	}

	snap.Live = true
	snap.Status = session.Status
	snap.Since = session.SliceStartedAt
	if session.SliceStartedAt != nil && DayOf(*session.SliceStartedAt) == day {
		snap.Totals[session.Status] += clampSeconds(agentID, *session.SliceStartedAt, now)
	}
	return snap, nil
}

// RangeTotals returns per-status seconds from closed slices whose day falls
// in [from, to] inclusive. The live slice of an open session is included
// only when today is inside the range.
func (l *Ledger) RangeTotals(agentID string, from, to time.Time, now time.Time) (map[string]int64, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	if agentID == "" {
		return nil, fmt.Errorf("ledger: agentID is required")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("ledger: range totals: to %s before from %s", DayOf(to), DayOf(from))
	}

	totals, err := l.sliceTotals(agentID, DayOf(from), DayOf(to))
	if err != nil {
		return nil, fmt.Errorf("ledger: range totals %s: %w", agentID, err)
	}

	today := DayOf(now)
	if DayOf(from) <= today && today <= DayOf(to) {
		session, err := l.OpenSession(agentID)
		if err == nil && session.SliceStartedAt != nil && DayOf(*session.SliceStartedAt) == today {
			totals[session.Status] += clampSeconds(agentID, *session.SliceStartedAt, now)
		} else if err != nil && !errors.Is(err, ErrNoOpenSession) {
			return nil, err
		}
	}
	return totals, nil
}

// sliceTotals sums closed slice seconds per status for days in [fromDay, toDay].
func (l *Ledger) sliceTotals(agentID, fromDay, toDay string) (map[string]int64, error) {
	type row struct {
		Status  string
		Seconds int64
	}
	var rows []row
	err := l.db.Model(&models.StatusSlice{}).
		Select("status, SUM(seconds) AS seconds").
		Where("agent_id = ? AND day >= ? AND day <= ?", agentID, fromDay, toDay).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum slices: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.Status] = r.Seconds
	}
	return totals, nil
}

// OnlineAgents returns the open sessions for all agents, newest first.
// Used by the roster view together with the heartbeat store.
func (l *Ledger) OnlineAgents() ([]models.AgentSession, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	var sessions []models.AgentSession
	if err := l.db.Where("ended_at IS NULL").
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("ledger: online agents: %w", err)
	}
	return sessions, nil
}
