// Package ledger is the durable bookkeeping layer for agent sessions and
// per-status time accounting. All writes go through the open/change/close
// operations here; readers treat an open session's live slice as correct up
// to the caller's "now".
package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dialflow/floorwatch/internal/models"
	"github.com/dialflow/floorwatch/internal/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors surfaced to the transport layer.
var (
	ErrInvalidStatus = errors.New("ledger: invalid status")
	ErrAlreadyOpen   = errors.New("ledger: session already open")
	ErrNoOpenSession = errors.New("ledger: no open session")
)

// End reasons recorded on closed sessions.
const (
	ReasonLogout     = "logout"
	ReasonSuperseded = "superseded"
	ReasonInactivity = "inactivity"
	ReasonForced     = "forced"
)

// Ledger wraps a GORM connection with the session accounting operations.
type Ledger struct {
	db *gorm.DB
}

// New returns a Ledger over db.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// DayOf formats t's calendar day as stored on slice rows.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// lockForUpdate adds FOR UPDATE to a query inside a transaction. Under
// MySQL's repeatable-read isolation a plain SELECT is a snapshot read, so
// two concurrent transactions would both act on the same stale session
// state. SQLite has no row-lock grammar; its single-writer model already
// serializes these transactions.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Open creates a new session for the agent in initialStatus. It fails with
// ErrAlreadyOpen if the agent already has an open session; callers sequence
// close-then-open, the ledger only enforces the invariant.
func (l *Ledger) Open(agentID, initialStatus string, at time.Time) (*models.AgentSession, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	if agentID == "" {
		return nil, fmt.Errorf("ledger: agentID is required")
	}
	if !status.Valid(initialStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, initialStatus)
	}

	var session *models.AgentSession
	err := l.db.Transaction(func(tx *gorm.DB) error {
		// Locking the scan takes next-key locks on the agent index, so a
		// second concurrent Open either sees this row or deadlocks and
		// rolls back; it can never insert a second open session.
		var existing models.AgentSession
		result := lockForUpdate(tx).Where("agent_id = ? AND ended_at IS NULL", agentID).First(&existing)
		if result.Error == nil {
			return fmt.Errorf("%w: agent %s session %d", ErrAlreadyOpen, agentID, existing.ID)
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check open session: %w", result.Error)
		}

		sliceStart := at
		session = &models.AgentSession{
			AgentID:        agentID,
			Status:         initialStatus,
			StartedAt:      at,
			SliceStartedAt: &sliceStart,
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: open %s: %w", agentID, err)
	}
	return session, nil
}

// OpenSession returns the agent's open session, or ErrNoOpenSession.
func (l *Ledger) OpenSession(agentID string) (*models.AgentSession, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	var session models.AgentSession
	result := l.db.Where("agent_id = ? AND ended_at IS NULL", agentID).First(&session)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: agent %s", ErrNoOpenSession, agentID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("ledger: find open session %s: %w", agentID, result.Error)
	}
	return &session, nil
}

// ChangeStatus closes the in-progress slice at `at` and starts a new slice
// in newStatus. Changing to the current status restarts the slice without
// losing the closed portion.
func (l *Ledger) ChangeStatus(agentID, newStatus string, at time.Time) (*models.AgentSession, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ledger: db is required")
	}
	if !status.Valid(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	var session *models.AgentSession
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = openSessionTx(tx, agentID)
		if err != nil {
			return err
		}
		if err := closeSliceTx(tx, session, at); err != nil {
			return err
		}

		sliceStart := at
		session.Status = newStatus
		session.SliceStartedAt = &sliceStart
		if err := tx.Model(&models.AgentSession{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":           newStatus,
				"slice_started_at": sliceStart,
			}).Error; err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: change status %s: %w", agentID, err)
	}
	return session, nil
}

// Close finalizes the agent's open session: the in-progress slice is closed
// at `at` and the session row gets its end timestamp and reason. Returns
// ErrNoOpenSession if nothing is open, which callers on the forced-close
// path treat as already done.
func (l *Ledger) Close(agentID string, at time.Time, reason string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("ledger: db is required")
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		session, err := openSessionTx(tx, agentID)
		if err != nil {
			return err
		}
		if err := closeSliceTx(tx, session, at); err != nil {
			return err
		}
		if err := tx.Model(&models.AgentSession{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"ended_at":         at,
				"end_reason":       reason,
				"slice_started_at": nil,
			}).Error; err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return err
		}
		return fmt.Errorf("ledger: close %s: %w", agentID, err)
	}
	return nil
}

// CloseCurrentSlice closes the in-progress slice at `at` without ending the
// session or starting a new slice. Calling it again with the same timestamp
// is a no-op: the slice start is cleared when the slice closes.
func (l *Ledger) CloseCurrentSlice(agentID string, at time.Time) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("ledger: db is required")
	}
	err := l.db.Transaction(func(tx *gorm.DB) error {
		session, err := openSessionTx(tx, agentID)
		if err != nil {
			return err
		}
		// The claim inside closeSliceTx clears slice_started_at.
		return closeSliceTx(tx, session, at)
	})
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return err
		}
		return fmt.Errorf("ledger: close slice %s: %w", agentID, err)
	}
	return nil
}

// openSessionTx finds the open session inside tx, holding its row lock
// until the transaction ends.
func openSessionTx(tx *gorm.DB, agentID string) (*models.AgentSession, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agentID is required")
	}
	var session models.AgentSession
	result := lockForUpdate(tx).Where("agent_id = ? AND ended_at IS NULL", agentID).First(&session)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: agent %s", ErrNoOpenSession, agentID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("find open session: %w", result.Error)
	}
	return &session, nil
}

// closeSliceTx writes a StatusSlice row for the session's in-progress slice
// ending at `at`. No-op when no slice is in progress. Zero-length slices are
// not recorded so a close-and-reopen at the same instant leaves no phantom
// row behind.
func closeSliceTx(tx *gorm.DB, session *models.AgentSession, at time.Time) error {
	if session.SliceStartedAt == nil {
		return nil
	}
	start := *session.SliceStartedAt

	// Claim the slice before recording it: only the writer that flips
	// slice_started_at off the value it read may create the row. A writer
	// holding a stale read of the same slice loses the claim and records
	// nothing, so one span is never counted twice.
	claim := tx.Model(&models.AgentSession{}).
		Where("id = ? AND ended_at IS NULL AND slice_started_at = ?", session.ID, start).
		Update("slice_started_at", nil)
	if claim.Error != nil {
		return fmt.Errorf("claim slice: %w", claim.Error)
	}
	session.SliceStartedAt = nil
	if claim.RowsAffected == 0 {
		return nil
	}

	seconds := clampSeconds(session.AgentID, start, at)
	if seconds == 0 {
		return nil
	}

	slice := models.StatusSlice{
		SessionID: session.ID,
		AgentID:   session.AgentID,
		Status:    session.Status,
		Day:       DayOf(start),
		StartedAt: start,
		EndedAt:   at,
		Seconds:   seconds,
	}
	if err := tx.Create(&slice).Error; err != nil {
		return fmt.Errorf("create slice: %w", err)
	}
	return nil
}

// clampSeconds returns the whole seconds between start and end, clamped to
// zero. A negative delta means client and server clocks disagree or a stale
// event arrived out of order; the anomaly is logged, never subtracted.
func clampSeconds(agentID string, start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		log.Printf("ledger: suspicious negative slice for agent %s (%s before %s), clamping to 0",
			agentID, end.Format(time.RFC3339), start.Format(time.RFC3339))
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}
