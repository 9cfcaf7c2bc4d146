// Package report builds scheduled floor summaries from the session ledger
// and delivers them through the notifier.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/models"
	"github.com/dialflow/floorwatch/internal/notify"
	"github.com/dialflow/floorwatch/internal/status"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DailyReport holds the per-status floor totals for one calendar day.
type DailyReport struct {
	Day         string
	AgentCount  int64
	PerStatus   map[string]int64
	PerCategory map[status.Category]int64
}

// BuildDaily sums the closed slices of every agent for the given day.
// Returns nil when there was no activity, so quiet days send nothing.
func BuildDaily(db *gorm.DB, day string) (*DailyReport, error) {
	if db == nil {
		return nil, fmt.Errorf("report: db is required")
	}

	type row struct {
		Status  string
		Seconds int64
	}
	var rows []row
	if err := db.Model(&models.StatusSlice{}).
		Select("status, SUM(seconds) AS seconds").
		Where("day = ?", day).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report: sum slices for %s: %w", day, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var agentCount int64
	if err := db.Model(&models.StatusSlice{}).
		Where("day = ?", day).
		Distinct("agent_id").
		Count(&agentCount).Error; err != nil {
		return nil, fmt.Errorf("report: count agents for %s: %w", day, err)
	}

	report := &DailyReport{
		Day:         day,
		AgentCount:  agentCount,
		PerStatus:   make(map[string]int64, len(rows)),
		PerCategory: make(map[status.Category]int64),
	}
	for _, r := range rows {
		report.PerStatus[r.Status] = r.Seconds
		report.PerCategory[status.CategoryOf(r.Status)] += r.Seconds
	}
	return report, nil
}

// Format renders the report as a supervisor alert.
func Format(r *DailyReport) notify.Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%d agents tracked.\n", r.AgentCount)
	fmt.Fprintf(&b, "Working %s, break %s, unavailable %s.\n",
		formatDuration(r.PerCategory[status.CategoryWorking]),
		formatDuration(r.PerCategory[status.CategoryBreak]),
		formatDuration(r.PerCategory[status.CategoryUnavailable]))

	codes := make([]string, 0, len(r.PerStatus))
	for code := range r.PerStatus {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		label := code
		if s, err := status.Lookup(code); err == nil {
			label = s.Label
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, formatDuration(r.PerStatus[code]))
	}

	return notify.Alert{
		Title:     fmt.Sprintf("Floor summary for %s", r.Day),
		Body:      b.String(),
		Severity:  notify.SeverityInfo,
		Timestamp: time.Now(),
	}
}

// formatDuration renders seconds as "7h32m".
func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

// Scheduler fires the daily digest on a cron schedule.
type Scheduler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	schedule cron.Schedule
	expr     string
}

// NewScheduler validates the cron expression up front.
func NewScheduler(db *gorm.DB, notifier *notify.Notifier, cronExpr string) (*Scheduler, error) {
	if db == nil {
		return nil, fmt.Errorf("report: db is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("report: notifier is required")
	}
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("report: parse cron %q: %w", cronExpr, err)
	}
	return &Scheduler{db: db, notifier: notifier, schedule: sched, expr: cronExpr}, nil
}

// Run blocks until ctx is cancelled, sending a digest at each fire time.
func (s *Scheduler) Run(ctx context.Context, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "Digest scheduler running (%s)...\n", s.expr)

	for {
		next := s.schedule.Next(time.Now())
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "Digest scheduler stopped.\n")
			return nil
		case <-time.After(time.Until(next)):
			day := ledger.DayOf(time.Now())
			report, err := BuildDaily(s.db, day)
			if err != nil {
				fmt.Fprintf(out, "Digest for %s failed: %v\n", day, err)
				continue
			}
			if report == nil {
				continue
			}
			s.notifier.Send(ctx, Format(report))
		}
	}
}
