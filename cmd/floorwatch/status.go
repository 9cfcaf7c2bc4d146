package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/status"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <agent-id>",
		Short: "Show an agent's presence and daily totals",
		Long:  "Prints the agent's current status if a session is open, and the per-status seconds accumulated today including the live slice.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath, agentID string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	snap, err := ledger.New(gormDB).DailyTotals(agentID, time.Now())
	if err != nil {
		return err
	}

	if snap.Live {
		label := snap.Status
		if s, err := status.Lookup(snap.Status); err == nil {
			label = s.Label
		}
		fmt.Fprintf(out, "%s is online: %s", agentID, label)
		if snap.Since != nil {
			fmt.Fprintf(out, " (since %s)", snap.Since.Format("15:04:05"))
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintf(out, "%s is offline\n", agentID)
	}

	printTotals(cmd, snap.Totals)
	return nil
}

// printTotals writes per-status seconds in catalogue display order, with
// unknown codes sorted after.
func printTotals(cmd *cobra.Command, totals map[string]int64) {
	out := cmd.OutOrStdout()
	if len(totals) == 0 {
		fmt.Fprintln(out, "No time recorded.")
		return
	}

	seen := make(map[string]bool, len(totals))
	for _, code := range status.Codes() {
		if secs, ok := totals[code]; ok {
			seen[code] = true
			s, _ := status.Lookup(code)
			fmt.Fprintf(out, "  %-12s %s\n", s.Label, formatSeconds(secs))
		}
	}

	var rest []string
	for code := range totals {
		if !seen[code] {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	for _, code := range rest {
		fmt.Fprintf(out, "  %-12s %s\n", code, formatSeconds(totals[code]))
	}
}

// formatSeconds renders seconds as "2h15m30s".
func formatSeconds(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
