package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialflow/floorwatch/internal/ledger"
)

func newTotalsCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
	)

	cmd := &cobra.Command{
		Use:   "totals <agent-id>",
		Short: "Show an agent's per-status totals over a date range",
		Long:  "Sums closed slices per status over the given range (inclusive). If today falls inside the range and a session is open, the live slice is included.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTotals(cmd, configPath, args[0], from, to)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	cmd.Flags().StringVar(&from, "from", "", "start date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "end date, YYYY-MM-DD (default: today)")
	return cmd
}

func runTotals(cmd *cobra.Command, configPath, agentID, from, to string) error {
	out := cmd.OutOrStdout()

	now := time.Now()
	fromT, err := parseDay(from, now)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	toT, err := parseDay(to, now)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}
	if toT.Before(fromT) {
		return fmt.Errorf("--to %s is before --from %s", ledger.DayOf(toT), ledger.DayOf(fromT))
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	totals, err := ledger.New(gormDB).RangeTotals(agentID, fromT, toT, now)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s from %s to %s:\n", agentID, ledger.DayOf(fromT), ledger.DayOf(toT))
	printTotals(cmd, totals)
	return nil
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", s)
}
