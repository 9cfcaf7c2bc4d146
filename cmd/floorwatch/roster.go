package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/status"
)

func newRosterCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List agents with an open session",
		Long:  "Prints every agent currently online, their status, and when their session started. Newest sessions first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoster(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	return cmd
}

func runRoster(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sessions, err := ledger.New(gormDB).OnlineAgents()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No agents online.")
		return nil
	}

	fmt.Fprintf(out, "%d agents online:\n", len(sessions))
	for _, s := range sessions {
		label := s.Status
		if st, err := status.Lookup(s.Status); err == nil {
			label = st.Label
		}
		fmt.Fprintf(out, "  %-16s %-12s since %s\n", s.AgentID, label, s.StartedAt.Format("15:04:05"))
	}
	return nil
}
