package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dialflow/floorwatch/internal/agentclient"
	"github.com/dialflow/floorwatch/internal/status"
)

func newAgentCmd() *cobra.Command {
	var (
		serverURL     string
		agentID       string
		initialStatus string
		cachePath     string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the presence agent for one identity",
		Long:  "Connects to the presence server, sends heartbeats, and keeps local per-status timers cached across restarts. Runs until interrupted or the server forces a disconnect.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, serverURL, agentID, initialStatus, cachePath)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "ws://127.0.0.1:8090", "presence server URL")
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "agent identity (required)")
	cmd.Flags().StringVar(&initialStatus, "status", status.Available, "initial status on connect")
	cmd.Flags().StringVar(&cachePath, "cache", "", "path to the local timer cache (default: ~/.floorwatch/<agent>.json)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runAgent(cmd *cobra.Command, serverURL, agentID, initialStatus, cachePath string) error {
	out := cmd.OutOrStdout()

	if cachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cachePath = filepath.Join(home, ".floorwatch", agentID+".json")
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	client, err := agentclient.New(agentclient.Options{
		ServerURL:     serverURL,
		AgentID:       agentID,
		InitialStatus: initialStatus,
		CachePath:     cachePath,
		OnForcedDisconnect: func(reason, message string) {
			fmt.Fprintf(out, "\nDisconnected by server (%s): %s\n", reason, message)
		},
	})
	if err != nil {
		return err
	}

	if err := client.Restore(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, logging out...\n", sig)
		cancel()
	}()

	fmt.Fprintf(out, "Connecting to %s as %s...\n", serverURL, agentID)
	if err := client.Run(ctx); err != nil {
		return err
	}

	printTotals(cmd, client.Totals())
	return nil
}
