package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dialflow/floorwatch/internal/api"
	"github.com/dialflow/floorwatch/internal/channel"
	"github.com/dialflow/floorwatch/internal/config"
	"github.com/dialflow/floorwatch/internal/db"
	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/monitor"
	"github.com/dialflow/floorwatch/internal/notify"
	"github.com/dialflow/floorwatch/internal/notify/discord"
	"github.com/dialflow/floorwatch/internal/notify/slack"
	"github.com/dialflow/floorwatch/internal/report"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the presence server",
		Long:  "Starts the websocket channel, the read API, the liveness monitor, and the digest scheduler in one process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "floorwatch.yaml", "path to Floorwatch config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.ListenPort
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedStatusCatalog(gormDB); err != nil {
		return err
	}

	notifier, closeAdapters, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeAdapters()

	heartbeats := heartbeat.NewStore()
	sessions := ledger.New(gormDB)
	hub := channel.NewHub(heartbeats, sessions, notifier)

	mon, err := monitor.New(heartbeats, hub, cfg.Presence.LivenessTimeout(), cfg.Presence.MonitorTick())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	go mon.Run(ctx, out)

	if cfg.Digest.Enabled {
		sched, err := report.NewScheduler(gormDB, notifier, cfg.Digest.Cron)
		if err != nil {
			return err
		}
		go sched.Run(ctx, out)
	}

	return api.Start(ctx, api.StartOpts{
		Hub:        hub,
		Ledger:     sessions,
		Heartbeats: heartbeats,
		Port:       port,
		Out:        out,
	})
}

// buildNotifier assembles the supervisor alert fan-out from whichever
// platforms the config enables. The returned func closes all adapters.
func buildNotifier(cfg *config.Config) (*notify.Notifier, func(), error) {
	var adapters []notify.Adapter

	if cfg.Notify.Slack.Token != "" {
		a, err := slack.New(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel)
		if err != nil {
			return nil, nil, fmt.Errorf("slack adapter: %w", err)
		}
		adapters = append(adapters, a)
	}
	if cfg.Notify.Discord.Token != "" {
		a, err := discord.New(cfg.Notify.Discord.Token, cfg.Notify.Discord.Channel)
		if err != nil {
			return nil, nil, fmt.Errorf("discord adapter: %w", err)
		}
		adapters = append(adapters, a)
	}

	closeAll := func() {
		for _, a := range adapters {
			a.Close()
		}
	}
	return notify.New(adapters...), closeAll, nil
}
