package main

import (
	"strings"
	"testing"

	"github.com/dialflow/floorwatch/internal/config"
)

func TestServeCmd_Help(t *testing.T) {
	out, err := runCommand(t, "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help failed: %v", err)
	}
	if !strings.Contains(out, "liveness monitor") {
		t.Errorf("expected help to mention the liveness monitor, got: %s", out)
	}
	if !strings.Contains(out, "--port") || !strings.Contains(out, "--config") {
		t.Errorf("expected help to mention flags, got: %s", out)
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	_, err := runCommand(t, "serve", "--config", "/nonexistent/floorwatch.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestBuildNotifier_NoPlatforms(t *testing.T) {
	cfg := &config.Config{}
	notifier, closeAll, err := buildNotifier(cfg)
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	defer closeAll()
	if notifier == nil {
		t.Fatal("expected a notifier even with no platforms configured")
	}
}

func TestBuildNotifier_Discord(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Discord.Token = "test-token"
	cfg.Notify.Discord.Channel = "123456"

	notifier, closeAll, err := buildNotifier(cfg)
	if err != nil {
		t.Fatalf("buildNotifier: %v", err)
	}
	defer closeAll()
	if notifier == nil {
		t.Fatal("expected a notifier")
	}
}
