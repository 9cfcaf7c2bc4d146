package main

import (
	"strings"
	"testing"
)

func TestDBInitCmd(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "db", "init", "--config", configPath)
	if err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	if !strings.Contains(out, "Migrated 3 tables") {
		t.Errorf("expected migration summary, got: %s", out)
	}
	if !strings.Contains(out, "available") || !strings.Contains(out, "lunch") {
		t.Errorf("expected seeded status codes in output, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success message, got: %s", out)
	}
}

func TestDBInitCmd_Twice(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, "db", "init", "--config", configPath); err != nil {
		t.Fatalf("first db init failed: %v", err)
	}
	// Seeding is an upsert, so a second init must not fail.
	if _, err := runCommand(t, "db", "init", "--config", configPath); err != nil {
		t.Fatalf("second db init failed: %v", err)
	}
}

func TestDBMigrateCmd(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "db", "migrate", "--config", configPath)
	if err != nil {
		t.Fatalf("db migrate failed: %v", err)
	}
	if !strings.Contains(out, "Migrated 3 tables") {
		t.Errorf("expected migration summary, got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCommand(t, "db", "init", "--config", "/nonexistent/floorwatch.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}
