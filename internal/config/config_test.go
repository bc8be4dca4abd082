package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3100" {
		t.Errorf("Port = %q, want 3100", cfg.Port)
	}
	if cfg.AppPort != "3000" {
		t.Errorf("AppPort = %q, want 3000", cfg.AppPort)
	}
	if cfg.DBPath != "./data/stagewise.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Agent.Command != "claude" {
		t.Errorf("Agent.Command = %q, want claude", cfg.Agent.Command)
	}
	if cfg.Agent.WorkingDir == "" {
		t.Error("Agent.WorkingDir should default to the current directory")
	}
	if cfg.Agent.AutoAccept {
		t.Error("Agent.AutoAccept should default to false")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STAGEWISE_PORT", "4000")
	t.Setenv("STAGEWISE_APP_PORT", "5173")
	t.Setenv("AGENT_COMMAND", "/usr/local/bin/claude")
	t.Setenv("AGENT_WORKSPACE", "/srv/project")
	t.Setenv("AGENT_AUTO_ACCEPT", "true")
	t.Setenv("AGENT_SYSTEM_PROMPT_SUFFIX", "be terse")
	t.Setenv("AGENT_ALLOWED_TOOLS", "Read, Edit,Bash,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "4000" {
		t.Errorf("Port = %q, want 4000", cfg.Port)
	}
	if cfg.AppPort != "5173" {
		t.Errorf("AppPort = %q, want 5173", cfg.AppPort)
	}
	if cfg.Agent.Command != "/usr/local/bin/claude" {
		t.Errorf("Agent.Command = %q", cfg.Agent.Command)
	}
	if cfg.Agent.WorkingDir != "/srv/project" {
		t.Errorf("Agent.WorkingDir = %q", cfg.Agent.WorkingDir)
	}
	if !cfg.Agent.AutoAccept {
		t.Error("Agent.AutoAccept not parsed")
	}
	if cfg.Agent.AppendSystemPrompt != "be terse" {
		t.Errorf("Agent.AppendSystemPrompt = %q", cfg.Agent.AppendSystemPrompt)
	}
	want := []string{"Read", "Edit", "Bash"}
	if !reflect.DeepEqual(cfg.Agent.AllowedTools, want) {
		t.Errorf("Agent.AllowedTools = %v, want %v", cfg.Agent.AllowedTools, want)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("STAGEWISE_PORT", "")
	if _, err := Load(); err == nil {
		t.Error("expected error for empty port")
	}
}

func TestLoadBadBoolFallsBack(t *testing.T) {
	t.Setenv("AGENT_AUTO_ACCEPT", "maybe")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.AutoAccept {
		t.Error("unparseable bool should fall back to default")
	}
}
