package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/Xiaobei-QuQ/stagewise/internal/config"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("STAGEWISE_PORT", "4100")
	t.Setenv("AGENT_COMMAND", "env-agent")
	t.Setenv("AGENT_AUTO_ACCEPT", "false")
	t.Setenv("DB_PATH", "/tmp/env.db")

	err := rootCmd.ParseFlags([]string{
		"--port", "5200",
		"--workspace", "/srv/app",
		"--command", "flag-agent",
		"--auto-accept",
		"--db", "",
		"--verbose",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	applyFlags(rootCmd, cfg)

	if cfg.Port != "5200" {
		t.Errorf("Port = %q, want the flag value 5200 over the environment", cfg.Port)
	}
	if cfg.Agent.WorkingDir != "/srv/app" {
		t.Errorf("Agent.WorkingDir = %q, want /srv/app", cfg.Agent.WorkingDir)
	}
	if cfg.Agent.Command != "flag-agent" {
		t.Errorf("Agent.Command = %q, want flag-agent", cfg.Agent.Command)
	}
	if !cfg.Agent.AutoAccept {
		t.Error("Agent.AutoAccept: flag should override the environment")
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want the explicit empty flag value", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug with --verbose", cfg.LogLevel)
	}
	// Keys without a matching flag keep their environment-then-default
	// precedence untouched.
	if cfg.AppPort != "3000" {
		t.Errorf("AppPort = %q, want the default 3000", cfg.AppPort)
	}
}

func TestUnsetFlagsKeepEnvironmentValues(t *testing.T) {
	t.Setenv("STAGEWISE_PORT", "4100")
	t.Setenv("AGENT_COMMAND", "env-agent")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	applyFlags(freshCommand(), cfg)

	if cfg.Port != "4100" {
		t.Errorf("Port = %q, want the environment value 4100", cfg.Port)
	}
	if cfg.Agent.Command != "env-agent" {
		t.Errorf("Agent.Command = %q, want env-agent", cfg.Agent.Command)
	}
}

// freshCommand returns a command whose flags exist but were never set on
// the command line.
func freshCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "stagewise"}
	cmd.Flags().String("port", "", "")
	cmd.Flags().String("workspace", "", "")
	cmd.Flags().String("command", "", "")
	cmd.Flags().Bool("auto-accept", false, "")
	cmd.Flags().String("db", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	return cmd
}
