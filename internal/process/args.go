package process

import (
	"context"
	"log/slog"
	"strings"
)

// AgentConfig describes how to invoke the coding-agent CLI.
type AgentConfig struct {
	// Command is the agent executable name or path.
	Command string
	// WorkingDir is the workspace the agent operates in.
	WorkingDir string
	// Env holds additional environment variables layered over the host's.
	Env map[string]string
	// AutoAccept bypasses interactive tool confirmation prompts.
	AutoAccept bool
	// AppendSystemPrompt is appended to the agent's system prompt when set.
	AppendSystemPrompt string
	// AllowedTools restricts the agent to the named tools when non-empty.
	AllowedTools []string
}

// BuildArgs constructs the agent argument list. Every invocation runs in
// prompt mode with stream-json framing on both channels and verbose
// diagnostics; resumeSessionID, when non-empty, continues a prior agent
// session.
func BuildArgs(cfg AgentConfig, resumeSessionID string) []string {
	args := []string{
		"-p",
		"--output-format=stream-json",
		"--input-format=stream-json",
		"--verbose",
	}

	if resumeSessionID != "" {
		args = append(args, "--resume", resumeSessionID)
	}
	if cfg.AutoAccept {
		args = append(args, "--dangerously-skip-permissions")
	}
	if cfg.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", cfg.AppendSystemPrompt)
	}
	if len(cfg.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(cfg.AllowedTools, ","))
	}

	return args
}

// StartAgent spawns the agent CLI for one turn.
func StartAgent(ctx context.Context, cfg AgentConfig, resumeSessionID string, logger *slog.Logger) (*Handle, error) {
	return Start(ctx, Config{
		Command:    cfg.Command,
		Args:       BuildArgs(cfg, resumeSessionID),
		WorkingDir: cfg.WorkingDir,
		Env:        cfg.Env,
	}, logger)
}
