// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port string
	// AppPort is the port of the dev server the toolbar is injected into.
	AppPort string
	// DBPath locates the chat-history database. Empty disables persistence.
	DBPath   string
	LogLevel string
	Agent    AgentConfig
}

// AgentConfig controls how the coding-agent CLI is invoked.
type AgentConfig struct {
	Command            string
	WorkingDir         string
	AutoAccept         bool
	AppendSystemPrompt string
	AllowedTools       []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	workingDir := getEnv("AGENT_WORKSPACE", "")
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		workingDir = wd
	}

	cfg := &Config{
		Port:     getEnv("STAGEWISE_PORT", "3100"),
		AppPort:  getEnv("STAGEWISE_APP_PORT", "3000"),
		DBPath:   getEnv("DB_PATH", "./data/stagewise.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Agent: AgentConfig{
			Command:            getEnv("AGENT_COMMAND", "claude"),
			WorkingDir:         workingDir,
			AutoAccept:         getEnvBool("AGENT_AUTO_ACCEPT", false),
			AppendSystemPrompt: getEnv("AGENT_SYSTEM_PROMPT_SUFFIX", ""),
			AllowedTools:       getEnvList("AGENT_ALLOWED_TOOLS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("STAGEWISE_PORT cannot be empty")
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("AGENT_COMMAND cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// getEnvList parses a comma-separated list, dropping empty entries.
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
