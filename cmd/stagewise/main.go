// Command stagewise bridges the browser toolbar to a local coding agent:
// it serves the toolbar websocket, runs agent turns against the workspace
// and persists chat history.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Xiaobei-QuQ/stagewise/internal/agent"
	"github.com/Xiaobei-QuQ/stagewise/internal/api"
	"github.com/Xiaobei-QuQ/stagewise/internal/config"
	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
	"github.com/Xiaobei-QuQ/stagewise/internal/process"
	"github.com/Xiaobei-QuQ/stagewise/internal/realtime"
	"github.com/Xiaobei-QuQ/stagewise/internal/store"
)

const shutdownTimeout = 10 * time.Second

var envFile string

var rootCmd = &cobra.Command{
	Use:   "stagewise",
	Short: "Local bridge between the browser toolbar and a coding agent",
	Long: `Stagewise runs a local server the browser toolbar connects to. User
messages, selected DOM elements and screenshots are composed into prompts
for a coding-agent CLI; the agent's streamed answer is synced back to every
connected toolbar and persisted across restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "Load environment from this file before reading configuration")
	rootCmd.Flags().String("port", "", "Port to serve the toolbar API on (overrides STAGEWISE_PORT)")
	rootCmd.Flags().String("workspace", "", "Workspace directory the agent runs in (overrides AGENT_WORKSPACE)")
	rootCmd.Flags().String("command", "", "Coding-agent CLI to invoke (overrides AGENT_COMMAND)")
	rootCmd.Flags().Bool("auto-accept", false, "Skip the agent's permission prompts (overrides AGENT_AUTO_ACCEPT)")
	rootCmd.Flags().String("db", "", "Chat-history database path, empty disables persistence (overrides DB_PATH)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Log at debug level")
}

// applyFlags overlays explicitly-set command-line flags on top of the
// environment-derived configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if flags.Changed("workspace") {
		cfg.Agent.WorkingDir, _ = flags.GetString("workspace")
	}
	if flags.Changed("command") {
		cfg.Agent.Command, _ = flags.GetString("command")
	}
	if flags.Changed("auto-accept") {
		cfg.Agent.AutoAccept, _ = flags.GetBool("auto-accept")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return err
		}
	} else {
		// A local .env is optional.
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	session := domain.NewSession()
	var st store.Store
	if cfg.DBPath != "" {
		sqlStore, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		st = sqlStore

		chats, err := sqlStore.Load(context.Background())
		if err != nil {
			return err
		}
		if len(chats) > 0 {
			session.ReplaceChats(chats)
			logger.Info("restored chat history", "chats", len(chats))
		}
	} else {
		logger.Info("persistence disabled")
	}

	hub := realtime.NewHub()
	orchestrator := agent.New(session, st, process.AgentConfig{
		Command:            cfg.Agent.Command,
		WorkingDir:         cfg.Agent.WorkingDir,
		AutoAccept:         cfg.Agent.AutoAccept,
		AppendSystemPrompt: cfg.Agent.AppendSystemPrompt,
		AllowedTools:       cfg.Agent.AllowedTools,
	}, hub, logger)

	router := chi.NewRouter()
	api.NewHandler(orchestrator, hub, logger).Mount(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "appPort", cfg.AppPort, "workspace", cfg.Agent.WorkingDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	orchestrator.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
