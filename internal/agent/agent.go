// Package agent orchestrates conversational turns: it composes prompts,
// spawns the agent subprocess, folds its event stream into the session
// model, and persists the result.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
	"github.com/Xiaobei-QuQ/stagewise/internal/process"
	"github.com/Xiaobei-QuQ/stagewise/internal/prompt"
	"github.com/Xiaobei-QuQ/stagewise/internal/store"
	"github.com/Xiaobei-QuQ/stagewise/internal/stream"
)

// ErrTurnActive is returned when a user message arrives while a previous
// turn is still streaming.
var ErrTurnActive = errors.New("a turn is already in progress")

// maxTitleLen bounds chat titles derived from the first user message.
const maxTitleLen = 60

// Publisher receives session state snapshots after every visible change.
type Publisher interface {
	PublishSessionState(snapshot domain.SessionSnapshot)
}

// UserInput is one message from the toolbar, with its captured page context.
type UserInput struct {
	Text          string
	Elements      []prompt.SelectedElement
	Screenshots   []string
	PluginContext map[string]map[string]string
}

// turn tracks one in-flight subprocess run. done guards turn teardown so
// that stream exhaustion, process exit and abort collapse to a single
// finish.
type turn struct {
	proc      *process.Handle
	chatID    string
	messageID string
	done      sync.Once
}

// Agent is the single orchestrator instance. At most one turn runs at a
// time; a second user message while one is streaming is rejected.
type Agent struct {
	session   *domain.Session
	store     store.Store
	cfg       process.AgentConfig
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	current *turn
}

// New creates the orchestrator. store and publisher may be nil; persistence
// and realtime publishing are then disabled.
func New(session *domain.Session, st store.Store, cfg process.AgentConfig, publisher Publisher, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		session:   session,
		store:     st,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// Session exposes the shared conversation model.
func (a *Agent) Session() *domain.Session { return a.session }

// SendUserMessage runs one conversational turn against the active chat.
// It returns once the subprocess is spawned and fed; streaming continues
// in the background until the turn finishes.
func (a *Agent) SendUserMessage(ctx context.Context, in UserInput) error {
	a.mu.Lock()
	if a.current != nil || a.session.IsWorking() {
		a.mu.Unlock()
		return ErrTurnActive
	}
	chatID := a.session.ActiveChatID()
	a.session.SetWorking(true)
	a.mu.Unlock()

	domContext := prompt.SerializeDOMContext(in.Elements)

	userMsg := domain.NewUserMessage(in.Text, domContext, in.Screenshots)
	if err := a.session.AppendMessage(chatID, userMsg); err != nil {
		a.session.SetWorking(false)
		return err
	}
	a.maybeSetTitle(ctx, chatID, in.Text)
	a.persistMessage(ctx, chatID, userMsg)
	a.publish()

	resumeID := a.session.AgentSessionID(chatID)
	proc, err := process.StartAgent(ctx, a.cfg, resumeID, a.logger)
	if err != nil {
		a.session.SetWorking(false)
		a.publish()
		return fmt.Errorf("start agent: %w", err)
	}

	// Register the exit observer immediately: every spawned process must be
	// waited on, including ones killed by a failure path below. Turn
	// completion is still driven by stream exhaustion, not process exit,
	// so the decoder drains buffered events before the turn settles.
	proc.NotifyExit(func(code *int) {
		if code == nil {
			a.logger.Info("agent process terminated", "chat", chatID)
		} else {
			a.logger.Info("agent process exited", "chat", chatID, "code", *code)
			if *code != 0 {
				a.logger.Warn("agent exited with failure", "code", *code, "stderr", proc.StderrText())
			}
		}
	})

	wire := prompt.Build(prompt.Input{
		Text:           in.Text,
		DOMContext:     domContext,
		Screenshots:    in.Screenshots,
		PluginSnippets: prompt.ExtractPluginSnippets(in.PluginContext),
	})
	payload, err := wire.Encode()
	if err != nil {
		_ = proc.Kill()
		a.session.SetWorking(false)
		a.publish()
		return fmt.Errorf("encode prompt: %w", err)
	}

	assistantMsg := domain.NewMessage(domain.RoleAssistant)
	if err := a.session.AppendMessage(chatID, assistantMsg); err != nil {
		_ = proc.Kill()
		a.session.SetWorking(false)
		a.publish()
		return err
	}

	t := &turn{proc: proc, chatID: chatID, messageID: assistantMsg.ID}
	a.mu.Lock()
	a.current = t
	a.mu.Unlock()

	stdin := proc.Stdin()
	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		a.logger.Warn("failed to write prompt to agent", "error", err)
	}
	_ = stdin.Close()

	a.publish()
	go a.streamLoop(t)
	return nil
}

// Abort terminates the in-flight turn, if any. Partial assistant output is
// kept. Aborting an idle session is a no-op.
func (a *Agent) Abort() {
	a.mu.Lock()
	t := a.current
	a.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.proc.Kill(); err != nil {
		a.logger.Warn("failed to kill agent process", "error", err)
	}
	a.finish(t)
}

// CreateChat opens a fresh chat and makes it active.
func (a *Agent) CreateChat(ctx context.Context) string {
	id := a.session.CreateChat()
	a.persistChat(ctx, id)
	a.publish()
	return id
}

// SwitchChat changes the active chat. The in-flight turn, if any, keeps
// streaming into its own chat.
func (a *Agent) SwitchChat(id string) error {
	if err := a.session.SwitchChat(id); err != nil {
		return err
	}
	a.publish()
	return nil
}

// DeleteChat removes a chat. Deleting the chat the current turn is
// streaming into aborts that turn first.
func (a *Agent) DeleteChat(ctx context.Context, id string) error {
	a.mu.Lock()
	t := a.current
	a.mu.Unlock()
	if t != nil && t.chatID == id {
		a.Abort()
	}

	if err := a.session.DeleteChat(id); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.DeleteChat(ctx, id); err != nil {
			a.logger.Warn("failed to delete persisted chat", "chat", id, "error", err)
		}
		// Deleting the last chat creates a replacement; persist it.
		a.persistChat(ctx, a.session.ActiveChatID())
	}
	a.publish()
	return nil
}

// Shutdown aborts any in-flight turn.
func (a *Agent) Shutdown() {
	a.Abort()
}

// streamLoop folds the subprocess's decoded output into the session model
// until the stream ends. It runs in its own goroutine, one per turn.
func (a *Agent) streamLoop(t *turn) {
	decoder := stream.NewDecoder(t.proc.Stdout(), a.logger)
	for {
		event, err := decoder.Next()
		if err != nil {
			if err != io.EOF {
				a.logger.Warn("agent stream read failed", "error", err)
				// The stream is unusable but the process may still be
				// running; it must not outlive its turn.
				_ = t.proc.Kill()
			}
			break
		}
		if !a.isCurrent(t) {
			// Aborted mid-stream; drop trailing events.
			continue
		}
		a.applyEvent(t, event)
	}
	_ = t.proc.Close()
	a.finish(t)
}

func (a *Agent) applyEvent(t *turn, event stream.Event) {
	ctx := context.Background()
	switch event.Type {
	case stream.EventSystem:
		if event.System.Subtype == "init" && event.System.SessionID != "" {
			if err := a.session.SetAgentSessionID(t.chatID, event.System.SessionID); err != nil {
				a.logger.Warn("failed to record agent session id", "error", err)
				return
			}
			a.persistChat(ctx, t.chatID)
		}

	case stream.EventAssistant:
		text := event.Assistant.Text()
		if text == "" {
			// Events with no text fragments must not wipe accumulated text.
			return
		}
		if err := a.session.SetAssistantText(t.chatID, t.messageID, text); err != nil {
			a.logger.Warn("failed to apply assistant text", "error", err)
			return
		}
		a.persistCurrentMessage(ctx, t)
		a.publish()

	case stream.EventResult:
		if event.Result.IsError {
			a.logger.Warn("agent turn failed", "result", event.Result.Result, "duration_ms", event.Result.DurationMS)
		} else {
			a.logger.Info("agent turn completed", "duration_ms", event.Result.DurationMS)
		}

	case stream.EventToolUse, stream.EventToolResult:
		a.logger.Debug("agent tool activity", "type", event.Type)

	default:
		a.logger.Debug("ignoring unrecognized agent event", "raw", string(event.Raw))
	}
}

// finish tears down a turn exactly once: clears the current turn, drops
// the working flag and persists the final assistant message.
func (a *Agent) finish(t *turn) {
	t.done.Do(func() {
		a.mu.Lock()
		if a.current == t {
			a.current = nil
		}
		a.session.SetWorking(false)
		a.mu.Unlock()

		ctx := context.Background()
		a.persistCurrentMessage(ctx, t)
		a.persistChat(ctx, t.chatID)
		a.publish()
	})
}

func (a *Agent) isCurrent(t *turn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current == t
}

// maybeSetTitle derives a chat title from the first user message.
func (a *Agent) maybeSetTitle(ctx context.Context, chatID, text string) {
	for _, c := range a.session.Chats() {
		if c.ID != chatID {
			continue
		}
		if len(c.Messages) != 1 {
			return
		}
		title := strings.TrimSpace(text)
		if i := strings.IndexByte(title, '\n'); i >= 0 {
			title = title[:i]
		}
		if runes := []rune(title); len(runes) > maxTitleLen {
			title = string(runes[:maxTitleLen])
		}
		if title == "" {
			return
		}
		if err := a.session.SetChatTitle(chatID, title); err != nil {
			a.logger.Warn("failed to set chat title", "error", err)
		}
		return
	}
}

func (a *Agent) publish() {
	if a.publisher == nil {
		return
	}
	a.publisher.PublishSessionState(a.session.Snapshot())
}

// persistChat writes a chat's metadata through the store. Persistence
// failures are logged, never surfaced; the in-memory session stays
// authoritative.
func (a *Agent) persistChat(ctx context.Context, chatID string) {
	if a.store == nil {
		return
	}
	for _, c := range a.session.Chats() {
		if c.ID != chatID {
			continue
		}
		if err := a.store.SaveChat(ctx, c); err != nil {
			a.logger.Warn("failed to persist chat", "chat", chatID, "error", err)
		}
		return
	}
}

func (a *Agent) persistMessage(ctx context.Context, chatID string, msg domain.Message) {
	if a.store == nil {
		return
	}
	a.persistChat(ctx, chatID)
	if err := a.store.SaveMessage(ctx, chatID, msg); err != nil {
		a.logger.Warn("failed to persist message", "message", msg.ID, "error", err)
	}
}

func (a *Agent) persistCurrentMessage(ctx context.Context, t *turn) {
	if a.store == nil {
		return
	}
	msg, err := a.session.Message(t.chatID, t.messageID)
	if err != nil {
		return
	}
	a.persistMessage(ctx, t.chatID, msg)
}
