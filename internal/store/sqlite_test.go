package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chat := domain.Chat{
		ID:             "chat-1",
		Title:          "Fix login bug",
		CreatedAt:      time.Unix(1700000000, 0),
		AgentSessionID: "sess-abc",
	}
	if err := s.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	user := domain.NewUserMessage("why does login fail?", "ctx", []string{"AAA"})
	if err := s.SaveMessage(ctx, chat.ID, user); err != nil {
		t.Fatalf("SaveMessage user: %v", err)
	}
	assistant := domain.NewMessage(domain.RoleAssistant)
	assistant.Parts = []domain.Part{{Type: domain.PartText, Text: "Checking..."}}
	if err := s.SaveMessage(ctx, chat.ID, assistant); err != nil {
		t.Fatalf("SaveMessage assistant: %v", err)
	}

	chats, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}
	got := chats[0]
	if got.ID != chat.ID || got.Title != chat.Title || got.AgentSessionID != chat.AgentSessionID {
		t.Errorf("chat metadata mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(chat.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, chat.CreatedAt)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].ID != user.ID || got.Messages[1].ID != assistant.ID {
		t.Errorf("message order not preserved: %s, %s", got.Messages[0].ID, got.Messages[1].ID)
	}
	if got.Messages[0].Context != "ctx" {
		t.Errorf("Context = %q, want %q", got.Messages[0].Context, "ctx")
	}
	if len(got.Messages[0].Parts) != 2 || got.Messages[0].Parts[0].Data != "AAA" {
		t.Errorf("user parts not preserved: %+v", got.Messages[0].Parts)
	}
}

func TestSaveMessageUpdatesParts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chat := domain.Chat{ID: "chat-1", Title: "t", CreatedAt: time.Now()}
	if err := s.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	msg := domain.NewMessage(domain.RoleAssistant)
	for _, text := range []string{"Hel", "Hello", "Hello, world"} {
		msg.Parts = []domain.Part{{Type: domain.PartText, Text: text}}
		if err := s.SaveMessage(ctx, chat.ID, msg); err != nil {
			t.Fatalf("SaveMessage(%q): %v", text, err)
		}
	}

	chats, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	msgs := chats[0].Messages
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after updates, got %d", len(msgs))
	}
	if got := msgs[0].Parts[0].Text; got != "Hello, world" {
		t.Errorf("text = %q, want %q", got, "Hello, world")
	}
}

func TestSaveChatUpdatesMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chat := domain.Chat{ID: "chat-1", Title: "New chat", CreatedAt: time.Now()}
	if err := s.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	chat.Title = "Renamed"
	chat.AgentSessionID = "sess-1"
	if err := s.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat update: %v", err)
	}

	chats, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}
	if chats[0].Title != "Renamed" || chats[0].AgentSessionID != "sess-1" {
		t.Errorf("metadata not updated: %+v", chats[0])
	}
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"chat-1", "chat-2"} {
		if err := s.SaveChat(ctx, domain.Chat{ID: id, Title: id, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("SaveChat(%s): %v", id, err)
		}
		if err := s.SaveMessage(ctx, id, domain.NewUserMessage("hi", "", nil)); err != nil {
			t.Fatalf("SaveMessage(%s): %v", id, err)
		}
	}

	if err := s.DeleteChat(ctx, "chat-1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	chats, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != "chat-2" {
		t.Fatalf("expected only chat-2 to remain, got %+v", chats)
	}
	if len(chats[0].Messages) != 1 {
		t.Errorf("chat-2 messages disturbed: %d", len(chats[0].Messages))
	}
}

func TestChatOrderSurvivesReload(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chats.db")
	ctx := context.Background()

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if err := s.SaveChat(ctx, domain.Chat{ID: id, Title: id, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("SaveChat(%s): %v", id, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	chats, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chats) != len(ids) {
		t.Fatalf("expected %d chats, got %d", len(ids), len(chats))
	}
	for i, id := range ids {
		if chats[i].ID != id {
			t.Errorf("chat %d = %s, want %s", i, chats[i].ID, id)
		}
	}
}
