package domain

import (
	"errors"
	"testing"
)

func TestNewSessionHasActiveChat(t *testing.T) {
	s := NewSession()

	snap := s.Snapshot()
	if len(snap.Chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(snap.Chats))
	}
	if snap.ActiveChatID != snap.Chats[0].ID {
		t.Errorf("active chat %q does not match only chat %q", snap.ActiveChatID, snap.Chats[0].ID)
	}
	if snap.IsWorking {
		t.Error("new session should not be working")
	}
}

func TestCreateChatBecomesActive(t *testing.T) {
	s := NewSession()
	first := s.ActiveChatID()

	id := s.CreateChat()
	if s.ActiveChatID() != id {
		t.Errorf("expected new chat %q to be active, got %q", id, s.ActiveChatID())
	}
	if id == first {
		t.Error("new chat should have a distinct id")
	}
	if len(s.Snapshot().Chats) != 2 {
		t.Errorf("expected 2 chats, got %d", len(s.Snapshot().Chats))
	}
}

func TestSwitchChat(t *testing.T) {
	s := NewSession()
	first := s.ActiveChatID()
	s.CreateChat()

	if err := s.SwitchChat(first); err != nil {
		t.Fatalf("switch to existing chat: %v", err)
	}
	if s.ActiveChatID() != first {
		t.Errorf("expected active chat %q, got %q", first, s.ActiveChatID())
	}

	if err := s.SwitchChat("nope"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound, got %v", err)
	}
}

func TestDeleteActiveChatPromotesOther(t *testing.T) {
	s := NewSession()
	first := s.ActiveChatID()
	second := s.CreateChat()

	if err := s.DeleteChat(second); err != nil {
		t.Fatalf("delete active chat: %v", err)
	}
	if s.ActiveChatID() != first {
		t.Errorf("expected remaining chat %q to be active, got %q", first, s.ActiveChatID())
	}
	if len(s.Snapshot().Chats) != 1 {
		t.Errorf("expected 1 chat, got %d", len(s.Snapshot().Chats))
	}
}

func TestDeleteLastChatCreatesFreshOne(t *testing.T) {
	s := NewSession()
	only := s.ActiveChatID()

	if err := s.DeleteChat(only); err != nil {
		t.Fatalf("delete last chat: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Chats) != 1 {
		t.Fatalf("expected a fresh chat, got %d chats", len(snap.Chats))
	}
	if snap.Chats[0].ID == only {
		t.Error("fresh chat should have a new id")
	}
	if snap.ActiveChatID != snap.Chats[0].ID {
		t.Errorf("fresh chat should be active, got %q", snap.ActiveChatID)
	}
}

func TestDeleteInactiveChatKeepsActive(t *testing.T) {
	s := NewSession()
	first := s.ActiveChatID()
	second := s.CreateChat()

	if err := s.DeleteChat(first); err != nil {
		t.Fatalf("delete inactive chat: %v", err)
	}
	if s.ActiveChatID() != second {
		t.Errorf("active chat should stay %q, got %q", second, s.ActiveChatID())
	}
}

func TestSetAssistantTextReplacesSinglePart(t *testing.T) {
	s := NewSession()
	chatID := s.ActiveChatID()

	msg := NewMessage(RoleAssistant)
	if err := s.AppendMessage(chatID, msg); err != nil {
		t.Fatalf("append message: %v", err)
	}

	updates := []string{"Hel", "Hello", "Hello, world"}
	for _, text := range updates {
		if err := s.SetAssistantText(chatID, msg.ID, text); err != nil {
			t.Fatalf("set text %q: %v", text, err)
		}
	}

	got, err := s.Message(chatID, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if len(got.Parts) != 1 {
		t.Fatalf("expected exactly 1 part after repeated updates, got %d", len(got.Parts))
	}
	if got.Parts[0].Type != PartText || got.Parts[0].Text != "Hello, world" {
		t.Errorf("expected final text %q, got %+v", "Hello, world", got.Parts[0])
	}
}

func TestSetAssistantTextUnknownMessage(t *testing.T) {
	s := NewSession()
	err := s.SetAssistantText(s.ActiveChatID(), "missing", "hi")
	if !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewSession()
	chatID := s.ActiveChatID()
	msg := NewUserMessage("hi", "", nil)
	if err := s.AppendMessage(chatID, msg); err != nil {
		t.Fatalf("append message: %v", err)
	}

	snap := s.Snapshot()
	snap.Chats[0].Messages[0].Parts[0].Text = "mutated"

	got, err := s.Message(chatID, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Parts[len(got.Parts)-1].Text != "hi" {
		t.Error("mutating a snapshot must not affect the session")
	}
}

func TestReplaceChats(t *testing.T) {
	s := NewSession()

	s.ReplaceChats([]Chat{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second"},
	})
	if s.ActiveChatID() != "a" {
		t.Errorf("expected first restored chat active, got %q", s.ActiveChatID())
	}

	s.ReplaceChats(nil)
	snap := s.Snapshot()
	if len(snap.Chats) != 1 || snap.ActiveChatID == "" {
		t.Errorf("empty restore should leave one fresh active chat, got %+v", snap)
	}
}
