package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

const defaultChatTitle = "New chat"

// Chat is a single conversation thread. Messages are kept in insertion
// order and never reordered.
type Chat struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Messages  []Message
	// AgentSessionID is the subprocess session identifier reported by the
	// agent's init event, used to resume the conversation on the next turn.
	AgentSessionID string
}

// Session is the shared conversation model: all chats, the active chat
// reference, and the working flag. Exactly one Session exists per running
// agent instance. All mutation goes through its methods under a single
// mutex; readers take point-in-time snapshots.
type Session struct {
	mu           sync.RWMutex
	activeChatID string
	chats        []*Chat
	isWorking    bool
}

// NewSession creates a session holding one fresh empty chat, which becomes
// the active chat.
func NewSession() *Session {
	s := &Session{}
	chat := newChat()
	s.chats = []*Chat{chat}
	s.activeChatID = chat.ID
	return s
}

func newChat() *Chat {
	return &Chat{
		ID:        uuid.NewString(),
		Title:     defaultChatTitle,
		CreatedAt: time.Now(),
		Messages:  []Message{},
	}
}

// ReplaceChats installs a previously persisted chat list, preserving order.
// The first chat becomes active. An empty list resets to a single fresh chat.
func (s *Session) ReplaceChats(chats []Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chats) == 0 {
		chat := newChat()
		s.chats = []*Chat{chat}
		s.activeChatID = chat.ID
		return
	}

	s.chats = make([]*Chat, len(chats))
	for i := range chats {
		c := chats[i]
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		s.chats[i] = &c
	}
	s.activeChatID = s.chats[0].ID
}

// CreateChat appends a fresh chat and makes it active. Returns its ID.
func (s *Session) CreateChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := newChat()
	s.chats = append(s.chats, chat)
	s.activeChatID = chat.ID
	return chat.ID
}

// SwitchChat makes an existing chat the active one.
func (s *Session) SwitchChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(id) == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	s.activeChatID = id
	return nil
}

// DeleteChat removes a chat. Deleting the active chat promotes the first
// remaining chat; deleting the last chat creates a fresh one. The session
// invariant holds afterwards: if any chat exists, activeChatID refers to
// one of them.
func (s *Session) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.chats {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}

	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)

	if len(s.chats) == 0 {
		chat := newChat()
		s.chats = []*Chat{chat}
		s.activeChatID = chat.ID
		return nil
	}

	if s.activeChatID == id {
		s.activeChatID = s.chats[0].ID
	}
	return nil
}

// ActiveChatID returns the identifier of the active chat.
func (s *Session) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChatID
}

// AppendMessage adds a message to the end of a chat.
func (s *Session) AppendMessage(chatID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	chat.Messages = append(chat.Messages, msg)
	return nil
}

// SetAssistantText replaces the single text part of a message with the
// given full accumulated text. The message keeps at most one text part;
// streamed updates carry the whole answer so far, never a delta.
func (s *Session) SetAssistantText(chatID, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	for i := range chat.Messages {
		if chat.Messages[i].ID != messageID {
			continue
		}
		msg := &chat.Messages[i]
		for j := range msg.Parts {
			if msg.Parts[j].Type == PartText {
				msg.Parts[j].Text = text
				return nil
			}
		}
		msg.Parts = append(msg.Parts, Part{Type: PartText, Text: text})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
}

// Message returns a copy of one message.
func (s *Session) Message(chatID, messageID string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat := s.find(chatID)
	if chat == nil {
		return Message{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	for _, m := range chat.Messages {
		if m.ID == messageID {
			return copyMessage(m), nil
		}
	}
	return Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
}

// SetChatTitle updates a chat's title.
func (s *Session) SetChatTitle(chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	chat.Title = title
	return nil
}

// SetAgentSessionID records the subprocess session identifier for resume.
func (s *Session) SetAgentSessionID(chatID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	chat.AgentSessionID = sessionID
	return nil
}

// AgentSessionID returns the recorded subprocess session identifier, or ""
// when the chat has no prior turn.
func (s *Session) AgentSessionID(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat := s.find(chatID)
	if chat == nil {
		return ""
	}
	return chat.AgentSessionID
}

// SetWorking sets the working flag.
func (s *Session) SetWorking(working bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isWorking = working
}

// IsWorking reports whether a turn is in progress.
func (s *Session) IsWorking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isWorking
}

// find returns the chat with the given ID. Caller must hold the lock.
func (s *Session) find(id string) *Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ChatSnapshot is a point-in-time copy of a chat.
type ChatSnapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// SessionSnapshot is a point-in-time, lock-free copy of the session state
// as exposed to remote clients.
type SessionSnapshot struct {
	ActiveChatID string         `json:"activeChatId"`
	Chats        []ChatSnapshot `json:"chats"`
	IsWorking    bool           `json:"isWorking"`
}

// Snapshot returns a deep copy of the session under its read lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]ChatSnapshot, len(s.chats))
	for i, c := range s.chats {
		messages := make([]Message, len(c.Messages))
		for j, m := range c.Messages {
			messages[j] = copyMessage(m)
		}
		chats[i] = ChatSnapshot{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			Messages:  messages,
		}
	}

	return SessionSnapshot{
		ActiveChatID: s.activeChatID,
		Chats:        chats,
		IsWorking:    s.isWorking,
	}
}

// Chats returns deep copies of all chats in insertion order, for
// persistence.
func (s *Session) Chats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]Chat, len(s.chats))
	for i, c := range s.chats {
		messages := make([]Message, len(c.Messages))
		for j, m := range c.Messages {
			messages[j] = copyMessage(m)
		}
		chats[i] = Chat{
			ID:             c.ID,
			Title:          c.Title,
			CreatedAt:      c.CreatedAt,
			Messages:       messages,
			AgentSessionID: c.AgentSessionID,
		}
	}
	return chats
}

func copyMessage(m Message) Message {
	parts := make([]Part, len(m.Parts))
	copy(parts, m.Parts)
	m.Parts = parts
	return m
}
