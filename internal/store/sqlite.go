package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the chat-history database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent reads while the reconciler writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		agent_session_id TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		parts_json TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveChat inserts or updates a chat's metadata. New chats get the next
// sequence number so insertion order survives a reload.
func (s *SQLiteStore) SaveChat(ctx context.Context, chat domain.Chat) error {
	query := `
	INSERT INTO chats (id, title, created_at, agent_session_id, seq)
	VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM chats))
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		agent_session_id = excluded.agent_session_id`

	_, err := s.db.ExecContext(ctx, query,
		chat.ID, chat.Title, chat.CreatedAt.Unix(), chat.AgentSessionID)
	if err != nil {
		return fmt.Errorf("save chat %s: %w", chat.ID, err)
	}
	return nil
}

// SaveMessage inserts or updates one message. Updates replace the parts
// payload in place, which is how streamed assistant text lands on disk.
func (s *SQLiteStore) SaveMessage(ctx context.Context, chatID string, msg domain.Message) error {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("encode message parts: %w", err)
	}

	query := `
	INSERT INTO messages (id, chat_id, role, parts_json, context, created_at, seq)
	VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = ?))
	ON CONFLICT(id) DO UPDATE SET
		parts_json = excluded.parts_json`

	_, err = s.db.ExecContext(ctx, query,
		msg.ID, chatID, string(msg.Role), string(parts), msg.Context, msg.CreatedAt.Unix(), chatID)
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

// DeleteChat removes a chat and its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete messages for chat %s: %w", chatID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return tx.Commit()
}

// Load returns all chats with their messages, ordered as inserted.
func (s *SQLiteStore) Load(ctx context.Context) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, agent_session_id FROM chats ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var chat domain.Chat
		var createdAt int64
		if err := rows.Scan(&chat.ID, &chat.Title, &createdAt, &chat.AgentSessionID); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chat.CreatedAt = time.Unix(createdAt, 0)
		chat.Messages = []domain.Message{}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	for i := range chats {
		messages, err := s.loadMessages(ctx, chats[i].ID)
		if err != nil {
			return nil, err
		}
		chats[i].Messages = messages
	}
	return chats, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, parts_json, context, created_at FROM messages WHERE chat_id = ? ORDER BY seq`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("load messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var role, partsJSON string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &role, &partsJSON, &msg.Context, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if err := json.Unmarshal([]byte(partsJSON), &msg.Parts); err != nil {
			return nil, fmt.Errorf("decode parts for message %s: %w", msg.ID, err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
