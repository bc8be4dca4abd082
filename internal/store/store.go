// Package store persists chat history so conversations survive restarts.
package store

import (
	"context"

	"github.com/Xiaobei-QuQ/stagewise/internal/domain"
)

// Store is the chat-history persistence boundary. Implementations must be
// safe for use from the reconciler goroutines.
type Store interface {
	// SaveChat inserts or updates a chat's metadata.
	SaveChat(ctx context.Context, chat domain.Chat) error
	// SaveMessage inserts or updates one message within a chat.
	SaveMessage(ctx context.Context, chatID string, msg domain.Message) error
	// DeleteChat removes a chat and all its messages.
	DeleteChat(ctx context.Context, chatID string) error
	// Load returns all chats with their messages in insertion order.
	Load(ctx context.Context) ([]domain.Chat, error)
	Close() error
}
