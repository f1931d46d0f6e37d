package chat

import (
	"context"

	"alumnichat/internal/domain"
)

// Cache persists conversations and fetched history locally so a reopened
// client renders instantly before the REST refresh lands. The server stays
// the source of truth; cache writes are best-effort.
type Cache interface {
	SaveConversations(ctx context.Context, convs []domain.Conversation) error
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	SaveMessages(ctx context.Context, conversationID int64, msgs []domain.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error)
}
