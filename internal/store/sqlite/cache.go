package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alumnichat/internal/chat"
	"alumnichat/internal/domain"
)

// Cache implements chat.Cache on a local SQLite database.
type Cache struct {
	db *sql.DB
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

var _ chat.Cache = (*Cache)(nil)

// SaveConversations upserts the full conversation list.
func (c *Cache) SaveConversations(ctx context.Context, convs []domain.Conversation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO conversations (id, other_user_id, other_name, other_avatar,
			preview_content, preview_kind, preview_file_name, preview_status,
			unread_count, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			other_user_id = excluded.other_user_id,
			other_name = excluded.other_name,
			other_avatar = excluded.other_avatar,
			preview_content = excluded.preview_content,
			preview_kind = excluded.preview_kind,
			preview_file_name = excluded.preview_file_name,
			preview_status = excluded.preview_status,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at
	`
	for _, conv := range convs {
		var lastAt any
		if !conv.LastMessageAt.IsZero() {
			lastAt = conv.LastMessageAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, query,
			conv.ID,
			conv.Other.ID,
			conv.Other.Name,
			conv.Other.Avatar,
			conv.LastMessage.Content,
			string(conv.LastMessage.Kind),
			conv.LastMessage.FileName,
			string(conv.LastMessage.Status),
			conv.UnreadCount,
			lastAt,
		); err != nil {
			return fmt.Errorf("upsert conversation %d: %w", conv.ID, err)
		}
	}
	return tx.Commit()
}

// ListConversations returns the cached list, most recent activity first.
func (c *Cache) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	query := `
		SELECT id, other_user_id, other_name, other_avatar,
			preview_content, preview_kind, preview_file_name, preview_status,
			unread_count, last_message_at
		FROM conversations
		ORDER BY last_message_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []domain.Conversation
	for rows.Next() {
		var (
			conv   domain.Conversation
			kind   string
			status string
			lastAt sql.NullTime
		)
		if err := rows.Scan(
			&conv.ID,
			&conv.Other.ID,
			&conv.Other.Name,
			&conv.Other.Avatar,
			&conv.LastMessage.Content,
			&kind,
			&conv.LastMessage.FileName,
			&status,
			&conv.UnreadCount,
			&lastAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.LastMessage.Kind = domain.MessageKind(kind)
		conv.LastMessage.Status = domain.DeliveryStatus(status)
		if lastAt.Valid {
			conv.LastMessageAt = lastAt.Time
		}
		res = append(res, conv)
	}
	return res, rows.Err()
}

// SaveMessages upserts one conversation's history. Optimistic records
// without a server id are skipped; they are re-cached once acknowledged.
func (c *Cache) SaveMessages(ctx context.Context, conversationID int64, msgs []domain.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, kind,
			attachment_url, attachment_name, reply_to_id, reply_sender_id,
			reply_content, edited, deleted, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			edited = excluded.edited,
			deleted = excluded.deleted,
			status = excluded.status
	`
	for _, m := range msgs {
		if m.ID == 0 {
			continue
		}
		var replySenderID int64
		var replyContent string
		if m.ReplyTo != nil {
			replySenderID = m.ReplyTo.SenderID
			replyContent = m.ReplyTo.Content
		}
		if _, err := tx.ExecContext(ctx, query,
			m.ID,
			conversationID,
			m.SenderID,
			m.Content,
			string(m.Kind),
			m.AttachmentURL,
			m.AttachmentName,
			m.ReplyToID,
			replySenderID,
			replyContent,
			m.Edited,
			m.Deleted,
			string(m.Status),
			m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("upsert message %d: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns one conversation's cached history in creation
// order.
func (c *Cache) ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, kind,
			attachment_url, attachment_name, reply_to_id, reply_sender_id,
			reply_content, edited, deleted, status, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []domain.Message
	for rows.Next() {
		var (
			m             domain.Message
			kind          string
			status        string
			replySenderID int64
			replyContent  string
			createdAt     time.Time
		)
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Content,
			&kind,
			&m.AttachmentURL,
			&m.AttachmentName,
			&m.ReplyToID,
			&replySenderID,
			&replyContent,
			&m.Edited,
			&m.Deleted,
			&status,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Kind = domain.MessageKind(kind)
		m.Status = domain.DeliveryStatus(status)
		m.CreatedAt = createdAt
		if m.ReplyToID != 0 && replyContent != "" {
			m.ReplyTo = &domain.ReplyRef{
				MessageID: m.ReplyToID,
				SenderID:  replySenderID,
				Content:   replyContent,
			}
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
