package chat

import (
	"context"
	"log"
	"sync"

	"alumnichat/internal/domain"
)

// ListAPI is the slice of the REST client the list controller needs.
type ListAPI interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	MarkRead(ctx context.Context, conversationID int64) error
}

// ListController fetches and maintains the conversation list with
// last-message previews and unread counts. It is the PreviewSink for any
// open BoxController.
type ListController struct {
	api   ListAPI
	cache Cache // optional

	mu            sync.Mutex
	conversations []domain.Conversation
	activeID      int64
}

var _ PreviewSink = (*ListController)(nil)

// NewListController builds a list controller. cache may be nil.
func NewListController(apiClient ListAPI, cache Cache) *ListController {
	return &ListController{api: apiClient, cache: cache}
}

// Load fetches the conversation list. On a REST failure the cached copy,
// when present, stands in so the view degrades to stale data rather than
// nothing.
func (l *ListController) Load(ctx context.Context) error {
	convs, err := l.api.ListConversations(ctx)
	if err != nil {
		if l.cache != nil {
			if cached, cerr := l.cache.ListConversations(ctx); cerr == nil && len(cached) > 0 {
				log.Printf("chat: conversation fetch failed, serving cache: %v", err)
				l.mu.Lock()
				l.conversations = cached
				l.mu.Unlock()
				return nil
			}
		}
		return err
	}

	l.mu.Lock()
	l.conversations = convs
	l.mu.Unlock()

	if l.cache != nil {
		if err := l.cache.SaveConversations(ctx, convs); err != nil {
			log.Printf("chat: cache conversations: %v", err)
		}
	}
	return nil
}

// Conversations returns the current list as a copy.
func (l *ListController) Conversations() []domain.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Conversation, len(l.conversations))
	copy(out, l.conversations)
	return out
}

// Get returns one conversation by id.
func (l *ListController) Get(conversationID int64) (domain.Conversation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.conversations {
		if c.ID == conversationID {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// Select marks a conversation active and clears its unread counter
// immediately; the mark-read call follows and its failure only logs, the
// counter stays cleared.
func (l *ListController) Select(ctx context.Context, conversationID int64) (domain.Conversation, bool) {
	l.mu.Lock()
	var selected domain.Conversation
	found := false
	for i := range l.conversations {
		if l.conversations[i].ID == conversationID {
			l.conversations[i].UnreadCount = 0
			selected = l.conversations[i]
			found = true
			break
		}
	}
	if found {
		l.activeID = conversationID
	}
	l.mu.Unlock()
	if !found {
		return domain.Conversation{}, false
	}

	if err := l.api.MarkRead(ctx, conversationID); err != nil {
		log.Printf("chat: mark read for %d: %v", conversationID, err)
	}
	return selected, true
}

// ActiveID returns the selected conversation id, zero when none.
func (l *ListController) ActiveID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeID
}

// ApplyPreviewUpdate recomputes a conversation's preview from a new or
// edited message, using the same rule as the initial load, and zeroes the
// unread counter since the user is actively viewing that conversation.
func (l *ListController) ApplyPreviewUpdate(conversationID int64, m domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.conversations {
		if l.conversations[i].ID != conversationID {
			continue
		}
		l.conversations[i].LastMessage = domain.Preview{
			Content:  domain.PreviewLabel(m.Kind, m.Content, m.AttachmentName),
			Kind:     m.Kind,
			FileName: m.AttachmentName,
			Status:   m.Status,
		}
		if !m.CreatedAt.IsZero() {
			l.conversations[i].LastMessageAt = m.CreatedAt
		}
		l.conversations[i].UnreadCount = 0
		return
	}
}

// MarkConversationSeen flips a conversation's preview status to seen and
// clears its unread counter.
func (l *ListController) MarkConversationSeen(conversationID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.conversations {
		if l.conversations[i].ID != conversationID {
			continue
		}
		l.conversations[i].LastMessage.Status = domain.StatusSeen
		l.conversations[i].UnreadCount = 0
		return
	}
}
