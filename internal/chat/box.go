package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"alumnichat/internal/domain"
)

// API is the slice of the REST client the box controller needs.
type API interface {
	ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error)
	CreateMessage(ctx context.Context, conversationID int64, content string, replyToID int64) (domain.Message, error)
	CreateFileMessage(ctx context.Context, conversationID int64, content string, replyToID int64, att domain.Attachment) (domain.Message, error)
	EditMessage(ctx context.Context, messageID int64, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	MarkRead(ctx context.Context, conversationID int64) error
}

// Transport is the slice of the gateway client the box controller needs.
type Transport interface {
	JoinRoom(conversationID int64)
	LeaveRoom(conversationID int64)
	EmitNewMessage(m domain.Message)
	EmitEditedMessage(e domain.MessageEdit)
	EmitMarkRead(conversationID int64)
}

// PreviewSink receives last-message updates for the conversation list.
type PreviewSink interface {
	ApplyPreviewUpdate(conversationID int64, m domain.Message)
	MarkConversationSeen(conversationID int64)
}

// BoxController owns exactly one open conversation: its compose state
// (draft, staged attachment, reply target) and every mutating operation
// against it. Incoming transport events for the conversation are routed
// through the Handle methods.
type BoxController struct {
	api      API
	tr       Transport
	cache    Cache       // optional
	previews PreviewSink // optional

	conversationID int64
	peer           domain.Participant
	selfID         int64

	mu         sync.Mutex
	store      *Store
	draft      string
	attachment *domain.Attachment
	replyTo    *domain.ReplyRef
	cancel     context.CancelFunc
}

// NewBoxController builds a controller for one conversation. cache and
// previews may be nil.
func NewBoxController(apiClient API, tr Transport, cache Cache, previews PreviewSink, conv domain.Conversation, selfID int64) *BoxController {
	return &BoxController{
		api:            apiClient,
		tr:             tr,
		cache:          cache,
		previews:       previews,
		conversationID: conv.ID,
		peer:           conv.Other,
		selfID:         selfID,
		store:          NewStore(conv.ID, selfID),
	}
}

// ConversationID returns the open conversation's id.
func (b *BoxController) ConversationID() int64 { return b.conversationID }

// Peer returns the other participant's denormalized identity.
func (b *BoxController) Peer() domain.Participant { return b.peer }

// Open loads the conversation: cached history first for an instant
// render, then the authoritative REST fetch, then the transport room join.
// The returned context cancellation is tied to Close, so an in-flight
// fetch cannot mutate state after the conversation is gone.
func (b *BoxController) Open(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	if b.cache != nil {
		if cached, err := b.cache.ListMessages(ctx, b.conversationID); err == nil && len(cached) > 0 {
			b.mu.Lock()
			b.store.Load(cached)
			b.mu.Unlock()
		}
	}

	msgs, err := b.api.ListMessages(ctx, b.conversationID)
	if err != nil {
		b.mu.Lock()
		b.cancel = nil
		b.mu.Unlock()
		cancel()
		return fmt.Errorf("fetch history: %w", err)
	}
	b.mu.Lock()
	b.store.Load(msgs)
	unseen := b.store.HasUnseenFromPeer()
	b.mu.Unlock()

	b.persist(ctx)
	b.tr.JoinRoom(b.conversationID)

	if unseen {
		if err := b.MarkRead(ctx); err != nil {
			log.Printf("chat: mark read on open: %v", err)
		}
	}
	return nil
}

// Close leaves the transport room and cancels any in-flight work tied to
// the open lifecycle.
func (b *BoxController) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.tr.LeaveRoom(b.conversationID)
}

// SetDraft replaces the compose text.
func (b *BoxController) SetDraft(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft = text
}

// Draft returns the current compose text.
func (b *BoxController) Draft() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft
}

// AttachFile stages a file for the next send after validating it.
func (b *BoxController) AttachFile(att domain.Attachment) error {
	if err := ValidateAttachment(att); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachment = &att
	return nil
}

// ClearAttachment drops the staged file.
func (b *BoxController) ClearAttachment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachment = nil
}

// SetReplyTo marks a locally known message as the reply target.
func (b *BoxController) SetReplyTo(messageID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.store.Get(messageID)
	if !ok {
		return domain.ErrNotFound
	}
	b.replyTo = &domain.ReplyRef{MessageID: m.ID, SenderID: m.SenderID, Content: m.Content}
	return nil
}

// ClearReply drops the reply target.
func (b *BoxController) ClearReply() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replyTo = nil
}

// ReplyTarget returns the current reply target, if any.
func (b *BoxController) ReplyTarget() *domain.ReplyRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replyTo
}

// Send submits the current composition. Empty compositions and invalid
// attachments are rejected without a network call. On success the
// normalized record is appended locally, the list preview bumped, the
// transport notified, and the compose state cleared. On failure the
// compose state is left intact for a retry.
func (b *BoxController) Send(ctx context.Context) error {
	b.mu.Lock()
	content := b.draft
	att := b.attachment
	reply := b.replyTo
	b.mu.Unlock()

	if strings.TrimSpace(content) == "" && att == nil {
		return domain.ErrEmptyMessage
	}

	var replyID int64
	if reply != nil {
		replyID = reply.MessageID
	}

	var (
		msg domain.Message
		err error
	)
	if att != nil {
		msg, err = b.api.CreateFileMessage(ctx, b.conversationID, content, replyID, *att)
	} else {
		msg, err = b.api.CreateMessage(ctx, b.conversationID, content, replyID)
	}
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if msg.SenderID == 0 {
		msg.SenderID = b.selfID
	}
	if msg.LocalKey == "" {
		msg.LocalKey = uuid.NewString()
	}
	msg.Status = domain.StatusSent
	if msg.ReplyTo == nil && reply != nil {
		msg.ReplyTo = reply
		msg.ReplyToID = reply.MessageID
	}
	if att != nil {
		if msg.AttachmentName == "" {
			msg.AttachmentName = att.Name
		}
		if msg.Kind == domain.KindText {
			msg.Kind = domain.KindForMIME(att.MIME)
		}
	}

	b.mu.Lock()
	b.store.ApplyNew(msg)
	b.draft = ""
	b.attachment = nil
	b.replyTo = nil
	b.mu.Unlock()

	if b.previews != nil {
		b.previews.ApplyPreviewUpdate(b.conversationID, msg)
	}
	b.tr.EmitNewMessage(msg)
	b.persist(ctx)
	return nil
}

// Edit updates a message authored by the current user. Local state and
// the transport broadcast follow only an accepted REST update.
func (b *BoxController) Edit(ctx context.Context, messageID int64, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return domain.ErrInvalidInput
	}

	b.mu.Lock()
	m, ok := b.store.Get(messageID)
	b.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	if m.SenderID != b.selfID {
		return domain.ErrForbidden
	}
	if m.Deleted {
		return domain.ErrMessageDeleted
	}

	updated, err := b.api.EditMessage(ctx, messageID, newText)
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	content := updated.Content
	if content == "" {
		content = newText
	}

	edit := domain.MessageEdit{
		MessageID:      messageID,
		ConversationID: b.conversationID,
		Content:        content,
		Edited:         true,
	}

	b.mu.Lock()
	applied, ok := b.store.ApplyEdit(edit)
	latest, hasLatest := b.store.Latest()
	b.mu.Unlock()

	b.tr.EmitEditedMessage(edit)
	if ok && hasLatest && latest.ID == applied.ID && b.previews != nil {
		b.previews.ApplyPreviewUpdate(b.conversationID, applied)
	}
	b.persist(ctx)
	return nil
}

// Delete tombstones a message authored by the current user. The tombstone
// is applied before the DELETE resolves; a failed call leaves it in place
// and only reports the error.
func (b *BoxController) Delete(ctx context.Context, messageID int64) error {
	b.mu.Lock()
	m, ok := b.store.Get(messageID)
	b.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	if m.SenderID != b.selfID {
		return domain.ErrForbidden
	}

	b.mu.Lock()
	b.store.ApplyDelete(messageID)
	b.mu.Unlock()

	if err := b.api.DeleteMessage(ctx, messageID); err != nil {
		log.Printf("chat: delete %d: %v", messageID, err)
		return fmt.Errorf("delete message: %w", err)
	}
	b.persist(ctx)
	return nil
}

// MarkRead marks the conversation read when it holds unseen peer
// messages. Safe to call repeatedly.
func (b *BoxController) MarkRead(ctx context.Context) error {
	b.mu.Lock()
	unseen := b.store.HasUnseenFromPeer()
	b.mu.Unlock()
	if !unseen {
		return nil
	}

	if err := b.api.MarkRead(ctx, b.conversationID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	b.tr.EmitMarkRead(b.conversationID)

	b.mu.Lock()
	b.store.MarkPeerSeen()
	b.mu.Unlock()

	if b.previews != nil {
		b.previews.MarkConversationSeen(b.conversationID)
	}
	return nil
}

// HandleNew routes a live new_message event into the store. Duplicates of
// the sender's own REST-driven insert are dropped by the store; a fresh
// peer message triggers the auto mark-read path since the user is looking
// at the conversation.
func (b *BoxController) HandleNew(ctx context.Context, m domain.Message) {
	if m.ConversationID != b.conversationID {
		return
	}
	b.mu.Lock()
	inserted := b.store.ApplyNew(m)
	b.mu.Unlock()
	if !inserted {
		return
	}

	if b.previews != nil {
		b.previews.ApplyPreviewUpdate(b.conversationID, m)
	}
	if m.SenderID != b.selfID {
		if err := b.MarkRead(ctx); err != nil {
			log.Printf("chat: mark read on incoming: %v", err)
		}
	}
	b.persist(ctx)
}

// HandleEdited routes a live message_edited event. Unknown ids are
// ignored without error.
func (b *BoxController) HandleEdited(ctx context.Context, e domain.MessageEdit) {
	if e.ConversationID != b.conversationID {
		return
	}
	b.mu.Lock()
	applied, ok := b.store.ApplyEdit(e)
	latest, hasLatest := b.store.Latest()
	b.mu.Unlock()
	if !ok {
		return
	}

	if hasLatest && latest.ID == applied.ID && b.previews != nil {
		b.previews.ApplyPreviewUpdate(b.conversationID, applied)
	}
	b.persist(ctx)
}

// HandleReadReceipt flips all of the current user's messages to seen.
func (b *BoxController) HandleReadReceipt(r domain.ReadReceipt) {
	if r.ConversationID != b.conversationID {
		return
	}
	b.mu.Lock()
	b.store.ApplyReadReceipt()
	b.mu.Unlock()

	if b.previews != nil {
		b.previews.MarkConversationSeen(b.conversationID)
	}
}

// Messages returns the render-ordered message list.
func (b *BoxController) Messages() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Messages()
}

func (b *BoxController) persist(ctx context.Context) {
	if b.cache == nil {
		return
	}
	b.mu.Lock()
	msgs := b.store.Messages()
	b.mu.Unlock()
	if err := b.cache.SaveMessages(ctx, b.conversationID, msgs); err != nil {
		log.Printf("chat: cache messages for %d: %v", b.conversationID, err)
	}
}
