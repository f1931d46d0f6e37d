// Package api is the typed client for the portal's /chat REST endpoints.
// Responses arrive under a {"data": ...} envelope and are normalized into
// the canonical domain shapes before they leave this package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"alumnichat/internal/domain"
	"alumnichat/internal/session"
)

// Client talks to the chat REST API on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Session
}

// NewClient builds a client for the given API base URL, e.g.
// "http://localhost:5005/api". A zero timeout disables the client-side
// request deadline.
func NewClient(baseURL string, sess *session.Session, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		sess:    sess,
	}
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type messagesPayload struct {
	Messages []domain.WireMessage `json:"messages"`
}

type wireOtherUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type wireConversation struct {
	ChatID        int64               `json:"chat_id"`
	OtherUser     wireOtherUser       `json:"other_user"`
	LastMessage   *domain.WireMessage `json:"last_message"`
	UnreadCount   int                 `json:"unread_count"`
	LastMessageAt string              `json:"last_message_at"`
}

// ListConversations fetches the conversation list with last-message
// previews and unread counts.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	raw, err := c.do(ctx, http.MethodGet, "/chat/conversations", "", nil)
	if err != nil {
		return nil, err
	}
	var wires []wireConversation
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", domain.ErrMalformedResponse)
	}

	convs := make([]domain.Conversation, 0, len(wires))
	for _, w := range wires {
		conv := domain.Conversation{
			ID: w.ChatID,
			Other: domain.Participant{
				ID:     w.OtherUser.ID,
				Name:   w.OtherUser.Name,
				Avatar: w.OtherUser.Avatar,
			},
			UnreadCount: w.UnreadCount,
		}
		if w.LastMessage != nil {
			last := w.LastMessage.Normalize()
			conv.LastMessage = domain.Preview{
				Content:  domain.PreviewLabel(last.Kind, last.Content, last.AttachmentName),
				Kind:     last.Kind,
				FileName: last.AttachmentName,
				Status:   last.Status,
			}
		}
		if w.LastMessageAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, w.LastMessageAt); err == nil {
				conv.LastMessageAt = t
			}
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// ListMessages fetches the full history of one conversation. Ordering is
// not trusted; the store sorts by creation time.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/%d/messages", conversationID), "", nil)
	if err != nil {
		return nil, err
	}
	var payload messagesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode messages: %w", domain.ErrMalformedResponse)
	}

	msgs := make([]domain.Message, 0, len(payload.Messages))
	for _, w := range payload.Messages {
		m := w.Normalize()
		m.ConversationID = conversationID
		msgs = append(msgs, m)
	}
	return msgs, nil
}

type messageCreateRequest struct {
	Content   string `json:"content"`
	ReplyToID *int64 `json:"reply_to_id"`
}

// CreateMessage posts a text-only message. replyToID of zero means no
// reply target; the backend expects an explicit null in that case.
func (c *Client) CreateMessage(ctx context.Context, conversationID int64, content string, replyToID int64) (domain.Message, error) {
	req := messageCreateRequest{Content: content}
	if replyToID != 0 {
		req.ReplyToID = &replyToID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/%d/messages", conversationID), "application/json", bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	return c.decodeCreated(raw, conversationID)
}

// CreateFileMessage posts a message with an attachment as multipart form
// data. Attachment validation happens before this call.
func (c *Client) CreateFileMessage(ctx context.Context, conversationID int64, content string, replyToID int64, att domain.Attachment) (domain.Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
	header.Set("Content-Type", att.MIME)
	part, err := mw.CreatePart(header)
	if err != nil {
		return domain.Message{}, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(att.Data); err != nil {
		return domain.Message{}, fmt.Errorf("write attachment: %w", err)
	}

	// The backend rejects an absent content field, so an attachment-only
	// message carries a single space.
	if content == "" {
		content = " "
	}
	if err := mw.WriteField("content", content); err != nil {
		return domain.Message{}, fmt.Errorf("write content field: %w", err)
	}
	if replyToID != 0 {
		if err := mw.WriteField("reply_to_id", strconv.FormatInt(replyToID, 10)); err != nil {
			return domain.Message{}, fmt.Errorf("write reply field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return domain.Message{}, fmt.Errorf("close multipart: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/%d/messages/file", conversationID), mw.FormDataContentType(), &buf)
	if err != nil {
		return domain.Message{}, err
	}
	return c.decodeCreated(raw, conversationID)
}

type messageEditRequest struct {
	Content string `json:"content"`
}

// EditMessage updates the body of a message authored by the current user.
func (c *Client) EditMessage(ctx context.Context, messageID int64, content string) (domain.Message, error) {
	body, err := json.Marshal(messageEditRequest{Content: content})
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode edit: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/chat/messages/%d", messageID), "application/json", bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	return c.decodeCreated(raw, 0)
}

// DeleteMessage soft-deletes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/chat/messages/%d", messageID), "", nil)
	return err
}

// MarkRead marks every message in the conversation as read for the
// current user. Repeated calls are harmless.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/chat/%d/read", conversationID), "", nil)
	return err
}

func (c *Client) decodeCreated(raw json.RawMessage, conversationID int64) (domain.Message, error) {
	m, err := domain.UnmarshalWireMessage(raw)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode created message: %w", domain.ErrMalformedResponse)
	}
	if m.ConversationID == 0 {
		m.ConversationID = conversationID
	}
	return m, nil
}

// do performs one request and unwraps the data envelope.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrForbidden
	case resp.StatusCode >= 400:
		var env envelope
		if err := json.Unmarshal(payload, &env); err == nil && env.Message != "" {
			return nil, fmt.Errorf("%s %s: %s", method, path, env.Message)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if len(payload) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", domain.ErrMalformedResponse)
	}
	return env.Data, nil
}
