// Package transport maintains the live connection to the chat gateway.
// One connection exists per session token; rooms scope event delivery to
// the conversations a client is actively viewing. Emits are best-effort:
// the REST response is the source of truth for the sender's own state, the
// gateway only informs other participants.
package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"alumnichat/internal/domain"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Client is the realtime gateway client. The zero value is not usable;
// construct with NewClient.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu           sync.Mutex
	state        connState
	token        string
	conn         *websocket.Conn
	pendingJoins []int64

	handlerMu      sync.RWMutex
	onNewMessage   []func(domain.Message)
	onEditedMsg    []func(domain.MessageEdit)
	onReadReceipts []func(domain.ReadReceipt)
}

// NewClient builds a client for the given gateway URL, e.g.
// "ws://localhost:5005/ws".
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

// Connect establishes the gateway connection in the background. It is
// idempotent per token: a live or in-flight connection for the same token
// is reused, a different token tears the old connection down first.
// A missing token is logged and ignored; callers must not assume delivery.
func (c *Client) Connect(token string) {
	if token == "" {
		log.Printf("transport: connect skipped, no token")
		return
	}

	c.mu.Lock()
	if c.token == token && c.state != stateDisconnected {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.token = token
	c.state = stateConnecting
	c.mu.Unlock()

	go c.dial(token)
}

func (c *Client) dial(token string) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := c.dialer.Dial(c.url, header)

	c.mu.Lock()
	if c.token != token || c.state != stateConnecting {
		// Disconnect or a newer Connect won the race.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.state = stateDisconnected
		c.mu.Unlock()
		log.Printf("transport: connect to %s failed: %v", c.url, err)
		return
	}
	c.conn = conn
	c.state = stateConnected
	joins := c.pendingJoins
	c.pendingJoins = nil
	c.mu.Unlock()

	// Flush joins queued while the dial was in flight, each exactly once.
	for _, id := range joins {
		c.send(map[string]any{"type": "join_chat", "chat_id": id})
	}

	go c.readLoop(conn)
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// JoinRoom subscribes to a conversation's events. Before any Connect it is
// a no-op; while the dial is still negotiating the join is deferred and
// issued exactly once on completion.
func (c *Client) JoinRoom(conversationID int64) {
	if conversationID == 0 {
		log.Printf("transport: join without conversation id")
		return
	}
	c.mu.Lock()
	switch c.state {
	case stateDisconnected:
		c.mu.Unlock()
		log.Printf("transport: join %d ignored, not connected", conversationID)
		return
	case stateConnecting:
		for _, id := range c.pendingJoins {
			if id == conversationID {
				c.mu.Unlock()
				return
			}
		}
		c.pendingJoins = append(c.pendingJoins, conversationID)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.send(map[string]any{"type": "join_chat", "chat_id": conversationID})
}

// LeaveRoom unsubscribes from a conversation's events. No-op when not
// connected.
func (c *Client) LeaveRoom(conversationID int64) {
	if conversationID == 0 || !c.Connected() {
		return
	}
	c.send(map[string]any{"type": "leave_chat", "chat_id": conversationID})
}

// EmitNewMessage informs other participants of a message already accepted
// by the REST API.
func (c *Client) EmitNewMessage(m domain.Message) {
	c.send(map[string]any{
		"type":            "send_message",
		"chat_id":         m.ConversationID,
		"message_id":      m.ID,
		"sender_id":       m.SenderID,
		"content":         m.Content,
		"message_type":    m.Kind,
		"attachment_url":  m.AttachmentURL,
		"attachment_name": m.AttachmentName,
		"created_at":      m.CreatedAt,
		"local_key":       m.LocalKey,
	})
}

// EmitEditedMessage broadcasts an accepted edit.
func (c *Client) EmitEditedMessage(e domain.MessageEdit) {
	c.send(map[string]any{
		"type":       "edit_message",
		"chat_id":    e.ConversationID,
		"message_id": e.MessageID,
		"content":    e.Content,
		"is_edited":  true,
	})
}

// EmitMarkRead tells the gateway the current user has read a conversation.
func (c *Client) EmitMarkRead(conversationID int64) {
	c.send(map[string]any{"type": "mark_read", "chat_id": conversationID})
}

// OnNewMessage registers a handler for new_message events. Handlers run on
// the connection's dispatch goroutine; duplicates are not filtered here,
// de-duplication is the message store's job.
func (c *Client) OnNewMessage(h func(domain.Message)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onNewMessage = append(c.onNewMessage, h)
}

// OnEditedMessage registers a handler for message_edited events.
func (c *Client) OnEditedMessage(h func(domain.MessageEdit)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onEditedMsg = append(c.onEditedMsg, h)
}

// OnReadReceipt registers a handler for message_seen / messages_read events.
func (c *Client) OnReadReceipt(h func(domain.ReadReceipt)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onReadReceipts = append(c.onReadReceipts, h)
}

// Disconnect tears the connection down and clears the cached token, so a
// later Connect with a different token dials fresh.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.token = ""
	c.state = stateDisconnected
	c.pendingJoins = nil
}

// send writes one frame, best-effort. Write errors are logged only; the
// next history fetch is the recovery path for missed traffic.
func (c *Client) send(frame map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		log.Printf("transport: dropping %v frame, not connected", frame["type"])
		return
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		log.Printf("transport: write %v frame: %v", frame["type"], err)
	}
}

type eventFrame struct {
	Type string `json:"type"`
}

type readEvent struct {
	ConversationID int64 `json:"chat_id"`
	UserID         int64 `json:"user_id"`
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.state = stateDisconnected
		}
		c.mu.Unlock()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("transport: connection closed: %v", err)
			return
		}

		var frame eventFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("transport: malformed frame: %v", err)
			continue
		}

		switch frame.Type {
		case "new_message":
			msg, err := domain.UnmarshalWireMessage(raw)
			if err != nil {
				log.Printf("transport: new_message: %v", err)
				continue
			}
			c.handlerMu.RLock()
			handlers := c.onNewMessage
			c.handlerMu.RUnlock()
			for _, h := range handlers {
				h(msg)
			}

		case "message_edited":
			var w domain.WireMessage
			if err := json.Unmarshal(raw, &w); err != nil {
				log.Printf("transport: message_edited: %v", err)
				continue
			}
			edit := domain.MessageEdit{
				MessageID:      w.MessageID,
				ConversationID: w.ConversationID,
				Content:        w.Content,
				Edited:         true,
			}
			c.handlerMu.RLock()
			handlers := c.onEditedMsg
			c.handlerMu.RUnlock()
			for _, h := range handlers {
				h(edit)
			}

		case "message_seen", "messages_read":
			var ev readEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Printf("transport: %s: %v", frame.Type, err)
				continue
			}
			receipt := domain.ReadReceipt{ConversationID: ev.ConversationID, UserID: ev.UserID}
			c.handlerMu.RLock()
			handlers := c.onReadReceipts
			c.handlerMu.RUnlock()
			for _, h := range handlers {
				h(receipt)
			}

		default:
			log.Printf("transport: unknown event type %q", frame.Type)
		}
	}
}
