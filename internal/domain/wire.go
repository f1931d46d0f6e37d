package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// WireMessage is a message record as the backend sends it, either in a REST
// response or inside a transport event. Several generations of the backend
// disagree on field names; every variant is declared here and collapsed by
// Normalize.
type WireMessage struct {
	MessageID      int64      `json:"message_id"`
	ConversationID int64      `json:"chat_id"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	MessageType    string     `json:"message_type"`
	AttachmentURL  string     `json:"attachment_url"`
	FileURL        string     `json:"file_url"`
	AttachmentName string     `json:"attachment_name"`
	FileName       string     `json:"file_name"`
	ReplyToID      int64      `json:"reply_to_message_id"`
	ReplyTo        *WireReply `json:"replyTo"`
	IsEdited       bool       `json:"is_edited"`
	IsDeleted      bool       `json:"is_deleted"`
	Status         string     `json:"status"`
	CreatedAtDash  string     `json:"created-at"`
	CreatedAt      string     `json:"created_at"`
	CreatedAtCamel string     `json:"createdAt"`
	LocalKey       string     `json:"local_key"`
}

// WireReply is the reply snippet some backend responses embed directly.
type WireReply struct {
	MessageID int64  `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
}

// Normalize collapses the wire record into the canonical Message shape.
// Reply targets are left as ReplyToID plus the embedded snippet (if any);
// resolution against locally known messages is the store's job.
func (w WireMessage) Normalize() Message {
	m := Message{
		ID:             w.MessageID,
		ConversationID: w.ConversationID,
		SenderID:       w.SenderID,
		Content:        w.Content,
		AttachmentURL:  firstNonEmpty(w.AttachmentURL, w.FileURL),
		AttachmentName: firstNonEmpty(w.AttachmentName, w.FileName),
		ReplyToID:      w.ReplyToID,
		Edited:         w.IsEdited,
		Deleted:        w.IsDeleted,
		Status:         NormalizeStatus(w.Status),
		CreatedAt:      parseWireTime(w.CreatedAtDash, w.CreatedAt, w.CreatedAtCamel),
		LocalKey:       w.LocalKey,
	}
	m.Kind = DetectKind(w.MessageType, m.AttachmentURL)
	if w.ReplyTo != nil {
		m.ReplyTo = &ReplyRef{
			MessageID: w.ReplyTo.MessageID,
			SenderID:  w.ReplyTo.SenderID,
			Content:   w.ReplyTo.Content,
		}
		if m.ReplyToID == 0 {
			m.ReplyToID = w.ReplyTo.MessageID
		}
	}
	return m
}

// UnmarshalWireMessage decodes a raw backend message record.
func UnmarshalWireMessage(data []byte) (Message, error) {
	var w WireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return w.Normalize(), nil
}

// NormalizeStatus maps the backend delivery vocabulary to the client one.
func NormalizeStatus(status string) DeliveryStatus {
	switch status {
	case "read", "seen":
		return StatusSeen
	case "delivered":
		return StatusDelivered
	default:
		return StatusSent
	}
}

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// DetectKind derives the message kind from the explicit backend field when
// present, otherwise from the attachment URL.
func DetectKind(messageType, attachmentURL string) MessageKind {
	switch MessageKind(messageType) {
	case KindText, KindImage, KindPDF, KindFile:
		return MessageKind(messageType)
	}
	if attachmentURL == "" {
		return KindText
	}
	if imageExtPattern.MatchString(attachmentURL) {
		return KindImage
	}
	if strings.HasSuffix(strings.ToLower(attachmentURL), ".pdf") {
		return KindPDF
	}
	return KindFile
}

// KindForMIME classifies a staged attachment by its content type.
func KindForMIME(mime string) MessageKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case mime == "application/pdf":
		return KindPDF
	default:
		return KindFile
	}
}

// PreviewLabel renders the conversation-list summary for a message: plain
// text verbatim, attachments as a kind label with the filename.
func PreviewLabel(kind MessageKind, content, fileName string) string {
	switch kind {
	case KindImage:
		return "[Image]"
	case KindPDF:
		return fmt.Sprintf("[PDF: %s]", fileName)
	case KindFile:
		return fmt.Sprintf("[File: %s]", fileName)
	default:
		return content
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseWireTime(candidates ...string) time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, c); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
