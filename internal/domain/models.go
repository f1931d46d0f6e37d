package domain

import "time"

// MessageKind classifies a message by its payload.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindPDF   MessageKind = "pdf"
	KindFile  MessageKind = "file"
)

// DeliveryStatus is the client-side vocabulary for message delivery.
// The backend reports "delivered"/"read"; anything else collapses to sent.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusSeen      DeliveryStatus = "seen"
)

// DeletedPlaceholder replaces the body of a soft-deleted message.
const DeletedPlaceholder = "[Message deleted]"

// Participant is the other side of a direct conversation, denormalized
// from the conversation list. Staleness is accepted.
type Participant struct {
	ID     int64
	Name   string
	Avatar string
}

// Preview is the last-message summary shown in the conversation list.
type Preview struct {
	Content  string
	Kind     MessageKind
	FileName string
	Status   DeliveryStatus
}

// Conversation is a direct chat channel between the current user and one peer.
type Conversation struct {
	ID            int64
	Other         Participant
	LastMessage   Preview
	UnreadCount   int
	LastMessageAt time.Time
}

// ReplyRef is a denormalized snippet of the message being replied to.
// It is resolved once, against whatever copy is locally available, and is
// not refreshed if the target is later edited or deleted.
type ReplyRef struct {
	MessageID int64
	SenderID  int64
	Content   string
}

// Message is a single chat entry within a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	Kind           MessageKind
	AttachmentURL  string
	AttachmentName string
	ReplyToID      int64
	ReplyTo        *ReplyRef
	Edited         bool
	Deleted        bool
	Status         DeliveryStatus
	CreatedAt      time.Time

	// LocalKey identifies an optimistic record before the server id is
	// known, so a transport echo can still be reconciled.
	LocalKey string
}

// MessageEdit is the payload of a message_edited transport event.
type MessageEdit struct {
	MessageID      int64
	ConversationID int64
	Content        string
	Edited         bool
}

// ReadReceipt is the payload of a message_seen / messages_read event.
type ReadReceipt struct {
	ConversationID int64
	UserID         int64
}

// Attachment is a file staged for sending.
type Attachment struct {
	Name string
	MIME string
	Size int64
	Data []byte
}
