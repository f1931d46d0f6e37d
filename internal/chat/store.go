// Package chat holds the client-side chat core: the per-conversation
// message store and the two controllers that mediate between the REST API,
// the realtime transport, and the rendered state.
package chat

import (
	"sort"

	"alumnichat/internal/domain"
)

// Store is the ordered, de-duplicated message collection for one open
// conversation. Records arrive from two independent sources, the history
// fetch and live transport events; the server-assigned identifier is the
// sole de-duplication key between them, with the optimistic local key as a
// fallback while an id is still unknown.
type Store struct {
	conversationID int64
	selfID         int64

	messages  []domain.Message // kept sorted by CreatedAt ascending
	ids       map[int64]struct{}
	localKeys map[string]struct{}
}

// NewStore builds an empty store for one conversation. selfID is the
// current user, needed for read-receipt batching.
func NewStore(conversationID, selfID int64) *Store {
	return &Store{
		conversationID: conversationID,
		selfID:         selfID,
		ids:            make(map[int64]struct{}),
		localKeys:      make(map[string]struct{}),
	}
}

// ConversationID returns the conversation this store belongs to.
func (s *Store) ConversationID() int64 { return s.conversationID }

// Load replaces the store contents with a freshly fetched history batch.
// Reply targets are resolved within the batch; arrival order is not
// trusted, rendering order is by creation timestamp.
func (s *Store) Load(msgs []domain.Message) {
	s.messages = s.messages[:0]
	s.ids = make(map[int64]struct{}, len(msgs))
	s.localKeys = make(map[string]struct{})

	byID := make(map[int64]*domain.Message, len(msgs))
	for i := range msgs {
		byID[msgs[i].ID] = &msgs[i]
	}
	for _, m := range msgs {
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		if m.ReplyTo == nil && m.ReplyToID != 0 {
			if target, ok := byID[m.ReplyToID]; ok {
				m.ReplyTo = &domain.ReplyRef{
					MessageID: target.ID,
					SenderID:  target.SenderID,
					Content:   target.Content,
				}
			}
		}
		s.ids[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

// ApplyNew inserts a message arriving from either source. Returns false
// when the record is a duplicate: same server id, or same local key as an
// optimistic record already present (the REST insert racing the transport
// echo of the same send).
func (s *Store) ApplyNew(m domain.Message) bool {
	if m.ID != 0 {
		if _, dup := s.ids[m.ID]; dup {
			return false
		}
	}
	if m.LocalKey != "" {
		if _, dup := s.localKeys[m.LocalKey]; dup {
			// Echo of an optimistic record; adopt the server id if the
			// original is still waiting for one.
			if m.ID != 0 {
				for i := range s.messages {
					if s.messages[i].LocalKey == m.LocalKey && s.messages[i].ID == 0 {
						s.messages[i].ID = m.ID
						s.ids[m.ID] = struct{}{}
						break
					}
				}
			}
			return false
		}
	}

	if m.ReplyTo == nil && m.ReplyToID != 0 {
		if target, ok := s.byID(m.ReplyToID); ok {
			m.ReplyTo = &domain.ReplyRef{
				MessageID: target.ID,
				SenderID:  target.SenderID,
				Content:   target.Content,
			}
		}
	}

	if m.ID != 0 {
		s.ids[m.ID] = struct{}{}
	}
	if m.LocalKey != "" {
		s.localKeys[m.LocalKey] = struct{}{}
	}
	s.insertSorted(m)
	return true
}

// ApplyEdit updates the body and edited flag of a known message in place,
// preserving identifier, timestamp, and position. An edit for an unknown
// id is ignored; an edit for a tombstone is rejected.
func (s *Store) ApplyEdit(e domain.MessageEdit) (domain.Message, bool) {
	for i := range s.messages {
		if s.messages[i].ID != e.MessageID {
			continue
		}
		if s.messages[i].Deleted {
			return domain.Message{}, false
		}
		s.messages[i].Content = e.Content
		s.messages[i].Edited = true
		return s.messages[i], true
	}
	return domain.Message{}, false
}

// ApplyDelete tombstones a message: identifier and timestamp stay, the
// body becomes the deletion placeholder. Already-resolved reply snippets
// pointing at it keep their captured content.
func (s *Store) ApplyDelete(messageID int64) (domain.Message, bool) {
	for i := range s.messages {
		if s.messages[i].ID != messageID {
			continue
		}
		s.messages[i].Deleted = true
		s.messages[i].Content = domain.DeletedPlaceholder
		return s.messages[i], true
	}
	return domain.Message{}, false
}

// ApplyReadReceipt flips every message authored by the current user to
// seen, as one batch. Returns how many messages changed.
func (s *Store) ApplyReadReceipt() int {
	changed := 0
	for i := range s.messages {
		if s.messages[i].SenderID == s.selfID && s.messages[i].Status != domain.StatusSeen {
			s.messages[i].Status = domain.StatusSeen
			changed++
		}
	}
	return changed
}

// MarkPeerSeen flips every peer-authored message to seen after a
// successful mark-read call, so the trigger condition clears.
func (s *Store) MarkPeerSeen() int {
	changed := 0
	for i := range s.messages {
		if s.messages[i].SenderID != s.selfID && s.messages[i].Status != domain.StatusSeen {
			s.messages[i].Status = domain.StatusSeen
			changed++
		}
	}
	return changed
}

// Get returns a message by server id.
func (s *Store) Get(messageID int64) (domain.Message, bool) {
	if m, ok := s.byID(messageID); ok {
		return *m, true
	}
	return domain.Message{}, false
}

// Messages returns the render-ordered list as a copy.
func (s *Store) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int { return len(s.messages) }

// Latest returns the most recent message, if any.
func (s *Store) Latest() (domain.Message, bool) {
	if len(s.messages) == 0 {
		return domain.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// HasUnseenFromPeer reports whether any message from the other participant
// has not yet been marked seen.
func (s *Store) HasUnseenFromPeer() bool {
	for i := range s.messages {
		if s.messages[i].SenderID != s.selfID && s.messages[i].Status != domain.StatusSeen {
			return true
		}
	}
	return false
}

func (s *Store) byID(messageID int64) (*domain.Message, bool) {
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			return &s.messages[i], true
		}
	}
	return nil, false
}

func (s *Store) insertSorted(m domain.Message) {
	pos := len(s.messages)
	for pos > 0 && s.messages[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = m
}
