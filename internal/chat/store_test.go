package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"alumnichat/internal/domain"
)

const (
	selfID = int64(1)
	peerID = int64(2)
	convID = int64(10)
)

func msgAt(id int64, sender int64, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
		Kind:           domain.KindText,
		Status:         domain.StatusSent,
		CreatedAt:      at,
	}
}

func TestStoreDeduplication(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RESTThenTransport", func(t *testing.T) {
		s := NewStore(convID, selfID)
		m := msgAt(42, selfID, "hello", base)

		assert.True(t, s.ApplyNew(m))
		assert.False(t, s.ApplyNew(m))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("TransportThenREST", func(t *testing.T) {
		s := NewStore(convID, selfID)
		m := msgAt(42, selfID, "hello", base)

		assert.True(t, s.ApplyNew(m))
		// Echo arriving 200ms later with the same identifier.
		echo := m
		echo.CreatedAt = base.Add(200 * time.Millisecond)
		assert.False(t, s.ApplyNew(echo))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("LocalKeyFallback", func(t *testing.T) {
		s := NewStore(convID, selfID)
		optimistic := msgAt(0, selfID, "hello", base)
		optimistic.LocalKey = "abc-123"
		assert.True(t, s.ApplyNew(optimistic))

		echo := msgAt(42, selfID, "hello", base)
		echo.LocalKey = "abc-123"
		assert.False(t, s.ApplyNew(echo))
		assert.Equal(t, 1, s.Len())

		// The optimistic record adopted the server id.
		got, ok := s.Get(42)
		assert.True(t, ok)
		assert.Equal(t, "hello", got.Content)
	})
}

func TestStoreOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)

	t.Run("LoadOutOfOrder", func(t *testing.T) {
		s := NewStore(convID, selfID)
		s.Load([]domain.Message{
			msgAt(3, peerID, "third", t3),
			msgAt(1, selfID, "first", t1),
			msgAt(2, peerID, "second", t2),
		})

		msgs := s.Messages()
		assert.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)
		assert.Equal(t, "third", msgs[2].Content)
	})

	t.Run("LiveInsertOutOfOrder", func(t *testing.T) {
		s := NewStore(convID, selfID)
		s.ApplyNew(msgAt(3, peerID, "third", t3))
		s.ApplyNew(msgAt(1, selfID, "first", t1))
		s.ApplyNew(msgAt(2, peerID, "second", t2))

		msgs := s.Messages()
		assert.Equal(t, []int64{1, 2, 3}, []int64{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	})
}

func TestStoreTombstone(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(convID, selfID)
	s.ApplyNew(msgAt(42, selfID, "delete me", base))

	deleted, ok := s.ApplyDelete(42)
	assert.True(t, ok)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, int64(42), deleted.ID)
	assert.Equal(t, base, deleted.CreatedAt)
	assert.Equal(t, domain.DeletedPlaceholder, deleted.Content)

	// Edits on a tombstone are rejected.
	_, ok = s.ApplyEdit(domain.MessageEdit{MessageID: 42, ConversationID: convID, Content: "sneaky"})
	assert.False(t, ok)

	got, _ := s.Get(42)
	assert.Equal(t, domain.DeletedPlaceholder, got.Content)
}

func TestStoreEditKeepsIdentityAndPosition(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(convID, selfID)
	s.ApplyNew(msgAt(1, selfID, "one", base))
	s.ApplyNew(msgAt(2, selfID, "two", base.Add(time.Minute)))

	updated, ok := s.ApplyEdit(domain.MessageEdit{MessageID: 1, ConversationID: convID, Content: "one, edited"})
	assert.True(t, ok)
	assert.Equal(t, int64(1), updated.ID)
	assert.Equal(t, base, updated.CreatedAt)
	assert.True(t, updated.Edited)

	msgs := s.Messages()
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, "one, edited", msgs[0].Content)
}

func TestStoreEditUnknownIDIgnored(t *testing.T) {
	s := NewStore(convID, selfID)
	_, ok := s.ApplyEdit(domain.MessageEdit{MessageID: 99, ConversationID: convID, Content: "ghost"})
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreReadReceiptBatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(convID, selfID)
	s.ApplyNew(msgAt(1, selfID, "mine", base))
	s.ApplyNew(msgAt(2, peerID, "theirs", base.Add(time.Second)))
	s.ApplyNew(msgAt(3, selfID, "mine too", base.Add(2*time.Second)))

	changed := s.ApplyReadReceipt()
	assert.Equal(t, 2, changed)

	for _, m := range s.Messages() {
		if m.SenderID == selfID {
			assert.Equal(t, domain.StatusSeen, m.Status)
		} else {
			assert.Equal(t, domain.StatusSent, m.Status)
		}
	}

	// All-or-nothing transition is idempotent.
	assert.Equal(t, 0, s.ApplyReadReceipt())
}

func TestStoreReplyResolution(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("WithinLoadBatch", func(t *testing.T) {
		s := NewStore(convID, selfID)
		target := msgAt(1, peerID, "original", base)
		reply := msgAt(2, selfID, "responding", base.Add(time.Minute))
		reply.ReplyToID = 1
		s.Load([]domain.Message{reply, target})

		msgs := s.Messages()
		assert.NotNil(t, msgs[1].ReplyTo)
		assert.Equal(t, "original", msgs[1].ReplyTo.Content)
		assert.Equal(t, peerID, msgs[1].ReplyTo.SenderID)
	})

	t.Run("LiveInsertAgainstKnownTarget", func(t *testing.T) {
		s := NewStore(convID, selfID)
		s.ApplyNew(msgAt(1, peerID, "original", base))

		reply := msgAt(2, selfID, "responding", base.Add(time.Minute))
		reply.ReplyToID = 1
		s.ApplyNew(reply)

		got, _ := s.Get(2)
		assert.NotNil(t, got.ReplyTo)
		assert.Equal(t, "original", got.ReplyTo.Content)
	})

	t.Run("EmbeddedSnippetFallback", func(t *testing.T) {
		s := NewStore(convID, selfID)
		reply := msgAt(2, selfID, "responding", base)
		reply.ReplyToID = 99
		reply.ReplyTo = &domain.ReplyRef{MessageID: 99, SenderID: peerID, Content: "not fetched"}
		s.ApplyNew(reply)

		got, _ := s.Get(2)
		assert.NotNil(t, got.ReplyTo)
		assert.Equal(t, "not fetched", got.ReplyTo.Content)
	})

	t.Run("DeletedTargetKeepsSnippet", func(t *testing.T) {
		s := NewStore(convID, selfID)
		s.ApplyNew(msgAt(1, selfID, "will be deleted", base))
		reply := msgAt(2, peerID, "quoting", base.Add(time.Minute))
		reply.ReplyToID = 1
		s.ApplyNew(reply)

		s.ApplyDelete(1)

		got, _ := s.Get(2)
		assert.NotNil(t, got.ReplyTo)
		assert.Equal(t, "will be deleted", got.ReplyTo.Content)
	})
}

func TestStoreHasUnseenFromPeer(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(convID, selfID)
	assert.False(t, s.HasUnseenFromPeer())

	s.ApplyNew(msgAt(1, peerID, "hi", base))
	assert.True(t, s.HasUnseenFromPeer())

	s.MarkPeerSeen()
	assert.False(t, s.HasUnseenFromPeer())
}
