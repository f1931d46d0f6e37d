package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"alumnichat/internal/domain"
)

type MockListAPI struct {
	mock.Mock
}

func (m *MockListAPI) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockListAPI) MarkRead(ctx context.Context, conversationID int64) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func sampleConversations() []domain.Conversation {
	return []domain.Conversation{
		{
			ID:          10,
			Other:       domain.Participant{ID: 2, Name: "Lina"},
			LastMessage: domain.Preview{Content: "see you there", Kind: domain.KindText, Status: domain.StatusSent},
			UnreadCount: 3,
		},
		{
			ID:          11,
			Other:       domain.Participant{ID: 3, Name: "Omar"},
			LastMessage: domain.Preview{Content: "[Image]", Kind: domain.KindImage, Status: domain.StatusSeen},
		},
	}
}

func TestListLoad(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		apiMock := new(MockListAPI)
		apiMock.On("ListConversations", mock.Anything).Return(sampleConversations(), nil)

		l := NewListController(apiMock, nil)
		assert.NoError(t, l.Load(context.Background()))
		assert.Len(t, l.Conversations(), 2)
	})

	t.Run("FailureWithoutCache", func(t *testing.T) {
		apiMock := new(MockListAPI)
		apiMock.On("ListConversations", mock.Anything).Return(nil, errors.New("backend down"))

		l := NewListController(apiMock, nil)
		assert.Error(t, l.Load(context.Background()))
		assert.Empty(t, l.Conversations())
	})
}

func TestListSelectResetsUnreadImmediately(t *testing.T) {
	apiMock := new(MockListAPI)
	apiMock.On("ListConversations", mock.Anything).Return(sampleConversations(), nil)
	// Mark-read failing does not restore the counter.
	apiMock.On("MarkRead", mock.Anything, int64(10)).Return(errors.New("timeout"))

	l := NewListController(apiMock, nil)
	assert.NoError(t, l.Load(context.Background()))

	conv, ok := l.Select(context.Background(), 10)
	assert.True(t, ok)
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Equal(t, int64(10), l.ActiveID())

	got, _ := l.Get(10)
	assert.Equal(t, 0, got.UnreadCount)
}

func TestListApplyPreviewUpdate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	apiMock := new(MockListAPI)
	apiMock.On("ListConversations", mock.Anything).Return(sampleConversations(), nil)

	l := NewListController(apiMock, nil)
	assert.NoError(t, l.Load(context.Background()))

	t.Run("TextVerbatim", func(t *testing.T) {
		m := msgAt(42, 2, "fresh message", base)
		l.ApplyPreviewUpdate(10, m)

		got, _ := l.Get(10)
		assert.Equal(t, "fresh message", got.LastMessage.Content)
		assert.Equal(t, 0, got.UnreadCount)
		assert.Equal(t, base, got.LastMessageAt)
	})

	t.Run("AttachmentKindLabel", func(t *testing.T) {
		m := msgAt(43, 2, "", base.Add(time.Minute))
		m.Kind = domain.KindPDF
		m.AttachmentName = "syllabus.pdf"
		l.ApplyPreviewUpdate(10, m)

		got, _ := l.Get(10)
		assert.Equal(t, "[PDF: syllabus.pdf]", got.LastMessage.Content)
		assert.Equal(t, "syllabus.pdf", got.LastMessage.FileName)
	})

	t.Run("UnknownConversationIgnored", func(t *testing.T) {
		l.ApplyPreviewUpdate(99, msgAt(44, 2, "ghost", base))
		assert.Len(t, l.Conversations(), 2)
	})
}

func TestListMarkConversationSeen(t *testing.T) {
	apiMock := new(MockListAPI)
	apiMock.On("ListConversations", mock.Anything).Return(sampleConversations(), nil)

	l := NewListController(apiMock, nil)
	assert.NoError(t, l.Load(context.Background()))

	l.MarkConversationSeen(10)
	got, _ := l.Get(10)
	assert.Equal(t, domain.StatusSeen, got.LastMessage.Status)
	assert.Equal(t, 0, got.UnreadCount)
}
