package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumnichat/internal/api"
	"alumnichat/internal/domain"
	"alumnichat/internal/session"
)

const testToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJpZCI6MSwic3ViIjoiYW1hbCJ9.x"

func testSession(t *testing.T) *session.Session {
	t.Helper()
	return &session.Session{Token: testToken, UserID: 1, Username: "amal"}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// newFakeBackend mirrors the portal's /chat routes closely enough to
// exercise the client's wire handling.
func newFakeBackend(t *testing.T, configure func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+testToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	configure(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestListConversations(t *testing.T) {
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Get("/chat/conversations", func(w http.ResponseWriter, req *http.Request) {
			writeData(w, http.StatusOK, []map[string]any{
				{
					"chat_id":    10,
					"other_user": map[string]any{"id": 2, "name": "Lina", "avatar": "/a.png"},
					"last_message": map[string]any{
						"content":      "",
						"message_type": "pdf",
						"file_name":    "syllabus.pdf",
					},
					"unread_count":    3,
					"last_message_at": "2026-03-01T12:00:00Z",
				},
				{
					"chat_id":    11,
					"other_user": map[string]any{"id": 3, "name": "Omar"},
					"last_message": map[string]any{
						"content": "see you there",
					},
				},
			})
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
	convs, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, int64(10), convs[0].ID)
	assert.Equal(t, "Lina", convs[0].Other.Name)
	assert.Equal(t, "[PDF: syllabus.pdf]", convs[0].LastMessage.Content)
	assert.Equal(t, domain.KindPDF, convs[0].LastMessage.Kind)
	assert.Equal(t, 3, convs[0].UnreadCount)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), convs[0].LastMessageAt)

	assert.Equal(t, "see you there", convs[1].LastMessage.Content)
	assert.Equal(t, domain.KindText, convs[1].LastMessage.Kind)
}

func TestListMessages(t *testing.T) {
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Get("/chat/{chatID}/messages", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "10", chi.URLParam(req, "chatID"))
			writeData(w, http.StatusOK, map[string]any{
				"messages": []map[string]any{
					{
						"message_id": 2,
						"sender_id":  1,
						"content":    "later one",
						"status":     "delivered",
						"created_at": "2026-03-01T12:01:00Z",
					},
					{
						"message_id":      1,
						"sender_id":       2,
						"attachment_url":  "/uploads/pic.png",
						"attachment_name": "pic.png",
						"is_edited":       true,
						"created-at":      "2026-03-01T12:00:00Z",
					},
				},
			})
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
	msgs, err := client.ListMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The client does not reorder; that is the store's job.
	assert.Equal(t, int64(2), msgs[0].ID)
	assert.Equal(t, domain.StatusDelivered, msgs[0].Status)
	assert.Equal(t, int64(10), msgs[0].ConversationID)

	assert.Equal(t, int64(1), msgs[1].ID)
	assert.Equal(t, domain.KindImage, msgs[1].Kind)
	assert.True(t, msgs[1].Edited)
}

func TestCreateMessage(t *testing.T) {
	t.Run("TextOnlyBody", func(t *testing.T) {
		var gotBody map[string]any
		srv := newFakeBackend(t, func(r chi.Router) {
			r.Post("/chat/{chatID}/messages", func(w http.ResponseWriter, req *http.Request) {
				require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
				writeData(w, http.StatusCreated, map[string]any{
					"message_id": 42,
					"sender_id":  1,
					"content":    "hello",
					"created_at": "2026-03-01T12:00:00Z",
				})
			})
		})

		client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
		msg, err := client.CreateMessage(context.Background(), 10, "hello", 0)
		require.NoError(t, err)

		assert.Equal(t, "hello", gotBody["content"])
		replyTo, present := gotBody["reply_to_id"]
		assert.True(t, present)
		assert.Nil(t, replyTo)

		assert.Equal(t, int64(42), msg.ID)
		assert.Equal(t, int64(10), msg.ConversationID)
	})

	t.Run("ReplyTargetSerialized", func(t *testing.T) {
		var gotBody map[string]any
		srv := newFakeBackend(t, func(r chi.Router) {
			r.Post("/chat/{chatID}/messages", func(w http.ResponseWriter, req *http.Request) {
				require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
				writeData(w, http.StatusCreated, map[string]any{"message_id": 43})
			})
		})

		client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
		_, err := client.CreateMessage(context.Background(), 10, "answer", 7)
		require.NoError(t, err)
		assert.Equal(t, float64(7), gotBody["reply_to_id"])
	})
}

func TestCreateFileMessage(t *testing.T) {
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Post("/chat/{chatID}/messages/file", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, req.ParseMultipartForm(20<<20))

			file, header, err := req.FormFile("file")
			require.NoError(t, err)
			defer file.Close()

			data, err := io.ReadAll(file)
			require.NoError(t, err)
			assert.Equal(t, []byte("png-bytes"), data)
			assert.Equal(t, "photo.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
			// Attachment-only sends still carry a content field.
			assert.Equal(t, " ", req.FormValue("content"))

			writeData(w, http.StatusCreated, map[string]any{
				"message_id":      44,
				"attachment_url":  "/uploads/photo.png",
				"attachment_name": "photo.png",
			})
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
	msg, err := client.CreateFileMessage(context.Background(), 10, "", 0, domain.Attachment{
		Name: "photo.png",
		MIME: "image/png",
		Size: 9,
		Data: []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(44), msg.ID)
	assert.Equal(t, domain.KindImage, msg.Kind)
}

func TestEditAndDelete(t *testing.T) {
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Put("/chat/messages/{messageID}", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "42", chi.URLParam(req, "messageID"))
			writeData(w, http.StatusOK, map[string]any{
				"message_id": 42,
				"content":    "fixed",
				"is_edited":  true,
			})
		})
		r.Delete("/chat/messages/{messageID}", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "42", chi.URLParam(req, "messageID"))
			writeData(w, http.StatusOK, map[string]any{"deleted": true})
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)

	msg, err := client.EditMessage(context.Background(), 42, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", msg.Content)
	assert.True(t, msg.Edited)

	assert.NoError(t, client.DeleteMessage(context.Background(), 42))
}

func TestMarkRead(t *testing.T) {
	called := false
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Put("/chat/{chatID}/read", func(w http.ResponseWriter, req *http.Request) {
			called = true
			assert.Equal(t, "10", chi.URLParam(req, "chatID"))
			writeData(w, http.StatusOK, map[string]any{"marked": true})
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)
	assert.NoError(t, client.MarkRead(context.Background(), 10))
	assert.True(t, called)
}

func TestErrorMapping(t *testing.T) {
	srv := newFakeBackend(t, func(r chi.Router) {
		r.Get("/chat/{chatID}/messages", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		r.Delete("/chat/messages/{messageID}", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		r.Put("/chat/{chatID}/read", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"conversation is closed"}`))
		})
	})

	client := api.NewClient(srv.URL, testSession(t), 5*time.Second)

	_, err := client.ListMessages(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = client.DeleteMessage(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = client.MarkRead(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation is closed")
}
