package main

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"alumnichat/internal/api"
	"alumnichat/internal/chat"
	"alumnichat/internal/config"
	"alumnichat/internal/domain"
	"alumnichat/internal/session"
	"alumnichat/internal/store/sqlite"
	"alumnichat/internal/transport"
	"alumnichat/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sess, err := session.FromToken(cfg.Token)
	if err != nil {
		log.Fatalf("invalid session token: %v", err)
	}

	db, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("failed to migrate cache: %v", err)
	}
	cache := sqlite.NewCache(db)

	apiClient := api.NewClient(cfg.APIBaseURL, sess, time.Duration(cfg.RequestTimeoutSeconds)*time.Second)

	gateway := transport.NewClient(cfg.GatewayURL)
	gateway.Connect(sess.Token)
	defer gateway.Disconnect()

	list := chat.NewListController(apiClient, cache)
	if err := list.Load(context.Background()); err != nil {
		log.Fatalf("failed to load conversations: %v", err)
	}

	newBox := func(conv domain.Conversation) *chat.BoxController {
		return chat.NewBoxController(apiClient, gateway, cache, list, conv, sess.UserID)
	}

	// Gateway events flow into the UI loop through one channel; the UI
	// routes them to whichever conversation is open.
	events := make(chan tea.Msg, 64)
	gateway.OnNewMessage(func(m domain.Message) {
		events <- ui.NewMessageMsg{Message: m}
	})
	gateway.OnEditedMessage(func(e domain.MessageEdit) {
		events <- ui.EditedMsg{Edit: e}
	})
	gateway.OnReadReceipt(func(r domain.ReadReceipt) {
		events <- ui.ReceiptMsg{Receipt: r}
	})

	program := tea.NewProgram(ui.New(list, newBox, events), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("ui error: %v", err)
	}
}
