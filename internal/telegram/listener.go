package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/repository"
	"wtb-relay-go/internal/reputation"
	"wtb-relay-go/internal/service"
)

// Relay is what the listener forwards updates to
type Relay interface {
	OnNewMessage(ctx context.Context, ev service.NewMessage) (*service.Outcome, error)
	OnReaction(ctx context.Context, ev service.ReactionEvent) (*reputation.Outcome, error)
	ContactCard(ctx context.Context, payload string) (*service.Card, error)
}

// Callback answers shown to the reactor
var reactionAnswers = map[string]string{
	repository.ToggleAdded:    "Saved ✅",
	repository.ToggleRemoved:  "Removed ↩️",
	repository.ToggleSwitched: "Switched 🔁",
}

// Listener turns Bot API updates into relay events
type Listener struct {
	client  Client
	relay   Relay
	watched func(chatID int64) bool
	workers int
	replies *ReplyTracker
}

// NewListener creates a listener. watched decides which group chats are ingested.
func NewListener(client Client, relay Relay, watched func(chatID int64) bool, workers int) *Listener {
	if workers <= 0 {
		workers = 1
	}
	return &Listener{
		client:  client,
		relay:   relay,
		watched: watched,
		workers: workers,
		replies: NewReplyTracker(client),
	}
}

// Run consumes updates with a bounded pool of workers until ctx is done
// or the channel is closed
func (l *Listener) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case u, ok := <-updates:
					if !ok {
						return
					}
					l.HandleUpdate(ctx, u)
				}
			}
		}()
	}
	logrus.Infof("Telegram listener started with %d workers", l.workers)
	wg.Wait()
	logrus.Info("Telegram listener stopped")
}

// HandleUpdate dispatches one update
func (l *Listener) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		l.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.Chat != nil && u.Message.Chat.IsPrivate():
		if u.Message.IsCommand() && u.Message.Command() == "start" {
			l.handleStart(ctx, u.Message)
		}
	case u.Message != nil:
		l.handleGroupMessage(ctx, u.Message)
	}
}

func (l *Listener) handleGroupMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil || m.From == nil || m.From.IsBot || !l.watched(m.Chat.ID) {
		return
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return
	}

	ev := service.NewMessage{
		ChatID:       m.Chat.ID,
		MessageID:    int64(m.MessageID),
		SenderID:     m.From.ID,
		SenderName:   m.From.UserName,
		ChatUsername: m.Chat.UserName,
		ChatTitle:    m.Chat.Title,
		Text:         text,
		SentAt:       m.Time().UTC(),
	}
	if m.ReplyToMessage != nil {
		id := int64(m.ReplyToMessage.MessageID)
		ev.ReplyToMsgID = &id
	}

	if _, err := l.relay.OnNewMessage(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"chat_id":    ev.ChatID,
			"message_id": ev.MessageID,
		}).Error("Failed to process chat message")
	}
}

func (l *Listener) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	answer := "Error"
	defer func() {
		if _, err := l.client.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
			logrus.WithError(err).Debug("Failed to answer callback")
		}
	}()

	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		return
	}
	out, err := l.relay.OnReaction(ctx, service.ReactionEvent{
		ChatID:    cq.Message.Chat.ID,
		MessageID: int64(cq.Message.MessageID),
		ReactorID: cq.From.ID,
		Data:      cq.Data,
	})
	if err != nil {
		logrus.WithError(err).WithField("data", cq.Data).Warn("Reaction rejected")
		return
	}
	if a, ok := reactionAnswers[out.Result]; ok {
		answer = a
	}
}

func (l *Listener) handleStart(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	payload := strings.TrimSpace(m.CommandArguments())

	logrus.WithFields(logrus.Fields{
		"chat_id": chatID,
		"payload": payload,
	}).Info("Start command received")

	var text string
	var markup *tgbotapi.InlineKeyboardMarkup

	if payload == "" {
		text = "Open me from the button under the buyer’s post."
	} else {
		card, err := l.relay.ContactCard(ctx, payload)
		switch {
		case errors.Is(err, service.ErrInvalidPayload):
			text = "Bad link format."
		case errors.Is(err, repository.ErrListingNotFound):
			text = "❌ Buyer request not found."
		case err != nil:
			logrus.WithError(err).Error("Failed to build contact card")
			text = "Something went wrong, please try again later."
		default:
			text = card.Text
			markup = cardKeyboard(card)
		}
	}

	l.replies.Reply(chatID, text, markup)

	// keep the private chat tidy
	if _, err := l.client.Request(tgbotapi.NewDeleteMessage(chatID, m.MessageID)); err != nil {
		logrus.WithError(err).Debug("Failed to delete start command")
	}
}

func cardKeyboard(card *service.Card) *tgbotapi.InlineKeyboardMarkup {
	if len(card.Buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(card.Buttons))
	for _, b := range card.Buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL)))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
