package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ReplyTracker keeps a single bot reply per private chat. A new reply
// edits the previous one in place; when that is impossible the new reply
// is sent and the old one deleted.
type ReplyTracker struct {
	client Client
	mu     sync.Mutex
	last   map[int64]int
}

// NewReplyTracker creates an empty tracker
func NewReplyTracker(client Client) *ReplyTracker {
	return &ReplyTracker{client: client, last: make(map[int64]int)}
}

// Last returns the tracked reply for chatID
func (t *ReplyTracker) Last(chatID int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.last[chatID]
	return id, ok
}

// Reply shows text in chatID, reusing the previous reply when possible
func (t *ReplyTracker) Reply(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log := logrus.WithField("chat_id", chatID)
	old, ok := t.last[chatID]
	if ok {
		edit := tgbotapi.NewEditMessageText(chatID, old, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.DisableWebPagePreview = true
		edit.ReplyMarkup = markup
		_, err := t.client.Request(edit)
		if err == nil || notModified(err) {
			return
		}
		log.WithError(err).Debug("Previous reply not editable, sending a new one")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := t.client.Send(msg)
	if err != nil {
		log.WithError(err).Error("Failed to send reply")
		return
	}
	t.last[chatID] = sent.MessageID

	if ok {
		if _, err := t.client.Request(tgbotapi.NewDeleteMessage(chatID, old)); err != nil {
			log.WithError(err).Debug("Failed to delete previous reply")
		}
	}
}

// Resolver looks up public usernames through the Bot API. It only knows
// users who have interacted with the bot.
type Resolver struct {
	client Client
}

// NewResolver creates a resolver
func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveUsername returns the user's public username
func (r *Resolver) ResolveUsername(ctx context.Context, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chat, err := r.client.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: userID}})
	if err != nil {
		return "", err
	}
	if chat.UserName == "" {
		return "", fmt.Errorf("user %d has no public username", userID)
	}
	return chat.UserName, nil
}
