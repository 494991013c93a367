package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/publisher"
)

// Client is the part of *tgbotapi.BotAPI the relay uses
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Sink publishes posts into forum topics of the target chat
type Sink struct {
	client         Client
	generalTopicID int64
}

// NewSink creates a sink. Posts for generalTopicID are sent without a
// topic reference.
func NewSink(client Client, generalTopicID int64) *Sink {
	return &Sink{client: client, generalTopicID: generalTopicID}
}

// Keyboard builds the reaction and contact buttons under a post
func Keyboard(c *publisher.Controls) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d", c.Likes), fmt.Sprintf("like_%d", c.ListingID)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ %d", c.Dislikes), fmt.Sprintf("dislike_%d", c.ListingID)),
		),
	}
	if c.ContactURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💬 Contact buyer", c.ContactURL),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Send posts body into the destination topic and returns the message id
func (s *Sink) Send(ctx context.Context, dest publisher.Destination, body string, controls *publisher.Controls) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(dest.ChatID, body)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if dest.TopicID != s.generalTopicID && dest.TopicID > 0 {
		msg.ReplyToMessageID = int(dest.TopicID)
	}
	if controls != nil {
		msg.ReplyMarkup = Keyboard(controls)
	}

	sent, err := s.client.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return int64(sent.MessageID), nil
}

// Edit replaces a post's text and buttons. When the text cannot be edited
// the buttons are still updated.
func (s *Sink) Edit(ctx context.Context, chatID, messageID int64, body string, controls *publisher.Controls) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, int(messageID), body)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	var markup tgbotapi.InlineKeyboardMarkup
	if controls != nil {
		markup = Keyboard(controls)
		edit.ReplyMarkup = &markup
	}

	_, err := s.client.Request(edit)
	if err == nil || notModified(err) {
		return nil
	}
	err = classify(err)
	if controls == nil || !isBadRequest(err) {
		return err
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": messageID,
	}).Warn("Text edit failed, updating buttons only")
	if _, mErr := s.client.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, int(messageID), markup)); mErr != nil && !notModified(mErr) {
		return classify(mErr)
	}
	return nil
}

// classify maps Bot API failures onto the publisher's retry taxonomy
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			retry := time.Duration(apiErr.RetryAfter) * time.Second
			if retry <= 0 {
				retry = time.Second
			}
			return &publisher.RateLimitError{RetryAfter: retry}
		case apiErr.Code >= 500:
			return &publisher.TransientError{Err: err}
		}
		return err
	}
	// anything that never reached the API is a network fault
	return &publisher.TransientError{Err: err}
}

func isBadRequest(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 400
}

func notModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
