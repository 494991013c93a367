package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"wtb-relay-go/internal/model"
)

var (
	// ErrInvalidEvent is returned for events missing required fields
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidPayload is returned for malformed reaction or start payloads
	ErrInvalidPayload = errors.New("invalid payload")
)

var validate = validator.New()

// NewMessage is a text message observed in a watched chat
type NewMessage struct {
	ChatID       int64     `json:"chat_id" validate:"required"`
	MessageID    int64     `json:"message_id" validate:"required,gt=0"`
	SenderID     int64     `json:"sender_id" validate:"required"`
	SenderName   string    `json:"sender_name"`
	ChatUsername string    `json:"chat_username"`
	ChatTitle    string    `json:"chat_title"`
	Text         string    `json:"text"`
	ReplyToMsgID *int64    `json:"reply_to_msg_id"`
	SentAt       time.Time `json:"sent_at"`
}

// MessageDeleted reports messages removed from a watched chat
type MessageDeleted struct {
	ChatID     int64     `json:"chat_id" validate:"required"`
	MessageIDs []int64   `json:"message_ids" validate:"required,min=1,dive,gt=0"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// ReactionEvent is a press on a published post's like or dislike control.
// Data carries the callback payload, e.g. "like_42".
type ReactionEvent struct {
	ChatID    int64  `json:"chat_id" validate:"required"`
	MessageID int64  `json:"message_id" validate:"required,gt=0"`
	ReactorID int64  `json:"reactor_id" validate:"required"`
	Data      string `json:"data" validate:"required"`
}

func validateEvent(ev interface{}) error {
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// ParseReaction decodes a "like_<id>" or "dislike_<id>" payload
func ParseReaction(data string) (uint64, int8, error) {
	kind, id, ok := strings.Cut(data, "_")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
	}

	var value int8
	switch kind {
	case "like":
		value = model.ReactionLike
	case "dislike":
		value = model.ReactionDislike
	default:
		return 0, 0, fmt.Errorf("%w: unknown reaction %q", ErrInvalidPayload, kind)
	}

	listingID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || listingID == 0 {
		return 0, 0, fmt.Errorf("%w: bad listing id %q", ErrInvalidPayload, id)
	}
	return listingID, value, nil
}

// ParseStartPayload decodes "<listingID>" or "<listingID>_<messageID>".
// messageID is zero when absent.
func ParseStartPayload(payload string) (uint64, int64, error) {
	payload = strings.TrimSpace(payload)
	head, tail, hasTail := strings.Cut(payload, "_")

	listingID, err := strconv.ParseUint(head, 10, 64)
	if err != nil || listingID == 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	if !hasTail {
		return listingID, 0, nil
	}
	msgID, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || msgID <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	return listingID, msgID, nil
}
