package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Destination is one place a listing is published to: a forum topic in the sink chat
type Destination struct {
	ChatID  int64
	TopicID int64
}

// Controls are the interactive elements attached to a published post
type Controls struct {
	ListingID  uint64
	Likes      int
	Dislikes   int
	ContactURL string
}

// Sink delivers rendered posts. Implementations report throttling with
// *RateLimitError and retryable network faults with *TransientError.
type Sink interface {
	Send(ctx context.Context, dest Destination, body string, controls *Controls) (int64, error)
	Edit(ctx context.Context, chatID, messageID int64, body string, controls *Controls) error
}

// RateLimitError means the sink asked us to slow down
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

// TransientError wraps a failure worth retrying, such as a dropped connection
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient sink error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
