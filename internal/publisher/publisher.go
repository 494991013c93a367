package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/model"
)

// Store persists publish results
type Store interface {
	SavePublishedPost(ctx context.Context, post *model.PublishedPost) error
	LogPublishAttempt(ctx context.Context, entry *model.PublishLog) error
}

// Options tune delivery
type Options struct {
	ChatID       int64
	BotUsername  string
	SendInterval time.Duration
	BackoffBase  time.Duration
	MaxRetries   int
}

// Delivery is the outcome of publishing to one destination
type Delivery struct {
	DestinationID int64
	MessageID     int64
	Attempts      int
	Err           error
}

// Publisher fans listings out to destinations and edits published posts.
// All sink calls share one pacing limiter; retries are per destination.
type Publisher struct {
	sink    Sink
	store   Store
	opts    Options
	limiter *rate.Limiter
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a publisher
func New(sink Sink, store Store, opts Options, m *metrics.Metrics) *Publisher {
	limit := rate.Inf
	if opts.SendInterval > 0 {
		limit = rate.Every(opts.SendInterval)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Publisher{
		sink:    sink,
		store:   store,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		sleep:   sleepCtx,
	}
}

// Controls builds the interactive controls for a post. messageID may be zero
// before the sink has assigned one.
func (p *Publisher) Controls(listingID uint64, messageID int64, likes, dislikes int) *Controls {
	return &Controls{
		ListingID:  listingID,
		Likes:      likes,
		Dislikes:   dislikes,
		ContactURL: ContactURL(p.opts.BotUsername, StartPayload(listingID, messageID)),
	}
}

// Publish sends body to every destination concurrently. Each successful
// send is recorded as a PublishedPost and then edited once so its contact
// link carries the sink message id. A failing destination never affects
// the others.
func (p *Publisher) Publish(ctx context.Context, listingID uint64, destinations []int64, body string, likes, dislikes int) []Delivery {
	deliveries := make([]Delivery, len(destinations))

	var wg sync.WaitGroup
	for i, dest := range destinations {
		wg.Add(1)
		go func(i int, dest int64) {
			defer wg.Done()
			deliveries[i] = p.publishOne(ctx, listingID, dest, body, likes, dislikes)
		}(i, dest)
	}
	wg.Wait()
	return deliveries
}

func (p *Publisher) publishOne(ctx context.Context, listingID uint64, destID int64, body string, likes, dislikes int) Delivery {
	log := logrus.WithFields(logrus.Fields{
		"listing_id":     listingID,
		"destination_id": destID,
	})
	d := Delivery{DestinationID: destID}

	dest := Destination{ChatID: p.opts.ChatID, TopicID: destID}
	d.Attempts, d.Err = p.withRetry(ctx, log, func(ctx context.Context) error {
		id, err := p.sink.Send(ctx, dest, body, p.Controls(listingID, 0, likes, dislikes))
		if err != nil {
			return err
		}
		d.MessageID = id
		return nil
	})

	if d.Err != nil {
		log.WithError(d.Err).Error("Failed to publish listing")
		p.count(false)
		p.logAttempt(ctx, listingID, destID, model.ActionSend, d.Attempts, d.Err)
		return d
	}

	p.count(true)
	p.logAttempt(ctx, listingID, destID, model.ActionSend, d.Attempts, nil)

	post := &model.PublishedPost{ListingID: listingID, DestinationID: destID, ChatID: p.opts.ChatID, MessageID: d.MessageID}
	if err := p.store.SavePublishedPost(ctx, post); err != nil {
		log.WithError(err).Error("Failed to save published post")
	}

	// attach the deep link that knows the sink message id
	if err := p.Edit(ctx, post, body, p.Controls(listingID, d.MessageID, likes, dislikes)); err != nil {
		log.WithError(err).Warn("Failed to attach contact link")
	}

	log.WithField("message_id", d.MessageID).Info("Listing published")
	return d
}

// Edit overwrites a published post's body and controls
func (p *Publisher) Edit(ctx context.Context, post *model.PublishedPost, body string, controls *Controls) error {
	log := logrus.WithFields(logrus.Fields{
		"listing_id":     post.ListingID,
		"destination_id": post.DestinationID,
		"message_id":     post.MessageID,
	})
	attempts, err := p.withRetry(ctx, log, func(ctx context.Context) error {
		return p.sink.Edit(ctx, post.ChatID, post.MessageID, body, controls)
	})
	p.logAttempt(ctx, post.ListingID, post.DestinationID, model.ActionEdit, attempts, err)
	return err
}

// withRetry runs op until it succeeds, hits a non-retryable error, or
// MaxRetries attempts are used. Rate-limit errors wait the sink-provided
// delay; transient errors back off quadratically.
func (p *Publisher) withRetry(ctx context.Context, log *logrus.Entry, op func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return attempt - 1, err
		}

		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		var wait time.Duration
		var rl *RateLimitError
		switch {
		case errors.As(err, &rl):
			wait = rl.RetryAfter
		case IsTransient(err):
			wait = time.Duration(attempt*attempt) * p.opts.BackoffBase
		default:
			return attempt, err
		}

		if attempt == p.opts.MaxRetries {
			break
		}
		log.WithError(err).Warnf("Sink call failed (attempt %d/%d), retrying in %v", attempt, p.opts.MaxRetries, wait)
		if p.metrics != nil {
			p.metrics.PublishRetries.Inc()
		}
		if err := p.sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}
	return p.opts.MaxRetries, fmt.Errorf("giving up after %d attempts: %w", p.opts.MaxRetries, lastErr)
}

func (p *Publisher) logAttempt(ctx context.Context, listingID uint64, destID int64, action string, attempts int, err error) {
	entry := &model.PublishLog{
		ListingID:     listingID,
		DestinationID: destID,
		Action:        action,
		Status:        model.StatusSuccess,
		Attempts:      attempts,
	}
	if err != nil {
		entry.Status = model.StatusFailure
		entry.ErrorMsg = err.Error()
	}
	if logErr := p.store.LogPublishAttempt(ctx, entry); logErr != nil {
		logrus.WithError(logErr).Warn("Failed to write publish log")
	}
}

func (p *Publisher) count(ok bool) {
	if p.metrics == nil {
		return
	}
	if ok {
		p.metrics.PublishSuccesses.Inc()
	} else {
		p.metrics.PublishFailures.Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
