package reputation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/model"
	"wtb-relay-go/internal/repository"
)

// Store is the persistence the aggregator needs
type Store interface {
	ToggleReaction(ctx context.Context, listingID uint64, reactorID int64, value int8) (*repository.ToggleResult, error)
	RecomputeReputation(ctx context.Context, senderID int64) (*model.Reputation, error)
	GetReputation(ctx context.Context, senderID int64) (*model.Reputation, error)
	ReputationSenders(ctx context.Context) ([]int64, error)
	SenderStats(ctx context.Context, senderID int64) (repository.SenderStats, error)
}

// Outcome is the result of a reaction toggle together with the sender's fresh aggregate
type Outcome struct {
	Result   string `json:"result"`
	SenderID int64  `json:"sender_id"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
}

// Summary is everything shown about a sender next to a listing
type Summary struct {
	SenderID      int64  `json:"sender_id"`
	Likes         int    `json:"likes"`
	Dislikes      int    `json:"dislikes"`
	Rating        int    `json:"rating"`
	Stars         int    `json:"stars"`
	StarsText     string `json:"stars_text"`
	TotalMessages int64  `json:"total_messages"`
	Reviews       int64  `json:"reviews"`
}

// Aggregator applies reactions and keeps per-sender reputation derived from them
type Aggregator struct {
	store    Store
	maxStars int
	metrics  *metrics.Metrics
}

// NewAggregator creates a reputation aggregator
func NewAggregator(store Store, maxStars int, m *metrics.Metrics) *Aggregator {
	return &Aggregator{store: store, maxStars: maxStars, metrics: m}
}

// ToggleReaction records the reaction and recomputes the listing author's aggregate
func (a *Aggregator) ToggleReaction(ctx context.Context, listingID uint64, reactorID int64, value int8) (*Outcome, error) {
	toggled, err := a.store.ToggleReaction(ctx, listingID, reactorID, value)
	if err != nil {
		return nil, err
	}

	rep, err := a.store.RecomputeReputation(ctx, toggled.SenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute reputation: %w", err)
	}

	if a.metrics != nil {
		a.metrics.Reactions.WithLabelValues(toggled.Result).Inc()
	}
	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"reactor_id": reactorID,
		"sender_id":  toggled.SenderID,
		"result":     toggled.Result,
		"likes":      rep.Likes,
		"dislikes":   rep.Dislikes,
	}).Debug("Reaction applied")

	return &Outcome{
		Result:   toggled.Result,
		SenderID: toggled.SenderID,
		Likes:    rep.Likes,
		Dislikes: rep.Dislikes,
	}, nil
}

// Recompute rebuilds one sender's aggregate from the stored reactions
func (a *Aggregator) Recompute(ctx context.Context, senderID int64) (*model.Reputation, error) {
	return a.store.RecomputeReputation(ctx, senderID)
}

// Summary returns the rating and activity counters for a sender
func (a *Aggregator) Summary(ctx context.Context, senderID int64) (*Summary, error) {
	rep, err := a.store.GetReputation(ctx, senderID)
	if err != nil {
		return nil, err
	}
	stats, err := a.store.SenderStats(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return a.Summarize(senderID, rep.Likes, rep.Dislikes, stats), nil
}

// Summarize builds a summary from known counts without touching the store
func (a *Aggregator) Summarize(senderID int64, likes, dislikes int, stats repository.SenderStats) *Summary {
	rating := Rating(likes, dislikes)
	stars := Stars(rating, a.maxStars)
	return &Summary{
		SenderID:      senderID,
		Likes:         likes,
		Dislikes:      dislikes,
		Rating:        rating,
		Stars:         stars,
		StarsText:     RenderStars(stars, a.maxStars),
		TotalMessages: stats.TotalMessages,
		Reviews:       stats.Reviews,
	}
}

// SenderStats passes through the store's activity counters
func (a *Aggregator) SenderStats(ctx context.Context, senderID int64) (repository.SenderStats, error) {
	return a.store.SenderStats(ctx, senderID)
}

// ReconcileAll recomputes every sender that has or had reactions and returns
// how many were processed. Errors on single senders are logged and skipped.
func (a *Aggregator) ReconcileAll(ctx context.Context) (int, error) {
	senders, err := a.store.ReputationSenders(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, id := range senders {
		select {
		case <-ctx.Done():
			return done, ctx.Err()
		default:
		}
		if _, err := a.store.RecomputeReputation(ctx, id); err != nil {
			logrus.WithError(err).WithField("sender_id", id).Warn("Failed to reconcile reputation")
			continue
		}
		done++
	}
	return done, nil
}
