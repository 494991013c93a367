package reputation

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/model"
	"wtb-relay-go/internal/repository"
)

// memStore is an in-memory Store keyed like the real tables
type memStore struct {
	authors   map[uint64]int64
	reactions map[[2]int64]int8
	stored    map[int64]*model.Reputation
	failFor   int64
}

func newMemStore() *memStore {
	return &memStore{
		authors:   map[uint64]int64{},
		reactions: map[[2]int64]int8{},
		stored:    map[int64]*model.Reputation{},
	}
}

func (m *memStore) ToggleReaction(_ context.Context, listingID uint64, reactorID int64, value int8) (*repository.ToggleResult, error) {
	sender, ok := m.authors[listingID]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	key := [2]int64{int64(listingID), reactorID}
	prev, had := m.reactions[key]
	switch {
	case had && prev == value:
		delete(m.reactions, key)
		return &repository.ToggleResult{Result: repository.ToggleRemoved, SenderID: sender}, nil
	case had:
		m.reactions[key] = value
		return &repository.ToggleResult{Result: repository.ToggleSwitched, SenderID: sender}, nil
	default:
		m.reactions[key] = value
		return &repository.ToggleResult{Result: repository.ToggleAdded, SenderID: sender}, nil
	}
}

func (m *memStore) RecomputeReputation(_ context.Context, senderID int64) (*model.Reputation, error) {
	if senderID == m.failFor {
		return nil, errors.New("boom")
	}
	rep := &model.Reputation{SenderID: senderID}
	for key, v := range m.reactions {
		if m.authors[uint64(key[0])] != senderID {
			continue
		}
		if v == model.ReactionLike {
			rep.Likes++
		} else {
			rep.Dislikes++
		}
	}
	m.stored[senderID] = rep
	return rep, nil
}

func (m *memStore) GetReputation(_ context.Context, senderID int64) (*model.Reputation, error) {
	if rep, ok := m.stored[senderID]; ok {
		return rep, nil
	}
	return &model.Reputation{SenderID: senderID}, nil
}

func (m *memStore) ReputationSenders(context.Context) ([]int64, error) {
	var out []int64
	for id := range m.stored {
		out = append(out, id)
	}
	return out, nil
}

func (m *memStore) SenderStats(_ context.Context, senderID int64) (repository.SenderStats, error) {
	var stats repository.SenderStats
	for id, author := range m.authors {
		if author != senderID {
			continue
		}
		stats.TotalMessages++
		for key := range m.reactions {
			if uint64(key[0]) == id {
				stats.Reviews++
			}
		}
	}
	return stats, nil
}

func TestToggleReactionRecomputes(t *testing.T) {
	store := newMemStore()
	store.authors[1] = 42
	store.authors[2] = 42
	agg := NewAggregator(store, 5, metrics.NewMetricsWith(prometheus.NewRegistry()))
	ctx := context.Background()

	out, err := agg.ToggleReaction(ctx, 1, 100, model.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, repository.ToggleAdded, out.Result)
	assert.Equal(t, int64(42), out.SenderID)
	assert.Equal(t, 1, out.Likes)

	out, err = agg.ToggleReaction(ctx, 2, 100, model.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Likes)
	assert.Equal(t, 1, out.Dislikes)

	out, err = agg.ToggleReaction(ctx, 2, 100, model.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, repository.ToggleSwitched, out.Result)
	assert.Equal(t, 2, out.Likes)
	assert.Equal(t, 0, out.Dislikes)

	// toggling twice restores the prior aggregate
	out, err = agg.ToggleReaction(ctx, 2, 100, model.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, repository.ToggleRemoved, out.Result)
	assert.Equal(t, 1, out.Likes)

	_, err = agg.ToggleReaction(ctx, 99, 100, model.ReactionLike)
	assert.ErrorIs(t, err, repository.ErrListingNotFound)
}

func TestSummary(t *testing.T) {
	store := newMemStore()
	store.authors[1] = 42
	agg := NewAggregator(store, 5, nil)
	ctx := context.Background()

	s, err := agg.Summary(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 50, s.Rating)
	assert.Equal(t, 2, s.Stars)
	assert.Equal(t, "⭐⭐☆☆☆", s.StarsText)
	assert.Equal(t, int64(1), s.TotalMessages)

	for reactor := int64(1); reactor <= 7; reactor++ {
		_, err := agg.ToggleReaction(ctx, 1, reactor, model.ReactionLike)
		require.NoError(t, err)
	}
	_, err = agg.ToggleReaction(ctx, 1, 8, model.ReactionDislike)
	require.NoError(t, err)

	s, err = agg.Summary(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 88, s.Rating)
	assert.Equal(t, 4, s.Stars)
	assert.Equal(t, int64(8), s.Reviews)
}

func TestReconcileAll(t *testing.T) {
	store := newMemStore()
	store.authors[1] = 42
	store.authors[2] = 43
	store.stored[42] = &model.Reputation{SenderID: 42, Likes: 9}
	store.stored[43] = &model.Reputation{SenderID: 43}
	store.stored[44] = &model.Reputation{SenderID: 44}
	store.failFor = 44
	agg := NewAggregator(store, 5, nil)

	n, err := agg.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, store.stored[42].Likes)
}
