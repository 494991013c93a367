package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wtb-relay-go/internal/db"
	"wtb-relay-go/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: db.NewLogger()})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return New(gdb)
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func archive(t *testing.T, r *Repository, in ArchiveInput) *ArchiveResult {
	t.Helper()
	if in.SentAt.IsZero() {
		in.SentAt = time.Now()
	}
	res, err := r.Archive(context.Background(), in)
	require.NoError(t, err)
	return res
}

func TestArchiveDeduplicates(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 10, SenderID: 7, Text: "wtb usdt", ReplyToMsgID: int64Ptr(3)})
	assert.True(t, first.Inserted)
	assert.Equal(t, 0, first.DuplicateCount)

	second := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 11, SenderID: 7, SenderName: strPtr("alice"), Text: "  wtb\n usdt ", ReplyToMsgID: int64Ptr(9)})
	assert.False(t, second.Inserted)
	assert.Equal(t, 1, second.DuplicateCount)
	assert.Equal(t, first.ID, second.ID)

	third := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 12, SenderID: 7, Text: "wtb usdt"})
	assert.False(t, third.Inserted)
	assert.Equal(t, 2, third.DuplicateCount)

	listing, err := r.GetListing(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, listing.SenderName)
	assert.Equal(t, "alice", *listing.SenderName)
	require.NotNil(t, listing.ReplyToMsgID)
	assert.Equal(t, int64(3), *listing.ReplyToMsgID)
	assert.Equal(t, "wtb usdt", listing.Text)

	other := archive(t, r, ArchiveInput{SourceChatID: -2, SourceMsgID: 10, SenderID: 7, Text: "wtb usdt"})
	assert.True(t, other.Inserted)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestArchiveConcurrentDuplicates(t *testing.T) {
	r := newTestRepo(t)

	const n = 8
	results := make([]*ArchiveResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Archive(context.Background(), ArchiveInput{SourceChatID: -1, SourceMsgID: int64(i), SenderID: 1, Text: "need btc", SentAt: time.Now()})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, res := range results {
		if res != nil && res.Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	listings, total, err := r.ListListings(context.Background(), ListingFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, n-1, listings[0].DuplicateCount)
}

func TestExistsExactTextForSender(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	exists, err := r.ExistsExactTextForSender(ctx, 5, "wtb paypal")
	require.NoError(t, err)
	assert.False(t, exists)

	archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 5, Text: "wtb paypal"})

	exists, err = r.ExistsExactTextForSender(ctx, 5, "wtb paypal")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = r.ExistsExactTextForSender(ctx, 5, "wtb  paypal")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = r.ExistsExactTextForSender(ctx, 6, "wtb paypal")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMarkDeletedIsIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 5, Text: "a"})
	archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 2, SenderID: 5, Text: "b"})
	archive(t, r, ArchiveInput{SourceChatID: -9, SourceMsgID: 1, SenderID: 5, Text: "c"})

	n, err := r.MarkDeleted(ctx, -1, []int64{1, 2, 3}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.MarkDeleted(ctx, -1, []int64{1, 2, 3}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = r.MarkDeleted(ctx, -1, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	listings, total, err := r.ListListings(ctx, ListingFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "c", listings[0].Text)

	_, total, err = r.ListListings(ctx, ListingFilter{IncludeDeleted: true}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestKnownSenderName(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	name, err := r.KnownSenderName(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, name)

	archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 5, SenderName: strPtr("@bob"), Text: "a"})

	name, err = r.KnownSenderName(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "bob", *name)
}

func TestToggleReactionInvolution(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	listing := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb"})

	res, err := r.ToggleReaction(ctx, listing.ID, 100, model.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, ToggleAdded, res.Result)
	assert.Equal(t, int64(42), res.SenderID)

	likes, dislikes, err := r.ListingCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	assert.Equal(t, 0, dislikes)

	res, err = r.ToggleReaction(ctx, listing.ID, 100, model.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, ToggleRemoved, res.Result)

	likes, dislikes, err = r.ListingCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, likes)
	assert.Equal(t, 0, dislikes)
}

func TestToggleReactionSwitch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	listing := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb"})

	_, err := r.ToggleReaction(ctx, listing.ID, 100, model.ReactionLike)
	require.NoError(t, err)

	res, err := r.ToggleReaction(ctx, listing.ID, 100, model.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, ToggleSwitched, res.Result)

	likes, dislikes, err := r.ListingCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, likes)
	assert.Equal(t, 1, dislikes)
}

func TestToggleReactionConcurrentSamePress(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	listing := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb"})

	const n = 4
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.ToggleReaction(ctx, listing.ID, 100, model.ReactionLike)
			if assert.NoError(t, err) {
				results[i] = res.Result
			}
		}(i)
	}
	wg.Wait()

	counts := map[string]int{}
	for _, res := range results {
		counts[res]++
	}
	assert.Equal(t, n/2, counts[ToggleAdded])
	assert.Equal(t, n/2, counts[ToggleRemoved])

	likes, dislikes, err := r.ListingCounts(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, likes)
	assert.Equal(t, 0, dislikes)
}

func TestToggleReactionUnknownListing(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.ToggleReaction(context.Background(), 999, 1, model.ReactionLike)
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = r.ToggleReaction(context.Background(), 999, 1, 0)
	assert.Error(t, err)
}

func TestRecomputeReputationSpansListings(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	a := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb a"})
	b := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 2, SenderID: 42, Text: "wtb b"})
	c := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 3, SenderID: 43, Text: "wtb c"})

	for _, step := range []struct {
		listing uint64
		reactor int64
		value   int8
	}{
		{a.ID, 1, model.ReactionLike},
		{a.ID, 2, model.ReactionLike},
		{b.ID, 1, model.ReactionDislike},
		{c.ID, 1, model.ReactionLike},
	} {
		_, err := r.ToggleReaction(ctx, step.listing, step.reactor, step.value)
		require.NoError(t, err)
	}

	rep, err := r.RecomputeReputation(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Likes)
	assert.Equal(t, 1, rep.Dislikes)

	stored, err := r.GetReputation(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Likes)
	assert.Equal(t, 1, stored.Dislikes)

	// recompute after a removal overwrites rather than patches
	_, err = r.ToggleReaction(ctx, a.ID, 2, model.ReactionLike)
	require.NoError(t, err)
	rep, err = r.RecomputeReputation(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Likes)

	stats, err := r.SenderStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.Reviews)

	senders, err := r.ReputationSenders(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{42, 43}, senders)

	empty, err := r.GetReputation(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Likes)
}

func TestPublishedPostIsStable(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	listing := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb"})

	require.NoError(t, r.SavePublishedPost(ctx, &model.PublishedPost{ListingID: listing.ID, DestinationID: 1, ChatID: -500, MessageID: 77}))
	require.NoError(t, r.SavePublishedPost(ctx, &model.PublishedPost{ListingID: listing.ID, DestinationID: 1, ChatID: -500, MessageID: 78}))
	require.NoError(t, r.SavePublishedPost(ctx, &model.PublishedPost{ListingID: listing.ID, DestinationID: 9, ChatID: -500, MessageID: 79}))

	post, err := r.GetPublishedPost(ctx, listing.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(77), post.MessageID)

	posts, err := r.PublishedPostsForListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	_, err = r.GetPublishedPost(ctx, listing.ID, 5)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPublishLogs(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	listing := archive(t, r, ArchiveInput{SourceChatID: -1, SourceMsgID: 1, SenderID: 42, Text: "wtb"})
	require.NoError(t, r.LogPublishAttempt(ctx, &model.PublishLog{ListingID: listing.ID, DestinationID: 1, Action: model.ActionSend, Status: model.StatusSuccess, Attempts: 1}))
	require.NoError(t, r.LogPublishAttempt(ctx, &model.PublishLog{ListingID: listing.ID, DestinationID: 2, Action: model.ActionSend, Status: model.StatusFailure, Attempts: 3, ErrorMsg: "boom"}))

	logs, total, err := r.ListPublishLogs(ctx, &listing.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[0].Listing)
	assert.Equal(t, "wtb", logs[0].Listing.Text)
}

func TestSourceChatUpsert(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	chat, err := r.GetSourceChat(ctx, -100)
	require.NoError(t, err)
	assert.Nil(t, chat)

	require.NoError(t, r.UpsertSourceChat(ctx, &model.SourceChat{ChatID: -100, Title: "OTC"}))
	require.NoError(t, r.UpsertSourceChat(ctx, &model.SourceChat{ChatID: -100, Title: "OTC Desk", Username: strPtr("otcdesk")}))

	chat, err = r.GetSourceChat(ctx, -100)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "OTC Desk", chat.Title)
	require.NotNil(t, chat.Username)
	assert.Equal(t, "otcdesk", *chat.Username)
}
