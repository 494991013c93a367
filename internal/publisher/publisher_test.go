package publisher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/model"
)

type sentMsg struct {
	dest     Destination
	body     string
	controls *Controls
}

type editMsg struct {
	chatID, messageID int64
	controls          *Controls
}

// fakeSink fails the first calls for a topic with the queued errors
type fakeSink struct {
	mu     sync.Mutex
	nextID int64
	errs   map[int64][]error
	sent   []sentMsg
	edits  []editMsg
}

func (s *fakeSink) Send(_ context.Context, dest Destination, body string, controls *Controls) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.errs[dest.TopicID]; len(q) > 0 {
		s.errs[dest.TopicID] = q[1:]
		return 0, q[0]
	}
	s.nextID++
	s.sent = append(s.sent, sentMsg{dest: dest, body: body, controls: controls})
	return 1000 + dest.TopicID, nil
}

func (s *fakeSink) Edit(_ context.Context, chatID, messageID int64, _ string, controls *Controls) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, editMsg{chatID: chatID, messageID: messageID, controls: controls})
	return nil
}

type memStore struct {
	mu    sync.Mutex
	posts []model.PublishedPost
	logs  []model.PublishLog
}

func (m *memStore) SavePublishedPost(_ context.Context, post *model.PublishedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, *post)
	return nil
}

func (m *memStore) LogPublishAttempt(_ context.Context, entry *model.PublishLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func newTestPublisher(sink Sink, store Store, maxRetries int) (*Publisher, *sleepRecorder) {
	p := New(sink, store, Options{
		ChatID:      -1009,
		BotUsername: "@relay_bot",
		BackoffBase: time.Second,
		MaxRetries:  maxRetries,
	}, metrics.NewMetricsWith(prometheus.NewRegistry()))
	rec := &sleepRecorder{}
	p.sleep = rec.sleep
	return p, rec
}

func TestPublishFansOut(t *testing.T) {
	sink := &fakeSink{errs: map[int64][]error{}}
	store := &memStore{}
	p, _ := newTestPublisher(sink, store, 3)

	deliveries := p.Publish(context.Background(), 42, []int64{1, 11, 12}, "<b>body</b>", 2, 1)

	require.Len(t, deliveries, 3)
	for _, d := range deliveries {
		assert.NoError(t, d.Err)
		assert.Equal(t, 1000+d.DestinationID, d.MessageID)
		assert.Equal(t, 1, d.Attempts)
	}

	require.Len(t, store.posts, 3)
	for _, post := range store.posts {
		assert.Equal(t, uint64(42), post.ListingID)
		assert.Equal(t, int64(-1009), post.ChatID)
	}

	require.Len(t, sink.sent, 3)
	assert.Equal(t, "https://t.me/relay_bot?start=42", sink.sent[0].controls.ContactURL)
	assert.Equal(t, 2, sink.sent[0].controls.Likes)

	require.Len(t, sink.edits, 3)
	urls := []string{}
	for _, e := range sink.edits {
		urls = append(urls, e.controls.ContactURL)
	}
	sort.Strings(urls)
	assert.Equal(t, []string{
		"https://t.me/relay_bot?start=42_1001",
		"https://t.me/relay_bot?start=42_1011",
		"https://t.me/relay_bot?start=42_1012",
	}, urls)

	// one send + one edit log per destination
	assert.Len(t, store.logs, 6)
}

func TestPublishRetriesIndependently(t *testing.T) {
	sink := &fakeSink{errs: map[int64][]error{
		11: {&RateLimitError{RetryAfter: 7 * time.Second}},
		12: {errors.New("chat not found")},
		13: {&TransientError{Err: errors.New("reset")}, &TransientError{Err: errors.New("reset")}, &TransientError{Err: errors.New("reset")}},
	}}
	store := &memStore{}
	p, rec := newTestPublisher(sink, store, 3)

	deliveries := p.Publish(context.Background(), 7, []int64{1, 11, 12, 13}, "body", 0, 0)
	byDest := map[int64]Delivery{}
	for _, d := range deliveries {
		byDest[d.DestinationID] = d
	}

	assert.NoError(t, byDest[1].Err)
	assert.Equal(t, 1, byDest[1].Attempts)

	assert.NoError(t, byDest[11].Err)
	assert.Equal(t, 2, byDest[11].Attempts)

	assert.Error(t, byDest[12].Err)
	assert.Equal(t, 1, byDest[12].Attempts)

	require.Error(t, byDest[13].Err)
	assert.True(t, IsTransient(byDest[13].Err))
	assert.Equal(t, 3, byDest[13].Attempts)

	assert.ElementsMatch(t, []time.Duration{7 * time.Second, time.Second, 4 * time.Second}, rec.waits)
	assert.Len(t, store.posts, 2)

	failures := 0
	for _, l := range store.logs {
		if l.Status == model.StatusFailure {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestEditRecordsLog(t *testing.T) {
	sink := &fakeSink{errs: map[int64][]error{}}
	store := &memStore{}
	p, _ := newTestPublisher(sink, store, 3)

	post := &model.PublishedPost{ListingID: 3, DestinationID: 11, ChatID: -1009, MessageID: 55}
	require.NoError(t, p.Edit(context.Background(), post, "body", p.Controls(3, 55, 4, 1)))

	require.Len(t, sink.edits, 1)
	assert.Equal(t, int64(55), sink.edits[0].messageID)
	assert.Equal(t, 4, sink.edits[0].controls.Likes)
	require.Len(t, store.logs, 1)
	assert.Equal(t, model.ActionEdit, store.logs[0].Action)
	assert.Equal(t, model.StatusSuccess, store.logs[0].Status)
}
