package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/classifier"
	"wtb-relay-go/internal/coalescer"
	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/model"
	"wtb-relay-go/internal/publisher"
	"wtb-relay-go/internal/repository"
	"wtb-relay-go/internal/reputation"
	"wtb-relay-go/internal/routing"
)

// Reasons a buy-intent message is archived but not published
const (
	SkipNotBuyIntent = "not_buy_intent"
	SkipDuplicate    = "duplicate_text"
	SkipTooLong      = "too_long"
)

// Column widths of the archived names
const (
	maxNameLength  = 64
	maxTitleLength = 255
)

// Store is the persistence the relay needs beyond its collaborators
type Store interface {
	Archive(ctx context.Context, in repository.ArchiveInput) (*repository.ArchiveResult, error)
	ExistsExactTextForSender(ctx context.Context, senderID int64, text string) (bool, error)
	MarkDeleted(ctx context.Context, chatID int64, msgIDs []int64, at time.Time) (int64, error)
	KnownSenderName(ctx context.Context, senderID int64) (*string, error)
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	GetPublishedPostByMessage(ctx context.Context, chatID, messageID int64) (*model.PublishedPost, error)
	PublishedPostsForListing(ctx context.Context, listingID uint64) ([]model.PublishedPost, error)
	UpsertSourceChat(ctx context.Context, chat *model.SourceChat) error
	GetSourceChat(ctx context.Context, chatID int64) (*model.SourceChat, error)
}

// NameResolver looks up a sender's public username. It may be slow and is
// consulted last.
type NameResolver interface {
	ResolveUsername(ctx context.Context, userID int64) (string, error)
}

// Options configure the relay
type Options struct {
	MaxTextLength  int
	BotUsername    string
	TargetChatID   int64
	TargetUsername string
	AdminContact   string
	CoalesceDelay  time.Duration
}

// Outcome describes what happened to one ingested message
type Outcome struct {
	EventID        string  `json:"event_id"`
	ListingID      uint64  `json:"listing_id"`
	Inserted       bool    `json:"inserted"`
	DuplicateCount int     `json:"duplicate_count"`
	BuyIntent      bool    `json:"buy_intent"`
	Reason         string  `json:"reason"`
	Published      bool    `json:"published"`
	SkipReason     string  `json:"skip_reason,omitempty"`
	Destinations   []int64 `json:"destinations,omitempty"`

	Deliveries []publisher.Delivery `json:"-"`
}

// Relay turns chat events into archived listings, published posts and
// reputation updates.
type Relay struct {
	store      Store
	router     *routing.Router
	reputation *reputation.Aggregator
	publisher  *publisher.Publisher
	edits      *coalescer.Coalescer
	resolver   NameResolver
	opts       Options
	metrics    *metrics.Metrics
}

// NewRelay wires a relay. resolver may be nil.
func NewRelay(store Store, router *routing.Router, agg *reputation.Aggregator, pub *publisher.Publisher, resolver NameResolver, opts Options, m *metrics.Metrics) *Relay {
	r := &Relay{
		store:      store,
		router:     router,
		reputation: agg,
		publisher:  pub,
		resolver:   resolver,
		opts:       opts,
		metrics:    m,
	}
	r.edits = coalescer.New(opts.CoalesceDelay, r.flushEdit, m)
	return r
}

// Close stops pending edits and waits for in-flight flushes
func (r *Relay) Close() {
	r.edits.Stop()
}

// PendingEdits returns how many posts have a coalesced edit outstanding
func (r *Relay) PendingEdits() int {
	return r.edits.Pending()
}

// OnNewMessage archives the message and, if it is a fresh buy request of
// acceptable length, publishes it. Archive failures abort; publish failures
// are reported per destination in the outcome.
func (r *Relay) OnNewMessage(ctx context.Context, ev NewMessage) (*Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	start := time.Now()
	out := &Outcome{EventID: uuid.NewString()}
	log := logrus.WithFields(logrus.Fields{
		"event_id":   out.EventID,
		"chat_id":    ev.ChatID,
		"message_id": ev.MessageID,
		"sender_id":  ev.SenderID,
	})
	if r.metrics != nil {
		r.metrics.MessagesIngested.Inc()
		defer func() { r.metrics.ProcessingTime.Observe(time.Since(start).Seconds()) }()
	}

	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	r.rememberChat(ctx, log, ev)

	verdict := classifier.Classify(ev.Text)
	out.BuyIntent = verdict.BuyIntent
	out.Reason = verdict.Reason

	// must run before the archive so the message cannot match itself
	alreadyPosted := false
	if verdict.BuyIntent {
		exists, err := r.store.ExistsExactTextForSender(ctx, ev.SenderID, ev.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to check previous messages: %w", err)
		}
		alreadyPosted = exists
	}

	res, err := r.store.Archive(ctx, repository.ArchiveInput{
		SourceChatID: ev.ChatID,
		SourceMsgID:  ev.MessageID,
		SenderID:     ev.SenderID,
		SenderName:   r.resolveName(ctx, log, ev),
		Text:         ev.Text,
		ReplyToMsgID: ev.ReplyToMsgID,
		BuyIntent:    verdict.BuyIntent,
		SentAt:       ev.SentAt,
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.ArchiveFailures.Inc()
		}
		log.WithError(err).Error("Failed to archive message")
		return nil, fmt.Errorf("failed to archive message: %w", err)
	}
	out.ListingID = res.ID
	out.Inserted = res.Inserted
	out.DuplicateCount = res.DuplicateCount
	r.countArchive(verdict.BuyIntent, res.Inserted)

	log = log.WithField("listing_id", res.ID)

	switch {
	case !verdict.BuyIntent:
		out.SkipReason = SkipNotBuyIntent
	case alreadyPosted:
		out.SkipReason = SkipDuplicate
	case utf8.RuneCountInString(ev.Text) > r.opts.MaxTextLength:
		out.SkipReason = SkipTooLong
	}
	if out.SkipReason != "" {
		if r.metrics != nil {
			r.metrics.PublishSkipped.WithLabelValues(out.SkipReason).Inc()
		}
		log.WithField("reason", out.SkipReason).Debug("Message archived without publishing")
		return out, nil
	}

	summary, err := r.reputation.Summary(ctx, ev.SenderID)
	if err != nil {
		log.WithError(err).Warn("Failed to load sender reputation, publishing with defaults")
		summary = r.reputation.Summarize(ev.SenderID, 0, 0, repository.SenderStats{})
	}

	body := r.render(ev.Text, summary)
	out.Destinations = r.router.Destinations(ev.Text)
	out.Deliveries = r.publisher.Publish(ctx, res.ID, out.Destinations, body, summary.Likes, summary.Dislikes)
	for _, d := range out.Deliveries {
		if d.Err == nil {
			out.Published = true
			break
		}
	}

	log.WithFields(logrus.Fields{
		"destinations": out.Destinations,
		"published":    out.Published,
	}).Info("Buy request processed")
	return out, nil
}

// OnMessageDeleted marks archived listings as deleted
func (r *Relay) OnMessageDeleted(ctx context.Context, ev MessageDeleted) (int64, error) {
	if err := validateEvent(ev); err != nil {
		return 0, err
	}
	if ev.DeletedAt.IsZero() {
		ev.DeletedAt = time.Now().UTC()
	}

	n, err := r.store.MarkDeleted(ctx, ev.ChatID, ev.MessageIDs, ev.DeletedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages deleted: %w", err)
	}
	if r.metrics != nil {
		r.metrics.MessagesDeleted.Add(float64(n))
	}
	logrus.WithFields(logrus.Fields{
		"chat_id": ev.ChatID,
		"count":   n,
	}).Info("Marked listings deleted")
	return n, nil
}

// OnReaction toggles the reactor's vote and schedules a coalesced edit of
// the post that was pressed. Presses on messages that are not a published
// post of the same listing are rejected. The returned outcome is final; the visible
// counts catch up within the coalescing window.
func (r *Relay) OnReaction(ctx context.Context, ev ReactionEvent) (*reputation.Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}
	listingID, value, err := ParseReaction(ev.Data)
	if err != nil {
		return nil, err
	}

	// only posts this relay published can be reacted to and edited
	post, err := r.store.GetPublishedPostByMessage(ctx, ev.ChatID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if post.ListingID != listingID {
		return nil, fmt.Errorf("%w: message %d belongs to listing %d", ErrInvalidPayload, ev.MessageID, post.ListingID)
	}

	outcome, err := r.reputation.ToggleReaction(ctx, listingID, ev.ReactorID, value)
	if err != nil {
		return nil, err
	}

	r.edits.Schedule(coalescer.Key{ChatID: ev.ChatID, MessageID: ev.MessageID}, coalescer.Values{
		ListingID:    listingID,
		Likes:        outcome.Likes,
		Dislikes:     outcome.Dislikes,
		StartPayload: publisher.StartPayload(listingID, ev.MessageID),
	})
	return outcome, nil
}

// flushEdit re-renders a published post with the latest counts
func (r *Relay) flushEdit(ctx context.Context, key coalescer.Key, v coalescer.Values) error {
	listing, err := r.store.GetListing(ctx, v.ListingID)
	if err != nil {
		return err
	}

	post, err := r.store.GetPublishedPostByMessage(ctx, key.ChatID, key.MessageID)
	if err != nil {
		return err
	}

	stats, err := r.reputation.SenderStats(ctx, listing.SenderID)
	if err != nil {
		logrus.WithError(err).WithField("sender_id", listing.SenderID).Warn("Failed to load sender stats")
	}
	summary := r.reputation.Summarize(listing.SenderID, v.Likes, v.Dislikes, stats)

	controls := r.publisher.Controls(v.ListingID, key.MessageID, v.Likes, v.Dislikes)
	controls.ContactURL = publisher.ContactURL(r.opts.BotUsername, v.StartPayload)
	return r.publisher.Edit(ctx, post, r.render(listing.Text, summary), controls)
}

func (r *Relay) render(text string, s *reputation.Summary) string {
	clean := publisher.Sanitize(text)
	return publisher.RenderPost(publisher.PostView{
		CleanText:     clean,
		Rating:        s.Rating,
		StarsText:     s.StarsText,
		TotalMessages: s.TotalMessages,
		Reviews:       s.Reviews,
		Tags:          r.router.Tags(clean),
	})
}

// resolveName prefers a name already archived for the sender, then the one
// on the event, then the resolver. nil means anonymous.
func (r *Relay) resolveName(ctx context.Context, log *logrus.Entry, ev NewMessage) *string {
	known, err := r.store.KnownSenderName(ctx, ev.SenderID)
	if err != nil {
		log.WithError(err).Warn("Failed to look up known sender name")
	}
	if known != nil {
		return known
	}

	if name := cleanName(ev.SenderName); name != nil {
		return name
	}
	if ev.SenderName != "" {
		log.Debug("Sender name on event unusable, ignoring it")
	}

	if r.resolver != nil {
		name, err := r.resolver.ResolveUsername(ctx, ev.SenderID)
		if err != nil {
			log.WithError(err).Debug("Sender name not resolvable")
			return nil
		}
		return cleanName(name)
	}
	return nil
}

// cleanName strips the @ prefix. Names that do not fit the archive column
// are treated as unknown.
func cleanName(raw string) *string {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil
	}
	return &name
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (r *Relay) rememberChat(ctx context.Context, log *logrus.Entry, ev NewMessage) {
	if ev.ChatUsername == "" && ev.ChatTitle == "" {
		return
	}
	chat := &model.SourceChat{ChatID: ev.ChatID, Title: truncate(ev.ChatTitle, maxTitleLength)}
	chat.Username = cleanName(ev.ChatUsername)
	if err := r.store.UpsertSourceChat(ctx, chat); err != nil {
		log.WithError(err).Warn("Failed to store chat metadata")
	}
}

func (r *Relay) countArchive(buyIntent, inserted bool) {
	if r.metrics == nil {
		return
	}
	if buyIntent {
		r.metrics.BuyIntent.Inc()
	}
	if inserted {
		r.metrics.ArchiveInserts.Inc()
	} else {
		r.metrics.ArchiveDuplicates.Inc()
	}
}
