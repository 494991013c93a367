package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wtb-relay-go/internal/model"
)

// ArchiveInput is a message to be archived
type ArchiveInput struct {
	SourceChatID int64
	SourceMsgID  int64
	SenderID     int64
	SenderName   *string
	Text         string
	ReplyToMsgID *int64
	BuyIntent    bool
	SentAt       time.Time
}

// ArchiveResult reports the outcome of an archive upsert
type ArchiveResult struct {
	ID             uint64
	Inserted       bool
	DuplicateCount int
}

// ListingFilter narrows ListListings
type ListingFilter struct {
	SenderID       *int64
	SourceChatID   *int64
	BuyIntent      *bool
	IncludeDeleted bool
}

// SenderStats are the counters shown next to a sender's reputation
type SenderStats struct {
	TotalMessages int64 `json:"total_messages"`
	Reviews       int64 `json:"reviews"`
}

// Archive inserts the message or, when (chat, sender, fingerprint) already
// exists, bumps its duplicate count in the same statement. The stored sender
// name is refreshed when a new one is known; the first reply target wins.
func (r *Repository) Archive(ctx context.Context, in ArchiveInput) (*ArchiveResult, error) {
	fp := model.Fingerprint(in.Text)
	listing := model.Listing{
		SourceChatID: in.SourceChatID,
		SourceMsgID:  in.SourceMsgID,
		SenderID:     in.SenderID,
		SenderName:   in.SenderName,
		Text:         in.Text,
		Fingerprint:  fp,
		BuyIntent:    in.BuyIntent,
		ReplyToMsgID: in.ReplyToMsgID,
		IngestedAt:   in.SentAt.UTC(),
	}

	var stored model.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_chat_id"}, {Name: "sender_id"}, {Name: "fingerprint"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "duplicate_count"}, Value: gorm.Expr("listings.duplicate_count + 1")},
				{Column: clause.Column{Name: "sender_name"}, Value: gorm.Expr(fmt.Sprintf("COALESCE(%s, listings.sender_name)", excluded(tx, "sender_name")))},
				{Column: clause.Column{Name: "reply_to_msg_id"}, Value: gorm.Expr(fmt.Sprintf("COALESCE(listings.reply_to_msg_id, %s)", excluded(tx, "reply_to_msg_id")))},
			},
		}).Create(&listing)
		if upsert.Error != nil {
			return upsert.Error
		}

		return tx.Where("source_chat_id = ? AND sender_id = ? AND fingerprint = ?", in.SourceChatID, in.SenderID, fp).
			Take(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive message: %w", err)
	}

	return &ArchiveResult{
		ID:             stored.ID,
		Inserted:       stored.DuplicateCount == 0,
		DuplicateCount: stored.DuplicateCount,
	}, nil
}

// ExistsExactTextForSender reports whether the sender has any archived
// message whose text is byte-identical to text.
func (r *Repository) ExistsExactTextForSender(ctx context.Context, senderID int64, text string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("sender_id = ? AND text = ?", senderID, text).
		Limit(1).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("database error checking sender text: %w", result.Error)
	}
	return count > 0, nil
}

// MarkDeleted soft-deletes the listings for the given source messages and
// returns how many rows changed. Rows already deleted are left untouched.
func (r *Repository) MarkDeleted(ctx context.Context, chatID int64, msgIDs []int64, at time.Time) (int64, error) {
	if len(msgIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("source_chat_id = ? AND source_msg_id IN ? AND deleted = ?", chatID, msgIDs, false).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": at.UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark listings deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// KnownSenderName returns the most recent stored name for the sender, or nil
func (r *Repository) KnownSenderName(ctx context.Context, senderID int64) (*string, error) {
	var names []string
	result := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("sender_id = ? AND sender_name IS NOT NULL AND sender_name <> ''", senderID).
		Order("id DESC").
		Limit(1).
		Pluck("sender_name", &names)
	if result.Error != nil {
		return nil, fmt.Errorf("database error looking up sender name: %w", result.Error)
	}
	if len(names) == 0 {
		return nil, nil
	}
	name := strings.TrimPrefix(names[0], "@")
	return &name, nil
}

// GetListing returns a listing by id
func (r *Repository) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if notFound(err) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &listing, nil
}

// ListListings returns a page of listings, newest first, plus the total count
func (r *Repository) ListListings(ctx context.Context, f ListingFilter, page, limit int) ([]model.Listing, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Listing{})
	if f.SenderID != nil {
		q = q.Where("sender_id = ?", *f.SenderID)
	}
	if f.SourceChatID != nil {
		q = q.Where("source_chat_id = ?", *f.SourceChatID)
	}
	if f.BuyIntent != nil {
		q = q.Where("buy_intent = ?", *f.BuyIntent)
	}
	if !f.IncludeDeleted {
		q = q.Where("deleted = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	var listings []model.Listing
	if err := q.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get listings: %w", err)
	}
	return listings, total, nil
}

// SenderStats counts the sender's live messages and the reactions their listings received
func (r *Repository) SenderStats(ctx context.Context, senderID int64) (SenderStats, error) {
	var stats SenderStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Listing{}).
		Where("sender_id = ? AND deleted = ?", senderID, false).
		Count(&stats.TotalMessages).Error; err != nil {
		return stats, fmt.Errorf("failed to count sender messages: %w", err)
	}

	if err := db.Model(&model.Reaction{}).
		Joins("JOIN listings ON listings.id = listing_reactions.listing_id").
		Where("listings.sender_id = ?", senderID).
		Count(&stats.Reviews).Error; err != nil {
		return stats, fmt.Errorf("failed to count sender reviews: %w", err)
	}
	return stats, nil
}
