package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"wtb-relay-go/internal/model"
)

// SavePublishedPost records a sink message for a listing/destination.
// An existing record is kept as is so the message id stays stable.
func (r *Repository) SavePublishedPost(ctx context.Context, post *model.PublishedPost) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(post)
	if result.Error != nil {
		return fmt.Errorf("failed to save published post: %w", result.Error)
	}
	return nil
}

// GetPublishedPost returns the post for a listing in one destination
func (r *Repository) GetPublishedPost(ctx context.Context, listingID uint64, destinationID int64) (*model.PublishedPost, error) {
	var post model.PublishedPost
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND destination_id = ?", listingID, destinationID).
		Take(&post).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &post, nil
}

// PublishedPostsForListing returns every destination copy of a listing
func (r *Repository) PublishedPostsForListing(ctx context.Context, listingID uint64) ([]model.PublishedPost, error) {
	var posts []model.PublishedPost
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("destination_id").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get published posts: %w", err)
	}
	return posts, nil
}

// LogPublishAttempt records the outcome of a send or edit
func (r *Repository) LogPublishAttempt(ctx context.Context, entry *model.PublishLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log publish attempt: %w", err)
	}
	return nil
}

// ListPublishLogs returns a page of publish logs, newest first
func (r *Repository) ListPublishLogs(ctx context.Context, listingID *uint64, page, limit int) ([]model.PublishLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.PublishLog{})
	if listingID != nil {
		q = q.Where("listing_id = ?", *listingID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count publish logs: %w", err)
	}

	var logs []model.PublishLog
	if err := q.Preload("Listing").Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get publish logs: %w", err)
	}
	return logs, total, nil
}

// GetPublishedPostByMessage finds the post behind a sink message
func (r *Repository) GetPublishedPostByMessage(ctx context.Context, chatID, messageID int64) (*model.PublishedPost, error) {
	var post model.PublishedPost
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Take(&post).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &post, nil
}
