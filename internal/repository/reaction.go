package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wtb-relay-go/internal/model"
)

// Toggle outcomes
const (
	ToggleAdded    = "added"
	ToggleRemoved  = "removed"
	ToggleSwitched = "switched"
)

// ToggleResult describes what a reaction toggle did
type ToggleResult struct {
	Result   string
	SenderID int64
}

// ToggleReaction applies one reader reaction to a listing:
// same value again removes it, the opposite value switches it, otherwise it is added.
// The decision runs under a lock on the listing row, so two presses by the
// same reader never both see an empty slot.
func (r *Repository) ToggleReaction(ctx context.Context, listingID uint64, reactorID int64, value int8) (*ToggleResult, error) {
	if value != model.ReactionLike && value != model.ReactionDislike {
		return nil, fmt.Errorf("invalid reaction value %d", value)
	}

	var out ToggleResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the listing row lock orders concurrent presses on the same listing
		var listing model.Listing
		if err := forUpdate(tx).Select("id", "sender_id").Take(&listing, listingID).Error; err != nil {
			if notFound(err) {
				return ErrListingNotFound
			}
			return err
		}
		out.SenderID = listing.SenderID

		removed := tx.Where("listing_id = ? AND reactor_id = ? AND value = ?", listingID, reactorID, value).
			Delete(&model.Reaction{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			out.Result = ToggleRemoved
			return nil
		}

		var existing int64
		if err := tx.Model(&model.Reaction{}).
			Where("listing_id = ? AND reactor_id = ?", listingID, reactorID).
			Count(&existing).Error; err != nil {
			return err
		}

		reaction := model.Reaction{ListingID: listingID, ReactorID: reactorID, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}, {Name: "reactor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&reaction).Error; err != nil {
			return err
		}

		if existing > 0 {
			out.Result = ToggleSwitched
		} else {
			out.Result = ToggleAdded
		}
		return nil
	})
	if err != nil {
		if err == ErrListingNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to toggle reaction: %w", err)
	}
	return &out, nil
}

// ListingCounts returns likes and dislikes on a single listing
func (r *Repository) ListingCounts(ctx context.Context, listingID uint64) (likes, dislikes int, err error) {
	var agg struct {
		Likes    int
		Dislikes int
	}
	err = r.db.WithContext(ctx).Model(&model.Reaction{}).
		Select("COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS likes, "+
			"COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS dislikes").
		Where("listing_id = ?", listingID).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count listing reactions: %w", err)
	}
	return agg.Likes, agg.Dislikes, nil
}

// RecomputeReputation derives the sender's aggregate from every reaction on
// every listing they authored and overwrites the stored row.
func (r *Repository) RecomputeReputation(ctx context.Context, senderID int64) (*model.Reputation, error) {
	var agg struct {
		Likes    int
		Dislikes int
	}
	db := r.db.WithContext(ctx)
	err := db.Model(&model.Reaction{}).
		Select("COALESCE(SUM(CASE WHEN listing_reactions.value = 1 THEN 1 ELSE 0 END), 0) AS likes, "+
			"COALESCE(SUM(CASE WHEN listing_reactions.value = -1 THEN 1 ELSE 0 END), 0) AS dislikes").
		Joins("JOIN listings ON listings.id = listing_reactions.listing_id").
		Where("listings.sender_id = ?", senderID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reactions: %w", err)
	}

	rep := model.Reputation{
		SenderID:  senderID,
		Likes:     agg.Likes,
		Dislikes:  agg.Dislikes,
		UpdatedAt: time.Now().UTC(),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sender_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"likes", "dislikes", "updated_at"}),
	}).Create(&rep).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store reputation: %w", err)
	}
	return &rep, nil
}

// GetReputation returns the stored aggregate; senders without one get zeros
func (r *Repository) GetReputation(ctx context.Context, senderID int64) (*model.Reputation, error) {
	var rep model.Reputation
	err := r.db.WithContext(ctx).Where("sender_id = ?", senderID).Take(&rep).Error
	if err != nil {
		if notFound(err) {
			return &model.Reputation{SenderID: senderID}, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &rep, nil
}

// ReputationSenders lists every sender that has a stored aggregate or at
// least one reaction on their listings.
func (r *Repository) ReputationSenders(ctx context.Context) ([]int64, error) {
	db := r.db.WithContext(ctx)

	var reacted []int64
	if err := db.Model(&model.Reaction{}).
		Joins("JOIN listings ON listings.id = listing_reactions.listing_id").
		Distinct("listings.sender_id").
		Pluck("listings.sender_id", &reacted).Error; err != nil {
		return nil, fmt.Errorf("failed to list reacted senders: %w", err)
	}

	var stored []int64
	if err := db.Model(&model.Reputation{}).Pluck("sender_id", &stored).Error; err != nil {
		return nil, fmt.Errorf("failed to list stored reputations: %w", err)
	}

	seen := make(map[int64]struct{}, len(reacted)+len(stored))
	var senders []int64
	for _, id := range append(reacted, stored...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		senders = append(senders, id)
	}
	return senders, nil
}
