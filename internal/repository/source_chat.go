package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"wtb-relay-go/internal/model"
)

// UpsertSourceChat stores the latest known username and title of a chat
func (r *Repository) UpsertSourceChat(ctx context.Context, chat *model.SourceChat) error {
	chat.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "title", "updated_at"}),
	}).Create(chat)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert source chat: %w", result.Error)
	}
	return nil
}

// GetSourceChat returns the cached chat metadata, or nil when unknown
func (r *Repository) GetSourceChat(ctx context.Context, chatID int64) (*model.SourceChat, error) {
	var chat model.SourceChat
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Take(&chat).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &chat, nil
}
