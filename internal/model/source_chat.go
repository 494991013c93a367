package model

import "time"

// SourceChat caches the public metadata of a watched chat so contact cards
// can link back to the original post.
type SourceChat struct {
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	Username  *string   `json:"username" gorm:"type:varchar(64)"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for SourceChat
func (SourceChat) TableName() string {
	return "source_chats"
}
