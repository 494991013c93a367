package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Listing is an archived chat message. Rows are never hard-deleted;
// deletions in the source chat only flip Deleted.
type Listing struct {
	ID             uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceChatID   int64      `json:"source_chat_id" gorm:"not null;uniqueIndex:ux_listing_chat_sender_fp,priority:1;index:idx_listing_chat_msg,priority:1"`
	SourceMsgID    int64      `json:"source_msg_id" gorm:"not null;index:idx_listing_chat_msg,priority:2"`
	SenderID       int64      `json:"sender_id" gorm:"not null;uniqueIndex:ux_listing_chat_sender_fp,priority:2;index"`
	SenderName     *string    `json:"sender_name" gorm:"type:varchar(64)"`
	Text           string     `json:"text" gorm:"type:text;not null"`
	Fingerprint    string     `json:"fingerprint" gorm:"type:char(64);not null;uniqueIndex:ux_listing_chat_sender_fp,priority:3"`
	DuplicateCount int        `json:"duplicate_count" gorm:"not null;default:0"`
	BuyIntent      bool       `json:"buy_intent" gorm:"not null;default:false"`
	ReplyToMsgID   *int64     `json:"reply_to_msg_id"`
	Deleted        bool       `json:"deleted" gorm:"not null;default:false;index"`
	DeletedAt      *time.Time `json:"deleted_at"`
	IngestedAt     time.Time  `json:"ingested_at" gorm:"not null;index"`
}

// TableName specifies the table name for Listing
func (Listing) TableName() string {
	return "listings"
}

// Fingerprint returns the hex sha256 of text with all whitespace runs
// collapsed to a single space and the ends trimmed.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return hex.EncodeToString(sum[:])
}
