package model

import "time"

// Publish log actions and statuses
const (
	ActionSend = "send"
	ActionEdit = "edit"

	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// PublishLog represents a log entry for a single delivery attempt to a destination
type PublishLog struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ListingID     uint64    `json:"listing_id" gorm:"not null;index"`
	DestinationID int64     `json:"destination_id" gorm:"not null"`
	Action        string    `json:"action" gorm:"type:varchar(16);not null"`
	Status        string    `json:"status" gorm:"type:varchar(50);not null"`
	Attempts      int       `json:"attempts" gorm:"not null;default:0"`
	ErrorMsg      string    `json:"error_msg" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`

	Listing *Listing `json:"listing,omitempty" gorm:"foreignKey:ListingID"`
}

// TableName specifies the table name for PublishLog
func (PublishLog) TableName() string {
	return "publish_logs"
}

// PublishedPost records the sink message created for a listing in one destination.
// MessageID never changes once the row exists.
type PublishedPost struct {
	ListingID     uint64    `json:"listing_id" gorm:"primaryKey;autoIncrement:false"`
	DestinationID int64     `json:"destination_id" gorm:"primaryKey;autoIncrement:false"`
	ChatID        int64     `json:"chat_id" gorm:"not null;index:idx_published_chat_msg,priority:1"`
	MessageID     int64     `json:"message_id" gorm:"not null;index:idx_published_chat_msg,priority:2"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for PublishedPost
func (PublishedPost) TableName() string {
	return "published_posts"
}
