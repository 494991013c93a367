package model

import "time"

// Reaction values
const (
	ReactionLike    int8 = 1
	ReactionDislike int8 = -1
)

// Reaction is one reader's vote on a listing; at most one per (listing, reactor).
type Reaction struct {
	ListingID uint64    `json:"listing_id" gorm:"primaryKey;autoIncrement:false"`
	ReactorID int64     `json:"reactor_id" gorm:"primaryKey;autoIncrement:false;index"`
	Value     int8      `json:"value" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Reaction
func (Reaction) TableName() string {
	return "listing_reactions"
}

// Reputation is the per-sender aggregate derived from reactions on all of
// the sender's listings. It is always recomputed, never patched.
type Reputation struct {
	SenderID  int64     `json:"sender_id" gorm:"primaryKey;autoIncrement:false"`
	Likes     int       `json:"likes" gorm:"not null;default:0"`
	Dislikes  int       `json:"dislikes" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Reputation
func (Reputation) TableName() string {
	return "user_reputations"
}

// All returns every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&Listing{},
		&Reaction{},
		&Reputation{},
		&PublishedPost{},
		&PublishLog{},
		&SourceChat{},
	}
}
