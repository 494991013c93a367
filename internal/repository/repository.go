package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrListingNotFound is returned when a listing id does not exist
	ErrListingNotFound = errors.New("listing not found")
	// ErrPostNotFound is returned when no published post exists for a listing/destination
	ErrPostNotFound = errors.New("published post not found")
)

// Repository is the archive store. Every write that can race with another
// handler goes through a single conditional statement in the database.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying connection for read-only reporting queries
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Ping checks that the database answers
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// excluded returns the expression naming the proposed row's column inside an
// upsert, which differs between MySQL and the ON CONFLICT dialects.
func excluded(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "mysql" {
		return "VALUES(" + column + ")"
	}
	return "excluded." + column
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// forUpdate locks the selected rows until the transaction ends. SQLite has
// no row locks; its writers are already serialized.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
