// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Post represents a feed post. Private posts are visible only to their owner.
type Post struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Image      string `json:"image,omitempty"`
	Visibility string `gorm:"not null;default:public;index" json:"visibility"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	User       User   `gorm:"foreignKey:UserID" json:"user"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->" json:"liked"`
	// LikeUsers are summaries of the users who liked this post (computed)
	LikeUsers []UserSummary  `gorm:"-" json:"like_users"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ValidVisibility reports whether v is a recognized visibility value.
func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// PostPage is the paginated envelope returned by the feed listing.
type PostPage struct {
	Data        []*Post `json:"data"`
	CurrentPage int     `json:"current_page"`
	PerPage     int     `json:"per_page"`
	Total       int64   `json:"total"`
	LastPage    int     `json:"last_page"`
}
