package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a comment on a post. A comment with a non-nil ParentID
// is a reply; replies nest to unbounded depth. ParentID always references a
// comment belonging to the same post.
type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Content  string `gorm:"not null" json:"content"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	ParentID *uint  `gorm:"index" json:"parent_id"`
	User     User   `gorm:"foreignKey:UserID" json:"user"`
	// Replies is not persisted; the tree is assembled at query time
	Replies []*Comment `gorm:"-" json:"replies"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->" json:"likes_count"`
	// Liked indicates whether the current requesting user liked this comment (computed)
	Liked bool `gorm:"->" json:"liked"`
	// LikeUsers are summaries of the users who liked this comment (computed)
	LikeUsers []UserSummary  `gorm:"-" json:"like_users"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CommentThread is the response shape for a post's comment listing.
type CommentThread struct {
	PostID   uint       `json:"post_id"`
	Comments []*Comment `json:"comments"`
}
