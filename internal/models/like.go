package models

import (
	"time"
)

// Subject types a like can attach to.
const (
	SubjectPost    = "post"
	SubjectComment = "comment"
)

// Like represents a user's like on a post or a comment. One polymorphic
// table serves both subject kinds. The combination of SubjectType, SubjectID
// and UserID must be unique so a racing double-toggle cannot create
// duplicate rows.
type Like struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_subject_user_like" json:"user_id"`
	SubjectType string    `gorm:"not null;uniqueIndex:idx_subject_user_like" json:"subject_type"`
	SubjectID   uint      `gorm:"not null;uniqueIndex:idx_subject_user_like" json:"subject_id"`
	CreatedAt   time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// ValidSubjectType reports whether t names a likeable subject kind.
func ValidSubjectType(t string) bool {
	return t == SubjectPost || t == SubjectComment
}

// LikeState is the authoritative like summary returned after a toggle and by
// the like listing. Count and Users are always recomputed from the store so
// clients can resynchronize from any optimistic drift.
type LikeState struct {
	Liked bool          `json:"liked"`
	Count int64         `json:"count"`
	Users []UserSummary `json:"users"`
}
