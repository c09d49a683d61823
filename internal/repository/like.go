package repository

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for like data operations. Likes are
// polymorphic: a row targets either a post or a comment via subject columns.
type LikeRepository interface {
	// Add inserts the like if absent. Returns true when a row was created,
	// false when the user had already liked the subject.
	Add(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error)
	Remove(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error)
	Liked(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error)
	Count(ctx context.Context, subjectType string, subjectID uint) (int64, error)
	UsersForSubject(ctx context.Context, subjectType string, subjectID uint) ([]models.UserSummary, error)
	UsersForSubjects(ctx context.Context, subjectType string, subjectIDs []uint) (map[uint][]models.UserSummary, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Add relies on the unique (subject_type, subject_id, user_id) index so a
// concurrent duplicate resolves to a no-op instead of an error.
func (r *likeRepository) Add(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	like := models.Like{
		UserID:      userID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidateLikeUsers(ctx, subjectType, subjectID)
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Remove(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND subject_type = ? AND subject_id = ?", userID, subjectType, subjectID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		cache.InvalidateLikeUsers(ctx, subjectType, subjectID)
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Liked(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND subject_type = ? AND subject_id = ?", userID, subjectType, subjectID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) Count(ctx context.Context, subjectType string, subjectID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) UsersForSubject(ctx context.Context, subjectType string, subjectID uint) ([]models.UserSummary, error) {
	users := []models.UserSummary{}
	err := cache.Aside(ctx, cache.LikeUsersKey(subjectType, subjectID), &users, cache.LikeUsersTTL, func() error {
		return r.db.WithContext(ctx).
			Model(&models.Like{}).
			Select("users.id, users.first_name, users.last_name").
			Joins("JOIN users ON users.id = likes.user_id").
			Where("likes.subject_type = ? AND likes.subject_id = ?", subjectType, subjectID).
			Order("likes.created_at asc").
			Scan(&users).Error
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UsersForSubjects batch-loads likers for many subjects in one query, keyed
// by subject ID. Feed and comment tree hydration use this to avoid N+1.
func (r *likeRepository) UsersForSubjects(ctx context.Context, subjectType string, subjectIDs []uint) (map[uint][]models.UserSummary, error) {
	result := make(map[uint][]models.UserSummary, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return result, nil
	}

	type likerRow struct {
		SubjectID uint
		ID        uint
		FirstName string
		LastName  string
	}
	var rows []likerRow
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Select("likes.subject_id, users.id, users.first_name, users.last_name").
		Joins("JOIN users ON users.id = likes.user_id").
		Where("likes.subject_type = ? AND likes.subject_id IN ?", subjectType, subjectIDs).
		Order("likes.created_at asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.SubjectID] = append(result[row.SubjectID], models.UserSummary{
			ID:        row.ID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
		})
	}
	return result, nil
}
