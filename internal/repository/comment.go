package repository

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, viewerID uint) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	DeleteSubtree(ctx context.Context, postID uint, ids []uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	// cached posts and feed pages carry comments_count
	cache.InvalidateCommentTree(ctx, comment.PostID)
	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns every comment on the post as a flat slice, cache-aside
// per viewer. Tree assembly happens in the service layer.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, viewerID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := cache.Aside(ctx, cache.CommentTreeKey(postID, viewerID), &comments, cache.CommentTreeTTL, func() error {
		return r.applyCommentDetails(r.db.WithContext(ctx), viewerID).
			Preload("User").
			Where("post_id = ?", postID).
			Order("created_at asc, id asc").
			Find(&comments).Error
	})
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Save(comment).Error; err != nil {
		return err
	}
	cache.InvalidateCommentTree(ctx, comment.PostID)
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

// DeleteSubtree removes the given comments and their likes in one
// transaction. The caller passes the full descendant closure; ids are deleted
// together so a failure leaves no orphaned replies.
func (r *commentRepository) DeleteSubtree(ctx context.Context, postID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_type = ? AND subject_id IN ?", models.SubjectComment, ids).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
	if err != nil {
		return err
	}
	cache.InvalidateCommentTree(ctx, postID)
	cache.InvalidatePost(ctx, postID)
	cache.InvalidatePostsList(ctx)
	return nil
}

// applyCommentDetails adds like count and viewer liked status subqueries.
func (r *commentRepository) applyCommentDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "comments.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.subject_type = 'comment' AND likes.subject_id = comments.id) as likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM likes WHERE likes.subject_type = 'comment' AND likes.subject_id = comments.id AND likes.user_id = ?) as liked",
			viewerID)
	}

	return db.Select(selectQuery + ", false as liked")
}
