package repository

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, page, perPage int, viewerID uint) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		cache.InvalidatePostsList(ctx)
	}
	return err
}

// GetByID returns the post only when the viewer may see it. Private posts of
// other users surface as gorm.ErrRecordNotFound, not as a permission error.
func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id, viewerID), &post, cache.PostTTL, func() error {
		return r.applyPostDetails(r.visibleScope(r.db.WithContext(ctx), viewerID), viewerID).
			Preload("User").
			First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// feedPage is the cached shape of one feed page.
type feedPage struct {
	Posts []*models.Post `json:"posts"`
	Total int64          `json:"total"`
}

func (r *postRepository) List(ctx context.Context, page, perPage int, viewerID uint) ([]*models.Post, int64, error) {
	var cached feedPage

	err := cache.Aside(ctx, cache.PostsListKey(page, perPage, viewerID), &cached, cache.ListTTL, func() error {
		scoped := r.visibleScope(r.db.WithContext(ctx).Model(&models.Post{}), viewerID)
		if err := scoped.Count(&cached.Total).Error; err != nil {
			return err
		}

		return r.applyPostDetails(r.visibleScope(r.db.WithContext(ctx), viewerID), viewerID).
			Preload("User").
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&cached.Posts).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return cached.Posts, cached.Total, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidatePostsList(ctx)
	return nil
}

// Delete removes the post together with its comments and every like on the
// post or its comments, in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"subject_type = ? AND subject_id IN (SELECT id FROM comments WHERE post_id = ?)",
			models.SubjectComment, id,
		).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subject_type = ? AND subject_id = ?", models.SubjectPost, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidatePostsList(ctx)
	cache.InvalidateCommentTree(ctx, id)
	return nil
}

// visibleScope restricts the query to posts the viewer may see: public posts
// plus the viewer's own private ones.
func (r *postRepository) visibleScope(db *gorm.DB, viewerID uint) *gorm.DB {
	if viewerID == 0 {
		return db.Where("posts.visibility = ?", models.VisibilityPublic)
	}
	return db.Where("posts.visibility = ? OR posts.user_id = ?", models.VisibilityPublic, viewerID)
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.subject_type = 'post' AND likes.subject_id = posts.id) as likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM likes WHERE likes.subject_type = 'post' AND likes.subject_id = posts.id AND likes.user_id = ?) as liked",
			viewerID)
	}

	return db.Select(selectQuery + ", false as liked")
}
