package service

import (
	"context"
	"mime/multipart"

	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/storage"
	"ripple/internal/validation"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 50
)

type PostService struct {
	postRepo repository.PostRepository
	likeRepo repository.LikeRepository
	images   *storage.ImageStore
}

type CreatePostInput struct {
	UserID     uint
	Content    string
	Visibility string
	Image      *multipart.FileHeader
}

type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Content     *string
	Visibility  *string
	Image       *multipart.FileHeader
	RemoveImage bool
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	images *storage.ImageStore,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		likeRepo: likeRepo,
		images:   images,
	}
}

// List returns one page of the feed, newest first, restricted to posts the
// viewer may see.
func (s *PostService) List(ctx context.Context, page, perPage int, viewerID uint) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	posts, total, err := s.postRepo.List(ctx, page, perPage, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLikeUsers(ctx, posts); err != nil {
		return nil, err
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	return &models.PostPage{
		Data:        posts,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}, nil
}

func (s *PostService) Get(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLikeUsers(ctx, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Content == "" && in.Image == nil {
		return nil, models.NewValidationError("post needs text or an image")
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !models.ValidVisibility(visibility) {
		return nil, models.NewValidationError("visibility must be public or private")
	}

	post := &models.Post{
		Content:    in.Content,
		UserID:     in.UserID,
		Visibility: visibility,
	}

	if in.Image != nil {
		url, err := s.images.Store(in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = url
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.images.Delete(post.Image)
		return nil, err
	}

	return s.Get(ctx, post.ID, in.UserID)
}

// Update applies a partial edit. Only fields present in the input change;
// replacing or removing the image also removes the old file from disk.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("you can only update your own posts")
	}

	if in.Content != nil {
		if err := validation.ValidatePostContent(*in.Content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Content = *in.Content
	}
	if in.Visibility != nil {
		if !models.ValidVisibility(*in.Visibility) {
			return nil, models.NewValidationError("visibility must be public or private")
		}
		post.Visibility = *in.Visibility
	}

	oldImage := post.Image
	switch {
	case in.Image != nil:
		url, err := s.images.Store(in.Image)
		if err != nil {
			return nil, err
		}
		post.Image = url
	case in.RemoveImage:
		post.Image = ""
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if post.Image != oldImage {
			s.images.Delete(post.Image)
		}
		return nil, err
	}

	if post.Image != oldImage {
		s.images.Delete(oldImage)
	}

	return s.Get(ctx, post.ID, in.UserID)
}

func (s *PostService) Delete(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewForbiddenError("you can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}

	s.images.Delete(post.Image)
	return nil
}

func (s *PostService) hydrateLikeUsers(ctx context.Context, posts []*models.Post) error {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	likers, err := s.likeRepo.UsersForSubjects(ctx, models.SubjectPost, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.LikeUsers = likers[p.ID]
		if p.LikeUsers == nil {
			p.LikeUsers = []models.UserSummary{}
		}
	}
	return nil
}
