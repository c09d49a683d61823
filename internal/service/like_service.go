package service

import (
	"context"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/repository"
)

type LikeService struct {
	likeRepo    repository.LikeRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
}

type ToggleLikeInput struct {
	UserID      uint
	SubjectType string
	SubjectID   uint
}

func NewLikeService(
	likeRepo repository.LikeRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
) *LikeService {
	return &LikeService{
		likeRepo:    likeRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
	}
}

// Toggle flips the user's like on the subject and returns the resulting
// state. The insert path is insert-if-absent, so two concurrent toggles from
// the same user cannot produce duplicate rows.
func (s *LikeService) Toggle(ctx context.Context, in ToggleLikeInput) (*models.LikeState, error) {
	if !models.ValidSubjectType(in.SubjectType) {
		return nil, models.NewValidationError("subject type must be post or comment")
	}
	if err := s.assertSubjectVisible(ctx, in); err != nil {
		return nil, err
	}

	created, err := s.likeRepo.Add(ctx, in.UserID, in.SubjectType, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if !created {
		if _, err := s.likeRepo.Remove(ctx, in.UserID, in.SubjectType, in.SubjectID); err != nil {
			return nil, err
		}
	}

	s.invalidateSubject(ctx, in)
	return s.State(ctx, in.UserID, in.SubjectType, in.SubjectID)
}

// State reports whether the viewer likes the subject plus the full count and
// liker list. The client reconciles its optimistic UI against this.
func (s *LikeService) State(ctx context.Context, viewerID uint, subjectType string, subjectID uint) (*models.LikeState, error) {
	liked := false
	if viewerID != 0 {
		var err error
		liked, err = s.likeRepo.Liked(ctx, viewerID, subjectType, subjectID)
		if err != nil {
			return nil, err
		}
	}

	count, err := s.likeRepo.Count(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}

	users, err := s.likeRepo.UsersForSubject(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserSummary{}
	}

	return &models.LikeState{Liked: liked, Count: count, Users: users}, nil
}

// assertSubjectVisible ensures the subject exists and the user may see it.
// Both a missing subject and a private post of someone else read as not found.
func (s *LikeService) assertSubjectVisible(ctx context.Context, in ToggleLikeInput) error {
	switch in.SubjectType {
	case models.SubjectPost:
		_, err := s.postRepo.GetByID(ctx, in.SubjectID, in.UserID)
		return err
	case models.SubjectComment:
		comment, err := s.commentRepo.GetByID(ctx, in.SubjectID, 0)
		if err != nil {
			return err
		}
		_, err = s.postRepo.GetByID(ctx, comment.PostID, in.UserID)
		return err
	}
	return nil
}

func (s *LikeService) invalidateSubject(ctx context.Context, in ToggleLikeInput) {
	switch in.SubjectType {
	case models.SubjectPost:
		cache.InvalidatePost(ctx, in.SubjectID)
		cache.InvalidatePostsList(ctx)
	case models.SubjectComment:
		if comment, err := s.commentRepo.GetByID(ctx, in.SubjectID, 0); err == nil {
			cache.InvalidateCommentTree(ctx, comment.PostID)
		}
	}
}
