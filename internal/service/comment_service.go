// Package service contains the application's business logic.
package service

import (
	"context"
	"sort"

	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	likeRepo    repository.LikeRepository
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		likeRepo:    likeRepo,
	}
}

// ListForPost returns the post's comments as a tree. Top-level comments are
// ordered newest first, replies oldest first so conversations read downward.
func (s *CommentService) ListForPost(ctx context.Context, postID uint, viewerID uint) (*models.CommentThread, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, viewerID); err != nil {
		return nil, err
	}

	flat, err := s.commentRepo.ListByPost(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLikeUsers(ctx, flat); err != nil {
		return nil, err
	}

	return &models.CommentThread{
		PostID:   postID,
		Comments: buildTree(flat),
	}, nil
}

func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID); err != nil {
		return nil, err
	}
	if err := validation.ValidateCommentContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID, 0)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("parent comment belongs to a different post")
		}
	}

	comment := &models.Comment{
		Content:  in.Content,
		UserID:   in.UserID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	return s.fetchWithLikers(ctx, comment.ID, in.UserID)
}

func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("you can only update your own comments")
	}
	if err := validation.ValidateCommentContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment.Content = in.Content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	return s.fetchWithLikers(ctx, comment.ID, in.UserID)
}

// Delete removes the comment and every reply beneath it. The whole subtree
// goes in one transaction so a mid-delete failure cannot orphan replies.
func (s *CommentService) Delete(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID, 0)
	if err != nil {
		return err
	}

	if comment.UserID != in.UserID {
		return models.NewForbiddenError("you can only delete your own comments")
	}

	flat, err := s.commentRepo.ListByPost(ctx, comment.PostID, 0)
	if err != nil {
		return err
	}

	return s.commentRepo.DeleteSubtree(ctx, comment.PostID, subtreeIDs(flat, comment.ID))
}

func (s *CommentService) fetchWithLikers(ctx context.Context, id uint, viewerID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateLikeUsers(ctx, []*models.Comment{comment}); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) hydrateLikeUsers(ctx context.Context, comments []*models.Comment) error {
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	likers, err := s.likeRepo.UsersForSubjects(ctx, models.SubjectComment, ids)
	if err != nil {
		return err
	}
	for _, c := range comments {
		c.LikeUsers = likers[c.ID]
		if c.LikeUsers == nil {
			c.LikeUsers = []models.UserSummary{}
		}
	}
	return nil
}

// buildTree assembles the flat slice into nested replies. The input arrives
// ordered created_at ascending, which is already the reply order; top-level
// comments are re-sorted newest first.
func buildTree(flat []*models.Comment) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		c.Replies = []*models.Comment{}
		byID[c.ID] = c
	}

	roots := []*models.Comment{}
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		parent, ok := byID[*c.ParentID]
		if !ok {
			// Parent missing from the result set. Deletes remove whole
			// subtrees, so the reply belongs to a deleted thread; hide it.
			continue
		}
		parent.Replies = append(parent.Replies, c)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	return roots
}

// subtreeIDs returns rootID plus every descendant, breadth first.
func subtreeIDs(flat []*models.Comment, rootID uint) []uint {
	children := make(map[uint][]uint, len(flat))
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	ids := []uint{}
	queue := []uint{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ids = append(ids, id)
		queue = append(queue, children[id]...)
	}
	return ids
}
