package service

import (
	"context"
	"errors"
	"testing"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint, uint) (*models.Comment, error)
	listByPostFn    func(context.Context, uint, uint) ([]*models.Comment, error)
	updateFn        func(context.Context, *models.Comment) error
	deleteSubtreeFn func(context.Context, uint, []uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID, viewerID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) DeleteSubtree(ctx context.Context, postID uint, ids []uint) error {
	return s.deleteSubtreeFn(ctx, postID, ids)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Comment, error) {
			return &models.Comment{ID: id}, nil
		},
		listByPostFn:    func(_ context.Context, _, _ uint) ([]*models.Comment, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ *models.Comment) error { return nil },
		deleteSubtreeFn: func(_ context.Context, _ uint, _ []uint) error { return nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint, uint) (*models.Post, error)
	listFn    func(context.Context, int, int, uint) ([]*models.Post, int64, error)
	updateFn  func(context.Context, *models.Post) error
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, page, perPage int, viewerID uint) ([]*models.Post, int64, error) {
	return s.listFn(ctx, page, perPage, viewerID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, Visibility: models.VisibilityPublic}, nil
		},
		listFn:   func(_ context.Context, _, _ int, _ uint) ([]*models.Post, int64, error) { return nil, 0, nil },
		updateFn: func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// likeRepoStub is a stub for repository.LikeRepository.
type likeRepoStub struct {
	addFn              func(context.Context, uint, string, uint) (bool, error)
	removeFn           func(context.Context, uint, string, uint) (bool, error)
	likedFn            func(context.Context, uint, string, uint) (bool, error)
	countFn            func(context.Context, string, uint) (int64, error)
	usersForSubjectFn  func(context.Context, string, uint) ([]models.UserSummary, error)
	usersForSubjectsFn func(context.Context, string, []uint) (map[uint][]models.UserSummary, error)
}

func (s *likeRepoStub) Add(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	return s.addFn(ctx, userID, subjectType, subjectID)
}
func (s *likeRepoStub) Remove(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	return s.removeFn(ctx, userID, subjectType, subjectID)
}
func (s *likeRepoStub) Liked(ctx context.Context, userID uint, subjectType string, subjectID uint) (bool, error) {
	return s.likedFn(ctx, userID, subjectType, subjectID)
}
func (s *likeRepoStub) Count(ctx context.Context, subjectType string, subjectID uint) (int64, error) {
	return s.countFn(ctx, subjectType, subjectID)
}
func (s *likeRepoStub) UsersForSubject(ctx context.Context, subjectType string, subjectID uint) ([]models.UserSummary, error) {
	return s.usersForSubjectFn(ctx, subjectType, subjectID)
}
func (s *likeRepoStub) UsersForSubjects(ctx context.Context, subjectType string, subjectIDs []uint) (map[uint][]models.UserSummary, error) {
	return s.usersForSubjectsFn(ctx, subjectType, subjectIDs)
}

func noopLikeRepo() *likeRepoStub {
	return &likeRepoStub{
		addFn:    func(_ context.Context, _ uint, _ string, _ uint) (bool, error) { return true, nil },
		removeFn: func(_ context.Context, _ uint, _ string, _ uint) (bool, error) { return true, nil },
		likedFn:  func(_ context.Context, _ uint, _ string, _ uint) (bool, error) { return false, nil },
		countFn:  func(_ context.Context, _ string, _ uint) (int64, error) { return 0, nil },
		usersForSubjectFn: func(_ context.Context, _ string, _ uint) ([]models.UserSummary, error) {
			return nil, nil
		},
		usersForSubjectsFn: func(_ context.Context, _ string, _ []uint) (map[uint][]models.UserSummary, error) {
			return map[uint][]models.UserSummary{}, nil
		},
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeForbidden, appErr.Code)
}
