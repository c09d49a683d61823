package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/post/:postId/comments and returns the full
// comment tree for the post.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	thread, err := s.commentService.ListForPost(c.Context(), postID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(thread)
}

// CreateComment handles POST /api/post/comments/:postId. A parent_id in the
// body makes the comment a reply.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Create(c.Context(), service.CreateCommentInput{
		UserID:   currentUserID(c),
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/post/comments/:commentId
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Update(c.Context(), service.UpdateCommentInput{
		UserID:    currentUserID(c),
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/post/comments/:commentId. Replies below
// the comment are removed with it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.commentService.Delete(c.Context(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		CommentID: commentID,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "comment deleted"})
}
