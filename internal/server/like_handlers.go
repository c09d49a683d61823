package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ToggleLike handles POST /api/like/:type/:id where :type is "post" or
// "comment". It flips the caller's like and returns the resulting state so
// the client can reconcile its optimistic UI.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	subjectType := c.Params("type")
	if !models.ValidSubjectType(subjectType) {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("like type must be post or comment"))
	}

	subjectID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.likeService.Toggle(c.Context(), service.ToggleLikeInput{
		UserID:      currentUserID(c),
		SubjectType: subjectType,
		SubjectID:   subjectID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(state)
}

// GetLikes handles GET /api/like/:type/:id and returns the current like state
// of the subject for the viewer.
func (s *Server) GetLikes(c *fiber.Ctx) error {
	subjectType := c.Params("type")
	if !models.ValidSubjectType(subjectType) {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("like type must be post or comment"))
	}

	subjectID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.likeService.State(c.Context(), currentUserID(c), subjectType, subjectID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(state)
}
