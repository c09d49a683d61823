package server

import (
	"errors"
	"strings"
	"unicode"

	"ripple/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 422 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the authenticated user's ID, or 0 for anonymous
// requests on routes using OptionalAuth.
func currentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// respondServiceError maps service and repository errors onto HTTP statuses:
// validation 422, missing records 404, ownership 403, bad credentials 401,
// everything else 500.
func respondServiceError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: models.CodeNotFound, Message: "resource not found"})
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return models.RespondWithError(c, statusForCode(appErr.Code), appErr)
	}

	return models.RespondWithError(c, fiber.StatusInternalServerError,
		models.NewInternalError(err))
}

func statusForCode(code string) int {
	switch code {
	case models.CodeValidation:
		return fiber.StatusUnprocessableEntity
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
