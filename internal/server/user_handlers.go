package server

import (
	"errors"

	"ripple/internal/models"
	"ripple/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UpdateProfile handles PUT /api/user/update-profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid request body"))
	}

	if err := validation.ValidateName("first_name", req.FirstName); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateName("last_name", req.LastName); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}

	user, err := s.userRepo.GetByIDFresh(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	if req.Email != user.Email {
		if existing, lookupErr := s.userRepo.GetByEmail(c.Context(), req.Email); lookupErr == nil && existing.ID != user.ID {
			return models.RespondWithError(c, fiber.StatusConflict,
				models.NewValidationError("An account with this email already exists"))
		} else if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return respondServiceError(c, lookupErr)
		}
	}

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	if err := s.userRepo.Update(c.Context(), user); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "profile updated",
		"user":    user,
	})
}

// UpdatePassword handles PUT /api/user/update-password
func (s *Server) UpdatePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword         string `json:"current_password"`
		NewPassword             string `json:"new_password"`
		NewPasswordConfirmation string `json:"new_password_confirmation"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid request body"))
	}

	if req.NewPassword != req.NewPasswordConfirmation {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("new password confirmation does not match"))
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}

	user, err := s.userRepo.GetByIDFresh(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("current password is incorrect"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user.Password = string(hashedPassword)
	if err := s.userRepo.Update(c.Context(), user); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "password updated"})
}
