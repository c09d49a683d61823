package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ripple/internal/models"
	"ripple/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
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
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError(err.Error()))
	}

	if _, err := s.userRepo.GetByEmail(c.Context(), req.Email); err == nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("An account with this email already exists"))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondServiceError(c, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashedPassword),
	}
	if err := s.userRepo.Create(c.Context(), user); err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid credentials"))
		}
		return respondServiceError(c, err)
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	userID := currentUserID(c)
	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// generateToken creates a JWT token for the given user ID
func (s *Server) generateToken(userID uint) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": "ripple-api",
		"aud": "ripple-client",
		"exp": now.Add(time.Hour * 24 * 7).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": s.generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
