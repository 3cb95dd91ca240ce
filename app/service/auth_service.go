package service

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
	"github.com/swagatgroup/swagatodisha-sub003/helper"
)

type AuthService struct {
	repo   repo.UserRepository
	tokens *helper.TokenIssuer
	Responder
}

func NewAuthService(repo repo.UserRepository, tokens *helper.TokenIssuer, r Responder) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, Responder: r}
}

// /api/v1/auth/login
func (s *AuthService) Login(c *fiber.Ctx) error {
	var req model.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return s.BadRequest(c, "Invalid input")
	}
	if err := helper.ValidateStruct(req); err != nil {
		return s.BadRequest(c, helper.FormatValidationErrors(err))
	}

	user, err := s.repo.FindByUsername(c.UserContext(), req.Username)
	if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
		return s.Fail(c, err)
	}
	if err != nil || !helper.CheckPasswordHash(req.Password, user.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(model.ErrorResponse{
			Success: false,
			Message: "Invalid credentials",
		})
	}

	token, err := s.tokens.GenerateToken(*user)
	if err != nil {
		return s.Fail(c, err)
	}

	return c.JSON(model.LoginSuccessResponse{
		Success: true,
		Message: "Login successful",
		Data: model.LoginResponse{
			User: model.LoginUser{
				ID:       user.ID.String(),
				Username: user.Username,
				FullName: user.FullName,
				Role:     user.Role.Name,
			},
			Token: token,
		},
	})
}

// /api/v1/auth/profile
func (s *AuthService) Profile(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(model.ErrorResponse{
			Success: false,
			Message: "Invalid user session",
		})
	}

	username, _ := c.Locals("username").(string)
	role, _ := c.Locals("role").(string)

	return c.JSON(model.ProfileResponse{
		Success: true,
		Data: model.ProfileData{
			UserID:   userID,
			Username: username,
			Role:     role,
		},
	})
}
