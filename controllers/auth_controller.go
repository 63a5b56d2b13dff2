package controller

import (
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskhub/apperr"
	"taskhub/middleware"
	"taskhub/models"
	"taskhub/store"
	"taskhub/utils"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	*utils.TokenPair
	User *models.User `json:"user"`
}

type AuthController struct {
	Store  store.Store
	Logger *logrus.Entry
}

func NewAuthController(s store.Store, logger *logrus.Entry) *AuthController {
	return &AuthController{
		Store:  s,
		Logger: logger,
	}
}

// Register creates an employee account. Managers and admins are created by
// seeding or directly in the database.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	if err := checkmail.ValidateFormat(req.Email); err != nil {
		return apperr.New(apperr.ValidationFailed, "validation failed",
			apperr.WithField("email", "email must be a valid email"), apperr.WithCause(err))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.New(apperr.Internal, "failed to hash password", apperr.WithCause(err))
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleEmployee,
	}
	if err := ac.Store.CreateUser(c.UserContext(), user); err != nil {
		return err
	}

	tokens, err := utils.GenerateJWTToken(user)
	if err != nil {
		return err
	}

	ac.Logger.WithField("user_id", user.ID).Info("User registered")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(AuthResponse{TokenPair: tokens, User: user}))
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	invalid := apperr.New(apperr.Unauthenticated, "invalid email or password")

	user, err := ac.Store.FindUserByEmail(c.UserContext(), req.Email)
	if apperr.Is(err, apperr.NotFound) {
		return invalid
	} else if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		ac.Logger.WithField("user_id", user.ID).Warn("Failed login attempt")
		return invalid
	}

	tokens, err := utils.GenerateJWTToken(user)
	if err != nil {
		return err
	}

	utils.LogEvent("user_login", map[string]interface{}{
		"user_id": user.ID,
		"ip":      c.IP(),
	})
	return c.JSON(utils.SuccessResponse(AuthResponse{TokenPair: tokens, User: user}))
}

func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	claims, err := utils.ParseJWTToken(req.RefreshToken, utils.RefreshToken)
	if err != nil {
		return err
	}

	user, err := ac.Store.GetUser(c.UserContext(), claims.UserID)
	if apperr.Is(err, apperr.NotFound) {
		return apperr.New(apperr.Unauthenticated, "user not found")
	} else if err != nil {
		return err
	}
	if claims.TokenVersion != user.TokenVersion {
		return apperr.New(apperr.Unauthenticated, "invalid token version")
	}

	tokens, err := utils.GenerateJWTToken(user)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(AuthResponse{TokenPair: tokens, User: user}))
}

// Logout revokes every token issued to the user so far.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := ac.Store.BumpTokenVersion(c.UserContext(), user.ID); err != nil {
		return err
	}

	c.ClearCookie("access_token")
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Logged out"}))
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(middleware.CurrentUser(c)))
}
