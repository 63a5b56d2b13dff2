package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskhub/apperr"
	"taskhub/models"
	"taskhub/store"
	"taskhub/utils"
)

// Protected authenticates the request with an access token from the
// Authorization header or the access_token cookie, and stores the user in
// c.Locals("user").
func Protected(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return utils.RespondError(c, apperr.New(apperr.Unauthenticated, "invalid authorization format"))
			}
			token = tokenParts[1]
		} else {
			token = c.Cookies("access_token")
			if token == "" {
				return utils.RespondError(c, apperr.New(apperr.Unauthenticated, "authorization required"))
			}
		}

		claims, err := utils.ParseJWTToken(token, utils.AccessToken)
		if err != nil {
			return utils.RespondError(c, err)
		}

		user, err := s.GetUser(c.UserContext(), claims.UserID)
		if apperr.Is(err, apperr.NotFound) {
			return utils.RespondError(c, apperr.New(apperr.Unauthenticated, "user not found"))
		} else if err != nil {
			return utils.RespondError(c, err)
		}

		// Logging out bumps the version and invalidates every issued token.
		if claims.TokenVersion != user.TokenVersion {
			return utils.RespondError(c, apperr.New(apperr.Unauthenticated, "invalid token version"))
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		c.Locals("sessionID", claims.ID)

		return c.Next()
	}
}

// CurrentUser returns the user Protected stored on the request.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
