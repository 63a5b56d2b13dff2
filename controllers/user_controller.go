package controller

import (
	"github.com/gofiber/fiber/v2"

	"taskhub/apperr"
	"taskhub/middleware"
	"taskhub/models"
	"taskhub/store"
	"taskhub/utils"
)

type UserController struct {
	Store store.Store
}

func NewUserController(s store.Store) *UserController {
	return &UserController{Store: s}
}

// GetUsers lists users, optionally of one role, for picking team managers,
// members and assignees. Only admins and managers may list.
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user.IsEmployee() {
		return apperr.Denied("list", "users")
	}

	var filter store.UserFilter
	if raw := c.Query("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			return invalidQuery("role", "role must be one of admin, manager, employee")
		}
		filter.Role = role
	}

	users, err := uc.Store.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(users))
}
