package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"taskhub/middleware"
	"taskhub/policy"
	"taskhub/scope"
	"taskhub/utils"
)

// AccessController exposes scope resolution and authorization decisions so
// clients can hide what the user cannot reach.
type AccessController struct {
	Policy *policy.Engine
	Scope  *scope.Resolver
}

func NewAccessController(engine *policy.Engine, resolver *scope.Resolver) *AccessController {
	return &AccessController{Policy: engine, Scope: resolver}
}

func (ac *AccessController) GetScope(c *fiber.Ctx) error {
	entity, err := scope.ParseEntityType(c.Params("entity"))
	if err != nil {
		return err
	}

	ids, err := ac.Scope.VisibleScope(c.UserContext(), middleware.CurrentUser(c), entity)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"entity": entity,
		"ids":    ids.IDs(),
	}))
}

// Authorize answers whether the current user may perform action on entity,
// or on the record id of entity for view, update and delete.
func (ac *AccessController) Authorize(c *fiber.Ctx) error {
	action, err := policy.ParseAction(c.Query("action"))
	if err != nil {
		return err
	}
	entity, err := scope.ParseEntityType(c.Query("entity"))
	if err != nil {
		return err
	}

	target := policy.ForKind(entity)
	if raw := c.Query("id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return invalidQuery("id", "id must be a positive integer")
		}
		if target, err = ac.Policy.Load(c.UserContext(), entity, uint(id)); err != nil {
			return err
		}
	} else if action != policy.ViewAny && action != policy.Create {
		return invalidQuery("id", "id is required for "+string(action))
	}

	allowed, err := ac.Policy.Can(c.UserContext(), middleware.CurrentUser(c), action, target)
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"action":  action,
		"entity":  entity,
		"allowed": allowed,
	}))
}
