package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskhub/middleware"
	"taskhub/models"
	"taskhub/policy"
	"taskhub/scope"
	"taskhub/store"
	"taskhub/utils"
)

type TeamRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	ManagerID   uint   `json:"manager_id" validate:"required"`
	// Members replaces the team's membership when present.
	Members *[]uint `json:"members" validate:"omitempty,dive,gt=0"`
}

type TeamController struct {
	Store  store.Store
	Policy *policy.Engine
	Scope  *scope.Resolver
	Logger *logrus.Entry
}

func NewTeamController(s store.Store, engine *policy.Engine, resolver *scope.Resolver, logger *logrus.Entry) *TeamController {
	return &TeamController{
		Store:  s,
		Policy: engine,
		Scope:  resolver,
		Logger: logger,
	}
}

func (tc *TeamController) GetTeams(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := tc.Policy.Authorize(ctx, user, policy.ViewAny, policy.ForKind(scope.Teams)); err != nil {
		return err
	}
	visible, err := tc.Scope.Teams(ctx, user)
	if err != nil {
		return err
	}

	page := pageFromQuery(c)
	teams, err := tc.Store.ListTeams(ctx, store.TeamFilter{
		IDs:     visible.Filter(),
		Preload: []string{"Manager", "Members", "Projects"},
		Page:    page,
	})
	if err != nil {
		return err
	}

	return c.JSON(utils.NewPaginatedResponse(teams, int64(visible.Len()), page.Number, page.Size))
}

func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	team, err := tc.load(c, policy.View, "Manager", "Members", "Projects.Tasks")
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(team))
}

func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := tc.Policy.Authorize(ctx, user, policy.Create, policy.ForKind(scope.Teams)); err != nil {
		return err
	}

	var req TeamRequest
	if err := tc.parse(c, &req); err != nil {
		return err
	}

	team := &models.Team{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
	}
	if err := tc.Store.CreateTeam(ctx, team, req.Members); err != nil {
		return err
	}

	tc.Logger.WithFields(logrus.Fields{"team_id": team.ID, "user_id": user.ID}).Info("Team created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	team, err := tc.load(c, policy.Update)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	var req TeamRequest
	if err := tc.parse(c, &req); err != nil {
		return err
	}

	team.Name = req.Name
	team.Description = req.Description
	team.ManagerID = req.ManagerID
	if err := tc.Store.UpdateTeam(ctx, team, req.Members); err != nil {
		return err
	}

	updated, err := tc.Store.GetTeam(ctx, team.ID, "Manager", "Members")
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(updated))
}

// DeleteTeam removes the team with its projects, tasks and memberships.
func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	team, err := tc.load(c, policy.Delete)
	if err != nil {
		return err
	}
	if err := tc.Store.DeleteTeam(c.UserContext(), team.ID); err != nil {
		return err
	}

	tc.Logger.WithFields(logrus.Fields{"team_id": team.ID, "user_id": middleware.CurrentUser(c).ID}).Info("Team deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

// AddMember and RemoveMember change membership, which is part of updating
// the team.
func (tc *TeamController) AddMember(c *fiber.Ctx) error {
	team, userID, err := tc.loadMember(c)
	if err != nil {
		return err
	}
	if err := tc.Store.AddTeamMember(c.UserContext(), team.ID, userID); err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"team_id": team.ID, "user_id": userID}))
}

func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	team, userID, err := tc.loadMember(c)
	if err != nil {
		return err
	}
	if err := tc.Store.RemoveTeamMember(c.UserContext(), team.ID, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (tc *TeamController) loadMember(c *fiber.Ctx) (*models.Team, uint, error) {
	team, err := tc.load(c, policy.Update)
	if err != nil {
		return nil, 0, err
	}
	userID, err := utils.ParseID(c, "userID")
	if err != nil {
		return nil, 0, err
	}
	if _, err := tc.Store.GetUser(c.UserContext(), userID); err != nil {
		return nil, 0, err
	}
	return team, userID, nil
}

// load fetches the team named by the id parameter and authorizes action on
// it. A missing team is reported before a denial.
func (tc *TeamController) load(c *fiber.Ctx, action policy.Action, preload ...string) (*models.Team, error) {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return nil, err
	}
	team, err := tc.Store.GetTeam(c.UserContext(), id, preload...)
	if err != nil {
		return nil, err
	}
	if err := tc.Policy.Authorize(c.UserContext(), middleware.CurrentUser(c), action, policy.ForTeam(team)); err != nil {
		return nil, err
	}
	return team, nil
}

func (tc *TeamController) parse(c *fiber.Ctx, req *TeamRequest) error {
	if err := parseBody(c, req); err != nil {
		return err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	var refs references
	_, err := tc.Store.GetUser(c.UserContext(), req.ManagerID)
	refs.check("manager_id", err)
	if req.Members != nil {
		for _, id := range *req.Members {
			_, err := tc.Store.GetUser(c.UserContext(), id)
			refs.check("members", err)
		}
	}
	return refs.Err()
}
