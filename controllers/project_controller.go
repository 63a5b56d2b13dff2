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

type ProjectRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Description string               `json:"description"`
	TeamID      uint                 `json:"team_id" validate:"required"`
	Status      models.ProjectStatus `json:"status" validate:"required,oneof=active completed archived"`
}

type ProjectController struct {
	Store  store.Store
	Policy *policy.Engine
	Scope  *scope.Resolver
	Logger *logrus.Entry
}

func NewProjectController(s store.Store, engine *policy.Engine, resolver *scope.Resolver, logger *logrus.Entry) *ProjectController {
	return &ProjectController{
		Store:  s,
		Policy: engine,
		Scope:  resolver,
		Logger: logger,
	}
}

func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := pc.Policy.Authorize(ctx, user, policy.ViewAny, policy.ForKind(scope.Projects)); err != nil {
		return err
	}
	visible, err := pc.Scope.Projects(ctx, user)
	if err != nil {
		return err
	}

	filter := store.ProjectFilter{
		IDs:     visible.Filter(),
		Preload: []string{"Team", "Tasks"},
		Page:    pageFromQuery(c),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.ProjectStatus(status)
		if !filter.Status.Valid() {
			return invalidQuery("status", "status must be one of active, completed, archived")
		}
	}

	projects, err := pc.Store.ListProjects(ctx, filter)
	if err != nil {
		return err
	}
	total, err := pc.Store.CountProjects(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(utils.NewPaginatedResponse(projects, total, filter.Page.Number, filter.Page.Size))
}

func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	project, err := pc.load(c, policy.View, "Team", "Tasks.Assignee")
	if err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(project))
}

func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := pc.Policy.Authorize(ctx, user, policy.Create, policy.ForKind(scope.Projects)); err != nil {
		return err
	}

	var req ProjectRequest
	if err := pc.parse(c, &req); err != nil {
		return err
	}

	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		TeamID:      req.TeamID,
		Status:      req.Status,
	}
	if err := pc.Store.CreateProject(ctx, project); err != nil {
		return err
	}

	pc.Logger.WithFields(logrus.Fields{"project_id": project.ID, "user_id": user.ID}).Info("Project created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(project))
}

func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	project, err := pc.load(c, policy.Update)
	if err != nil {
		return err
	}

	var req ProjectRequest
	if err := pc.parse(c, &req); err != nil {
		return err
	}

	project.Name = req.Name
	project.Description = req.Description
	project.TeamID = req.TeamID
	project.Status = req.Status
	if err := pc.Store.UpdateProject(c.UserContext(), project); err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(project))
}

// DeleteProject removes the project and its tasks.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	project, err := pc.load(c, policy.Delete)
	if err != nil {
		return err
	}
	if err := pc.Store.DeleteProject(c.UserContext(), project.ID); err != nil {
		return err
	}

	pc.Logger.WithFields(logrus.Fields{"project_id": project.ID, "user_id": middleware.CurrentUser(c).ID}).Info("Project deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (pc *ProjectController) load(c *fiber.Ctx, action policy.Action, preload ...string) (*models.Project, error) {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return nil, err
	}
	project, err := pc.Store.GetProject(c.UserContext(), id, preload...)
	if err != nil {
		return nil, err
	}
	if err := pc.Policy.Authorize(c.UserContext(), middleware.CurrentUser(c), action, policy.ForProject(project)); err != nil {
		return nil, err
	}
	return project, nil
}

func (pc *ProjectController) parse(c *fiber.Ctx, req *ProjectRequest) error {
	if err := parseBody(c, req); err != nil {
		return err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	var refs references
	_, err := pc.Store.GetTeam(c.UserContext(), req.TeamID)
	refs.check("team_id", err)
	return refs.Err()
}
