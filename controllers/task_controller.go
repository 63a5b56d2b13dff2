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

type TaskRequest struct {
	Title       string              `json:"title" validate:"required,max=255"`
	Description string              `json:"description"`
	ProjectID   uint                `json:"project_id" validate:"required"`
	AssignedTo  *uint               `json:"assigned_to"`
	Priority    models.TaskPriority `json:"priority" validate:"required,oneof=low medium high"`
	Status      models.TaskStatus   `json:"status" validate:"required,oneof=todo in-progress done"`
	DueDate     string              `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type TaskController struct {
	Store  store.Store
	Policy *policy.Engine
	Scope  *scope.Resolver
	Logger *logrus.Entry
}

func NewTaskController(s store.Store, engine *policy.Engine, resolver *scope.Resolver, logger *logrus.Entry) *TaskController {
	return &TaskController{
		Store:  s,
		Policy: engine,
		Scope:  resolver,
		Logger: logger,
	}
}

func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := tc.Policy.Authorize(ctx, user, policy.ViewAny, policy.ForKind(scope.Tasks)); err != nil {
		return err
	}
	visible, err := tc.Scope.Tasks(ctx, user)
	if err != nil {
		return err
	}

	filter := store.TaskFilter{
		IDs:     visible.Filter(),
		Preload: []string{"Project.Team", "Assignee"},
		Page:    pageFromQuery(c),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.TaskStatus(status)
		if !filter.Status.Valid() {
			return invalidQuery("status", "status must be one of todo, in-progress, done")
		}
	}

	tasks, err := tc.Store.ListTasks(ctx, filter)
	if err != nil {
		return err
	}
	total, err := tc.Store.CountTasks(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(utils.NewPaginatedResponse(tasks, total, filter.Page.Number, filter.Page.Size))
}

func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	task, err := tc.load(c, policy.View, "Project.Team")
	if err != nil {
		return err
	}
	if task.AssignedTo != nil {
		if task.Assignee, err = tc.Store.GetUser(c.UserContext(), *task.AssignedTo); err != nil {
			return err
		}
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	ctx := c.UserContext()

	if err := tc.Policy.Authorize(ctx, user, policy.Create, policy.ForKind(scope.Tasks)); err != nil {
		return err
	}

	var req TaskRequest
	if err := tc.parse(c, &req); err != nil {
		return err
	}

	task := &models.Task{}
	if err := req.apply(task); err != nil {
		return err
	}
	if err := tc.Store.CreateTask(ctx, task); err != nil {
		return err
	}

	tc.Logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": user.ID}).Info("Task created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	task, err := tc.load(c, policy.Update)
	if err != nil {
		return err
	}

	var req TaskRequest
	if err := tc.parse(c, &req); err != nil {
		return err
	}
	if err := req.apply(task); err != nil {
		return err
	}
	if err := tc.Store.UpdateTask(c.UserContext(), task); err != nil {
		return err
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	task, err := tc.load(c, policy.Delete)
	if err != nil {
		return err
	}
	if err := tc.Store.DeleteTask(c.UserContext(), task.ID); err != nil {
		return err
	}

	tc.Logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": middleware.CurrentUser(c).ID}).Info("Task deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

// load fetches the task named by the id parameter and authorizes action on
// it. A missing task is reported before a denial.
func (tc *TaskController) load(c *fiber.Ctx, action policy.Action, preload ...string) (*models.Task, error) {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return nil, err
	}
	task, err := tc.Store.GetTask(c.UserContext(), id, preload...)
	if err != nil {
		return nil, err
	}
	if err := tc.Policy.Authorize(c.UserContext(), middleware.CurrentUser(c), action, policy.ForTask(task)); err != nil {
		return nil, err
	}
	return task, nil
}

func (tc *TaskController) parse(c *fiber.Ctx, req *TaskRequest) error {
	if err := parseBody(c, req); err != nil {
		return err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	var refs references
	_, err := tc.Store.GetProject(c.UserContext(), req.ProjectID)
	refs.check("project_id", err)
	if req.AssignedTo != nil {
		_, err := tc.Store.GetUser(c.UserContext(), *req.AssignedTo)
		refs.check("assigned_to", err)
	}
	return refs.Err()
}

func (req *TaskRequest) apply(task *models.Task) error {
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return err
	}

	task.Title = req.Title
	task.Description = req.Description
	task.ProjectID = req.ProjectID
	task.AssignedTo = req.AssignedTo
	task.Priority = req.Priority
	task.Status = req.Status
	task.DueDate = dueDate
	return nil
}
