package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	controller "taskhub/controllers"
	"taskhub/dashboard"
	"taskhub/middleware"
	"taskhub/policy"
	"taskhub/scope"
	"taskhub/store"
	"taskhub/utils"
)

// Options tune the route setup.
type Options struct {
	// LoginRateLimit is the number of login attempts allowed per minute and
	// client IP. Zero disables the limiter.
	LoginRateLimit int
	// RateLimitStorage holds limiter counters, nil keeps them in memory.
	RateLimitStorage fiber.Storage
	// AccessLog enables the per-request log line.
	AccessLog bool
}

const accessLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

func SetupAuthRoutes(app *fiber.App, s store.Store, opts Options) {
	authController := controller.NewAuthController(s, utils.NewLogger("auth"))

	auth := app.Group("/auth", handlers(opts)...)

	login := []fiber.Handler{}
	if opts.LoginRateLimit > 0 {
		login = append(login, middleware.LoginRateLimiter(opts.LoginRateLimit, time.Minute, opts.RateLimitStorage))
	}
	login = append(login, authController.Login)

	auth.Post("/register", authController.Register)
	auth.Post("/login", login...)
	auth.Post("/refresh", authController.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected(s))
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Get("/me", authController.GetCurrentUser)

	utils.NewLogger("routes").Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, s store.Store, opts Options) {
	resolver := scope.NewResolver(s)
	engine := policy.NewEngine(s)
	aggregator := dashboard.NewAggregator(s, resolver)

	dashboardController := controller.NewDashboardController(aggregator, utils.NewLogger("dashboard"))
	accessController := controller.NewAccessController(engine, resolver)
	teamController := controller.NewTeamController(s, engine, resolver, utils.NewLogger("team"))
	projectController := controller.NewProjectController(s, engine, resolver, utils.NewLogger("project"))
	taskController := controller.NewTaskController(s, engine, resolver, utils.NewLogger("task"))
	userController := controller.NewUserController(s)

	api := app.Group("/api/v1", append([]fiber.Handler{middleware.Protected(s)}, handlers(opts)...)...)

	// Dashboard routes
	api.Get("/dashboard", dashboardController.GetDashboard)
	api.Get("/dashboard/ws", dashboardController.UpgradeDashboardWS, websocket.New(dashboardController.HandleDashboardWS))

	// Access routes
	api.Get("/scope/:entity", accessController.GetScope)
	api.Get("/authorize", accessController.Authorize)

	// Team routes
	team := api.Group("/teams")
	team.Get("/", teamController.GetTeams)
	team.Post("/", teamController.CreateTeam)
	team.Get("/:id", teamController.GetTeam)
	team.Put("/:id", teamController.UpdateTeam)
	team.Delete("/:id", teamController.DeleteTeam)
	team.Post("/:id/members/:userID", teamController.AddMember)
	team.Delete("/:id/members/:userID", teamController.RemoveMember)

	// Project routes
	project := api.Group("/projects")
	project.Get("/", projectController.GetProjects)
	project.Post("/", projectController.CreateProject)
	project.Get("/:id", projectController.GetProject)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)

	// Task routes
	task := api.Group("/tasks")
	task.Get("/", taskController.GetTasks)
	task.Post("/", taskController.CreateTask)
	task.Get("/:id", taskController.GetTask)
	task.Put("/:id", taskController.UpdateTask)
	task.Delete("/:id", taskController.DeleteTask)

	// User routes
	api.Get("/users", userController.GetUsers)

	utils.NewLogger("routes").Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, s store.Store, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, s, opts)
	SetupAPIRoutes(app, s, opts)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}

func handlers(opts Options) []fiber.Handler {
	if !opts.AccessLog {
		return nil
	}
	return []fiber.Handler{logger.New(logger.Config{Format: accessLogFormat})}
}
