package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"taskhub/apperr"
	"taskhub/dashboard"
	"taskhub/middleware"
	"taskhub/models"
)

type DashboardController struct {
	Aggregator *dashboard.Aggregator
	Logger     *logrus.Entry
}

func NewDashboardController(aggregator *dashboard.Aggregator, logger *logrus.Entry) *DashboardController {
	return &DashboardController{
		Aggregator: aggregator,
		Logger:     logger,
	}
}

type dashboardPayload struct {
	Role      models.Role         `json:"role"`
	Dashboard dashboard.Dashboard `json:"dashboard"`
}

func (dc *DashboardController) GetDashboard(c *fiber.Ctx) error {
	d, err := dc.Aggregator.For(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    dashboardPayload{Role: d.Role(), Dashboard: d},
	})
}

// UpgradeDashboardWS rejects plain HTTP requests to the live dashboard route.
func (dc *DashboardController) UpgradeDashboardWS(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleDashboardWS answers every {"action":"refresh"} message with a freshly
// computed dashboard for the connected user.
func (dc *DashboardController) HandleDashboardWS(conn *websocket.Conn) {
	defer conn.Close()

	user, ok := conn.Locals("user").(*models.User)
	if !ok {
		return
	}
	log := dc.Logger.WithField("user_id", user.ID)

	for {
		var input struct {
			Action string `json:"action"`
		}
		if err := conn.ReadJSON(&input); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Dashboard socket closed")
			}
			return
		}

		if input.Action != "refresh" {
			if err := conn.WriteJSON(fiber.Map{"success": false, "error": "unknown action"}); err != nil {
				return
			}
			continue
		}

		d, err := dc.Aggregator.For(context.Background(), user)
		if err != nil {
			log.WithError(err).Error("Failed to compute dashboard")
			msg := "Internal server error"
			if apperr.KindOf(err) != apperr.Internal {
				msg = err.Error()
			}
			if err := conn.WriteJSON(fiber.Map{"success": false, "error": msg}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(fiber.Map{
			"success": true,
			"data":    dashboardPayload{Role: d.Role(), Dashboard: d},
		}); err != nil {
			log.WithError(err).Warn("Failed to write dashboard")
			return
		}
	}
}
