// handlers/notification_routes.go
package handlers

import (
	"context"

	"tripwise-backend/middleware"
	"tripwise-backend/services"
	"tripwise-backend/workers"

	"github.com/gofiber/fiber/v2"
)

// DispatchRunner runs one notification dispatch pass.
type DispatchRunner interface {
	RunOnce(ctx context.Context) (*workers.DispatchResult, error)
}

type announcementRequest struct {
	Title string `json:"title" validate:"max=200"`
	Body  string `json:"body" validate:"required"`
}

type credentialRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	LoginURL string `json:"login_url" validate:"omitempty,url"`
}

func SetupNotificationRoutes(admin fiber.Router, queue *services.NotificationQueue, dispatcher DispatchRunner) {
	admin.Post("/trips/:tripId/broadcasts/schedule/:sessionId", func(c *fiber.Ctx) error {
		res, err := queue.BroadcastSchedule(c.UserContext(), middleware.IdentityFrom(c), c.Params("tripId"), c.Params("sessionId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/trips/:tripId/broadcasts/announcement", func(c *fiber.Ctx) error {
		var req announcementRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := queue.BroadcastAnnouncement(c.UserContext(), middleware.IdentityFrom(c), c.Params("tripId"), req.Title, req.Body)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/trips/:tripId/participants/:participantId/credentials", func(c *fiber.Ctx) error {
		var req credentialRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := queue.IssueCredential(c.UserContext(), middleware.IdentityFrom(c),
			c.Params("tripId"), c.Params("participantId"), req.Username, req.Password, req.LoginURL)
		if err != nil {
			return respondError(c, err)
		}
		if res.Status == services.CredentialAlreadySent {
			return c.JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/notifications/dispatch", func(c *fiber.Ctx) error {
		res, err := dispatcher.RunOnce(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	admin.Get("/notifications", func(c *fiber.Ctx) error {
		msgs, err := queue.ListMessages(c.UserContext(), middleware.IdentityFrom(c),
			c.Query("status"), c.Query("trip_id"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"messages": msgs, "count": len(msgs)})
	})
}
