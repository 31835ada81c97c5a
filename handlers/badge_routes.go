// handlers/badge_routes.go
package handlers

import (
	"tripwise-backend/middleware"
	"tripwise-backend/services"

	"github.com/gofiber/fiber/v2"
)

type galleryEvaluateRequest struct {
	TripID        string `json:"trip_id" validate:"required"`
	SessionID     string `json:"session_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

func SetupBadgeRoutes(secured, admin fiber.Router, badges *services.BadgeService, members *services.MembershipService) {
	// Own badge shelf. Admins may look at anyone's with ?participant_id=.
	secured.Get("/trips/:tripId/badges/me", func(c *fiber.Ctx) error {
		id := middleware.IdentityFrom(c)
		tripID := c.Params("tripId")

		participantID := c.Query("participant_id")
		if participantID == "" || !id.IsAdmin() {
			p, err := members.ResolveParticipant(c.UserContext(), tripID, id)
			if err != nil {
				return respondError(c, err)
			}
			participantID = p.ID
		}

		shelf, err := badges.ListParticipantBadges(c.UserContext(), tripID, participantID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"participant_id": participantID,
			"badges":         shelf,
		})
	})

	// Called by the gallery moderation flow after a photo is approved.
	admin.Post("/gallery/evaluate", func(c *fiber.Ctx) error {
		var req galleryEvaluateRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		unlocked, err := badges.EvaluateGalleryBadges(c.UserContext(), req.TripID, req.SessionID, req.ParticipantID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"new_badges": services.MergeUnlocked(unlocked),
		})
	})
}
