// handlers/checkin_routes.go
package handlers

import (
	"strconv"
	"time"

	"tripwise-backend/middleware"
	"tripwise-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/juju/errors"
)

type qrCheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

type geoCheckInRequest struct {
	TripID    string   `json:"trip_id" validate:"required"`
	SessionID string   `json:"session_id" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type cardCheckInRequest struct {
	TripID    string `json:"trip_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Scan      string `json:"scan" validate:"required"`
}

type manualCheckInRequest struct {
	TripID        string `json:"trip_id" validate:"required"`
	SessionID     string `json:"session_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// SetupCheckInRoutes mounts attendance routes. secured is the /s group with
// user context; admin is /s/admin behind RequireAdmin.
func SetupCheckInRoutes(secured, admin fiber.Router, checkIn *services.CheckInService) {
	// per-user throttle on self check-in
	checkinGroup := secured.Group("/checkin", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return middleware.IdentityFrom(c).UserID
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many check-in attempts, try again shortly",
			})
		},
	}))

	checkinGroup.Post("/qr", func(c *fiber.Ctx) error {
		var req qrCheckInRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := checkIn.Confirm(c.UserContext(), services.QRProof{
			Identity: middleware.IdentityFrom(c),
			Token:    req.Token,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	checkinGroup.Post("/geo", func(c *fiber.Ctx) error {
		var req geoCheckInRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := checkIn.Confirm(c.UserContext(), services.GeoProof{
			Identity:  middleware.IdentityFrom(c),
			TripID:    req.TripID,
			SessionID: req.SessionID,
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	secured.Get("/trips/:tripId/sessions/:sessionId/proximity", func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
		if latErr != nil || lonErr != nil {
			return respondError(c, errors.BadRequestf("lat and lon query parameters are required"))
		}
		res, err := checkIn.Proximity(c.UserContext(), middleware.IdentityFrom(c), c.Params("tripId"), c.Params("sessionId"), lat, lon)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	admin.Post("/trips/:tripId/sessions/:sessionId/qr", func(c *fiber.Ctx) error {
		token, err := checkIn.IssueQRToken(c.UserContext(), middleware.IdentityFrom(c), c.Params("tripId"), c.Params("sessionId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(token)
	})

	admin.Get("/trips/:tripId/sessions/:sessionId/qr/stream", func(c *fiber.Ctx) error {
		if err := checkIn.StreamQRTokensSSE(c, middleware.IdentityFrom(c), c.Params("tripId"), c.Params("sessionId")); err != nil {
			return respondError(c, err)
		}
		return nil
	})

	admin.Post("/checkin/card", func(c *fiber.Ctx) error {
		var req cardCheckInRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := checkIn.Confirm(c.UserContext(), services.CardProof{
			Identity:  middleware.IdentityFrom(c),
			TripID:    req.TripID,
			SessionID: req.SessionID,
			ScanText:  req.Scan,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	admin.Post("/checkin/manual", func(c *fiber.Ctx) error {
		var req manualCheckInRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		res, err := checkIn.Confirm(c.UserContext(), services.AdminProof{
			Identity:      middleware.IdentityFrom(c),
			TripID:        req.TripID,
			SessionID:     req.SessionID,
			ParticipantID: req.ParticipantID,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
