package handlers

import (
	"log"
	"math"

	"tripwise-backend/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// parseBody decodes the JSON body into dst and runs struct validation.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errors.BadRequestf("malformed request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// respondError maps service errors to status codes and the {"error": ...} body.
func respondError(c *fiber.Ctx, err error) error {
	var (
		geo      *services.GeofenceError
		invalids validator.ValidationErrors
	)
	switch {
	case errors.As(err, &geo):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":       geo.Message,
			"distance":    math.Round(geo.Distance),
			"maxDistance": geo.MaxDistance,
		})
	case errors.As(err, &invalids):
		fields := make(fiber.Map, len(invalids))
		for _, fe := range invalids {
			fields[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fields,
		})
	case errors.Is(err, errors.Unauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.Forbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.NotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.NotProvisioned):
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "notification provider is not configured",
		})
	}
	log.Printf("❌ [HTTP] %s %s: %s", c.Method(), c.Path(), errors.ErrorStack(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
