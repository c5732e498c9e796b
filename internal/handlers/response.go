package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/utils"
)

// callerID is the authenticated user's id. Routes behind AuthMiddleware always have one.
func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, apperr.Unauthorized("authentication required")
	}
	return id, nil
}

func invalidBody() error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
}

// paramID reads a path identifier. Ids that do not parse name nothing.
func paramID(c *fiber.Ctx, name, what string) (uuid.UUID, error) {
	id, ok := policy.ParseID(c.Params(name))
	if !ok {
		return uuid.Nil, apperr.NotFound(what + " not found")
	}
	return id, nil
}

// queryID reads an optional identifier filter. Empty means no filter.
func queryID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, ok := policy.ParseID(raw)
	if !ok {
		return uuid.Nil, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a valid id"})
	}
	return id, nil
}

func paginated(c *fiber.Ctx, data any, pg utils.Pagination, total int64) error {
	return c.JSON(fiber.Map{
		"data": data,
		"pagination": fiber.Map{
			"page":  pg.Page,
			"limit": pg.Limit,
			"total": total,
			"pages": pg.Pages(total),
		},
	})
}

func parseBodyID(raw string) (uuid.UUID, bool) {
	return policy.ParseID(raw)
}

func invalidField(field, message string) error {
	return apperr.Validation(message, apperr.FieldError{Field: field, Message: message})
}
