package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/apperr"
)

type errorBody struct {
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidState:
		return fiber.StatusBadRequest
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler as {message, errors?}.
// Unexpected errors are logged and answered with a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
			return c.Status(statusFor(appErr.Kind)).JSON(errorBody{Message: appErr.Message, Errors: appErr.Fields})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			if fiberErr.Code >= fiber.StatusInternalServerError {
				logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			}
			return c.Status(fiberErr.Code).JSON(errorBody{Message: fiberErr.Message})
		}

		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Message: "internal server error"})
	}
}
