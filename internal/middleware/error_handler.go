package middleware

import (
	"errors"

	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Domain error kinds map to their
// HTTP statuses; everything else is a 500 with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrEntityNotFound):
		code = fiber.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrInvalidQuantity):
		code = fiber.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStockAvailable),
		errors.Is(err, domain.ErrAlreadyReserved):
		code = fiber.StatusConflict
		message = err.Error()
	default:
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}
	}

	return response.Error(c, message, code, map[string]interface{}{})
}
