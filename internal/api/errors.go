package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/couchcryptid/maize-resilience-service/internal/prediction"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// handleError maps handler errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var (
		fe    *fiber.Error
		verrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verrs):
		fields := fieldMessages(verrs)
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Error:   true,
			Message: joinFields(verrs, fields),
			Fields:  fields,
		})
	case errors.Is(err, prediction.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: true, Message: err.Error()})
	case errors.Is(err, prediction.ErrModelNotReady):
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: true, Message: "model not loaded"})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(errorResponse{Error: true, Message: fe.Message})
	default:
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: true, Message: "internal server error"})
	}
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldName(fe)] = describe(fe)
	}
	return out
}

// joinFields renders the messages in validation order.
func joinFields(verrs validator.ValidationErrors, fields map[string]string) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldName(fe)+": "+fields[fieldName(fe)])
	}
	return strings.Join(parts, "; ")
}

// fieldName is the field's JSON path without the root struct name, e.g.
// "predictions[2].soil_ph".
func fieldName(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " items"
	case "max":
		if fe.Kind().String() == "string" {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must have at most " + fe.Param() + " items"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
