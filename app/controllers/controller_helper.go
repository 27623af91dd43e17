package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/prepvidya/PrepVidya/internal/pkg/billing"
)

var validate = validator.New()

// parseAndValidate binds a JSON body into out and runs struct validation.
func parseAndValidate(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body"})
	}
	if err := validate.Struct(out); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Validation failed: " + err.Error()})
	}
	return nil
}

// billingErrorResponse maps resolver errors onto the API's status codes.
// Every error is request-scoped; nothing here is retried server-side.
func billingErrorResponse(c *fiber.Ctx, err error) error {
	var confErr *billing.ConfigurationError
	var rejErr *billing.ReceiptRejectedError
	var unavailErr *billing.VerificationUnavailableError

	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Plan not found"})
	case errors.Is(err, billing.ErrPlanNotConfiguredForRail),
		errors.Is(err, billing.ErrInvalidSignature),
		errors.Is(err, billing.ErrProductMismatch),
		errors.Is(err, billing.ErrBundleMismatch),
		errors.Is(err, billing.ErrPlanExpired),
		errors.Is(err, billing.ErrSubscriptionNotActive):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.As(err, &confErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": confErr.Error()})
	case errors.As(err, &rejErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": rejErr.Error()})
	case errors.As(err, &unavailErr):
		// The purchase may be valid; the client can retry submission later.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Receipt verification is temporarily unavailable. Please try again."})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}
