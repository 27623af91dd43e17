package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/prepvidya/PrepVidya/internal/pkg/billing"
	"github.com/prepvidya/PrepVidya/internal/pkg/database"
	"github.com/prepvidya/PrepVidya/internal/pkg/mail"
	"github.com/prepvidya/PrepVidya/internal/pkg/middleware"
)

type gatewaySubscriptionRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	PlanID    uint   `json:"planId" validate:"required"`
}

type appleIAPSubscriptionRequest struct {
	PlanID                uint   `json:"planId" validate:"required"`
	Receipt               string `json:"receipt" validate:"required"`
	ProductID             string `json:"productId"`
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	Environment           string `json:"environment"`
}

func newBillingService() *billing.Service {
	return billing.NewServiceFromDB(database.GetDB(), mail.NewPurchaseNotifier())
}

// HandleCreateGatewaySubscription accepts a gateway order/payment/signature
// triple and grants the plan when the signature verifies.
func HandleCreateGatewaySubscription(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}

	var req gatewaySubscriptionRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	claim := billing.GatewayClaim{
		Plan:      req.PlanID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	}

	grant, created, err := newBillingService().Resolve(c.Context(), user, claim)
	if err != nil {
		log.Printf("gateway subscription for user %d failed: %v", user.ID, err)
		return billingErrorResponse(c, err)
	}

	// Resubmission of an already-granted payment is a no-op success per the
	// idempotency contract, not a conflict.
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Subscription already exists",
			"data":    grant,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subscription created successfully",
		"data":    grant,
	})
}

// HandleCreateAppleIAPSubscription accepts an opaque App Store receipt and
// grants the plan when the receipt verifies for the plan's product.
func HandleCreateAppleIAPSubscription(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}

	var req appleIAPSubscriptionRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	claim := billing.AppleIAPClaim{
		Plan:                  req.PlanID,
		Receipt:               req.Receipt,
		ProductID:             req.ProductID,
		TransactionID:         req.TransactionID,
		OriginalTransactionID: req.OriginalTransactionID,
		Environment:           req.Environment,
	}

	grant, created, err := newBillingService().Resolve(c.Context(), user, claim)
	if err != nil {
		log.Printf("apple iap subscription for user %d failed: %v", user.ID, err)
		return billingErrorResponse(c, err)
	}

	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Subscription already exists",
			"data":    grant,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subscription created successfully",
		"data":    grant,
	})
}

// HandleGetActiveSubscription answers "is this user premium right now",
// computed fresh from the ledger.
func HandleGetActiveSubscription(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}

	grant, err := newBillingService().ActiveGrant(user.ID)
	if err != nil {
		log.Printf("active subscription lookup for user %d failed: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Subscription fetched successfully",
		"data": fiber.Map{
			"isActive":     grant != nil,
			"subscription": grant,
		},
	})
}
