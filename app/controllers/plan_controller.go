package controllers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/prepvidya/PrepVidya/app/models"
	"github.com/prepvidya/PrepVidya/internal/pkg/billing"
	"github.com/prepvidya/PrepVidya/internal/pkg/cache"
	"github.com/prepvidya/PrepVidya/internal/pkg/database"
)

const planListCacheKey = "plans:list"
const planListCacheTTL = 5 * time.Minute

type planView struct {
	models.Plan
	// ResolvedAppleProductID is the catalog's answer for the Apple rail,
	// after legacy-id translation and name fallback.
	ResolvedAppleProductID string `json:"resolvedAppleProductId,omitempty"`
}

// HandleListPlans returns the plan catalog ordered by amount, each plan
// decorated with its resolved Apple product id. Plans are admin-seeded and
// read-only, so the rendered list is cached briefly; entitlement answers
// are never cached.
func HandleListPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(planListCacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	} else if err != nil && !cache.IsMiss(err) {
		log.Printf("plan list cache read failed: %v", err)
	}

	var plans []models.Plan
	if err := database.GetDB().Order("amount ASC").Find(&plans).Error; err != nil {
		log.Printf("plan list query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	catalog := billing.NewDefaultCatalog()
	views := make([]planView, 0, len(plans))
	for i := range plans {
		views = append(views, planView{
			Plan:                   plans[i],
			ResolvedAppleProductID: catalog.ExternalProductID(&plans[i], billing.RailAppleIAP),
		})
	}

	body := fiber.Map{
		"message": "Plans fetched successfully",
		"data":    views,
	}

	if raw, err := json.Marshal(body); err == nil {
		if err := cache.Set(planListCacheKey, string(raw), planListCacheTTL); err != nil {
			log.Printf("plan list cache write failed: %v", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(body)
}
