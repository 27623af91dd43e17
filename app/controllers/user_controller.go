package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/prepvidya/PrepVidya/internal/pkg/database"
	"github.com/prepvidya/PrepVidya/internal/pkg/middleware"
)

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,min=3,max=150"`
}

// HandleGetProfile returns the authenticated user's profile.
func HandleGetProfile(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": user})
}

// HandleUpdateProfile updates the authenticated user's display name.
func HandleUpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}

	var req updateProfileRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := database.GetDB().Model(user).Update("name", req.Name).Error; err != nil {
		log.Printf("profile update failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
	user.Name = req.Name

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Profile updated successfully", "data": user})
}
