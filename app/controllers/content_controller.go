package controllers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/prepvidya/PrepVidya/app/models"
	"github.com/prepvidya/PrepVidya/internal/pkg/database"
	"github.com/prepvidya/PrepVidya/internal/pkg/middleware"
)

// HandleListSubjects returns all subjects ordered by position.
func HandleListSubjects(c *fiber.Ctx) error {
	var subjects []models.Subject
	if err := database.GetDB().Order("position ASC, id ASC").Find(&subjects).Error; err != nil {
		log.Printf("subject list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": subjects})
}

// HandleListChapters returns the chapters of one subject.
func HandleListChapters(c *fiber.Ctx) error {
	subjectID, err := strconv.ParseUint(c.Params("subjectId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid subject id"})
	}

	var chapters []models.Chapter
	if err := database.GetDB().Where("subject_id = ?", subjectID).
		Order("position ASC, id ASC").Find(&chapters).Error; err != nil {
		log.Printf("chapter list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": chapters})
}

// HandleListTopics returns the topics of one chapter without their content
// bodies. IsPremium tells the client which topics need a subscription.
func HandleListTopics(c *fiber.Ctx) error {
	chapterID, err := strconv.ParseUint(c.Params("chapterId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid chapter id"})
	}

	var topics []models.Topic
	if err := database.GetDB().Select("id", "chapter_id", "name", "position", "is_premium").
		Where("chapter_id = ?", chapterID).
		Order("position ASC, id ASC").Find(&topics).Error; err != nil {
		log.Printf("topic list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": topics})
}

// HandleGetTopic returns one topic with its content. Premium topics are
// only served to users with an active subscription.
func HandleGetTopic(c *fiber.Ctx) error {
	topicID, err := strconv.ParseUint(c.Params("topicId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid topic id"})
	}

	var topic models.Topic
	if err := database.GetDB().First(&topic, topicID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Topic not found"})
	}

	if topic.IsPremium {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
		}

		active, err := newBillingService().HasActiveSubscription(user.ID)
		if err != nil {
			log.Printf("subscription check failed for user %d: %v", user.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
		}
		if !active {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"message": "An active subscription is required for this topic",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": topic})
}
