package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/prepvidya/PrepVidya/app/controllers"
	"github.com/prepvidya/PrepVidya/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// auth
	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/verify-otp", controllers.HandleVerifyRegistrationOTP)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/forgot-password", controllers.HandleForgotPassword)
	auth.Post("/reset-password", controllers.HandleResetPassword)

	// plans are public so the app can show pricing before login
	v1.Get("/plans", controllers.HandleListPlans)

	// everything below requires a verified account
	authed := v1.Group("/", middleware.RequireAuth())

	authed.Get("/profile", controllers.HandleGetProfile)
	authed.Put("/profile", controllers.HandleUpdateProfile)

	authed.Post("/subscriptions", controllers.HandleCreateGatewaySubscription)
	authed.Post("/subscriptions/apple-iap", controllers.HandleCreateAppleIAPSubscription)
	authed.Get("/subscriptions/active", controllers.HandleGetActiveSubscription)

	authed.Get("/subjects", controllers.HandleListSubjects)
	authed.Get("/subjects/:subjectId/chapters", controllers.HandleListChapters)
	authed.Get("/chapters/:chapterId/topics", controllers.HandleListTopics)
	authed.Get("/topics/:topicId", controllers.HandleGetTopic)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
