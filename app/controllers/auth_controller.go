package controllers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/prepvidya/PrepVidya/app/models"
	"github.com/prepvidya/PrepVidya/internal/pkg/cache"
	"github.com/prepvidya/PrepVidya/internal/pkg/database"
	"github.com/prepvidya/PrepVidya/internal/pkg/mail"
	"github.com/prepvidya/PrepVidya/internal/pkg/security"
)

const otpTTL = 10 * time.Minute

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// HandleRegister creates a pending account and emails a verification OTP.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	err := database.GetDB().Where("email = ?", email).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "An account with this email already exists"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("register lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	user, err := models.CreateUser(req.Name, email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Validation failed: " + err.Error()})
	}
	if err := database.GetDB().Create(user).Error; err != nil {
		log.Printf("register insert failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	if err := sendOTP("register", email); err != nil {
		log.Printf("register otp delivery failed for %s: %v", email, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful. Please verify the OTP sent to your email.",
	})
}

// HandleVerifyRegistrationOTP activates an account after OTP verification
// and issues an access token.
func HandleVerifyRegistrationOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !consumeOTP("register", email, req.OTP) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid or expired OTP"})
	}

	var user models.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Account not found"})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":            models.STATUS_ACTIVE,
		"email_verified_at": &now,
	}
	if err := database.GetDB().Model(&user).Updates(updates).Error; err != nil {
		log.Printf("otp verification update failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	token, err := security.IssueAccessToken(user.ID, user.Name)
	if err != nil {
		log.Printf("token issue failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Email verified successfully",
		"data":    fiber.Map{"token": token, "user": user},
	})
}

// HandleLogin authenticates email+password and issues an access token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid email or password"})
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid email or password"})
	}

	if user.Status != models.STATUS_ACTIVE {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Please verify your email first"})
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	token, err := security.IssueAccessToken(user.ID, user.Name)
	if err != nil {
		log.Printf("token issue failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Login successful",
		"data":    fiber.Map{"token": token, "user": user},
	})
}

// HandleForgotPassword emails a password-reset OTP. Always responds with
// success so account existence is not disclosed.
func HandleForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err == nil {
		if err := sendOTP("reset", email); err != nil {
			log.Printf("reset otp delivery failed for %s: %v", email, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "If the account exists, an OTP has been sent to the email.",
	})
}

// HandleResetPassword sets a new password after OTP verification.
func HandleResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !consumeOTP("reset", email, req.OTP) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid or expired OTP"})
	}

	var user models.User
	if err := database.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Account not found"})
	}

	hashed, err := models.HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("password hash failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
	if err := database.GetDB().Model(&user).Update("password", hashed).Error; err != nil {
		log.Printf("password reset update failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Password reset successfully"})
}

func otpCacheKey(purpose, email string) string {
	return "otp:" + purpose + ":" + email
}

func sendOTP(purpose, email string) error {
	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := cache.Set(otpCacheKey(purpose, email), code, otpTTL); err != nil {
		return err
	}

	subject := "Your PrepVidya verification code"
	body := fmt.Sprintf("<p>Your verification code is <b>%s</b>. It expires in %d minutes.</p>",
		code, int(otpTTL.Minutes()))
	return mail.SendMail(email, subject, body)
}

func consumeOTP(purpose, email, code string) bool {
	key := otpCacheKey(purpose, email)
	stored, err := cache.Get(key)
	if err != nil || stored == "" || stored != code {
		return false
	}
	// Single use.
	if err := cache.Delete(key); err != nil {
		log.Printf("otp delete failed for %s: %v", key, err)
	}
	return true
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
