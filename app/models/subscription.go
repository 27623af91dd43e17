package models

import "time"

const (
	PlatformGateway  = "GATEWAY"
	PlatformAppleIAP = "APPLE_IAP"
)

const (
	PaymentStatusSuccess = "SUCCESS"
)

// Subscription is one accepted purchase grant. Rows are append-only audit
// records; the unique key on (user_id, platform, payment_id) is the
// idempotency serialization point for concurrent claim submissions.
type Subscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index;index:ux_subscriptions_user_platform_payment,unique,priority:1" json:"userId"`
	PlanID        uint      `gorm:"not null;index" json:"planId"`
	Platform      string    `gorm:"type:varchar(20);not null;index:ux_subscriptions_user_platform_payment,unique,priority:2" json:"platform"`
	OrderID       string    `gorm:"type:varchar(191);not null;default:''" json:"orderId"`
	PaymentID     string    `gorm:"type:varchar(191);not null;index:ux_subscriptions_user_platform_payment,unique,priority:3" json:"paymentId"`
	Signature     string    `gorm:"type:longtext" json:"-"`
	StartDate     time.Time `gorm:"type:timestamp;not null" json:"startDate"`
	EndDate       time.Time `gorm:"type:timestamp;not null" json:"endDate"`
	Amount        int64     `gorm:"not null" json:"amount"`
	PaymentStatus string    `gorm:"type:varchar(20);not null;default:'SUCCESS'" json:"paymentStatus"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether this grant entitles the user at the given instant.
// Zero-amount rows are freemium bookkeeping and never entitle; expiry is
// exclusive, a grant ending exactly now is no longer active.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.PaymentStatus != PaymentStatusSuccess {
		return false
	}
	if s.Amount <= 0 {
		return false
	}
	return s.EndDate.After(now)
}
