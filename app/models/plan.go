package models

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Plan is an admin-seeded catalog entry. The reconciliation core treats
// plans as read-only; amounts are stored in minor currency units (paise).
type Plan struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Description    string     `gorm:"type:text" json:"description"`
	Amount         int64      `gorm:"not null" json:"amount" validate:"gte=0"`
	GSTRate        float64    `gorm:"not null;default:0" json:"gstRate" validate:"gte=0,lte=100"`
	ValidUntil     *time.Time `gorm:"type:timestamp;default:null" json:"validUntil,omitempty"`
	AppleProductID string     `gorm:"type:varchar(191);default:null" json:"appleProductId,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// PayableAmount returns the charged amount including GST, rounded to the
// nearest minor currency unit.
func (p *Plan) PayableAmount() int64 {
	return int64(math.Round(float64(p.Amount) + float64(p.Amount)*p.GSTRate/100))
}
